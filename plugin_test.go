package kaiseki

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaiseki-nlp/kaiseki/dictionary"
)

func rewrite(t *testing.T, p InputTextPlugin, text string) *InputText {
	t.Helper()
	b := NewInputTextBuilder(text, testGrammar(t))
	require.NoError(t, p.Rewrite(b))
	return b.Build()
}

func TestDefaultInputTextPlugin(t *testing.T) {
	p, err := NewDefaultInputTextPlugin(map[string]any{
		"ignore":  []any{"Ｂ"},
		"replace": map[string]any{"ｶﾞ": "ガ", "ＸＹ": "z"},
	})
	require.NoError(t, err)
	require.NoError(t, p.SetUp(testGrammar(t)))

	in := rewrite(t, p, "ＡＢＸＹｶﾞ①")
	assert.Equal(t, "aＢzガ1", in.Text())
	assert.Equal(t, "ＸＹ", in.OriginalSlice(2, 3))
	assert.Equal(t, "ｶﾞ", in.OriginalSlice(3, 4))
	assert.Equal(t, "①", in.OriginalSlice(4, 5))
}

func TestDefaultInputTextPlugin_RewriteDef(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rewrite.def")
	require.NoError(t, os.WriteFile(path, []byte("# ignore\nⅢ\n\n# replace\n髙 高\n"), 0o644))

	p, err := NewDefaultInputTextPlugin(map[string]any{"rewriteDef": path})
	require.NoError(t, err)
	require.NoError(t, p.SetUp(testGrammar(t)))

	assert.Equal(t, "Ⅲ高い", rewrite(t, p, "Ⅲ髙い").Text())
}

func TestDefaultInputTextPlugin_BadRewriteDef(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rewrite.def")
	require.NoError(t, os.WriteFile(path, []byte("a b c\n"), 0o644))

	p, err := NewDefaultInputTextPlugin(map[string]any{"rewriteDef": path})
	require.NoError(t, err)

	err = p.SetUp(testGrammar(t))
	require.ErrorIs(t, err, dictionary.ErrInvalidFormat)
	var pe *dictionary.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 1, pe.Line)
}

func TestProlongedSoundMarkInputTextPlugin(t *testing.T) {
	p, err := NewProlongedSoundMarkInputTextPlugin(map[string]any{
		"prolongedSoundMarks": []any{"ー", "〜"},
		"replacementSymbol":   "ー",
	})
	require.NoError(t, err)
	require.NoError(t, p.SetUp(testGrammar(t)))

	in := rewrite(t, p, "すごーーい〜〜ー!ー")
	assert.Equal(t, "すごーいー!ー", in.Text())
	assert.Equal(t, "ーー", in.OriginalSlice(2, 3))
	assert.Equal(t, "〜〜ー", in.OriginalSlice(4, 5))
}

func TestSimpleOovProviderPlugin(t *testing.T) {
	g := testGrammar(t)
	p, err := NewSimpleOovProviderPlugin(map[string]any{
		"oovPOS":  []any{"名詞", "普通名詞", "一般", "*", "*", "*"},
		"leftId":  "1",
		"rightId": 1,
		"cost":    5000,
	})
	require.NoError(t, err)
	require.NoError(t, p.SetUp(g))

	in := NewInputTextBuilder("ωx", g).Build()
	nodes, err := p.ProvideOOV(in, 1, false)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, 1, nodes[0].Begin)
	assert.Equal(t, 2, nodes[0].End)
	assert.True(t, nodes[0].OOV)
	assert.Equal(t, int16(5000), nodes[0].Cost)

	nodes, err = p.ProvideOOV(in, 0, true)
	require.NoError(t, err)
	assert.Empty(t, nodes)
}

func TestSimpleOovProviderPlugin_BadConnection(t *testing.T) {
	p, err := NewSimpleOovProviderPlugin(map[string]any{
		"oovPOS": []any{"名詞", "普通名詞", "一般", "*", "*", "*"},
		"leftId": 9,
	})
	require.NoError(t, err)
	assert.ErrorIs(t, p.SetUp(testGrammar(t)), dictionary.ErrUndefinedConnection)
}

func TestMeCabOovProviderPlugin(t *testing.T) {
	g := testGrammar(t)
	p, err := NewMeCabOovProviderPlugin(map[string]any{
		"unk": []any{
			"KANJI,1,1,6000,名詞,普通名詞,一般,*,*,*",
			"KATAKANA,1,1,5000,名詞,普通名詞,一般,*,*,*",
			"KATAKANA,1,1,5500,名詞,固有名詞,地名,一般,*,*",
		},
	})
	require.NoError(t, err)
	require.NoError(t, p.SetUp(g))

	spans := func(nodes []LatticeNode) [][2]int {
		var out [][2]int
		for _, n := range nodes {
			out = append(out, [2]int{n.Begin, n.End})
		}
		return out
	}

	in := NewInputTextBuilder("東京都アイス", g).Build()

	// KANJI: no invoke, no group, length 2.
	nodes, err := p.ProvideOOV(in, 0, false)
	require.NoError(t, err)
	assert.Equal(t, [][2]int{{0, 1}, {0, 2}}, spans(nodes))

	nodes, err = p.ProvideOOV(in, 0, true)
	require.NoError(t, err)
	assert.Empty(t, nodes)

	nodes, err = p.ProvideOOV(in, 2, false)
	require.NoError(t, err)
	assert.Equal(t, [][2]int{{2, 3}}, spans(nodes))

	// KATAKANA: invoke and group, one node per unk entry.
	nodes, err = p.ProvideOOV(in, 3, true)
	require.NoError(t, err)
	require.Equal(t, [][2]int{{3, 6}, {3, 6}}, spans(nodes))
	assert.Equal(t, int16(5000), nodes[0].Cost)
	assert.Equal(t, int16(5500), nodes[1].Cost)
	info, err := (&Lattice{}).WordInfo(&nodes[0])
	require.NoError(t, err)
	assert.Equal(t, "アイス", info.Surface)
	assert.Equal(t, int16(3), info.HeadwordLength)
}

func TestMeCabOovProviderPlugin_SetUpErrors(t *testing.T) {
	tests := map[string][]any{
		"undefined category": {"KANJINUMERIC,1,1,6000,名詞,普通名詞,一般,*,*,*"},
		"unknown category":   {"LATIN,1,1,6000,名詞,普通名詞,一般,*,*,*"},
		"short entry":        {"KANJI,1,1,6000"},
		"unknown pos":        {"KANJI,1,1,6000,未知,*,*,*,*,*"},
		"no entries":         {},
	}
	for name, unk := range tests {
		t.Run(name, func(t *testing.T) {
			p, err := NewMeCabOovProviderPlugin(map[string]any{"unk": unk})
			require.NoError(t, err)
			assert.Error(t, p.SetUp(testGrammar(t)))
		})
	}
}

func TestJoinKatakanaOovPlugin(t *testing.T) {
	cfg := testConfig()
	cfg.OovProviderPlugins = []PluginDescriptor{simpleOOV()}
	plain := newTestDictionary(t, cfg).Create()
	assert.Equal(t, []string{"アイス", "ク", "リ", "ー", "ム"}, tokenize(t, plain, "アイスクリーム").Surfaces())

	cfg.PathRewritePlugins = []PluginDescriptor{{
		"class":  "JoinKatakanaOovPlugin",
		"oovPOS": []any{"名詞", "普通名詞", "一般", "*", "*", "*"},
	}}
	joined := tokenize(t, newTestDictionary(t, cfg).Create(), "アイスクリームをすし")

	require.Equal(t, []string{"アイスクリーム", "を", "すし"}, joined.Surfaces())
	m := joined.Get(0)
	assert.True(t, m.IsOOV())
	assert.Equal(t, "アイスクリーム", m.NormalizedForm())
	assert.Equal(t, dictionary.POS{"名詞", "普通名詞", "一般", "*", "*", "*"}, m.PartOfSpeech())
	assert.False(t, joined.Get(2).IsOOV())
}

func TestJoinNumericPlugin(t *testing.T) {
	cfg := testConfig()
	cfg.OovProviderPlugins = []PluginDescriptor{simpleOOV()}
	cfg.PathRewritePlugins = []PluginDescriptor{{"class": "JoinNumericPlugin"}}
	tok := newTestDictionary(t, cfg).Create()

	list := tokenize(t, tok, "００７京都")
	require.Equal(t, []string{"００７", "京都"}, list.Surfaces())
	assert.Equal(t, "7", list.Get(0).NormalizedForm())
	assert.Equal(t, "007", list.Get(0).DictionaryForm())
	assert.False(t, list.Get(0).IsOOV())

	cfg.PathRewritePlugins = []PluginDescriptor{{"class": "JoinNumericPlugin", "enableNormalize": false}}
	list = tokenize(t, newTestDictionary(t, cfg).Create(), "12")
	require.Equal(t, 1, list.Len())
	assert.Equal(t, "12", list.Get(0).NormalizedForm())
}

func TestConcatenateNodes_KeepsInternalCost(t *testing.T) {
	d := newTestDictionary(t, testConfig())
	tok := d.Create()

	input := NewInputTextBuilder("東京都に行く", d.grammar).Build()
	lattice, err := tok.buildLattice(input)
	require.NoError(t, err)
	path, err := lattice.BestPath()
	require.NoError(t, err)
	before := pathCost(d.grammar, path)

	joined, err := ConcatenateNodes(path, 1, 3, lattice, "")
	require.NoError(t, err)
	require.Len(t, joined, 2)
	assert.Equal(t, before, pathCost(d.grammar, joined))

	info, err := lattice.WordInfo(joined[1])
	require.NoError(t, err)
	assert.Equal(t, "に行く", info.Surface)
	assert.Equal(t, "ニイク", info.ReadingForm)
	assert.Equal(t, int16(3), info.HeadwordLength)
	assert.Equal(t, int16(2), info.POSID)

	_, err = ConcatenateNodes(path, 2, 2, lattice, "")
	assert.Error(t, err)
}

func TestConcatenateOOV_ReusedNodeFollowsPath(t *testing.T) {
	d := newTestDictionary(t, testConfig())

	l := newLattice(d.grammar, d.lexicon, 3)
	a := l.insert(LatticeNode{Begin: 0, End: 1, LeftID: 1, RightID: 1, Cost: 100})
	b := l.insert(LatticeNode{Begin: 0, End: 1, LeftID: 2, RightID: 2, Cost: 100})
	y1 := l.insert(LatticeNode{Begin: 1, End: 2, LeftID: 1, RightID: 1, Cost: 10})
	y2 := l.insert(LatticeNode{Begin: 2, End: 3, LeftID: 1, RightID: 1, Cost: 10})
	x := l.insert(LatticeNode{Begin: 1, End: 3, LeftID: 2, RightID: 2, Cost: 50})
	l.connectEOS()

	// x is cheapest after a, but the path goes through b.
	require.Equal(t, a, l.nodes[x].bestPrev)
	path := []*LatticeNode{&l.nodes[b], &l.nodes[y1], &l.nodes[y2]}

	got, err := ConcatenateOOV(path, 1, 3, 0, l)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Same(t, path[0], got[0])
	assert.NotSame(t, &l.nodes[x], got[1], "lattice node is not modified")
	assert.Equal(t, int16(50), got[1].Cost)
	assert.Equal(t, b, got[1].bestPrev)

	// b(100) + connect(2, 2)(800) + x(50)
	assert.Equal(t, int64(950), pathCost(d.grammar, got))
	assert.Equal(t, l.nodes[b].TotalCost()+800+50, got[1].TotalCost())
	assert.Equal(t, int64(-50), l.nodes[x].TotalCost())
}
