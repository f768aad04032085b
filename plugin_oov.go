package kaiseki

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/kaiseki-nlp/kaiseki/dictionary"
)

func init() {
	RegisterOovProviderPlugin(func(s map[string]any) (OovProviderPlugin, error) {
		return NewSimpleOovProviderPlugin(s)
	}, classNames("SimpleOovProviderPlugin")...)
	RegisterOovProviderPlugin(func(s map[string]any) (OovProviderPlugin, error) {
		return NewMeCabOovProviderPlugin(s)
	}, classNames("MeCabOovProviderPlugin")...)
}

func oovWordInfo(surface string, posID int16) dictionary.WordInfo {
	return dictionary.WordInfo{
		Surface:        surface,
		HeadwordLength: int16(len([]rune(surface))),
		POSID:          posID,
		NormalizedForm: surface,
		DictionaryForm: surface,
	}
}

// SimpleOovProviderPlugin emits a one-character word where no other word
// begins.
type SimpleOovProviderPlugin struct {
	settings simpleOovSettings
	posID    int16
}

type simpleOovSettings struct {
	OovPOS  []string `mapstructure:"oovPOS"`
	LeftID  int16    `mapstructure:"leftId"`
	RightID int16    `mapstructure:"rightId"`
	Cost    int16    `mapstructure:"cost"`
	// UserPOS is "allow" to add an unknown oovPOS to the grammar.
	UserPOS string `mapstructure:"userPOS"`
}

// NewSimpleOovProviderPlugin decodes the plugin settings.
func NewSimpleOovProviderPlugin(settings map[string]any) (*SimpleOovProviderPlugin, error) {
	p := &SimpleOovProviderPlugin{}
	if err := DecodeSettings(settings, &p.settings); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *SimpleOovProviderPlugin) SetUp(grammar *dictionary.Grammar) error {
	id, err := oovPOSSetting(grammar, p.settings.OovPOS, p.settings.UserPOS)
	if err != nil {
		return err
	}
	if err := grammar.CheckConnection(p.settings.LeftID, p.settings.RightID); err != nil {
		return err
	}
	p.posID = id
	return nil
}

func (p *SimpleOovProviderPlugin) ProvideOOV(input *InputText, offset int, hasOtherWords bool) ([]LatticeNode, error) {
	if hasOtherWords {
		return nil, nil
	}
	info := oovWordInfo(input.Slice(offset, offset+1), p.posID)
	return []LatticeNode{
		NewOOVNode(offset, offset+1, p.settings.LeftID, p.settings.RightID, p.settings.Cost, info),
	}, nil
}

// MeCabOovProviderPlugin emits unknown words bounded by runs of the same
// character category, following the per-category policy of char.def:
// Group emits the whole run, Length emits prefixes of 1..Length
// characters, and Invoke does so even where other words exist.
type MeCabOovProviderPlugin struct {
	settings mecabOovSettings

	category *dictionary.CharacterCategory
	oovs     map[dictionary.CategoryType][]mecabOOV
}

type mecabOovSettings struct {
	// UnkDef is a file of unknown word entries, one per line.
	UnkDef string `mapstructure:"unkDef"`
	// Unk lists entries inline: "CATEGORY,left,right,cost,pos1,...,pos6".
	Unk     []string `mapstructure:"unk"`
	UserPOS string   `mapstructure:"userPOS"`
}

type mecabOOV struct {
	leftID  int16
	rightID int16
	cost    int16
	posID   int16
}

// NewMeCabOovProviderPlugin decodes the plugin settings.
func NewMeCabOovProviderPlugin(settings map[string]any) (*MeCabOovProviderPlugin, error) {
	p := &MeCabOovProviderPlugin{oovs: make(map[dictionary.CategoryType][]mecabOOV)}
	if err := DecodeSettings(settings, &p.settings); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *MeCabOovProviderPlugin) SetUp(grammar *dictionary.Grammar) error {
	if grammar.CharCategory == nil {
		return errors.New("no character definition loaded")
	}
	p.category = grammar.CharCategory

	for i, line := range p.settings.Unk {
		if err := p.addUnk(grammar, line); err != nil {
			return fmt.Errorf("unk #%d: %w", i, err)
		}
	}
	if p.settings.UnkDef != "" {
		if err := p.readUnkDef(grammar, p.settings.UnkDef); err != nil {
			return err
		}
	}
	if len(p.oovs) == 0 {
		return errors.New("no unknown word entries (set unk or unkDef)")
	}
	return nil
}

func (p *MeCabOovProviderPlugin) readUnkDef(grammar *dictionary.Grammar, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open unknown word definition: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := p.addUnk(grammar, line); err != nil {
			return &dictionary.ParseError{Path: path, Line: lineNo, Err: err}
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}

func (p *MeCabOovProviderPlugin) addUnk(grammar *dictionary.Grammar, line string) error {
	cols := strings.Split(line, ",")
	if len(cols) != 4+dictionary.POSDepth {
		return fmt.Errorf("%w: want %d columns, got %d", dictionary.ErrInvalidFormat, 4+dictionary.POSDepth, len(cols))
	}
	typ, ok := dictionary.ParseCategoryType(strings.TrimSpace(cols[0]))
	if !ok {
		return fmt.Errorf("%w: unknown category %q", dictionary.ErrInvalidFormat, cols[0])
	}
	if _, ok := p.category.Definition(typ); !ok {
		return fmt.Errorf("%w: category %s is not defined in the character definition", dictionary.ErrInvalidFormat, typ)
	}

	var nums [3]int16
	for i := range nums {
		v, err := strconv.ParseInt(strings.TrimSpace(cols[1+i]), 10, 16)
		if err != nil {
			return fmt.Errorf("%w: %v", dictionary.ErrInvalidFormat, err)
		}
		nums[i] = int16(v)
	}
	if err := grammar.CheckConnection(nums[0], nums[1]); err != nil {
		return err
	}
	posID, err := oovPOSSetting(grammar, cols[4:], p.settings.UserPOS)
	if err != nil {
		return err
	}
	p.oovs[typ] = append(p.oovs[typ], mecabOOV{leftID: nums[0], rightID: nums[1], cost: nums[2], posID: posID})
	return nil
}

func (p *MeCabOovProviderPlugin) ProvideOOV(input *InputText, offset int, hasOtherWords bool) ([]LatticeNode, error) {
	length := input.CategoryRunLength(offset)
	if length == 0 {
		return nil, nil
	}

	var nodes []LatticeNode
	for _, typ := range input.Categories(offset).Each() {
		def, ok := p.category.Definition(typ)
		if !ok {
			continue
		}
		oovs := p.oovs[typ]
		if len(oovs) == 0 {
			continue
		}
		if !def.Invoke && hasOtherWords {
			continue
		}

		limit := length
		if def.Group {
			s := input.Slice(offset, offset+length)
			for _, o := range oovs {
				nodes = append(nodes, p.node(offset, length, s, o))
			}
			limit--
		}
		for n := 1; n <= def.Length && n <= limit; n++ {
			s := input.Slice(offset, offset+n)
			for _, o := range oovs {
				nodes = append(nodes, p.node(offset, n, s, o))
			}
		}
	}
	return nodes, nil
}

func (p *MeCabOovProviderPlugin) node(offset, length int, surface string, o mecabOOV) LatticeNode {
	return NewOOVNode(offset, offset+length, o.leftID, o.rightID, o.cost, oovWordInfo(surface, o.posID))
}
