package kaiseki

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/kaiseki-nlp/kaiseki/dictionary"
)

func init() {
	RegisterPathRewritePlugin(func(s map[string]any) (PathRewritePlugin, error) {
		return NewJoinKatakanaOovPlugin(s)
	}, classNames("JoinKatakanaOovPlugin")...)
	RegisterPathRewritePlugin(func(s map[string]any) (PathRewritePlugin, error) {
		return NewJoinNumericPlugin(s)
	}, classNames("JoinNumericPlugin")...)
}

// JoinKatakanaOovPlugin merges a run of katakana nodes containing an OOV
// node, or a node shorter than minLength, into one word.
type JoinKatakanaOovPlugin struct {
	settings joinKatakanaSettings
	posID    int16
}

type joinKatakanaSettings struct {
	OovPOS    []string `mapstructure:"oovPOS"`
	MinLength int      `mapstructure:"minLength"`
	UserPOS   string   `mapstructure:"userPOS"`
}

// NewJoinKatakanaOovPlugin decodes the plugin settings. minLength
// defaults to 1.
func NewJoinKatakanaOovPlugin(settings map[string]any) (*JoinKatakanaOovPlugin, error) {
	p := &JoinKatakanaOovPlugin{settings: joinKatakanaSettings{MinLength: 1}}
	if err := DecodeSettings(settings, &p.settings); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *JoinKatakanaOovPlugin) SetUp(grammar *dictionary.Grammar) error {
	if p.settings.MinLength < 0 {
		return fmt.Errorf("minLength %d is negative", p.settings.MinLength)
	}
	id, err := oovPOSSetting(grammar, p.settings.OovPOS, p.settings.UserPOS)
	if err != nil {
		return err
	}
	p.posID = id
	return nil
}

func (p *JoinKatakanaOovPlugin) Rewrite(input *InputText, path []*LatticeNode, lattice *Lattice) ([]*LatticeNode, error) {
	isKatakana := func(n *LatticeNode) bool {
		return input.CategoriesBetween(n.Begin, n.End).Has(dictionary.Katakana)
	}
	canOovBow := func(n *LatticeNode) bool {
		return !input.Categories(n.Begin).Has(dictionary.NoOOVBOW)
	}

	for i := 0; i < len(path); i++ {
		n := path[i]
		if !(n.OOV || n.End-n.Begin < p.settings.MinLength) || !isKatakana(n) {
			continue
		}
		begin := i
		for begin > 0 && isKatakana(path[begin-1]) {
			begin--
		}
		end := i + 1
		for end < len(path) && isKatakana(path[end]) {
			end++
		}
		for begin != end && !canOovBow(path[begin]) {
			begin++
		}
		if end-begin > 1 {
			var err error
			if path, err = ConcatenateOOV(path, begin, end, p.posID, lattice); err != nil {
				return nil, err
			}
			i = begin
		}
	}
	return path, nil
}

// JoinNumericPlugin merges runs of numeric nodes into one word. With
// enableNormalize the normalized form is the NFKC number without leading
// zeros.
type JoinNumericPlugin struct {
	settings joinNumericSettings
}

type joinNumericSettings struct {
	EnableNormalize bool `mapstructure:"enableNormalize"`
}

// NewJoinNumericPlugin decodes the plugin settings. enableNormalize
// defaults to true.
func NewJoinNumericPlugin(settings map[string]any) (*JoinNumericPlugin, error) {
	p := &JoinNumericPlugin{settings: joinNumericSettings{EnableNormalize: true}}
	if err := DecodeSettings(settings, &p.settings); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *JoinNumericPlugin) SetUp(*dictionary.Grammar) error {
	return nil
}

func (p *JoinNumericPlugin) Rewrite(input *InputText, path []*LatticeNode, lattice *Lattice) ([]*LatticeNode, error) {
	isNumeric := func(n *LatticeNode) bool {
		return input.CategoriesBetween(n.Begin, n.End).Has(dictionary.Numeric)
	}

	for i := 0; i < len(path); i++ {
		if !isNumeric(path[i]) {
			continue
		}
		end := i + 1
		for end < len(path) && isNumeric(path[end]) {
			end++
		}
		if end-i < 2 {
			continue
		}
		normalized := ""
		if p.settings.EnableNormalize {
			normalized = normalizeNumber(input.Slice(path[i].Begin, path[end-1].End))
		}
		var err error
		if path, err = ConcatenateNodes(path, i, end, lattice, normalized); err != nil {
			return nil, err
		}
	}
	return path, nil
}

func normalizeNumber(s string) string {
	s = strings.TrimLeft(norm.NFKC.String(s), "0")
	if s == "" {
		return "0"
	}
	return s
}
