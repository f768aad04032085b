package kaiseki

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/kaiseki-nlp/kaiseki/dictionary"
)

func init() {
	RegisterInputTextPlugin(func(s map[string]any) (InputTextPlugin, error) {
		return NewDefaultInputTextPlugin(s)
	}, classNames("DefaultInputTextPlugin")...)
	RegisterInputTextPlugin(func(s map[string]any) (InputTextPlugin, error) {
		return NewProlongedSoundMarkInputTextPlugin(s)
	}, classNames("ProlongedSoundMarkInputTextPlugin")...)
}

type textEdit struct {
	begin, end int
	str        string
}

// applyEdits applies non-overlapping edits given in text order.
func applyEdits(b *InputTextBuilder, edits []textEdit) error {
	for i := len(edits) - 1; i >= 0; i-- {
		e := edits[i]
		if err := b.Replace(e.begin, e.end, e.str); err != nil {
			return err
		}
	}
	return nil
}

// DefaultInputTextPlugin lower-cases and NFKC-normalizes the text one
// character at a time. Characters listed as ignored are kept verbatim and
// the replacement table takes precedence over normalization.
type DefaultInputTextPlugin struct {
	settings defaultInputTextSettings

	ignore    map[rune]bool
	replace   map[string]string
	maxKeyLen int
}

type defaultInputTextSettings struct {
	// RewriteDef is a file of rewrite rules: a line with one character
	// adds it to the ignore list, a line "from to" adds a replacement.
	RewriteDef string            `mapstructure:"rewriteDef"`
	Ignore     []string          `mapstructure:"ignore"`
	Replace    map[string]string `mapstructure:"replace"`
}

// NewDefaultInputTextPlugin decodes the plugin settings.
func NewDefaultInputTextPlugin(settings map[string]any) (*DefaultInputTextPlugin, error) {
	p := &DefaultInputTextPlugin{
		ignore:  make(map[rune]bool),
		replace: make(map[string]string),
	}
	if err := DecodeSettings(settings, &p.settings); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *DefaultInputTextPlugin) SetUp(*dictionary.Grammar) error {
	for _, s := range p.settings.Ignore {
		if err := p.addIgnore(s); err != nil {
			return err
		}
	}
	for from, to := range p.settings.Replace {
		if err := p.addReplace(from, to); err != nil {
			return err
		}
	}
	if p.settings.RewriteDef != "" {
		if err := p.readRewriteDef(p.settings.RewriteDef); err != nil {
			return err
		}
	}
	return nil
}

func (p *DefaultInputTextPlugin) addIgnore(s string) error {
	if utf8.RuneCountInString(s) != 1 {
		return fmt.Errorf("ignored entry %q must be a single character", s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	p.ignore[r] = true
	return nil
}

func (p *DefaultInputTextPlugin) addReplace(from, to string) error {
	if from == "" {
		return fmt.Errorf("empty replacement key for %q", to)
	}
	if _, dup := p.replace[from]; dup {
		return fmt.Errorf("%q is already defined", from)
	}
	p.replace[from] = to
	p.maxKeyLen = max(p.maxKeyLen, utf8.RuneCountInString(from))
	return nil
}

func (p *DefaultInputTextPlugin) readRewriteDef(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open rewrite definition: %w", err)
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
		cols := strings.Fields(line)
		switch len(cols) {
		case 1:
			err = p.addIgnore(cols[0])
		case 2:
			err = p.addReplace(cols[0], cols[1])
		default:
			err = fmt.Errorf("want 1 or 2 columns, got %d", len(cols))
		}
		if err != nil {
			return &dictionary.ParseError{Path: path, Line: lineNo, Err: fmt.Errorf("%w: %w", dictionary.ErrInvalidFormat, err)}
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}

func (p *DefaultInputTextPlugin) Rewrite(b *InputTextBuilder) error {
	text := b.Runes()
	var edits []textEdit
	for i := 0; i < len(text); {
		if n, to, ok := p.longestReplacement(text[i:]); ok {
			edits = append(edits, textEdit{begin: i, end: i + n, str: to})
			i += n
			continue
		}
		r := text[i]
		if !p.ignore[r] {
			s := string(r)
			if n := norm.NFKC.String(strings.ToLower(s)); n != s {
				edits = append(edits, textEdit{begin: i, end: i + 1, str: n})
			}
		}
		i++
	}
	return applyEdits(b, edits)
}

func (p *DefaultInputTextPlugin) longestReplacement(text []rune) (int, string, bool) {
	for n := min(p.maxKeyLen, len(text)); n > 0; n-- {
		if to, ok := p.replace[string(text[:n])]; ok {
			return n, to, true
		}
	}
	return 0, "", false
}

// ProlongedSoundMarkInputTextPlugin collapses runs of prolonged sound
// marks into a single replacement symbol.
type ProlongedSoundMarkInputTextPlugin struct {
	settings prolongedSoundMarkSettings

	marks map[rune]bool
}

type prolongedSoundMarkSettings struct {
	ProlongedSoundMarks []string `mapstructure:"prolongedSoundMarks"`
	ReplacementSymbol   string   `mapstructure:"replacementSymbol"`
}

// NewProlongedSoundMarkInputTextPlugin decodes the plugin settings. By
// default only "ー" is a mark and it is also the replacement.
func NewProlongedSoundMarkInputTextPlugin(settings map[string]any) (*ProlongedSoundMarkInputTextPlugin, error) {
	p := &ProlongedSoundMarkInputTextPlugin{
		settings: prolongedSoundMarkSettings{
			ProlongedSoundMarks: []string{"ー"},
			ReplacementSymbol:   "ー",
		},
		marks: make(map[rune]bool),
	}
	if err := DecodeSettings(settings, &p.settings); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *ProlongedSoundMarkInputTextPlugin) SetUp(*dictionary.Grammar) error {
	for _, m := range p.settings.ProlongedSoundMarks {
		if utf8.RuneCountInString(m) != 1 {
			return fmt.Errorf("prolonged sound mark %q must be a single character", m)
		}
		r, _ := utf8.DecodeRuneInString(m)
		p.marks[r] = true
	}
	if p.settings.ReplacementSymbol == "" {
		return fmt.Errorf("replacementSymbol is empty")
	}
	return nil
}

func (p *ProlongedSoundMarkInputTextPlugin) Rewrite(b *InputTextBuilder) error {
	text := b.Runes()
	var edits []textEdit
	for i := 0; i < len(text); {
		if !p.marks[text[i]] {
			i++
			continue
		}
		j := i + 1
		for j < len(text) && p.marks[text[j]] {
			j++
		}
		if j-i > 1 {
			edits = append(edits, textEdit{begin: i, end: j, str: p.settings.ReplacementSymbol})
		}
		i = j
	}
	return applyEdits(b, edits)
}
