package kaiseki

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/mitchellh/mapstructure"

	"github.com/kaiseki-nlp/kaiseki/dictionary"
)

// InputTextPlugin rewrites the input text before the lattice is built.
type InputTextPlugin interface {
	SetUp(grammar *dictionary.Grammar) error
	Rewrite(b *InputTextBuilder) error
}

// OovProviderPlugin synthesizes candidate words at an offset.
// hasOtherWords tells whether the lexicons or an earlier provider already
// produced a candidate there. Every returned node must begin at offset.
type OovProviderPlugin interface {
	SetUp(grammar *dictionary.Grammar) error
	ProvideOOV(input *InputText, offset int, hasOtherWords bool) ([]LatticeNode, error)
}

// PathRewritePlugin rewrites the best path after the search. It may use
// the lattice to look up alternative nodes.
type PathRewritePlugin interface {
	SetUp(grammar *dictionary.Grammar) error
	Rewrite(input *InputText, path []*LatticeNode, lattice *Lattice) ([]*LatticeNode, error)
}

// PluginDescriptor configures one plugin: the "class" key names it and
// the remaining keys are its settings.
type PluginDescriptor map[string]any

// ClassKey is the descriptor key naming the plugin class.
const ClassKey = "class"

// Class returns the plugin class, or "" when the key is absent or not a
// string.
func (d PluginDescriptor) Class() string {
	s, _ := d[ClassKey].(string)
	return s
}

// Settings returns the descriptor without its class key.
func (d PluginDescriptor) Settings() map[string]any {
	out := make(map[string]any, len(d))
	for k, v := range d {
		if k != ClassKey {
			out[k] = v
		}
	}
	return out
}

type setUpper interface {
	SetUp(grammar *dictionary.Grammar) error
}

// PluginFactory builds a plugin from its settings.
type PluginFactory[P any] func(settings map[string]any) (P, error)

type pluginRegistry[P setUpper] struct {
	chain string

	mu        sync.RWMutex
	factories map[string]PluginFactory[P]
}

func newPluginRegistry[P setUpper](chain string) *pluginRegistry[P] {
	return &pluginRegistry[P]{chain: chain, factories: make(map[string]PluginFactory[P])}
}

func (r *pluginRegistry[P]) register(f PluginFactory[P], names ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range names {
		r.factories[n] = f
	}
}

func (r *pluginRegistry[P]) names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for n := range r.factories {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// build creates and sets up the plugins of a chain, in order.
func (r *pluginRegistry[P]) build(descs []PluginDescriptor, grammar *dictionary.Grammar) ([]P, error) {
	plugins := make([]P, 0, len(descs))
	for i, d := range descs {
		raw, ok := d[ClassKey]
		if !ok {
			return nil, fmt.Errorf("%s plugin #%d: missing %q: %w", r.chain, i, ClassKey, ErrInvalidPluginFormat)
		}
		class, ok := raw.(string)
		if !ok || class == "" {
			return nil, fmt.Errorf("%s plugin #%d: %q must be a non-empty string: %w", r.chain, i, ClassKey, ErrInvalidPluginFormat)
		}

		r.mu.RLock()
		f, ok := r.factories[class]
		r.mu.RUnlock()
		if !ok {
			return nil, &UnknownPluginError{Chain: r.chain, Class: class}
		}

		p, err := f(d.Settings())
		if err != nil {
			return nil, &PluginSetupError{Chain: r.chain, Class: class, Err: err}
		}
		if err := p.SetUp(grammar); err != nil {
			return nil, &PluginSetupError{Chain: r.chain, Class: class, Err: err}
		}
		plugins = append(plugins, p)
	}
	return plugins, nil
}

var (
	inputTextPlugins   = newPluginRegistry[InputTextPlugin](ChainInputText)
	oovProviderPlugins = newPluginRegistry[OovProviderPlugin](ChainOovProvider)
	pathRewritePlugins = newPluginRegistry[PathRewritePlugin](ChainPathRewrite)
)

// RegisterInputTextPlugin makes an input text plugin available under the
// given class names. Registering a name again replaces it.
func RegisterInputTextPlugin(f PluginFactory[InputTextPlugin], names ...string) {
	inputTextPlugins.register(f, names...)
}

// RegisterOovProviderPlugin makes an OOV provider available under the
// given class names.
func RegisterOovProviderPlugin(f PluginFactory[OovProviderPlugin], names ...string) {
	oovProviderPlugins.register(f, names...)
}

// RegisterPathRewritePlugin makes a path rewrite plugin available under
// the given class names.
func RegisterPathRewritePlugin(f PluginFactory[PathRewritePlugin], names ...string) {
	pathRewritePlugins.register(f, names...)
}

// PluginClasses lists the registered class names per chain.
func PluginClasses() map[string][]string {
	return map[string][]string{
		ChainInputText:   inputTextPlugins.names(),
		ChainOovProvider: oovProviderPlugins.names(),
		ChainPathRewrite: pathRewritePlugins.names(),
	}
}

// classNames returns a plugin's short name with the fully qualified alias
// used by sudachi configuration files.
func classNames(short string) []string {
	return []string{short, "com.worksap.nlp.sudachi." + short}
}

// DecodeSettings decodes plugin settings into out, a pointer to a struct
// with mapstructure tags. Unknown keys are rejected; fields absent from
// settings keep their value.
func DecodeSettings(settings map[string]any, out any) error {
	if len(settings) == 0 {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		ZeroFields:       true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(settings); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPluginFormat, err)
	}
	return nil
}

// oovPOSSetting resolves the POS an OOV plugin assigns. With userPOS
// "allow" an unknown tuple is added to the grammar.
func oovPOSSetting(grammar *dictionary.Grammar, pos []string, userPOS string) (int16, error) {
	if len(pos) == 0 {
		return 0, errors.New("oovPOS is not specified")
	}
	if len(pos) != dictionary.POSDepth {
		return 0, fmt.Errorf("oovPOS %v must have %d fields", pos, dictionary.POSDepth)
	}
	if id := grammar.POSID(pos...); id >= 0 {
		return id, nil
	}
	switch strings.ToLower(userPOS) {
	case "allow":
		return grammar.RegisterPOS(pos), nil
	case "", "forbid":
		return 0, fmt.Errorf("oovPOS %s is not in the grammar", strings.Join(pos, ","))
	default:
		return 0, fmt.Errorf("userPOS must be \"allow\" or \"forbid\", got %q", userPOS)
	}
}

// ConcatenateNodes replaces path[begin:end] with a single dictionary-less
// node whose forms are the concatenation of the replaced ones. An empty
// normalizedForm concatenates the normalized forms too.
func ConcatenateNodes(path []*LatticeNode, begin, end int, lattice *Lattice, normalizedForm string) ([]*LatticeNode, error) {
	if begin >= end || begin < 0 || end > len(path) {
		return nil, fmt.Errorf("concatenate [%d, %d) of a %d node path", begin, end, len(path))
	}
	var surface, normalized, dictForm, reading strings.Builder
	var length int16
	first := path[begin]
	firstInfo, err := lattice.WordInfo(first)
	if err != nil {
		return nil, err
	}
	for _, n := range path[begin:end] {
		info, err := lattice.WordInfo(n)
		if err != nil {
			return nil, err
		}
		surface.WriteString(info.Surface)
		normalized.WriteString(info.NormalizedForm)
		dictForm.WriteString(info.DictionaryForm)
		reading.WriteString(info.ReadingForm)
		length += info.HeadwordLength
	}
	if normalizedForm == "" {
		normalizedForm = normalized.String()
	}
	info := dictionary.WordInfo{
		Surface:        surface.String(),
		HeadwordLength: length,
		POSID:          firstInfo.POSID,
		NormalizedForm: normalizedForm,
		DictionaryForm: dictForm.String(),
		ReadingForm:    reading.String(),
	}
	n := joinedNode(lattice.grammar, path[begin:end], info, false)
	return replaceNodes(path, begin, end, n), nil
}

// ConcatenateOOV replaces path[begin:end] with one node. A lattice node
// spanning the same range is reused when there is one; otherwise an OOV
// node with the given POS is synthesized.
func ConcatenateOOV(path []*LatticeNode, begin, end int, posID int16, lattice *Lattice) ([]*LatticeNode, error) {
	if begin >= end || begin < 0 || end > len(path) {
		return nil, fmt.Errorf("concatenate [%d, %d) of a %d node path", begin, end, len(path))
	}
	if n := lattice.MinimumNode(path[begin].Begin, path[end-1].End); n != nil {
		return replaceNodes(path, begin, end, lattice.reconnect(n, path[:begin])), nil
	}

	var surface strings.Builder
	var length int16
	for _, n := range path[begin:end] {
		info, err := lattice.WordInfo(n)
		if err != nil {
			return nil, err
		}
		surface.WriteString(info.Surface)
		length += info.HeadwordLength
	}
	s := surface.String()
	info := dictionary.WordInfo{
		Surface:        s,
		HeadwordLength: length,
		POSID:          posID,
		NormalizedForm: s,
		DictionaryForm: s,
	}
	n := joinedNode(lattice.grammar, path[begin:end], info, true)
	return replaceNodes(path, begin, end, n), nil
}

// joinedNode builds the node standing for nodes. Its cost is the path
// cost it replaces so the internal cost of the path is unchanged.
func joinedNode(grammar *dictionary.Grammar, nodes []*LatticeNode, info dictionary.WordInfo, oov bool) *LatticeNode {
	first, last := nodes[0], nodes[len(nodes)-1]
	n := NewOOVNode(first.Begin, last.End, first.LeftID, last.RightID, clampCost(pathCost(grammar, nodes)), info)
	n.OOV = oov
	n.totalCost = last.totalCost
	n.connected = true
	return &n
}

func replaceNodes(path []*LatticeNode, begin, end int, n *LatticeNode) []*LatticeNode {
	out := make([]*LatticeNode, 0, len(path)-(end-begin)+1)
	out = append(out, path[:begin]...)
	out = append(out, n)
	return append(out, path[end:]...)
}
