// Package kaiseki provides dictionary-driven morphological analysis:
// text is split into morphemes by a minimum-cost search over a lattice of
// lexicon words and synthesized unknown words.
//
// A Dictionary loads the grammar, the lexicons and the plugins once.
// Tokenizers created from it share that data read-only and can be used
// from any number of goroutines.
package kaiseki

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/kaiseki-nlp/kaiseki/dictionary"
)

// Dictionary holds all loaded data and hands out Tokenizers.
type Dictionary struct {
	grammar *dictionary.Grammar
	lexicon *dictionary.LexiconSet

	inputTextPlugins   []InputTextPlugin
	oovProviderPlugins []OovProviderPlugin
	pathRewritePlugins []PathRewritePlugin
}

// New loads the system dictionary and character definition, sets up the
// plugins, then calibrates and merges every user dictionary in order.
// Any failure aborts construction.
func New(cfg Config) (*Dictionary, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()

	system, err := dictionary.ReadSystemDictionary(cfg.SystemDict)
	if err != nil {
		return nil, fmt.Errorf("load system dictionary: %w", err)
	}
	grammar := system.Grammar
	logger.Debug("system dictionary loaded",
		"path", cfg.SystemDict,
		"words", system.Lexicon.Size(),
		"pos", grammar.POSSize())

	if cfg.CharDef != "" {
		if grammar.CharCategory, err = dictionary.ReadCharacterDefinitionFile(cfg.CharDef); err != nil {
			return nil, fmt.Errorf("load character definition: %w", err)
		}
	} else {
		grammar.CharCategory = dictionary.NewCharacterCategory()
	}

	d := &Dictionary{
		grammar: grammar,
		lexicon: dictionary.NewLexiconSet(system.Lexicon, grammar.SystemPOSSize()),
	}

	if d.inputTextPlugins, err = inputTextPlugins.build(cfg.InputTextPlugins, grammar); err != nil {
		return nil, err
	}
	oovDescs := cfg.OovProviderPlugins
	if len(oovDescs) == 0 {
		logger.Info("no oov provider configured, using the default one")
		oovDescs = []PluginDescriptor{defaultOovProvider()}
	}
	if d.oovProviderPlugins, err = oovProviderPlugins.build(oovDescs, grammar); err != nil {
		return nil, err
	}

	for _, path := range cfg.UserDicts {
		dictID, err := d.addUserDictionary(path)
		if err != nil {
			return nil, err
		}
		logger.Info("user dictionary merged", "path", path, "dict_id", dictID)
	}

	if d.pathRewritePlugins, err = pathRewritePlugins.build(cfg.PathRewritePlugins, grammar); err != nil {
		return nil, err
	}

	logger.Info("dictionary ready",
		"dictionaries", d.lexicon.Len(),
		"words", d.lexicon.Size(),
		"pos", grammar.POSSize(),
		"plugins", len(d.inputTextPlugins)+len(d.oovProviderPlugins)+len(d.pathRewritePlugins),
		"elapsed_ms", time.Since(start).Milliseconds())
	return d, nil
}

// addUserDictionary loads path, fills in the costs it leaves unset by
// tokenizing each surface with the dictionary as merged so far, and
// appends it to the lexicon set.
func (d *Dictionary) addUserDictionary(path string) (int, error) {
	if d.lexicon.IsFull() {
		return 0, fmt.Errorf("user dictionary %s: %w", path, ErrTooManyDictionaries)
	}
	user, err := dictionary.ReadUserDictionary(path, d.grammar)
	if err != nil {
		return 0, fmt.Errorf("load user dictionary: %w", err)
	}

	calibrator := &Tokenizer{
		grammar:            d.grammar,
		lexicon:            d.lexicon,
		inputTextPlugins:   d.inputTextPlugins,
		oovProviderPlugins: d.oovProviderPlugins,
	}
	if err := user.Lexicon.CalculateCost(calibrator.estimateCost); err != nil {
		return 0, fmt.Errorf("user dictionary %s: %w", path, err)
	}

	dictID, err := d.lexicon.Add(user.Lexicon, d.grammar.POSSize())
	if err != nil {
		return 0, fmt.Errorf("user dictionary %s: %w", path, err)
	}
	d.grammar.AddPOSList(user.Grammar)
	return dictID, nil
}

// Create returns a Tokenizer sharing the dictionary's data.
func (d *Dictionary) Create(opts ...TokenizerOption) *Tokenizer {
	t := &Tokenizer{
		grammar:            d.grammar,
		lexicon:            d.lexicon,
		inputTextPlugins:   d.inputTextPlugins,
		oovProviderPlugins: d.oovProviderPlugins,
		pathRewritePlugins: d.pathRewritePlugins,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// POSSize returns the number of POS entries, user dictionaries included.
func (d *Dictionary) POSSize() int {
	return d.grammar.POSSize()
}

// POSString returns the POS tuple for id, or nil when id is unknown.
func (d *Dictionary) POSString(id int16) dictionary.POS {
	return d.grammar.POSString(id)
}

// POSID returns the id of a POS tuple, or -1.
func (d *Dictionary) POSID(pos ...string) int16 {
	return d.grammar.POSID(pos...)
}

// DictionaryCount returns the number of loaded dictionaries, the system
// dictionary included.
func (d *Dictionary) DictionaryCount() int {
	return d.lexicon.Len()
}

// WordCount returns the number of entries across all dictionaries.
func (d *Dictionary) WordCount() int {
	return d.lexicon.Size()
}
