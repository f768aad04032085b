package kaiseki

import (
	"errors"
	"fmt"

	"github.com/kaiseki-nlp/kaiseki/dictionary"
)

var (
	// ErrTooManyDictionaries is returned by New when more user
	// dictionaries are configured than word ids can address.
	ErrTooManyDictionaries = dictionary.ErrTooManyDictionaries

	// ErrInvalidPluginFormat marks a plugin descriptor or settings value
	// of the wrong shape.
	ErrInvalidPluginFormat = errors.New("invalid configuration format")

	// ErrInvalidUTF8 is returned for input text that is not valid UTF-8.
	ErrInvalidUTF8 = errors.New("input is not valid UTF-8")

	// ErrUnreachableEOS means no path connects the start and the end of
	// the lattice.
	ErrUnreachableEOS = errors.New("lattice: EOS is unreachable")
)

// Plugin chain names used in errors and logs.
const (
	ChainInputText   = "input_text"
	ChainOovProvider = "oov_provider"
	ChainPathRewrite = "path_rewrite"
)

// UnknownPluginError is returned when a descriptor names a plugin class
// that is not registered for its chain.
type UnknownPluginError struct {
	Chain string
	Class string
}

func (e *UnknownPluginError) Error() string {
	return fmt.Sprintf("%s: unknown plugin class %q", e.Chain, e.Class)
}

// PluginSetupError wraps a failure of a plugin to build or set itself up.
type PluginSetupError struct {
	Chain string
	Class string
	Err   error
}

func (e *PluginSetupError) Error() string {
	return fmt.Sprintf("%s: set up %s: %v", e.Chain, e.Class, e.Err)
}

func (e *PluginSetupError) Unwrap() error { return e.Err }

// LatticeCoverageError reports an offset of the normalized text where
// neither the lexicons nor the OOV providers produced a word.
type LatticeCoverageError struct {
	Offset int
}

func (e *LatticeCoverageError) Error() string {
	return fmt.Sprintf("lattice: no morpheme covers offset %d", e.Offset)
}
