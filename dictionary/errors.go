package dictionary

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidFormat marks a malformed dictionary or definition resource.
	ErrInvalidFormat = errors.New("invalid format")

	// ErrUndefinedConnection is returned when an entry references a
	// connection id outside the grammar's cost matrix.
	ErrUndefinedConnection = errors.New("undefined connection id")

	// ErrTooManyDictionaries is returned when a LexiconSet is already at
	// MaxDictionaries and another lexicon is added.
	ErrTooManyDictionaries = errors.New("too many dictionaries")
)

// ParseError reports the resource and line where loading failed.
type ParseError struct {
	Path string
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// malformed builds a ParseError wrapping ErrInvalidFormat.
func malformed(path string, line int, format string, args ...any) *ParseError {
	return &ParseError{
		Path: path,
		Line: line,
		Err:  fmt.Errorf("%w: %s", ErrInvalidFormat, fmt.Sprintf(format, args...)),
	}
}
