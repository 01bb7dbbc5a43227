package tissvalidator

import (
	"errors"
	"fmt"
)

// ErrEmptyInput is returned when a document has no content at all.
var ErrEmptyInput = errors.New("empty document")

// ParseError reports a document that is not well-formed XML.
// No partial tree is ever returned alongside a ParseError.
type ParseError struct {
	Line   int
	Column int
	Err    error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d, column %d: %v", e.Line, e.Column, e.Err)
	}
	return e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
