// Package errors provides source-location-aware errors shared by the
// lexer and parser.
package errors

import (
	"fmt"
	"strings"
)

// Kind classifies where in the expression pipeline an error originated.
type Kind string

const (
	LexErrorKind   Kind = "LexError"
	ParseErrorKind Kind = "ParseError"
	TypeErrorKind  Kind = "TypeError"
	EvalErrorKind  Kind = "EvalError"
)

// Location pinpoints an error within the expression text.
type Location struct {
	Column int
}

// ProbeError is a located error produced while lexing, parsing, or typing
// an expression.
type ProbeError struct {
	Kind     Kind
	Message  string
	Location Location
	Source   string // the offending expression text, for display
}

func (e *ProbeError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s: %s", e.Kind, e.Message))
	if e.Location.Column > 0 {
		sb.WriteString(fmt.Sprintf(" (col %d)", e.Location.Column))
	}
	if e.Source != "" {
		sb.WriteString(fmt.Sprintf("\n  %s\n  %s^", e.Source, strings.Repeat(" ", maxInt(0, e.Location.Column-1))))
	}
	return sb.String()
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func NewLexError(message string, column int) *ProbeError {
	return &ProbeError{Kind: LexErrorKind, Message: message, Location: Location{Column: column}}
}

func NewParseError(message string, column int) *ProbeError {
	return &ProbeError{Kind: ParseErrorKind, Message: message, Location: Location{Column: column}}
}

func NewTypeError(message string, column int) *ProbeError {
	return &ProbeError{Kind: TypeErrorKind, Message: message, Location: Location{Column: column}}
}

// WithSource attaches the source text for display, mirroring the
// caret-style diagnostics used throughout the parser.
func (e *ProbeError) WithSource(source string) *ProbeError {
	e.Source = source
	return e
}
