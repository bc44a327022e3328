// Package compileerr defines the CompileError taxonomy from spec §7: every
// stage from lexing through semantic resolution reports errors in this
// shape so the TUI status bar (an external collaborator) can highlight the
// offending span without knowing which stage produced it. CompileErrors
// never abort the program — see spec §7's propagation policy.
package compileerr

import "fmt"

// Category distinguishes which pipeline stage raised the error.
type Category int

const (
	LexError Category = iota
	ParseError
	ResolutionError
	SemanticError
)

func (c Category) String() string {
	switch c {
	case LexError:
		return "LexError"
	case ParseError:
		return "ParseError"
	case ResolutionError:
		return "ResolutionError"
	case SemanticError:
		return "SemanticError"
	default:
		return "CompileError"
	}
}

// Span is a source location; duplicated from ast.Span rather than imported
// so this package has zero internal dependencies and every stage (lexer,
// parser, compiler) can depend on it without risking a cycle.
type Span struct {
	Line, Col, Len int
}

// CompileError is a single reported problem, carrying one or more spans
// (a resolution error about a dangling reference may want to show both the
// reference and the declaration site) and a short human message.
type CompileError struct {
	Category Category
	Spans    []Span
	Message  string
}

func (e CompileError) Error() string {
	if len(e.Spans) == 0 {
		return fmt.Sprintf("%s: %s", e.Category, e.Message)
	}
	s := e.Spans[0]
	return fmt.Sprintf("%s at %d:%d: %s", e.Category, s.Line, s.Col, e.Message)
}

// New builds a CompileError with a single span.
func New(cat Category, span Span, format string, args ...any) CompileError {
	return CompileError{Category: cat, Spans: []Span{span}, Message: fmt.Sprintf(format, args...)}
}

// List accumulates multiple CompileErrors across a single compile pass —
// the parser keeps collecting after a recovery point instead of stopping
// at the first error (spec §4.D: "the parser recovers to the next
// top-level keyword to collect multiple errors per compile").
type List []CompileError

func (l List) Error() string {
	if len(l) == 0 {
		return "no errors"
	}
	s := l[0].Error()
	if len(l) > 1 {
		s += fmt.Sprintf(" (+%d more)", len(l)-1)
	}
	return s
}

// HasErrors reports whether the list is non-empty.
func (l List) HasErrors() bool { return len(l) > 0 }
