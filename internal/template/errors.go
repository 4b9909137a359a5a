package template

import "fmt"

// UnsupportedDialectError is returned when a marker names an unknown dialect.
type UnsupportedDialectError struct {
	Dialect string
}

func (e *UnsupportedDialectError) Error() string {
	return fmt.Sprintf("unsupported template type: %s", e.Dialect)
}

// MissingVariableError is returned by format-string rendering for a
// placeholder without a value.
type MissingVariableError struct {
	Name string
	Line int
}

func (e *MissingVariableError) Error() string {
	return fmt.Sprintf("line %d: no value for template variable %q", e.Line, e.Name)
}

// SyntaxError reports a malformed format-string placeholder.
type SyntaxError struct {
	Line   int
	Reason string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}
