package domain

import "fmt"

// ValidationError reports user input refused by an entity operation. The
// message is meant to be shown to the user as-is; the mutation did not happen.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func validationErrorf(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ParseError reports a document payload that could not be decoded. The
// in-memory state is untouched when it is returned.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return "invalid document JSON: " + e.Err.Error() }

func (e *ParseError) Unwrap() error { return e.Err }
