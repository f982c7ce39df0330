package extraction

import (
	"errors"
	"fmt"
)

// Sentinel errors for input that prevents an audit from running.
var (
	ErrEmptyText            = errors.New("extraction: empty document text")
	ErrEmptyFileName        = errors.New("extraction: empty file name")
	ErrMissingAdmissionDate = errors.New("extraction: admission date not found")
)

// InputError describes a fatal input condition. It unwraps to one of the
// sentinel errors so callers can branch with errors.Is.
type InputError struct {
	Field   string
	Code    string
	Message string
	Cause   error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *InputError) Unwrap() error {
	return e.Cause
}

func newInputError(field, code, message string, cause error) *InputError {
	return &InputError{Field: field, Code: code, Message: message, Cause: cause}
}

// IsInputError reports whether err is a fatal input condition.
func IsInputError(err error) bool {
	var ie *InputError
	return errors.As(err, &ie)
}
