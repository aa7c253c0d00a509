package domain

import "errors"

var ErrNotFound = errors.New("venue: not found")

// ValidationError marks a raw record that cannot be normalized. It is fatal
// for that single record only; batch imports count it and move on.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return "missing required field: " + e.Field
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
