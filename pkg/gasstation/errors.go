package gasstation

import (
	"fmt"

	"github.com/go-faster/errors"
)

var (
	ErrInvalidBudget   = errors.New("invalid gas budget")
	ErrInvalidDuration = errors.New("invalid reservation duration")
	ErrEmptyResult     = errors.New("gas station returned an empty result")
)

// Error is a failure reported by the gas station itself,
// either with a non-2xx status or with a non-empty "error" field.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("gas station error (status %d): %s", e.StatusCode, e.Message)
}
