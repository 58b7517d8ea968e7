package sponsor

import (
	"fmt"
	"strings"

	"github.com/go-faster/errors"
)

// Kind is a category of submission failure. Callers map kinds to user facing messages.
type Kind string

const (
	KindInvalidRequest       Kind = "InvalidRequest"
	KindReservationFailure   Kind = "ReservationFailure"
	KindReservationExpired   Kind = "ReservationExpired"
	KindSerializationFailure Kind = "SerializationFailure"
	KindSignatureRejected    Kind = "SignatureRejected"
	KindExecutionFailure     Kind = "ExecutionFailure"
	KindNetworkFailure       Kind = "NetworkFailure"
)

var ErrReservationReused = errors.New("gas reservation was already consumed")

// SubmitError describes at which step a submission stopped and why.
type SubmitError struct {
	Kind Kind
	// Op is the pipeline step that failed: validate, reserve, build, sign, execute or effects.
	Op  string
	Err error
	// Payload is the error text returned by the gas station or the failed transaction status.
	Payload   string
	AbortCode uint64
	Aborted   bool
}

func (e *SubmitError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%v at %v", e.Kind, e.Op)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if e.Aborted {
		fmt.Fprintf(&b, " (abort code %d)", e.AbortCode)
	}
	return b.String()
}

func (e *SubmitError) Unwrap() error {
	return e.Err
}

func newError(kind Kind, op string, err error) *SubmitError {
	return &SubmitError{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of a submission error or an empty string for any other error.
func KindOf(err error) Kind {
	var e *SubmitError
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Retryable reports whether calling Submit again is safe without user action.
// Failures after the reservation was consumed are never retryable.
func Retryable(err error) bool {
	var e *SubmitError
	if !errors.As(err, &e) {
		return false
	}
	switch e.Kind {
	case KindReservationFailure, KindReservationExpired:
		return true
	case KindNetworkFailure:
		return e.Op != "execute"
	}
	return false
}
