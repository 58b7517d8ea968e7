package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-faster/errors"

	"github.com/iota-community/workshops/pkg/core"
	"github.com/iota-community/workshops/pkg/i18n"
	"github.com/iota-community/workshops/pkg/sentry"
	"github.com/iota-community/workshops/pkg/sponsor"
	"github.com/iota-community/workshops/pkg/wallet"
)

type errorDetails struct {
	Op        string  `json:"op,omitempty"`
	Payload   string  `json:"payload,omitempty"`
	AbortCode *uint64 `json:"abort_code,omitempty"`
	Retryable bool    `json:"retryable"`
}

type errorJSON struct {
	Error   string        `json:"error"`
	Kind    string        `json:"kind"`
	Details *errorDetails `json:"details,omitempty"`
}

var kindStatusCodes = map[sponsor.Kind]int{
	sponsor.KindInvalidRequest:       http.StatusBadRequest,
	sponsor.KindSignatureRejected:    http.StatusConflict,
	sponsor.KindReservationFailure:   http.StatusServiceUnavailable,
	sponsor.KindReservationExpired:   http.StatusGatewayTimeout,
	sponsor.KindSerializationFailure: http.StatusInternalServerError,
	sponsor.KindExecutionFailure:     http.StatusBadGateway,
	sponsor.KindNetworkFailure:       http.StatusBadGateway,
}

// describeError maps an error to the status code and the body returned to a client.
func describeError(lang string, err error) (int, errorJSON) {
	var (
		submitErr *sponsor.SubmitError
		reqErr    *requestError
	)
	switch {
	case errors.As(err, &submitErr):
		body := errorJSON{
			Kind: string(submitErr.Kind),
			Details: &errorDetails{
				Op:        submitErr.Op,
				Payload:   submitErr.Payload,
				Retryable: sponsor.Retryable(err),
			},
		}
		switch {
		case submitErr.Aborted:
			code := submitErr.AbortCode
			body.Details.AbortCode = &code
			body.Error = i18n.Message(lang, "MoveAbort", i18n.Template{"Code": code})
		case submitErr.Kind == sponsor.KindInvalidRequest && submitErr.Err != nil:
			body.Error = i18n.Message(lang, string(submitErr.Kind), i18n.Template{"Reason": submitErr.Err.Error()})
		default:
			body.Error = i18n.Message(lang, string(submitErr.Kind), i18n.Template{"Payload": submitErr.Payload})
		}
		status, ok := kindStatusCodes[submitErr.Kind]
		if !ok {
			status = http.StatusInternalServerError
		}
		return status, body
	case errors.Is(err, ErrRateLimit):
		return http.StatusTooManyRequests, errorJSON{Kind: "RateLimit", Error: i18n.Message(lang, "RateLimit", nil)}
	case errors.Is(err, errPostNotFound):
		return http.StatusNotFound, errorJSON{Kind: "NotFound", Error: i18n.Message(lang, "PostNotFound", nil)}
	case errors.Is(err, errSignatureNotFound):
		return http.StatusNotFound, errorJSON{Kind: "NotFound", Error: i18n.Message(lang, "SignatureNotFound", nil)}
	case errors.Is(err, core.ErrEntityNotFound):
		return http.StatusNotFound, errorJSON{Kind: "NotFound", Error: i18n.Message(lang, "NotFound", nil)}
	case errors.Is(err, wallet.ErrInvalidSignature):
		return http.StatusBadRequest, errorJSON{Kind: "InvalidSignature", Error: i18n.Message(lang, "InvalidSignature", nil)}
	case errors.As(err, &reqErr):
		return http.StatusBadRequest, errorJSON{
			Kind:  string(sponsor.KindInvalidRequest),
			Error: i18n.Message(lang, string(sponsor.KindInvalidRequest), i18n.Template{"Reason": reqErr.reason}),
		}
	}
	return http.StatusInternalServerError, errorJSON{Kind: "InternalError", Error: i18n.Message(lang, "InternalError", nil)}
}

var (
	errPostNotFound      = errors.Wrap(core.ErrEntityNotFound, "post")
	errSignatureNotFound = errors.Wrap(core.ErrEntityNotFound, "signature request")
)

// signatureError names the missing entity for errors coming from the relay.
func signatureError(err error) error {
	if errors.Is(err, core.ErrEntityNotFound) {
		return errSignatureNotFound
	}
	return err
}

// requestError is a malformed request rejected before reaching the submitter.
type requestError struct {
	reason string
}

func (e *requestError) Error() string {
	return e.reason
}

func badRequest(format string, args ...interface{}) error {
	return &requestError{reason: fmt.Sprintf(format, args...)}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := describeError(r.Header.Get("Accept-Language"), err)
	if status >= http.StatusInternalServerError {
		reportError(r, status, body, err)
	}
	writeJSON(w, status, body)
}

func reportError(r *http.Request, status int, body errorJSON, err error) {
	data := sentry.SentryInfoData{
		"path":   r.URL.Path,
		"status": status,
		"kind":   body.Kind,
		"error":  err.Error(),
	}
	if body.Details != nil {
		data["op"] = body.Details.Op
		data["payload"] = body.Details.Payload
	}
	sentry.Send("sponsored submission failed", data, sentry.LevelError)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
