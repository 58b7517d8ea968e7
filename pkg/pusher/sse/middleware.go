package sse

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/iota-community/workshops/pkg/pusher/errors"
	"github.com/iota-community/workshops/pkg/pusher/metrics"
)

func writeError(writer http.ResponseWriter, err error) {
	var httpErr errors.HTTPError
	if errors.IsHTTPError(err) {
		httpErr = err.(errors.HTTPError)
	} else {
		httpErr = errors.InternalServerError(err.Error())
	}
	writer.WriteHeader(httpErr.Code)
	writer.Write([]byte(httpErr.Message))
}

// Stream turns a subscription handler into an http handler streaming events until the client goes away.
func Stream(logger *zap.Logger, handler handlerFunc) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		if _, ok := writer.(http.Flusher); !ok {
			writeError(writer, errors.InternalServerError("streaming unsupported"))
			return
		}

		writer.Header().Set("Content-Type", "text/event-stream")
		writer.Header().Set("Cache-Control", "no-cache")
		writer.Header().Set("Connection", "keep-alive")

		metrics.OpenSseConnection()
		defer metrics.CloseSseConnection()

		session := newSession()
		if err := handler(session, request); err != nil {
			writeError(writer, err)
			return
		}
		if err := session.StreamEvents(request.Context(), writer); err != nil {
			logger.Debug("sse stream closed", zap.Error(err))
		}
	}
}
