package sentry

import (
	"fmt"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
)

type SentryInfoData map[string]interface{}

type Level = sentry.Level

const (
	LevelWarning = sentry.LevelWarning
	LevelError   = sentry.LevelError
)

var inited = false

func init() {
	dsn := os.Getenv("SENTRY_DSN")
	if dsn == "" {
		return
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      os.Getenv("SENTRY_ENVIRONMENT"),
		TracesSampleRate: 1.0,
	})
	if err != nil {
		fmt.Printf("failed to sentry init: %s", err)
		return
	}
	inited = true
}

// Send reports a message with extra data in the background. It does nothing without SENTRY_DSN.
func Send(title string, data SentryInfoData, logLevel sentry.Level) {
	if !inited {
		return
	}

	go func(localHub *sentry.Hub) {
		localHub.ConfigureScope(func(scope *sentry.Scope) {
			scope.SetLevel(logLevel)
			scope.SetExtras(data)
		})
		localHub.CaptureMessage(title)
	}(sentry.CurrentHub().Clone())
}

// Flush waits for buffered events to be sent, it is called before the process exits.
func Flush(timeout time.Duration) {
	if !inited {
		return
	}
	sentry.Flush(timeout)
}
