package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/iota-community/workshops/pkg/pusher/events"
)

var eventsQuantity = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "streaming_api_events_total",
		Help: "Events sent to post stream subscribers",
	},
	[]string{
		"type",
		"event",
	},
)

func SseEventSent(event events.Name) {
	eventsQuantity.With(map[string]string{"type": "sse", "event": event.String()}).Inc()
}

func WebsocketEventSent(event events.Name) {
	eventsQuantity.With(map[string]string{"type": "websocket", "event": event.String()}).Inc()
}

func EventDropped(connectionType string, event events.Name) {
	eventsQuantity.With(map[string]string{"type": connectionType + "_dropped", "event": event.String()}).Inc()
}
