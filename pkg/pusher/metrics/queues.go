package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/iota-community/workshops/pkg/pusher/events"
)

var (
	queueLengthMetric = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "streaming_api_queue_length",
		Help:    "Number of events sitting in a streaming connection's queue waiting to be sent.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
	}, []string{"type", "event"})
)

func SseQueueLength(event events.Name, length int) {
	queueLengthMetric.With(map[string]string{"type": "sse", "event": event.String()}).Observe(float64(length))
}

func WebsocketQueueLength(event events.Name, length int) {
	queueLengthMetric.With(map[string]string{"type": "websocket", "event": event.String()}).Observe(float64(length))
}
