package sse

import (
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/iota-community/workshops/pkg/core"
	"github.com/iota-community/workshops/pkg/pusher/errors"
	"github.com/iota-community/workshops/pkg/pusher/events"
	"github.com/iota-community/workshops/pkg/pusher/sources"
)

// Handler handles http methods for sse.
type Handler struct {
	postSource     sources.PostSource
	currentEventID int64
}

var authorsPerRequestHistogramVec = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "sse_authors_per_request",
		Buckets: []float64{1, 2, 3, 4, 5, 10, 20, 50, 100},
	},
	[]string{"method"},
)

type handlerFunc func(session *session, request *http.Request) error

func NewHandler(postSource sources.PostSource) *Handler {
	return &Handler{
		postSource:     postSource,
		currentEventID: time.Now().UnixNano(),
	}
}

func parseAuthors(authorsStr string) (*sources.SubscribeToPostsOptions, error) {
	if authorsStr == "" || strings.ToUpper(authorsStr) == "ALL" {
		return &sources.SubscribeToPostsOptions{AllAuthors: true}, nil
	}
	authorStrings := strings.Split(authorsStr, ",")
	authors := make([]core.Address, 0, len(authorStrings))
	for _, author := range authorStrings {
		address, err := core.ParseAddress(author)
		if err != nil {
			return nil, err
		}
		authors = append(authors, address)
	}
	return &sources.SubscribeToPostsOptions{Authors: authors}, nil
}

// SubscribeToPosts streams new posts, optionally only of the authors listed in the "authors" query parameter.
func (h *Handler) SubscribeToPosts(session *session, request *http.Request) error {
	if h.postSource == nil {
		return errors.BadRequest("post source is not configured")
	}
	options, err := parseAuthors(request.URL.Query().Get("authors"))
	if err != nil {
		return errors.BadRequest(fmt.Sprintf("failed to parse 'authors' parameter in query: %v", err))
	}
	if !options.AllAuthors {
		authorsPerRequestHistogramVec.WithLabelValues("posts").Observe(float64(len(options.Authors)))
	}
	cancelFn := h.postSource.SubscribeToPosts(func(data []byte) {
		session.SendEvent(Event{
			Name:    events.PostEvent,
			EventID: h.nextID(),
			Data:    data,
		})
	}, *options)
	session.SetCancelFn(cancelFn)
	return nil
}

func (h *Handler) nextID() int64 {
	return atomic.AddInt64(&h.currentEventID, 1)
}
