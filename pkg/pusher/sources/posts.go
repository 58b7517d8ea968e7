package sources

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/iota-community/workshops/pkg/core"
)

type subscriberID int64

type postDeliveryFn func(eventData []byte, sender core.Address)

// PostHub implements "PostSource" interface.
// It receives published posts through the channel returned by Run and resends them to subscribers.
type PostHub struct {
	logger *zap.Logger

	mu          sync.Mutex
	currentID   subscriberID
	subscribers map[subscriberID]postDeliveryFn
}

var _ PostSource = (*PostHub)(nil)

func NewPostHub(logger *zap.Logger) *PostHub {
	return &PostHub{
		logger:      logger,
		currentID:   1,
		subscribers: map[subscriberID]postDeliveryFn{},
	}
}

func createPostDeliveryFnBasedOnOptions(deliveryFn DeliveryFn, opts SubscribeToPostsOptions) postDeliveryFn {
	if opts.AllAuthors || len(opts.Authors) == 0 {
		return func(eventData []byte, sender core.Address) {
			deliveryFn(eventData)
		}
	}
	authors := make(map[core.Address]struct{}, len(opts.Authors))
	for _, a := range opts.Authors {
		authors[a] = struct{}{}
	}
	return func(eventData []byte, sender core.Address) {
		if _, ok := authors[sender]; ok {
			deliveryFn(eventData)
		}
	}
}

func (h *PostHub) SubscribeToPosts(deliveryFn DeliveryFn, opts SubscribeToPostsOptions) CancelFn {
	h.mu.Lock()
	defer h.mu.Unlock()

	subID := h.currentID
	h.currentID += 1
	h.subscribers[subID] = createPostDeliveryFnBasedOnOptions(deliveryFn, opts)
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subscribers, subID)
	}
}

// Run runs a goroutine with a fan-out event-loop that resends an incoming post to all subscribers.
func (h *PostHub) Run(ctx context.Context) chan<- core.Post {
	ch := make(chan core.Post, 100)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case post := <-ch:
				h.sendPostToSubscribers(post)
			}
		}
	}()
	return ch
}

func (h *PostHub) sendPostToSubscribers(post core.Post) {
	eventData, err := json.Marshal(PostEventData{
		Content:       post.Content,
		Author:        post.Author,
		TransactionID: post.TransactionID,
		Timestamp:     post.Timestamp,
	})
	if err != nil {
		h.logger.Error("post hub failed to marshal post to json",
			zap.Error(err),
			zap.String("txid", post.TransactionID))
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, fn := range h.subscribers {
		fn(eventData, post.Sender)
	}
}
