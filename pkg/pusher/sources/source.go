package sources

import "github.com/iota-community/workshops/pkg/core"

// SubscribeToPostsOptions narrows a subscription down to posts of specific authors.
type SubscribeToPostsOptions struct {
	AllAuthors bool
	Authors    []core.Address
}

// DeliveryFn describes a callback that will be triggered once a new post is published.
type DeliveryFn func(eventData []byte)

// CancelFn has to be called to unsubscribe.
type CancelFn func()

// PostSource provides a method to subscribe to notifications about new posts.
type PostSource interface {
	SubscribeToPosts(deliveryFn DeliveryFn, opts SubscribeToPostsOptions) CancelFn
}

// PostEventData is sent to subscribers of the post stream.
type PostEventData struct {
	Content       string `json:"content"`
	Author        string `json:"author"`
	TransactionID string `json:"txid"`
	Timestamp     int64  `json:"timestamp"`
}
