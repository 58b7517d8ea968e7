// Package feed owns the in-memory list of published posts.
package feed

import (
	"sync"

	"golang.org/x/exp/slices"

	"github.com/iota-community/workshops/pkg/core"
)

// Feed keeps posts newest first. It is safe for concurrent use.
// Under concurrent submissions the order follows the moment of Prepend, not of submission.
type Feed struct {
	mu    sync.RWMutex
	posts []core.Post
	// limit bounds the number of kept posts, zero keeps everything.
	limit     int
	listeners []func(core.Post)
}

type Option func(f *Feed)

func WithLimit(limit int) Option {
	return func(f *Feed) {
		f.limit = limit
	}
}

// WithListener registers fn to be called with every prepended post.
func WithListener(fn func(core.Post)) Option {
	return func(f *Feed) {
		f.listeners = append(f.listeners, fn)
	}
}

func New(opts ...Option) *Feed {
	f := &Feed{}
	for _, o := range opts {
		o(f)
	}
	return f
}

func (f *Feed) Prepend(post core.Post) {
	f.mu.Lock()
	f.posts = slices.Insert(f.posts, 0, post)
	if f.limit > 0 && len(f.posts) > f.limit {
		f.posts = slices.Clip(f.posts[:f.limit])
	}
	f.mu.Unlock()

	for _, fn := range f.listeners {
		fn(post)
	}
}

// Posts returns a snapshot of the feed, newest first.
func (f *Feed) Posts() []core.Post {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return slices.Clone(f.posts)
}

func (f *Feed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.posts)
}

// Find returns the post created by the transaction with the given digest.
func (f *Feed) Find(txID string) (core.Post, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	idx := slices.IndexFunc(f.posts, func(p core.Post) bool {
		return p.TransactionID == txID
	})
	if idx < 0 {
		return core.Post{}, false
	}
	return f.posts[idx], true
}
