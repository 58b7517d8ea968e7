package api

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/puzpuzpuz/xsync/v2"
	"github.com/sourcegraph/conc"
	"go.uber.org/zap"

	"github.com/iota-community/workshops/pkg/core"
	"github.com/iota-community/workshops/pkg/sponsor"
	"github.com/iota-community/workshops/pkg/wallet"
)

type submitter interface {
	Submit(ctx context.Context, w sponsor.Wallet, sender core.Address, content string) (core.Effects, error)
	Config() sponsor.Config
}

type postFeed interface {
	Posts() []core.Post
	Find(txID string) (core.Post, bool)
}

type objectSource interface {
	GetObjectRef(ctx context.Context, id core.ObjectID) (core.ObjectRef, error)
}

// outcomeRetention is how long a finished submission stays available after its reservation expired.
const outcomeRetention = time.Minute

// outcome is a submission running in the background while an external wallet decides.
type outcome struct {
	done    chan struct{}
	effects core.Effects
	err     error
}

type Handler struct {
	logger    *zap.Logger
	submitter submitter
	feed      postFeed
	// service signs posts sent without an explicit sender, nil disables such posts.
	service  *wallet.Keypair
	relay    *wallet.Relay
	objects  objectSource
	outcomes *xsync.MapOf[string, *outcome]
	limits   Limits
	wg       conc.WaitGroup
	// base outlives requests and is cancelled by Stop, background submissions derive from it.
	base   context.Context
	cancel context.CancelFunc
}

type HandlerOption func(h *Handler)

func WithServiceKeypair(k *wallet.Keypair) HandlerOption {
	return func(h *Handler) {
		h.service = k
	}
}

func WithRelay(r *wallet.Relay) HandlerOption {
	return func(h *Handler) {
		h.relay = r
	}
}

// WithObjectSource enables lookups of current object versions, e.g. through a fullnode.
func WithObjectSource(src objectSource) HandlerOption {
	return func(h *Handler) {
		h.objects = src
	}
}

func WithLimits(limits Limits) HandlerOption {
	return func(h *Handler) {
		h.limits = limits
	}
}

func NewHandler(logger *zap.Logger, s submitter, feed postFeed, opts ...HandlerOption) *Handler {
	h := &Handler{
		logger:    logger,
		submitter: s,
		feed:      feed,
		outcomes:  xsync.NewMapOf[*outcome](),
	}
	h.base, h.cancel = context.WithCancel(context.Background())
	for _, o := range opts {
		o(h)
	}
	if h.relay == nil {
		h.relay = wallet.NewRelay(logger)
	}
	return h
}

// Stop aborts background submissions still waiting for a signature
// and blocks until all of them return or ctx is done.
func (h *Handler) Stop(ctx context.Context) error {
	h.cancel()
	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "background submissions still running")
	}
}

// submitAsync starts a submission signed through the relay and returns once the signature
// request is published or the submission failed before reaching the signing step.
func (h *Handler) submitAsync(ctx context.Context, sender core.Address, content string) (wallet.PendingSignature, *outcome, error) {
	published := make(chan wallet.PendingSignature, 1)
	session := h.relay.Session(sender, func(p wallet.PendingSignature) {
		published <- p
	})
	out := &outcome{done: make(chan struct{})}
	h.wg.Go(func() {
		defer close(out.done)
		// the request context ends with the 202 response, the reservation bounds this one.
		out.effects, out.err = h.submitter.Submit(h.base, session, sender, content)
	})
	select {
	case p := <-published:
		h.outcomes.Store(p.ID, out)
		time.AfterFunc(time.Until(p.ExpiresAt)+outcomeRetention, func() {
			h.outcomes.Delete(p.ID)
		})
		return p, out, nil
	case <-out.done:
		if out.err != nil {
			return wallet.PendingSignature{}, nil, out.err
		}
		return wallet.PendingSignature{}, out, nil
	case <-ctx.Done():
		return wallet.PendingSignature{}, nil, ctx.Err()
	}
}

// awaitOutcome waits for the background submission behind a signature request.
func (h *Handler) awaitOutcome(ctx context.Context, id string) (core.Effects, error) {
	out, ok := h.outcomes.Load(id)
	if !ok {
		return core.Effects{}, core.ErrEntityNotFound
	}
	select {
	case <-out.done:
		h.outcomes.Delete(id)
		return out.effects, out.err
	case <-ctx.Done():
		return core.Effects{}, ctx.Err()
	}
}
