package wallet

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v2"
	"go.uber.org/zap"

	"github.com/iota-community/workshops/pkg/core"
)

// PendingSignature is a transaction waiting for a signature from an external wallet.
type PendingSignature struct {
	ID        string
	Sender    core.Address
	TxBytes   []byte
	CreatedAt time.Time
	// ExpiresAt is the moment the underlying gas reservation stops being usable.
	ExpiresAt time.Time
}

type decision struct {
	signature string
	rejected  bool
}

type pendingRequest struct {
	PendingSignature
	decided chan decision
}

// Relay hands transactions to wallets living outside the process, e.g. a browser extension,
// and waits until one of them approves or rejects the request.
type Relay struct {
	logger   *zap.Logger
	pending  *xsync.MapOf[string, *pendingRequest]
	effects  *xsync.MapOf[string, core.Effects]
	notify   func(PendingSignature)
	now      func() time.Time
	maxDelay time.Duration
}

type RelayOption func(r *Relay)

// WithNotify registers a callback invoked every time a new signature request is published.
func WithNotify(fn func(PendingSignature)) RelayOption {
	return func(r *Relay) {
		r.notify = fn
	}
}

// WithMaxWait bounds waiting for a decision when the context carries no deadline.
func WithMaxWait(d time.Duration) RelayOption {
	return func(r *Relay) {
		r.maxDelay = d
	}
}

func NewRelay(logger *zap.Logger, opts ...RelayOption) *Relay {
	r := &Relay{
		logger:   logger,
		pending:  xsync.NewMapOf[*pendingRequest](),
		effects:  xsync.NewMapOf[core.Effects](),
		now:      time.Now,
		maxDelay: 10 * time.Minute,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Session returns a wallet session that signs on behalf of account through the relay.
// onPending, if not nil, is called with every signature request published by the session.
func (r *Relay) Session(account core.Address, onPending func(PendingSignature)) *RelaySession {
	return &RelaySession{relay: r, account: account, onPending: onPending}
}

// Pending returns a signature request waiting for a decision.
func (r *Relay) Pending(id string) (PendingSignature, error) {
	req, ok := r.pending.Load(id)
	if !ok {
		return PendingSignature{}, core.ErrEntityNotFound
	}
	return req.PendingSignature, nil
}

// Approve resolves the request with a signature made by the external wallet.
func (r *Relay) Approve(id string, signature string) error {
	req, ok := r.pending.Load(id)
	if !ok {
		return core.ErrEntityNotFound
	}
	if err := VerifySignature(req.Sender, req.TxBytes, signature); err != nil {
		return err
	}
	return r.resolve(id, decision{signature: signature})
}

// Reject resolves the request as declined by the user.
func (r *Relay) Reject(id string) error {
	return r.resolve(id, decision{rejected: true})
}

func (r *Relay) resolve(id string, d decision) error {
	req, ok := r.pending.LoadAndDelete(id)
	if !ok {
		return core.ErrEntityNotFound
	}
	req.decided <- d
	return nil
}

// LastEffects returns the effects most recently reported to the session of sender.
func (r *Relay) LastEffects(sender core.Address) (core.Effects, bool) {
	return r.effects.Load(sender.String())
}

func (r *Relay) sign(ctx context.Context, sender core.Address, txBytes []byte, onPending func(PendingSignature)) (SignedTransaction, error) {
	now := r.now()
	expiresAt, ok := ctx.Deadline()
	if !ok {
		var cancel context.CancelFunc
		expiresAt = now.Add(r.maxDelay)
		ctx, cancel = context.WithDeadline(ctx, expiresAt)
		defer cancel()
	}
	req := &pendingRequest{
		PendingSignature: PendingSignature{
			ID:        uuid.NewString(),
			Sender:    sender,
			TxBytes:   txBytes,
			CreatedAt: now,
			ExpiresAt: expiresAt,
		},
		decided: make(chan decision, 1),
	}
	r.pending.Store(req.ID, req)
	if r.notify != nil {
		r.notify(req.PendingSignature)
	}
	if onPending != nil {
		onPending(req.PendingSignature)
	}
	r.logger.Info("waiting for signature",
		zap.String("request_id", req.ID),
		zap.Stringer("sender", sender),
		zap.Time("expires_at", expiresAt))

	select {
	case <-ctx.Done():
		r.pending.Delete(req.ID)
		return SignedTransaction{}, ctx.Err()
	case d := <-req.decided:
		if d.rejected {
			return SignedTransaction{}, ErrUserRejected
		}
		return SignedTransaction{
			Signature: d.signature,
			ReportEffects: func(ctx context.Context, effects core.Effects) error {
				r.effects.Store(sender.String(), effects)
				return nil
			},
		}, nil
	}
}

// RelaySession is a wallet session bound to one account whose key is held by an external wallet.
type RelaySession struct {
	relay     *Relay
	account   core.Address
	onPending func(PendingSignature)
}

func (s *RelaySession) Accounts() []core.Address {
	return []core.Address{s.account}
}

func (s *RelaySession) SignTransaction(ctx context.Context, sender core.Address, txBytes []byte) (SignedTransaction, error) {
	if sender != s.account {
		return SignedTransaction{}, errors.Wrapf(ErrUnknownAccount, "%v", sender)
	}
	return s.relay.sign(ctx, sender, txBytes, s.onPending)
}
