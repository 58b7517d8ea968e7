// Package sponsor runs the sponsored submission pipeline: reserve gas, bind the sponsor,
// serialize, sign, execute through the gas station, report effects and publish a post.
package sponsor

import (
	"context"
	"strconv"
	"time"

	"github.com/avast/retry-go"
	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/exp/slices"

	"github.com/iota-community/workshops/pkg/cache"
	"github.com/iota-community/workshops/pkg/core"
	"github.com/iota-community/workshops/pkg/gasstation"
	"github.com/iota-community/workshops/pkg/wallet"
)

// GasStation reserves sponsor gas and executes transactions paid by it.
type GasStation interface {
	ReserveGas(ctx context.Context, budget uint64, lifetime time.Duration) (core.GasReservation, error)
	ExecuteTx(ctx context.Context, submission core.SignedSubmission) (core.Effects, error)
}

// TxBuilder serializes a sponsor bound transaction into the bytes a wallet signs.
type TxBuilder interface {
	Build(ctx context.Context, tx core.SponsoredTransaction) ([]byte, error)
}

// Wallet is a connected wallet session.
// SignTransaction may block until the user approves or rejects the request.
type Wallet interface {
	Accounts() []core.Address
	SignTransaction(ctx context.Context, sender core.Address, txBytes []byte) (wallet.SignedTransaction, error)
}

// PostSink receives posts of successful submissions.
type PostSink interface {
	Prepend(post core.Post)
}

type Submitter struct {
	logger  *zap.Logger
	cfg     Config
	station GasStation
	builder TxBuilder
	posts   PostSink
	// consumed remembers reservation ids handed to a draft call until they expire.
	consumed cache.ICache[string]
	tracer   trace.Tracer
	now      func() time.Time
}

type Option func(s *Submitter)

func WithClock(now func() time.Time) Option {
	return func(s *Submitter) {
		s.now = now
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Submitter) {
		s.tracer = tracer
	}
}

// WithReservationLedger replaces the in-memory store of consumed reservation ids.
func WithReservationLedger(ledger cache.ICache[string]) Option {
	return func(s *Submitter) {
		s.consumed = ledger
	}
}

func NewSubmitter(logger *zap.Logger, cfg Config, station GasStation, builder TxBuilder, posts PostSink, opts ...Option) (*Submitter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid sponsor config")
	}
	if cfg.ReserveAttempts == 0 {
		cfg.ReserveAttempts = 1
	}
	s := &Submitter{
		logger:  logger,
		cfg:     cfg,
		station: station,
		builder: builder,
		posts:   posts,
		tracer:  otel.Tracer("github.com/iota-community/workshops/pkg/sponsor"),
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	if s.consumed == nil {
		ledger, err := cache.NewInMemoryCache[string](100_000)
		if err != nil {
			return nil, err
		}
		s.consumed = ledger
	}
	return s, nil
}

func (s *Submitter) Config() Config {
	return s.cfg
}

// Submit publishes content on chain on behalf of sender without sender paying for gas.
// Every call obtains its own reservation, so two calls never share one.
// A post is prepended to the feed only when the transaction executed successfully.
func (s *Submitter) Submit(ctx context.Context, w Wallet, sender core.Address, content string) (effects core.Effects, err error) {
	ctx, span := s.tracer.Start(ctx, "sponsor.Submit", trace.WithAttributes(
		attribute.String("sender", sender.String()),
		attribute.Int("content.length", len(content)),
	))
	defer func() {
		submissionsCounterVec.WithLabelValues(outcome(err)).Inc()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(KindOf(err)))
		}
		span.End()
	}()
	logger := s.logger.With(zap.Stringer("sender", sender))

	if err := s.validate(w, sender, content); err != nil {
		return core.Effects{}, err
	}
	call := core.DraftCall{
		Target:    s.cfg.Target,
		Arguments: []core.PureArg{core.PureString(content)},
		Sender:    sender,
	}

	reservation, err := s.reserve(ctx, logger)
	if err != nil {
		return core.Effects{}, err
	}
	logger = logger.With(zap.Uint64("reservation_id", reservation.ReservationID))
	logger.Info("gas reserved",
		zap.Stringer("sponsor", reservation.SponsorAddress),
		zap.Int("coins", len(reservation.GasCoins)),
		zap.Time("expires_at", reservation.ExpiresAt))

	tx := core.SponsoredTransaction{
		Call: call,
		Gas: core.GasData{
			Owner:   reservation.SponsorAddress,
			Payment: slices.Clone(reservation.GasCoins),
			Budget:  reservation.Budget,
		},
		ExpiresAt: reservation.ExpiresAt,
	}

	txBytes, err := s.build(ctx, tx)
	if err != nil {
		logger.Warn("failed to build transaction", zap.Error(err))
		return core.Effects{}, err
	}

	signed, err := s.sign(ctx, w, sender, txBytes, reservation)
	if err != nil {
		logger.Info("transaction was not signed", zap.Error(err))
		return core.Effects{}, err
	}

	effects, err = s.execute(ctx, reservation, txBytes, signed.Signature)
	if err != nil {
		logger.Error("failed to execute transaction", zap.Error(err))
		return core.Effects{}, err
	}
	logger = logger.With(zap.String("digest", effects.Digest))

	if signed.ReportEffects != nil {
		if err := signed.ReportEffects(ctx, effects); err != nil {
			logger.Warn("wallet failed to accept effects", zap.Error(err))
		}
	}

	if !effects.Succeeded() {
		failure := &SubmitError{
			Kind:    KindExecutionFailure,
			Op:      "effects",
			Err:     errors.Errorf("transaction %v failed", effects.Digest),
			Payload: effects.StatusError,
		}
		failure.AbortCode, failure.Aborted = effects.AbortCode()
		logger.Warn("transaction failed on chain", zap.String("status_error", effects.StatusError))
		return effects, failure
	}

	s.posts.Prepend(core.NewPost(content, sender, effects.Digest, s.now()))
	logger.Info("post published")
	return effects, nil
}

func (s *Submitter) validate(w Wallet, sender core.Address, content string) error {
	if w == nil {
		return newError(KindInvalidRequest, "validate", errors.New("no wallet session"))
	}
	if sender.IsZero() {
		return newError(KindInvalidRequest, "validate", errors.Wrap(core.ErrInvalidAddress, "empty sender"))
	}
	if !slices.Contains(w.Accounts(), sender) {
		return newError(KindInvalidRequest, "validate", errors.Wrapf(wallet.ErrUnknownAccount, "%v", sender))
	}
	if err := core.ValidateContent(content, s.cfg.MaxContentLength); err != nil {
		return newError(KindInvalidRequest, "validate", err)
	}
	return nil
}

func (s *Submitter) reserve(ctx context.Context, logger *zap.Logger) (core.GasReservation, error) {
	ctx, span := s.tracer.Start(ctx, "sponsor.reserve")
	defer span.End()
	defer s.observe("reserve")()

	var reservation core.GasReservation
	err := retry.Do(func() error {
		var err error
		reservation, err = s.station.ReserveGas(ctx, s.cfg.GasBudget, s.cfg.ReservationLifetime)
		return err
	},
		retry.Context(ctx),
		retry.Attempts(s.cfg.ReserveAttempts),
		retry.Delay(s.cfg.ReserveDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, gasstation.ErrInvalidBudget) && !errors.Is(err, gasstation.ErrInvalidDuration)
		}),
		retry.OnRetry(func(n uint, err error) {
			if n+1 < s.cfg.ReserveAttempts {
				logger.Warn("gas reservation failed, retrying", zap.Uint("attempt", n+1), zap.Error(err))
			}
		}),
	)
	if err != nil {
		return core.GasReservation{}, newError(KindReservationFailure, "reserve", err)
	}
	if len(reservation.GasCoins) == 0 {
		return core.GasReservation{}, newError(KindReservationFailure, "reserve", gasstation.ErrEmptyResult)
	}
	if reservation.Budget == 0 {
		reservation.Budget = s.cfg.GasBudget
	}

	key := strconv.FormatUint(reservation.ReservationID, 10)
	if _, err := s.consumed.Get(ctx, key); err == nil {
		return core.GasReservation{}, newError(KindReservationFailure, "reserve", errors.Wrapf(ErrReservationReused, "reservation %v", key))
	}
	ttl := reservation.ExpiresAt.Sub(s.now())
	if ttl < s.cfg.ReservationLifetime {
		ttl = s.cfg.ReservationLifetime
	}
	if err := s.consumed.Set(ctx, key, reservation.SponsorAddress.String(), ttl); err != nil {
		logger.Warn("failed to record consumed reservation", zap.String("reservation_id", key), zap.Error(err))
	}
	span.SetAttributes(attribute.Int64("reservation.id", int64(reservation.ReservationID)))
	return reservation, nil
}

func (s *Submitter) build(ctx context.Context, tx core.SponsoredTransaction) ([]byte, error) {
	ctx, span := s.tracer.Start(ctx, "sponsor.build")
	defer span.End()
	defer s.observe("build")()

	txBytes, err := s.builder.Build(ctx, tx)
	if err != nil {
		return nil, newError(KindSerializationFailure, "build", err)
	}
	return txBytes, nil
}

// sign waits for the wallet at most until the reservation expires.
func (s *Submitter) sign(ctx context.Context, w Wallet, sender core.Address, txBytes []byte, reservation core.GasReservation) (wallet.SignedTransaction, error) {
	ctx, span := s.tracer.Start(ctx, "sponsor.sign")
	defer span.End()
	defer s.observe("sign")()

	signCtx := ctx
	if !reservation.ExpiresAt.IsZero() {
		var cancel context.CancelFunc
		signCtx, cancel = context.WithDeadline(ctx, reservation.ExpiresAt)
		defer cancel()
	}
	signed, err := w.SignTransaction(signCtx, sender, txBytes)
	switch {
	case err == nil:
	case errors.Is(err, wallet.ErrUserRejected):
		return wallet.SignedTransaction{}, newError(KindSignatureRejected, "sign", err)
	case errors.Is(err, wallet.ErrUnknownAccount):
		return wallet.SignedTransaction{}, newError(KindInvalidRequest, "sign", err)
	case ctx.Err() == nil && errors.Is(signCtx.Err(), context.DeadlineExceeded):
		return wallet.SignedTransaction{}, newError(KindReservationExpired, "sign", err)
	case ctx.Err() != nil:
		return wallet.SignedTransaction{}, newError(KindNetworkFailure, "sign", errors.Wrap(ctx.Err(), "signing aborted"))
	default:
		// Only an explicit user rejection is final; anything else is a broken wallet link.
		return wallet.SignedTransaction{}, newError(KindNetworkFailure, "sign", err)
	}
	if signed.Signature == "" {
		return wallet.SignedTransaction{}, newError(KindSignatureRejected, "sign", errors.New("wallet returned an empty signature"))
	}
	if reservation.Expired(s.now()) {
		return wallet.SignedTransaction{}, newError(KindReservationExpired, "sign",
			errors.Errorf("reservation expired at %v", reservation.ExpiresAt.Format(time.RFC3339)))
	}
	return signed, nil
}

// execute consumes the reservation whatever the outcome is.
// A signed transaction is handed to the station even if the caller gives up meanwhile.
func (s *Submitter) execute(ctx context.Context, reservation core.GasReservation, txBytes []byte, signature string) (core.Effects, error) {
	ctx, span := s.tracer.Start(context.WithoutCancel(ctx), "sponsor.execute")
	defer span.End()
	defer s.observe("execute")()

	effects, err := s.station.ExecuteTx(ctx, core.SignedSubmission{
		ReservationID: reservation.ReservationID,
		TxBytes:       txBytes,
		UserSignature: signature,
	})
	if err != nil {
		var stationErr *gasstation.Error
		if errors.As(err, &stationErr) {
			failure := newError(KindExecutionFailure, "execute", err)
			failure.Payload = stationErr.Message
			failure.AbortCode, failure.Aborted = core.ParseAbortCode(stationErr.Message)
			return core.Effects{}, failure
		}
		return core.Effects{}, newError(KindNetworkFailure, "execute", err)
	}
	span.SetAttributes(attribute.String("digest", effects.Digest))
	return effects, nil
}

func (s *Submitter) observe(step string) func() {
	start := time.Now()
	return func() {
		stepTimeHistogramVec.WithLabelValues(step).Observe(time.Since(start).Seconds())
	}
}
