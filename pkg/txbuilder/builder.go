// Package txbuilder serializes sponsor funded Move calls into IOTA TransactionData bytes.
package txbuilder

import (
	"context"
	"math"
	"regexp"
	"time"

	"github.com/go-faster/errors"

	"github.com/iota-community/workshops/pkg/bcs"
	"github.com/iota-community/workshops/pkg/core"
)

var (
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrStaleReservation   = errors.New("gas reservation has expired")
)

// enum variant indexes of the IOTA transaction format.
const (
	transactionDataV1            = 0
	kindProgrammableTransaction  = 0
	callArgPure                  = 0
	commandMoveCall              = 0
	argumentInput                = 1
	transactionExpirationNone    = 0
	estimatedTransactionOverhead = 256
)

var identifierRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// PriceSource provides the current reference gas price.
type PriceSource interface {
	ReferenceGasPrice(ctx context.Context) (uint64, error)
}

type Builder struct {
	prices PriceSource
	now    func() time.Time
}

type Option func(b *Builder)

func WithClock(now func() time.Time) Option {
	return func(b *Builder) {
		b.now = now
	}
}

func NewBuilder(prices PriceSource, opts ...Option) *Builder {
	b := &Builder{
		prices: prices,
		now:    time.Now,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Build returns the canonical bytes the sender has to sign.
// A zero gas price is replaced with the network reference gas price.
func (b *Builder) Build(ctx context.Context, tx core.SponsoredTransaction) ([]byte, error) {
	if !tx.ExpiresAt.IsZero() && !b.now().Before(tx.ExpiresAt) {
		return nil, errors.Wrapf(ErrStaleReservation, "expired at %v", tx.ExpiresAt.UTC().Format(time.RFC3339))
	}
	if err := validate(tx); err != nil {
		return nil, err
	}
	if tx.Gas.Price == 0 {
		if b.prices == nil {
			return nil, errors.Wrap(ErrInvalidTransaction, "gas price is not set")
		}
		price, err := b.prices.ReferenceGasPrice(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "get reference gas price")
		}
		tx.Gas.Price = price
	}
	return encodeTransactionData(tx), nil
}

func validate(tx core.SponsoredTransaction) error {
	switch {
	case tx.Call.Sender.IsZero():
		return errors.Wrap(ErrInvalidTransaction, "sender is not set")
	case tx.Call.Target.Package.IsZero():
		return errors.Wrap(ErrInvalidTransaction, "target package is not set")
	case !identifierRe.MatchString(tx.Call.Target.Module):
		return errors.Wrapf(ErrInvalidTransaction, "invalid module name %q", tx.Call.Target.Module)
	case !identifierRe.MatchString(tx.Call.Target.Function):
		return errors.Wrapf(ErrInvalidTransaction, "invalid function name %q", tx.Call.Target.Function)
	case len(tx.Call.Arguments) > math.MaxUint16:
		return errors.Wrapf(ErrInvalidTransaction, "too many arguments: %d", len(tx.Call.Arguments))
	case tx.Gas.Owner.IsZero():
		return errors.Wrap(ErrInvalidTransaction, "gas owner is not set")
	case len(tx.Gas.Payment) == 0:
		return errors.Wrap(ErrInvalidTransaction, "no gas coins")
	case tx.Gas.Budget == 0:
		return errors.Wrap(ErrInvalidTransaction, "gas budget is zero")
	}
	seen := make(map[core.ObjectID]struct{}, len(tx.Gas.Payment))
	for _, coin := range tx.Gas.Payment {
		if _, ok := seen[coin.ObjectID]; ok {
			return errors.Wrapf(ErrInvalidTransaction, "gas coin %v is used twice", coin.ObjectID)
		}
		seen[coin.ObjectID] = struct{}{}
	}
	return nil
}

func encodeTransactionData(tx core.SponsoredTransaction) []byte {
	size := estimatedTransactionOverhead
	for _, arg := range tx.Call.Arguments {
		size += len(arg) + 4
	}
	e := bcs.NewEncoder(size)
	e.Variant(transactionDataV1)

	// TransactionKind::ProgrammableTransaction
	e.Variant(kindProgrammableTransaction)
	e.Seq(len(tx.Call.Arguments), func(e *bcs.Encoder, i int) {
		e.Variant(callArgPure)
		e.ByteVector(tx.Call.Arguments[i])
	})
	e.ULEB128(1)
	e.Variant(commandMoveCall)
	e.FixedBytes(tx.Call.Target.Package[:])
	e.String(tx.Call.Target.Module)
	e.String(tx.Call.Target.Function)
	e.ULEB128(0) // type arguments
	e.Seq(len(tx.Call.Arguments), func(e *bcs.Encoder, i int) {
		e.Variant(argumentInput)
		e.U16(uint16(i))
	})

	e.FixedBytes(tx.Call.Sender[:])

	// GasData
	e.Seq(len(tx.Gas.Payment), func(e *bcs.Encoder, i int) {
		encodeObjectRef(e, tx.Gas.Payment[i])
	})
	e.FixedBytes(tx.Gas.Owner[:])
	e.U64(tx.Gas.Price)
	e.U64(tx.Gas.Budget)

	e.Variant(transactionExpirationNone)
	return e.Bytes()
}

func encodeObjectRef(e *bcs.Encoder, ref core.ObjectRef) {
	e.FixedBytes(ref.ObjectID[:])
	e.U64(ref.Version)
	e.ByteVector(ref.Digest[:])
}
