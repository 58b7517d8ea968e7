// Package wallet provides wallet sessions able to sign sponsored transactions:
// a local ed25519 keypair and a relay that waits for signatures produced elsewhere.
package wallet

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/iota-community/workshops/pkg/core"
)

var (
	ErrUserRejected     = errors.New("user rejected the signature request")
	ErrUnknownAccount   = errors.New("account is not managed by this wallet")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrInvalidKey       = errors.New("invalid secret key")
)

// ReportEffectsFn hands execution effects back to the session that signed the transaction.
type ReportEffectsFn func(ctx context.Context, effects core.Effects) error

// SignedTransaction is the result of a successful signature request.
type SignedTransaction struct {
	// Signature is the serialized signature in base64: flag || signature || public key.
	Signature     string
	ReportEffects ReportEffectsFn
}
