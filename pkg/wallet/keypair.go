package wallet

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"hash/maphash"
	"strings"

	"github.com/go-faster/errors"
	"github.com/puzpuzpuz/xsync/v2"
	"go.uber.org/zap"

	"github.com/iota-community/workshops/pkg/core"
)

// Keypair is a wallet session backed by a single ed25519 key held in memory.
type Keypair struct {
	logger  *zap.Logger
	private ed25519.PrivateKey
	address core.Address
	// objects keeps the latest known version of objects touched by transactions of this wallet.
	objects *xsync.MapOf[core.ObjectID, core.ObjectRef]
}

func hashObjectID(seed maphash.Seed, id core.ObjectID) uint64 {
	var h maphash.Hash
	h.SetSeed(seed)
	h.Write(id[:])
	return h.Sum64()
}

func NewKeypair(logger *zap.Logger, seed []byte) (*Keypair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, errors.Wrapf(ErrInvalidKey, "seed has %d bytes, want %d", len(seed), ed25519.SeedSize)
	}
	private := ed25519.NewKeyFromSeed(seed)
	return &Keypair{
		logger:  logger,
		private: private,
		address: AddressFromPublicKey(private.Public().(ed25519.PublicKey)),
		objects: xsync.NewTypedMapOf[core.ObjectID, core.ObjectRef](hashObjectID),
	}, nil
}

func GenerateKeypair(logger *zap.Logger) (*Keypair, error) {
	seed := make([]byte, ed25519.SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, err
	}
	return NewKeypair(logger, seed)
}

// ParseSecretKey decodes a 32 byte ed25519 seed given in hex or in base64.
// The base64 form may carry a leading scheme flag as exported by keystores.
func ParseSecretKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if b, err := hex.DecodeString(strings.TrimPrefix(s, "0x")); err == nil {
		if len(b) == ed25519.SeedSize {
			return b, nil
		}
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidKey, "neither hex nor base64")
	}
	switch {
	case len(b) == ed25519.SeedSize:
		return b, nil
	case len(b) == ed25519.SeedSize+1 && b[0] == ed25519Flag:
		return b[1:], nil
	}
	return nil, errors.Wrapf(ErrInvalidKey, "unexpected key length %d", len(b))
}

func (k *Keypair) Address() core.Address {
	return k.address
}

func (k *Keypair) Accounts() []core.Address {
	return []core.Address{k.address}
}

// SignTransaction signs txBytes right away; a keypair never asks a user.
func (k *Keypair) SignTransaction(ctx context.Context, sender core.Address, txBytes []byte) (SignedTransaction, error) {
	if sender != k.address {
		return SignedTransaction{}, errors.Wrapf(ErrUnknownAccount, "%v", sender)
	}
	if err := ctx.Err(); err != nil {
		return SignedTransaction{}, err
	}
	return SignedTransaction{
		Signature:     k.Sign(txBytes),
		ReportEffects: k.ReportEffects,
	}, nil
}

// Sign returns the serialized signature of txBytes.
func (k *Keypair) Sign(txBytes []byte) string {
	digest := TransactionDigest(txBytes)
	sig := ed25519.Sign(k.private, digest[:])
	return serializeSignature(sig, k.private.Public().(ed25519.PublicKey))
}

// ReportEffects updates the local object versions with the ones produced by a transaction.
func (k *Keypair) ReportEffects(ctx context.Context, effects core.Effects) error {
	for _, ref := range effects.Changed {
		known, ok := k.objects.Load(ref.ObjectID)
		if ok && known.Version >= ref.Version {
			continue
		}
		k.objects.Store(ref.ObjectID, ref)
	}
	k.logger.Debug("effects reported",
		zap.String("digest", effects.Digest),
		zap.Int("objects", len(effects.Changed)))
	return nil
}

// ObjectRef returns the latest object version known to the wallet.
func (k *Keypair) ObjectRef(id core.ObjectID) (core.ObjectRef, bool) {
	return k.objects.Load(id)
}
