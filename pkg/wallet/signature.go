package wallet

import (
	"crypto/ed25519"
	"encoding/base64"

	"github.com/go-faster/errors"
	"golang.org/x/crypto/blake2b"

	"github.com/iota-community/workshops/pkg/core"
)

const (
	ed25519Flag byte = 0x00

	serializedSignatureLength = 1 + ed25519.SignatureSize + ed25519.PublicKeySize
)

// transactionIntent is the intent prefix of a user transaction: scope TransactionData, version 0, app IOTA.
var transactionIntent = [3]byte{0, 0, 0}

// AddressFromPublicKey derives the account address of an ed25519 public key.
func AddressFromPublicKey(pub ed25519.PublicKey) core.Address {
	buf := make([]byte, 0, 1+len(pub))
	buf = append(buf, ed25519Flag)
	buf = append(buf, pub...)
	return blake2b.Sum256(buf)
}

// TransactionDigest is the message actually signed for txBytes.
func TransactionDigest(txBytes []byte) [32]byte {
	buf := make([]byte, 0, len(transactionIntent)+len(txBytes))
	buf = append(buf, transactionIntent[:]...)
	buf = append(buf, txBytes...)
	return blake2b.Sum256(buf)
}

func serializeSignature(sig []byte, pub ed25519.PublicKey) string {
	buf := make([]byte, 0, serializedSignatureLength)
	buf = append(buf, ed25519Flag)
	buf = append(buf, sig...)
	buf = append(buf, pub...)
	return base64.StdEncoding.EncodeToString(buf)
}

// VerifySignature checks that signature is a valid ed25519 signature of txBytes made by sender.
func VerifySignature(sender core.Address, txBytes []byte, signature string) error {
	raw, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return errors.Wrap(ErrInvalidSignature, "not base64")
	}
	if len(raw) != serializedSignatureLength {
		return errors.Wrapf(ErrInvalidSignature, "length is %d, want %d", len(raw), serializedSignatureLength)
	}
	if raw[0] != ed25519Flag {
		return errors.Wrapf(ErrInvalidSignature, "unsupported scheme flag 0x%02x", raw[0])
	}
	sig := raw[1 : 1+ed25519.SignatureSize]
	pub := ed25519.PublicKey(raw[1+ed25519.SignatureSize:])
	if AddressFromPublicKey(pub) != sender {
		return errors.Wrapf(ErrInvalidSignature, "public key does not belong to %v", sender)
	}
	digest := TransactionDigest(txBytes)
	if !ed25519.Verify(pub, digest[:], sig) {
		return errors.Wrap(ErrInvalidSignature, "verification failed")
	}
	return nil
}
