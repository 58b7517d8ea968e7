package core

import (
	"github.com/go-faster/errors"
	"github.com/mr-tron/base58"
)

const DigestLength = 32

// ObjectDigest is the content digest of an object version. Its text form is base58.
type ObjectDigest [DigestLength]byte

func ParseObjectDigest(s string) (ObjectDigest, error) {
	var d ObjectDigest
	b, err := base58.Decode(s)
	if err != nil {
		return d, errors.Wrapf(err, "decode digest %q", s)
	}
	if len(b) != DigestLength {
		return d, errors.Errorf("digest %q has %d bytes, want %d", s, len(b), DigestLength)
	}
	copy(d[:], b)
	return d, nil
}

func (d ObjectDigest) String() string {
	return base58.Encode(d[:])
}

// ObjectRef points at one version of an object, e.g. a gas coin supplied by the sponsor.
type ObjectRef struct {
	ObjectID ObjectID
	Version  uint64
	Digest   ObjectDigest
}
