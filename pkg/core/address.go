package core

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
)

const AddressLength = 32

// Address identifies an account or an object on an IOTA network.
type Address [AddressLength]byte

// ObjectID shares the address space with accounts.
type ObjectID = Address

// ParseAddress parses a hex encoded address with an optional 0x prefix.
// Short forms like "0x2" are left padded with zeros.
func ParseAddress(s string) (Address, error) {
	var a Address
	h := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	if len(h) == 0 || len(h) > 2*AddressLength {
		return a, errors.Wrapf(ErrInvalidAddress, "%q", s)
	}
	if len(h)%2 == 1 {
		h = "0" + h
	}
	b, err := hex.DecodeString(h)
	if err != nil {
		return a, errors.Wrapf(ErrInvalidAddress, "%q", s)
	}
	copy(a[AddressLength-len(b):], b)
	return a, nil
}

func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Address) String() string {
	return fmt.Sprintf("0x%x", a[:])
}

func (a Address) IsZero() bool {
	return a == Address{}
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
