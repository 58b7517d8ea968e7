package core

import (
	"strings"
	"time"

	"github.com/go-faster/errors"

	"github.com/iota-community/workshops/pkg/bcs"
)

// MoveTarget names a Move entry function as package::module::function.
type MoveTarget struct {
	Package  Address
	Module   string
	Function string
}

func ParseMoveTarget(s string) (MoveTarget, error) {
	parts := strings.Split(s, "::")
	if len(parts) != 3 || parts[1] == "" || parts[2] == "" {
		return MoveTarget{}, errors.Wrapf(ErrInvalidTarget, "%q", s)
	}
	pkg, err := ParseAddress(parts[0])
	if err != nil {
		return MoveTarget{}, errors.Wrapf(ErrInvalidTarget, "%q: %v", s, err)
	}
	return MoveTarget{Package: pkg, Module: parts[1], Function: parts[2]}, nil
}

func (t MoveTarget) String() string {
	return t.Package.String() + "::" + t.Module + "::" + t.Function
}

func (t MoveTarget) IsZero() bool {
	return t.Package.IsZero() && t.Module == "" && t.Function == ""
}

// PureArg is a BCS encoded pure value passed to a Move call.
type PureArg []byte

func PureString(s string) PureArg {
	return bcs.EncodeString(s)
}

func PureU64(v uint64) PureArg {
	return bcs.EncodeU64(v)
}

// DraftCall is a Move call authored by a user before any gas is attached.
type DraftCall struct {
	Target    MoveTarget
	Arguments []PureArg
	Sender    Address
}

// GasData describes who pays for a transaction and with which coins.
type GasData struct {
	Owner   Address
	Payment []ObjectRef
	Price   uint64
	Budget  uint64
}

// SponsoredTransaction is a DraftCall bound to sponsor provided gas. It is not signed yet.
type SponsoredTransaction struct {
	Call DraftCall
	Gas  GasData
	// ExpiresAt is the deadline of the reservation backing Gas.
	ExpiresAt time.Time
}
