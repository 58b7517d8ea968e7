package core

import "time"

// GasReservation is a time-bounded claim on sponsor gas coins.
// It is consumed by exactly one execution attempt.
type GasReservation struct {
	SponsorAddress Address
	ReservationID  uint64
	GasCoins       []ObjectRef
	Budget         uint64
	ExpiresAt      time.Time
}

func (r GasReservation) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && !now.Before(r.ExpiresAt)
}

// SignedSubmission is what the gas station needs to co-sign and broadcast a transaction.
type SignedSubmission struct {
	ReservationID uint64
	TxBytes       []byte
	UserSignature string
}
