package sponsor

import (
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/multierr"

	"github.com/iota-community/workshops/pkg/core"
)

const (
	DefaultGasBudget           uint64 = 50_000_000
	DefaultReservationLifetime        = 400 * time.Second
	DefaultMaxContentLength           = 280
)

// Config is the parameter record of a submitter. Workshop variants differ only by these values.
type Config struct {
	GasBudget           uint64
	ReservationLifetime time.Duration
	Target              core.MoveTarget
	// MaxContentLength limits posts by characters, zero disables the limit.
	MaxContentLength int
	// ReserveAttempts above one enables retries of the gas reservation step.
	ReserveAttempts uint
	ReserveDelay    time.Duration
}

func DefaultConfig(target core.MoveTarget) Config {
	return Config{
		GasBudget:           DefaultGasBudget,
		ReservationLifetime: DefaultReservationLifetime,
		Target:              target,
		MaxContentLength:    DefaultMaxContentLength,
		ReserveAttempts:     1,
		ReserveDelay:        500 * time.Millisecond,
	}
}

func (c Config) Validate() error {
	var err error
	if c.GasBudget == 0 {
		err = multierr.Append(err, errors.New("gas budget must be positive"))
	}
	if c.ReservationLifetime < time.Second {
		err = multierr.Append(err, errors.Errorf("reservation lifetime %v is shorter than a second", c.ReservationLifetime))
	}
	if c.Target.Package.IsZero() || c.Target.Module == "" || c.Target.Function == "" {
		err = multierr.Append(err, errors.Wrapf(core.ErrInvalidTarget, "%v", c.Target))
	}
	if c.MaxContentLength < 0 {
		err = multierr.Append(err, errors.New("max content length must not be negative"))
	}
	return err
}
