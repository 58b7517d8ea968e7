package config

import (
	"log"
	"os"
	"reflect"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/go-faster/errors"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/iota-community/workshops/pkg/core"
	"github.com/iota-community/workshops/pkg/sponsor"
)

type Config struct {
	API struct {
		Port               int    `env:"PORT" envDefault:"8081"`
		BulkLimits         int    `env:"BULK_LIMITS" envDefault:"100"`
		RateLimitPerSecond uint64 `env:"RATE_LIMIT_PER_SECOND" envDefault:"0"`
	}
	App struct {
		LogLevel    string `env:"LOG_LEVEL" envDefault:"INFO"`
		MetricsPort int    `env:"METRICS_PORT" envDefault:"9010"`
		// ServiceSecretKey enables posting without an external wallet.
		ServiceSecretKey string `env:"SERVICE_SECRET_KEY"`
		FeedLimit        int    `env:"FEED_LIMIT" envDefault:"0"`
	}
	GasStation struct {
		URL     string        `env:"GAS_STATION_URL" envDefault:"http://localhost:9527"`
		Auth    string        `env:"GAS_STATION_AUTH"`
		Timeout time.Duration `env:"GAS_STATION_TIMEOUT" envDefault:"30s"`
	}
	Node struct {
		URL string `env:"IOTA_NODE_URL" envDefault:"https://api.testnet.iota.cafe"`
	}
	Sponsor struct {
		GasBudget           uint64        `env:"SPONSOR_GAS_BUDGET" envDefault:"50000000"`
		ReservationLifetime time.Duration `env:"SPONSOR_RESERVATION_LIFETIME" envDefault:"400s"`
		PackageID           core.Address  `env:"SPONSOR_PACKAGE_ID"`
		Module              string        `env:"SPONSOR_MODULE" envDefault:"media"`
		Function            string        `env:"SPONSOR_FUNCTION" envDefault:"post_message"`
		// Target overrides PackageID, Module and Function when set as package::module::function.
		Target           core.MoveTarget `env:"SPONSOR_TARGET"`
		MaxContentLength int             `env:"SPONSOR_MAX_CONTENT_LENGTH" envDefault:"280"`
		ReserveAttempts  uint            `env:"SPONSOR_RESERVE_ATTEMPTS" envDefault:"1"`
		ProfileFile      string          `env:"SPONSOR_PROFILE_FILE"`
	}
}

// Profile holds the values that differ between deployments of the same contract.
// Non-zero fields take precedence over the environment.
type Profile struct {
	GasBudget           uint64        `yaml:"gas_budget"`
	ReservationLifetime time.Duration `yaml:"reservation_lifetime"`
	MaxContentLength    int           `yaml:"max_content_length"`
	ReserveAttempts     uint          `yaml:"reserve_attempts"`
}

func Load() Config {
	c, err := Parse()
	if err != nil {
		log.Panicf("[‼️  Config parsing failed] %+v\n", err)
	}
	return c
}

// Parse reads the environment and the optional profile file and validates the result.
func Parse() (Config, error) {
	var c Config
	if err := env.ParseWithFuncs(&c, map[reflect.Type]env.ParserFunc{
		reflect.TypeOf(core.MoveTarget{}): func(v string) (interface{}, error) {
			return core.ParseMoveTarget(v)
		},
	}); err != nil {
		return Config{}, err
	}
	if c.Sponsor.ProfileFile != "" {
		profile, err := LoadProfile(c.Sponsor.ProfileFile)
		if err != nil {
			return Config{}, err
		}
		c.applyProfile(profile)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func LoadProfile(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, errors.Wrap(err, "read profile")
	}
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, errors.Wrapf(err, "parse profile %v", path)
	}
	return p, nil
}

func (c *Config) applyProfile(p Profile) {
	if p.GasBudget > 0 {
		c.Sponsor.GasBudget = p.GasBudget
	}
	if p.ReservationLifetime > 0 {
		c.Sponsor.ReservationLifetime = p.ReservationLifetime
	}
	if p.MaxContentLength > 0 {
		c.Sponsor.MaxContentLength = p.MaxContentLength
	}
	if p.ReserveAttempts > 0 {
		c.Sponsor.ReserveAttempts = p.ReserveAttempts
	}
}

func (c Config) MoveTarget() core.MoveTarget {
	if !c.Sponsor.Target.IsZero() {
		return c.Sponsor.Target
	}
	return core.MoveTarget{
		Package:  c.Sponsor.PackageID,
		Module:   c.Sponsor.Module,
		Function: c.Sponsor.Function,
	}
}

func (c Config) SponsorConfig() sponsor.Config {
	cfg := sponsor.DefaultConfig(c.MoveTarget())
	cfg.GasBudget = c.Sponsor.GasBudget
	cfg.ReservationLifetime = c.Sponsor.ReservationLifetime
	cfg.MaxContentLength = c.Sponsor.MaxContentLength
	cfg.ReserveAttempts = c.Sponsor.ReserveAttempts
	return cfg
}

func (c Config) Validate() error {
	var err error
	if c.GasStation.Auth == "" {
		err = multierr.Append(err, errors.New("GAS_STATION_AUTH is required"))
	}
	if c.GasStation.Timeout <= 0 {
		err = multierr.Append(err, errors.New("GAS_STATION_TIMEOUT must be positive"))
	}
	if c.App.FeedLimit < 0 {
		err = multierr.Append(err, errors.New("FEED_LIMIT must not be negative"))
	}
	return multierr.Append(err, c.SponsorConfig().Validate())
}
