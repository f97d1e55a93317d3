package cli

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/tarantool/go-storage-walker/marshaller"
)

// Supported backends.
const (
	BackendSubstrate = "substrate"
	BackendEtcd      = "etcd"
	BackendTarantool = "tarantool"
)

var (
	// ErrInvalidConfig is returned for configurations that fail validation.
	ErrInvalidConfig = errors.New("invalid configuration")

	backends = []string{BackendSubstrate, BackendEtcd, BackendTarantool}
)

// Config holds the settings of all commands. Every field can be set with a
// flag, a STORAGEWALK_* environment variable or the config file.
type Config struct {
	LogLevel string `mapstructure:"log-level"`
	Output   string `mapstructure:"output"`

	Backend     string        `mapstructure:"backend"`
	Endpoints   []string      `mapstructure:"endpoint"`
	DialTimeout time.Duration `mapstructure:"dial-timeout"`
	At          string        `mapstructure:"at"`
	Finalized   bool          `mapstructure:"finalized"`

	Concurrency int     `mapstructure:"concurrency"`
	PageSize    int     `mapstructure:"page-size"`
	RPS         float64 `mapstructure:"rps"`
	Burst       int     `mapstructure:"burst"`
	StopOnError bool    `mapstructure:"stop-on-handler-error"`

	MetricsAddr      string        `mapstructure:"metrics-addr"`
	ProgressInterval time.Duration `mapstructure:"progress-interval"`

	TarantoolUser     string `mapstructure:"tarantool-user"`
	TarantoolPassword string `mapstructure:"tarantool-password"`
	TarantoolSpace    string `mapstructure:"tarantool-space"`
	TarantoolIndex    string `mapstructure:"tarantool-index"`

	Sample      bool    `mapstructure:"sample"`
	Probability float64 `mapstructure:"probability"`
	Override    string  `mapstructure:"override"`
	Seed        uint64  `mapstructure:"seed"`

	Out string `mapstructure:"out"`

	SkipIssuanceCheck bool `mapstructure:"skip-issuance-check"`
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// Validate checks the settings shared by all commands.
func (c Config) Validate() error {
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return invalid("log level %q", c.LogLevel)
	}

	if _, err := marshaller.ForFormat[Report](c.Output); err != nil {
		return invalid("output format %q", c.Output)
	}

	switch {
	case c.PageSize <= 0:
		return invalid("page size must be positive, got %d", c.PageSize)
	case c.Concurrency < 0:
		return invalid("concurrency must not be negative, got %d", c.Concurrency)
	case c.Probability < 0 || c.Probability > 1:
		return invalid("probability must be within [0, 1], got %v", c.Probability)
	}

	return nil
}

// ValidateSource checks the settings of commands that read a backend.
func (c Config) ValidateSource() error {
	if !slices.Contains(backends, c.Backend) {
		return invalid("unknown backend %q, expected one of %v", c.Backend, backends)
	}

	if len(c.Endpoints) == 0 {
		return invalid("no endpoint for backend %s", c.Backend)
	}

	return nil
}
