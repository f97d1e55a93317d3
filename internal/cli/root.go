// Package cli implements the storagewalk command line tool.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	walker "github.com/tarantool/go-storage-walker"
	"github.com/tarantool/go-storage-walker/internal/options"
	"github.com/tarantool/go-storage-walker/keys"
	"github.com/tarantool/go-storage-walker/progress"
)

const (
	envPrefix  = "STORAGEWALK"
	configName = "storagewalk"
)

type appOptions struct {
	Out     io.Writer
	Sources SourceFactory
	Logger  *zap.Logger
}

// Option configures the command tree.
type Option = options.OptionCallback[appOptions]

// WithOutput sets where reports are printed.
func WithOutput(out io.Writer) Option {
	return func(opts *appOptions) {
		opts.Out = out
	}
}

// WithSourceFactory replaces the backend connectors.
func WithSourceFactory(factory SourceFactory) Option {
	return func(opts *appOptions) {
		opts.Sources = factory
	}
}

// WithLogger replaces the logger built from --log-level.
func WithLogger(logger *zap.Logger) Option {
	return func(opts *appOptions) {
		opts.Logger = logger
	}
}

func defaultAppOptions() appOptions {
	return appOptions{
		Out:     os.Stdout,
		Sources: OpenSource,
		Logger:  nil,
	}
}

// app is the state shared by the commands of one invocation.
type app struct {
	opts   appOptions
	viper  *viper.Viper
	cfg    Config
	logger *zap.Logger
}

// NewRootCmd builds the storagewalk command tree.
func NewRootCmd(opts ...Option) *cobra.Command {
	a := &app{ //nolint:exhaustruct
		opts:  options.ApplyOptions(defaultAppOptions, opts),
		viper: viper.New(),
	}

	var configFile string

	root := &cobra.Command{ //nolint:exhaustruct
		Use:   "storagewalk",
		Short: "Walk the key-value storage of a chain node",
		Long: "storagewalk pages through every key under a storage prefix of a Substrate node, " +
			"an etcd cluster or a Tarantool space, and counts, dumps or aggregates the entries.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd, configFile)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file (default is ./storagewalk.yaml)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.StringP("output", "o", "yaml", "report format (yaml, json)")
	flags.String("backend", BackendSubstrate, "storage backend (substrate, etcd, tarantool)")
	flags.StringSlice("endpoint", nil, "backend endpoint, repeatable")
	flags.Duration("dial-timeout", 5*time.Second, "connection timeout")
	flags.String("at", "", "chain position to read at, the head by default")
	flags.Bool("finalized", false, "pin to the finalized head instead of the best block")
	flags.Int("concurrency", 16, "sub-prefix walks running at once, 0 for no limit")
	flags.Int("page-size", walker.DefaultPageSize, "keys requested per page")
	flags.Float64("rps", 0, "request rate limit per second, 0 for no limit")
	flags.Int("burst", 1, "request rate limit burst")
	flags.Bool("stop-on-handler-error", false, "abort a sub-prefix walk when a page fails to process")
	flags.String("metrics-addr", "", "serve Prometheus metrics on this address")
	flags.Duration("progress-interval", progress.DefaultInterval, "time between progress log lines")
	flags.String("tarantool-user", "", "Tarantool user")
	flags.String("tarantool-password", "", "Tarantool password")
	flags.String("tarantool-space", "storage", "Tarantool space holding the entries")
	flags.String("tarantool-index", "primary", "Tarantool tree index on the key field")
	flags.Float64("probability", keys.DefaultSampleProbability, "sub-prefix inclusion probability when sampling")

	root.AddCommand(
		newCountCmd(a),
		newDumpCmd(a),
		newIssuanceCmd(a),
		newDecomposeCmd(a),
		newPrefixCmd(a),
	)

	return root
}

func (a *app) init(cmd *cobra.Command, configFile string) error {
	if err := a.viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("failed to bind flags: %w", err)
	}

	if configFile != "" {
		a.viper.SetConfigFile(configFile)
	} else {
		a.viper.AddConfigPath(".")
		a.viper.SetConfigName(configName)
		a.viper.SetConfigType("yaml")
	}

	if err := a.viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	a.viper.SetEnvPrefix(envPrefix)
	a.viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.viper.AutomaticEnv()

	if err := a.viper.Unmarshal(&a.cfg); err != nil {
		return fmt.Errorf("failed to decode config: %w", err)
	}

	if err := a.cfg.Validate(); err != nil {
		return err
	}

	if a.opts.Logger != nil {
		a.logger = a.opts.Logger
		return nil
	}

	logger, err := newLogger(a.cfg.LogLevel)
	if err != nil {
		return err
	}

	a.logger = logger

	return nil
}

// newLogger builds a production logger writing to stderr, so reports on
// stdout stay machine readable.
func newLogger(level string) (*zap.Logger, error) {
	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, invalid("log level %q", level)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parsed)
	cfg.OutputPaths = []string{"stderr"}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	return logger, nil
}

// resolvePrefix accepts a hex prefix or a Pallet.Item storage name.
func resolvePrefix(arg string) (string, error) {
	if strings.HasPrefix(arg, "0x") || strings.HasPrefix(arg, "0X") {
		prefix := strings.ToLower(arg)
		if _, err := keys.ToBytes(prefix); err != nil {
			return "", err //nolint:wrapcheck
		}

		return prefix, nil
	}

	pallet, item, ok := strings.Cut(arg, ".")
	if !ok {
		return "", invalid("prefix %q is neither 0x-prefixed hex nor Pallet.Item", arg)
	}

	return keys.StoragePrefix(pallet, item) //nolint:wrapcheck
}
