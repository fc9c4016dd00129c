// Package config loads the configuration of the command line tool.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/syssam/stmtgroup/dialect"
)

// EnvPrefix prefixes the environment variables overriding configuration
// keys, e.g. STMTGROUP_DATABASE_DSN.
const EnvPrefix = "STMTGROUP"

// Config is the configuration of the command line tool.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	Stats    StatsConfig    `mapstructure:"stats"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
	// Plan is the path of the mutation plan to apply.
	Plan string `mapstructure:"plan"`
}

// DatabaseConfig selects the database driver and connection.
type DatabaseConfig struct {
	// Driver is the database/sql driver name: sqlite, mysql, postgres or pgx.
	Driver       string        `mapstructure:"driver"`
	DSN          string        `mapstructure:"dsn"`
	MaxOpenConns int           `mapstructure:"max_open_conns"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// Dialect returns the SQL dialect of the configured driver.
func (c DatabaseConfig) Dialect() string { return dialect.FromDriverName(c.Driver) }

// LogConfig configures logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// StatsConfig configures statement statistics.
type StatsConfig struct {
	SlowThreshold time.Duration `mapstructure:"slow_threshold"`
}

// MetricsConfig configures the Prometheus collector.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 1)
	v.SetDefault("database.timeout", 30*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("stats.slow_threshold", 100*time.Millisecond)
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.namespace", "stmtgroup")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("plan", "")
}

// NewFlagSet defines the command line flags using canonical config keys.
func NewFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String("config", "", "Path to config file (YAML)")
	fs.String("database.driver", "", "Database driver (sqlite, mysql, postgres, pgx)")
	fs.String("database.dsn", "", "Database DSN")
	fs.Int("database.max_open_conns", 0, "Maximum open database connections")
	fs.Duration("database.timeout", 0, "Timeout applying the plan (e.g. 30s)")
	fs.String("log.level", "", "Log level (debug, info, warn, error)")
	fs.String("log.format", "", "Log format (json, text)")
	fs.Duration("stats.slow_threshold", 0, "Threshold for slow statement logging")
	fs.Bool("metrics.enabled", false, "Print statement metrics after applying the plan")
	fs.String("metrics.namespace", "", "Metric name prefix")
	fs.Bool("tracing.enabled", false, "Enable OpenTelemetry tracing of statements")
	fs.String("plan", "", "Path to the mutation plan (YAML)")
	return fs
}

// Load loads configuration with the following precedence:
// 1. Command line flags
// 2. Environment variables
// 3. Config file
// 4. Default values
func Load(args []string) (*Config, error) {
	fs := NewFlagSet("stmtgroup")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return LoadFlags(fs)
}

// LoadFlags loads configuration from an already parsed flag set.
func LoadFlags(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	cfgPath, _ := fs.GetString("config")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.SetConfigName("stmtgroup")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		if cfgPath != "" {
			return nil, fmt.Errorf("config: reading %q: %w", cfgPath, err)
		}
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	bindChangedFlags(v, fs)

	var cfg Config
	if err := v.UnmarshalExact(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// bindChangedFlags copies only explicitly set flags into v, preserving
// precedence: flags > env > file > defaults.
func bindChangedFlags(v *viper.Viper, fs *pflag.FlagSet) {
	fs.Visit(func(f *pflag.Flag) {
		if f.Name == "config" {
			return
		}
		switch f.Value.Type() {
		case "int":
			val, _ := fs.GetInt(f.Name)
			v.Set(f.Name, val)
		case "bool":
			val, _ := fs.GetBool(f.Name)
			v.Set(f.Name, val)
		case "duration":
			val, _ := fs.GetDuration(f.Name)
			v.Set(f.Name, val)
		default:
			v.Set(f.Name, f.Value.String())
		}
	})
}

// ValidationError represents a configuration validation error with context.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case "sqlite", "mysql", "postgres", "pgx":
	default:
		errs = append(errs, ValidationError{Field: "database.driver", Message: fmt.Sprintf("unsupported driver %q", c.Database.Driver)})
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		errs = append(errs, ValidationError{Field: "database.dsn", Message: "must not be empty"})
	}
	if c.Database.Timeout <= 0 {
		errs = append(errs, ValidationError{Field: "database.timeout", Message: "must be positive"})
	}
	if c.Database.MaxOpenConns < 0 {
		errs = append(errs, ValidationError{Field: "database.max_open_conns", Message: "must not be negative"})
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, ValidationError{Field: "log.format", Message: fmt.Sprintf("unsupported format %q", c.Log.Format)})
	}
	if c.Stats.SlowThreshold < 0 {
		errs = append(errs, ValidationError{Field: "stats.slow_threshold", Message: "must not be negative"})
	}
	return errors.Join(errs...)
}
