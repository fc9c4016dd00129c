package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/stmtgroup/dialect"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stmtgroup.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load([]string{"--database.dsn", ":memory:"})
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, dialect.SQLite, cfg.Database.Dialect())
	assert.Equal(t, ":memory:", cfg.Database.DSN)
	assert.Equal(t, 1, cfg.Database.MaxOpenConns)
	assert.Equal(t, 30*time.Second, cfg.Database.Timeout)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, 100*time.Millisecond, cfg.Stats.SlowThreshold)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, "stmtgroup", cfg.Metrics.Namespace)
	assert.False(t, cfg.Tracing.Enabled)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: pgx
  dsn: postgres://localhost/app
  max_open_conns: 4
log:
  level: debug
  format: json
stats:
  slow_threshold: 250ms
metrics:
  enabled: true
plan: plan.yaml
`)
	cfg, err := Load([]string{"--config", path})
	require.NoError(t, err)
	assert.Equal(t, "pgx", cfg.Database.Driver)
	assert.Equal(t, dialect.Postgres, cfg.Database.Dialect())
	assert.Equal(t, 4, cfg.Database.MaxOpenConns)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 250*time.Millisecond, cfg.Stats.SlowThreshold)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "plan.yaml", cfg.Plan)
}

func TestLoad_Precedence(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: mysql
  dsn: root@tcp(file)/app
log:
  level: warn
`)
	t.Setenv("STMTGROUP_DATABASE_DSN", "root@tcp(env)/app")
	t.Setenv("STMTGROUP_LOG_LEVEL", "error")
	t.Setenv("STMTGROUP_TRACING_ENABLED", "true")

	cfg, err := Load([]string{"--config", path, "--log.level", "debug", "--stats.slow_threshold", "1s"})
	require.NoError(t, err)
	assert.Equal(t, "mysql", cfg.Database.Driver, "file overrides defaults")
	assert.Equal(t, "root@tcp(env)/app", cfg.Database.DSN, "env overrides file")
	assert.Equal(t, "debug", cfg.Log.Level, "flags override env")
	assert.True(t, cfg.Tracing.Enabled)
	assert.Equal(t, time.Second, cfg.Stats.SlowThreshold)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing.yaml")
	})
	t.Run("unknown key", func(t *testing.T) {
		path := writeConfig(t, "database:\n  dsn: x\n  pool: 3\n")
		_, err := Load([]string{"--config", path})
		require.Error(t, err)
	})
	t.Run("bad flag", func(t *testing.T) {
		_, err := Load([]string{"--unknown"})
		require.Error(t, err)
	})
	t.Run("invalid", func(t *testing.T) {
		t.Chdir(t.TempDir())
		_, err := Load([]string{"--database.driver", "oracle"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), `unsupported driver "oracle"`)
		assert.Contains(t, err.Error(), "database.dsn: must not be empty")
	})
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Database: DatabaseConfig{Driver: "postgres", DSN: "postgres://localhost/app", Timeout: time.Minute},
			Log:      LogConfig{Level: "info", Format: "text"},
		}
	}
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "driver", mutate: func(c *Config) { c.Database.Driver = "" }, field: "database.driver"},
		{name: "dsn", mutate: func(c *Config) { c.Database.DSN = "  " }, field: "database.dsn"},
		{name: "zero timeout", mutate: func(c *Config) { c.Database.Timeout = 0 }, field: "database.timeout"},
		{name: "negative timeout", mutate: func(c *Config) { c.Database.Timeout = -time.Second }, field: "database.timeout"},
		{name: "max open", mutate: func(c *Config) { c.Database.MaxOpenConns = -1 }, field: "database.max_open_conns"},
		{name: "format", mutate: func(c *Config) { c.Log.Format = "xml" }, field: "log.format"},
		{name: "slow threshold", mutate: func(c *Config) { c.Stats.SlowThreshold = -time.Second }, field: "stats.slow_threshold"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.field == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			var ve ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}
