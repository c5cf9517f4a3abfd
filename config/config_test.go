package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:   "mysql",
			Host:     "127.0.0.1",
			Port:     3306,
			User:     "app",
			Password: "secret",
			Database: "blog",
			Pool:     PoolConfig{MaxOpen: 10, MaxIdle: 5},
		},
		Mapper:  MapperConfig{MaxEagerDepth: 1, BatchMaxInClause: 1000},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Run("builds from discrete fields", func(t *testing.T) {
		cfg := validConfig()
		assert.Equal(t,
			"app:secret@tcp(127.0.0.1:3306)/blog?parseTime=true&loc=UTC",
			cfg.Database.DSN())
	})

	t.Run("explicit DSN gains parseTime and loc", func(t *testing.T) {
		cfg := validConfig()
		cfg.Database.ConnectionString = "app:secret@tcp(db:3306)/blog"
		assert.Equal(t,
			"app:secret@tcp(db:3306)/blog?parseTime=true&loc=UTC",
			cfg.Database.DSN())
	})

	t.Run("explicit DSN with params is only appended to", func(t *testing.T) {
		cfg := validConfig()
		cfg.Database.ConnectionString = "app:secret@tcp(db:3306)/blog?parseTime=true&loc=Local"
		assert.Equal(t,
			"app:secret@tcp(db:3306)/blog?parseTime=true&loc=Local",
			cfg.Database.DSN())
	})

	t.Run("sqlite passes the DSN through", func(t *testing.T) {
		cfg := validConfig()
		cfg.Database.Driver = "sqlite"
		cfg.Database.ConnectionString = "file::memory:?cache=shared"
		assert.Equal(t, "file::memory:?cache=shared", cfg.Database.DSN())
		assert.Equal(t, "sqlite", cfg.Database.DriverName())
	})
}

func TestConfig_Validate(t *testing.T) {
	t.Run("valid configuration passes", func(t *testing.T) {
		result := validConfig().Validate()
		assert.False(t, result.HasErrors())
	})

	cases := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"unsupported driver", func(c *Config) { c.Database.Driver = "postgres" }, "database.driver"},
		{"sqlite without DSN", func(c *Config) { c.Database.Driver = "sqlite" }, "database.dsn"},
		{"invalid port", func(c *Config) { c.Database.Port = 0 }, "database.port"},
		{"missing database name", func(c *Config) { c.Database.Database = "" }, "database.database"},
		{"negative pool size", func(c *Config) { c.Database.Pool.MaxOpen = -1 }, "database.pool"},
		{"negative eager depth", func(c *Config) { c.Mapper.MaxEagerDepth = -1 }, "mapper.max_eager_depth"},
		{"zero batch cap", func(c *Config) { c.Mapper.BatchMaxInClause = 0 }, "mapper.batch_max_in_clause"},
		{"unknown log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"unknown log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			result := cfg.Validate()
			require.True(t, result.HasErrors())

			found := false
			for _, e := range result.Errors {
				if e.Field == tc.field {
					found = true
				}
			}
			assert.True(t, found, "expected an error on %s, got %s", tc.field, result.Error())
		})
	}

	t.Run("full DSN skips discrete field checks", func(t *testing.T) {
		cfg := validConfig()
		cfg.Database.Database = ""
		cfg.Database.Port = 0
		cfg.Database.ConnectionString = "app:secret@tcp(db:3306)/blog"
		assert.False(t, cfg.Validate().HasErrors())
	})
}
