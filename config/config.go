package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var defineFlagsOnce sync.Once

// Config holds the runtime configuration for the mapper and its backend.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Mapper   MapperConfig   `mapstructure:"mapper"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// DatabaseConfig holds database connection parameters.
type DatabaseConfig struct {
	// Driver selects the database/sql driver: "mysql" or "sqlite".
	Driver string `mapstructure:"driver"`
	// ConnectionString is a complete driver DSN. When set it overrides the
	// discrete fields below.
	ConnectionString string `mapstructure:"dsn"`

	// Discrete connection fields (mysql only, used when DSN is not set)
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`

	Pool PoolConfig `mapstructure:"pool"`
}

// PoolConfig holds connection pool parameters.
type PoolConfig struct {
	MaxOpen int `mapstructure:"max_open"`
	MaxIdle int `mapstructure:"max_idle"`
}

// MapperConfig holds tunables for relation loading.
type MapperConfig struct {
	// MaxEagerDepth bounds automatic relation registration depth.
	MaxEagerDepth int `mapstructure:"max_eager_depth"`
	// BatchMaxInClause caps the number of values a single IN clause may
	// carry before the lookup is chunked.
	BatchMaxInClause int `mapstructure:"batch_max_in_clause"`
}

// LoggingConfig holds logging parameters.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load loads configuration with the following precedence:
// 1. Command line flags
// 2. Environment variables
// 3. Config file
// 4. Default values
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	defineFlags()
	if !pflag.Parsed() {
		pflag.Parse()
	}

	cfgPath, _ := pflag.CommandLine.GetString("config")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.SetConfigName("spot2")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/spot2/")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if cfgPath != "" {
			return nil, fmt.Errorf("failed to read config file %q: %w", cfgPath, err)
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Canonical keys: dot + snake_case. Env vars: SPOT2_DATABASE_DSN,
	// SPOT2_MAPPER_MAX_EAGER_DEPTH, and so on.
	v.SetEnvPrefix("SPOT2")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	bindChangedFlagsToViper(v)

	var cfg Config
	decoderOpts := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, decoderOpts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if result := cfg.Validate(); result.HasErrors() {
		return nil, fmt.Errorf("invalid configuration: %s", result.Error())
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.pool.max_open", 10)
	v.SetDefault("database.pool.max_idle", 5)

	v.SetDefault("mapper.max_eager_depth", 1)
	v.SetDefault("mapper.batch_max_in_clause", 1000)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

func defineFlags() {
	defineFlagsOnce.Do(func() {
		pflag.String("config", "", "Path to config file")
		pflag.String("database-driver", "mysql", "Database driver (mysql, sqlite)")
		pflag.String("database-dsn", "", "Database connection string")
		pflag.String("database-host", "127.0.0.1", "Database host")
		pflag.Int("database-port", 3306, "Database port")
		pflag.String("database-user", "", "Database user")
		pflag.String("database-name", "", "Database name")
		pflag.Int("max-eager-depth", 1, "Automatic relation loading depth")
		pflag.Int("batch-max-in-clause", 1000, "Max values per batched IN clause")
		pflag.String("log-level", "info", "Log level (debug, info, warn, error)")
		pflag.String("log-format", "json", "Log format (json, text)")
	})
}

// bindChangedFlagsToViper copies only explicitly-set flags into Viper, so
// flag defaults do not shadow env vars or the config file.
func bindChangedFlagsToViper(v *viper.Viper) {
	keys := map[string]string{
		"database-driver":     "database.driver",
		"database-dsn":        "database.dsn",
		"database-host":       "database.host",
		"database-port":       "database.port",
		"database-user":       "database.user",
		"database-name":       "database.database",
		"max-eager-depth":     "mapper.max_eager_depth",
		"batch-max-in-clause": "mapper.batch_max_in_clause",
		"log-level":           "logging.level",
		"log-format":          "logging.format",
	}
	pflag.CommandLine.Visit(func(f *pflag.Flag) {
		if key, ok := keys[f.Name]; ok {
			v.Set(key, f.Value.String())
		}
	})
}
