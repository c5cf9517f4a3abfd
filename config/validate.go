package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error with context.
type ValidationError struct {
	Field   string
	Message string
	Hint    string
}

func (e ValidationError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s (hint: %s)", e.Field, e.Message, e.Hint)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationResult contains the results of configuration validation.
type ValidationResult struct {
	Errors []ValidationError
}

// HasErrors returns true if there are any validation errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// Error returns a combined error message if there are validation errors.
func (r *ValidationResult) Error() string {
	if !r.HasErrors() {
		return ""
	}
	var msgs []string
	for _, e := range r.Errors {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

func (r *ValidationResult) addError(field, message, hint string) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: message, Hint: hint})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() *ValidationResult {
	result := &ValidationResult{}
	c.Database.validate(result)
	c.Mapper.validate(result)
	c.Logging.validate(result)
	return result
}

func (d *DatabaseConfig) validate(result *ValidationResult) {
	switch d.Driver {
	case "mysql", "sqlite":
	default:
		result.addError("database.driver",
			fmt.Sprintf("unsupported driver %q", d.Driver),
			"use \"mysql\" or \"sqlite\"")
	}
	if d.Driver == "sqlite" && d.ConnectionString == "" {
		result.addError("database.dsn",
			"sqlite requires a DSN",
			"set database.dsn to a file path or \"file::memory:?cache=shared\"")
	}
	if d.Driver == "mysql" && d.ConnectionString == "" {
		if d.Port <= 0 || d.Port > 65535 {
			result.addError("database.port",
				fmt.Sprintf("invalid port %d", d.Port), "")
		}
		if d.Database == "" {
			result.addError("database.database",
				"database name is required",
				"set database.database or provide a full DSN")
		}
	}
	if d.Pool.MaxOpen < 0 || d.Pool.MaxIdle < 0 {
		result.addError("database.pool", "pool sizes must be non-negative", "")
	}
}

func (m *MapperConfig) validate(result *ValidationResult) {
	if m.MaxEagerDepth < 0 {
		result.addError("mapper.max_eager_depth", "must be non-negative", "")
	}
	if m.BatchMaxInClause < 1 {
		result.addError("mapper.batch_max_in_clause", "must be at least 1", "")
	}
}

func (l *LoggingConfig) validate(result *ValidationResult) {
	switch strings.ToLower(l.Level) {
	case "debug", "info", "warn", "error":
	default:
		result.addError("logging.level",
			fmt.Sprintf("unknown level %q", l.Level),
			"use debug, info, warn or error")
	}
	switch strings.ToLower(l.Format) {
	case "json", "text":
	default:
		result.addError("logging.format",
			fmt.Sprintf("unknown format %q", l.Format),
			"use json or text")
	}
}
