package config

import (
	"fmt"
	"strings"
)

// DSN returns the driver data source name. For mysql a DSN built from
// discrete fields always carries parseTime and a UTC location; an explicit
// DSN gets those appended when missing.
func (d *DatabaseConfig) DSN() string {
	if d.Driver == "sqlite" {
		return d.ConnectionString
	}

	if d.ConnectionString != "" {
		dsn := d.ConnectionString
		if !strings.Contains(dsn, "parseTime") {
			if strings.Contains(dsn, "?") {
				dsn += "&parseTime=true"
			} else {
				dsn += "?parseTime=true"
			}
		}
		if !strings.Contains(dsn, "loc=") {
			dsn += "&loc=UTC"
		}
		return dsn
	}

	return fmt.Sprintf(
		"%s:%s@tcp(%s:%d)/%s?parseTime=true&loc=UTC",
		d.User,
		d.Password,
		d.Host,
		d.Port,
		d.Database,
	)
}

// DriverName returns the database/sql driver name to open with.
func (d *DatabaseConfig) DriverName() string {
	if d.Driver == "sqlite" {
		return "sqlite"
	}
	return "mysql"
}
