package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/go-sql-driver/mysql"
)

// DSN returns the driver-specific data source name.
func (d *DatabaseConfig) DSN() string {
	if d.ConnectionString != "" {
		if d.DriverName() == DriverMySQL {
			return ensureMySQLParseTime(d.ConnectionString)
		}
		return d.ConnectionString
	}

	if d.DriverName() == DriverMySQL {
		cfg := mysql.NewConfig()
		cfg.User = d.User
		cfg.Passwd = d.Password
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
		cfg.DBName = d.Database
		cfg.ParseTime = true
		return cfg.FormatDSN()
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:   "/" + d.Database,
	}
	if d.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": []string{d.SSLMode}}.Encode()
	}
	return u.String()
}

// DriverName returns the configured driver, defaulting to postgres.
func (d *DatabaseConfig) DriverName() string {
	if d.Driver == "" {
		return DriverPostgres
	}
	return d.Driver
}

// CatalogName returns the information_schema scope for table lookups:
// the database name for MySQL and the schema name for PostgreSQL.
func (d *DatabaseConfig) CatalogName() string {
	if d.DriverName() == DriverMySQL {
		if d.Database != "" {
			return d.Database
		}
		if cfg, err := mysql.ParseDSN(d.ConnectionString); err == nil {
			return cfg.DBName
		}
		return ""
	}
	if d.Schema == "" {
		return "public"
	}
	return d.Schema
}

func ensureMySQLParseTime(dsn string) string {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return dsn
	}
	cfg.ParseTime = true
	return cfg.FormatDSN()
}

// String redacts the password for logging.
func (d DatabaseConfig) String() string {
	return fmt.Sprintf("%s://%s@%s:%d/%s", d.DriverName(), d.User, d.Host, d.Port, d.Database)
}
