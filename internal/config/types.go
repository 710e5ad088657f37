// Package config loads configuration from files, env vars, and flags, and validates it.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/judibo/herbs2pg/internal/entity"
	"github.com/judibo/herbs2pg/internal/fieldtype"
	"github.com/judibo/herbs2pg/internal/naming"
)

// Config holds the application configuration.
type Config struct {
	Database DatabaseConfig          `mapstructure:"database"`
	Logging  LoggingConfig           `mapstructure:"logging"`
	Naming   naming.Config           `mapstructure:"naming"`
	Export   ExportConfig            `mapstructure:"export"`
	Entities map[string]EntityConfig `mapstructure:"entities"`

	Observability ObservabilityConfig `mapstructure:"observability"`
}

// Supported database drivers.
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// PoolConfig holds connection pool parameters.
type PoolConfig struct {
	MaxOpen     int           `mapstructure:"max_open"`
	MaxIdle     int           `mapstructure:"max_idle"`
	MaxLifetime time.Duration `mapstructure:"max_lifetime"`
}

// DatabaseConfig holds database connection parameters.
type DatabaseConfig struct {
	// Driver selects the SQL driver: "postgres" (default) or "mysql".
	Driver string `mapstructure:"driver"`
	// ConnectionString is a complete driver DSN. When set, overrides the
	// discrete connection fields.
	// Configured via "dsn" in YAML or H2PG_DATABASE_DSN env var.
	ConnectionString string `mapstructure:"dsn"`
	// ConnectionStringFile is a path to a file containing the DSN.
	// Supports "@-" to read from stdin.
	ConnectionStringFile string `mapstructure:"dsn_file"`

	// Discrete connection fields (used when DSN is not set)
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	PasswordFile   string `mapstructure:"password_file"`
	PasswordPrompt bool   `mapstructure:"password_prompt"`
	Database       string `mapstructure:"database"`
	// SSLMode is passed to PostgreSQL as sslmode; ignored for MySQL.
	SSLMode string `mapstructure:"sslmode"`
	// Schema is the PostgreSQL schema tables are looked up in.
	Schema string `mapstructure:"schema"`

	Pool PoolConfig `mapstructure:"pool"`

	// ConnectionTimeout bounds the startup wait; 0 tries once.
	ConnectionTimeout time.Duration `mapstructure:"connection_timeout"`
	// ConnectionRetryInterval is the first delay between startup attempts.
	ConnectionRetryInterval time.Duration `mapstructure:"connection_retry_interval"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// ObservabilityConfig holds tracing, log export and metrics settings.
type ObservabilityConfig struct {
	ServiceName      string  `mapstructure:"service_name"`
	ServiceVersion   string  `mapstructure:"service_version"`
	Environment      string  `mapstructure:"environment"`
	TracingEnabled   bool    `mapstructure:"tracing_enabled"`
	TraceSampleRatio float64 `mapstructure:"trace_sample_ratio"`
	// LogExportEnabled mirrors log records to the OTLP endpoint.
	LogExportEnabled bool `mapstructure:"log_export_enabled"`
	// MetricsTextfile, when set, receives the run's metrics in Prometheus
	// text format on exit (for the node_exporter textfile collector).
	MetricsTextfile string `mapstructure:"metrics_textfile"`

	OTLP OTLPConfig `mapstructure:"otlp"`
}

// OTLPConfig holds OTLP exporter configuration.
type OTLPConfig struct {
	Endpoint          string            `mapstructure:"endpoint"`
	Protocol          string            `mapstructure:"protocol"` // grpc, http/protobuf
	Insecure          bool              `mapstructure:"insecure"`
	TLSCertFile       string            `mapstructure:"tls_cert_file"`
	TLSClientCertFile string            `mapstructure:"tls_client_cert_file"`
	TLSClientKeyFile  string            `mapstructure:"tls_client_key_file"`
	Headers           map[string]string `mapstructure:"headers"`
	Timeout           time.Duration     `mapstructure:"timeout"`
	Compression       string            `mapstructure:"compression"` // none, gzip
	RetryEnabled      bool              `mapstructure:"retry_enabled"`
}

// Export modes.
const (
	// ModeDump reads table rows and writes entity documents.
	ModeDump = "dump"
	// ModeRestore reads entity documents and inserts them as table rows.
	ModeRestore = "restore"
)

// ExportConfig selects the rows the CLI maps and prints.
type ExportConfig struct {
	// Mode is dump (default) or restore.
	Mode string `mapstructure:"mode"`
	// Entity names an entry of Entities. When empty, the schema is derived
	// from the table's columns.
	Entity string `mapstructure:"entity"`
	// Table overrides the table name. Defaults to the entity's table.
	Table string `mapstructure:"table"`
	// IDFields overrides the identifier fields (entity field names).
	IDFields []string `mapstructure:"id_fields"`
	// Where holds column equality filters.
	Where   map[string]any `mapstructure:"where"`
	OrderBy []string       `mapstructure:"order_by"`
	Limit   int            `mapstructure:"limit"`
	Offset  int            `mapstructure:"offset"`
	// Format selects the output encoding: json (default), yaml or msgpack.
	Format string `mapstructure:"format"`
	// Pretty indents each JSON document.
	Pretty bool `mapstructure:"pretty"`
}

// EntityConfig declares an entity schema in configuration.
type EntityConfig struct {
	// Name is the entity label; defaults to the map key.
	Name string `mapstructure:"name"`
	// Table is the backing table; defaults to the pluralized snake_case name.
	Table    string        `mapstructure:"table"`
	IDFields []string      `mapstructure:"id_fields"`
	Fields   []FieldConfig `mapstructure:"fields"`
}

// FieldConfig declares one entity field.
type FieldConfig struct {
	Name string `mapstructure:"name"`
	// Type is a fieldtype string such as "Number" or "[Date]".
	Type string         `mapstructure:"type"`
	Meta map[string]any `mapstructure:"meta"`
}

// Schema builds the entity schema described by e.
func (e EntityConfig) Schema() (*entity.Schema, error) {
	fields := make([]entity.Field, 0, len(e.Fields))
	for _, f := range e.Fields {
		typ, err := fieldtype.Parse(f.Type)
		if err != nil {
			return nil, fmt.Errorf("entity %q field %q: %w", e.Name, f.Name, err)
		}
		fields = append(fields, entity.Field{Name: f.Name, Type: typ, Meta: f.Meta})
	}
	return entity.New(e.Name, fields...)
}

// Entity returns the configured entity with key, filling defaults. Keys are
// matched case-insensitively since viper lowercases map keys.
func (c *Config) Entity(key string, namer *naming.Namer) (EntityConfig, bool) {
	e, ok := c.Entities[strings.ToLower(key)]
	if !ok {
		return EntityConfig{}, false
	}
	if e.Name == "" {
		e.Name = key
	}
	if e.Table == "" {
		e.Table = namer.TableName(e.Name)
	}
	return e, true
}
