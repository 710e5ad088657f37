package config

import (
	"fmt"
	"strings"

	"github.com/judibo/herbs2pg/internal/fieldtype"
	"github.com/judibo/herbs2pg/internal/naming"
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

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Field   string
	Message string
	Hint    string
}

// ValidationResult contains the results of configuration validation.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationWarning
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

// Validate checks the configuration for errors and returns validation results.
// It returns both errors (fatal) and warnings (non-fatal issues).
func (c *Config) Validate() *ValidationResult {
	result := &ValidationResult{}

	c.Database.validate(result)
	c.Logging.validate(result)
	validateNamingConfig(result, c.Naming)
	for key, e := range c.Entities {
		e.validate("entities."+key, result)
	}
	c.validateExport(result)
	c.Observability.validate(result)

	return result
}

func (d *DatabaseConfig) validate(result *ValidationResult) {
	switch d.DriverName() {
	case DriverPostgres, DriverMySQL:
	default:
		result.addError("database.driver",
			fmt.Sprintf("unsupported driver %q", d.Driver),
			"use postgres or mysql")
	}

	if d.ConnectionString == "" && (d.Port < 1 || d.Port > 65535) {
		result.addError("database.port",
			fmt.Sprintf("port %d is out of valid range (1-65535)", d.Port), "")
	}

	if d.ConnectionString != "" && (d.Password != "" || d.PasswordPrompt) {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Field:   "database.password",
			Message: "password is ignored when dsn is set",
			Hint:    "embed credentials in the dsn or use discrete fields",
		})
	}

	if d.ConnectionTimeout > 0 && d.ConnectionRetryInterval <= 0 {
		result.addError("database.connection_retry_interval",
			"must be positive when connection_timeout is set", "")
	}

	if d.Pool.MaxOpen < 0 {
		result.addError("database.pool.max_open", "must be non-negative", "")
	}
	if d.Pool.MaxIdle < 0 {
		result.addError("database.pool.max_idle", "must be non-negative", "")
	}
	if d.Pool.MaxOpen > 0 && d.Pool.MaxIdle > d.Pool.MaxOpen {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Field:   "database.pool.max_idle",
			Message: fmt.Sprintf("max_idle (%d) exceeds max_open (%d)", d.Pool.MaxIdle, d.Pool.MaxOpen),
			Hint:    "idle connections are capped at max_open",
		})
	}
}

func (l *LoggingConfig) validate(result *ValidationResult) {
	switch l.Level {
	case "", "debug", "info", "warn", "error":
	default:
		result.addError("logging.level",
			fmt.Sprintf("invalid log level %q", l.Level),
			"use debug, info, warn, or error")
	}
	switch l.Format {
	case "", "json", "text":
	default:
		result.addError("logging.format",
			fmt.Sprintf("invalid log format %q", l.Format),
			"use json or text")
	}
}

func validateNamingConfig(result *ValidationResult, cfg naming.Config) {
	for singular, plural := range cfg.PluralOverrides {
		if strings.TrimSpace(singular) == "" || strings.TrimSpace(plural) == "" {
			result.addError("naming.plural_overrides", "override keys and values cannot be empty", "")
		}
	}
	for plural, singular := range cfg.SingularOverrides {
		if strings.TrimSpace(plural) == "" || strings.TrimSpace(singular) == "" {
			result.addError("naming.singular_overrides", "override keys and values cannot be empty", "")
		}
	}
}

func (e EntityConfig) validate(prefix string, result *ValidationResult) {
	if len(e.Fields) == 0 {
		result.addError(prefix+".fields", "entity declares no fields", "")
		return
	}
	seen := make(map[string]bool, len(e.Fields))
	columns := make(map[string]string, len(e.Fields)) // column → field
	for i, f := range e.Fields {
		field := fmt.Sprintf("%s.fields[%d]", prefix, i)
		if f.Name == "" {
			result.addError(field+".name", "field name cannot be empty", "")
			continue
		}
		column := naming.ToSnakeCase(f.Name)
		if seen[f.Name] {
			result.addError(field+".name", fmt.Sprintf("duplicate field %q", f.Name), "")
		} else if other, taken := columns[column]; taken {
			result.addError(field+".name",
				fmt.Sprintf("field %q maps to the same column as %q", f.Name, other),
				"rename one of the fields")
		} else {
			columns[column] = f.Name
		}
		seen[f.Name] = true
		if _, err := fieldtype.Parse(f.Type); err != nil {
			result.addError(field+".type", err.Error(),
				"use Number, Boolean, String, Date, Object or a [bracketed] sequence of one")
		}
	}
	for _, id := range e.IDFields {
		if !seen[id] {
			result.addError(prefix+".id_fields",
				fmt.Sprintf("identifier field %q is not declared", id), "")
		}
	}
}

func (c *Config) validateExport(result *ValidationResult) {
	switch strings.ToLower(c.Export.Mode) {
	case "", ModeDump, ModeRestore:
	default:
		result.addError("export.mode",
			fmt.Sprintf("unsupported mode %q", c.Export.Mode),
			"use dump or restore")
	}
	if c.Export.Entity == "" && c.Export.Table == "" {
		result.addError("export",
			"neither export.entity nor export.table is set",
			"name a configured entity or a table to introspect")
	}
	if c.Export.Entity != "" {
		if _, ok := c.Entities[strings.ToLower(c.Export.Entity)]; !ok {
			result.addError("export.entity",
				fmt.Sprintf("entity %q is not declared under entities", c.Export.Entity), "")
		}
	}
	if c.Export.Limit < 0 {
		result.addError("export.limit", "must be non-negative", "")
	}
	if c.Export.Offset < 0 {
		result.addError("export.offset", "must be non-negative", "")
	}
	switch strings.ToLower(c.Export.Format) {
	case "", "json":
	case "yaml", "msgpack":
		if c.Export.Pretty {
			result.Warnings = append(result.Warnings, ValidationWarning{
				Field:   "export.pretty",
				Message: "pretty only applies to json output",
			})
		}
	default:
		result.addError("export.format",
			fmt.Sprintf("unsupported format %q", c.Export.Format),
			"use json, yaml, or msgpack")
	}
}

func (o *ObservabilityConfig) validate(result *ValidationResult) {
	if o.TraceSampleRatio < 0 || o.TraceSampleRatio > 1 {
		result.addError("observability.trace_sample_ratio",
			fmt.Sprintf("ratio %v is outside 0.0-1.0", o.TraceSampleRatio), "")
	}

	if !o.TracingEnabled && !o.LogExportEnabled {
		return
	}

	switch strings.ToLower(o.OTLP.Protocol) {
	case "", "grpc", "http", "http/protobuf":
	default:
		result.addError("observability.otlp.protocol",
			fmt.Sprintf("unsupported protocol %q", o.OTLP.Protocol),
			"use grpc or http/protobuf")
	}
	switch o.OTLP.Compression {
	case "", "none", "gzip":
	default:
		result.addError("observability.otlp.compression",
			fmt.Sprintf("unsupported compression %q", o.OTLP.Compression),
			"use none or gzip")
	}
	if o.OTLP.Endpoint == "" {
		result.addError("observability.otlp.endpoint", "endpoint is required when OTLP export is enabled", "")
	}
	if (o.OTLP.TLSClientCertFile == "") != (o.OTLP.TLSClientKeyFile == "") {
		result.addError("observability.otlp.tls_client_cert_file",
			"client certificate and key must both be set", "")
	}
	if o.OTLP.Insecure && o.OTLP.TLSCertFile != "" {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Field:   "observability.otlp.tls_cert_file",
			Message: "TLS files are ignored when insecure is set",
		})
	}
}
