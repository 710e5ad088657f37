// Package introspection reads table metadata from information_schema and
// derives entity schemas from it.
package introspection

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/judibo/herbs2pg/internal/entity"
	"github.com/judibo/herbs2pg/internal/fieldtype"
	"github.com/judibo/herbs2pg/internal/naming"
	"github.com/judibo/herbs2pg/internal/sqlutil"
)

var (
	// ErrTableNotFound is returned when information_schema lists no columns for a table.
	ErrTableNotFound = errors.New("table not found")
	// ErrUnaddressableKey is returned by EntitySchema when a primary key column
	// cannot be addressed by an entity field.
	ErrUnaddressableKey = errors.New("primary key column cannot be addressed by an entity field")
)

// Column represents a database column
type Column struct {
	Name         string
	DataType     string
	IsNullable   bool
	IsPrimaryKey bool
}

// Table represents a database table
type Table struct {
	Name    string
	Columns []Column
}

// Queryer provides query access for schema introspection.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// IntrospectTable reads the columns and primary key of a table. catalog is
// the MySQL database or the PostgreSQL schema the table lives in.
func IntrospectTable(ctx context.Context, db Queryer, dialect sqlutil.Dialect, catalog, tableName string) (*Table, error) {
	ctx, span := startSpan(ctx, "introspection.table",
		attribute.String("db.system", string(dialect)),
		attribute.String("db.name", catalog),
		attribute.String("db.table", tableName),
	)
	defer span.End()

	columns, err := getColumns(ctx, db, dialect, catalog, tableName)
	if err != nil {
		recordSpanError(span, err)
		return nil, fmt.Errorf("failed to get columns for %s: %w", tableName, err)
	}
	if len(columns) == 0 {
		recordSpanError(span, ErrTableNotFound)
		return nil, fmt.Errorf("%w: %s.%s", ErrTableNotFound, catalog, tableName)
	}

	primaryKeys, err := getPrimaryKeys(ctx, db, dialect, catalog, tableName)
	if err != nil {
		recordSpanError(span, err)
		return nil, fmt.Errorf("failed to get primary keys for %s: %w", tableName, err)
	}
	pkSet := make(map[string]bool, len(primaryKeys))
	for _, pk := range primaryKeys {
		pkSet[pk] = true
	}
	for i := range columns {
		columns[i].IsPrimaryKey = pkSet[columns[i].Name]
	}

	return &Table{Name: tableName, Columns: columns}, nil
}

// PrimaryKeyColumns returns all primary key columns for a table in column order.
func PrimaryKeyColumns(table Table) []Column {
	var cols []Column
	for _, col := range table.Columns {
		if col.IsPrimaryKey {
			cols = append(cols, col)
		}
	}
	return cols
}

// EntitySchema derives an entity schema from the table. Field names are the
// camelCase form of each column; columns whose field name would not map back
// to the same column are skipped with a warning. The returned identifier
// fields correspond to the primary key, in key order; a primary key column
// that would be skipped fails with ErrUnaddressableKey. The namer's collision
// state is reset.
func EntitySchema(table Table, namer *naming.Namer, logger *slog.Logger) (*entity.Schema, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	namer.Reset()

	fields := make([]entity.Field, 0, len(table.Columns))
	fieldByColumn := make(map[string]string, len(table.Columns))
	for _, col := range table.Columns {
		fieldName := namer.RegisterEntityField(table.Name, col.Name)
		if namer.TableField(fieldName) != col.Name {
			logger.Warn("column cannot be addressed by an entity field, skipping",
				slog.String("table", table.Name),
				slog.String("column", col.Name),
				slog.String("field", fieldName),
				slog.Bool("primary_key", col.IsPrimaryKey),
			)
			continue
		}
		fieldByColumn[col.Name] = fieldName
		fields = append(fields, entity.Field{
			Name: fieldName,
			Type: fieldtype.FromSQL(col.DataType),
			Meta: map[string]any{
				"column":   col.Name,
				"sqlType":  col.DataType,
				"nullable": col.IsNullable,
			},
		})
	}

	var idFields []string
	for _, col := range PrimaryKeyColumns(table) {
		fieldName, ok := fieldByColumn[col.Name]
		if !ok {
			return nil, nil, fmt.Errorf("%w: %s.%s", ErrUnaddressableKey, table.Name, col.Name)
		}
		idFields = append(idFields, fieldName)
	}

	schema, err := entity.New(namer.Singularize(naming.ToCamelCase(table.Name)), fields...)
	if err != nil {
		return nil, nil, err
	}
	return schema, idFields, nil
}

func getColumns(ctx context.Context, db Queryer, dialect sqlutil.Dialect, catalog, tableName string) ([]Column, error) {
	ctx, span := startSpan(ctx, "introspection.get_columns",
		attribute.String("db.name", catalog),
		attribute.String("db.table", tableName),
	)
	defer span.End()

	// PostgreSQL reports arrays as data_type ARRAY; udt_name carries the element type.
	typeColumn := "data_type"
	if dialect == sqlutil.Postgres {
		typeColumn = "udt_name"
	}
	query, args, err := dialect.StatementBuilder().
		Select("column_name", typeColumn, "is_nullable").
		From("information_schema.columns").
		Where(sq.Eq{"table_schema": catalog}).
		Where(sq.Eq{"table_name": tableName}).
		OrderBy("ordinal_position").
		ToSql()
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var columns []Column
	for rows.Next() {
		var col Column
		var isNullable string
		if err := rows.Scan(&col.Name, &col.DataType, &isNullable); err != nil {
			recordSpanError(span, err)
			return nil, err
		}
		col.IsNullable = isNullable == "YES"
		columns = append(columns, col)
	}

	if err := rows.Err(); err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	return columns, nil
}

func getPrimaryKeys(ctx context.Context, db Queryer, dialect sqlutil.Dialect, catalog, tableName string) ([]string, error) {
	ctx, span := startSpan(ctx, "introspection.get_primary_keys",
		attribute.String("db.name", catalog),
		attribute.String("db.table", tableName),
	)
	defer span.End()

	builder := dialect.StatementBuilder().
		Select("kcu.column_name").
		From("information_schema.key_column_usage kcu")
	if dialect == sqlutil.MySQL {
		builder = builder.Where(sq.Eq{"kcu.constraint_name": "PRIMARY"})
	} else {
		builder = builder.
			Join("information_schema.table_constraints tc ON tc.constraint_name = kcu.constraint_name " +
				"AND tc.table_schema = kcu.table_schema AND tc.table_name = kcu.table_name").
			Where(sq.Eq{"tc.constraint_type": "PRIMARY KEY"})
	}
	query, args, err := builder.
		Where(sq.Eq{"kcu.table_schema": catalog}).
		Where(sq.Eq{"kcu.table_name": tableName}).
		OrderBy("kcu.ordinal_position").
		ToSql()
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var primaryKeys []string
	for rows.Next() {
		var columnName string
		if err := rows.Scan(&columnName); err != nil {
			recordSpanError(span, err)
			return nil, err
		}
		primaryKeys = append(primaryKeys, columnName)
	}

	if err := rows.Err(); err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	return primaryKeys, nil
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.Tracer("herbs2pg/introspection")
	ctx, span := tracer.Start(ctx, name)
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	return ctx, span
}

func recordSpanError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
