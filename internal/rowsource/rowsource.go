// Package rowsource reads raw table rows and feeds them through data mappers.
// Rows are returned as the driver produced them, keyed by column name.
package rowsource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/judibo/herbs2pg/internal/datamapper"
	"github.com/judibo/herbs2pg/internal/dbexec"
	"github.com/judibo/herbs2pg/internal/logging"
	"github.com/judibo/herbs2pg/internal/sqlutil"
)

// ErrStop can be returned by an Each callback to end iteration early
// without error.
var ErrStop = errors.New("stop iteration")

// Query restricts and orders the rows read from a table.
type Query struct {
	// Columns lists the columns to read; empty means all.
	Columns []string
	// Where holds column equality filters.
	Where map[string]any
	// OrderBy lists columns; a leading "-" sorts descending.
	OrderBy []string
	Limit   uint64
	Offset  uint64
}

// Source reads and writes rows through a QueryExecutor. Log records go to
// the logger carried by the call's context.
type Source struct {
	exec    dbexec.QueryExecutor
	dialect sqlutil.Dialect
}

// New creates a Source.
func New(exec dbexec.QueryExecutor, dialect sqlutil.Dialect) *Source {
	return &Source{exec: exec, dialect: dialect}
}

// MapperColumns returns the columns of every field declared on the mapper's
// schema, in declaration order.
func MapperColumns(m *datamapper.DataMapper) []string {
	names := m.Schema().FieldNames()
	columns := make([]string, 0, len(names))
	for _, name := range names {
		column, err := m.ToTableField(name)
		if err != nil {
			continue
		}
		columns = append(columns, column)
	}
	return columns
}

// Each loads every matching row into m, one at a time, and calls fn after
// each Load. It returns the number of rows visited. Returning ErrStop from fn
// ends iteration without error.
func (s *Source) Each(ctx context.Context, m *datamapper.DataMapper, table string, q Query, fn func(*datamapper.DataMapper) error) (int, error) {
	if len(q.Columns) == 0 {
		q.Columns = MapperColumns(m)
	}
	count := 0
	err := s.each(ctx, table, q, func(row map[string]any) error {
		count++
		m.Load(row)
		return fn(m)
	})
	if errors.Is(err, ErrStop) {
		err = nil
	}
	logging.FromContext(ctx).Debug("mapped rows",
		slog.String("table", table),
		slog.String("entity", m.Schema().Name()),
		slog.Int("rows", count),
	)
	return count, err
}

// Insert writes entity-keyed data as a new row of table and returns the
// number of affected rows.
func (s *Source) Insert(ctx context.Context, m *datamapper.DataMapper, table string, data map[string]any) (int64, error) {
	ctx, span := startSpan(ctx, "rowsource.insert", attribute.String("db.table", table))
	defer span.End()

	row, err := m.ToTableRow(data)
	if err != nil {
		recordSpanError(span, err)
		return 0, err
	}
	columns := sortedKeys(row)
	values := make([]any, len(columns))
	quoted := make([]string, len(columns))
	for i, col := range columns {
		values[i] = row[col]
		quoted[i] = s.dialect.QuoteIdentifier(col)
	}

	query, args, err := s.dialect.StatementBuilder().
		Insert(s.dialect.QuoteIdentifier(table)).
		Columns(quoted...).
		Values(values...).
		ToSql()
	if err != nil {
		recordSpanError(span, err)
		return 0, err
	}

	res, err := s.exec.ExecContext(ctx, query, args...)
	if err != nil {
		recordSpanError(span, err)
		return 0, fmt.Errorf("insert into %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		recordSpanError(span, err)
		return 0, err
	}
	logging.FromContext(ctx).Debug("inserted row",
		slog.String("table", table),
		slog.Int64("rows", n),
	)
	return n, nil
}

func (s *Source) each(ctx context.Context, table string, q Query, fn func(map[string]any) error) error {
	ctx, span := startSpan(ctx, "rowsource.select", attribute.String("db.table", table))
	defer span.End()

	query, args, err := s.buildSelect(table, q)
	if err != nil {
		recordSpanError(span, err)
		return err
	}

	rows, err := s.exec.QueryContext(ctx, query, args...)
	if err != nil {
		recordSpanError(span, err)
		return fmt.Errorf("select from %s: %w", table, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	columns, err := rows.Columns()
	if err != nil {
		recordSpanError(span, err)
		return err
	}

	for rows.Next() {
		row, err := scanRow(rows, columns)
		if err != nil {
			recordSpanError(span, err)
			return err
		}
		if err := fn(row); err != nil {
			if !errors.Is(err, ErrStop) {
				recordSpanError(span, err)
			}
			return err
		}
	}

	if err := rows.Err(); err != nil {
		recordSpanError(span, err)
		return err
	}
	return nil
}

func (s *Source) buildSelect(table string, q Query) (string, []any, error) {
	columns := []string{"*"}
	if len(q.Columns) > 0 {
		columns = make([]string, len(q.Columns))
		for i, col := range q.Columns {
			columns[i] = s.dialect.QuoteIdentifier(col)
		}
	}

	builder := s.dialect.StatementBuilder().
		Select(columns...).
		From(s.dialect.QuoteIdentifier(table))

	if len(q.Where) > 0 {
		where := sq.Eq{}
		for col, v := range q.Where {
			where[s.dialect.QuoteIdentifier(col)] = v
		}
		builder = builder.Where(where)
	}

	for _, col := range q.OrderBy {
		dir := "ASC"
		if strings.HasPrefix(col, "-") {
			dir = "DESC"
			col = col[1:]
		}
		builder = builder.OrderBy(s.dialect.QuoteIdentifier(col) + " " + dir)
	}

	if q.Limit > 0 {
		builder = builder.Limit(q.Limit)
	}
	if q.Offset > 0 {
		builder = builder.Offset(q.Offset)
	}
	return builder.ToSql()
}

func scanRow(rows dbexec.Rows, columns []string) (map[string]any, error) {
	values := make([]any, len(columns))
	valuePtrs := make([]any, len(columns))
	for i := range values {
		valuePtrs[i] = &values[i]
	}

	if err := rows.Scan(valuePtrs...); err != nil {
		return nil, err
	}

	row := make(map[string]any, len(columns))
	for i, col := range columns {
		row[col] = convertValue(values[i])
	}
	return row, nil
}

// convertValue normalizes driver text returned as []byte to string.
func convertValue(val any) any {
	if b, ok := val.([]byte); ok {
		return string(b)
	}
	return val
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.Tracer("herbs2pg/rowsource")
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
