// Package datamapper adapts flat table rows (snake_case columns) to entity
// fields (camelCase names) declared by an entity.Schema.
//
// A DataMapper holds at most one row at a time. Load replaces it wholesale
// and values are read verbatim; nothing is coerced or copied. A DataMapper is
// not safe for concurrent Load calls; reads may run concurrently with each
// other but not with Load. The expected pattern is one mapper per record.
package datamapper

import (
	"github.com/judibo/herbs2pg/internal/entity"
	"github.com/judibo/herbs2pg/internal/naming"
)

// DataMapper projects the most recently loaded table row onto the fields of
// its bound schema.
type DataMapper struct {
	schema  *entity.Schema
	ids     []string
	columns map[string]string // entity field → table column
	row     map[string]any
	loaded  bool
}

// GetFrom returns a mapper bound to schema. idFields names, in order, the
// entity fields that identify a record; each must be declared on the schema.
// Two fields that convert to the same column are rejected.
func GetFrom(schema *entity.Schema, idFields ...string) (*DataMapper, error) {
	if schema == nil {
		return nil, ErrNilSchema
	}

	m := &DataMapper{
		schema:  schema,
		ids:     make([]string, 0, len(idFields)),
		columns: make(map[string]string, schema.Len()),
	}
	owners := make(map[string]string, schema.Len()) // table column → entity field
	for _, name := range schema.FieldNames() {
		column := naming.ToSnakeCase(name)
		if prev, taken := owners[column]; taken {
			return nil, &ColumnCollisionError{Entity: schema.Name(), Column: column, Fields: [2]string{prev, name}}
		}
		owners[column] = name
		m.columns[name] = column
	}
	for _, id := range idFields {
		if !schema.Has(id) {
			return nil, &UnknownFieldError{Entity: schema.Name(), Field: id, Err: ErrUnknownIDField}
		}
		m.ids = append(m.ids, id)
	}
	return m, nil
}

// Schema returns the bound schema.
func (m *DataMapper) Schema() *entity.Schema {
	return m.schema
}

// Load makes row the current row, discarding any previous one. The map is
// held by reference and must not be mutated while it is current.
func (m *DataMapper) Load(row map[string]any) {
	m.row = row
	m.loaded = true
}

// Loaded reports whether Load has been called.
func (m *DataMapper) Loaded() bool {
	return m.loaded
}

// TableData returns the current row as loaded, or nil before the first Load.
func (m *DataMapper) TableData() map[string]any {
	if !m.loaded {
		return nil
	}
	return m.row
}

// Get returns the value of an entity field in the current row. ok is false
// when no row is loaded, the field is not declared, or the row lacks the
// field's column.
func (m *DataMapper) Get(field string) (value any, ok bool) {
	column, declared := m.columns[field]
	if !declared || !m.loaded {
		return nil, false
	}
	value, ok = m.row[column]
	return value, ok
}

// Value is Get without the presence flag; absent values are nil.
func (m *DataMapper) Value(field string) any {
	v, _ := m.Get(field)
	return v
}

// Data returns the current row keyed by entity field names. Only declared
// fields whose column is present appear. It returns nil before the first Load.
func (m *DataMapper) Data() map[string]any {
	if !m.loaded {
		return nil
	}
	data := make(map[string]any, len(m.columns))
	for field, column := range m.columns {
		if v, ok := m.row[column]; ok {
			data[field] = v
		}
	}
	return data
}

// ToTableField returns the column name of a declared entity field.
func (m *DataMapper) ToTableField(field string) (string, error) {
	column, ok := m.columns[field]
	if !ok {
		return "", &UnknownFieldError{Entity: m.schema.Name(), Field: field, Err: ErrUnknownField}
	}
	return column, nil
}

// TableIDs returns the column names of the identifier fields in the order
// they were given to GetFrom.
func (m *DataMapper) TableIDs() []string {
	out := make([]string, len(m.ids))
	for i, id := range m.ids {
		out[i] = m.columns[id]
	}
	return out
}

// IDFields returns the identifier entity fields in order.
func (m *DataMapper) IDFields() []string {
	out := make([]string, len(m.ids))
	copy(out, m.ids)
	return out
}

// IDValues returns the identifier values of the current row in order. ok is
// false when no row is loaded, no identifiers are configured, or any
// identifier column is missing.
func (m *DataMapper) IDValues() (values []any, ok bool) {
	if !m.loaded || len(m.ids) == 0 {
		return nil, false
	}
	values = make([]any, len(m.ids))
	for i, id := range m.ids {
		v, present := m.row[m.columns[id]]
		if !present {
			return nil, false
		}
		values[i] = v
	}
	return values, true
}

// ToTableRow converts an entity-keyed map to a column-keyed row. Values are
// passed through unchanged; undeclared keys are rejected.
func (m *DataMapper) ToTableRow(data map[string]any) (map[string]any, error) {
	row := make(map[string]any, len(data))
	for field, v := range data {
		column, err := m.ToTableField(field)
		if err != nil {
			return nil, err
		}
		row[column] = v
	}
	return row, nil
}
