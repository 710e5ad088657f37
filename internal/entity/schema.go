// Package entity holds the read-only description of an entity: its name and
// the ordered set of typed fields a data mapper projects rows onto.
package entity

import (
	"errors"
	"fmt"
	"maps"

	"github.com/judibo/herbs2pg/internal/fieldtype"
)

var (
	// ErrEmptyFieldName is returned when a field is declared without a name.
	ErrEmptyFieldName = errors.New("empty field name")
	// ErrDuplicateField is returned when a field name is declared twice.
	ErrDuplicateField = errors.New("duplicate field")
	// ErrInvalidType is returned when a field carries an invalid type descriptor.
	ErrInvalidType = errors.New("invalid field type")
)

// Field is a named, typed entity attribute. Meta carries opaque per-field
// configuration (validation rules, column hints) that mappers pass through
// without interpreting. A Schema keeps its own copy of the top-level Meta map
// and hands out copies; nested values are shared and must not be mutated.
type Field struct {
	Name string
	Type fieldtype.Type
	Meta map[string]any
}

// Of declares a scalar field.
func Of(name string, kind fieldtype.Kind, meta ...map[string]any) Field {
	return Field{Name: name, Type: fieldtype.Of(kind), Meta: mergeMeta(meta)}
}

// ArrayOf declares a sequence field.
func ArrayOf(name string, kind fieldtype.Kind, meta ...map[string]any) Field {
	return Field{Name: name, Type: fieldtype.ArrayOf(kind), Meta: mergeMeta(meta)}
}

func mergeMeta(meta []map[string]any) map[string]any {
	if len(meta) == 0 {
		return nil
	}
	if len(meta) == 1 {
		return meta[0]
	}
	merged := make(map[string]any)
	for _, m := range meta {
		for k, v := range m {
			merged[k] = v
		}
	}
	return merged
}

// Schema is an ordered, immutable set of fields. A Schema is safe to share
// between mappers and goroutines once built.
type Schema struct {
	name   string
	fields []Field
	index  map[string]int
}

// New builds a schema from fields in declaration order.
func New(name string, fields ...Field) (*Schema, error) {
	s := &Schema{
		name:   name,
		fields: make([]Field, 0, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	for _, f := range fields {
		if f.Name == "" {
			return nil, fmt.Errorf("entity %q: %w", name, ErrEmptyFieldName)
		}
		if _, exists := s.index[f.Name]; exists {
			return nil, fmt.Errorf("entity %q: %w: %s", name, ErrDuplicateField, f.Name)
		}
		if !f.Type.Valid() {
			return nil, fmt.Errorf("entity %q: field %s: %w", name, f.Name, ErrInvalidType)
		}
		f.Meta = maps.Clone(f.Meta)
		s.index[f.Name] = len(s.fields)
		s.fields = append(s.fields, f)
	}
	return s, nil
}

// MustNew is like New but panics on an invalid declaration. It is meant for
// package-level entity declarations.
func MustNew(name string, fields ...Field) *Schema {
	s, err := New(name, fields...)
	if err != nil {
		panic(err)
	}
	return s
}

// Name returns the entity label.
func (s *Schema) Name() string {
	return s.name
}

// Len returns the number of declared fields.
func (s *Schema) Len() int {
	return len(s.fields)
}

// FieldNames returns the declared field names in order.
func (s *Schema) FieldNames() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}

// Fields returns a copy of the declared fields in order.
func (s *Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	for i, f := range s.fields {
		f.Meta = maps.Clone(f.Meta)
		out[i] = f
	}
	return out
}

// Field looks up a declared field by name.
func (s *Schema) Field(name string) (Field, bool) {
	idx, ok := s.index[name]
	if !ok {
		return Field{}, false
	}
	f := s.fields[idx]
	f.Meta = maps.Clone(f.Meta)
	return f, true
}

// Has reports whether name is a declared field.
func (s *Schema) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}
