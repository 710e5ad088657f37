package datamapper

import (
	"errors"
	"fmt"
)

var (
	// ErrNilSchema is returned by GetFrom when no schema is supplied.
	ErrNilSchema = errors.New("nil entity schema")
	// ErrUnknownField is returned when a field name is not declared on the schema.
	ErrUnknownField = errors.New("unknown field")
	// ErrUnknownIDField is returned by GetFrom when an identifier field is not
	// declared on the schema.
	ErrUnknownIDField = errors.New("unknown identifier field")
	// ErrColumnCollision is returned by GetFrom when two declared fields
	// convert to the same table column.
	ErrColumnCollision = errors.New("column collision")
)

// UnknownFieldError identifies the offending field name and entity.
// It unwraps to ErrUnknownField or ErrUnknownIDField.
type UnknownFieldError struct {
	Entity string
	Field  string
	Err    error
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("%v: %q is not declared on entity %q", e.Err, e.Field, e.Entity)
}

func (e *UnknownFieldError) Unwrap() error {
	return e.Err
}

// ColumnCollisionError names the column and the two fields that share it.
// It unwraps to ErrColumnCollision.
type ColumnCollisionError struct {
	Entity string
	Column string
	Fields [2]string
}

func (e *ColumnCollisionError) Error() string {
	return fmt.Sprintf("%v: fields %q and %q of entity %q both map to column %q",
		ErrColumnCollision, e.Fields[0], e.Fields[1], e.Entity, e.Column)
}

func (e *ColumnCollisionError) Unwrap() error {
	return ErrColumnCollision
}
