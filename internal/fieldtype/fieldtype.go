// Package fieldtype describes the declared type of an entity field: one of a
// fixed set of scalar kinds, or an ordered sequence of one of them.
package fieldtype

import (
	"fmt"
	"strings"
)

// Kind is the scalar category of an entity field.
type Kind int

const (
	// Invalid is the zero Kind and never appears in a valid schema.
	Invalid Kind = iota
	// Number covers integer, floating-point and fixed-point values.
	Number
	// Boolean covers true/false values.
	Boolean
	// String covers textual values.
	String
	// Date covers temporal values.
	Date
	// Object covers arbitrary structured values (JSON documents and the like).
	Object
)

var kindNames = map[Kind]string{
	Number:  "Number",
	Boolean: "Boolean",
	String:  "String",
	Date:    "Date",
	Object:  "Object",
}

// String returns the declared name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Invalid"
}

// Valid reports whether k is one of the declared scalar kinds.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// Type tags a field as a scalar Kind or, when Array is set, as an ordered
// sequence of that Kind.
type Type struct {
	Kind  Kind
	Array bool
}

// Of returns the scalar type of kind k.
func Of(k Kind) Type {
	return Type{Kind: k}
}

// ArrayOf returns the sequence type of kind k.
func ArrayOf(k Kind) Type {
	return Type{Kind: k, Array: true}
}

// Valid reports whether the element kind is valid.
func (t Type) Valid() bool {
	return t.Kind.Valid()
}

// String renders scalars as "Number" and sequences as "[Number]".
func (t Type) String() string {
	if t.Array {
		return "[" + t.Kind.String() + "]"
	}
	return t.Kind.String()
}

// Parse parses the String form of a Type. Kind names are case-insensitive.
func Parse(s string) (Type, error) {
	raw := strings.TrimSpace(s)
	array := false
	if strings.HasPrefix(raw, "[") && strings.HasSuffix(raw, "]") {
		array = true
		raw = strings.TrimSpace(raw[1 : len(raw)-1])
	}
	for k, name := range kindNames {
		if strings.EqualFold(raw, name) {
			return Type{Kind: k, Array: array}, nil
		}
	}
	return Type{}, fmt.Errorf("unknown field type %q", s)
}
