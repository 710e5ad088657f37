package datamapper

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// TagName is the struct tag Decode uses to match struct fields to entity
// fields. Untagged struct fields match case-insensitively by name.
const TagName = "entity"

// Decode projects the current row onto dst, a pointer to a struct whose
// fields mirror the entity. Values are assigned without weak typing, so a
// column holding a string never fills a numeric field. Decoding before the
// first Load leaves dst untouched.
func (m *DataMapper) Decode(dst any) error {
	if !m.loaded {
		return nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: TagName,
		Result:  dst,
	})
	if err != nil {
		return fmt.Errorf("entity %q: %w", m.schema.Name(), err)
	}
	if err := decoder.Decode(m.Data()); err != nil {
		return fmt.Errorf("entity %q: %w", m.schema.Name(), err)
	}
	return nil
}

// View decodes the current row of m into a fresh T.
func View[T any](m *DataMapper) (T, error) {
	var v T
	err := m.Decode(&v)
	return v, err
}
