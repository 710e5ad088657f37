package datamapper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type simpleEntity struct {
	ID        int  `entity:"id"`
	Field1    bool `entity:"field1"`
	FieldName bool `entity:"fieldName"`
}

type complexEntity struct {
	ID          int            `entity:"id"`
	Name        string         `entity:"name"`
	DateTest    time.Time      `entity:"dateTest"`
	ObjectTest  map[string]any `entity:"objectTest"`
	NumbersTest []int          `entity:"numbersTest"`
	StringsTest []string       `entity:"stringsTest"`
	DatesTest   []time.Time    `entity:"datesTest"`
}

func TestDecode(t *testing.T) {
	m, err := GetFrom(givenAnEntity())
	require.NoError(t, err)
	m.Load(map[string]any{"id": 1, "field1": true, "field_name": false})

	var e simpleEntity
	require.NoError(t, m.Decode(&e))
	assert.Equal(t, simpleEntity{ID: 1, Field1: true, FieldName: false}, e)
}

func TestView_ComplexEntity(t *testing.T) {
	now := time.Now()
	m, err := GetFrom(givenAComplexEntity())
	require.NoError(t, err)
	m.Load(map[string]any{
		"id":           1,
		"name":         "clare",
		"date_test":    now,
		"object_test":  map[string]any{"x": 1},
		"numbers_test": []int{1, 2},
		"strings_test": []string{"s1", "s2"},
		"dates_test":   []time.Time{now, now},
	})

	e, err := View[complexEntity](m)
	require.NoError(t, err)
	assert.Equal(t, 1, e.ID)
	assert.Equal(t, "clare", e.Name)
	assert.True(t, now.Equal(e.DateTest))
	assert.Equal(t, map[string]any{"x": 1}, e.ObjectTest)
	assert.Equal(t, []int{1, 2}, e.NumbersTest)
	assert.Equal(t, []string{"s1", "s2"}, e.StringsTest)
	assert.Len(t, e.DatesTest, 2)
}

func TestDecode_NoWeakTyping(t *testing.T) {
	m, err := GetFrom(givenAnEntity())
	require.NoError(t, err)
	m.Load(map[string]any{"id": "1"})

	var e simpleEntity
	err = m.Decode(&e)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "A entity")
}

func TestDecode_BeforeLoad(t *testing.T) {
	m, err := GetFrom(givenAnEntity())
	require.NoError(t, err)

	e := simpleEntity{ID: 9}
	require.NoError(t, m.Decode(&e))
	assert.Equal(t, 9, e.ID)
}

func TestDecode_IgnoresUndeclaredColumns(t *testing.T) {
	type withExtra struct {
		ID    int    `entity:"id"`
		Extra string `entity:"extra"`
	}

	m, err := GetFrom(givenAnEntity())
	require.NoError(t, err)
	m.Load(map[string]any{"id": 3, "extra": "not declared"})

	e, err := View[withExtra](m)
	require.NoError(t, err)
	assert.Equal(t, 3, e.ID)
	assert.Empty(t, e.Extra)
}
