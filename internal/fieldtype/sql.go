package fieldtype

import "strings"

// FromSQL maps a SQL data type name to a field Type. It accepts MySQL/TiDB
// INFORMATION_SCHEMA.COLUMNS.DATA_TYPE values and PostgreSQL data_type or
// udt_name values. Size specifiers like (10,2) are stripped before matching;
// PostgreSQL array spellings ("integer[]", "_int4") map to sequence types.
// Unknown types map to String.
func FromSQL(sqlType string) Type {
	t := strings.TrimSpace(sqlType)
	if open := strings.Index(t, "("); open != -1 {
		rest := ""
		if end := strings.Index(t, ")"); end > open {
			rest = t[end+1:]
		}
		t = strings.TrimSpace(t[:open] + rest)
	}
	if strings.HasSuffix(t, "[]") {
		return ArrayOf(kindFromSQL(strings.TrimSuffix(t, "[]")))
	}
	if strings.HasPrefix(t, "_") {
		return ArrayOf(kindFromSQL(t[1:]))
	}
	return Of(kindFromSQL(t))
}

func kindFromSQL(sqlType string) Kind {
	switch strings.ToUpper(strings.TrimSpace(sqlType)) {
	// Integer Numeric Data Types
	case "TINYINT", "SMALLINT", "MEDIUMINT", "INT", "INTEGER", "BIGINT",
		"SERIAL", "BIGSERIAL", "SMALLSERIAL", "BIT", "YEAR",
		"INT2", "INT4", "INT8":
		return Number
	// Floating and Fixed-Point Numeric Data Types
	case "FLOAT", "DOUBLE", "DECIMAL", "NUMERIC", "REAL",
		"DOUBLE PRECISION", "FLOAT4", "FLOAT8", "MONEY":
		return Number
	case "BOOL", "BOOLEAN":
		return Boolean
	case "JSON", "JSONB":
		return Object
	case "DATE", "DATETIME", "TIMESTAMP", "TIME",
		"TIMESTAMPTZ", "TIMETZ",
		"TIMESTAMP WITHOUT TIME ZONE", "TIMESTAMP WITH TIME ZONE",
		"TIME WITHOUT TIME ZONE", "TIME WITH TIME ZONE":
		return Date
	default:
		return String
	}
}
