package naming

import (
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Namer converts between entity field names (camelCase) and table column
// names (snake_case), and derives table names from entity names.
type Namer struct {
	config   Config
	logger   *slog.Logger
	resolver *CollisionResolver
}

// New creates a Namer with the given configuration
func New(cfg Config, logger *slog.Logger) *Namer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Namer{
		config:   cfg,
		logger:   logger,
		resolver: NewCollisionResolver(logger),
	}
}

// Default returns a Namer with default configuration
func Default() *Namer {
	return New(DefaultConfig(), nil)
}

// Reset clears the collision resolver state, allowing the namer to be reused
// for another table.
func (n *Namer) Reset() {
	n.resolver = NewCollisionResolver(n.logger)
}

// TableField converts an entity field name to its column name.
// Example: "fieldName" -> "field_name"
func (n *Namer) TableField(fieldName string) string {
	return ToSnakeCase(fieldName)
}

// EntityField converts a column name to an entity field name.
// Example: "user_name" -> "userName"
func (n *Namer) EntityField(columnName string) string {
	return ToCamelCase(columnName)
}

// RegisterEntityField registers the entity field derived from a column and
// returns the resolved, collision-free field name for the given table.
func (n *Namer) RegisterEntityField(tableName, columnName string) string {
	return n.resolver.RegisterField(tableName, n.EntityField(columnName), "column:"+columnName)
}

// TableName derives a table name from an entity name: words are joined in
// snake_case and the last word is pluralized.
// Example: "UserProfile" -> "user_profiles", "A entity" -> "a_entities"
func (n *Namer) TableName(entityName string) string {
	words := strings.Fields(entityName)
	for i, w := range words {
		words[i] = ToSnakeCase(w)
	}
	name := strings.Join(words, "_")
	if name == "" {
		return ""
	}
	idx := strings.LastIndex(name, "_")
	return name[:idx+1] + n.Pluralize(name[idx+1:])
}

// ToSnakeCase converts a camelCase identifier to snake_case. Every uppercase
// letter after the first rune becomes an underscore followed by its lowercase
// form; a leading uppercase letter is only lowercased.
// Example: "fieldName" -> "field_name", "FieldName" -> "field_name"
func ToSnakeCase(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ToCamelCase converts snake_case to camelCase
func ToCamelCase(s string) string {
	parts := strings.Split(s, "_")
	for i := 1; i < len(parts); i++ {
		parts[i] = upperFirst(parts[i])
	}
	return strings.Join(parts, "")
}

func upperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
