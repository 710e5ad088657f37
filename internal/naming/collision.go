package naming

import (
	"fmt"
	"log/slog"
)

// CollisionResolver tracks entity field names per table and resolves
// collisions by applying numeric suffixes.
type CollisionResolver struct {
	seenFields map[string]map[string]string // table name → field name → source
	logger     *slog.Logger
}

// NewCollisionResolver creates a new collision resolver.
func NewCollisionResolver(logger *slog.Logger) *CollisionResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &CollisionResolver{
		seenFields: make(map[string]map[string]string),
		logger:     logger,
	}
}

// RegisterField registers a field name within a table and returns the resolved name.
// If a collision occurs, applies a numeric suffix and logs a warning.
func (c *CollisionResolver) RegisterField(tableName, fieldName, source string) string {
	if c.seenFields[tableName] == nil {
		c.seenFields[tableName] = make(map[string]string)
	}
	return c.resolveCollision(fieldName, c.seenFields[tableName], source)
}

// resolveCollision attempts to register a name in the given map.
// If the name already exists, finds the next available numeric suffix.
func (c *CollisionResolver) resolveCollision(name string, seen map[string]string, source string) string {
	if _, exists := seen[name]; !exists {
		seen[name] = source
		return name
	}

	existingSource := seen[name]
	c.logger.Warn("naming collision detected, applying suffix",
		slog.String("name", name),
		slog.String("existing_source", existingSource),
		slog.String("new_source", source),
	)

	for i := 2; ; i++ {
		suffixed := fmt.Sprintf("%s%d", name, i)
		if _, exists := seen[suffixed]; !exists {
			seen[suffixed] = source
			return suffixed
		}
	}
}
