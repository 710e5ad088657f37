package naming

import (
	"strings"

	"github.com/jinzhu/inflection"
)

// Pluralize returns the plural form of word. Overrides are matched
// case-insensitively before falling back to the inflection rules.
func (n *Namer) Pluralize(word string) string {
	if override, ok := lookupOverride(n.config.PluralOverrides, word); ok {
		return override
	}
	return inflection.Plural(word)
}

// Singularize returns the singular form of word, honoring overrides.
func (n *Namer) Singularize(word string) string {
	if override, ok := lookupOverride(n.config.SingularOverrides, word); ok {
		return override
	}
	return inflection.Singular(word)
}

func lookupOverride(overrides map[string]string, word string) (string, bool) {
	if override, ok := overrides[word]; ok {
		return override, true
	}
	override, ok := overrides[strings.ToLower(word)]
	return override, ok
}
