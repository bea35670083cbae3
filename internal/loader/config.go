// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package loader

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/pdiddy/concept-base/pkg/types"
)

// DefaultVersion is used when a load config does not pin one.
const DefaultVersion = "0.0.1"

// Filter decides which parsed rows enter the store.
type Filter struct {
	languages map[string]bool
	minWeight float64
}

// NewFilter builds a filter from a language allow-list and a weight floor.
// An empty language list admits every language; a zero floor admits every
// weight.
func NewFilter(languages []string, minWeight float64) Filter {
	f := Filter{minWeight: minWeight}
	if len(languages) > 0 {
		f.languages = make(map[string]bool, len(languages))
		for _, lang := range languages {
			f.languages[strings.ToLower(strings.TrimSpace(lang))] = true
		}
	}
	return f
}

// Keep reports whether the row passes. When a language list is set, both
// endpoints must be in it.
func (f Filter) Keep(row Row) bool {
	if f.minWeight > 0 && row.Assertion.Weight < f.minWeight {
		return false
	}
	if f.languages != nil {
		if !f.languages[row.StartConcept.Language] || !f.languages[row.EndConcept.Language] {
			return false
		}
	}
	return true
}

// ValidateConfig checks the parts of a load config that name the knowledge
// base. The identifier becomes a path segment, so it must be a plain
// identifier: a letter or underscore followed by letters, digits, or
// underscores.
func ValidateConfig(cfg types.LoadConfig) error {
	if cfg.Identifier == "" {
		return fmt.Errorf("knowledge base identifier is required")
	}
	if !isIdentifier(cfg.Identifier) {
		return fmt.Errorf("identifier %q must start with a letter or underscore and contain only letters, digits, and underscores", cfg.Identifier)
	}
	if strings.ContainsAny(cfg.Version, "/\\") {
		return fmt.Errorf("version %q must not contain path separators", cfg.Version)
	}
	return nil
}

// KBName derives the knowledge base name from a load config:
// <identifier>/<identifier>-v<version>.
func KBName(cfg types.LoadConfig) string {
	version := cfg.Version
	if version == "" {
		version = DefaultVersion
	}
	return fmt.Sprintf("%s/%s-v%s", cfg.Identifier, cfg.Identifier, version)
}

func isIdentifier(s string) bool {
	for i, r := range s {
		if unicode.IsLetter(r) || r == '_' {
			continue
		}
		if i > 0 && unicode.IsDigit(r) {
			continue
		}
		return false
	}
	return s != ""
}
