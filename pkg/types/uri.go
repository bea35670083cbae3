// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"strings"
)

// ConceptURI identifies a concept node: a language tag plus a normalized
// term, with an optional sense path (part of speech and further
// disambiguation). The canonical text form is "/c/<lang>/<term>[/<sense>]",
// e.g. "/c/en/sea_turtle" or "/c/en/dog/n/wn/animal".
type ConceptURI struct {
	// Language is the BCP-47-style language tag (e.g. "en", "fr", "zh").
	Language string

	// Term is the normalized surface form: lowercase, spaces as underscores.
	Term string

	// Sense is the optional trailing sense path ("n", "v", "n/wn/animal").
	// Empty for sense-free concepts.
	Sense string
}

// ParseConceptURI parses a "/c/..." concept URI. The language and term
// segments are required; anything after the term is kept as the sense path.
func ParseConceptURI(uri string) (ConceptURI, error) {
	rest, ok := strings.CutPrefix(uri, "/c/")
	if !ok {
		return ConceptURI{}, fmt.Errorf("not a concept URI: %q", uri)
	}

	parts := strings.Split(rest, "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return ConceptURI{}, fmt.Errorf("concept URI %q missing language or term", uri)
	}

	c := ConceptURI{
		Language: parts[0],
		Term:     parts[1],
	}
	if len(parts) > 2 {
		c.Sense = strings.Join(parts[2:], "/")
	}
	return c, nil
}

// String rebuilds the canonical "/c/..." form.
func (c ConceptURI) String() string {
	if c.Sense != "" {
		return "/c/" + c.Language + "/" + c.Term + "/" + c.Sense
	}
	return "/c/" + c.Language + "/" + c.Term
}

// Label returns the human-readable surface form: underscores become spaces.
func (c ConceptURI) Label() string {
	return strings.ReplaceAll(c.Term, "_", " ")
}

// NormalizeTerm converts free text to the normalized term form used inside
// concept URIs: trimmed, lowercased, internal whitespace collapsed to single
// underscores. Deeper lexical normalization (stemming, frequency weighting)
// is out of scope; terms are stored as given.
func NormalizeTerm(text string) string {
	fields := strings.Fields(strings.ToLower(text))
	return strings.Join(fields, "_")
}

// ConceptURIFor builds a sense-free concept URI from a language tag and
// free-text surface form.
func ConceptURIFor(language, text string) ConceptURI {
	return ConceptURI{Language: language, Term: NormalizeTerm(text)}
}

// NormalizeLabel converts free text to the stored label form: lowercased
// with internal whitespace collapsed to single spaces.
func NormalizeLabel(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// ParseRelationURI parses a "/r/..." relation URI and returns the relation
// name (e.g. "IsA" from "/r/IsA").
func ParseRelationURI(uri string) (string, error) {
	name, ok := strings.CutPrefix(uri, "/r/")
	if !ok || name == "" || strings.Contains(name, "/") {
		return "", fmt.Errorf("not a relation URI: %q", uri)
	}
	return name, nil
}

// RelationURIFor builds the canonical "/r/..." form for a relation name.
// Names already in URI form pass through unchanged.
func RelationURIFor(name string) string {
	if strings.HasPrefix(name, "/r/") {
		return name
	}
	return "/r/" + name
}
