// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Concept is a node in the knowledge graph: a labeled entity uniquely
// identified by its normalized surface form and language tag.
type Concept struct {
	// ID is the store-assigned numeric identifier.
	ID int64 `json:"id" yaml:"id"`

	// URI is the canonical concept URI (e.g. "/c/en/sea_turtle").
	URI string `json:"uri" yaml:"uri"`

	// Language is the concept's language tag.
	Language string `json:"language" yaml:"language"`

	// Label is the human-readable surface form ("sea turtle").
	Label string `json:"label" yaml:"label"`

	// Sense is the optional sense path from the URI ("n", "n/wn/animal").
	Sense string `json:"sense,omitempty" yaml:"sense,omitempty"`
}

// Relation is a typed edge category (e.g. "IsA", "RelatedTo").
type Relation struct {
	// ID is the store-assigned numeric identifier.
	ID int64 `json:"id" yaml:"id"`

	// URI is the canonical relation URI ("/r/IsA").
	URI string `json:"uri" yaml:"uri"`

	// Label is the relation name ("IsA").
	Label string `json:"label" yaml:"label"`

	// Symmetric marks relations whose assertions hold in both directions.
	Symmetric bool `json:"symmetric" yaml:"symmetric"`
}

// symmetricRelations lists the relation names whose edges are undirected.
// Matches the ConceptNet relation inventory.
var symmetricRelations = map[string]bool{
	"RelatedTo":              true,
	"SimilarTo":              true,
	"EtymologicallyRelatedTo": true,
	"Synonym":                true,
	"Antonym":                true,
	"DistinctFrom":           true,
	"LocatedNear":            true,
}

// IsSymmetricRelation reports whether the named relation is undirected.
// It accepts either a bare name ("Synonym") or a relation URI ("/r/Synonym").
func IsSymmetricRelation(name string) bool {
	if n, err := ParseRelationURI(name); err == nil {
		name = n
	}
	return symmetricRelations[name]
}

// Source records one provenance entry for an assertion.
type Source struct {
	// Contributor is the resource that asserted the edge (e.g.
	// "/s/resource/wiktionary/en").
	Contributor string `json:"contributor,omitempty" yaml:"contributor,omitempty"`

	// Process is the pipeline step that produced the edge.
	Process string `json:"process,omitempty" yaml:"process,omitempty"`

	// Activity is the crowdsourcing activity, when applicable.
	Activity string `json:"activity,omitempty" yaml:"activity,omitempty"`
}

// Assertion is a directed relation instance between two concepts, carrying
// a weight and provenance metadata. It is the unit of ingestion, query
// results, and export.
type Assertion struct {
	// ID is the store-assigned numeric identifier. Zero before ingestion.
	ID int64 `json:"id,omitempty" yaml:"id,omitempty"`

	// URI is the full assertion URI ("/a/[/r/IsA/,/c/en/dog/,/c/en/animal/]").
	// Unique per assertion; duplicate URIs are dropped during ingestion.
	URI string `json:"uri" yaml:"uri"`

	// Relation is the relation URI ("/r/IsA").
	Relation string `json:"relation" yaml:"relation"`

	// Start is the start concept URI.
	Start string `json:"start" yaml:"start"`

	// End is the end concept URI.
	End string `json:"end" yaml:"end"`

	// Weight is the assertion's confidence weight. Dump rows without an
	// explicit weight default to 1.0.
	Weight float64 `json:"weight" yaml:"weight"`

	// Dataset identifies the source dataset ("/d/wiktionary/en").
	Dataset string `json:"dataset,omitempty" yaml:"dataset,omitempty"`

	// License is the content license URI ("cc:by-sa/4.0").
	License string `json:"license,omitempty" yaml:"license,omitempty"`

	// Sources lists the provenance entries from the dump metadata.
	Sources []Source `json:"sources,omitempty" yaml:"sources,omitempty"`

	// SurfaceText is the natural-language rendering, when present
	// ("[[a dog]] is [[an animal]]").
	SurfaceText string `json:"surface_text,omitempty" yaml:"surface_text,omitempty"`
}
