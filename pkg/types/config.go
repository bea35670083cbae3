package types

import "time"

// HTTPConfig holds shared HTTP settings used by components that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "concept-base/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// HubConfig holds settings for hosted-dataset retrieval.
type HubConfig struct {
	HTTPConfig `yaml:",inline"`

	// BaseURL is the dataset hub endpoint (default "https://huggingface.co").
	BaseURL string `json:"base_url" yaml:"base_url"`

	// Revision is the dataset revision to resolve (default "main").
	Revision string `json:"revision" yaml:"revision"`

	// Token is an optional access token for gated datasets, sent as a
	// Bearer credential. Loaded from .secrets/hub-token.
	Token string `json:"-" yaml:"-"`
}

// LoadConfig holds settings for the bulk ingestion stage.
type LoadConfig struct {
	// Identifier names the knowledge base being built. It must be a valid
	// identifier: a letter or underscore followed by letters, digits, or
	// underscores.
	Identifier string `json:"identifier" yaml:"identifier"`

	// Version tags the knowledge base build (default "0.0.1"). It becomes
	// part of the database filename.
	Version string `json:"version" yaml:"version"`

	// Namespace is an optional URI namespace prefix recorded in kb_meta.
	Namespace string `json:"namespace,omitempty" yaml:"namespace,omitempty"`

	// Languages restricts ingestion to assertions whose start and end
	// concepts are both in the listed languages. Empty means all languages.
	Languages []string `json:"languages,omitempty" yaml:"languages,omitempty"`

	// MinWeight drops assertions lighter than the threshold. Zero keeps all.
	MinWeight float64 `json:"min_weight,omitempty" yaml:"min_weight,omitempty"`

	// Workers is the number of parallel parse workers (default 4).
	Workers int `json:"workers,omitempty" yaml:"workers,omitempty"`
}

// StoreConfig holds settings for the knowledge base store.
type StoreConfig struct {
	// CacheDir is the base directory for local state. Knowledge bases live
	// under CacheDir/kb/, downloaded datasets under CacheDir/datasets/.
	CacheDir string `json:"cache_dir" yaml:"cache_dir"`

	// MaxResults is the default maximum number of query results (default 20).
	MaxResults int `json:"max_results" yaml:"max_results"`

	// BatchSize is the ingestion transaction size in assertions (default 1000).
	BatchSize int `json:"batch_size" yaml:"batch_size"`
}

// Config groups all component configurations.
type Config struct {
	Hub   HubConfig   `json:"hub" yaml:"hub"`
	Load  LoadConfig  `json:"load" yaml:"load"`
	Store StoreConfig `json:"store" yaml:"store"`
}
