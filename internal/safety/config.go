package safety

// Default content limits.
const (
	DefaultMaxFileBytes    = 1 << 20  // 1 MiB per file
	DefaultMaxTotalBytes   = 64 << 20 // 64 MiB per run
	DefaultMaxFiles        = 20000
	DefaultMaxSeconds      = 30
	DefaultMaxExcerptChars = 200
	DefaultMaxSuggestions  = 5
)

// Limits bounds how much content one verification run may consume.
type Limits struct {
	// MaxFileBytes caps the bytes read from any single file.
	MaxFileBytes int64 `yaml:"max_file_bytes" json:"max_file_bytes" toml:"max_file_bytes"`

	// MaxTotalBytes caps the bytes read across the whole run.
	MaxTotalBytes int64 `yaml:"max_total_bytes" json:"max_total_bytes" toml:"max_total_bytes"`

	// MaxFiles caps the files visited by directory walks.
	MaxFiles int `yaml:"max_files" json:"max_files" toml:"max_files"`

	// MaxSeconds is the wall-clock budget for the run.
	MaxSeconds int `yaml:"max_seconds" json:"max_seconds" toml:"max_seconds"`

	// MaxExcerptChars bounds excerpts copied into reports.
	MaxExcerptChars int `yaml:"max_excerpt_chars" json:"max_excerpt_chars" toml:"max_excerpt_chars"`

	// MaxSuggestions bounds suggested replacement hooks per task.
	MaxSuggestions int `yaml:"max_suggestions" json:"max_suggestions" toml:"max_suggestions"`
}

// Config is the sandbox policy.
type Config struct {
	// ReadAllow restricts reads to these repo-relative roots when non-empty.
	ReadAllow []string `yaml:"read_allow" json:"read_allow,omitempty" toml:"read_allow"`

	// WriteAllow restricts migration writes to these roots when non-empty.
	WriteAllow []string `yaml:"write_allow" json:"write_allow,omitempty" toml:"write_allow"`

	// WriteDeny blocks migration writes under these roots.
	WriteDeny []string `yaml:"write_deny" json:"write_deny,omitempty" toml:"write_deny"`

	// AllowSymlinks permits symlinked path components. Disallowed by default.
	AllowSymlinks bool `yaml:"allow_symlinks" json:"allow_symlinks" toml:"allow_symlinks"`

	// AllowSymlinksSet tracks whether AllowSymlinks was explicitly configured.
	AllowSymlinksSet bool `yaml:"-" json:"-" toml:"-"`

	Limits Limits `yaml:"limits" json:"limits" toml:"limits"`
}

// DefaultLimits returns the default content limits.
func DefaultLimits() Limits {
	return Limits{
		MaxFileBytes:    DefaultMaxFileBytes,
		MaxTotalBytes:   DefaultMaxTotalBytes,
		MaxFiles:        DefaultMaxFiles,
		MaxSeconds:      DefaultMaxSeconds,
		MaxExcerptChars: DefaultMaxExcerptChars,
		MaxSuggestions:  DefaultMaxSuggestions,
	}
}

// DefaultConfig returns a sandbox policy with default limits, no allow lists,
// and symlinks refused.
func DefaultConfig() Config {
	return Config{
		WriteDeny: []string{".git"},
		Limits:    DefaultLimits(),
	}
}
