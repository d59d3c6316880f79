package config

import (
	"fmt"
	"strings"
)

// Source represents where a config value came from.
type Source string

const (
	SourceDefault Source = "default"
	SourceHome    Source = "~/.hookcheck/config.yaml"
	SourceProject Source = ".hookcheck/config"
	SourceDotenv  Source = ".env"
	SourceEnv     Source = "environment"
	SourceFlag    Source = "flag"
)

// Resolved is one value with its source.
type Resolved struct {
	Value  interface{} `json:"value" yaml:"value"`
	Source Source      `json:"source" yaml:"source"`
}

// ResolvedConfig shows config values with their sources.
type ResolvedConfig struct {
	Output           Resolved `json:"output" yaml:"output"`
	Verbose          Resolved `json:"verbose" yaml:"verbose"`
	ReportsDir       Resolved `json:"reports_dir" yaml:"reports_dir"`
	ReadAllow        Resolved `json:"read_allow" yaml:"read_allow"`
	WriteAllow       Resolved `json:"write_allow" yaml:"write_allow"`
	WriteDeny        Resolved `json:"write_deny" yaml:"write_deny"`
	AllowSymlinks    Resolved `json:"allow_symlinks" yaml:"allow_symlinks"`
	MaxFileBytes     Resolved `json:"max_file_bytes" yaml:"max_file_bytes"`
	MaxTotalBytes    Resolved `json:"max_total_bytes" yaml:"max_total_bytes"`
	MaxFiles         Resolved `json:"max_files" yaml:"max_files"`
	MaxSeconds       Resolved `json:"max_seconds" yaml:"max_seconds"`
	MaxExcerptChars  Resolved `json:"max_excerpt_chars" yaml:"max_excerpt_chars"`
	MaxSuggestions   Resolved `json:"max_suggestions" yaml:"max_suggestions"`
	MediumAsVerified Resolved `json:"medium_as_verified" yaml:"medium_as_verified"`
	UIRoots          Resolved `json:"ui_roots" yaml:"ui_roots"`
	SkipDirs         Resolved `json:"skip_dirs" yaml:"skip_dirs"`
	BackupSuffix     Resolved `json:"backup_suffix" yaml:"backup_suffix"`

	// ProjectConfig is the project config file consulted.
	ProjectConfig string `json:"project_config" yaml:"project_config"`
}

// Rows returns the resolved values as name/value/source triples in a stable
// order for table output.
func (rc *ResolvedConfig) Rows() [][3]string {
	fields := []struct {
		name string
		r    Resolved
	}{
		{"output", rc.Output},
		{"verbose", rc.Verbose},
		{"reports_dir", rc.ReportsDir},
		{"safety.read_allow", rc.ReadAllow},
		{"safety.write_allow", rc.WriteAllow},
		{"safety.write_deny", rc.WriteDeny},
		{"safety.allow_symlinks", rc.AllowSymlinks},
		{"safety.limits.max_file_bytes", rc.MaxFileBytes},
		{"safety.limits.max_total_bytes", rc.MaxTotalBytes},
		{"safety.limits.max_files", rc.MaxFiles},
		{"safety.limits.max_seconds", rc.MaxSeconds},
		{"safety.limits.max_excerpt_chars", rc.MaxExcerptChars},
		{"safety.limits.max_suggestions", rc.MaxSuggestions},
		{"policy.medium_as_verified", rc.MediumAsVerified},
		{"matcher.ui_roots", rc.UIRoots},
		{"matcher.skip_dirs", rc.SkipDirs},
		{"migrate.backup_suffix", rc.BackupSuffix},
	}
	rows := make([][3]string, 0, len(fields))
	for _, f := range fields {
		rows = append(rows, [3]string{f.name, display(f.r.Value), string(f.r.Source)})
	}
	return rows
}

func display(v interface{}) string {
	switch x := v.(type) {
	case []string:
		if len(x) == 0 {
			return "-"
		}
		return strings.Join(x, ",")
	case string:
		if x == "" {
			return "-"
		}
		return x
	default:
		return fmt.Sprint(x)
	}
}

// resolveField walks the layers and keeps the last one that set the field.
func resolveField[T any](def T, layers []layer, get func(*Config) (T, bool)) Resolved {
	result := Resolved{Value: def, Source: SourceDefault}
	for _, l := range layers {
		if v, ok := get(l.cfg); ok {
			result = Resolved{Value: v, Source: l.source}
		}
	}
	return result
}

func str(f func(*Config) string) func(*Config) (string, bool) {
	return func(c *Config) (string, bool) {
		v := f(c)
		return v, v != ""
	}
}

func list(f func(*Config) []string) func(*Config) ([]string, bool) {
	return func(c *Config) ([]string, bool) {
		v := f(c)
		return v, len(v) > 0
	}
}

func num[T int | int64](f func(*Config) T) func(*Config) (T, bool) {
	return func(c *Config) (T, bool) {
		v := f(c)
		return v, v != 0
	}
}

// Resolve returns configuration with source tracking for the project in dir.
// Uses precedence chain: flags > env > .env > project > home > defaults.
func Resolve(dir string, flagOverrides *Config) (*ResolvedConfig, error) {
	layers, err := loadLayers(dir, flagOverrides)
	if err != nil {
		return nil, err
	}
	def := Default()

	rc := &ResolvedConfig{
		Output:     resolveField(def.Output, layers, str(func(c *Config) string { return c.Output })),
		ReportsDir: resolveField(def.ReportsDir, layers, str(func(c *Config) string { return c.ReportsDir })),
		Verbose: resolveField(def.Verbose, layers, func(c *Config) (bool, bool) {
			return c.Verbose, c.Verbose
		}),
		ReadAllow:  resolveField(def.Safety.ReadAllow, layers, list(func(c *Config) []string { return c.Safety.ReadAllow })),
		WriteAllow: resolveField(def.Safety.WriteAllow, layers, list(func(c *Config) []string { return c.Safety.WriteAllow })),
		WriteDeny:  resolveField(def.Safety.WriteDeny, layers, list(func(c *Config) []string { return c.Safety.WriteDeny })),
		AllowSymlinks: resolveField(def.Safety.AllowSymlinks, layers, func(c *Config) (bool, bool) {
			return c.Safety.AllowSymlinks, c.Safety.AllowSymlinksSet
		}),
		MaxFileBytes:     resolveField(def.Safety.Limits.MaxFileBytes, layers, num(func(c *Config) int64 { return c.Safety.Limits.MaxFileBytes })),
		MaxTotalBytes:    resolveField(def.Safety.Limits.MaxTotalBytes, layers, num(func(c *Config) int64 { return c.Safety.Limits.MaxTotalBytes })),
		MaxFiles:         resolveField(def.Safety.Limits.MaxFiles, layers, num(func(c *Config) int { return c.Safety.Limits.MaxFiles })),
		MaxSeconds:       resolveField(def.Safety.Limits.MaxSeconds, layers, num(func(c *Config) int { return c.Safety.Limits.MaxSeconds })),
		MaxExcerptChars:  resolveField(def.Safety.Limits.MaxExcerptChars, layers, num(func(c *Config) int { return c.Safety.Limits.MaxExcerptChars })),
		MaxSuggestions:   resolveField(def.Safety.Limits.MaxSuggestions, layers, num(func(c *Config) int { return c.Safety.Limits.MaxSuggestions })),
		MediumAsVerified: resolveField(def.Policy.MediumAsVerified, layers, list(func(c *Config) []string { return c.Policy.MediumAsVerified })),
		UIRoots:          resolveField(def.Matcher.UIRoots, layers, list(func(c *Config) []string { return c.Matcher.UIRoots })),
		SkipDirs:         resolveField(def.Matcher.SkipDirs, layers, list(func(c *Config) []string { return c.Matcher.SkipDirs })),
		BackupSuffix:     resolveField(def.Migrate.BackupSuffix, layers, str(func(c *Config) string { return c.Migrate.BackupSuffix })),
		ProjectConfig:    projectConfigPath(dir),
	}
	return rc, nil
}
