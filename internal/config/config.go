// Package config provides configuration management for hookcheck.
// Configuration is loaded from (highest to lowest priority):
// 1. Command-line flags
// 2. Environment variables (HOOKCHECK_*)
// 3. A .env file in the project directory (only variables not already set)
// 4. Project config (.hookcheck/config.yaml or .hookcheck/config.toml)
// 5. Home config (~/.hookcheck/config.yaml)
// 6. Defaults
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/boshu2/hookcheck/internal/hook"
	"github.com/boshu2/hookcheck/internal/safety"
)

// Config holds all hookcheck configuration.
type Config struct {
	// Output controls the default output format (table, json, jsonl, yaml, markdown).
	Output string `yaml:"output" json:"output" toml:"output"`

	// Verbose enables debug logging on stderr.
	Verbose bool `yaml:"verbose" json:"verbose" toml:"verbose"`

	// ReportsDir holds persisted runs, relative to the project root.
	ReportsDir string `yaml:"reports_dir" json:"reports_dir" toml:"reports_dir"`

	// Safety is the path sandbox policy and scan limits.
	Safety safety.Config `yaml:"safety" json:"safety" toml:"safety"`

	// Policy tunes task classification.
	Policy PolicyConfig `yaml:"policy" json:"policy" toml:"policy"`

	// Matcher tunes where ui and directory hooks look.
	Matcher MatcherConfig `yaml:"matcher" json:"matcher" toml:"matcher"`

	// Migrate settings
	Migrate MigrateConfig `yaml:"migrate" json:"migrate" toml:"migrate"`
}

// PolicyConfig holds classification settings.
type PolicyConfig struct {
	// MediumAsVerified lists hook types whose medium-confidence matches count
	// as verified.
	MediumAsVerified []string `yaml:"medium_as_verified" json:"medium_as_verified" toml:"medium_as_verified"`
}

// MatcherConfig holds matcher settings.
type MatcherConfig struct {
	// UIRoots are scanned for ui component=.
	UIRoots []string `yaml:"ui_roots" json:"ui_roots,omitempty" toml:"ui_roots"`

	// SkipDirs are never entered by directory walks.
	SkipDirs []string `yaml:"skip_dirs" json:"skip_dirs,omitempty" toml:"skip_dirs"`
}

// MigrateConfig holds migration settings.
type MigrateConfig struct {
	// BackupSuffix is inserted before the timestamp of backup files.
	BackupSuffix string `yaml:"backup_suffix" json:"backup_suffix" toml:"backup_suffix"`
}

// Default config values (used in resolution and validation).
const (
	defaultOutput       = "table"
	defaultReportsDir   = ".hookcheck/reports"
	defaultBackupSuffix = ".bak"
)

// ValidOutputs lists the accepted output formats.
var ValidOutputs = []string{"table", "json", "jsonl", "yaml", "markdown"}

// Environment variables read by Load.
const (
	EnvConfig           = "HOOKCHECK_CONFIG"
	EnvOutput           = "HOOKCHECK_OUTPUT"
	EnvVerbose          = "HOOKCHECK_VERBOSE"
	EnvReportsDir       = "HOOKCHECK_REPORTS_DIR"
	EnvMaxSeconds       = "HOOKCHECK_MAX_SECONDS"
	EnvMaxTotalBytes    = "HOOKCHECK_MAX_TOTAL_BYTES"
	EnvMaxFileBytes     = "HOOKCHECK_MAX_FILE_BYTES"
	EnvAllowSymlinks    = "HOOKCHECK_ALLOW_SYMLINKS"
	EnvMediumAsVerified = "HOOKCHECK_MEDIUM_AS_VERIFIED"
)

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Output:     defaultOutput,
		ReportsDir: defaultReportsDir,
		Verbose:    false,
		Safety:     safety.DefaultConfig(),
		Migrate: MigrateConfig{
			BackupSuffix: defaultBackupSuffix,
		},
	}
}

// Validate checks values that cannot be repaired by defaults.
func (c *Config) Validate() error {
	var errs []error
	if !contains(ValidOutputs, c.Output) {
		errs = append(errs, fmt.Errorf("output %q is not one of %s", c.Output, strings.Join(ValidOutputs, ", ")))
	}
	for _, t := range c.Policy.MediumAsVerified {
		if !hook.Type(strings.ToLower(strings.TrimSpace(t))).Valid() {
			errs = append(errs, fmt.Errorf("policy.medium_as_verified: unknown hook type %q", t))
		}
	}
	l := c.Safety.Limits
	if l.MaxFileBytes < 0 || l.MaxTotalBytes < 0 || l.MaxFiles < 0 || l.MaxSeconds < 0 || l.MaxExcerptChars < 0 || l.MaxSuggestions < 0 {
		errs = append(errs, errors.New("safety.limits must not be negative"))
	}
	return errors.Join(errs...)
}

// MediumTypes converts the policy to hook types.
func (c *Config) MediumTypes() []hook.Type {
	out := make([]hook.Type, 0, len(c.Policy.MediumAsVerified))
	for _, t := range c.Policy.MediumAsVerified {
		out = append(out, hook.Type(strings.ToLower(strings.TrimSpace(t))))
	}
	return out
}

// Load loads configuration for the working directory.
func Load(flagOverrides *Config) (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}
	return LoadDir(cwd, flagOverrides)
}

// LoadDir loads configuration with proper precedence for the project in dir.
// Priority: flags > env > .env > project > home > defaults
func LoadDir(dir string, flagOverrides *Config) (*Config, error) {
	layers, err := loadLayers(dir, flagOverrides)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	for _, l := range layers {
		cfg = merge(cfg, l.cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// layer is one source of partial configuration.
type layer struct {
	source Source
	cfg    *Config
}

// loadLayers returns the non-default layers, lowest priority first.
func loadLayers(dir string, flagOverrides *Config) ([]layer, error) {
	var layers []layer

	homeConfig, err := loadFromPath(homeConfigPath())
	if err != nil {
		return nil, err
	}
	if homeConfig != nil {
		layers = append(layers, layer{SourceHome, homeConfig})
	}

	projectConfig, err := loadFromPath(projectConfigPath(dir))
	if err != nil {
		return nil, err
	}
	if projectConfig != nil {
		layers = append(layers, layer{SourceProject, projectConfig})
	}

	dotenv, err := readDotenv(dir)
	if err != nil {
		return nil, err
	}
	dotenvConfig, err := envConfig(func(key string) (string, bool) {
		if _, set := os.LookupEnv(key); set {
			return "", false
		}
		v, ok := dotenv[key]
		return v, ok
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", SourceDotenv, err)
	}
	layers = append(layers, layer{SourceDotenv, dotenvConfig})

	envCfg, err := envConfig(os.LookupEnv)
	if err != nil {
		return nil, err
	}
	layers = append(layers, layer{SourceEnv, envCfg})

	if flagOverrides != nil {
		layers = append(layers, layer{SourceFlag, flagOverrides})
	}
	return layers, nil
}

// homeConfigPath returns the home config path.
func homeConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".hookcheck", "config.yaml")
}

// projectConfigPath returns the project config path: HOOKCHECK_CONFIG when
// set, else .hookcheck/config.yaml, else .hookcheck/config.toml.
func projectConfigPath(dir string) string {
	if override := strings.TrimSpace(os.Getenv(EnvConfig)); override != "" {
		return override
	}
	yamlPath := filepath.Join(dir, ".hookcheck", "config.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return yamlPath
	}
	tomlPath := filepath.Join(dir, ".hookcheck", "config.toml")
	if _, err := os.Stat(tomlPath); err == nil {
		return tomlPath
	}
	return yamlPath
}

// presence records which booleans a file set explicitly.
type presence struct {
	Safety struct {
		AllowSymlinks *bool `yaml:"allow_symlinks" toml:"allow_symlinks"`
	} `yaml:"safety" toml:"safety"`
}

// loadFromPath loads config from a YAML or TOML file. A missing file is not
// an error.
func loadFromPath(path string) (*Config, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	var p presence
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
		_ = toml.Unmarshal(data, &p) //nolint:errcheck // same document decoded above
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
		_ = yaml.Unmarshal(data, &p) //nolint:errcheck // same document decoded above
	}
	cfg.Safety.AllowSymlinksSet = p.Safety.AllowSymlinks != nil

	return &cfg, nil
}

// readDotenv reads <dir>/.env. A missing file yields no variables.
func readDotenv(dir string) (map[string]string, error) {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	vars, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return vars, nil
}

// envConfig builds a partial config from HOOKCHECK_* variables.
func envConfig(lookup func(string) (string, bool)) (*Config, error) {
	cfg := &Config{}
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}

	cfg.Output = get(EnvOutput)
	cfg.ReportsDir = get(EnvReportsDir)
	if b, ok := parseBool(get(EnvVerbose)); ok && b {
		cfg.Verbose = true
	}
	if v := get(EnvAllowSymlinks); v != "" {
		b, ok := parseBool(v)
		if !ok {
			return nil, fmt.Errorf("parse %s: invalid boolean %q", EnvAllowSymlinks, v)
		}
		cfg.Safety.AllowSymlinks = b
		cfg.Safety.AllowSymlinksSet = true
	}
	if v := get(EnvMediumAsVerified); v != "" {
		cfg.Policy.MediumAsVerified = splitList(v)
	}

	var err error
	if cfg.Safety.Limits.MaxSeconds, err = envInt(get, EnvMaxSeconds); err != nil {
		return nil, err
	}
	if cfg.Safety.Limits.MaxTotalBytes, err = envInt64(get, EnvMaxTotalBytes); err != nil {
		return nil, err
	}
	if cfg.Safety.Limits.MaxFileBytes, err = envInt64(get, EnvMaxFileBytes); err != nil {
		return nil, err
	}
	return cfg, nil
}

func envInt(get func(string) string, key string) (int, error) {
	n, err := envInt64(get, key)
	return int(n), err
}

func envInt64(get func(string) string, key string) (int64, error) {
	v := get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("parse %s: must not be negative", key)
	}
	return n, nil
}

// parseBool accepts true/false/1/0/yes/no.
func parseBool(v string) (value, ok bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes", "on":
		return true, true
	case "false", "0", "no", "off":
		return false, true
	}
	return false, false
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// mergeStr overwrites dst with src when src is non-empty.
func mergeStr(dst *string, src string) {
	if src != "" {
		*dst = src
	}
}

// mergeInt overwrites dst with src when src is non-zero.
func mergeInt[T int | int64](dst *T, src T) {
	if src != 0 {
		*dst = src
	}
}

// mergeList overwrites dst with src when src is non-empty.
func mergeList(dst *[]string, src []string) {
	if len(src) > 0 {
		*dst = append([]string(nil), src...)
	}
}

// merge merges src into dst, with src values taking precedence.
// Booleans only override when set: Verbose when true, AllowSymlinks via
// AllowSymlinksSet.
func merge(dst, src *Config) *Config {
	mergeStr(&dst.Output, src.Output)
	mergeStr(&dst.ReportsDir, src.ReportsDir)
	if src.Verbose {
		dst.Verbose = true
	}

	mergeSafety(&dst.Safety, &src.Safety)
	mergeList(&dst.Policy.MediumAsVerified, src.Policy.MediumAsVerified)
	mergeList(&dst.Matcher.UIRoots, src.Matcher.UIRoots)
	mergeList(&dst.Matcher.SkipDirs, src.Matcher.SkipDirs)
	mergeStr(&dst.Migrate.BackupSuffix, src.Migrate.BackupSuffix)

	return dst
}

// mergeSafety merges sandbox policy fields.
func mergeSafety(dst, src *safety.Config) {
	mergeList(&dst.ReadAllow, src.ReadAllow)
	mergeList(&dst.WriteAllow, src.WriteAllow)
	mergeList(&dst.WriteDeny, src.WriteDeny)
	if src.AllowSymlinksSet {
		dst.AllowSymlinks = src.AllowSymlinks
		dst.AllowSymlinksSet = true
	}
	mergeInt(&dst.Limits.MaxFileBytes, src.Limits.MaxFileBytes)
	mergeInt(&dst.Limits.MaxTotalBytes, src.Limits.MaxTotalBytes)
	mergeInt(&dst.Limits.MaxFiles, src.Limits.MaxFiles)
	mergeInt(&dst.Limits.MaxSeconds, src.Limits.MaxSeconds)
	mergeInt(&dst.Limits.MaxExcerptChars, src.Limits.MaxExcerptChars)
	mergeInt(&dst.Limits.MaxSuggestions, src.Limits.MaxSuggestions)
}
