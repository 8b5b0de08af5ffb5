package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BadgerOps/jarsync/internal/artifact"
	"github.com/BadgerOps/jarsync/internal/safety"
	"github.com/BurntSushi/toml"
	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration
type Config struct {
	Project  ProjectConfig  `yaml:"project" toml:"project"`
	Registry RegistryConfig `yaml:"registry" toml:"registry"`
	Store    StoreConfig    `yaml:"store" toml:"store"`
	Export   ExportConfig   `yaml:"export" toml:"export"`
}

// ProjectConfig locates the manifest
type ProjectConfig struct {
	Manifest       string `yaml:"manifest" toml:"manifest"`
	BuildOnlyScope string `yaml:"build_only_scope" toml:"build_only_scope"`
}

// RegistryConfig holds remote repository settings
type RegistryConfig struct {
	BaseURL          string        `yaml:"base_url" toml:"base_url"`
	Timeout          time.Duration `yaml:"timeout" toml:"timeout"`
	Workers          int           `yaml:"workers" toml:"workers"`
	RetryAttempts    int           `yaml:"retry_attempts" toml:"retry_attempts"`
	MaxMetadataBytes string        `yaml:"max_metadata_bytes" toml:"max_metadata_bytes"`
}

// StoreConfig holds local artifact store settings
type StoreConfig struct {
	Dir     string         `yaml:"dir" toml:"dir"`
	DBPath  string         `yaml:"db_path" toml:"db_path"`
	Buckets []BucketConfig `yaml:"buckets" toml:"buckets"`
}

// BucketConfig is one classification rule, applied in list order
type BucketConfig struct {
	Name     string   `yaml:"name" toml:"name"`
	Keywords []string `yaml:"keywords" toml:"keywords"`
}

// ExportConfig holds packaging settings
type ExportConfig struct {
	SplitSize   string `yaml:"split_size" toml:"split_size"`
	Prefix      string `yaml:"prefix" toml:"prefix"`
	OutputDir   string `yaml:"output_dir" toml:"output_dir"`
	Compression string `yaml:"compression" toml:"compression"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	var buckets []BucketConfig
	for _, r := range artifact.DefaultRules() {
		buckets = append(buckets, BucketConfig{Name: r.Bucket, Keywords: r.Keywords})
	}

	return &Config{
		Project: ProjectConfig{
			Manifest:       "pom.xml",
			BuildOnlyScope: "provided",
		},
		Registry: RegistryConfig{
			BaseURL:          "https://repo1.maven.org/maven2",
			Timeout:          10 * time.Second,
			Workers:          1,
			RetryAttempts:    1,
			MaxMetadataBytes: "1MiB",
		},
		Store: StoreConfig{
			Dir:     "lib",
			DBPath:  "",
			Buckets: buckets,
		},
		Export: ExportConfig{
			SplitSize:   "45MiB",
			Prefix:      "pcm-libs",
			OutputDir:   "archives",
			Compression: "deflate",
		},
	}
}

// isTOML reports whether path names a TOML file; anything else is YAML
func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// Load reads a config file from the given path. Files ending in .toml are
// decoded as TOML, everything else as YAML.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if isTOML(path) {
		// Lists replace the defaults rather than merging into them
		cfg.Store.Buckets = nil
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
		if len(cfg.Store.Buckets) == 0 {
			cfg.Store.Buckets = DefaultConfig().Store.Buckets
		}
		return cfg, nil
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return cfg, nil
}

// Write saves cfg in the format implied by path, refusing to overwrite an
// existing file
func Write(cfg *Config, path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}
	data, err := Marshal(cfg, path)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Marshal encodes cfg as TOML when path ends in .toml, otherwise as YAML
func Marshal(cfg *Config, path string) ([]byte, error) {
	if isTOML(path) {
		var buf strings.Builder
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return nil, fmt.Errorf("marshaling config: %w", err)
		}
		return []byte(buf.String()), nil
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshaling config: %w", err)
	}
	return data, nil
}

// FindConfigFile searches for a config file in standard locations
func FindConfigFile() (string, error) {
	searchPaths := []string{
		"jarsync.yaml",
		"jarsync.toml",
		"/etc/jarsync/jarsync.yaml",
	}

	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths,
			filepath.Join(home, ".config", "jarsync", "jarsync.yaml"),
			filepath.Join(home, ".config", "jarsync", "jarsync.toml"),
		)
	}

	for _, path := range searchPaths {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", searchPaths)
}

// Validate checks values that would otherwise fail deep inside a run
func (c *Config) Validate() error {
	if c.Project.Manifest == "" {
		return fmt.Errorf("project.manifest is required")
	}
	if _, err := safety.ValidateBaseURL(c.Registry.BaseURL); err != nil {
		return fmt.Errorf("registry.base_url: %w", err)
	}
	if c.Registry.Timeout <= 0 {
		return fmt.Errorf("registry.timeout must be positive")
	}
	if c.Registry.Workers < 1 {
		return fmt.Errorf("registry.workers must be at least 1")
	}
	if _, err := c.MetadataLimit(); err != nil {
		return err
	}
	if c.Store.Dir == "" {
		return fmt.Errorf("store.dir is required")
	}
	if _, err := artifact.NewClassifier(c.BucketRules()); err != nil {
		return fmt.Errorf("store.buckets: %w", err)
	}
	if _, err := c.SplitSizeBytes(); err != nil {
		return err
	}
	switch c.Export.Compression {
	case "", "deflate", "zstd", "store":
	default:
		return fmt.Errorf("export.compression: unsupported value %q", c.Export.Compression)
	}
	return nil
}

// SplitSizeBytes parses export.split_size ("45MiB", "50MB", "1048576")
func (c *Config) SplitSizeBytes() (int64, error) {
	return ParseSize(c.Export.SplitSize)
}

// MetadataLimit parses registry.max_metadata_bytes
func (c *Config) MetadataLimit() (int64, error) {
	n, err := ParseSize(c.Registry.MaxMetadataBytes)
	if err != nil {
		return 0, fmt.Errorf("registry.max_metadata_bytes: %w", err)
	}
	return n, nil
}

// BucketRules converts the configured buckets into classifier rules
func (c *Config) BucketRules() []artifact.Rule {
	if len(c.Store.Buckets) == 0 {
		return artifact.DefaultRules()
	}
	rules := make([]artifact.Rule, 0, len(c.Store.Buckets))
	for _, b := range c.Store.Buckets {
		rules = append(rules, artifact.Rule{Bucket: b.Name, Keywords: b.Keywords})
	}
	return rules
}

// ParseSize parses a human-readable positive size. SI suffixes (MB) are
// powers of 1000 and IEC suffixes (MiB) powers of 1024.
func ParseSize(s string) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty size string")
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	if n == 0 {
		return 0, fmt.Errorf("size must be positive: %q", s)
	}
	if n > 1<<62 {
		return 0, fmt.Errorf("size too large: %q", s)
	}
	return int64(n), nil
}
