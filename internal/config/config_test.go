package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestDefaultConfig verifies that DefaultConfig returns sensible defaults
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name     string
		getValue func(*Config) string
		want     string
	}{
		{"manifest", func(c *Config) string { return c.Project.Manifest }, "pom.xml"},
		{"build only scope", func(c *Config) string { return c.Project.BuildOnlyScope }, "provided"},
		{"base url", func(c *Config) string { return c.Registry.BaseURL }, "https://repo1.maven.org/maven2"},
		{"store dir", func(c *Config) string { return c.Store.Dir }, "lib"},
		{"db path", func(c *Config) string { return c.Store.DBPath }, ""},
		{"split size", func(c *Config) string { return c.Export.SplitSize }, "45MiB"},
		{"prefix", func(c *Config) string { return c.Export.Prefix }, "pcm-libs"},
		{"output dir", func(c *Config) string { return c.Export.OutputDir }, "archives"},
		{"compression", func(c *Config) string { return c.Export.Compression }, "deflate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.getValue(cfg)
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}

	if cfg.Registry.Timeout != 10*time.Second {
		t.Errorf("Registry.Timeout = %v, want 10s", cfg.Registry.Timeout)
	}
	if cfg.Registry.Workers != 1 {
		t.Errorf("Registry.Workers = %d, want 1", cfg.Registry.Workers)
	}
	if len(cfg.Store.Buckets) != 3 {
		t.Errorf("Store.Buckets length = %d, want 3", len(cfg.Store.Buckets))
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config does not validate: %v", err)
	}

	size, err := cfg.SplitSizeBytes()
	if err != nil {
		t.Fatalf("SplitSizeBytes() failed: %v", err)
	}
	if size != 45*1024*1024 {
		t.Errorf("SplitSizeBytes() = %d, want %d", size, 45*1024*1024)
	}
}

// TestLoad tests loading a valid config file
func TestLoad(t *testing.T) {
	tempDir := t.TempDir()
	configFile := filepath.Join(tempDir, "jarsync.yaml")

	configContent := `
project:
  manifest: "app/pom.xml"
registry:
  base_url: "https://mirror.example.com/maven2/"
  timeout: 30s
  workers: 4
store:
  dir: "/srv/jars"
  db_path: "/srv/jars/history.db"
  buckets:
    - name: web
      keywords: [jetty, servlet]
export:
  split_size: "100MB"
  compression: "zstd"
`

	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(configFile)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Project.Manifest != "app/pom.xml" {
		t.Errorf("Project.Manifest = %q, want %q", cfg.Project.Manifest, "app/pom.xml")
	}
	// Unset fields keep their defaults
	if cfg.Project.BuildOnlyScope != "provided" {
		t.Errorf("Project.BuildOnlyScope = %q, want %q", cfg.Project.BuildOnlyScope, "provided")
	}
	if cfg.Registry.Timeout != 30*time.Second {
		t.Errorf("Registry.Timeout = %v, want 30s", cfg.Registry.Timeout)
	}
	if cfg.Registry.Workers != 4 {
		t.Errorf("Registry.Workers = %d, want 4", cfg.Registry.Workers)
	}
	if cfg.Store.DBPath != "/srv/jars/history.db" {
		t.Errorf("Store.DBPath = %q", cfg.Store.DBPath)
	}
	if cfg.Export.Prefix != "pcm-libs" {
		t.Errorf("Export.Prefix = %q, want default", cfg.Export.Prefix)
	}

	rules := cfg.BucketRules()
	if len(rules) != 1 || rules[0].Bucket != "web" || len(rules[0].Keywords) != 2 {
		t.Errorf("BucketRules() = %+v, want single web rule", rules)
	}

	size, err := cfg.SplitSizeBytes()
	if err != nil {
		t.Fatalf("SplitSizeBytes() failed: %v", err)
	}
	if size != 100*1000*1000 {
		t.Errorf("SplitSizeBytes() = %d, want %d", size, 100*1000*1000)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() failed: %v", err)
	}
}

// TestLoadInvalidYAML tests that Load returns an error for invalid YAML
func TestLoadInvalidYAML(t *testing.T) {
	tempDir := t.TempDir()
	configFile := filepath.Join(tempDir, "invalid.yaml")

	invalidContent := `
registry:
  base_url: "https://repo1.maven.org/maven2"
  invalid: [unclosed bracket
`

	if err := os.WriteFile(configFile, []byte(invalidContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	if _, err := Load(configFile); err == nil {
		t.Error("Load() succeeded, want error for invalid YAML")
	}
}

// TestLoadNonexistentFile tests that Load returns an error for missing files
func TestLoadNonexistentFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/jarsync.yaml"); err == nil {
		t.Error("Load() succeeded, want error for nonexistent file")
	}
}

func chdirTemp(t *testing.T) string {
	t.Helper()
	originalWd, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}

	tempDir := t.TempDir()
	if err := os.Chdir(tempDir); err != nil {
		t.Fatalf("failed to change directory: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(originalWd); err != nil {
			t.Fatalf("failed to restore working directory: %v", err)
		}
	})
	return tempDir
}

// TestFindConfigFileNotFound tests that FindConfigFile returns error when no config exists
func TestFindConfigFileNotFound(t *testing.T) {
	chdirTemp(t)
	t.Setenv("HOME", t.TempDir())

	if _, err := os.Stat("/etc/jarsync/jarsync.yaml"); err == nil {
		t.Skip("system config present")
	}

	_, err := FindConfigFile()
	if err == nil {
		t.Fatal("FindConfigFile() succeeded, want error when no config exists")
	}
	if !strings.Contains(err.Error(), "jarsync.yaml") {
		t.Errorf("error %q does not list searched paths", err)
	}
}

// TestFindConfigFileFound tests that FindConfigFile returns the found config
func TestFindConfigFileFound(t *testing.T) {
	tempDir := chdirTemp(t)

	configFile := filepath.Join(tempDir, "jarsync.yaml")
	if err := os.WriteFile(configFile, []byte("store:\n  dir: lib\n"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	found, err := FindConfigFile()
	if err != nil {
		t.Fatalf("FindConfigFile() failed: %v", err)
	}
	if found != "jarsync.yaml" {
		t.Errorf("FindConfigFile() = %q, want jarsync.yaml", found)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"store compression", func(c *Config) { c.Export.Compression = "store" }, ""},
		{"empty manifest", func(c *Config) { c.Project.Manifest = "" }, "project.manifest"},
		{"ftp base url", func(c *Config) { c.Registry.BaseURL = "ftp://example.com" }, "registry.base_url"},
		{"zero timeout", func(c *Config) { c.Registry.Timeout = 0 }, "registry.timeout"},
		{"zero workers", func(c *Config) { c.Registry.Workers = 0 }, "registry.workers"},
		{"bad metadata limit", func(c *Config) { c.Registry.MaxMetadataBytes = "lots" }, "max_metadata_bytes"},
		{"empty store dir", func(c *Config) { c.Store.Dir = "" }, "store.dir"},
		{"empty bucket name", func(c *Config) {
			c.Store.Buckets = []BucketConfig{{Name: "", Keywords: []string{"x"}}}
		}, "store.buckets"},
		{"zero split size", func(c *Config) { c.Export.SplitSize = "0" }, "positive"},
		{"garbage split size", func(c *Config) { c.Export.SplitSize = "big" }, "invalid size"},
		{"unknown compression", func(c *Config) { c.Export.Compression = "gzip" }, "export.compression"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %q, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"45MiB", 45 * 1024 * 1024, false},
		{"45MB", 45 * 1000 * 1000, false},
		{"1048576", 1048576, false},
		{"1 GiB", 1 << 30, false},
		{"", 0, true},
		{"0", 0, true},
		{"-5MB", 0, true},
		{"huge", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSize(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSize(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseSize(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestBucketRulesFallback(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Store.Buckets = nil
	if got := cfg.BucketRules(); len(got) != 3 || got[0].Bucket != "javafx" {
		t.Errorf("BucketRules() with no buckets = %+v, want default table", got)
	}
}

func TestWriteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "jarsync.yaml")

	if err := Write(DefaultConfig(), path); err != nil {
		t.Fatalf("Write() failed: %v", err)
	}
	if err := Write(DefaultConfig(), path); err == nil {
		t.Error("second Write() succeeded, want error for existing file")
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Registry.Timeout != 10*time.Second {
		t.Errorf("Registry.Timeout after round trip = %v", cfg.Registry.Timeout)
	}
	if cfg.Export.SplitSize != "45MiB" {
		t.Errorf("Export.SplitSize after round trip = %q", cfg.Export.SplitSize)
	}
	if len(cfg.Store.Buckets) != 3 {
		t.Errorf("Store.Buckets after round trip = %d entries", len(cfg.Store.Buckets))
	}
}

func TestLoadTOML(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "jarsync.toml")
	content := `
[project]
manifest = "service/pom.xml"

[registry]
base_url = "https://nexus.internal/repository/maven-public"
timeout = "15s"
workers = 2

[[store.buckets]]
name = "javafx"
keywords = ["javafx"]

[[store.buckets]]
name = "logging"
keywords = ["slf4j", "logback"]

[export]
compression = "zstd"
`
	if err := os.WriteFile(configFile, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(configFile)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Project.Manifest != "service/pom.xml" {
		t.Errorf("Project.Manifest = %q", cfg.Project.Manifest)
	}
	if cfg.Registry.Timeout != 15*time.Second {
		t.Errorf("Registry.Timeout = %v, want 15s", cfg.Registry.Timeout)
	}
	if cfg.Registry.Workers != 2 {
		t.Errorf("Registry.Workers = %d, want 2", cfg.Registry.Workers)
	}
	if len(cfg.Store.Buckets) != 2 || cfg.Store.Buckets[1].Name != "logging" {
		t.Errorf("Store.Buckets = %+v, want javafx and logging", cfg.Store.Buckets)
	}
	if cfg.Export.SplitSize != "45MiB" {
		t.Errorf("Export.SplitSize = %q, want default", cfg.Export.SplitSize)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() failed: %v", err)
	}
}

func TestLoadTOMLKeepsDefaultBuckets(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "jarsync.toml")
	if err := os.WriteFile(configFile, []byte("[store]\ndir = \"jars\"\n"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(configFile)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Store.Dir != "jars" {
		t.Errorf("Store.Dir = %q, want jars", cfg.Store.Dir)
	}
	if len(cfg.Store.Buckets) != 3 {
		t.Errorf("Store.Buckets = %d entries, want the 3 defaults", len(cfg.Store.Buckets))
	}
}

func TestMarshalTOML(t *testing.T) {
	data, err := Marshal(DefaultConfig(), "jarsync.toml")
	if err != nil {
		t.Fatalf("Marshal() failed: %v", err)
	}
	out := string(data)
	for _, want := range []string{"[project]", "manifest = \"pom.xml\"", "[[store.buckets]]", "split_size = \"45MiB\""} {
		if !strings.Contains(out, want) {
			t.Errorf("TOML output missing %q:\n%s", want, out)
		}
	}
}
