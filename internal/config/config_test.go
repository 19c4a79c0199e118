package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestResolve_FillsPaths(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = "/tmp/stockyard-test"
	cfg.Resolve()

	if cfg.Storage.Path != filepath.Join("/tmp/stockyard-test", "artifacts") {
		t.Errorf("storage path not resolved: %s", cfg.Storage.Path)
	}
	if cfg.Catalog.DBPath != filepath.Join("/tmp/stockyard-test", "catalog.db") {
		t.Errorf("catalog db path not resolved: %s", cfg.Catalog.DBPath)
	}
}

func TestResolve_NormalizesPrefixes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Pipeline.PendingPrefix = "uploaded"
	cfg.Pipeline.ProcessedPrefix = "parsed"
	cfg.Resolve()

	if cfg.Pipeline.PendingPrefix != "uploaded/" {
		t.Errorf("pending prefix not normalized: %q", cfg.Pipeline.PendingPrefix)
	}
	if cfg.Pipeline.ProcessedPrefix != "parsed/" {
		t.Errorf("processed prefix not normalized: %q", cfg.Pipeline.ProcessedPrefix)
	}
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad mode", func(c *Config) { c.Mode = "replicate" }},
		{"empty data dir", func(c *Config) { c.DataDir = "" }},
		{"bad storage type", func(c *Config) { c.Storage.Type = "gcs" }},
		{"s3 without bucket", func(c *Config) { c.Storage.Type = "s3" }},
		{"bad queue type", func(c *Config) { c.Queue.Type = "kafka" }},
		{"sqs without url", func(c *Config) { c.Queue.Type = "sqs" }},
		{"batch size too big", func(c *Config) { c.Queue.BatchSize = 11 }},
		{"batch size zero", func(c *Config) { c.Queue.BatchSize = 0 }},
		{"bad events type", func(c *Config) { c.Events.Type = "nats" }},
		{"sns without arn", func(c *Config) { c.Events.Type = "sns" }},
		{"zero threshold", func(c *Config) { c.Events.PriceThreshold = 0 }},
		{"bad malformed policy", func(c *Config) { c.Pipeline.MalformedPolicy = "ignore" }},
		{"same prefixes", func(c *Config) { c.Pipeline.ProcessedPrefix = c.Pipeline.PendingPrefix }},
		{"zero workers", func(c *Config) { c.Pipeline.Workers = 0 }},
		{"negative default count", func(c *Config) { c.Pipeline.DefaultCount = -1 }},
		{"multi-char delimiter", func(c *Config) { c.Pipeline.Delimiter = ",," }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Resolve()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestLoadFromFile_YAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
mode: commit
data_dir: /data/stockyard
queue:
  type: sqs
  work_queue_url: https://sqs.eu-central-1.amazonaws.com/123/catalog-items
  batch_size: 5
events:
  price_threshold: 250
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if cfg.Mode != ModeCommit {
		t.Errorf("mode = %s, want commit", cfg.Mode)
	}
	if cfg.Queue.Type != "sqs" {
		t.Errorf("queue type = %s, want sqs", cfg.Queue.Type)
	}
	if cfg.Events.PriceThreshold != 250 {
		t.Errorf("price threshold = %v, want 250", cfg.Events.PriceThreshold)
	}
	// Untouched keys keep defaults
	if cfg.Pipeline.PendingPrefix != "uploaded/" {
		t.Errorf("pending prefix default lost: %q", cfg.Pipeline.PendingPrefix)
	}
}

func TestLoadFromFile_UnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("mode = \"all\""), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	if _, err := LoadFromFile(path); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("STOCKYARD_MODE", "extract")
	t.Setenv("STOCKYARD_QUEUE_VISIBILITY_TIMEOUT", "45s")
	t.Setenv("STOCKYARD_QUEUE_REGION", "us-west-2")
	t.Setenv("STOCKYARD_S3_REGION", "eu-central-1")
	t.Setenv("STOCKYARD_EVENTS_PRICE_THRESHOLD", "150")

	cfg := DefaultConfig()
	LoadFromEnv(cfg)

	if cfg.Mode != ModeExtract {
		t.Errorf("mode = %s, want extract", cfg.Mode)
	}
	if cfg.Queue.VisibilityTimeout != 45*time.Second {
		t.Errorf("visibility timeout = %v, want 45s", cfg.Queue.VisibilityTimeout)
	}
	// Queue and bucket regions are independent.
	if cfg.Queue.Region != "us-west-2" || cfg.Storage.S3.Region != "eu-central-1" {
		t.Errorf("regions = %q/%q, want us-west-2/eu-central-1", cfg.Queue.Region, cfg.Storage.S3.Region)
	}
	if cfg.Events.PriceThreshold != 150 {
		t.Errorf("price threshold = %v, want 150", cfg.Events.PriceThreshold)
	}
}
