// Package config provides unified configuration for all Stockyard services.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Mode represents the service mode to run.
type Mode string

const (
	ModeAll     Mode = "all"
	ModeAPI     Mode = "api"
	ModeExtract Mode = "extract"
	ModeCommit  Mode = "commit"
)

// MalformedPolicy controls what the CSV codec does with rows whose field
// count does not match the header.
type MalformedPolicy string

const (
	// MalformedDrop drops the row and logs a warning.
	MalformedDrop MalformedPolicy = "drop"
	// MalformedFail aborts the extraction attempt.
	MalformedFail MalformedPolicy = "fail"
)

// Config holds the unified configuration for all Stockyard services.
type Config struct {
	// Mode specifies which services to run: all, api, extract, commit
	Mode Mode `json:"mode" yaml:"mode"`

	// DataDir is the base directory for all local data files
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// HTTP configuration
	HTTP HTTPConfig `json:"http" yaml:"http"`

	// Storage configuration (artifact store)
	Storage StorageConfig `json:"storage" yaml:"storage"`

	// Queue configuration (work queue + dead-letter queue)
	Queue QueueConfig `json:"queue" yaml:"queue"`

	// Events configuration (commit event fan-out)
	Events EventsConfig `json:"events" yaml:"events"`

	// Pipeline configuration (extraction + commit stages)
	Pipeline PipelineConfig `json:"pipeline" yaml:"pipeline"`

	// Catalog configuration (product/stock store)
	Catalog CatalogConfig `json:"catalog" yaml:"catalog"`
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	// Addr is the HTTP address for the API service
	Addr string `json:"addr" yaml:"addr"`

	// ReadTimeout is the HTTP read timeout
	ReadTimeout time.Duration `json:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout is the HTTP write timeout
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`

	// IdleTimeout is the HTTP idle timeout
	IdleTimeout time.Duration `json:"idle_timeout" yaml:"idle_timeout"`

	// UploadURLTTL is the validity window of issued upload URLs
	UploadURLTTL time.Duration `json:"upload_url_ttl" yaml:"upload_url_ttl"`
}

// StorageConfig holds artifact storage configuration.
type StorageConfig struct {
	// Type is the storage type: local, s3
	Type string `json:"type" yaml:"type"`

	// Path is the local storage path (for local type)
	Path string `json:"path" yaml:"path"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	// Bucket is the S3 bucket name
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// UsePathStyle enables path-style addressing (required for MinIO)
	UsePathStyle bool `json:"use_path_style" yaml:"use_path_style"`
}

// QueueConfig holds work queue configuration.
type QueueConfig struct {
	// Type is the queue type: memory, sqs
	Type string `json:"type" yaml:"type"`

	// Region is the AWS region for SQS (for sqs type); queues may live in a
	// different region than the artifact bucket
	Region string `json:"region" yaml:"region"`

	// WorkQueueURL is the SQS URL of the work queue (for sqs type)
	WorkQueueURL string `json:"work_queue_url" yaml:"work_queue_url"`

	// DeadLetterURL is the SQS URL of the dead-letter queue (for sqs type)
	DeadLetterURL string `json:"dead_letter_url" yaml:"dead_letter_url"`

	// BatchSize is the number of messages received per batch
	BatchSize int `json:"batch_size" yaml:"batch_size"`

	// VisibilityTimeout is how long an unacked message stays invisible
	VisibilityTimeout time.Duration `json:"visibility_timeout" yaml:"visibility_timeout"`

	// WaitTime is the long-poll wait for batch receives
	WaitTime time.Duration `json:"wait_time" yaml:"wait_time"`

	// CompressThreshold is the body size above which snappy compression kicks in
	CompressThreshold int `json:"compress_threshold" yaml:"compress_threshold"`
}

// EventsConfig holds commit event routing configuration.
type EventsConfig struct {
	// Type is the publisher type: inproc, sns
	Type string `json:"type" yaml:"type"`

	// TopicARN is the SNS topic ARN (for sns type)
	TopicARN string `json:"topic_arn" yaml:"topic_arn"`

	// Region is the AWS region for SNS (for sns type)
	Region string `json:"region" yaml:"region"`

	// PriceThreshold partitions subscribers into > and <= classes
	PriceThreshold float64 `json:"price_threshold" yaml:"price_threshold"`
}

// PipelineConfig holds extraction and commit stage configuration.
type PipelineConfig struct {
	// PendingPrefix is the artifact namespace for uploads awaiting extraction
	PendingPrefix string `json:"pending_prefix" yaml:"pending_prefix"`

	// ProcessedPrefix is the artifact namespace for archived artifacts
	ProcessedPrefix string `json:"processed_prefix" yaml:"processed_prefix"`

	// MalformedPolicy is what the codec does with bad rows: drop, fail
	MalformedPolicy MalformedPolicy `json:"malformed_policy" yaml:"malformed_policy"`

	// Delimiter is the CSV field delimiter
	Delimiter string `json:"delimiter" yaml:"delimiter"`

	// PollInterval is how often the watcher lists the pending prefix
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval"`

	// Workers is the commit stage consumer pool size
	Workers int `json:"workers" yaml:"workers"`

	// DefaultCount is the stock count supplied when a file has no count column
	DefaultCount int64 `json:"default_count" yaml:"default_count"`
}

// CatalogConfig holds catalog store configuration.
type CatalogConfig struct {
	// DBPath is the path to the SQLite catalog database
	DBPath string `json:"db_path" yaml:"db_path"`
}

// DefaultConfig returns the default configuration for local development.
func DefaultConfig() *Config {
	return &Config{
		Mode:    ModeAll,
		DataDir: "./data/stockyard",
		HTTP: HTTPConfig{
			Addr:         ":8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
			UploadURLTTL: time.Hour,
		},
		Storage: StorageConfig{
			Type: "local",
			Path: "",
		},
		Queue: QueueConfig{
			Type:              "memory",
			BatchSize:         5,
			VisibilityTimeout: 30 * time.Second,
			WaitTime:          2 * time.Second,
			CompressThreshold: 64 * 1024,
		},
		Events: EventsConfig{
			Type:           "inproc",
			PriceThreshold: 100,
		},
		Pipeline: PipelineConfig{
			PendingPrefix:   "uploaded/",
			ProcessedPrefix: "parsed/",
			MalformedPolicy: MalformedDrop,
			Delimiter:       ",",
			PollInterval:    2 * time.Second,
			Workers:         4,
			DefaultCount:    0,
		},
		Catalog: CatalogConfig{
			DBPath: "",
		},
	}
}

// Resolve resolves relative paths and sets defaults based on DataDir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./data/stockyard"
	}
	if c.Storage.Path == "" {
		c.Storage.Path = filepath.Join(c.DataDir, "artifacts")
	}
	if c.Catalog.DBPath == "" {
		c.Catalog.DBPath = filepath.Join(c.DataDir, "catalog.db")
	}
	if !strings.HasSuffix(c.Pipeline.PendingPrefix, "/") {
		c.Pipeline.PendingPrefix += "/"
	}
	if !strings.HasSuffix(c.Pipeline.ProcessedPrefix, "/") {
		c.Pipeline.ProcessedPrefix += "/"
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeAll, ModeAPI, ModeExtract, ModeCommit:
		// Valid modes
	default:
		return fmt.Errorf("invalid mode: %s (must be all, api, extract, or commit)", c.Mode)
	}

	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	if c.Storage.Type != "local" && c.Storage.Type != "s3" {
		return fmt.Errorf("invalid storage type: %s (must be local or s3)", c.Storage.Type)
	}
	if c.Storage.Type == "s3" && c.Storage.S3.Bucket == "" {
		return fmt.Errorf("s3.bucket is required when storage type is s3")
	}

	if c.Queue.Type != "memory" && c.Queue.Type != "sqs" {
		return fmt.Errorf("invalid queue type: %s (must be memory or sqs)", c.Queue.Type)
	}
	if c.Queue.Type == "sqs" && c.Queue.WorkQueueURL == "" {
		return fmt.Errorf("queue.work_queue_url is required when queue type is sqs")
	}
	if c.Queue.BatchSize < 1 || c.Queue.BatchSize > 10 {
		return fmt.Errorf("queue.batch_size must be between 1 and 10, got %d", c.Queue.BatchSize)
	}

	if c.Events.Type != "inproc" && c.Events.Type != "sns" {
		return fmt.Errorf("invalid events type: %s (must be inproc or sns)", c.Events.Type)
	}
	if c.Events.Type == "sns" && c.Events.TopicARN == "" {
		return fmt.Errorf("events.topic_arn is required when events type is sns")
	}
	if c.Events.PriceThreshold <= 0 {
		return fmt.Errorf("events.price_threshold must be positive, got %v", c.Events.PriceThreshold)
	}

	switch c.Pipeline.MalformedPolicy {
	case MalformedDrop, MalformedFail:
	default:
		return fmt.Errorf("invalid malformed_policy: %s (must be drop or fail)", c.Pipeline.MalformedPolicy)
	}
	if c.Pipeline.PendingPrefix == c.Pipeline.ProcessedPrefix {
		return fmt.Errorf("pending_prefix and processed_prefix must differ")
	}
	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("pipeline.workers must be at least 1, got %d", c.Pipeline.Workers)
	}
	if c.Pipeline.DefaultCount < 0 {
		return fmt.Errorf("pipeline.default_count must not be negative, got %d", c.Pipeline.DefaultCount)
	}
	if len(c.Pipeline.Delimiter) != 1 {
		return fmt.Errorf("pipeline.delimiter must be a single character, got %q", c.Pipeline.Delimiter)
	}

	return nil
}

// ShouldRunAPI returns true if the HTTP API service should run.
func (c *Config) ShouldRunAPI() bool {
	return c.Mode == ModeAll || c.Mode == ModeAPI
}

// ShouldRunExtract returns true if the extraction stage should run.
func (c *Config) ShouldRunExtract() bool {
	return c.Mode == ModeAll || c.Mode == ModeExtract
}

// ShouldRunCommit returns true if the commit stage should run.
func (c *Config) ShouldRunCommit() bool {
	return c.Mode == ModeAll || c.Mode == ModeCommit
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the STOCKYARD_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("STOCKYARD_MODE"); v != "" {
		cfg.Mode = Mode(v)
	}
	if v := os.Getenv("STOCKYARD_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	// HTTP configuration
	if v := os.Getenv("STOCKYARD_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}

	// Storage configuration
	if v := os.Getenv("STOCKYARD_STORAGE_TYPE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("STOCKYARD_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("STOCKYARD_S3_BUCKET"); v != "" {
		cfg.Storage.S3.Bucket = v
	}
	if v := os.Getenv("STOCKYARD_S3_REGION"); v != "" {
		cfg.Storage.S3.Region = v
	}
	if v := os.Getenv("STOCKYARD_S3_ENDPOINT"); v != "" {
		cfg.Storage.S3.Endpoint = v
	}

	// Queue configuration
	if v := os.Getenv("STOCKYARD_QUEUE_TYPE"); v != "" {
		cfg.Queue.Type = v
	}
	if v := os.Getenv("STOCKYARD_QUEUE_REGION"); v != "" {
		cfg.Queue.Region = v
	}
	if v := os.Getenv("STOCKYARD_QUEUE_URL"); v != "" {
		cfg.Queue.WorkQueueURL = v
	}
	if v := os.Getenv("STOCKYARD_QUEUE_DLQ_URL"); v != "" {
		cfg.Queue.DeadLetterURL = v
	}
	if v := os.Getenv("STOCKYARD_QUEUE_BATCH_SIZE"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Queue.BatchSize)
	}
	if v := os.Getenv("STOCKYARD_QUEUE_VISIBILITY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Queue.VisibilityTimeout = d
		}
	}

	// Events configuration
	if v := os.Getenv("STOCKYARD_EVENTS_TYPE"); v != "" {
		cfg.Events.Type = v
	}
	if v := os.Getenv("STOCKYARD_EVENTS_TOPIC_ARN"); v != "" {
		cfg.Events.TopicARN = v
	}
	if v := os.Getenv("STOCKYARD_EVENTS_PRICE_THRESHOLD"); v != "" {
		fmt.Sscanf(v, "%f", &cfg.Events.PriceThreshold)
	}

	// Pipeline configuration
	if v := os.Getenv("STOCKYARD_PENDING_PREFIX"); v != "" {
		cfg.Pipeline.PendingPrefix = v
	}
	if v := os.Getenv("STOCKYARD_PROCESSED_PREFIX"); v != "" {
		cfg.Pipeline.ProcessedPrefix = v
	}
	if v := os.Getenv("STOCKYARD_MALFORMED_POLICY"); v != "" {
		cfg.Pipeline.MalformedPolicy = MalformedPolicy(v)
	}
	if v := os.Getenv("STOCKYARD_PIPELINE_WORKERS"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Pipeline.Workers)
	}
	if v := os.Getenv("STOCKYARD_PIPELINE_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Pipeline.PollInterval = d
		}
	}

	// Catalog configuration
	if v := os.Getenv("STOCKYARD_CATALOG_DB_PATH"); v != "" {
		cfg.Catalog.DBPath = v
	}
}

// EnsureDirectories creates all required local directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.DataDir}
	if c.Storage.Type == "local" {
		dirs = append(dirs, c.Storage.Path)
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
