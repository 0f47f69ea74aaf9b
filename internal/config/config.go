package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Defaults applied when the config file leaves a setting at zero.
const (
	DefaultBatchSize     = 5
	DefaultFlushInterval = 30 // seconds
	DefaultMaxRetries    = 3
	DefaultRetryMaxWait  = 60 // seconds
	DefaultFetchLimit    = 100
)

// Config is the archiver configuration, loaded from config.toml in the data
// directory.
type Config struct {
	// Chat side.
	BotToken  string `toml:"bot_token"`
	ChannelID int64  `toml:"channel_id"`

	// Document side.
	DocumentID string `toml:"document_id"`
	DocsToken  string `toml:"docs_token"`

	// Delivery tuning.
	BatchSize     int `toml:"batch_size"`     // messages per flush, 1..50
	FlushInterval int `toml:"flush_interval"` // seconds between periodic flushes, >= 10
	MaxRetries    int `toml:"max_retries"`    // attempts per write sub-phase
	RetryMaxWait  int `toml:"retry_max_wait"` // backoff cap in seconds
	FetchLimit    int `toml:"fetch_limit"`    // catch-up page size

	Debug bool `toml:"debug"`
}

// Load reads, defaults, and validates the config at path.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the config to path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

func (c *Config) applyDefaults() {
	if c.BatchSize == 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.FlushInterval == 0 {
		c.FlushInterval = DefaultFlushInterval
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.RetryMaxWait == 0 {
		c.RetryMaxWait = DefaultRetryMaxWait
	}
	if c.FetchLimit == 0 {
		c.FetchLimit = DefaultFetchLimit
	}
}

// Validate rejects configs the archiver cannot run with.
func (c *Config) Validate() error {
	if c.BotToken == "" {
		return fmt.Errorf("config: bot_token is required")
	}
	if c.ChannelID == 0 {
		return fmt.Errorf("config: channel_id is required")
	}
	if c.DocumentID == "" {
		return fmt.Errorf("config: document_id is required")
	}
	if c.BatchSize < 1 || c.BatchSize > 50 {
		return fmt.Errorf("config: batch_size %d out of range 1..50", c.BatchSize)
	}
	if c.FlushInterval < 10 {
		return fmt.Errorf("config: flush_interval %d below minimum 10s", c.FlushInterval)
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("config: max_retries must be at least 1")
	}
	return nil
}
