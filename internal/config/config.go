// internal/config/config.go
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
)

const EnvConfigPath = "TREECOMMIT_CONFIG"

type Config struct {
	Committer struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"committer"`

	Journal struct {
		Path     string `json:"path"`     // empty disables the run journal
		MinSize  int    `json:"min_size"` // compress entry payloads at or above this size
		Disabled bool   `json:"disabled"`
	} `json:"journal"`

	Workers       int    `json:"workers"`         // bounded pool size per stage
	TreeCacheSize int    `json:"tree_cache_size"` // remote tree fetches kept in memory
	LogLevel      string `json:"log_level"`       // debug, info, warn, error
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	config := &Config{}
	config.applyDefaults()
	return config
}

func (c *Config) applyDefaults() {
	if c.Committer.Name == "" {
		c.Committer.Name = "treecommit"
	}
	if c.Committer.Email == "" {
		c.Committer.Email = "treecommit@users.noreply.github.com"
	}
	if c.Journal.MinSize <= 0 {
		c.Journal.MinSize = 1024
	}
	if c.Workers <= 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	if c.TreeCacheSize <= 0 {
		c.TreeCacheSize = 256
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	if c.Workers > 1024 {
		return fmt.Errorf("workers must be at most 1024, got %d", c.Workers)
	}
	return nil
}

// Path returns the config file named by TREECOMMIT_CONFIG, or "".
func Path() string {
	return os.Getenv(EnvConfigPath)
}

func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var config Config
	if err := json.NewDecoder(file).Decode(&config); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}
