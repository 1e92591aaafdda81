// Package config loads the mnemo configuration file.
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

// Config is the whole configuration file.
type Config struct {
	Memory    MemoryConfig    `json:"memory" yaml:"memory"`
	Embedding EmbeddingConfig `json:"embedding" yaml:"embedding"`
	Search    SearchConfig    `json:"search" yaml:"search"`
}

// MemoryConfig controls the durable store.
type MemoryConfig struct {
	File        string `json:"file" yaml:"file"` // relative paths resolve against the home dir
	Compression bool   `json:"compression" yaml:"compression"`
	AutoSave    string `json:"autosave" yaml:"autosave"` // "" or "0" selects immediate commits
}

// EmbeddingConfig selects the embedding backend.
type EmbeddingConfig struct {
	Provider   string   `json:"provider" yaml:"provider"`
	Model      string   `json:"model" yaml:"model"`
	BaseURL    string   `json:"base_url" yaml:"base_url"`
	Command    string   `json:"command" yaml:"command"`
	Args       []string `json:"args" yaml:"args"`
	PluginPath string   `json:"plugin_path" yaml:"plugin_path"`
	Dimensions int      `json:"dimensions" yaml:"dimensions"` // stub provider only
	CacheSize  int      `json:"cache_size" yaml:"cache_size"`
}

// SearchConfig holds search defaults.
type SearchConfig struct {
	DefaultLimit int `json:"default_limit" yaml:"default_limit"`
}

// ValidationResult represents the outcome of Validate.
type ValidationResult struct {
	Valid    bool
	Warnings []string
	Errors   []string
}

// Providers lists the accepted values of embedding.provider.
var Providers = []string{"ollama", "openai", "gemini", "stub", "command", "plugin"}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Memory: MemoryConfig{
			File:        "memory.bin",
			Compression: true,
			AutoSave:    "5s",
		},
		Embedding: EmbeddingConfig{
			Provider:   "ollama",
			Model:      "nomic-embed-text",
			Dimensions: 256,
			CacheSize:  1024,
		},
		Search: SearchConfig{
			DefaultLimit: 5,
		},
	}
}

// Load reads a configuration file (JSON or YAML) on top of Default.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to unmarshal JSON config: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to unmarshal YAML config: %w", err)
		}
	default:
		return cfg, fmt.Errorf("unsupported config format: %s (use .json or .yaml)", ext)
	}

	return cfg, nil
}

// AutoSaveInterval parses Memory.AutoSave. Zero means immediate commits.
func (c Config) AutoSaveInterval() (time.Duration, error) {
	s := strings.TrimSpace(c.Memory.AutoSave)
	if s == "" || s == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid memory.autosave %q: %w", c.Memory.AutoSave, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid memory.autosave %q: must not be negative", c.Memory.AutoSave)
	}
	return d, nil
}

// MemoryPath resolves Memory.File against home.
func (c Config) MemoryPath(home string) string {
	if filepath.IsAbs(c.Memory.File) {
		return c.Memory.File
	}
	return filepath.Join(home, c.Memory.File)
}

// Validate checks the configuration for errors and questionable settings.
func (c Config) Validate() ValidationResult {
	res := ValidationResult{
		Valid:    true,
		Warnings: []string{},
		Errors:   []string{},
	}
	fail := func(msg string) {
		res.Valid = false
		res.Errors = append(res.Errors, msg)
	}

	if c.Memory.File == "" {
		fail("memory.file is required")
	}
	if d, err := c.AutoSaveInterval(); err != nil {
		fail(err.Error())
	} else if d > time.Hour {
		res.Warnings = append(res.Warnings, "memory.autosave above one hour risks losing a lot of data on a crash")
	}

	e := c.Embedding
	switch e.Provider {
	case "":
		fail("embedding.provider is required")
	case "command":
		if e.Command == "" {
			fail("embedding.command is required for the command provider")
		}
	case "plugin":
		if e.PluginPath == "" {
			fail("embedding.plugin_path is required for the plugin provider")
		}
	case "stub":
		if e.Dimensions <= 0 {
			fail("embedding.dimensions must be positive for the stub provider")
		}
		res.Warnings = append(res.Warnings, "the stub provider produces lexical, not semantic, embeddings")
	case "ollama", "openai", "gemini":
	default:
		fail(fmt.Sprintf("unknown embedding.provider %q (want one of %s)", e.Provider, strings.Join(Providers, ", ")))
	}
	if e.CacheSize < 0 {
		fail("embedding.cache_size must not be negative")
	}

	if c.Search.DefaultLimit <= 0 {
		fail("search.default_limit must be positive")
	}

	return res
}
