// Package config loads convoprobe settings.
//
// Precedence, lowest to highest: built-in defaults, the YAML file,
// environment variables, command-line flags (applied by the CLI).
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/convoprobe/internal/assistant"
)

// DefaultFile is the config file looked up when none is given.
const DefaultFile = "convoprobe.yaml"

// Environment overrides.
const (
	EnvAssistantURL = "CONVOPROBE_ASSISTANT_URL"
	EnvConcurrency  = "CONVOPROBE_CONCURRENCY"
	EnvDatabase     = "CONVOPROBE_DATABASE"
)

// Transport names.
const (
	TransportHTTP = "http"
	TransportMCP  = "mcp"
)

// Config is the full settings tree.
type Config struct {
	Assistant    Assistant `yaml:"assistant"`
	Catalog      string    `yaml:"catalog"`
	Database     string    `yaml:"database"`
	Concurrency  int       `yaml:"concurrency"`
	HistoryLimit int       `yaml:"history_limit"`
	MultiTurn    MultiTurn `yaml:"multi_turn"`
}

// Assistant selects and configures the assistant transport.
type Assistant struct {
	Transport     string        `yaml:"transport"`
	BaseURL       string        `yaml:"base_url"`
	ClassifyPath  string        `yaml:"classify_path"`
	ConversePath  string        `yaml:"converse_path"`
	MCPEndpoint   string        `yaml:"mcp_endpoint"`
	SingleTimeout time.Duration `yaml:"single_timeout"`
	MultiTimeout  time.Duration `yaml:"multi_timeout"`
}

// MultiTurn configures which scenarios run as conversations.
type MultiTurn struct {
	Categories []string `yaml:"categories"`
	Suite      string   `yaml:"suite"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Assistant: Assistant{
			Transport:     TransportHTTP,
			BaseURL:       "http://localhost:5000",
			ClassifyPath:  assistant.DefaultClassifyPath,
			ConversePath:  assistant.DefaultConversePath,
			MCPEndpoint:   "http://localhost:3001/mcp",
			SingleTimeout: 15 * time.Second,
			MultiTimeout:  30 * time.Second,
		},
		Catalog:      "scenarios.yaml",
		Concurrency:  4,
		HistoryLimit: 20,
		MultiTurn: MultiTurn{
			Categories: []string{"workflow", "multi_turn", "conversation"},
			Suite:      "multi-turn",
		},
	}
}

// Load reads path over the defaults and applies environment overrides.
// A missing file is not an error when path is DefaultFile.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := decode(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("%s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && path == DefaultFile:
	default:
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvAssistantURL); ok && v != "" {
		c.Assistant.BaseURL = v
	}
	if v, ok := lookup(EnvConcurrency); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvConcurrency, err)
		}
		c.Concurrency = n
	}
	if v, ok := lookup(EnvDatabase); ok {
		c.Database = v
	}
	return nil
}

// Validate checks values the harness cannot recover from.
func (c Config) Validate() error {
	switch c.Assistant.Transport {
	case TransportHTTP:
		if c.Assistant.BaseURL == "" {
			return errors.New("assistant.base_url is required for the http transport")
		}
	case TransportMCP:
		if c.Assistant.MCPEndpoint == "" {
			return errors.New("assistant.mcp_endpoint is required for the mcp transport")
		}
	default:
		return fmt.Errorf("assistant.transport: unknown transport %q", c.Assistant.Transport)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	if c.HistoryLimit < 1 {
		return fmt.Errorf("history_limit must be at least 1, got %d", c.HistoryLimit)
	}
	return nil
}
