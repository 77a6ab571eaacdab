// Package config loads smartflow configuration.
//
// Precedence (highest to lowest):
//  1. Environment variables with the SMARTFLOW_ prefix
//  2. YAML config file (~/.config/smartflow/config.yaml by default)
//  3. Defaults from Default()
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config is the root configuration.
type Config struct {
	DataDir       string              `koanf:"data_dir"`
	Log           LogConfig           `koanf:"log"`
	Orchestration OrchestrationConfig `koanf:"orchestration"`
	Knowledge     KnowledgeConfig     `koanf:"knowledge"`
	Metrics       MetricsConfig       `koanf:"metrics"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// OrchestrationConfig controls the orchestration engine.
type OrchestrationConfig struct {
	DefaultWorkflow string `koanf:"default_workflow"`
	// Deadline bounds a whole orchestration run. Zero disables it.
	Deadline Duration `koanf:"deadline"`
	// StrictGates marks every phase blocking. When false the per-phase
	// template flag decides, and phases are non-blocking unless the
	// template says otherwise.
	StrictGates bool `koanf:"strict_gates"`
	RecordRuns  bool `koanf:"record_runs"`
}

// KnowledgeConfig controls the knowledge coordinator and its adapters.
type KnowledgeConfig struct {
	AdapterTimeout Duration        `koanf:"adapter_timeout"`
	MaxResults     int             `koanf:"max_results"`
	MaxConcurrency int             `koanf:"max_concurrency"`
	Context7       Context7Config  `koanf:"context7"`
	WebSearch      WebSearchConfig `koanf:"web_search"`
	Memory         MemoryConfig    `koanf:"memory"`
}

// Context7Config configures the documentation lookup adapter.
type Context7Config struct {
	Enabled bool   `koanf:"enabled"`
	BaseURL string `koanf:"base_url"`
	APIKey  Secret `koanf:"api_key"`
}

// WebSearchConfig configures the web search adapter.
type WebSearchConfig struct {
	Enabled       bool    `koanf:"enabled"`
	BaseURL       string  `koanf:"base_url"`
	APIKey        Secret  `koanf:"api_key"`
	RatePerSecond float64 `koanf:"rate_per_second"`
	Burst         int     `koanf:"burst"`
}

// MemoryConfig configures the SQLite memory adapter.
type MemoryConfig struct {
	Enabled bool `koanf:"enabled"`
}

// MetricsConfig controls the Prometheus side listener.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	home, _ := os.UserHomeDir()
	return Config{
		DataDir: filepath.Join(home, ".smartflow"),
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Orchestration: OrchestrationConfig{
			DefaultWorkflow: "project",
			StrictGates:     false,
			RecordRuns:      true,
		},
		Knowledge: KnowledgeConfig{
			AdapterTimeout: Duration(2 * time.Second),
			MaxResults:     10,
			Context7: Context7Config{
				Enabled: true,
				BaseURL: "https://context7.com",
			},
			WebSearch: WebSearchConfig{
				// Needs an API key, so it stays off until configured.
				Enabled:       false,
				BaseURL:       "https://api.search.brave.com",
				RatePerSecond: 1,
				Burst:         2,
			},
			Memory: MemoryConfig{Enabled: true},
		},
	}
}

// Validate checks config for errors.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.Knowledge.AdapterTimeout.Duration() <= 0 {
		return fmt.Errorf("knowledge.adapter_timeout must be > 0")
	}
	if c.Knowledge.MaxConcurrency < 0 {
		return fmt.Errorf("knowledge.max_concurrency must be >= 0, got %d", c.Knowledge.MaxConcurrency)
	}
	if c.Knowledge.MaxResults <= 0 {
		return fmt.Errorf("knowledge.max_results must be > 0, got %d", c.Knowledge.MaxResults)
	}
	if c.Knowledge.Context7.Enabled && c.Knowledge.Context7.BaseURL == "" {
		return fmt.Errorf("knowledge.context7.base_url is required when context7 is enabled")
	}
	ws := c.Knowledge.WebSearch
	if ws.Enabled {
		if ws.BaseURL == "" {
			return fmt.Errorf("knowledge.web_search.base_url is required when web search is enabled")
		}
		if !ws.APIKey.IsSet() {
			return fmt.Errorf("knowledge.web_search.api_key is required when web search is enabled")
		}
		if ws.RatePerSecond <= 0 {
			return fmt.Errorf("knowledge.web_search.rate_per_second must be > 0")
		}
		if ws.Burst <= 0 {
			return fmt.Errorf("knowledge.web_search.burst must be > 0")
		}
	}
	return nil
}
