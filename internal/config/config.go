// YAML config loader with CUE validation integration
package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// APIConfig points the console at the analytics backend.
type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// CorrelationConfig tunes the correlation network view.
type CorrelationConfig struct {
	Threshold float64 `yaml:"threshold"`
	Width     float64 `yaml:"width"`
	Height    float64 `yaml:"height"`
	HitRadius float64 `yaml:"hit_radius"`
}

// TopologyConfig sets the hub-and-spoke radii.
type TopologyConfig struct {
	HubRadius  float64 `yaml:"hub_radius"`
	CellRadius float64 `yaml:"cell_radius"`
}

// CapacityConfig sets the capacity table defaults.
type CapacityConfig struct {
	SortColumn string `yaml:"sort_column"`
	ExportPath string `yaml:"export_path"`
}

// ChatConfig selects the assistant model.
type ChatConfig struct {
	Model string `yaml:"model"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// AdminConfig contains the headless HTTP surface settings
type AdminConfig struct {
	Addr string `yaml:"addr"`
}

// GreptimeConfig enables the traffic history sink when Endpoint is set.
type GreptimeConfig struct {
	Endpoint string `yaml:"endpoint"`
	Database string `yaml:"database"`
	Table    string `yaml:"table"`
}

// RecorderConfig enables snapshot recording when Path is set.
type RecorderConfig struct {
	Path string `yaml:"path"`
}

// Config is the root configuration of the console.
type Config struct {
	API         APIConfig         `yaml:"api"`
	Correlation CorrelationConfig `yaml:"correlation"`
	Topology    TopologyConfig    `yaml:"topology"`
	Capacity    CapacityConfig    `yaml:"capacity"`
	Chat        ChatConfig        `yaml:"chat"`
	Logging     LoggingConfig     `yaml:"logging"`
	Admin       AdminConfig       `yaml:"admin"`
	Greptime    GreptimeConfig    `yaml:"greptime"`
	Recorder    RecorderConfig    `yaml:"recorder"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		API:         APIConfig{BaseURL: "http://localhost:8000", Timeout: 10 * time.Second},
		Correlation: CorrelationConfig{Threshold: 0.7, Width: 800, Height: 600, HitRadius: 20},
		Topology:    TopologyConfig{HubRadius: 180, CellRadius: 50},
		Capacity:    CapacityConfig{SortColumn: "peak_gbps", ExportPath: "capacity_summary.csv"},
		Chat:        ChatConfig{Model: "llama3"},
		Logging:     LoggingConfig{Level: "info"},
		Admin:       AdminConfig{Addr: ":8080"},
		Greptime:    GreptimeConfig{Database: "public", Table: "fronthaul_link_traffic"},
	}
}

// Load reads YAML config on top of the defaults and validates it against a
// CUE schema. An empty cueSchemaPath selects the embedded schema. An empty
// configPath returns the defaults. Environment overrides are applied last.
func Load(configPath, cueSchemaPath string) (*Config, error) {
	cfg := Default()
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, err
		}
		schema := embeddedSchema
		if cueSchemaPath != "" {
			if schema, err = os.ReadFile(cueSchemaPath); err != nil {
				return nil, fmt.Errorf("cannot read CUE schema: %w", err)
			}
		}
		// Validate with CUE first
		if err := validateBytes(data, schema); err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
		log.Printf("[Config] loaded %s", configPath)
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("NOC_API_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("NOC_API_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.API.Timeout = d
		} else {
			log.Printf("[Config] ignoring invalid NOC_API_TIMEOUT %q: %v", v, err)
		}
	}
	if v := os.Getenv("NOC_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("NOC_CHAT_MODEL"); v != "" {
		c.Chat.Model = v
	}
	if v := os.Getenv("GREPTIMEDB_ENDPOINT"); v != "" {
		c.Greptime.Endpoint = v
	}
	if v := os.Getenv("GREPTIMEDB_TABLE"); v != "" {
		c.Greptime.Table = v
	}
}
