package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTemp(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "console.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func TestLoadConfig_Valid(t *testing.T) {
	path := writeTemp(t, `
api:
  base_url: http://noc.example:9000
  timeout: 3s
correlation:
  threshold: 0.8
capacity:
  sort_column: avg_gbps
`)
	cfg, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.API.BaseURL != "http://noc.example:9000" {
		t.Errorf("base url = %s", cfg.API.BaseURL)
	}
	if cfg.API.Timeout != 3*time.Second {
		t.Errorf("timeout = %s", cfg.API.Timeout)
	}
	if cfg.Correlation.Threshold != 0.8 {
		t.Errorf("threshold = %v", cfg.Correlation.Threshold)
	}
	// untouched sections keep defaults
	if cfg.Topology.HubRadius != 180 || cfg.Correlation.HitRadius != 20 {
		t.Errorf("defaults lost: %+v", cfg)
	}
}

func TestLoadConfig_SchemaRejectsThreshold(t *testing.T) {
	path := writeTemp(t, `
correlation:
  threshold: 1.5
`)
	if _, err := Load(path, ""); err == nil {
		t.Fatalf("expected schema validation error")
	}
}

func TestLoadConfig_SchemaRejectsSortColumn(t *testing.T) {
	path := writeTemp(t, `
capacity:
  sort_column: nonsense
`)
	if _, err := Load(path, ""); err == nil {
		t.Fatalf("expected schema validation error")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := Load("", "")
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Correlation.Threshold != 0.7 || cfg.Capacity.SortColumn != "peak_gbps" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("NOC_API_URL", "http://env:1")
	t.Setenv("NOC_API_TIMEOUT", "250ms")
	t.Setenv("GREPTIMEDB_ENDPOINT", "greptime:4001")
	cfg, err := Load("", "")
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.API.BaseURL != "http://env:1" || cfg.API.Timeout != 250*time.Millisecond {
		t.Errorf("env not applied: %+v", cfg.API)
	}
	if cfg.Greptime.Endpoint != "greptime:4001" {
		t.Errorf("greptime endpoint = %q", cfg.Greptime.Endpoint)
	}
}

func TestValidateWithCueFiles(t *testing.T) {
	path := writeTemp(t, "logging:\n  level: debug\n")
	schema := filepath.Join(t.TempDir(), "schema.cue")
	if err := os.WriteFile(schema, embeddedSchema, 0644); err != nil {
		t.Fatalf("write schema: %v", err)
	}
	if err := ValidateWithCue(path, schema); err != nil {
		t.Fatalf("ValidateWithCue: %v", err)
	}
}
