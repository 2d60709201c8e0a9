package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/draker2nich/SwipeTime-sub001/core"
	"github.com/draker2nich/SwipeTime-sub001/pipeline"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "swipetime.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
}

func TestLoadLayers(t *testing.T) {
	path := writeConfig(t, `
log:
  level: debug
recommend:
  mode: shuffled
  limit: 20
  categories: [movies, books]
viewed:
  enabled: true
  window: 24h
`)
	t.Setenv("SWIPETIME_RECOMMEND_LIMIT", "5")
	t.Setenv("SWIPETIME_CATEGORIES", "anime, games ,")
	t.Setenv("SWIPETIME_UNRELATED", "ignored")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("log = %+v", cfg.Log)
	}
	if cfg.Recommend.Mode != "shuffled" {
		t.Errorf("mode = %q, want shuffled from file", cfg.Recommend.Mode)
	}
	if cfg.Recommend.Limit != 5 {
		t.Errorf("limit = %d, want 5 from env", cfg.Recommend.Limit)
	}
	if !reflect.DeepEqual(cfg.Recommend.Categories, []string{"anime", "games"}) {
		t.Errorf("categories = %v", cfg.Recommend.Categories)
	}
	if cfg.Recommend.ReferenceYear != 2025 {
		t.Errorf("reference year = %d, want default", cfg.Recommend.ReferenceYear)
	}
	if !cfg.Viewed.Enabled || cfg.Viewed.Window != 24*time.Hour || cfg.Viewed.MaxRecent != 200 {
		t.Errorf("viewed = %+v", cfg.Viewed)
	}
	if cfg.Log.Output == nil {
		t.Error("log output should be set")
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		env     map[string]string
	}{
		{"unknown mode", "recommend:\n  mode: random\n", nil},
		{"negative limit", "recommend:\n  limit: -1\n", nil},
		{"reference year too early", "recommend:\n  reference_year: 1900\n", nil},
		{"unknown backend", "store:\n  backend: etcd\n", nil},
		{"redis without addr", "store:\n  backend: redis\n", nil},
		{"bad log level", "log:\n  format: json\n", map[string]string{"SWIPETIME_LOG_LEVEL": "loud"}},
		{"false positive rate out of range", "viewed:\n  bloom_false_positive_rate: 1.5\n", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(writeConfig(t, tt.content))
			if !errors.Is(err, core.ErrInvalidArgument) {
				t.Errorf("Load() err = %v, want ErrInvalidArgument", err)
			}
		})
	}
}

func TestLoadRedisFromEnv(t *testing.T) {
	t.Setenv("SWIPETIME_STORE_BACKEND", "redis")
	t.Setenv("SWIPETIME_REDIS_ADDR", "localhost:6379")
	t.Setenv("SWIPETIME_REDIS_DB", "2")

	cfg, err := Load(writeConfig(t, "log:\n  format: console\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Store.Backend != "redis" || cfg.Store.Redis.Addr != "localhost:6379" || cfg.Store.Redis.DB != 2 {
		t.Errorf("store = %+v", cfg.Store)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("missing explicit config file should fail")
	}
}

func TestRegistry(t *testing.T) {
	noop := func(map[string]any) (pipeline.Node, error) { return nil, nil }
	Register("test.registry", noop)
	Register("", noop)
	Register("test.nil", nil)

	types := SupportedTypes()
	found := false
	for _, typ := range types {
		if typ == "" || typ == "test.nil" {
			t.Errorf("invalid registration accepted: %q", typ)
		}
		if typ == "test.registry" {
			found = true
		}
	}
	if !found {
		t.Fatalf("SupportedTypes() = %v", types)
	}
	if !DefaultFactory().Has("test.registry") {
		t.Error("DefaultFactory should include registered types")
	}

	cfg := &pipeline.Config{}
	cfg.Pipeline.Nodes = []pipeline.NodeConfig{{Type: "test.registry"}}
	if err := ValidatePipelineConfig(cfg, nil); err != nil {
		t.Errorf("ValidatePipelineConfig() = %v", err)
	}
	cfg.Pipeline.Nodes = append(cfg.Pipeline.Nodes, pipeline.NodeConfig{Type: "rank.deepfm"})
	if err := ValidatePipelineConfig(cfg, nil); !errors.Is(err, core.ErrInvalidArgument) {
		t.Errorf("unknown type err = %v", err)
	}
	cfg.Pipeline.Nodes = []pipeline.NodeConfig{{}}
	if err := ValidatePipelineConfig(cfg, nil); err == nil {
		t.Error("empty type should fail")
	}
	if err := ValidatePipelineConfig(nil, nil); err != nil {
		t.Error(err)
	}
}
