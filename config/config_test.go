package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rushteam/shoprec/catalog"
	"github.com/rushteam/shoprec/core"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte("catalog:\n  driver: memory\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Cache.Driver != CacheNone {
		t.Errorf("Cache.Driver = %q, want none", cfg.Cache.Driver)
	}
	if cfg.Cache.TTLSeconds != 300 {
		t.Errorf("Cache.TTLSeconds = %d, want 300", cfg.Cache.TTLSeconds)
	}
	if cfg.Artifacts.Dir != "data/artifacts" {
		t.Errorf("Artifacts.Dir = %q", cfg.Artifacts.Dir)
	}
	if cfg.Feast.Port != 6565 {
		t.Errorf("Feast.Port = %d, want 6565", cfg.Feast.Port)
	}
}

func TestParseValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown catalog driver", "catalog:\n  driver: dynamo\n"},
		{"sqlite without path", "catalog:\n  driver: sqlite\n"},
		{"redis without addr", "cache:\n  driver: redis\n"},
		{"exposure without cache", "exposure:\n  enabled: true\n"},
		{"feast without host", "feast:\n  enabled: true\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.yaml)); !core.IsInvalidInput(err) {
				t.Errorf("Parse() error = %v, want INVALID_INPUT", err)
			}
		})
	}
}

func TestScoringOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "service.yaml")
	if err := os.WriteFile(path, []byte(sprintfSample(dir)), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	sc := cfg.ScoringConfig()
	if sc.CrossRootPenalty != 0.25 {
		t.Errorf("CrossRootPenalty = %v, want 0.25", sc.CrossRootPenalty)
	}
	if sc.SemanticTopK != 100 {
		t.Errorf("SemanticTopK = %d, want 100", sc.SemanticTopK)
	}
	if sc.RankTimeout != 500*time.Millisecond {
		t.Errorf("RankTimeout = %v, want 500ms", sc.RankTimeout)
	}
	// 未覆盖的字段保持默认
	if sc.FormulaBase != 0.5 {
		t.Errorf("FormulaBase = %v, want default 0.5", sc.FormulaBase)
	}
}

func TestBuildWithMemoryBackends(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Parse([]byte(sprintfSample(dir)))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	cat := catalog.NewMemoryCatalog()
	parent := int64(1000)
	cat.AddCategory(&core.Category{ID: 1000, Name: "装修"})
	cat.AddCategory(&core.Category{ID: 10, Name: "底漆", ParentID: &parent})
	cat.AddCategory(&core.Category{ID: 20, Name: "滚筒", ParentID: &parent})
	cat.AddProduct(&core.Product{ID: 1, Name: "底漆A", CategoryID: 10, Price: 100, Available: true})
	cat.AddProduct(&core.Product{ID: 2, Name: "滚筒A", CategoryID: 20, Price: 30, Available: true})
	cat.AddEmbedding(core.ProductEmbedding{ProductID: 1, Vector: []float64{1, 0}})
	cat.AddEmbedding(core.ProductEmbedding{ProductID: 2, Vector: []float64{0.9, 0.1}})

	svc, cleanup, err := Build(context.Background(), cfg, WithCatalog(cat))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer cleanup()

	got, err := svc.GetRecommendations(context.Background(), 1, 5, false)
	if err != nil {
		t.Fatalf("GetRecommendations() error = %v", err)
	}
	if got.DetectedScenario == nil || got.DetectedScenario.ID != "wall_painting" {
		t.Errorf("DetectedScenario = %+v, want wall_painting", got.DetectedScenario)
	}

	sims, err := svc.GetSimilarCategories(10, 3, 0)
	if err != nil {
		t.Fatalf("GetSimilarCategories() error = %v", err)
	}
	if len(sims) != 1 || sims[0].CategoryID != 20 {
		t.Errorf("similar categories = %+v, want category 20", sims)
	}
}

func sprintfSample(dir string) string {
	return "catalog:\n  driver: memory\nartifacts:\n  dir: " + dir + `
scenarios:
  - id: wall_painting
    name: 墙面刷漆
    groups:
      - name: 底漆
        category_ids: [10]
        is_required: true
        sort_order: 1
      - name: 滚筒
        category_ids: [20]
        is_required: true
        sort_order: 2
filter_rules:
  - 'candidate.price <= 0.0'
scoring:
  cross_root_penalty: 0.25
  semantic_top_k: 100
  rank_timeout_ms: 500
`
}
