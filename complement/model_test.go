package complement

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/rushteam/shoprec/artifact"
	"github.com/rushteam/shoprec/catalog"
	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/embedding"
	"github.com/rushteam/shoprec/taxonomy"
)

// testCategoryStore builds eight categories in two semantic clusters:
// 1..4 point along the x axis, 5..8 along the y axis. Cross cluster
// pairs are nearly orthogonal, in-cluster pairs nearly parallel.
func testCategoryStore(t *testing.T) *CategoryStore {
	t.Helper()
	cat := catalog.NewMemoryCatalog()

	names := map[int64]string{
		1: "底漆", 2: "面漆", 3: "腻子粉", 4: "墙面漆",
		5: "滚筒", 6: "毛刷", 7: "美纹纸", 8: "刮铲",
	}
	for id, name := range names {
		cat.AddCategory(&core.Category{ID: id, Name: name})
	}

	for id := int64(1); id <= 8; id++ {
		cat.AddProduct(&core.Product{ID: id, CategoryID: id, Price: 10, Available: true})
		eps := float64(id%4) * 0.05
		vec := []float64{1, eps}
		if id > 4 {
			vec = []float64{eps, 1}
		}
		cat.AddEmbedding(core.ProductEmbedding{ProductID: id, Vector: vec})
	}

	store := embedding.NewStore(cat)
	if err := store.Reload(context.Background()); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	cs, err := BuildCategoryStore(context.Background(), cat, store)
	if err != nil {
		t.Fatalf("BuildCategoryStore() error = %v", err)
	}
	return cs
}

// labeledPairs marks cross cluster pairs complementary and in-cluster
// pairs not complementary, ten of each.
func labeledPairs() []LabeledPair {
	var pairs []LabeledPair
	cross := [][2]int64{{1, 5}, {1, 6}, {2, 5}, {2, 7}, {3, 8}, {3, 5}, {4, 6}, {4, 8}, {1, 7}, {2, 8}}
	for _, p := range cross {
		pairs = append(pairs, LabeledPair{
			CategoryID1: p[0], CategoryID2: p[1],
			Complementary: true, RelationType: "tool",
		})
	}
	same := [][2]int64{{1, 2}, {1, 3}, {2, 3}, {2, 4}, {3, 4}, {5, 6}, {5, 7}, {6, 7}, {6, 8}, {7, 8}}
	for _, p := range same {
		pairs = append(pairs, LabeledPair{
			CategoryID1: p[0], CategoryID2: p[1],
			Complementary: false, RelationType: "same_group",
		})
	}
	return pairs
}

func newTestModel(t *testing.T, dir string) *Model {
	t.Helper()
	reg, err := artifact.NewRegistry(dir)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	fixed := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	m, err := NewModel(testCategoryStore(t), nil, reg, WithClock(func() time.Time { return fixed }))
	if err != nil {
		t.Fatalf("NewModel() error = %v", err)
	}
	return m
}

func TestBuildCategoryStore(t *testing.T) {
	cs := testCategoryStore(t)
	if cs.Len() != 8 {
		t.Fatalf("Len() = %d, want 8", cs.Len())
	}
	if cs.Dim() != 2 {
		t.Errorf("Dim() = %d, want 2", cs.Dim())
	}
	vec, ok := cs.Embedding(1)
	if !ok {
		t.Fatal("category 1 embedding missing")
	}
	if vec[0] != 1 {
		t.Errorf("embedding = %v", vec)
	}
	if cs.Name(5) != "滚筒" {
		t.Errorf("Name(5) = %q", cs.Name(5))
	}
	if sim := cs.Similarity(1, 2); sim < 0.9 {
		t.Errorf("in-cluster similarity = %v, want > 0.9", sim)
	}
	if sim := cs.Similarity(1, 5); sim > 0.3 {
		t.Errorf("cross cluster similarity = %v, want < 0.3", sim)
	}
	stats := cs.Stats()
	if stats.Categories != 8 || stats.Products != 8 {
		t.Errorf("Stats() = %+v", stats)
	}
}

func TestPairFeatures(t *testing.T) {
	got := PairFeatures([]float64{3, 0}, []float64{0, 4})
	if len(got) != 9 {
		t.Fatalf("len = %d, want 4*2+1", len(got))
	}
	// Both inputs are normalized before concatenation.
	if math.Abs(got[0]-1) > 1e-6 || math.Abs(got[3]-1) > 1e-6 {
		t.Errorf("normalized parts = %v", got[:4])
	}
	// Orthogonal vectors: cosine scalar at the end is 0.
	if math.Abs(got[8]) > 1e-6 {
		t.Errorf("cosine = %v, want 0", got[8])
	}
}

func TestTrainInsufficientPairs(t *testing.T) {
	m := newTestModel(t, t.TempDir())
	_, err := m.Train(context.Background(), labeledPairs()[:6])
	if !core.IsInsufficientData(err) {
		t.Fatalf("Train() error = %v, want INSUFFICIENT_DATA", err)
	}
	// Pairs without embeddings do not count towards the minimum.
	pairs := labeledPairs()[:8]
	pairs = append(pairs,
		LabeledPair{CategoryID1: 900, CategoryID2: 1, Complementary: true},
		LabeledPair{CategoryID1: 901, CategoryID2: 2, Complementary: false},
	)
	if _, err := m.Train(context.Background(), pairs); !core.IsInsufficientData(err) {
		t.Fatalf("Train() error = %v, want INSUFFICIENT_DATA", err)
	}
}

func TestTrainAndPredict(t *testing.T) {
	dir := t.TempDir()
	m := newTestModel(t, dir)

	report, err := m.Train(context.Background(), labeledPairs())
	if err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	if report.Version != "20240601_100000" {
		t.Errorf("Version = %q", report.Version)
	}
	if report.TrainSamples+report.TestSamples != 20 {
		t.Errorf("samples = %d + %d, want 20 total", report.TrainSamples, report.TestSamples)
	}
	// All 28 unordered pairs of 8 categories are precomputed.
	if report.MatrixSize != 28 {
		t.Errorf("MatrixSize = %d, want 28", report.MatrixSize)
	}
	if report.TrainAUC < 0.9 {
		t.Errorf("TrainAUC = %v, want > 0.9 on separable data", report.TrainAUC)
	}

	// Cross cluster pairs must outscore in-cluster pairs, including
	// combinations that were never labeled.
	if m.Predict(1, 5) <= m.Predict(1, 2) {
		t.Errorf("Predict(1,5) = %v should exceed Predict(1,2) = %v", m.Predict(1, 5), m.Predict(1, 2))
	}
	if m.Predict(4, 7) <= m.Predict(3, 4) {
		t.Errorf("unlabeled cross pair %v should exceed unlabeled in-cluster pair %v", m.Predict(4, 7), m.Predict(3, 4))
	}

	if got := m.RelationType(1, 5); got != "tool" {
		t.Errorf("RelationType(1,5) = %q, want labeled type", got)
	}
	if got := m.RelationType(5, 1); got != "tool" {
		t.Errorf("RelationType is not symmetric: %q", got)
	}

	info := m.Info()
	if info.Status != "ready" || info.Categories != 8 {
		t.Errorf("Info() = %+v", info)
	}
}

func TestGetComplementary(t *testing.T) {
	m := newTestModel(t, t.TempDir())
	if got := m.GetComplementary(1, 5, 0); got != nil {
		t.Fatalf("untrained model should return nil, got %v", got)
	}

	if _, err := m.Train(context.Background(), labeledPairs()); err != nil {
		t.Fatalf("Train() error = %v", err)
	}

	got := m.GetComplementary(1, 3, 0)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	for _, r := range got {
		if r.CategoryID < 5 {
			t.Errorf("top complementary for category 1 should be a tool category, got %d", r.CategoryID)
		}
		if r.Name == "" {
			t.Errorf("category %d missing name", r.CategoryID)
		}
	}

	// A high threshold filters everything out.
	if got := m.GetComplementary(1, 10, 1.1); len(got) != 0 {
		t.Errorf("minScore above 1 should return nothing, got %v", got)
	}
}

func TestReloadLatestRestoresState(t *testing.T) {
	dir := t.TempDir()
	trained := newTestModel(t, dir)
	if _, err := trained.Train(context.Background(), labeledPairs()); err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	want := trained.Predict(1, 5)

	// A fresh instance over the same registry loads the saved artifact.
	restored := newTestModel(t, dir)
	info := restored.Info()
	if info.Status != "ready" || info.Version != "20240601_100000" {
		t.Fatalf("Info() after reload = %+v", info)
	}
	if got := restored.Predict(1, 5); math.Abs(got-want) > 1e-12 {
		t.Errorf("Predict after reload = %v, want %v", got, want)
	}
}

func TestStratifiedSplit(t *testing.T) {
	y := []float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}
	train1, test1 := stratifiedSplit(y, 0.2, 42)
	train2, test2 := stratifiedSplit(y, 0.2, 42)

	if len(test1) != 4 {
		t.Errorf("test size = %d, want 2 per class", len(test1))
	}
	seen := make(map[int]bool)
	for _, i := range train1 {
		seen[i] = true
	}
	for _, i := range test1 {
		if seen[i] {
			t.Errorf("index %d in both splits", i)
		}
	}
	if len(train1) != len(train2) || len(test1) != len(test2) {
		t.Fatal("split is not deterministic")
	}
	for i := range train1 {
		if train1[i] != train2[i] {
			t.Fatal("train split differs between runs with the same seed")
		}
	}

	// Tiny classes stay entirely in the train split.
	small := []float64{1, 1, 0, 0, 0, 0, 0, 0}
	trainS, testS := stratifiedSplit(small, 0.2, 42)
	for _, i := range testS {
		if small[i] == 1 {
			t.Error("positive class with <5 samples must not enter the test split")
		}
	}
	if len(trainS)+len(testS) != len(small) {
		t.Error("split loses samples")
	}
}

func TestInferRelationType(t *testing.T) {
	scenarios := []*core.Scenario{
		{
			ID:   "painting",
			Name: "墙面涂刷",
			Groups: []core.ScenarioGroup{
				{Name: "底漆", CategoryIDs: []int64{1, 2}},
				{Name: "滚筒工具", CategoryIDs: []int64{5}},
				{Name: "辅料", CategoryIDs: []int64{7}},
			},
		},
	}
	matcher := taxonomy.NewMatcher(scenarios)
	m := &Model{categories: testCategoryStore(t), matcher: matcher}

	tests := []struct {
		name string
		a, b int64
		want string
	}{
		{"same group", 1, 2, "same_group"},
		{"tool keyword", 1, 5, "tool"},
		{"material keyword", 1, 7, "material"},
		{"outside scenarios", 3, 4, "unrelated"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.inferRelationType(tt.a, tt.b); got != tt.want {
				t.Errorf("inferRelationType(%d, %d) = %q, want %q", tt.a, tt.b, got, tt.want)
			}
		})
	}

	nilMatcher := &Model{categories: testCategoryStore(t)}
	if got := nilMatcher.inferRelationType(1, 5); got != "unrelated" {
		t.Errorf("nil matcher should infer unrelated, got %q", got)
	}
}
