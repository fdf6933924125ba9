package recall

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/rushteam/shoprec/catalog"
	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/embedding"
	"github.com/rushteam/shoprec/taxonomy"
	"github.com/rushteam/shoprec/vector"
)

func int64Ptr(v int64) *int64 { return &v }

// semanticEnv builds a catalog with two category roots:
//
//	root 100 -> {10, 11}, root 200 -> {20}
//
// Products: 1 (cat 10, anchor), 2 (cat 10, substitute), 3 (cat 11),
// 4 (cat 20, cross root), 5 (cat 11, unavailable).
// Embeddings are chosen so similarity to the anchor descends 3 > 4 > 2.
func semanticEnv(t *testing.T) (*catalog.MemoryCatalog, *SemanticSource) {
	t.Helper()
	cat := catalog.NewMemoryCatalog()

	cat.AddCategory(&core.Category{ID: 100, Name: "root-a"})
	cat.AddCategory(&core.Category{ID: 200, Name: "root-b"})
	cat.AddCategory(&core.Category{ID: 10, ParentID: int64Ptr(100)})
	cat.AddCategory(&core.Category{ID: 11, ParentID: int64Ptr(100)})
	cat.AddCategory(&core.Category{ID: 20, ParentID: int64Ptr(200)})

	products := []*core.Product{
		{ID: 1, Name: "anchor", CategoryID: 10, Price: 100, Available: true},
		{ID: 2, Name: "substitute", CategoryID: 10, Price: 100, Available: true},
		{ID: 3, Name: "same root", CategoryID: 11, Price: 100, Available: true},
		{ID: 4, Name: "cross root", CategoryID: 20, Price: 100, Available: true},
		{ID: 5, Name: "hidden", CategoryID: 11, Price: 100, Available: false},
	}
	for _, p := range products {
		cat.AddProduct(p)
	}

	vecs := map[int64][]float64{
		1: {1, 0, 0},
		2: {0.99, 0.1, 0},
		3: {0.95, 0.3, 0},
		4: {0.9, 0.4, 0},
		5: {0.8, 0.6, 0},
	}
	for id, v := range vecs {
		cat.AddEmbedding(core.ProductEmbedding{ProductID: id, Vector: v})
	}

	store := embedding.NewStore(cat)
	if err := store.Reload(context.Background()); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	idx := vector.NewIndex()
	if err := idx.BuildFromStore(store); err != nil {
		t.Fatalf("BuildFromStore() error = %v", err)
	}

	cats, err := cat.ListCategories(context.Background())
	if err != nil {
		t.Fatalf("ListCategories() error = %v", err)
	}
	forest := taxonomy.NewForest(cats)

	src := NewSemanticSource(idx, cat, forest, core.DefaultScoringConfig())
	return cat, src
}

func anchorContext(t *testing.T, cat *catalog.MemoryCatalog, anchorID int64) *core.RankContext {
	t.Helper()
	anchor, err := cat.GetProduct(context.Background(), anchorID)
	if err != nil {
		t.Fatalf("GetProduct(%d) error = %v", anchorID, err)
	}
	return &core.RankContext{Anchor: anchor}
}

func TestSemanticRecallExcludesAnchorAndSameCategory(t *testing.T) {
	cat, src := semanticEnv(t)

	got, err := src.Recall(context.Background(), anchorContext(t, cat, 1))
	if err != nil {
		t.Fatalf("Recall() error = %v", err)
	}

	ids := make(map[int64]bool)
	for _, c := range got {
		ids[c.ID] = true
	}
	if ids[1] {
		t.Error("anchor product should not be recalled")
	}
	if ids[2] {
		t.Error("same category product should be excluded")
	}
	if ids[5] {
		t.Error("unavailable product should be excluded")
	}
	if !ids[3] || !ids[4] {
		t.Errorf("expected candidates 3 and 4, got %v", ids)
	}
}

func TestSemanticRecallCrossRootPenalty(t *testing.T) {
	cat, src := semanticEnv(t)

	got, err := src.Recall(context.Background(), anchorContext(t, cat, 1))
	if err != nil {
		t.Fatalf("Recall() error = %v", err)
	}

	byID := make(map[int64]*core.Candidate)
	for _, c := range got {
		byID[c.ID] = c
	}
	c3, c4 := byID[3], byID[4]
	if c3 == nil || c4 == nil {
		t.Fatalf("expected candidates 3 and 4, got %v", got)
	}

	// Raw similarity favors 4 less than 3 already, but the penalty must
	// additionally subtract from the cross root candidate.
	wantPenalized := c4.Features["semantic_similarity"] - 0.15
	if math.Abs(c4.Score-wantPenalized) > 1e-9 {
		t.Errorf("cross root score = %v, want %v", c4.Score, wantPenalized)
	}
	if math.Abs(c3.Score-c3.Features["semantic_similarity"]) > 1e-9 {
		t.Errorf("same root score = %v, want raw similarity %v", c3.Score, c3.Features["semantic_similarity"])
	}
	if _, ok := c4.Reasons()["category_cross"]; !ok {
		t.Error("cross root candidate should carry a category_cross reason")
	}
}

func TestSemanticRecallCopurchaseBoostCapped(t *testing.T) {
	cat, src := semanticEnv(t)

	// Five shared orders push the raw boost to 0.75, the cap keeps it at 0.3.
	for order := int64(1); order <= 5; order++ {
		cat.AddOrder(order, []int64{1, 3})
	}
	if err := cat.RebuildCopurchase(context.Background()); err != nil {
		t.Fatalf("RebuildCopurchase() error = %v", err)
	}

	got, err := src.Recall(context.Background(), anchorContext(t, cat, 1))
	if err != nil {
		t.Fatalf("Recall() error = %v", err)
	}

	var c3 *core.Candidate
	for _, c := range got {
		if c.ID == 3 {
			c3 = c
		}
	}
	if c3 == nil {
		t.Fatal("candidate 3 missing")
	}
	want := c3.Features["semantic_similarity"] + 0.3
	if math.Abs(c3.Score-want) > 1e-9 {
		t.Errorf("boosted score = %v, want %v", c3.Score, want)
	}
	if c3.Features["copurchase_count"] != 5 {
		t.Errorf("copurchase_count = %v, want 5", c3.Features["copurchase_count"])
	}
	if got[0].ID != 3 {
		t.Errorf("boosted candidate should rank first, got %d", got[0].ID)
	}
	if c3.GroupName != "推荐搭配" {
		t.Errorf("GroupName = %q", c3.GroupName)
	}
}

func TestSemanticRecallNoAnchor(t *testing.T) {
	_, src := semanticEnv(t)
	got, err := src.Recall(context.Background(), &core.RankContext{})
	if err != nil {
		t.Fatalf("Recall() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty recall without anchor, got %d", len(got))
	}
}

func scenarioEnv(t *testing.T) (*catalog.MemoryCatalog, *core.Scenario) {
	t.Helper()
	cat := catalog.NewMemoryCatalog()
	// cat 10: primers, cat 20: rollers, cat 30: tape
	for _, p := range []*core.Product{
		{ID: 1, Name: "primer a", CategoryID: 10, Price: 50, Available: true},
		{ID: 2, Name: "primer b", CategoryID: 10, Price: 60, Available: true},
		{ID: 3, Name: "roller", CategoryID: 20, Price: 20, Available: true},
		{ID: 4, Name: "tape", CategoryID: 30, Price: 5, Available: true},
		{ID: 5, Name: "tape sold out", CategoryID: 30, Price: 5, Available: false},
	} {
		cat.AddProduct(p)
	}
	scenario := &core.Scenario{
		ID:   "painting",
		Name: "墙面涂刷",
		Groups: []core.ScenarioGroup{
			{Name: "底漆", CategoryIDs: []int64{10}, IsRequired: true, SortOrder: 1},
			{Name: "滚筒", CategoryIDs: []int64{20}, IsRequired: true, SortOrder: 2},
			{Name: "美纹纸", CategoryIDs: []int64{30}, SortOrder: 3},
		},
	}
	return cat, scenario
}

func TestScenarioRecallSkipsAnchorGroup(t *testing.T) {
	cat, scenario := scenarioEnv(t)
	src := NewScenarioSource(cat, core.DefaultScoringConfig())

	anchor, err := cat.GetProduct(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetProduct() error = %v", err)
	}
	rctx := &core.RankContext{Anchor: anchor, Scenario: scenario}

	got, err := src.Recall(context.Background(), rctx)
	if err != nil {
		t.Fatalf("Recall() error = %v", err)
	}

	groups := make(map[int64]string)
	for _, c := range got {
		groups[c.ID] = c.GroupName
	}
	if _, ok := groups[2]; ok {
		t.Error("anchor group (primers) should be skipped")
	}
	if _, ok := groups[5]; ok {
		t.Error("unavailable product should be excluded")
	}
	if groups[3] != "滚筒" || groups[4] != "美纹纸" {
		t.Errorf("group provenance = %v", groups)
	}
}

func TestScenarioRecallExcludesCart(t *testing.T) {
	cat, scenario := scenarioEnv(t)
	src := NewScenarioSource(cat, core.DefaultScoringConfig())

	roller, err := cat.GetProduct(context.Background(), 3)
	if err != nil {
		t.Fatalf("GetProduct() error = %v", err)
	}
	rctx := &core.RankContext{
		Scenario:     scenario,
		CartProducts: map[int64]*core.Product{3: roller},
	}

	got, err := src.Recall(context.Background(), rctx)
	if err != nil {
		t.Fatalf("Recall() error = %v", err)
	}
	for _, c := range got {
		if c.ID == 3 {
			t.Error("cart product should be excluded from recall")
		}
	}
	// Without an anchor no group is skipped; primers must be present.
	found := false
	for _, c := range got {
		if c.GroupName == "底漆" {
			found = true
		}
	}
	if !found {
		t.Error("primer group should be recalled when no anchor belongs to it")
	}
}

func TestScenarioRecallNoScenario(t *testing.T) {
	cat, _ := scenarioEnv(t)
	src := NewScenarioSource(cat, core.DefaultScoringConfig())
	got, err := src.Recall(context.Background(), &core.RankContext{})
	if err != nil {
		t.Fatalf("Recall() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty recall without scenario, got %d", len(got))
	}
}

type stubSource struct {
	name string
	ids  []int64
	err  error
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Recall(_ context.Context, _ *core.RankContext) ([]*core.Candidate, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]*core.Candidate, 0, len(s.ids))
	for _, id := range s.ids {
		out = append(out, core.NewCandidate(&core.Product{ID: id, Available: true}))
	}
	return out, nil
}

func TestFanoutMergeFirstDedups(t *testing.T) {
	fanout := &Fanout{
		Sources: []Source{
			&stubSource{name: "a", ids: []int64{1, 2}},
			&stubSource{name: "b", ids: []int64{2, 3}},
		},
		Dedup:         true,
		MaxConcurrent: 1,
	}

	got, err := fanout.Process(context.Background(), &core.RankContext{}, nil)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	seen := make(map[int64]int)
	for _, c := range got {
		seen[c.ID]++
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("candidate %d appears %d times", id, n)
		}
	}
}

func TestFanoutAbsorbsSourceErrors(t *testing.T) {
	fanout := &Fanout{
		Sources: []Source{
			&stubSource{name: "broken", err: errors.New("backend down")},
			&stubSource{name: "ok", ids: []int64{7}},
		},
		Dedup: true,
	}

	got, err := fanout.Process(context.Background(), &core.RankContext{}, nil)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != 7 {
		t.Fatalf("expected the healthy source result, got %v", got)
	}
	if lbl, ok := got[0].Labels["recall_source"]; !ok || lbl.Value != "ok" {
		t.Errorf("recall_source label = %v", got[0].Labels["recall_source"])
	}
}

func TestFanoutEmptySources(t *testing.T) {
	fanout := &Fanout{}
	got, err := fanout.Process(context.Background(), &core.RankContext{}, nil)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no candidates, got %d", len(got))
	}
}
