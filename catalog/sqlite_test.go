package catalog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rushteam/shoprec/core"
)

func newTestCatalog(t *testing.T) *SQLiteCatalog {
	t.Helper()
	c, err := NewSQLiteCatalog(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("NewSQLiteCatalog: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func seedProducts(t *testing.T, c *SQLiteCatalog) {
	t.Helper()
	ctx := context.Background()

	parent := int64(1)
	categories := []*core.Category{
		{ID: 1, Name: "paint"},
		{ID: 11, ParentID: &parent, Name: "primers"},
		{ID: 12, ParentID: &parent, Name: "rollers"},
	}
	for _, cat := range categories {
		if err := c.UpsertCategory(ctx, cat); err != nil {
			t.Fatalf("UpsertCategory: %v", err)
		}
	}

	discount := 800.0
	products := []*core.Product{
		{ID: 100, Name: "Primer A", CategoryID: 11, Vendor: "acme", Price: 1000, DiscountPrice: &discount, Picture: "a.jpg", Available: true},
		{ID: 101, Name: "Primer B", CategoryID: 11, Vendor: "other", Price: 1200, Available: true},
		{ID: 102, Name: "Roller", CategoryID: 12, Vendor: "acme", Price: 300, Available: true},
		{ID: 103, Name: "Hidden", CategoryID: 11, Price: 500, Available: false},
	}
	for _, p := range products {
		if err := c.UpsertProduct(ctx, p); err != nil {
			t.Fatalf("UpsertProduct: %v", err)
		}
	}
}

func TestSQLiteCatalog_GetProduct(t *testing.T) {
	c := newTestCatalog(t)
	seedProducts(t, c)
	ctx := context.Background()

	p, err := c.GetProduct(ctx, 100)
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if p.Name != "Primer A" || p.CategoryName != "primers" {
		t.Errorf("unexpected product: %+v", p)
	}
	if p.DiscountPrice == nil || *p.DiscountPrice != 800 {
		t.Errorf("discount price = %v, want 800", p.DiscountPrice)
	}

	_, err = c.GetProduct(ctx, 999)
	if !core.IsNotFound(err) {
		t.Errorf("missing product should return NOT_FOUND, got %v", err)
	}
}

func TestSQLiteCatalog_GetProductsByCategories(t *testing.T) {
	c := newTestCatalog(t)
	seedProducts(t, c)
	ctx := context.Background()

	got, err := c.GetProductsByCategories(ctx, []int64{11}, []int64{101}, 10)
	if err != nil {
		t.Fatalf("GetProductsByCategories: %v", err)
	}
	// 103 不在售，101 被排除，只剩 100
	if len(got) != 1 || got[0].ID != 100 {
		t.Errorf("got %d products, want [100]", len(got))
	}
}

func TestSQLiteCatalog_RecordFeedback_PairCounters(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	events := []*core.FeedbackEvent{
		{AnchorID: 1, CandidateID: 2, Polarity: core.PolarityPositive},
		{AnchorID: 1, CandidateID: 2, Polarity: core.PolarityPositive},
		{AnchorID: 1, CandidateID: 2, Polarity: core.PolarityNegative},
	}
	for _, e := range events {
		if err := c.RecordFeedback(ctx, e); err != nil {
			t.Fatalf("RecordFeedback: %v", err)
		}
	}

	stats, err := c.GetPairFeedbackStats(ctx, 1, []int64{2})
	if err != nil {
		t.Fatalf("GetPairFeedbackStats: %v", err)
	}
	got := stats[2]
	if got.Positive != 2 || got.Negative != 1 {
		t.Errorf("stats = %+v, want {2 1}", got)
	}
}

func TestSQLiteCatalog_RecordFeedback_Scenario(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	event := &core.FeedbackEvent{
		ScenarioID:  "walls",
		GroupName:   "primer",
		CandidateID: 5,
		Polarity:    core.PolarityPositive,
		UserID:      42,
	}
	if err := c.RecordFeedback(ctx, event); err != nil {
		t.Fatalf("RecordFeedback: %v", err)
	}

	stats, err := c.GetScenarioFeedbackStats(ctx, "walls", "primer", []int64{5})
	if err != nil {
		t.Fatalf("GetScenarioFeedbackStats: %v", err)
	}
	if stats[5].Positive != 1 || stats[5].Negative != 0 {
		t.Errorf("stats = %+v, want {1 0}", stats[5])
	}

	// 其他分组的计数不受影响
	other, err := c.GetScenarioFeedbackStats(ctx, "walls", "putty", []int64{5})
	if err != nil {
		t.Fatalf("GetScenarioFeedbackStats: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("other group stats = %v, want empty", other)
	}
}

func TestSQLiteCatalog_RecordFeedback_InvalidPolarity(t *testing.T) {
	c := newTestCatalog(t)

	err := c.RecordFeedback(context.Background(), &core.FeedbackEvent{
		AnchorID: 1, CandidateID: 2, Polarity: "meh",
	})
	if !core.IsInvalidInput(err) {
		t.Errorf("invalid polarity should return INVALID_INPUT, got %v", err)
	}
}

func TestSQLiteCatalog_RecordInteraction(t *testing.T) {
	c := newTestCatalog(t)
	seedProducts(t, c)
	ctx := context.Background()

	if err := c.RecordInteraction(ctx, &core.InteractionEvent{ProductID: 100, Kind: core.InteractionImpression}); err != nil {
		t.Fatalf("RecordInteraction: %v", err)
	}
	if err := c.RecordInteraction(ctx, &core.InteractionEvent{ProductID: 100, Kind: core.InteractionCartAdd}); err != nil {
		t.Fatalf("RecordInteraction: %v", err)
	}

	p, err := c.GetProduct(ctx, 100)
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if p.Popularity.ViewCount != 1 || p.Popularity.CartAddCount != 1 {
		t.Errorf("popularity = %+v", p.Popularity)
	}
}

func TestSQLiteCatalog_RebuildCopurchase(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	// 订单 1：{10, 20, 30}；订单 2：{10, 20}；订单 3：单品不计
	orders := map[int64][]int64{
		1: {10, 20, 30},
		2: {20, 10},
		3: {10},
	}
	for orderID, productIDs := range orders {
		if err := c.AddOrder(ctx, orderID, productIDs); err != nil {
			t.Fatalf("AddOrder: %v", err)
		}
	}

	if err := c.RebuildCopurchase(ctx); err != nil {
		t.Fatalf("RebuildCopurchase: %v", err)
	}

	stats, err := c.GetCopurchaseStats(ctx, 10, []int64{20, 30, 99})
	if err != nil {
		t.Fatalf("GetCopurchaseStats: %v", err)
	}
	if stats[20] != 2 {
		t.Errorf("copurchase(10,20) = %d, want 2", stats[20])
	}
	if stats[30] != 1 {
		t.Errorf("copurchase(10,30) = %d, want 1", stats[30])
	}
	if _, ok := stats[99]; ok {
		t.Error("unrelated product should have no copurchase entry")
	}

	// 反方向查询同样命中（无向对）
	reverse, err := c.GetCopurchaseStats(ctx, 20, []int64{10})
	if err != nil {
		t.Fatalf("GetCopurchaseStats: %v", err)
	}
	if reverse[10] != 2 {
		t.Errorf("copurchase(20,10) = %d, want 2", reverse[10])
	}

	pairs, err := c.ListCopurchasePairs(ctx, 2, 10)
	if err != nil {
		t.Fatalf("ListCopurchasePairs: %v", err)
	}
	if len(pairs) != 1 || pairs[0].Count != 2 {
		t.Errorf("pairs = %+v, want single pair with count 2", pairs)
	}
}

func TestSQLiteCatalog_Embeddings(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	rows := []core.ProductEmbedding{
		{ProductID: 1, Vector: []float64{0.1, 0.2}, SourceText: "Primer A"},
		{ProductID: 2, Vector: []float64{0.3, 0.4}, SourceText: "Roller"},
	}
	for i := range rows {
		if err := c.UpsertEmbedding(ctx, &rows[i]); err != nil {
			t.Fatalf("UpsertEmbedding: %v", err)
		}
	}

	loaded, err := c.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("LoadAll returned %d rows, want 2", len(loaded))
	}
	byID := map[int64]core.ProductEmbedding{}
	for _, pe := range loaded {
		byID[pe.ProductID] = pe
	}
	if byID[1].Vector[1] != 0.2 || byID[2].SourceText != "Roller" {
		t.Errorf("unexpected embeddings: %+v", byID)
	}
}

func TestSQLiteCatalog_ListPairStats(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	// (1,2)：5 正；(1,3)：1 正 2 负；(2,3)：1 负
	feed := func(anchor, cand int64, polarity core.Polarity, times int) {
		for i := 0; i < times; i++ {
			if err := c.RecordFeedback(ctx, &core.FeedbackEvent{AnchorID: anchor, CandidateID: cand, Polarity: polarity}); err != nil {
				t.Fatalf("RecordFeedback: %v", err)
			}
		}
	}
	feed(1, 2, core.PolarityPositive, 5)
	feed(1, 3, core.PolarityPositive, 1)
	feed(1, 3, core.PolarityNegative, 2)
	feed(2, 3, core.PolarityNegative, 1)

	positives, err := c.ListPairStats(ctx, 5)
	if err != nil {
		t.Fatalf("ListPairStats: %v", err)
	}
	if len(positives) != 1 || positives[0].CandidateID != 2 {
		t.Errorf("positives = %+v, want [(1,2)]", positives)
	}

	negatives, err := c.ListNegativePairStats(ctx)
	if err != nil {
		t.Fatalf("ListNegativePairStats: %v", err)
	}
	if len(negatives) != 2 {
		t.Errorf("negatives = %+v, want 2 pairs", negatives)
	}
	// 按负反馈数降序
	if negatives[0].AnchorID != 1 || negatives[0].CandidateID != 3 {
		t.Errorf("first negative = %+v, want (1,3)", negatives[0])
	}
}
