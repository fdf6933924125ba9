package feature

import (
	"math"
	"testing"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/taxonomy"
)

func testForest() *taxonomy.Forest {
	parent := int64(1)
	other := int64(2)
	return taxonomy.NewForest([]*core.Category{
		{ID: 1, Name: "paint"},
		{ID: 11, ParentID: &parent, Name: "primers"},
		{ID: 12, ParentID: &parent, Name: "rollers"},
		{ID: 2, Name: "tools"},
		{ID: 21, ParentID: &other, Name: "mixers"},
	})
}

func TestNames_StableOrder(t *testing.T) {
	names := Names()
	if len(names) != 39 {
		t.Fatalf("feature count = %d, want 39", len(names))
	}
	if names[0] != "embedding_cosine_similarity" {
		t.Errorf("first feature = %q", names[0])
	}
	if names[len(names)-1] != "cart_products_count" {
		t.Errorf("last feature = %q", names[len(names)-1])
	}
	if Count() != len(names) {
		t.Errorf("Count() = %d, want %d", Count(), len(names))
	}
}

func TestExtract_AllFeaturesPresent(t *testing.T) {
	e := NewExtractor(testForest())
	features := e.Extract(Input{
		Anchor:    &core.Product{ID: 1, CategoryID: 11, Price: 1000},
		Candidate: &core.Product{ID: 2, CategoryID: 12, Price: 500},
	})
	if len(features) != 39 {
		t.Fatalf("extracted %d features, want 39", len(features))
	}
	for _, name := range Names() {
		if _, ok := features[name]; !ok {
			t.Errorf("missing feature %q", name)
		}
	}
}

func TestExtract_MissingEmbeddingDefaults(t *testing.T) {
	e := NewExtractor(testForest())
	features := e.Extract(Input{
		Anchor:    &core.Product{ID: 1, CategoryID: 11, Price: 1000},
		Candidate: &core.Product{ID: 2, CategoryID: 12, Price: 500},
	})

	wants := map[string]float64{
		"embedding_cosine_similarity":  0.5,
		"embedding_l2_distance":        1.0,
		"embedding_dot_product":        0.0,
		"embedding_euclidean_distance": 1.0,
		"embedding_manhattan_distance": 1.0,
		"embedding_has_valid":          0.0,
	}
	for name, want := range wants {
		if got := features[name]; got != want {
			t.Errorf("%s = %v, want %v", name, got, want)
		}
	}
}

func TestExtract_SemanticFeatures(t *testing.T) {
	e := NewExtractor(testForest())
	features := e.Extract(Input{
		Anchor:             &core.Product{ID: 1, CategoryID: 11, Price: 100},
		Candidate:          &core.Product{ID: 2, CategoryID: 11, Price: 100},
		AnchorEmbedding:    []float64{1, 0},
		CandidateEmbedding: []float64{1, 0},
	})

	if math.Abs(features["embedding_cosine_similarity"]-1) > 1e-9 {
		t.Errorf("cosine = %v, want 1", features["embedding_cosine_similarity"])
	}
	if features["embedding_l2_distance"] > 1e-9 {
		t.Errorf("l2 = %v, want 0", features["embedding_l2_distance"])
	}
	if features["embedding_has_valid"] != 1 {
		t.Error("embedding_has_valid should be 1")
	}
}

func TestExtract_FeedbackLaplaceSmoothing(t *testing.T) {
	e := NewExtractor(nil)

	features := e.Extract(Input{
		Anchor:    &core.Product{ID: 1, Price: 100},
		Candidate: &core.Product{ID: 2, Price: 100},
		PairStats: core.FeedbackStats{Positive: 3, Negative: 1},
	})
	// (3+1)/(4+2)
	want := 4.0 / 6.0
	if math.Abs(features["pair_feedback_approval_rate"]-want) > 1e-9 {
		t.Errorf("approval rate = %v, want %v", features["pair_feedback_approval_rate"], want)
	}
	if features["pair_feedback_total"] != 4 {
		t.Errorf("total = %v, want 4", features["pair_feedback_total"])
	}
	// 无反馈时平滑到 0.5
	neutral := e.Extract(Input{
		Anchor:    &core.Product{ID: 1, Price: 100},
		Candidate: &core.Product{ID: 2, Price: 100},
	})
	if neutral["scenario_feedback_approval_rate"] != 0.5 {
		t.Errorf("neutral approval = %v, want 0.5", neutral["scenario_feedback_approval_rate"])
	}
}

func TestExtract_PriceFeatures(t *testing.T) {
	e := NewExtractor(nil)
	discount := 400.0
	features := e.Extract(Input{
		Anchor:    &core.Product{ID: 1, Price: 1000},
		Candidate: &core.Product{ID: 2, Price: 500, DiscountPrice: &discount},
	})

	if features["price_ratio"] != 0.5 {
		t.Errorf("price_ratio = %v, want 0.5", features["price_ratio"])
	}
	if features["price_diff"] != -500 {
		t.Errorf("price_diff = %v, want -500", features["price_diff"])
	}
	if features["price_diff_percent"] != -50 {
		t.Errorf("price_diff_percent = %v, want -50", features["price_diff_percent"])
	}
	if features["has_discount"] != 1 || features["is_discounted"] != 1 {
		t.Error("discount flags should be 1")
	}
	if features["discount_percent"] != 20 {
		t.Errorf("discount_percent = %v, want 20", features["discount_percent"])
	}
	if features["discount_amount"] != 100 {
		t.Errorf("discount_amount = %v, want 100", features["discount_amount"])
	}
}

func TestExtract_CategoryFeatures(t *testing.T) {
	e := NewExtractor(testForest())

	tests := []struct {
		name         string
		anchorCat    int64
		candCat      int64
		wantSame     float64
		wantSameRoot float64
		wantDistance float64
	}{
		{name: "same category", anchorCat: 11, candCat: 11, wantSame: 1, wantSameRoot: 1, wantDistance: 0},
		{name: "same root", anchorCat: 11, candCat: 12, wantSame: 0, wantSameRoot: 1, wantDistance: 0},
		{name: "different roots", anchorCat: 11, candCat: 21, wantSame: 0, wantSameRoot: 0, wantDistance: 2},
		{name: "unknown category", anchorCat: 11, candCat: 999, wantSame: 0, wantSameRoot: 0, wantDistance: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			features := e.Extract(Input{
				Anchor:    &core.Product{ID: 1, CategoryID: tt.anchorCat, Price: 100},
				Candidate: &core.Product{ID: 2, CategoryID: tt.candCat, Price: 100},
			})
			if features["same_category"] != tt.wantSame {
				t.Errorf("same_category = %v, want %v", features["same_category"], tt.wantSame)
			}
			if features["same_root_category"] != tt.wantSameRoot {
				t.Errorf("same_root_category = %v, want %v", features["same_root_category"], tt.wantSameRoot)
			}
			if features["category_distance"] != tt.wantDistance {
				t.Errorf("category_distance = %v, want %v", features["category_distance"], tt.wantDistance)
			}
		})
	}
}

func TestExtract_VendorFeatures(t *testing.T) {
	e := NewExtractor(nil)

	same := e.Extract(Input{
		Anchor:    &core.Product{ID: 1, Vendor: "acme", Price: 100},
		Candidate: &core.Product{ID: 2, Vendor: "acme", Price: 100},
	})
	if same["same_vendor"] != 1 || same["different_vendor"] != 0 {
		t.Errorf("same vendor flags = %v/%v", same["same_vendor"], same["different_vendor"])
	}

	// 厂商为空时不算同厂商
	empty := e.Extract(Input{
		Anchor:    &core.Product{ID: 1, Price: 100},
		Candidate: &core.Product{ID: 2, Price: 100},
	})
	if empty["same_vendor"] != 0 || empty["different_vendor"] != 1 {
		t.Errorf("empty vendor flags = %v/%v", empty["same_vendor"], empty["different_vendor"])
	}
}

func TestExtract_CopurchaseFeatures(t *testing.T) {
	e := NewExtractor(nil)
	features := e.Extract(Input{
		Anchor:          &core.Product{ID: 1, Price: 100},
		Candidate:       &core.Product{ID: 2, Price: 100},
		CopurchaseCount: 3,
	})
	if features["copurchase_count"] != 3 {
		t.Errorf("copurchase_count = %v, want 3", features["copurchase_count"])
	}
	if math.Abs(features["copurchase_log"]-math.Log1p(3)) > 1e-9 {
		t.Errorf("copurchase_log = %v", features["copurchase_log"])
	}
	if features["copurchase_exists"] != 1 {
		t.Error("copurchase_exists should be 1")
	}
}

func TestExtract_PopularityLogScaling(t *testing.T) {
	e := NewExtractor(nil)
	features := e.Extract(Input{
		Anchor: &core.Product{ID: 1, Price: 100},
		Candidate: &core.Product{
			ID: 2, Name: "Roller", Price: 15000, Picture: "x.jpg",
			Popularity: core.Popularity{ViewCount: 99, CartAddCount: 0, OrderCount: 9},
		},
	})
	if math.Abs(features["view_count"]-math.Log1p(99)) > 1e-9 {
		t.Errorf("view_count = %v", features["view_count"])
	}
	if features["cart_add_count"] != 0 {
		t.Errorf("cart_add_count = %v, want 0", features["cart_add_count"])
	}
	if features["price_bucket"] != 2 {
		t.Errorf("price_bucket = %v, want 2", features["price_bucket"])
	}
	if features["has_image"] != 1 {
		t.Error("has_image should be 1")
	}
	if features["name_length"] != 6 {
		t.Errorf("name_length = %v, want 6", features["name_length"])
	}
}

func TestExtract_PriceBuckets(t *testing.T) {
	e := NewExtractor(nil)
	tests := []struct {
		price float64
		want  float64
	}{
		{price: 500, want: 0},
		{price: 1000, want: 0},
		{price: 1001, want: 1},
		{price: 10000, want: 1},
		{price: 10001, want: 2},
	}
	for _, tt := range tests {
		features := e.Extract(Input{
			Anchor:    &core.Product{ID: 1, Price: 100},
			Candidate: &core.Product{ID: 2, Price: tt.price},
		})
		if features["price_bucket"] != tt.want {
			t.Errorf("price %v: bucket = %v, want %v", tt.price, features["price_bucket"], tt.want)
		}
	}
}

func TestExtract_CartContext(t *testing.T) {
	e := NewExtractor(nil)
	features := e.Extract(Input{
		Anchor:             &core.Product{ID: 1, Price: 100},
		Candidate:          &core.Product{ID: 2, Price: 100},
		CandidateEmbedding: []float64{1, 0},
		CartEmbeddings:     [][]float64{{1, 0}, {0, 1}},
		CartCount:          3,
	})
	if math.Abs(features["cart_similarity_max"]-1) > 1e-9 {
		t.Errorf("cart_similarity_max = %v, want 1", features["cart_similarity_max"])
	}
	if math.Abs(features["cart_similarity_avg"]-0.5) > 1e-9 {
		t.Errorf("cart_similarity_avg = %v, want 0.5", features["cart_similarity_avg"])
	}
	if features["cart_products_count"] != 3 {
		t.Errorf("cart_products_count = %v, want 3", features["cart_products_count"])
	}
}

func TestToVector(t *testing.T) {
	features := map[string]float64{
		"embedding_cosine_similarity": 0.9,
		"cart_products_count":         2,
	}
	vec := ToVector(features)
	if len(vec) != Count() {
		t.Fatalf("len(vec) = %d, want %d", len(vec), Count())
	}
	if vec[0] != 0.9 {
		t.Errorf("vec[0] = %v, want 0.9", vec[0])
	}
	if vec[len(vec)-1] != 2 {
		t.Errorf("last = %v, want 2", vec[len(vec)-1])
	}
	if vec[1] != 0 {
		t.Errorf("missing feature should be 0, got %v", vec[1])
	}
}
