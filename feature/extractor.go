// Package feature 提供排序模型的特征抽取。
//
// 对（锚点商品, 候选商品）对抽取 39 维特征，覆盖语义、反馈、价格、类目、
// 共购、流行度、购物车上下文七组信号。特征名与顺序是训练与在线打分的共享契约，
// 任何改动都意味着旧模型制品失效。
package feature

import (
	"math"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/embedding"
	"github.com/rushteam/shoprec/taxonomy"
)

// featureNames 是特征的规范顺序。向量化时按此顺序展开。
var featureNames = []string{
	"embedding_cosine_similarity",
	"embedding_l2_distance",
	"embedding_dot_product",
	"embedding_euclidean_distance",
	"embedding_manhattan_distance",
	"embedding_has_valid",
	"pair_feedback_positive",
	"pair_feedback_negative",
	"pair_feedback_total",
	"pair_feedback_approval_rate",
	"scenario_feedback_positive",
	"scenario_feedback_negative",
	"scenario_feedback_total",
	"scenario_feedback_approval_rate",
	"candidate_price",
	"price_ratio",
	"price_diff",
	"price_diff_percent",
	"has_discount",
	"discount_percent",
	"discount_amount",
	"same_category",
	"same_root_category",
	"category_distance",
	"same_vendor",
	"different_vendor",
	"copurchase_count",
	"copurchase_log",
	"copurchase_exists",
	"has_image",
	"is_discounted",
	"price_bucket",
	"name_length",
	"view_count",
	"cart_add_count",
	"order_count",
	"cart_similarity_max",
	"cart_similarity_avg",
	"cart_products_count",
}

// Names 返回全部特征名（规范顺序）。返回值为共享切片，调用方不得修改。
func Names() []string {
	return featureNames
}

// Count 返回特征维度。
func Count() int {
	return len(featureNames)
}

// Input 是一次特征抽取的全部输入。
// 嵌入与统计缺失时传 nil/零值，抽取器会落到中性默认值。
type Input struct {
	Anchor    *core.Product
	Candidate *core.Product

	AnchorEmbedding    []float64
	CandidateEmbedding []float64

	PairStats     core.FeedbackStats
	ScenarioStats core.FeedbackStats

	CopurchaseCount int64

	// CartEmbeddings 是购物车商品的嵌入（有嵌入的才传）。
	CartEmbeddings [][]float64
	// CartCount 是购物车商品总数（含无嵌入的）。
	CartCount int
}

// Extractor 抽取排序特征。类目距离依赖类目森林；forest 为 nil 时类目特征取未知默认值。
type Extractor struct {
	forest *taxonomy.Forest
}

// NewExtractor 创建特征抽取器。
func NewExtractor(forest *taxonomy.Forest) *Extractor {
	return &Extractor{forest: forest}
}

// Extract 抽取全部 39 维特征。
func (e *Extractor) Extract(in Input) map[string]float64 {
	features := make(map[string]float64, len(featureNames))
	e.extractSemantic(in, features)
	e.extractFeedback(in, features)
	e.extractPrice(in, features)
	e.extractCategory(in, features)
	e.extractCopurchase(in, features)
	e.extractPopularity(in, features)
	e.extractCartContext(in, features)
	return features
}

// ToVector 按规范顺序把特征 map 展开为向量，缺失的特征填 0。
func ToVector(features map[string]float64) []float64 {
	out := make([]float64, len(featureNames))
	for i, name := range featureNames {
		out[i] = features[name]
	}
	return out
}

// extractSemantic 抽取嵌入特征。任一侧缺嵌入时取中性默认值。
func (e *Extractor) extractSemantic(in Input, features map[string]float64) {
	if len(in.AnchorEmbedding) == 0 || len(in.CandidateEmbedding) == 0 {
		features["embedding_cosine_similarity"] = 0.5
		features["embedding_l2_distance"] = 1.0
		features["embedding_dot_product"] = 0.0
		features["embedding_euclidean_distance"] = 1.0
		features["embedding_manhattan_distance"] = 1.0
		features["embedding_has_valid"] = 0.0
		return
	}

	anchorNorm := embedding.Normalize(in.AnchorEmbedding)
	candNorm := embedding.Normalize(in.CandidateEmbedding)

	features["embedding_cosine_similarity"] = embedding.Cosine(in.AnchorEmbedding, in.CandidateEmbedding)
	features["embedding_l2_distance"] = embedding.L2Distance(anchorNorm, candNorm)
	features["embedding_dot_product"] = embedding.Dot(anchorNorm, candNorm)
	features["embedding_euclidean_distance"] = embedding.L2Distance(in.AnchorEmbedding, in.CandidateEmbedding)
	features["embedding_manhattan_distance"] = embedding.ManhattanDistance(in.AnchorEmbedding, in.CandidateEmbedding)
	features["embedding_has_valid"] = 1.0
}

func (e *Extractor) extractFeedback(in Input, features map[string]float64) {
	features["pair_feedback_positive"] = float64(in.PairStats.Positive)
	features["pair_feedback_negative"] = float64(in.PairStats.Negative)
	features["pair_feedback_total"] = float64(in.PairStats.Total())
	features["pair_feedback_approval_rate"] = in.PairStats.ApprovalRate()
	features["scenario_feedback_positive"] = float64(in.ScenarioStats.Positive)
	features["scenario_feedback_negative"] = float64(in.ScenarioStats.Negative)
	features["scenario_feedback_total"] = float64(in.ScenarioStats.Total())
	features["scenario_feedback_approval_rate"] = in.ScenarioStats.ApprovalRate()
}

func (e *Extractor) extractPrice(in Input, features map[string]float64) {
	var anchorPrice, candPrice float64
	if in.Anchor != nil {
		anchorPrice = in.Anchor.Price
	}
	if in.Candidate != nil {
		candPrice = in.Candidate.Price
	}

	base := math.Max(anchorPrice, 1)
	priceDiff := candPrice - anchorPrice

	features["candidate_price"] = candPrice
	features["price_ratio"] = candPrice / base
	features["price_diff"] = priceDiff
	features["price_diff_percent"] = priceDiff / base * 100

	hasDiscount := 0.0
	discountPercent := 0.0
	discountAmount := 0.0
	if in.Candidate != nil && in.Candidate.HasDiscount() {
		hasDiscount = 1.0
		discountPercent = (candPrice - *in.Candidate.DiscountPrice) / candPrice * 100
		discountAmount = candPrice - *in.Candidate.DiscountPrice
	}
	features["has_discount"] = hasDiscount
	features["discount_percent"] = discountPercent
	features["discount_amount"] = discountAmount
}

func (e *Extractor) extractCategory(in Input, features map[string]float64) {
	var anchorCat, candCat int64
	var anchorVendor, candVendor string
	if in.Anchor != nil {
		anchorCat = in.Anchor.CategoryID
		anchorVendor = in.Anchor.Vendor
	}
	if in.Candidate != nil {
		candCat = in.Candidate.CategoryID
		candVendor = in.Candidate.Vendor
	}

	sameCategory := 0.0
	if anchorCat != 0 && anchorCat == candCat {
		sameCategory = 1.0
	}

	sameRoot := 0.0
	categoryDistance := 3.0
	if e.forest != nil {
		if e.forest.SameRoot(anchorCat, candCat) {
			sameRoot = 1.0
		}
		categoryDistance = e.forest.Distance(anchorCat, candCat)
	}

	sameVendor := 0.0
	if anchorVendor != "" && candVendor != "" && anchorVendor == candVendor {
		sameVendor = 1.0
	}

	features["same_category"] = sameCategory
	features["same_root_category"] = sameRoot
	features["category_distance"] = categoryDistance
	features["same_vendor"] = sameVendor
	features["different_vendor"] = 1.0 - sameVendor
}

func (e *Extractor) extractCopurchase(in Input, features map[string]float64) {
	count := float64(in.CopurchaseCount)
	features["copurchase_count"] = count
	features["copurchase_log"] = math.Log1p(count)
	if in.CopurchaseCount > 0 {
		features["copurchase_exists"] = 1.0
	} else {
		features["copurchase_exists"] = 0.0
	}
}

func (e *Extractor) extractPopularity(in Input, features map[string]float64) {
	if in.Candidate == nil {
		features["has_image"] = 0
		features["is_discounted"] = 0
		features["price_bucket"] = 0
		features["name_length"] = 0
		features["view_count"] = 0
		features["cart_add_count"] = 0
		features["order_count"] = 0
		return
	}
	p := in.Candidate

	hasImage := 0.0
	if p.Picture != "" {
		hasImage = 1.0
	}
	isDiscounted := 0.0
	if p.HasDiscount() {
		isDiscounted = 1.0
	}

	bucket := 0.0
	switch {
	case p.Price > 10000:
		bucket = 2
	case p.Price > 1000:
		bucket = 1
	}

	features["has_image"] = hasImage
	features["is_discounted"] = isDiscounted
	features["price_bucket"] = bucket
	features["name_length"] = float64(len([]rune(p.Name)))
	features["view_count"] = math.Log1p(float64(p.Popularity.ViewCount))
	features["cart_add_count"] = math.Log1p(float64(p.Popularity.CartAddCount))
	features["order_count"] = math.Log1p(float64(p.Popularity.OrderCount))
}

func (e *Extractor) extractCartContext(in Input, features map[string]float64) {
	features["cart_products_count"] = float64(in.CartCount)

	if len(in.CandidateEmbedding) == 0 || len(in.CartEmbeddings) == 0 {
		features["cart_similarity_max"] = 0.0
		features["cart_similarity_avg"] = 0.0
		return
	}

	maxSim := math.Inf(-1)
	sum := 0.0
	count := 0
	for _, cartEmb := range in.CartEmbeddings {
		if len(cartEmb) == 0 {
			continue
		}
		sim := embedding.Cosine(in.CandidateEmbedding, cartEmb)
		if sim > maxSim {
			maxSim = sim
		}
		sum += sim
		count++
	}
	if count == 0 {
		features["cart_similarity_max"] = 0.0
		features["cart_similarity_avg"] = 0.0
		return
	}
	features["cart_similarity_max"] = maxSim
	features["cart_similarity_avg"] = sum / float64(count)
}
