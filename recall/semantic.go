package recall

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/taxonomy"
	"github.com/rushteam/shoprec/vector"
)

// SemanticSource 语义近邻召回源：以锚点商品向量检索 topK 近邻，
// 叠加共购提升与跨根类目降权后产出初始分。
//
// 设计原则：
//   - 排除同类目候选：商品页推荐的是搭配品，不是替代品
//   - 批量读取：候选商品、共购计数各一次批量查询
//   - 锚点无向量时召回为空，由上层决定降级路径
type SemanticSource struct {
	index   *vector.Index
	catalog core.CatalogStore
	forest  *taxonomy.Forest
	cfg     core.ScoringConfig
	logger  *zap.Logger
}

// SemanticOption 配置 SemanticSource。
type SemanticOption func(*SemanticSource)

// WithSemanticLogger 设置日志器。
func WithSemanticLogger(logger *zap.Logger) SemanticOption {
	return func(s *SemanticSource) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSemanticSource 创建语义召回源。forest 可为 nil（不做跨根降权）。
func NewSemanticSource(
	index *vector.Index,
	catalog core.CatalogStore,
	forest *taxonomy.Forest,
	cfg core.ScoringConfig,
	opts ...SemanticOption,
) *SemanticSource {
	s := &SemanticSource{
		index:   index,
		catalog: catalog,
		forest:  forest,
		cfg:     cfg,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SemanticSource) Name() string { return "semantic" }

// Recall 执行语义召回。锚点缺失或无向量时返回空结果。
func (s *SemanticSource) Recall(ctx context.Context, rctx *core.RankContext) ([]*core.Candidate, error) {
	anchor := rctx.Anchor
	if anchor == nil {
		return nil, nil
	}

	topK := s.cfg.SemanticTopK
	if topK <= 0 {
		topK = core.DefaultScoringConfig().SemanticTopK
	}

	results, ok := s.index.SearchByProduct(anchor.ID, topK)
	if !ok {
		s.logger.Debug("anchor has no embedding, semantic recall skipped",
			zap.Int64("product_id", anchor.ID))
		return nil, nil
	}

	ids := make([]int64, 0, len(results))
	similarity := make(map[int64]float64, len(results))
	for _, r := range results {
		if r.ProductID == anchor.ID {
			continue
		}
		ids = append(ids, r.ProductID)
		similarity[r.ProductID] = r.Score
	}
	if len(ids) == 0 {
		return nil, nil
	}

	products, err := s.catalog.GetProducts(ctx, ids)
	if err != nil {
		return nil, err
	}
	copurchase, err := s.catalog.GetCopurchaseStats(ctx, anchor.ID, ids)
	if err != nil {
		return nil, err
	}

	var anchorRoot int64
	anchorRootKnown := false
	if s.forest != nil {
		anchorRoot, anchorRootKnown = s.forest.RootOf(anchor.CategoryID)
	}

	out := make([]*core.Candidate, 0, len(ids))
	for _, id := range ids {
		p := products[id]
		if p == nil || !p.Available {
			continue
		}
		// 同类目是替代品，不进入搭配召回
		if p.CategoryID == anchor.CategoryID {
			continue
		}

		score := similarity[id]

		count := copurchase[id]
		boost := float64(count) * s.cfg.CopurchaseBoostStep
		if boost > s.cfg.CopurchaseBoostCap {
			boost = s.cfg.CopurchaseBoostCap
		}
		score += boost

		penalized := false
		if anchorRootKnown {
			if root, known := s.forest.RootOf(p.CategoryID); known && root != anchorRoot {
				score -= s.cfg.CrossRootPenalty
				penalized = true
			}
		}

		c := core.NewCandidate(p)
		c.Score = score
		c.Features["semantic_similarity"] = similarity[id]
		c.Features["copurchase_count"] = float64(count)

		if count > 0 {
			c.GroupName = "推荐搭配"
			c.PutReason("copurchase", fmt.Sprintf("经常一起购买 %d 次", count))
		} else {
			c.GroupName = "相似商品"
		}
		c.PutReason("semantic", fmt.Sprintf("相似度 %.0f%%", similarity[id]*100))
		if penalized {
			c.PutReason("category_cross", "来自相邻品类")
		}

		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out, nil
}

var _ Source = (*SemanticSource)(nil)
