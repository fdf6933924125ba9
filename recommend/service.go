// Package recommend 是推荐引擎的对外门面，组装召回/过滤/排序/重排流水线，
// 并暴露商品页推荐、场景推荐、反馈录入、模型训练等入口。
//
// 设计原则：
//   - 依赖注入：所有服务对象在组装期显式传入，无包级单例
//   - 请求无共享状态：每次请求构建独立的 RankContext 与 Pipeline
//   - 学习排序失败只降级不报错，调用方通过 ranking_method 感知
package recommend

import (
	"context"

	"go.uber.org/zap"

	"github.com/rushteam/shoprec/complement"
	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/embedding"
	"github.com/rushteam/shoprec/feature"
	"github.com/rushteam/shoprec/feedback"
	"github.com/rushteam/shoprec/filter"
	"github.com/rushteam/shoprec/pipeline"
	"github.com/rushteam/shoprec/rank"
	"github.com/rushteam/shoprec/recall"
	"github.com/rushteam/shoprec/rerank"
	"github.com/rushteam/shoprec/taxonomy"
	"github.com/rushteam/shoprec/train"
	"github.com/rushteam/shoprec/vector"
)

// DefaultLimit 商品页推荐默认返回条数。
const DefaultLimit = 20

// DefaultLimitPerGroup 场景推荐每个分组默认返回条数。
const DefaultLimitPerGroup = 3

// Deps 是 Service 的全部依赖。Complement 与 Trainer 可为 nil，
// 对应入口会返回 NOT_SUPPORTED。
type Deps struct {
	Catalog    core.CatalogStore
	Embeddings *embedding.Store
	Index      *vector.Index
	Forest     *taxonomy.Forest
	Matcher    *taxonomy.Matcher
	Feedback   *feedback.Service
	Ranker     *rank.Ranker
	Trainer    *train.Trainer
	Complement *complement.Model

	// Categories 可选的类目向量存储，支撑相似类目查询
	Categories *embedding.CategoryStore
}

// Service 推荐服务门面。
type Service struct {
	catalog    core.CatalogStore
	embeddings *embedding.Store
	index      *vector.Index
	forest     *taxonomy.Forest
	matcher    *taxonomy.Matcher
	feedback   *feedback.Service
	ranker     *rank.Ranker
	trainer    *train.Trainer
	complement *complement.Model
	categories *embedding.CategoryStore

	cfg       core.ScoringConfig
	scorer    *rank.FormulaScorer
	extractor *feature.Extractor
	filters   []filter.Filter
	logger    *zap.Logger

	semanticSrc *recall.SemanticSource
	scenarioSrc *recall.ScenarioSource
}

// Option 配置 Service。
type Option func(*Service)

// WithLogger 设置日志器。
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithScoringConfig 覆盖打分配置。
func WithScoringConfig(cfg core.ScoringConfig) Option {
	return func(s *Service) {
		s.cfg = cfg
	}
}

// WithFilters 追加候选过滤器（黑名单/已曝光/CEL 规则等）。
func WithFilters(filters ...filter.Filter) Option {
	return func(s *Service) {
		s.filters = append(s.filters, filters...)
	}
}

// NewService 组装推荐服务。
func NewService(deps Deps, opts ...Option) *Service {
	s := &Service{
		catalog:    deps.Catalog,
		embeddings: deps.Embeddings,
		index:      deps.Index,
		forest:     deps.Forest,
		matcher:    deps.Matcher,
		feedback:   deps.Feedback,
		ranker:     deps.Ranker,
		trainer:    deps.Trainer,
		complement: deps.Complement,
		categories: deps.Categories,
		cfg:        core.DefaultScoringConfig(),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.scorer = rank.NewFormulaScorer(s.cfg)
	s.extractor = feature.NewExtractor(s.forest)
	s.semanticSrc = recall.NewSemanticSource(s.index, s.catalog, s.forest, s.cfg,
		recall.WithSemanticLogger(s.logger))
	s.scenarioSrc = recall.NewScenarioSource(s.catalog, s.cfg,
		recall.WithScenarioLogger(s.logger))
	return s
}

// GetRecommendations 返回商品页推荐。
// 锚点命中场景时走场景分组召回，否则走语义近邻召回；
// 候选经公式打分后，若有可用模型且 useRanker 为真则做学习重排。
func (s *Service) GetRecommendations(ctx context.Context, anchorID int64, limit int, useRanker bool) (*Recommendations, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	anchor, err := s.catalog.GetProduct(ctx, anchorID)
	if err != nil {
		return nil, err
	}

	scenario := s.matcher.DetectForProduct(anchor.CategoryID)
	rctx := &core.RankContext{
		Anchor:    anchor,
		Scenario:  scenario,
		UseRanker: useRanker,
	}

	var source recall.Source = s.semanticSrc
	if scenario != nil {
		source = s.scenarioSrc
	}

	p := &pipeline.Pipeline{Nodes: []pipeline.Node{
		&recall.Fanout{Sources: []recall.Source{source}, Dedup: true},
		&filter.FilterNode{Filters: s.requestFilters()},
		rank.NewFormulaNode(s.scorer, s.feedback, s.embeddings),
		rank.NewRankerNode(s.ranker, s.catalog, s.feedback, s.embeddings,
			s.extractor, s.cfg, rank.WithRankerNodeLogger(s.logger)),
		&rerank.TopNNode{N: limit},
	}}

	candidates, err := p.Run(ctx, rctx, nil)
	if err != nil {
		return nil, err
	}

	out := &Recommendations{
		ProductID:     anchor.ID,
		ProductName:   anchor.Name,
		RankingMethod: "formula",
		Items:         make([]Item, 0, len(candidates)),
	}
	if scenario != nil {
		out.DetectedScenario = &ScenarioRef{ID: scenario.ID, Name: scenario.Name}
	}
	for i, c := range candidates {
		c.Rank = i + 1
		out.Items = append(out.Items, itemOf(c))
		if _, ranked := c.Labels["rank_model"]; ranked {
			out.RankingMethod = "ranker"
		}
	}
	out.TotalCount = len(out.Items)
	return out, nil
}

// requestFilters 返回本次请求的过滤器链，可售性过滤始终在最前。
func (s *Service) requestFilters() []filter.Filter {
	out := make([]filter.Filter, 0, len(s.filters)+1)
	out = append(out, &filter.AvailabilityFilter{})
	out = append(out, s.filters...)
	return out
}

func itemOf(c *core.Candidate) Item {
	it := Item{
		ID:        c.ID,
		Score:     c.Score,
		MLScore:   c.MLScore,
		Rank:      c.Rank,
		GroupName: c.GroupName,
		Reasons:   c.Reasons(),
	}
	if p := c.Product; p != nil {
		it.Name = p.Name
		it.Price = p.Price
		it.DiscountPrice = p.DiscountPrice
		it.Picture = p.Picture
		it.CategoryName = p.CategoryName
	}
	return it
}

// Stats 返回服务状态快照。
func (s *Service) Stats(ctx context.Context) (*ServiceStats, error) {
	categories, err := s.catalog.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	pairs, err := s.catalog.ListPairStats(ctx, 0)
	if err != nil {
		return nil, err
	}

	st := &ServiceStats{
		Embeddings: s.embeddings.Len(),
		IndexSize:  s.index.Len(),
		Categories: len(categories),
		Scenarios:  len(s.matcher.Scenarios()),
	}
	for _, p := range pairs {
		st.PositiveFeedback += p.Stats.Positive
		st.NegativeFeedback += p.Stats.Negative
	}
	st.TotalFeedback = st.PositiveFeedback + st.NegativeFeedback
	return st, nil
}

// RankerInfo 返回学习排序模型状态。
func (s *Service) RankerInfo() rank.ModelInfo {
	return s.ranker.Info()
}
