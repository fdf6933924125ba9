package recall

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rushteam/shoprec/core"
)

// ScenarioSource 场景分组召回源：锚点商品命中场景时，
// 从场景的其余分组各取一批在售商品作为搭配候选。
//
// 设计原则：
//   - 跳过锚点所在分组：分组内是替代品，推荐目标是补齐其他分组
//   - 分组间并发取数，分组内一次批量查询
//   - 候选带 GroupName 溯源，供公式打分按分组维度读取反馈
type ScenarioSource struct {
	catalog core.CatalogStore
	cfg     core.ScoringConfig
	logger  *zap.Logger
}

// ScenarioOption 配置 ScenarioSource。
type ScenarioOption func(*ScenarioSource)

// WithScenarioLogger 设置日志器。
func WithScenarioLogger(logger *zap.Logger) ScenarioOption {
	return func(s *ScenarioSource) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewScenarioSource 创建场景召回源。
func NewScenarioSource(catalog core.CatalogStore, cfg core.ScoringConfig, opts ...ScenarioOption) *ScenarioSource {
	s := &ScenarioSource{
		catalog: catalog,
		cfg:     cfg,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ScenarioSource) Name() string { return "scenario" }

// Recall 执行场景召回。未命中场景时返回空结果（由语义路径兜底）。
func (s *ScenarioSource) Recall(ctx context.Context, rctx *core.RankContext) ([]*core.Candidate, error) {
	scenario := rctx.Scenario
	if scenario == nil {
		return nil, nil
	}

	limit := s.cfg.ScenarioGroupLimit
	if limit <= 0 {
		limit = core.DefaultScoringConfig().ScenarioGroupLimit
	}

	var anchorCategory int64
	excludeIDs := rctx.CartIDs()
	if rctx.Anchor != nil {
		anchorCategory = rctx.Anchor.CategoryID
		excludeIDs = append(excludeIDs, rctx.Anchor.ID)
	}

	groups := scenario.SortedGroups()
	byGroup := make([][]*core.Candidate, len(groups))

	eg, gctx := errgroup.WithContext(ctx)
	for i, g := range groups {
		if len(g.CategoryIDs) == 0 {
			continue
		}
		// 锚点所在分组不参与召回
		if rctx.Anchor != nil && g.Contains(anchorCategory) {
			continue
		}

		i, g := i, g
		eg.Go(func() error {
			products, err := s.catalog.GetProductsByCategories(gctx, g.CategoryIDs, excludeIDs, limit)
			if err != nil {
				return err
			}
			out := make([]*core.Candidate, 0, len(products))
			for _, p := range products {
				if p == nil || !p.Available {
					continue
				}
				c := core.NewCandidate(p)
				c.GroupName = g.Name
				c.PutReason("scenario", "适用场景："+scenario.Name)
				out = append(out, c)
			}
			byGroup[i] = out
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var all []*core.Candidate
	for _, cs := range byGroup {
		all = append(all, cs...)
	}
	s.logger.Debug("scenario recall finished",
		zap.String("scenario_id", scenario.ID),
		zap.Int("candidates", len(all)))
	return all, nil
}

var _ Source = (*ScenarioSource)(nil)
