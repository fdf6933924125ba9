package rank

import (
	"context"
	"sort"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/embedding"
	"github.com/rushteam/shoprec/feature"
	"github.com/rushteam/shoprec/feedback"
	"github.com/rushteam/shoprec/model"
	"github.com/rushteam/shoprec/pipeline"
	"github.com/rushteam/shoprec/pkg/utils"
	"go.uber.org/zap"
)

// RankerNode 学习排序重排节点。公式打分之后运行：
// 抽取 39 维特征喂给当前模型，原始分 min-max 归一到 [0.5, 1.0]
// 写入 MLScore 并覆盖 Score。
//
// 降级语义：没有模型、调用方关闭重排、特征/预测出错或超时，
// 一律保留公式分原样返回，请求不失败。
type RankerNode struct {
	ranker     *Ranker
	catalog    core.CatalogStore
	feedback   *feedback.Service
	embeddings *embedding.Store
	extractor  *feature.Extractor
	cfg        core.ScoringConfig
	logger     *zap.Logger
}

type RankerNodeOption func(*RankerNode)

func WithRankerNodeLogger(logger *zap.Logger) RankerNodeOption {
	return func(n *RankerNode) { n.logger = logger }
}

func NewRankerNode(ranker *Ranker, catalog core.CatalogStore, fb *feedback.Service, embeddings *embedding.Store, extractor *feature.Extractor, cfg core.ScoringConfig, opts ...RankerNodeOption) *RankerNode {
	n := &RankerNode{
		ranker:     ranker,
		catalog:    catalog,
		feedback:   fb,
		embeddings: embeddings,
		extractor:  extractor,
		cfg:        cfg,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func (n *RankerNode) Name() string        { return "rank.ranker" }
func (n *RankerNode) Kind() pipeline.Kind { return pipeline.KindRank }

func (n *RankerNode) Process(ctx context.Context, rctx *core.RankContext, candidates []*core.Candidate) ([]*core.Candidate, error) {
	if len(candidates) == 0 || !rctx.UseRanker {
		return candidates, nil
	}
	m, version, ok := n.ranker.Model()
	if !ok {
		return candidates, nil
	}

	rankCtx := ctx
	if n.cfg.RankTimeout > 0 {
		var cancel context.CancelFunc
		rankCtx, cancel = context.WithTimeout(ctx, n.cfg.RankTimeout)
		defer cancel()
	}

	scores, err := n.predict(rankCtx, rctx, m, candidates)
	if err != nil {
		n.logger.Warn("ml rerank failed, keeping formula scores",
			zap.String("model_version", version),
			zap.Error(err))
		return candidates, nil
	}

	rescale(scores)
	for i, c := range candidates {
		c.MLScore = scores[i]
		c.Score = scores[i]
		c.PutLabel("rank_model", utils.Label{Value: m.Name() + "@" + version, Source: "rank"})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	return candidates, nil
}

// predict 批量抽取特征并打原始分。所有候选集级别的读取均为单次批量调用。
func (n *RankerNode) predict(ctx context.Context, rctx *core.RankContext, m *model.GBRT, candidates []*core.Candidate) ([]float64, error) {
	candidateIDs := make([]int64, 0, len(candidates))
	for _, c := range candidates {
		candidateIDs = append(candidateIDs, c.ID)
	}

	var anchor *core.Product
	var anchorID int64
	var anchorVec []float64
	if rctx.Anchor != nil {
		anchor = rctx.Anchor
		anchorID = anchor.ID
		anchorVec, _ = n.embeddings.Get(anchorID)
	}

	pairStats := map[int64]core.FeedbackStats{}
	copurchase := map[int64]int64{}
	if anchorID != 0 {
		var err error
		if pairStats, err = n.feedback.PairStats(ctx, anchorID, candidateIDs); err != nil {
			return nil, err
		}
		if copurchase, err = n.catalog.GetCopurchaseStats(ctx, anchorID, candidateIDs); err != nil {
			return nil, err
		}
	}
	vectors := n.embeddings.BatchGet(candidateIDs)

	var cartEmbeddings [][]float64
	for id := range rctx.CartProducts {
		if vec, ok := n.embeddings.Get(id); ok {
			cartEmbeddings = append(cartEmbeddings, vec)
		}
	}

	scores := make([]float64, len(candidates))
	for i, c := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		features := n.extractor.Extract(feature.Input{
			Anchor:             anchor,
			Candidate:          c.Product,
			AnchorEmbedding:    anchorVec,
			CandidateEmbedding: vectors[c.ID],
			PairStats:          pairStats[c.ID],
			CopurchaseCount:    copurchase[c.ID],
			CartEmbeddings:     cartEmbeddings,
			CartCount:          len(rctx.CartProducts),
		})
		c.Features = features
		scores[i] = m.PredictVector(feature.ToVector(features))
	}
	return scores, nil
}

// rescale 把原始模型分 min-max 归一到 [0.5, 1.0]；
// 全部相等时统一取 0.5。
func rescale(scores []float64) {
	if len(scores) == 0 {
		return
	}
	minS, maxS := scores[0], scores[0]
	for _, s := range scores[1:] {
		if s < minS {
			minS = s
		}
		if s > maxS {
			maxS = s
		}
	}
	span := maxS - minS
	for i, s := range scores {
		if span > 0 {
			scores[i] = 0.5 + (s-minS)/span*0.5
		} else {
			scores[i] = 0.5
		}
	}
}

var _ pipeline.Node = (*RankerNode)(nil)
