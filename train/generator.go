// Package train 负责排序模型的离线训练：从反馈与订单数据生成
// 分组训练样本，训练 GBRT 排序器，评估质量并把制品写入版本仓库。
package train

import (
	"context"
	"sort"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/embedding"
	"github.com/rushteam/shoprec/feature"
	"go.uber.org/zap"
)

// GeneratorParams 控制样本生成。零值字段取默认值。
type GeneratorParams struct {
	// MinFeedbackCount 商品对计入正样本所需的最少正反馈数
	MinFeedbackCount int64
	// MinCopurchaseCount 商品对计入正样本所需的最少共购次数
	MinCopurchaseCount int64
	// CopurchaseLimit 共购正样本的截断上限（按次数降序）
	CopurchaseLimit int
	// NegativeRatio 每个锚点商品采样的 hard negative 数量
	NegativeRatio int
}

func (p GeneratorParams) withDefaults() GeneratorParams {
	if p.MinFeedbackCount <= 0 {
		p.MinFeedbackCount = 5
	}
	if p.MinCopurchaseCount <= 0 {
		p.MinCopurchaseCount = 2
	}
	if p.CopurchaseLimit <= 0 {
		p.CopurchaseLimit = 10000
	}
	if p.NegativeRatio <= 0 {
		p.NegativeRatio = 3
	}
	return p
}

// Dataset 是展开为特征矩阵的训练集。Groups[i] 是第 i 行的 query（锚点商品 ID）。
type Dataset struct {
	X            [][]float64
	Y            []float64
	Groups       []int64
	FeatureNames []string
}

func (d *Dataset) Len() int { return len(d.X) }

// sample 是展开特征前的一条 (锚点, 候选, 标签) 记录。
type sample struct {
	anchorID    int64
	candidateID int64
	label       float64
}

// Generator 从目录数据生成训练样本。
//
// 正样本：正反馈数达标的商品对 + 共购次数达标的商品对（双向展开）。
// 负样本：负反馈多于正反馈的商品对 + 按比例随机采样的 hard negative
// （排除正样本对与自身）。
type Generator struct {
	catalog    core.CatalogStore
	embeddings *embedding.Store
	extractor  *feature.Extractor
	logger     *zap.Logger
}

type GeneratorOption func(*Generator)

func WithGeneratorLogger(logger *zap.Logger) GeneratorOption {
	return func(g *Generator) { g.logger = logger }
}

func NewGenerator(catalog core.CatalogStore, embeddings *embedding.Store, extractor *feature.Extractor, opts ...GeneratorOption) *Generator {
	g := &Generator{
		catalog:    catalog,
		embeddings: embeddings,
		extractor:  extractor,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate 生成训练集。锚点或候选商品已不在目录中的样本被静默跳过。
func (g *Generator) Generate(ctx context.Context, params GeneratorParams) (*Dataset, error) {
	params = params.withDefaults()

	positives, err := g.collectPositives(ctx, params)
	if err != nil {
		return nil, err
	}
	negatives, err := g.collectNegatives(ctx, positives, params)
	if err != nil {
		return nil, err
	}

	g.logger.Info("training samples collected",
		zap.Int("positives", len(positives)),
		zap.Int("negatives", len(negatives)))

	samples := append(positives, negatives...)
	return g.extractAll(ctx, samples)
}

func (g *Generator) collectPositives(ctx context.Context, params GeneratorParams) ([]sample, error) {
	pairStats, err := g.catalog.ListPairStats(ctx, params.MinFeedbackCount)
	if err != nil {
		return nil, err
	}
	var positives []sample
	for _, ps := range pairStats {
		positives = append(positives, sample{anchorID: ps.AnchorID, candidateID: ps.CandidateID, label: 1})
	}

	copurchases, err := g.catalog.ListCopurchasePairs(ctx, params.MinCopurchaseCount, params.CopurchaseLimit)
	if err != nil {
		return nil, err
	}
	// 共购对是无序的，双向展开成两条样本
	for _, cp := range copurchases {
		positives = append(positives,
			sample{anchorID: cp.ProductID1, candidateID: cp.ProductID2, label: 1},
			sample{anchorID: cp.ProductID2, candidateID: cp.ProductID1, label: 1},
		)
	}
	return positives, nil
}

func (g *Generator) collectNegatives(ctx context.Context, positives []sample, params GeneratorParams) ([]sample, error) {
	negStats, err := g.catalog.ListNegativePairStats(ctx)
	if err != nil {
		return nil, err
	}
	var negatives []sample
	for _, ps := range negStats {
		negatives = append(negatives, sample{anchorID: ps.AnchorID, candidateID: ps.CandidateID, label: 0})
	}

	hard, err := g.hardNegatives(ctx, positives, params.NegativeRatio)
	if err != nil {
		return nil, err
	}
	return append(negatives, hard...), nil
}

// hardNegatives 给每个出现过正样本的锚点商品配 ratio 个随机候选。
func (g *Generator) hardNegatives(ctx context.Context, positives []sample, ratio int) ([]sample, error) {
	if len(positives) == 0 {
		return nil, nil
	}

	anchorSet := make(map[int64]struct{})
	positivePairs := make(map[[2]int64]struct{}, len(positives))
	for _, s := range positives {
		anchorSet[s.anchorID] = struct{}{}
		positivePairs[[2]int64{s.anchorID, s.candidateID}] = struct{}{}
	}
	anchors := make([]int64, 0, len(anchorSet))
	for id := range anchorSet {
		anchors = append(anchors, id)
	}
	sort.Slice(anchors, func(i, j int) bool { return anchors[i] < anchors[j] })

	// 多采一倍，留出命中正样本对或自身时的跳过余量
	pool, err := g.catalog.SampleAvailableProducts(ctx, len(anchors)*ratio*2)
	if err != nil {
		return nil, err
	}

	var negatives []sample
	poolIdx := 0
	for _, anchorID := range anchors {
		added := 0
		for added < ratio && poolIdx < len(pool) {
			candidateID := pool[poolIdx]
			poolIdx++
			if candidateID == anchorID {
				continue
			}
			if _, ok := positivePairs[[2]int64{anchorID, candidateID}]; ok {
				continue
			}
			negatives = append(negatives, sample{anchorID: anchorID, candidateID: candidateID, label: 0})
			added++
		}
	}
	return negatives, nil
}

// extractAll 为全部样本展开特征。商品信息一次批量读取；
// 反馈与共购计数按锚点各做一次批量读取。
func (g *Generator) extractAll(ctx context.Context, samples []sample) (*Dataset, error) {
	ds := &Dataset{FeatureNames: feature.Names()}
	if len(samples) == 0 {
		return ds, nil
	}

	idSet := make(map[int64]struct{})
	byAnchor := make(map[int64][]sample)
	for _, s := range samples {
		idSet[s.anchorID] = struct{}{}
		idSet[s.candidateID] = struct{}{}
		byAnchor[s.anchorID] = append(byAnchor[s.anchorID], s)
	}
	ids := make([]int64, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}
	products, err := g.catalog.GetProducts(ctx, ids)
	if err != nil {
		return nil, err
	}

	anchors := make([]int64, 0, len(byAnchor))
	for id := range byAnchor {
		anchors = append(anchors, id)
	}
	sort.Slice(anchors, func(i, j int) bool { return anchors[i] < anchors[j] })

	skipped := 0
	for _, anchorID := range anchors {
		group := byAnchor[anchorID]
		anchor := products[anchorID]
		if anchor == nil {
			skipped += len(group)
			continue
		}

		candidateIDs := make([]int64, 0, len(group))
		for _, s := range group {
			candidateIDs = append(candidateIDs, s.candidateID)
		}
		pairStats, err := g.catalog.GetPairFeedbackStats(ctx, anchorID, candidateIDs)
		if err != nil {
			return nil, err
		}
		copurchase, err := g.catalog.GetCopurchaseStats(ctx, anchorID, candidateIDs)
		if err != nil {
			return nil, err
		}
		anchorVec, _ := g.embeddings.Get(anchorID)

		for _, s := range group {
			candidate := products[s.candidateID]
			if candidate == nil {
				skipped++
				continue
			}
			candVec, _ := g.embeddings.Get(s.candidateID)
			features := g.extractor.Extract(feature.Input{
				Anchor:             anchor,
				Candidate:          candidate,
				AnchorEmbedding:    anchorVec,
				CandidateEmbedding: candVec,
				PairStats:          pairStats[s.candidateID],
				CopurchaseCount:    copurchase[s.candidateID],
			})
			ds.X = append(ds.X, feature.ToVector(features))
			ds.Y = append(ds.Y, s.label)
			ds.Groups = append(ds.Groups, s.anchorID)
		}
	}

	if skipped > 0 {
		g.logger.Warn("samples skipped, product missing from catalog", zap.Int("skipped", skipped))
	}
	return ds, nil
}
