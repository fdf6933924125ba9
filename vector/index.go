// Package vector 提供商品嵌入的精确近邻索引。
//
// 索引对所有向量做 L2 归一化后按内积检索，等价于余弦相似度的精确 Top-K。
// 商品量在十万级以内时暴力检索足够快，且没有近似索引的召回损失。
package vector

import (
	"sort"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/embedding"
)

// Result 是一次近邻检索的结果项。Score 为余弦相似度。
type Result struct {
	ProductID int64
	Score     float64
}

// Index 是内存中的精确向量索引。
//
// 设计原则：
//   - 快照不可变：Build 构建新快照后原子替换，检索路径无锁
//   - 降级容忍：空索引不报错，检索返回空结果，由上层走非语义召回
type Index struct {
	logger   *zap.Logger
	snapshot atomic.Pointer[indexSnapshot]
}

type indexSnapshot struct {
	ids     []int64
	vectors [][]float64 // 与 ids 对齐，已 L2 归一化
	byID    map[int64]int
	dim     int
}

// IndexOption 配置 Index。
type IndexOption func(*Index)

// WithLogger 设置日志器，默认 zap.NewNop()。
func WithLogger(logger *zap.Logger) IndexOption {
	return func(idx *Index) {
		if logger != nil {
			idx.logger = logger
		}
	}
}

// NewIndex 创建空索引。
func NewIndex(opts ...IndexOption) *Index {
	idx := &Index{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(idx)
	}
	idx.snapshot.Store(&indexSnapshot{byID: map[int64]int{}})
	return idx
}

// Build 从嵌入集合构建索引并原子替换快照。
// 所有向量在构建时做 L2 归一化；零向量与维度不一致的向量被跳过。
func (idx *Index) Build(embeddings map[int64][]float64) {
	snap := &indexSnapshot{
		ids:     make([]int64, 0, len(embeddings)),
		vectors: make([][]float64, 0, len(embeddings)),
		byID:    make(map[int64]int, len(embeddings)),
	}

	skipped := 0
	for id, vec := range embeddings {
		if len(vec) == 0 || embedding.Norm(vec) == 0 {
			skipped++
			continue
		}
		if snap.dim == 0 {
			snap.dim = len(vec)
		}
		if len(vec) != snap.dim {
			skipped++
			continue
		}
		snap.byID[id] = len(snap.ids)
		snap.ids = append(snap.ids, id)
		snap.vectors = append(snap.vectors, embedding.Normalize(vec))
	}

	idx.snapshot.Store(snap)
	idx.logger.Info("vector index rebuilt",
		zap.Int("vectors", len(snap.ids)),
		zap.Int("dim", snap.dim),
		zap.Int("skipped", skipped),
	)
}

// Len 返回索引中的向量数量。
func (idx *Index) Len() int {
	return len(idx.snapshot.Load().ids)
}

// Dim 返回索引的向量维度，空索引时为 0。
func (idx *Index) Dim() int {
	return idx.snapshot.Load().dim
}

// Contains 判断商品是否在索引中。
func (idx *Index) Contains(productID int64) bool {
	_, ok := idx.snapshot.Load().byID[productID]
	return ok
}

// Search 返回与查询向量余弦相似度最高的 Top-K 商品。
// 查询向量会先被归一化；空索引或零查询向量返回空结果。
func (idx *Index) Search(query []float64, topK int) []Result {
	snap := idx.snapshot.Load()
	if len(snap.ids) == 0 || topK <= 0 {
		return nil
	}
	if len(query) != snap.dim || embedding.Norm(query) == 0 {
		return nil
	}
	return snap.search(embedding.Normalize(query), topK, -1)
}

// SearchByProduct 以索引内商品为查询点检索近邻，结果不含该商品自身。
// 商品不在索引中时返回 (nil, false)。
func (idx *Index) SearchByProduct(productID int64, topK int) ([]Result, bool) {
	snap := idx.snapshot.Load()
	pos, ok := snap.byID[productID]
	if !ok {
		return nil, false
	}
	if topK <= 0 {
		return nil, true
	}
	return snap.search(snap.vectors[pos], topK, pos), true
}

// search 对已归一化的查询向量做暴力内积检索；excludePos >= 0 时跳过该下标。
func (s *indexSnapshot) search(query []float64, topK int, excludePos int) []Result {
	scored := make([]Result, 0, len(s.ids))
	for i, vec := range s.vectors {
		if i == excludePos {
			continue
		}
		scored = append(scored, Result{
			ProductID: s.ids[i],
			Score:     embedding.Dot(query, vec),
		})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].ProductID < scored[j].ProductID
	})
	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored
}

// BuildFromStore 以嵌入存储的当前快照重建索引。
func (idx *Index) BuildFromStore(store *embedding.Store) error {
	if store == nil {
		return core.NewDomainError(core.ModuleVector, core.ErrorCodeInvalidInput, "embedding store is nil")
	}
	idx.Build(store.All())
	return nil
}
