package embedding

import (
	"context"
	"sort"
	"sync/atomic"

	"github.com/rushteam/shoprec/core"
)

// CategoryStore 维护类目嵌入：类目向量 = 类目下所有有嵌入商品向量的均值。
//
// 使用场景：
//   - 类目间语义相似度（互补模型的训练特征）
//   - 相似类目 Top-K 查询
type CategoryStore struct {
	snapshot atomic.Pointer[categorySnapshot]
}

type categorySnapshot struct {
	vectors map[int64][]float64
	names   map[int64]string
	counts  map[int64]int
}

// CategorySimilarity 是相似类目查询的结果项。
type CategorySimilarity struct {
	CategoryID int64
	Name       string
	Similarity float64
}

// NewCategoryStore 创建空的类目嵌入存储，调用 Compute 前所有查询未命中。
func NewCategoryStore() *CategoryStore {
	cs := &CategoryStore{}
	cs.snapshot.Store(&categorySnapshot{
		vectors: map[int64][]float64{},
		names:   map[int64]string{},
		counts:  map[int64]int{},
	})
	return cs
}

// Compute 按商品嵌入与商品归属重新计算所有类目向量，并原子替换快照。
// products 提供商品到类目的映射与类目名。
func (cs *CategoryStore) Compute(ctx context.Context, store *Store, products map[int64]*core.Product) error {
	if store == nil {
		return core.NewDomainError(core.ModuleVector, core.ErrorCodeInvalidInput, "embedding store is nil")
	}

	grouped := make(map[int64][][]float64)
	names := make(map[int64]string)
	for id, p := range products {
		if p == nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		vec, ok := store.Get(id)
		if !ok {
			continue
		}
		grouped[p.CategoryID] = append(grouped[p.CategoryID], vec)
		if p.CategoryName != "" {
			names[p.CategoryID] = p.CategoryName
		}
	}

	vectors := make(map[int64][]float64, len(grouped))
	counts := make(map[int64]int, len(grouped))
	for catID, vecs := range grouped {
		if mean := Mean(vecs); mean != nil {
			vectors[catID] = mean
			counts[catID] = len(vecs)
		}
	}

	cs.snapshot.Store(&categorySnapshot{vectors: vectors, names: names, counts: counts})
	return nil
}

// Get 返回类目向量。
func (cs *CategoryStore) Get(categoryID int64) ([]float64, bool) {
	snap := cs.snapshot.Load()
	v, ok := snap.vectors[categoryID]
	return v, ok
}

// All 返回全部类目向量。返回值为快照内部 map，调用方不得修改。
func (cs *CategoryStore) All() map[int64][]float64 {
	return cs.snapshot.Load().vectors
}

// Name 返回类目名，未知时返回空串。
func (cs *CategoryStore) Name(categoryID int64) string {
	return cs.snapshot.Load().names[categoryID]
}

// Len 返回有向量的类目数量。
func (cs *CategoryStore) Len() int {
	return len(cs.snapshot.Load().vectors)
}

// ProductCount 返回参与该类目向量计算的商品数。
func (cs *CategoryStore) ProductCount(categoryID int64) int {
	return cs.snapshot.Load().counts[categoryID]
}

// Similarity 计算两个类目的余弦相似度，任一类目无向量时返回 0。
func (cs *CategoryStore) Similarity(a, b int64) float64 {
	snap := cs.snapshot.Load()
	va, ok := snap.vectors[a]
	if !ok {
		return 0
	}
	vb, ok := snap.vectors[b]
	if !ok {
		return 0
	}
	return Cosine(va, vb)
}

// MostSimilar 返回与指定类目最相似的 Top-K 类目（相似度不低于 minSimilarity）。
func (cs *CategoryStore) MostSimilar(categoryID int64, topK int, minSimilarity float64) []CategorySimilarity {
	snap := cs.snapshot.Load()
	base, ok := snap.vectors[categoryID]
	if !ok {
		return nil
	}

	var out []CategorySimilarity
	for otherID, vec := range snap.vectors {
		if otherID == categoryID {
			continue
		}
		sim := Cosine(base, vec)
		if sim >= minSimilarity {
			out = append(out, CategorySimilarity{
				CategoryID: otherID,
				Name:       snap.names[otherID],
				Similarity: sim,
			})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out
}
