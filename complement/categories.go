// Package complement 实现类目互补模型：以类目向量为特征，
// 用逻辑回归判断两个类目是否“搭配购买”（例如底漆与滚筒）。
//
// 使用场景：
//   - 类目页“常一起购买的品类”推荐
//   - 场景配置缺失时的搭配发现兜底
//
// 设计原则：
//   - 类目向量 = 类目内有向量商品的均值向量
//   - 训练依赖人工标注的类目对，少于 10 对拒绝训练
//   - 全量类目对得分预计算成对称矩阵，线上查询 O(1)
package complement

import (
	"context"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/embedding"
)

// CategoryStore 持有类目向量快照。构建后只读。
type CategoryStore struct {
	embeddings map[int64][]float64
	names      map[int64]string
	counts     map[int64]int
	dim        int
}

// BuildCategoryStore 从商品目录与商品向量计算类目向量。
// 每个类目取其有向量商品的均值；无向量商品的类目不出现在结果中。
func BuildCategoryStore(ctx context.Context, catalog core.CatalogStore, store *embedding.Store) (*CategoryStore, error) {
	categories, err := catalog.ListCategories(ctx)
	if err != nil {
		return nil, err
	}

	vectors := store.All()
	ids := make([]int64, 0, len(vectors))
	for id := range vectors {
		ids = append(ids, id)
	}
	products, err := catalog.GetProducts(ctx, ids)
	if err != nil {
		return nil, err
	}

	sums := make(map[int64][]float64)
	counts := make(map[int64]int)
	for id, vec := range vectors {
		p := products[id]
		if p == nil {
			continue
		}
		sum, ok := sums[p.CategoryID]
		if !ok {
			sum = make([]float64, len(vec))
			sums[p.CategoryID] = sum
		}
		if len(sum) != len(vec) {
			continue
		}
		floats.Add(sum, vec)
		counts[p.CategoryID]++
	}

	cs := &CategoryStore{
		embeddings: make(map[int64][]float64, len(sums)),
		names:      make(map[int64]string, len(categories)),
		counts:     counts,
	}
	for _, c := range categories {
		cs.names[c.ID] = c.Name
	}
	for catID, sum := range sums {
		n := counts[catID]
		if n == 0 {
			continue
		}
		avg := make([]float64, len(sum))
		floats.AddScaled(avg, 1/float64(n), sum)
		cs.embeddings[catID] = avg
		cs.dim = len(avg)
	}
	return cs, nil
}

// Embedding 返回类目向量，不存在时返回 (nil, false)。
func (cs *CategoryStore) Embedding(categoryID int64) ([]float64, bool) {
	vec, ok := cs.embeddings[categoryID]
	return vec, ok
}

// Name 返回类目名，未知类目返回空串。
func (cs *CategoryStore) Name(categoryID int64) string {
	return cs.names[categoryID]
}

// IDs 返回有向量的类目 ID，升序。
func (cs *CategoryStore) IDs() []int64 {
	out := make([]int64, 0, len(cs.embeddings))
	for id := range cs.embeddings {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Len 返回有向量的类目数量。
func (cs *CategoryStore) Len() int { return len(cs.embeddings) }

// Dim 返回类目向量维度。
func (cs *CategoryStore) Dim() int { return cs.dim }

// Similarity 返回两个类目向量的余弦相似度；任一缺失返回 0。
func (cs *CategoryStore) Similarity(a, b int64) float64 {
	va, okA := cs.embeddings[a]
	vb, okB := cs.embeddings[b]
	if !okA || !okB || len(va) != len(vb) {
		return 0
	}
	return embedding.Cosine(va, vb)
}

// Stats 类目向量统计信息。
type Stats struct {
	Categories   int     `json:"categories"`
	Products     int     `json:"products"`
	AvgPerCat    float64 `json:"avg_products_per_category"`
	MinPerCat    int     `json:"min_products_per_category"`
	MaxPerCat    int     `json:"max_products_per_category"`
	EmbeddingDim int     `json:"embedding_dim"`
}

// Stats 返回当前快照的统计信息。
func (cs *CategoryStore) Stats() Stats {
	s := Stats{Categories: len(cs.embeddings), EmbeddingDim: cs.dim}
	first := true
	for id := range cs.embeddings {
		n := cs.counts[id]
		s.Products += n
		if first || n < s.MinPerCat {
			s.MinPerCat = n
		}
		if n > s.MaxPerCat {
			s.MaxPerCat = n
		}
		first = false
	}
	if s.Categories > 0 {
		s.AvgPerCat = float64(s.Products) / float64(s.Categories)
	}
	return s
}

// PairFeatures 构造类目对特征向量：
// [norm(a), norm(b), norm(a)-norm(b), norm(a)*norm(b), cos(a,b)]，
// 维度为 4*dim+1。两个向量都先做 L2 归一化。
func PairFeatures(emb1, emb2 []float64) []float64 {
	n := len(emb1)
	v1 := mat.NewVecDense(n, append([]float64(nil), emb1...))
	v2 := mat.NewVecDense(n, append([]float64(nil), emb2...))
	v1.ScaleVec(1/(mat.Norm(v1, 2)+1e-8), v1)
	v2.ScaleVec(1/(mat.Norm(v2, 2)+1e-8), v2)

	diff := mat.NewVecDense(n, nil)
	diff.SubVec(v1, v2)
	prod := mat.NewVecDense(n, nil)
	prod.MulElemVec(v1, v2)

	out := make([]float64, 0, 4*n+1)
	out = append(out, v1.RawVector().Data...)
	out = append(out, v2.RawVector().Data...)
	out = append(out, diff.RawVector().Data...)
	out = append(out, prod.RawVector().Data...)
	out = append(out, mat.Dot(v1, v2))
	return out
}
