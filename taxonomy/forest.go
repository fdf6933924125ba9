// Package taxonomy 提供类目树与场景模板的领域逻辑。
//
// 包含两部分：
//   - Forest：类目森林，支持根类目/祖先链查询，用于召回的跨根类目惩罚与特征计算
//   - Matcher：场景匹配器，根据商品或购物车匹配预定义的装修/施工场景
package taxonomy

import (
	"github.com/rushteam/shoprec/core"
)

// Forest 是类目森林的内存快照。
// 类目以 ParentID 组成多棵树，Forest 预计算每个类目的根与祖先链，查询为 O(1)。
//
// 设计原则：
//   - 不可变：构建后只读，可被多个 goroutine 并发查询
//   - 类目数据变更时重建整个 Forest，由持有方原子替换
type Forest struct {
	categories map[int64]*core.Category
	roots      map[int64]int64   // category ID -> root category ID
	ancestors  map[int64][]int64 // category ID -> 祖先链（含自身，根在末尾）
}

// NewForest 从类目列表构建 Forest。
// 父子关系成环或父类目缺失时，类目本身被视为根。
func NewForest(categories []*core.Category) *Forest {
	f := &Forest{
		categories: make(map[int64]*core.Category, len(categories)),
		roots:      make(map[int64]int64, len(categories)),
		ancestors:  make(map[int64][]int64, len(categories)),
	}
	for _, c := range categories {
		if c == nil {
			continue
		}
		f.categories[c.ID] = c
	}
	for id := range f.categories {
		f.resolve(id)
	}
	return f
}

// resolve 计算 id 的祖先链与根，并写入缓存。
func (f *Forest) resolve(id int64) {
	if _, ok := f.roots[id]; ok {
		return
	}

	chain := []int64{id}
	seen := map[int64]bool{id: true}
	cur := f.categories[id]
	for cur != nil && cur.ParentID != nil {
		parent, ok := f.categories[*cur.ParentID]
		if !ok || seen[parent.ID] {
			break
		}
		chain = append(chain, parent.ID)
		seen[parent.ID] = true
		cur = parent
	}

	root := chain[len(chain)-1]
	for _, c := range chain {
		if _, ok := f.roots[c]; !ok {
			f.roots[c] = root
		}
	}
	f.ancestors[id] = chain
}

// Category 返回类目，不存在时返回 nil。
func (f *Forest) Category(id int64) *core.Category {
	return f.categories[id]
}

// RootOf 返回类目所属的根类目 ID。类目未知时返回 (0, false)。
func (f *Forest) RootOf(id int64) (int64, bool) {
	root, ok := f.roots[id]
	return root, ok
}

// RootsOf 批量返回根类目 ID，未知类目不出现在结果中。
func (f *Forest) RootsOf(ids []int64) map[int64]int64 {
	out := make(map[int64]int64, len(ids))
	for _, id := range ids {
		if root, ok := f.roots[id]; ok {
			out[id] = root
		}
	}
	return out
}

// SameRoot 判断两个类目是否属于同一根类目。
// 任一类目未知时返回 false。
func (f *Forest) SameRoot(a, b int64) bool {
	ra, ok := f.roots[a]
	if !ok {
		return false
	}
	rb, ok := f.roots[b]
	if !ok {
		return false
	}
	return ra == rb
}

// Distance 返回两个类目间的距离特征值：
//   - 0：同根类目
//   - 2：不同根类目
//   - 3：任一类目未知
func (f *Forest) Distance(a, b int64) float64 {
	ra, okA := f.roots[a]
	rb, okB := f.roots[b]
	if !okA || !okB {
		return 3
	}
	if ra == rb {
		return 0
	}
	return 2
}

// Size 返回类目总数。
func (f *Forest) Size() int {
	return len(f.categories)
}
