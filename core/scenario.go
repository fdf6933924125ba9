package core

import "sort"

// ScenarioGroup 是场景内的一个类目分组（例如“底漆”“滚筒”）。
// CategoryIDs 为该分组覆盖的类目集合；IsRequired 标记分组是否为场景必需。
type ScenarioGroup struct {
	Name        string  `yaml:"name"`
	CategoryIDs []int64 `yaml:"category_ids"`
	IsRequired  bool    `yaml:"is_required"`
	SortOrder   int     `yaml:"sort_order"`
}

// Contains 判断类目是否属于该分组。
func (g *ScenarioGroup) Contains(categoryID int64) bool {
	for _, id := range g.CategoryIDs {
		if id == categoryID {
			return true
		}
	}
	return false
}

// Scenario 是一个命名的购买场景（例如“找平地面”），由有序分组构成。
// 场景与分组作为静态配置加载，服务期内不可变；声明顺序即匹配优先级。
type Scenario struct {
	ID          string          `yaml:"id"`
	Name        string          `yaml:"name"`
	Description string          `yaml:"description"`
	Groups      []ScenarioGroup `yaml:"groups"`
}

// SortedGroups 返回按 SortOrder 升序排列的分组副本。
func (s *Scenario) SortedGroups() []ScenarioGroup {
	out := make([]ScenarioGroup, len(s.Groups))
	copy(out, s.Groups)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SortOrder < out[j].SortOrder
	})
	return out
}

// RequiredGroupCount 返回必需分组数量。
func (s *Scenario) RequiredGroupCount() int {
	n := 0
	for _, g := range s.Groups {
		if g.IsRequired {
			n++
		}
	}
	return n
}

// ScenarioMatch 是购物车场景识别的结果。
// Progress = 已满足的必需分组数 / 必需分组总数。
type ScenarioMatch struct {
	ScenarioID      string
	ScenarioName    string
	CompletedGroups int
	TotalGroups     int
	RequiredGroups  int
	Progress        float64
}

// GroupStatus 是场景分组相对购物车的完成状态。
type GroupStatus struct {
	GroupName    string
	IsRequired   bool
	Completed    bool
	CategoryIDs  []int64
	CartProducts []*Product // 闭合该分组的购物车商品（未闭合时为空）
}
