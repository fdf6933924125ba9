package taxonomy

import (
	"sort"

	"github.com/rushteam/shoprec/core"
)

// Matcher 是场景匹配器：根据商品类目或购物车内容匹配预定义的场景模板。
//
// 使用场景：
//   - 商品详情页：判断锚点商品属于哪个场景，展示"完成你的项目"入口
//   - 首页/购物车页：根据购物车自动识别正在进行的场景，推荐缺失分组的商品
//
// 设计原则：
//   - 场景列表按声明顺序保存，匹配并列时取先声明者
//   - 构建后只读，可并发查询
type Matcher struct {
	scenarios []*core.Scenario
	byID      map[string]*core.Scenario
}

// NewMatcher 创建场景匹配器。场景顺序即声明顺序（决定并列时的优先级）。
func NewMatcher(scenarios []*core.Scenario) *Matcher {
	m := &Matcher{
		scenarios: make([]*core.Scenario, 0, len(scenarios)),
		byID:      make(map[string]*core.Scenario, len(scenarios)),
	}
	for _, s := range scenarios {
		if s == nil {
			continue
		}
		if _, exists := m.byID[s.ID]; exists {
			continue
		}
		m.scenarios = append(m.scenarios, s)
		m.byID[s.ID] = s
	}
	return m
}

// Scenarios 返回全部场景（声明顺序）。
func (m *Matcher) Scenarios() []*core.Scenario {
	return m.scenarios
}

// Scenario 按 ID 返回场景，不存在时返回 nil。
func (m *Matcher) Scenario(id string) *core.Scenario {
	return m.byID[id]
}

// First 返回声明顺序中的第一个场景（空购物车的兜底场景），无场景时返回 nil。
func (m *Matcher) First() *core.Scenario {
	if len(m.scenarios) == 0 {
		return nil
	}
	return m.scenarios[0]
}

// DetectForProduct 返回商品类目所属的第一个场景。
// 按场景声明顺序遍历，任一分组包含该类目即命中；无命中返回 nil。
func (m *Matcher) DetectForProduct(categoryID int64) *core.Scenario {
	for _, s := range m.scenarios {
		for i := range s.Groups {
			if s.Groups[i].Contains(categoryID) {
				return s
			}
		}
	}
	return nil
}

// DetectForCart 根据购物车类目匹配进行中的场景。
//
// 每个场景的进度 = 已闭合的必选分组数 / 必选分组总数；
// 可选分组不参与进度计算，因此进度恒在 [0, 1] 内。
// 返回进度最高的场景（并列时取先声明者）以及所有进度 > 0 的场景。
// 购物车为空或没有任何场景有进度时返回 (nil, nil)。
func (m *Matcher) DetectForCart(cartCategoryIDs []int64) (*core.ScenarioMatch, []*core.ScenarioMatch) {
	if len(cartCategoryIDs) == 0 {
		return nil, nil
	}

	var matches []*core.ScenarioMatch
	for _, s := range m.scenarios {
		match := m.matchScenario(s, cartCategoryIDs)
		if match.Progress > 0 {
			matches = append(matches, match)
		}
	}
	if len(matches) == 0 {
		return nil, nil
	}

	// 并列时保持声明顺序
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Progress > matches[j].Progress
	})
	return matches[0], matches
}

// matchScenario 计算单个场景对购物车的匹配进度。
func (m *Matcher) matchScenario(s *core.Scenario, cartCategoryIDs []int64) *core.ScenarioMatch {
	completedRequired := 0
	completedTotal := 0
	totalRequired := 0

	for i := range s.Groups {
		g := &s.Groups[i]
		if g.IsRequired {
			totalRequired++
		}
		satisfied := false
		for _, catID := range cartCategoryIDs {
			if g.Contains(catID) {
				satisfied = true
				break
			}
		}
		if satisfied {
			completedTotal++
			if g.IsRequired {
				completedRequired++
			}
		}
	}

	progress := 0.0
	if totalRequired > 0 {
		progress = float64(completedRequired) / float64(totalRequired)
	}

	return &core.ScenarioMatch{
		ScenarioID:      s.ID,
		ScenarioName:    s.Name,
		CompletedGroups: completedTotal,
		TotalGroups:     len(s.Groups),
		RequiredGroups:  totalRequired,
		Progress:        progress,
	}
}

// AnalyzeGroups 按 SortOrder 返回场景各分组的闭合状态。
// 分组被购物车中任一同类目商品闭合；CartProducts 记录闭合该分组的商品。
func (m *Matcher) AnalyzeGroups(s *core.Scenario, cartProducts map[int64]*core.Product) []core.GroupStatus {
	if s == nil {
		return nil
	}

	groups := s.SortedGroups()
	out := make([]core.GroupStatus, 0, len(groups))
	for i := range groups {
		g := &groups[i]
		var inGroup []*core.Product
		for _, p := range cartProducts {
			if p != nil && g.Contains(p.CategoryID) {
				inGroup = append(inGroup, p)
			}
		}
		// map 遍历无序，按商品 ID 排序保证输出稳定
		sort.Slice(inGroup, func(a, b int) bool { return inGroup[a].ID < inGroup[b].ID })

		out = append(out, core.GroupStatus{
			GroupName:    g.Name,
			IsRequired:   g.IsRequired,
			Completed:    len(inGroup) > 0,
			CategoryIDs:  g.CategoryIDs,
			CartProducts: inGroup,
		})
	}
	return out
}
