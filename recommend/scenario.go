package recommend

import (
	"context"
	"fmt"
	"sort"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/embedding"
	"github.com/rushteam/shoprec/rank"
)

// GetScenarioRecommendations 返回场景推荐：
// 按购物车判定各分组的闭合状态，对未闭合分组逐组选品打分；
// 所有分组闭合时给出同类目不同品牌的替代建议。
func (s *Service) GetScenarioRecommendations(ctx context.Context, scenarioID string, cartProductIDs []int64, limitPerGroup int) (*ScenarioRecommendations, error) {
	scenario := s.matcher.Scenario(scenarioID)
	if scenario == nil {
		return nil, core.NewDomainError(core.ModuleTaxonomy, core.ErrorCodeNotFound,
			"scenario not found: "+scenarioID)
	}
	if limitPerGroup <= 0 {
		limitPerGroup = DefaultLimitPerGroup
	}

	cartProducts, err := s.catalog.GetProducts(ctx, cartProductIDs)
	if err != nil {
		return nil, err
	}

	statuses := s.matcher.AnalyzeGroups(scenario, cartProducts)

	out := &ScenarioRecommendations{
		Scenario: ScenarioRef{ID: scenario.ID, Name: scenario.Name},
	}
	for _, sc := range s.matcher.Scenarios() {
		out.AllScenarios = append(out.AllScenarios, ScenarioRef{ID: sc.ID, Name: sc.Name})
	}

	anyCompleted := false
	for _, st := range statuses {
		if st.Completed {
			anyCompleted = true
			cg := CompletedGroup{GroupName: st.GroupName, IsRequired: st.IsRequired}
			for _, p := range st.CartProducts {
				cg.Products = append(cg.Products, CartItemRef{ID: p.ID, Name: p.Name, Price: p.Price})
			}
			out.CompletedGroups = append(out.CompletedGroups, cg)
			continue
		}

		products, err := s.groupRecommendations(ctx, scenario, st.GroupName, st.CategoryIDs, cartProducts, limitPerGroup)
		if err != nil {
			return nil, err
		}
		if len(products) > 0 {
			out.Groups = append(out.Groups, GroupItems{
				GroupName:  st.GroupName,
				IsRequired: st.IsRequired,
				Products:   products,
			})
		}
	}

	// 全部分组闭合时推荐替代品
	if len(out.Groups) == 0 && anyCompleted {
		alternatives, err := s.alternatives(ctx, cartProducts, 5)
		if err != nil {
			return nil, err
		}
		if len(alternatives) > 0 {
			out.Groups = append(out.Groups, GroupItems{
				GroupName: "替代选择",
				Products:  alternatives,
			})
		}
	}

	// 进度只统计必需分组
	totalRequired := 0
	completedRequired := 0
	for _, st := range statuses {
		if !st.IsRequired {
			continue
		}
		totalRequired++
		if st.Completed {
			completedRequired++
		}
	}
	out.Progress = Progress{Completed: completedRequired, Total: totalRequired}
	if totalRequired > 0 {
		out.Progress.Percentage = completedRequired * 100 / totalRequired
	}
	return out, nil
}

// groupRecommendations 对一个未闭合分组选品打分。
// 候选上限 cfg.GroupCandidates，嵌入/反馈均为单次批量读取。
func (s *Service) groupRecommendations(
	ctx context.Context,
	scenario *core.Scenario,
	groupName string,
	categoryIDs []int64,
	cartProducts map[int64]*core.Product,
	limit int,
) ([]Item, error) {
	if len(categoryIDs) == 0 {
		return nil, nil
	}

	cartIDs := make([]int64, 0, len(cartProducts))
	for id := range cartProducts {
		cartIDs = append(cartIDs, id)
	}

	candidates, err := s.catalog.GetProductsByCategories(ctx, categoryIDs, cartIDs, s.cfg.GroupCandidates)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	candidateIDs := make([]int64, 0, len(candidates))
	for _, p := range candidates {
		candidateIDs = append(candidateIDs, p.ID)
	}

	vectors := s.embeddings.BatchGet(candidateIDs)
	cartVectors := s.embeddings.BatchGet(cartIDs)
	cartEmbeddings := make([][]float64, 0, len(cartVectors))
	for _, v := range cartVectors {
		cartEmbeddings = append(cartEmbeddings, v)
	}

	stats, err := s.feedback.ScenarioStats(ctx, scenario.ID, groupName, candidateIDs)
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(candidates))
	for _, p := range candidates {
		in := rank.GroupScoreInput{
			ScenarioStats:    stats[p.ID],
			DiscountFraction: p.DiscountFraction(),
		}
		if vec, ok := vectors[p.ID]; ok {
			for _, cartVec := range cartEmbeddings {
				if cos := embedding.Cosine(vec, cartVec); cos > in.MaxCartCosine {
					in.MaxCartCosine = cos
				}
			}
		}

		items = append(items, Item{
			ID:            p.ID,
			Name:          p.Name,
			Price:         p.Price,
			DiscountPrice: p.DiscountPrice,
			Picture:       p.Picture,
			CategoryName:  p.CategoryName,
			Score:         s.scorer.GroupScore(in),
			GroupName:     groupName,
			Reasons:       map[string]string{"group": rank.GroupReason(in)},
		})
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].Score > items[j].Score })
	if len(items) > limit {
		items = items[:limit]
	}
	for i := range items {
		items[i].Rank = i + 1
	}
	return items, nil
}

// alternatives 为闭合场景推荐同类目、不同品牌的替代商品。
func (s *Service) alternatives(ctx context.Context, cartProducts map[int64]*core.Product, limit int) ([]Item, error) {
	cartIDs := make([]int64, 0, len(cartProducts))
	for id := range cartProducts {
		cartIDs = append(cartIDs, id)
	}
	sort.Slice(cartIDs, func(i, j int) bool { return cartIDs[i] < cartIDs[j] })

	var out []Item
	for _, cartID := range cartIDs {
		p := cartProducts[cartID]
		if p == nil {
			continue
		}
		similar, err := s.catalog.GetProductsByCategories(ctx, []int64{p.CategoryID}, cartIDs, 5)
		if err != nil {
			return nil, err
		}
		for _, alt := range similar {
			if alt.Vendor == p.Vendor {
				continue
			}
			reason := "替代 " + p.Name
			if alt.Price < p.Price && p.Price > 0 {
				diff := int((1 - alt.Price/p.Price) * 100)
				reason = fmt.Sprintf("%s（省 %d%%）", reason, diff)
			}
			out = append(out, Item{
				ID:            alt.ID,
				Name:          alt.Name,
				Price:         alt.Price,
				DiscountPrice: alt.DiscountPrice,
				Picture:       alt.Picture,
				CategoryName:  alt.CategoryName,
				Score:         0.7,
				Reasons:       map[string]string{"alternative": reason},
			})
			if len(out) >= limit {
				break
			}
		}
		if len(out) >= limit {
			break
		}
	}
	for i := range out {
		out[i].Rank = i + 1
	}
	return out, nil
}

// DetectAndRecommend 按购物车自动识别场景并返回场景推荐。
// 购物车为空或未命中任何场景时回落到第一个声明的场景。
func (s *Service) DetectAndRecommend(ctx context.Context, cartProductIDs []int64) (*ScenarioRecommendations, error) {
	first := s.matcher.First()
	if first == nil {
		return nil, core.NewDomainError(core.ModuleTaxonomy, core.ErrorCodeNotFound, "no scenarios configured")
	}

	if len(cartProductIDs) == 0 {
		return s.GetScenarioRecommendations(ctx, first.ID, nil, DefaultLimitPerGroup)
	}

	cartProducts, err := s.catalog.GetProducts(ctx, cartProductIDs)
	if err != nil {
		return nil, err
	}
	categoryIDs := make([]int64, 0, len(cartProducts))
	for _, p := range cartProducts {
		categoryIDs = append(categoryIDs, p.CategoryID)
	}

	best, _ := s.matcher.DetectForCart(categoryIDs)
	scenarioID := first.ID
	if best != nil {
		scenarioID = best.ScenarioID
	}
	return s.GetScenarioRecommendations(ctx, scenarioID, cartProductIDs, DefaultLimitPerGroup)
}
