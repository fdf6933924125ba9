package filter

import (
	"context"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/pkg/dsl"
)

// RuleFilter 是基于 CEL 表达式的规则过滤器。
// 表达式返回 true 表示候选被过滤，例如：
//
//	candidate.price > 10000.0
//	label.recall_source == "semantic" && candidate.score < 0.3
//
// 表达式来自运营配置（config 包的 filter_rules），求值失败时放行该候选。
type RuleFilter struct {
	// Exprs 是 CEL 表达式列表，任一命中即过滤
	Exprs []string
}

// NewRuleFilter 创建规则过滤器。
func NewRuleFilter(exprs []string) *RuleFilter {
	return &RuleFilter{Exprs: exprs}
}

func (f *RuleFilter) Name() string {
	return "filter.rule"
}

func (f *RuleFilter) ShouldFilter(
	_ context.Context,
	rctx *core.RankContext,
	cand *core.Candidate,
) (bool, error) {
	if cand == nil || len(f.Exprs) == 0 {
		return false, nil
	}

	eval := dsl.NewEval(cand, rctx)
	for _, expr := range f.Exprs {
		if expr == "" {
			continue
		}
		hit, err := eval.Evaluate(expr)
		if err != nil {
			// 规则有误不应影响线上请求
			continue
		}
		if hit {
			return true, nil
		}
	}
	return false, nil
}
