package dsl

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/rushteam/shoprec/core"
)

var (
	// celEnv 是全局的 CEL 环境，线程安全，可复用
	celEnv     *cel.Env
	celEnvOnce sync.Once

	// prgCache 缓存编译后的 CEL Program，key 为表达式文本
	prgCache sync.Map
)

// initCELEnv 初始化 CEL 环境，定义变量和函数
func initCELEnv() (*cel.Env, error) {
	env, err := cel.NewEnv(
		// 定义变量类型
		cel.Variable("candidate", cel.DynType),
		cel.Variable("label", cel.DynType),
		cel.Variable("rctx", cel.DynType),
	)
	return env, err
}

// getCELEnv 获取或创建 CEL 环境
func getCELEnv() (*cel.Env, error) {
	var err error
	celEnvOnce.Do(func() {
		celEnv, err = initCELEnv()
	})
	return celEnv, err
}

// Eval 是候选商品规则的 DSL 解释器，使用 CEL (Common Expression Language) 实现。
// CEL 是 Google 开发的表达式语言，具有类型安全、高性能、线程安全等特性。
//
// 表达式语法（CEL 标准语法）：
//   - 基础：label.recall_source == "semantic" / label.group != "walls"
//   - 数值：candidate.score > 0.7 / candidate.price <= 1000.0
//   - 逻辑：label.recall_source == "scenario" && candidate.score > 0.8
//   - 存在性：label.recall_source != null
//   - 包含：label.recall_source.contains("semantic")
//
// 示例：
//   - `candidate.has_discount && candidate.score > 0.6` → 折扣商品且分数 > 0.6
//   - `label.recall_source == "semantic"` → 仅语义召回的候选
//   - `candidate.category_id in rctx.cart_category_ids` → 候选分类已在购物车中
type Eval struct {
	cand *core.Candidate
	rctx *core.RankContext
	env  *cel.Env
}

// NewEval 创建一个新的 DSL 解释器。
// 表达式会被编译并按文本缓存，可以多次调用 Evaluate 方法。
func NewEval(cand *core.Candidate, rctx *core.RankContext) *Eval {
	env, _ := getCELEnv()
	return &Eval{
		cand: cand,
		rctx: rctx,
		env:  env,
	}
}

// Evaluate 解析并执行 DSL 表达式，返回布尔结果。
// 表达式使用 CEL (Common Expression Language) 语法。
//
// 注意：has(label.key) 可以用 label.key != null 替代
func (e *Eval) Evaluate(expr string) (bool, error) {
	if expr == "" {
		return true, nil
	}

	prg, err := e.compile(expr)
	if err != nil {
		return false, err
	}

	// 准备输入数据
	input := e.buildInput()

	// 执行表达式
	out, _, err := prg.Eval(input)
	if err != nil {
		// 对于不存在的 key，CEL 会返回错误
		// 应使用 label.key != null 来检查存在性，而不是直接访问
		return false, fmt.Errorf("eval error: %v", err)
	}

	// 转换为布尔值
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression must return boolean, got %T", out.Value())
	}

	return result, nil
}

// compile 编译表达式并缓存编译结果，同一表达式只编译一次
func (e *Eval) compile(expr string) (cel.Program, error) {
	if cached, ok := prgCache.Load(expr); ok {
		return cached.(cel.Program), nil
	}

	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %v", issues.Err())
	}

	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program error: %v", err)
	}

	prgCache.Store(expr, prg)
	return prg, nil
}

// buildInput 构建 CEL 表达式的输入数据
func (e *Eval) buildInput() map[string]interface{} {
	// label.recall_source 这类顶层访问直接返回 Label 的 value
	// 注意：CEL 访问不存在的 key 会报错，应使用 label.key != null 检查存在性
	labelAccessor := make(map[string]interface{})
	for k, v := range e.cand.Labels {
		labelAccessor[k] = v.Value
	}

	cand := map[string]interface{}{
		"id":       e.cand.ID,
		"score":    e.cand.Score,
		"ml_score": e.cand.MLScore,
		"group":    e.cand.GroupName,
		"features": e.cand.Features,
	}
	if p := e.cand.Product; p != nil {
		cand["name"] = p.Name
		cand["category_id"] = p.CategoryID
		cand["vendor"] = p.Vendor
		cand["price"] = p.Price
		cand["available"] = p.Available
		cand["has_discount"] = p.HasDiscount()
	}

	rctx := map[string]interface{}{
		"use_ranker": false,
		"params":     map[string]interface{}{},
	}
	if e.rctx != nil {
		rctx["use_ranker"] = e.rctx.UseRanker
		if e.rctx.Params != nil {
			rctx["params"] = e.rctx.Params
		}
		if e.rctx.Anchor != nil {
			rctx["anchor_id"] = e.rctx.Anchor.ID
			rctx["anchor_category_id"] = e.rctx.Anchor.CategoryID
		}
		if e.rctx.Scenario != nil {
			rctx["scenario_id"] = e.rctx.Scenario.ID
		}
		rctx["cart_ids"] = e.rctx.CartIDs()
		rctx["cart_category_ids"] = e.rctx.CartCategoryIDs()
	}

	return map[string]interface{}{
		"candidate": cand,
		"label":     labelAccessor,
		"rctx":      rctx,
	}
}
