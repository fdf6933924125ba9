// Package shoprec 是一个商品搭配推荐引擎（Shop Recommender）。
//
// 设计要点：
// - 两段式：召回（语义近邻 / 场景分组）→ 过滤 → 公式打分 → 可选学习排序重排
// - Pipeline-first: 推荐链路由 Node 串联（Recall → Filter → Rank → ReRank）
// - Labels-first: labels 全链路透传，支撑推荐理由与 ranking_method 观测
// - 信号缺失不降级为错误：无向量/无反馈/无共购按中性默认值参与打分
//
// 入口见 recommend.Service（门面）与 config.Build（按配置组装）。
package shoprec

import "github.com/rushteam/shoprec/pipeline"

// 轻量 facade：便于直接 import 根包使用核心抽象。
type Pipeline = pipeline.Pipeline
type Node = pipeline.Node
type Kind = pipeline.Kind

const (
	KindRecall      = pipeline.KindRecall
	KindFilter      = pipeline.KindFilter
	KindRank        = pipeline.KindRank
	KindReRank      = pipeline.KindReRank
	KindPostProcess = pipeline.KindPostProcess
)
