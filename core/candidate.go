package core

import "github.com/rushteam/shoprec/pkg/utils"

// Candidate 是推荐链路中的统一承载结构：商品、分数、特征、标签。
// Labels 用于解释与溯源（召回来源/分组/推荐理由）；Score 用于排序决策。
type Candidate struct {
	ID      int64
	Product *Product

	// Score 当前阶段分数。公式打分写入 [0,1]，ML 重排后覆盖为 MLScore。
	Score float64

	// MLScore 学习排序模型归一化后的分数（[0.5,1.0]）；未重排时为 0。
	MLScore float64

	// GroupName 场景路径候选的来源分组；语义路径为空。
	GroupName string

	// Rank 最终列表中的名次（1 起），排序完成后回填。
	Rank int

	Features map[string]float64
	Labels   map[string]utils.Label
}

func NewCandidate(p *Product) *Candidate {
	return &Candidate{
		ID:       p.ID,
		Product:  p,
		Features: make(map[string]float64),
		Labels:   make(map[string]utils.Label),
	}
}

// PutLabel 写入 Label；同名 key 按默认 Merge 规则累积。
func (c *Candidate) PutLabel(key string, lbl utils.Label) {
	if c.Labels == nil {
		c.Labels = make(map[string]utils.Label)
	}
	if old, ok := c.Labels[key]; ok {
		c.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	c.Labels[key] = lbl
}

// PutReason 追加一条推荐理由标签（用于前端解释文案）。
func (c *Candidate) PutReason(kind, text string) {
	c.PutLabel("reason."+kind, utils.Label{Value: text, Source: kind})
}

// Reasons 按 kind -> text 返回全部推荐理由。
func (c *Candidate) Reasons() map[string]string {
	out := make(map[string]string)
	for k, lbl := range c.Labels {
		if len(k) > 7 && k[:7] == "reason." {
			out[k[7:]] = lbl.Value
		}
	}
	return out
}
