package model

import (
	"encoding/json"
	"math"
	"sort"

	"github.com/rushteam/shoprec/core"
	"gonum.org/v1/gonum/stat"
)

// GBRT 实现了面向排序的梯度提升回归树 (Gradient Boosted Regression Trees)。
//
// 训练原理：
//  1. 样本按 query group（锚点商品）分组，同组内的正负样本构成偏序对；
//  2. 每一轮迭代用 pairwise 梯度（RankNet lambda）作为拟合目标，
//     训练一棵深度受限的回归树；
//  3. 累加所有树的输出（乘以学习率）得到最终分数。
//
// 输出分数只保证组内可比，不是概率，使用方需要自行归一化。
type GBRT struct {
	FeatureNames []string    `json:"feature_names"`
	Trees        []*treeNode `json:"trees"`
	Shrinkage    float64     `json:"shrinkage"`
	// Gain 是每个特征在所有分裂点上累计的方差增益，与 FeatureNames 对齐。
	Gain []float64 `json:"gain"`
}

// GBRTParams 是训练超参数。零值字段会被 withDefaults 填充。
type GBRTParams struct {
	Iterations     int     `json:"iterations"`
	LearningRate   float64 `json:"learning_rate"`
	MaxDepth       int     `json:"max_depth"`
	MinSamplesLeaf int     `json:"min_samples_leaf"`
}

// WithDefaults 返回填充了默认值的参数副本。
func (p GBRTParams) WithDefaults() GBRTParams {
	if p.Iterations <= 0 {
		p.Iterations = 100
	}
	if p.LearningRate <= 0 {
		p.LearningRate = 0.05
	}
	if p.MaxDepth <= 0 {
		p.MaxDepth = 6
	}
	if p.MinSamplesLeaf <= 0 {
		p.MinSamplesLeaf = 2
	}
	return p
}

type treeNode struct {
	Feature   int       `json:"f"`
	Threshold float64   `json:"t"`
	Left      *treeNode `json:"l,omitempty"`
	Right     *treeNode `json:"r,omitempty"`
	Value     float64   `json:"v"`
	Leaf      bool      `json:"leaf"`
}

func (n *treeNode) predict(x []float64) float64 {
	for !n.Leaf {
		if x[n.Feature] <= n.Threshold {
			n = n.Left
		} else {
			n = n.Right
		}
	}
	return n.Value
}

// TrainGBRT 在分组样本上训练排序模型。
// X 的每行是一个特征向量，y 是 0/1 标签，groups[i] 标识第 i 行所属的 query。
// 同一 group 的行必须连续排列。
func TrainGBRT(X [][]float64, y []float64, groups []int64, featureNames []string, params GBRTParams) (*GBRT, error) {
	if len(X) == 0 || len(X) != len(y) || len(X) != len(groups) {
		return nil, core.NewDomainError(core.ModuleTrain, core.ErrorCodeInvalidInput, "训练样本与标签、分组长度不一致")
	}
	dim := len(X[0])
	if len(featureNames) != dim {
		return nil, core.NewDomainError(core.ModuleTrain, core.ErrorCodeInvalidInput, "特征名数量与特征维度不一致")
	}
	params = params.WithDefaults()

	m := &GBRT{
		FeatureNames: featureNames,
		Shrinkage:    params.LearningRate,
		Gain:         make([]float64, dim),
	}

	bounds := groupBounds(groups)
	scores := make([]float64, len(X))
	lambdas := make([]float64, len(X))

	for iter := 0; iter < params.Iterations; iter++ {
		computeLambdas(y, scores, bounds, lambdas)

		idx := make([]int, len(X))
		for i := range idx {
			idx[i] = i
		}
		tree := fitTree(X, lambdas, idx, params.MaxDepth, params.MinSamplesLeaf, m.Gain)
		m.Trees = append(m.Trees, tree)

		for i := range X {
			scores[i] += params.LearningRate * tree.predict(X[i])
		}
	}
	return m, nil
}

// groupBounds 把连续排列的 group 切成 [start, end) 区间。
func groupBounds(groups []int64) [][2]int {
	var bounds [][2]int
	start := 0
	for i := 1; i <= len(groups); i++ {
		if i == len(groups) || groups[i] != groups[start] {
			bounds = append(bounds, [2]int{start, i})
			start = i
		}
	}
	return bounds
}

// computeLambdas 计算 RankNet 形式的 pairwise 梯度：
// 组内每一对 (正样本 i, 负样本 j)，i 的梯度增加 rho，j 减少 rho，
// 其中 rho = 1 / (1 + exp(s_i - s_j))。
func computeLambdas(y, scores []float64, bounds [][2]int, lambdas []float64) {
	for i := range lambdas {
		lambdas[i] = 0
	}
	for _, b := range bounds {
		for i := b[0]; i < b[1]; i++ {
			for j := b[0]; j < b[1]; j++ {
				if y[i] <= y[j] {
					continue
				}
				rho := 1 / (1 + math.Exp(scores[i]-scores[j]))
				lambdas[i] += rho
				lambdas[j] -= rho
			}
		}
	}
}

// fitTree 用方差最小化准则拟合一棵回归树，叶子值为样本梯度的均值。
func fitTree(X [][]float64, target []float64, idx []int, depth, minLeaf int, gain []float64) *treeNode {
	leaf := func() *treeNode {
		vals := make([]float64, len(idx))
		for i, id := range idx {
			vals[i] = target[id]
		}
		return &treeNode{Leaf: true, Value: stat.Mean(vals, nil)}
	}
	if depth == 0 || len(idx) < 2*minLeaf {
		return leaf()
	}

	bestFeature, bestThreshold, bestGain := -1, 0.0, 0.0
	dim := len(X[0])

	for f := 0; f < dim; f++ {
		sorted := make([]int, len(idx))
		copy(sorted, idx)
		sort.Slice(sorted, func(a, b int) bool { return X[sorted[a]][f] < X[sorted[b]][f] })

		sumLeft, cntLeft := 0.0, 0
		sumTotal := 0.0
		for _, id := range sorted {
			sumTotal += target[id]
		}

		for i := 0; i < len(sorted)-1; i++ {
			id := sorted[i]
			sumLeft += target[id]
			cntLeft++
			if X[id][f] == X[sorted[i+1]][f] {
				continue
			}
			cntRight := len(sorted) - cntLeft
			if cntLeft < minLeaf || cntRight < minLeaf {
				continue
			}
			sumRight := sumTotal - sumLeft
			// SSE 减少量等价于两侧均值平方和的增加量
			reduction := sumLeft*sumLeft/float64(cntLeft) + sumRight*sumRight/float64(cntRight) - sumTotal*sumTotal/float64(len(sorted))
			if reduction > bestGain {
				bestGain = reduction
				bestFeature = f
				bestThreshold = (X[id][f] + X[sorted[i+1]][f]) / 2
			}
		}
	}

	if bestFeature < 0 || bestGain <= 1e-12 {
		return leaf()
	}
	gain[bestFeature] += bestGain

	var left, right []int
	for _, id := range idx {
		if X[id][bestFeature] <= bestThreshold {
			left = append(left, id)
		} else {
			right = append(right, id)
		}
	}
	return &treeNode{
		Feature:   bestFeature,
		Threshold: bestThreshold,
		Left:      fitTree(X, target, left, depth-1, minLeaf, gain),
		Right:     fitTree(X, target, right, depth-1, minLeaf, gain),
	}
}

func (m *GBRT) Name() string { return "gbrt" }

// Predict 按 FeatureNames 的顺序展开特征映射后预测。缺失特征按 0 处理。
func (m *GBRT) Predict(features map[string]float64) (float64, error) {
	x := make([]float64, len(m.FeatureNames))
	for i, name := range m.FeatureNames {
		x[i] = features[name]
	}
	return m.PredictVector(x), nil
}

func (m *GBRT) PredictVector(x []float64) float64 {
	score := 0.0
	for _, t := range m.Trees {
		score += m.Shrinkage * t.predict(x)
	}
	return score
}

// FeatureImportances 返回按累计增益归一化的特征重要性，总和为 100。
// 所有增益为零时返回全零。
func (m *GBRT) FeatureImportances() map[string]float64 {
	total := 0.0
	for _, g := range m.Gain {
		total += g
	}
	out := make(map[string]float64, len(m.FeatureNames))
	for i, name := range m.FeatureNames {
		if total > 0 {
			out[name] = m.Gain[i] / total * 100
		} else {
			out[name] = 0
		}
	}
	return out
}

// MarshalBinary / UnmarshalBinary 以 JSON 形式序列化模型，供制品仓库落盘。
func (m *GBRT) MarshalBinary() ([]byte, error) {
	return json.Marshal(m)
}

func (m *GBRT) UnmarshalBinary(data []byte) error {
	return json.Unmarshal(data, m)
}

// LoadGBRT 从 JSON 字节流还原模型。
func LoadGBRT(data []byte) (*GBRT, error) {
	var m GBRT
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, core.NewDomainError(core.ModuleArtifact, core.ErrorCodeInvalidInput, "模型反序列化失败: "+err.Error())
	}
	return &m, nil
}

var _ RankModel = (*GBRT)(nil)
