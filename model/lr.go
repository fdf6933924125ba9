package model

import (
	"encoding/json"
	"math"

	"github.com/rushteam/shoprec/core"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// LogReg 实现了带类别均衡的逻辑回归 (Logistic Regression)。
//
// 预测原理：
//  1. 按训练时统计的均值/标准差标准化输入向量；
//  2. 线性加权求和: z = Bias + sum(Weight_i * x_i)
//  3. Sigmoid 变换: P = 1 / (1 + exp(-z))
//
// 训练时按类别频率反比加权（balanced），避免正负样本失衡
// 把模型压成常数预测。
type LogReg struct {
	FeatureNames []string  `json:"feature_names,omitempty"`
	Weights      []float64 `json:"weights"`
	Bias         float64   `json:"bias"`
	Mean         []float64 `json:"mean"`
	Std          []float64 `json:"std"`
}

// LogRegParams 是训练超参数。零值字段会被填充默认值。
type LogRegParams struct {
	Iterations   int     `json:"iterations"`
	LearningRate float64 `json:"learning_rate"`
	L2           float64 `json:"l2"`
}

func (p LogRegParams) withDefaults() LogRegParams {
	if p.Iterations <= 0 {
		p.Iterations = 300
	}
	if p.LearningRate <= 0 {
		p.LearningRate = 0.1
	}
	if p.L2 < 0 {
		p.L2 = 0
	}
	return p
}

// TrainLogReg 用全量批梯度下降训练模型。y 取值 0/1。
func TrainLogReg(X [][]float64, y []float64, featureNames []string, params LogRegParams) (*LogReg, error) {
	if len(X) == 0 || len(X) != len(y) {
		return nil, core.NewDomainError(core.ModuleTrain, core.ErrorCodeInvalidInput, "训练样本与标签长度不一致")
	}
	dim := len(X[0])
	if featureNames != nil && len(featureNames) != dim {
		return nil, core.NewDomainError(core.ModuleTrain, core.ErrorCodeInvalidInput, "特征名数量与特征维度不一致")
	}
	params = params.withDefaults()

	n := len(X)
	pos := floats.Sum(y)
	neg := float64(n) - pos
	if pos == 0 || neg == 0 {
		return nil, core.NewDomainError(core.ModuleTrain, core.ErrorCodeInsufficientData, "训练集必须同时包含正负样本")
	}
	// balanced 类别权重：w_c = n / (2 * n_c)
	wPos := float64(n) / (2 * pos)
	wNeg := float64(n) / (2 * neg)

	m := &LogReg{
		FeatureNames: featureNames,
		Weights:      make([]float64, dim),
		Mean:         make([]float64, dim),
		Std:          make([]float64, dim),
	}
	col := make([]float64, n)
	for f := 0; f < dim; f++ {
		for i := range X {
			col[i] = X[i][f]
		}
		m.Mean[f] = stat.Mean(col, nil)
		m.Std[f] = math.Sqrt(stat.Variance(col, nil))
		if m.Std[f] == 0 || math.IsNaN(m.Std[f]) {
			m.Std[f] = 1
		}
	}

	Z := make([][]float64, n)
	for i := range X {
		Z[i] = m.standardize(X[i])
	}

	gradW := make([]float64, dim)
	for iter := 0; iter < params.Iterations; iter++ {
		for f := range gradW {
			gradW[f] = params.L2 * m.Weights[f]
		}
		gradB := 0.0
		for i := range Z {
			p := sigmoid(m.Bias + floats.Dot(m.Weights, Z[i]))
			w := wNeg
			if y[i] > 0 {
				w = wPos
			}
			g := w * (p - y[i])
			for f := range gradW {
				gradW[f] += g * Z[i][f]
			}
			gradB += g
		}
		scale := params.LearningRate / float64(n)
		floats.AddScaled(m.Weights, -scale, gradW)
		m.Bias -= scale * gradB
	}
	return m, nil
}

func (m *LogReg) standardize(x []float64) []float64 {
	z := make([]float64, len(x))
	for i := range x {
		z[i] = (x[i] - m.Mean[i]) / m.Std[i]
	}
	return z
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func (m *LogReg) Name() string { return "logreg" }

// Predict 按 FeatureNames 的顺序展开特征映射后预测。缺失特征按 0 处理。
func (m *LogReg) Predict(features map[string]float64) (float64, error) {
	if len(m.FeatureNames) != len(m.Weights) {
		return 0, core.NewDomainError(core.ModuleRank, core.ErrorCodeNotSupported, "模型未携带特征名，无法按映射预测")
	}
	x := make([]float64, len(m.FeatureNames))
	for i, name := range m.FeatureNames {
		x[i] = features[name]
	}
	return m.PredictVector(x), nil
}

// PredictVector 返回正类概率，范围 (0, 1)。
func (m *LogReg) PredictVector(x []float64) float64 {
	return sigmoid(m.Bias + floats.Dot(m.Weights, m.standardize(x)))
}

func (m *LogReg) MarshalBinary() ([]byte, error) {
	return json.Marshal(m)
}

func (m *LogReg) UnmarshalBinary(data []byte) error {
	return json.Unmarshal(data, m)
}

// LoadLogReg 从 JSON 字节流还原模型。
func LoadLogReg(data []byte) (*LogReg, error) {
	var m LogReg
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, core.NewDomainError(core.ModuleArtifact, core.ErrorCodeInvalidInput, "模型反序列化失败: "+err.Error())
	}
	return &m, nil
}

var _ RankModel = (*LogReg)(nil)
