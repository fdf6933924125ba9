package train

import (
	"context"
	"math/rand"
	"sort"
	"time"

	"github.com/rushteam/shoprec/artifact"
	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/model"
	"go.uber.org/zap"
)

// RankerArtifactName 是排序模型在制品仓库中的名字。
const RankerArtifactName = "ranker"

// minTrainSamples 低于此样本量拒绝训练，显式返回 INSUFFICIENT_DATA。
const minTrainSamples = 100

// TrainParams 汇总一次训练的全部参数。
type TrainParams struct {
	Generator GeneratorParams
	GBRT      model.GBRTParams
	// ValFraction 验证集占 query 组的比例，默认 0.2
	ValFraction float64
	// Seed 划分训练/验证组的随机种子，默认 42
	Seed int64
}

func (p TrainParams) withDefaults() TrainParams {
	if p.ValFraction <= 0 || p.ValFraction >= 1 {
		p.ValFraction = 0.2
	}
	if p.Seed == 0 {
		p.Seed = 42
	}
	return p
}

// Result 是一次成功训练的产出。
type Result struct {
	Model    *model.GBRT
	Version  string
	Metadata *artifact.Metadata
}

// Trainer 串起样本生成、模型拟合、质量评估与制品落盘。
type Trainer struct {
	generator *Generator
	registry  *artifact.Registry
	logger    *zap.Logger
	now       func() time.Time
}

type TrainerOption func(*Trainer)

func WithTrainerLogger(logger *zap.Logger) TrainerOption {
	return func(t *Trainer) { t.logger = logger }
}

// WithClock 替换时钟，测试用。
func WithClock(now func() time.Time) TrainerOption {
	return func(t *Trainer) { t.now = now }
}

func NewTrainer(generator *Generator, registry *artifact.Registry, opts ...TrainerOption) *Trainer {
	t := &Trainer{
		generator: generator,
		registry:  registry,
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Train 执行全量训练流程并保存新版本制品。
// 样本不足 100 条时不产出模型，返回 INSUFFICIENT_DATA。
func (t *Trainer) Train(ctx context.Context, params TrainParams) (*Result, error) {
	params = params.withDefaults()

	ds, err := t.generator.Generate(ctx, params.Generator)
	if err != nil {
		return nil, err
	}
	if ds.Len() < minTrainSamples {
		return nil, core.NewDomainError(core.ModuleTrain, core.ErrorCodeInsufficientData,
			"训练样本不足，需要至少 100 条，请先积累反馈或订单数据")
	}

	trainSet, valSet := splitByGroup(ds, params.ValFraction, params.Seed)
	t.logger.Info("dataset split",
		zap.Int("train_samples", trainSet.Len()),
		zap.Int("val_samples", valSet.Len()),
		zap.Int("train_groups", countGroups(trainSet.Groups)),
		zap.Int("val_groups", countGroups(valSet.Groups)))

	m, err := model.TrainGBRT(trainSet.X, trainSet.Y, trainSet.Groups, ds.FeatureNames, params.GBRT)
	if err != nil {
		return nil, err
	}

	metrics := evaluate(m, trainSet, valSet)
	t.logger.Info("ranker trained",
		zap.Float64("train_auc", metrics["train_auc"]),
		zap.Float64("val_auc", metrics["val_auc"]),
		zap.Float64("val_ndcg10", metrics["val_ndcg10"]))

	version := artifact.NewVersion(t.now())
	// 元数据记录生效的超参数而不是调用方传入的零值
	gbrtParams := params.GBRT.WithDefaults()
	meta := &artifact.Metadata{
		Version:      version,
		TrainedAt:    t.now(),
		TrainSamples: trainSet.Len(),
		ValSamples:   valSet.Len(),
		TrainGroups:  countGroups(trainSet.Groups),
		ValGroups:    countGroups(valSet.Groups),
		Metrics:      metrics,
		Hyperparameters: map[string]float64{
			"iterations":       float64(gbrtParams.Iterations),
			"learning_rate":    gbrtParams.LearningRate,
			"max_depth":        float64(gbrtParams.MaxDepth),
			"min_samples_leaf": float64(gbrtParams.MinSamplesLeaf),
		},
		TopFeatures: topFeatures(m, 10),
	}

	payload, err := m.MarshalBinary()
	if err != nil {
		return nil, core.NewDomainError(core.ModuleTrain, core.ErrorCodeInternalError, "模型序列化失败: "+err.Error())
	}
	if err := t.registry.Save(RankerArtifactName, version, payload, meta); err != nil {
		return nil, err
	}
	return &Result{Model: m, Version: version, Metadata: meta}, nil
}

// splitByGroup 按 query 组做 80/20 切分（同组样本永远落在同一侧），
// 然后把每侧样本按组号排序，保证组内行连续。
func splitByGroup(ds *Dataset, valFraction float64, seed int64) (*Dataset, *Dataset) {
	uniq := make([]int64, 0)
	seen := make(map[int64]struct{})
	for _, g := range ds.Groups {
		if _, ok := seen[g]; !ok {
			seen[g] = struct{}{}
			uniq = append(uniq, g)
		}
	}
	sort.Slice(uniq, func(i, j int) bool { return uniq[i] < uniq[j] })

	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(uniq), func(i, j int) { uniq[i], uniq[j] = uniq[j], uniq[i] })

	nVal := int(float64(len(uniq)) * valFraction)
	if nVal < 1 && len(uniq) > 1 {
		nVal = 1
	}
	valGroups := make(map[int64]struct{}, nVal)
	for _, g := range uniq[:nVal] {
		valGroups[g] = struct{}{}
	}

	trainIdx := make([]int, 0, len(ds.Groups))
	valIdx := make([]int, 0)
	for i, g := range ds.Groups {
		if _, ok := valGroups[g]; ok {
			valIdx = append(valIdx, i)
		} else {
			trainIdx = append(trainIdx, i)
		}
	}
	return subset(ds, trainIdx), subset(ds, valIdx)
}

// subset 取出指定行并按组号排成连续块。
func subset(ds *Dataset, idx []int) *Dataset {
	sort.SliceStable(idx, func(a, b int) bool { return ds.Groups[idx[a]] < ds.Groups[idx[b]] })
	out := &Dataset{FeatureNames: ds.FeatureNames}
	for _, i := range idx {
		out.X = append(out.X, ds.X[i])
		out.Y = append(out.Y, ds.Y[i])
		out.Groups = append(out.Groups, ds.Groups[i])
	}
	return out
}

func countGroups(groups []int64) int {
	seen := make(map[int64]struct{})
	for _, g := range groups {
		seen[g] = struct{}{}
	}
	return len(seen)
}

func evaluate(m *model.GBRT, trainSet, valSet *Dataset) map[string]float64 {
	predict := func(ds *Dataset) []float64 {
		scores := make([]float64, ds.Len())
		for i, x := range ds.X {
			scores[i] = m.PredictVector(x)
		}
		return scores
	}
	trainScores := predict(trainSet)
	valScores := predict(valSet)
	return map[string]float64{
		"train_auc":    AUC(trainSet.Y, trainScores),
		"val_auc":      AUC(valSet.Y, valScores),
		"train_ap":     AveragePrecision(trainSet.Y, trainScores),
		"val_ap":       AveragePrecision(valSet.Y, valScores),
		"train_ndcg10": NDCGAtK(trainSet.Y, trainScores, trainSet.Groups, 10),
		"val_ndcg10":   NDCGAtK(valSet.Y, valScores, valSet.Groups, 10),
	}
}

func topFeatures(m *model.GBRT, n int) []artifact.FeatureWeight {
	imp := m.FeatureImportances()
	out := make([]artifact.FeatureWeight, 0, len(imp))
	for name, v := range imp {
		out = append(out, artifact.FeatureWeight{Feature: name, Importance: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Importance != out[j].Importance {
			return out[i].Importance > out[j].Importance
		}
		return out[i].Feature < out[j].Feature
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
