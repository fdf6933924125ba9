package complement

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rushteam/shoprec/artifact"
	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/model"
	"github.com/rushteam/shoprec/taxonomy"
	"github.com/rushteam/shoprec/train"
)

// ArtifactName 类目互补模型在制品仓库中的名称。
const ArtifactName = "complement"

// minLabeledPairs 低于该标注量拒绝训练。
const minLabeledPairs = 10

// LabeledPair 人工标注的类目对。
type LabeledPair struct {
	CategoryID1   int64  `json:"category_id_1" yaml:"category_id_1"`
	CategoryID2   int64  `json:"category_id_2" yaml:"category_id_2"`
	Complementary bool   `json:"is_complementary" yaml:"is_complementary"`
	RelationType  string `json:"relation_type" yaml:"relation_type"`
}

// Related 是一个互补类目查询结果。
type Related struct {
	CategoryID   int64   `json:"category_id"`
	Name         string  `json:"category_name"`
	Score        float64 `json:"score"`
	RelationType string  `json:"relation_type"`
}

// TrainReport 一次训练的结果摘要。
type TrainReport struct {
	Version      string  `json:"version"`
	TrainSamples int     `json:"train_samples"`
	TestSamples  int     `json:"test_samples"`
	TrainAUC     float64 `json:"train_auc"`
	TestAUC      float64 `json:"test_auc"`
	MatrixSize   int     `json:"matrix_size"`
}

// Info 模型状态信息。
type Info struct {
	Status     string `json:"status"` // ready / not_trained
	Version    string `json:"version,omitempty"`
	MatrixSize int    `json:"matrix_size"`
	Categories int    `json:"categories"`
}

type pairKey struct{ a, b int64 }

func keyOf(a, b int64) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{a, b}
}

type state struct {
	clf     *model.LogReg
	matrix  map[pairKey]float64
	types   map[pairKey]string
	version string
}

// Model 类目互补模型。训练产出分类器与全量类目对得分矩阵，
// 整体作为单个 JSON 制品持久化；加载后查询只读矩阵。
type Model struct {
	categories *CategoryStore
	matcher    *taxonomy.Matcher
	registry   *artifact.Registry
	logger     *zap.Logger
	now        func() time.Time

	mu    sync.RWMutex
	state *state
}

// Option 配置 Model。
type Option func(*Model)

// WithLogger 设置日志器。
func WithLogger(logger *zap.Logger) Option {
	return func(m *Model) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithClock 注入时钟，测试用。
func WithClock(now func() time.Time) Option {
	return func(m *Model) {
		if now != nil {
			m.now = now
		}
	}
}

// NewModel 创建类目互补模型并尝试加载最新制品。
// 没有历史制品不是错误，模型保持未训练状态。
// matcher 可为 nil，此时关系类型推断全部返回 unrelated。
func NewModel(categories *CategoryStore, matcher *taxonomy.Matcher, registry *artifact.Registry, opts ...Option) (*Model, error) {
	m := &Model{
		categories: categories,
		matcher:    matcher,
		registry:   registry,
		logger:     zap.NewNop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if err := m.ReloadLatest(); err != nil && !core.IsNotFound(err) {
		return nil, err
	}
	return m, nil
}

// persisted 是制品的 JSON 形态。矩阵只存 a<=b 的规范方向。
type persisted struct {
	Classifier *model.LogReg `json:"classifier"`
	Matrix     []matrixEntry `json:"matrix"`
}

type matrixEntry struct {
	CategoryID1  int64   `json:"c1"`
	CategoryID2  int64   `json:"c2"`
	Score        float64 `json:"score"`
	RelationType string  `json:"relation_type"`
}

// ReloadLatest 从制品仓库加载最新版本并原子替换当前状态。
func (m *Model) ReloadLatest() error {
	payload, _, version, err := m.registry.LoadLatest(ArtifactName)
	if err != nil {
		return err
	}
	var p persisted
	if err := json.Unmarshal(payload, &p); err != nil {
		return core.NewDomainError(core.ModuleComplement, core.ErrorCodeInternalError,
			fmt.Sprintf("decode complement artifact %s: %v", version, err))
	}

	st := &state{
		clf:     p.Classifier,
		matrix:  make(map[pairKey]float64, len(p.Matrix)),
		types:   make(map[pairKey]string, len(p.Matrix)),
		version: version,
	}
	for _, e := range p.Matrix {
		k := keyOf(e.CategoryID1, e.CategoryID2)
		st.matrix[k] = e.Score
		st.types[k] = e.RelationType
	}

	m.mu.Lock()
	m.state = st
	m.mu.Unlock()
	m.logger.Info("complement model loaded",
		zap.String("version", version),
		zap.Int("matrix_size", len(st.matrix)))
	return nil
}

// Train 用标注类目对训练分类器，预计算全量矩阵并持久化为新版本制品。
// 有效标注（两侧类目都有向量）少于 10 对时返回 INSUFFICIENT_DATA。
func (m *Model) Train(ctx context.Context, pairs []LabeledPair) (*TrainReport, error) {
	var (
		X     [][]float64
		y     []float64
		kept  []LabeledPair
		found int
	)
	for _, p := range pairs {
		emb1, ok1 := m.categories.Embedding(p.CategoryID1)
		emb2, ok2 := m.categories.Embedding(p.CategoryID2)
		if !ok1 || !ok2 {
			m.logger.Warn("labeled pair skipped, category embedding missing",
				zap.Int64("category_id_1", p.CategoryID1),
				zap.Int64("category_id_2", p.CategoryID2))
			continue
		}
		X = append(X, PairFeatures(emb1, emb2))
		label := 0.0
		if p.Complementary {
			label = 1
			found++
		}
		y = append(y, label)
		kept = append(kept, p)
	}

	if len(X) < minLabeledPairs {
		return nil, core.NewDomainError(core.ModuleComplement, core.ErrorCodeInsufficientData,
			fmt.Sprintf("need at least %d labeled pairs with embeddings, got %d", minLabeledPairs, len(X)))
	}

	m.logger.Info("training complement classifier",
		zap.Int("pairs", len(X)),
		zap.Int("positive", found),
		zap.Int("negative", len(X)-found))

	trainIdx, testIdx := stratifiedSplit(y, 0.2, 42)
	clf, err := model.TrainLogReg(subsetX(X, trainIdx), subsetY(y, trainIdx), nil, model.LogRegParams{})
	if err != nil {
		return nil, err
	}

	trainAUC := splitAUC(clf, X, y, trainIdx)
	testAUC := trainAUC
	if len(testIdx) > 0 {
		testAUC = splitAUC(clf, X, y, testIdx)
	}

	st := m.buildState(clf, kept)
	version := artifact.NewVersion(m.now())
	st.version = version

	if err := m.save(st, version, len(trainIdx), len(testIdx), trainAUC, testAUC); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.state = st
	m.mu.Unlock()

	return &TrainReport{
		Version:      version,
		TrainSamples: len(trainIdx),
		TestSamples:  len(testIdx),
		TrainAUC:     trainAUC,
		TestAUC:      testAUC,
		MatrixSize:   len(st.matrix),
	}, nil
}

// buildState 预计算矩阵：标注对得分与标注关系优先，
// 其余全量组合由分类器打分、按场景配置推断关系类型。
func (m *Model) buildState(clf *model.LogReg, labeled []LabeledPair) *state {
	st := &state{
		clf:    clf,
		matrix: make(map[pairKey]float64),
		types:  make(map[pairKey]string),
	}
	for _, p := range labeled {
		k := keyOf(p.CategoryID1, p.CategoryID2)
		st.matrix[k] = m.scoreWith(clf, p.CategoryID1, p.CategoryID2)
		st.types[k] = p.RelationType
	}

	ids := m.categories.IDs()
	for i, a := range ids {
		for _, b := range ids[i+1:] {
			k := keyOf(a, b)
			if _, ok := st.matrix[k]; ok {
				continue
			}
			st.matrix[k] = m.scoreWith(clf, a, b)
			st.types[k] = m.inferRelationType(a, b)
		}
	}
	return st
}

func (m *Model) scoreWith(clf *model.LogReg, cat1, cat2 int64) float64 {
	emb1, ok1 := m.categories.Embedding(cat1)
	emb2, ok2 := m.categories.Embedding(cat2)
	if !ok1 || !ok2 {
		return 0
	}
	return clf.PredictVector(PairFeatures(emb1, emb2))
}

// inferRelationType 按场景配置推断两个类目的关系：
// 同场景同分组为 same_group；同场景不同分组按对方分组名的
// 关键词归为 tool / material，否则 related；不同场景为 unrelated。
func (m *Model) inferRelationType(cat1, cat2 int64) string {
	if m.matcher == nil {
		return "unrelated"
	}
	for _, s := range m.matcher.Scenarios() {
		var g1, g2 string
		for _, g := range s.Groups {
			if g.Contains(cat1) {
				g1 = g.Name
			}
			if g.Contains(cat2) {
				g2 = g.Name
			}
		}
		if g1 == "" || g2 == "" {
			continue
		}
		if g1 == g2 {
			return "same_group"
		}
		return classifyGroupName(g2)
	}
	return "unrelated"
}

var (
	toolKeywords     = []string{"工具", "滚筒", "刷", "铲", "tool", "roller", "brush"}
	materialKeywords = []string{"材料", "砂浆", "腻子", "涂料", "辅料", "material", "mix"}
)

func classifyGroupName(name string) string {
	lower := strings.ToLower(name)
	for _, kw := range toolKeywords {
		if strings.Contains(lower, kw) {
			return "tool"
		}
	}
	for _, kw := range materialKeywords {
		if strings.Contains(lower, kw) {
			return "material"
		}
	}
	return "related"
}

func (m *Model) save(st *state, version string, trainN, testN int, trainAUC, testAUC float64) error {
	entries := make([]matrixEntry, 0, len(st.matrix))
	for k, score := range st.matrix {
		entries = append(entries, matrixEntry{
			CategoryID1:  k.a,
			CategoryID2:  k.b,
			Score:        score,
			RelationType: st.types[k],
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CategoryID1 != entries[j].CategoryID1 {
			return entries[i].CategoryID1 < entries[j].CategoryID1
		}
		return entries[i].CategoryID2 < entries[j].CategoryID2
	})

	payload, err := json.Marshal(persisted{Classifier: st.clf, Matrix: entries})
	if err != nil {
		return err
	}
	meta := &artifact.Metadata{
		Version:      version,
		TrainedAt:    m.now(),
		TrainSamples: trainN,
		ValSamples:   testN,
		Metrics: map[string]float64{
			"train_auc": trainAUC,
			"test_auc":  testAUC,
		},
	}
	return m.registry.Save(ArtifactName, version, payload, meta)
}

// Predict 返回两个类目的互补得分。
// 优先查预计算矩阵；未命中时用分类器即时计算；无模型或缺向量返回 0。
func (m *Model) Predict(cat1, cat2 int64) float64 {
	m.mu.RLock()
	st := m.state
	m.mu.RUnlock()
	if st == nil {
		return 0
	}
	if score, ok := st.matrix[keyOf(cat1, cat2)]; ok {
		return score
	}
	if st.clf == nil {
		return 0
	}
	return m.scoreWith(st.clf, cat1, cat2)
}

// RelationType 返回两个类目的关系类型，未知返回 unknown。
func (m *Model) RelationType(cat1, cat2 int64) string {
	m.mu.RLock()
	st := m.state
	m.mu.RUnlock()
	if st == nil {
		return "unknown"
	}
	if t, ok := st.types[keyOf(cat1, cat2)]; ok {
		return t
	}
	return "unknown"
}

// GetComplementary 返回与指定类目互补度最高的 topK 个类目，
// 过滤低于 minScore 的结果。模型未训练时返回空。
func (m *Model) GetComplementary(categoryID int64, topK int, minScore float64) []Related {
	m.mu.RLock()
	st := m.state
	m.mu.RUnlock()
	if st == nil {
		return nil
	}

	var out []Related
	for k, score := range st.matrix {
		if score < minScore {
			continue
		}
		var other int64
		switch categoryID {
		case k.a:
			other = k.b
		case k.b:
			other = k.a
		default:
			continue
		}
		out = append(out, Related{
			CategoryID:   other,
			Name:         m.categories.Name(other),
			Score:        score,
			RelationType: st.types[k],
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].CategoryID < out[j].CategoryID
	})
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out
}

// Info 返回模型状态。
func (m *Model) Info() Info {
	m.mu.RLock()
	st := m.state
	m.mu.RUnlock()
	if st == nil {
		return Info{Status: "not_trained"}
	}
	cats := make(map[int64]struct{}, len(st.matrix)*2)
	for k := range st.matrix {
		cats[k.a] = struct{}{}
		cats[k.b] = struct{}{}
	}
	return Info{
		Status:     "ready",
		Version:    st.version,
		MatrixSize: len(st.matrix),
		Categories: len(cats),
	}
}

// stratifiedSplit 按类别分层切分样本下标，测试集占 fraction。
// 某一类别不足 5 个样本时该类不进测试集，保证训练集两类俱全。
func stratifiedSplit(y []float64, fraction float64, seed int64) (trainIdx, testIdx []int) {
	var pos, neg []int
	for i, label := range y {
		if label > 0.5 {
			pos = append(pos, i)
		} else {
			neg = append(neg, i)
		}
	}
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(pos), func(i, j int) { pos[i], pos[j] = pos[j], pos[i] })
	rng.Shuffle(len(neg), func(i, j int) { neg[i], neg[j] = neg[j], neg[i] })

	take := func(idx []int) (test, train []int) {
		n := int(float64(len(idx)) * fraction)
		if len(idx) < 5 {
			n = 0
		}
		return idx[:n], idx[n:]
	}
	posTest, posTrain := take(pos)
	negTest, negTrain := take(neg)

	trainIdx = append(append(trainIdx, posTrain...), negTrain...)
	testIdx = append(append(testIdx, posTest...), negTest...)
	sort.Ints(trainIdx)
	sort.Ints(testIdx)
	return trainIdx, testIdx
}

func subsetX(X [][]float64, idx []int) [][]float64 {
	out := make([][]float64, 0, len(idx))
	for _, i := range idx {
		out = append(out, X[i])
	}
	return out
}

func subsetY(y []float64, idx []int) []float64 {
	out := make([]float64, 0, len(idx))
	for _, i := range idx {
		out = append(out, y[i])
	}
	return out
}

func splitAUC(clf *model.LogReg, X [][]float64, y []float64, idx []int) float64 {
	labels := make([]float64, 0, len(idx))
	scores := make([]float64, 0, len(idx))
	for _, i := range idx {
		labels = append(labels, y[i])
		scores = append(scores, clf.PredictVector(X[i]))
	}
	return train.AUC(labels, scores)
}
