package rank

import (
	"sync/atomic"

	"github.com/rushteam/shoprec/artifact"
	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/feature"
	"github.com/rushteam/shoprec/model"
	"github.com/rushteam/shoprec/train"
	"go.uber.org/zap"
)

// Ranker 持有当前在线服务的排序模型。
// 模型整体放在一个不可变快照里，热更新时原子替换指针，
// 进行中的请求继续使用旧模型直到收尾。
type Ranker struct {
	registry *artifact.Registry
	logger   *zap.Logger
	current  atomic.Pointer[loadedModel]
}

type loadedModel struct {
	model    *model.GBRT
	version  string
	metadata *artifact.Metadata
}

type RankerOption func(*Ranker)

func WithRankerLogger(logger *zap.Logger) RankerOption {
	return func(r *Ranker) { r.logger = logger }
}

// NewRanker 创建模型持有者并尝试加载最新制品。
// 没有任何制品不算错误，此时 Ranker 空转、链路退回公式打分。
func NewRanker(registry *artifact.Registry, opts ...RankerOption) (*Ranker, error) {
	r := &Ranker{registry: registry, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.ReloadLatest(); err != nil && !core.IsNotFound(err) {
		return nil, err
	}
	return r, nil
}

// ReloadLatest 加载制品仓库中的最新版本并原子切换。
// 制品损坏时返回错误并保留当前模型。
func (r *Ranker) ReloadLatest() error {
	payload, meta, version, err := r.registry.LoadLatest(train.RankerArtifactName)
	if err != nil {
		if core.IsNotFound(err) {
			r.logger.Info("no ranker artifact, formula scoring only")
		}
		return err
	}
	m, err := model.LoadGBRT(payload)
	if err != nil {
		return err
	}
	r.current.Store(&loadedModel{model: m, version: version, metadata: meta})
	r.logger.Info("ranker model loaded",
		zap.String("version", version),
		zap.Int("trees", len(m.Trees)))
	return nil
}

// Set 直接安装一个刚训练出的模型（训练完成后免去一次磁盘往返）。
func (r *Ranker) Set(m *model.GBRT, version string, meta *artifact.Metadata) {
	r.current.Store(&loadedModel{model: m, version: version, metadata: meta})
}

// Model 返回当前模型与版本；未加载时 ok 为 false。
func (r *Ranker) Model() (m *model.GBRT, version string, ok bool) {
	cur := r.current.Load()
	if cur == nil {
		return nil, "", false
	}
	return cur.model, cur.version, true
}

// ModelInfo 是对外暴露的模型状态。
type ModelInfo struct {
	Status       string             `json:"status"` // "ready" / "no_model"
	Version      string             `json:"version,omitempty"`
	Metadata     *artifact.Metadata `json:"metadata,omitempty"`
	FeatureCount int                `json:"feature_count"`
	Features     []string           `json:"features"`
}

// Info 返回当前模型状态，未加载时 Status 为 "no_model"。
func (r *Ranker) Info() ModelInfo {
	info := ModelInfo{
		Status:       "no_model",
		FeatureCount: feature.Count(),
		Features:     feature.Names(),
	}
	if cur := r.current.Load(); cur != nil {
		info.Status = "ready"
		info.Version = cur.version
		info.Metadata = cur.metadata
	}
	return info
}
