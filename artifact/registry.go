// Package artifact 提供模型制品的版本化落盘仓库。
//
// 设计原则：
//   - 制品一旦写入即不可变：每次保存产生新的时间戳版本
//   - 先写临时文件再 rename，避免读到半成品
//   - 每个制品旁边放一份 JSON 元数据 sidecar，记录训练指标
//   - 加载是全有或全无的：制品损坏时返回错误而不是半个模型
package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rushteam/shoprec/core"
	"go.uber.org/zap"
)

// Metadata 是制品的元数据 sidecar 内容。
type Metadata struct {
	Version         string             `json:"version"`
	TrainedAt       time.Time          `json:"trained_at"`
	TrainSamples    int                `json:"train_samples"`
	ValSamples      int                `json:"val_samples"`
	TrainGroups     int                `json:"train_groups"`
	ValGroups       int                `json:"val_groups"`
	Metrics         map[string]float64 `json:"metrics,omitempty"`
	Hyperparameters map[string]float64 `json:"hyperparameters,omitempty"`
	TopFeatures     []FeatureWeight    `json:"top_features,omitempty"`
}

// FeatureWeight 是一条特征重要性记录。
type FeatureWeight struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// Registry 管理单个目录下的全部制品。同一目录可以混放多种制品，
// 用 name 前缀区分（如 "ranker"、"complement"）。
type Registry struct {
	dir    string
	logger *zap.Logger
}

type RegistryOption func(*Registry)

func WithLogger(logger *zap.Logger) RegistryOption {
	return func(r *Registry) { r.logger = logger }
}

func NewRegistry(dir string, opts ...RegistryOption) (*Registry, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, core.NewDomainError(core.ModuleArtifact, core.ErrorCodeInternalError, "创建制品目录失败: "+err.Error())
	}
	r := &Registry{dir: dir, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// NewVersion 生成一个时间戳版本号。同一秒内的并发训练由调用方自行避免。
func NewVersion(now time.Time) string {
	return now.Format("20060102_150405")
}

func (r *Registry) payloadPath(name, version string) string {
	return filepath.Join(r.dir, fmt.Sprintf("%s_%s.json", name, version))
}

func (r *Registry) metadataPath(name, version string) string {
	return filepath.Join(r.dir, fmt.Sprintf("%s_%s_metadata.json", name, version))
}

// Save 原子落盘制品与元数据 sidecar。
func (r *Registry) Save(name, version string, payload []byte, meta *Metadata) error {
	if name == "" || version == "" {
		return core.NewDomainError(core.ModuleArtifact, core.ErrorCodeInvalidInput, "制品名与版本号不能为空")
	}
	if err := writeAtomic(r.payloadPath(name, version), payload); err != nil {
		return core.NewDomainError(core.ModuleArtifact, core.ErrorCodeInternalError, "写入制品失败: "+err.Error())
	}
	if meta != nil {
		data, err := json.MarshalIndent(meta, "", "  ")
		if err != nil {
			return core.NewDomainError(core.ModuleArtifact, core.ErrorCodeInternalError, "编码元数据失败: "+err.Error())
		}
		if err := writeAtomic(r.metadataPath(name, version), data); err != nil {
			return core.NewDomainError(core.ModuleArtifact, core.ErrorCodeInternalError, "写入元数据失败: "+err.Error())
		}
	}
	r.logger.Info("artifact saved",
		zap.String("name", name),
		zap.String("version", version),
		zap.Int("bytes", len(payload)))
	return nil
}

// writeAtomic 先写同目录临时文件再 rename。
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Versions 列出某个制品名下的所有版本，升序。
func (r *Registry) Versions(name string) ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, core.NewDomainError(core.ModuleArtifact, core.ErrorCodeInternalError, "读取制品目录失败: "+err.Error())
	}
	prefix := name + "_"
	var versions []string
	for _, e := range entries {
		fn := e.Name()
		if e.IsDir() || !strings.HasPrefix(fn, prefix) || !strings.HasSuffix(fn, ".json") {
			continue
		}
		v := strings.TrimSuffix(strings.TrimPrefix(fn, prefix), ".json")
		if strings.HasSuffix(v, "_metadata") || v == "" {
			continue
		}
		versions = append(versions, v)
	}
	sort.Strings(versions)
	return versions, nil
}

// LatestVersion 返回字典序最大的版本。时间戳版本号的字典序即时间序。
// 没有版本时返回空串。
func LatestVersion(versions []string) string {
	latest := ""
	for _, v := range versions {
		if v > latest {
			latest = v
		}
	}
	return latest
}

// Latest 解析某制品名下的最新版本。没有任何版本时返回 NOT_FOUND。
func (r *Registry) Latest(name string) (string, error) {
	versions, err := r.Versions(name)
	if err != nil {
		return "", err
	}
	latest := LatestVersion(versions)
	if latest == "" {
		return "", core.NewDomainError(core.ModuleArtifact, core.ErrorCodeNotFound, "没有可用的制品: "+name)
	}
	return latest, nil
}

// Load 读取指定版本的制品。元数据 sidecar 缺失不算错误，返回 nil Metadata。
func (r *Registry) Load(name, version string) ([]byte, *Metadata, error) {
	payload, err := os.ReadFile(r.payloadPath(name, version))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, core.NewDomainError(core.ModuleArtifact, core.ErrorCodeNotFound,
				fmt.Sprintf("制品不存在: %s@%s", name, version))
		}
		return nil, nil, core.NewDomainError(core.ModuleArtifact, core.ErrorCodeInternalError, "读取制品失败: "+err.Error())
	}
	meta, err := r.loadMetadata(name, version)
	if err != nil {
		return nil, nil, err
	}
	return payload, meta, nil
}

func (r *Registry) loadMetadata(name, version string) (*Metadata, error) {
	data, err := os.ReadFile(r.metadataPath(name, version))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, core.NewDomainError(core.ModuleArtifact, core.ErrorCodeInternalError, "读取元数据失败: "+err.Error())
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, core.NewDomainError(core.ModuleArtifact, core.ErrorCodeInvalidInput, "解析元数据失败: "+err.Error())
	}
	return &meta, nil
}

// LoadLatest 读取最新版本，返回 (payload, metadata, version)。
func (r *Registry) LoadLatest(name string) ([]byte, *Metadata, string, error) {
	version, err := r.Latest(name)
	if err != nil {
		return nil, nil, "", err
	}
	payload, meta, err := r.Load(name, version)
	if err != nil {
		return nil, nil, "", err
	}
	return payload, meta, version, nil
}
