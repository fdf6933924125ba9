package embedding

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/rushteam/shoprec/core"
)

// Store 是商品嵌入向量的内存快照。
//
// 设计原则：
//   - 快照不可变：Reload 构建新快照后原子替换指针，读路径无锁
//   - 缺失容忍：没有向量的商品返回 (nil, false)，由调用方走中性默认值
type Store struct {
	source   core.EmbeddingSource
	logger   *zap.Logger
	snapshot atomic.Pointer[snapshot]
}

type snapshot struct {
	vectors map[int64][]float64
	dim     int
}

// StoreOption 配置 Store。
type StoreOption func(*Store)

// WithLogger 设置日志器，默认 zap.NewNop()。
func WithLogger(logger *zap.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore 创建嵌入存储。调用 Reload 前为空快照（所有查询返回未命中）。
func NewStore(source core.EmbeddingSource, opts ...StoreOption) *Store {
	s := &Store{
		source: source,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.snapshot.Store(&snapshot{vectors: map[int64][]float64{}})
	return s
}

// Reload 从数据源全量加载嵌入并原子替换快照。
// 加载失败时保留旧快照。
func (s *Store) Reload(ctx context.Context) error {
	if s.source == nil {
		return core.NewDomainError(core.ModuleVector, core.ErrorCodeUnavailable, "embedding source not configured")
	}

	rows, err := s.source.LoadAll(ctx)
	if err != nil {
		return err
	}

	vectors := make(map[int64][]float64, len(rows))
	dim := 0
	skipped := 0
	for _, row := range rows {
		if len(row.Vector) == 0 {
			skipped++
			continue
		}
		if dim == 0 {
			dim = len(row.Vector)
		}
		if len(row.Vector) != dim {
			skipped++
			continue
		}
		vectors[row.ProductID] = row.Vector
	}

	s.snapshot.Store(&snapshot{vectors: vectors, dim: dim})
	s.logger.Info("embedding snapshot reloaded",
		zap.Int("vectors", len(vectors)),
		zap.Int("dim", dim),
		zap.Int("skipped", skipped),
	)
	return nil
}

// Get 返回商品的嵌入向量。
func (s *Store) Get(productID int64) ([]float64, bool) {
	snap := s.snapshot.Load()
	v, ok := snap.vectors[productID]
	return v, ok
}

// BatchGet 批量返回嵌入向量，缺失的商品不出现在结果中。
func (s *Store) BatchGet(productIDs []int64) map[int64][]float64 {
	snap := s.snapshot.Load()
	out := make(map[int64][]float64, len(productIDs))
	for _, id := range productIDs {
		if v, ok := snap.vectors[id]; ok {
			out[id] = v
		}
	}
	return out
}

// All 返回当前快照的全部向量。返回值为快照内部 map，调用方不得修改。
func (s *Store) All() map[int64][]float64 {
	return s.snapshot.Load().vectors
}

// Dim 返回向量维度，空快照时为 0。
func (s *Store) Dim() int {
	return s.snapshot.Load().dim
}

// Len 返回快照中的向量数量。
func (s *Store) Len() int {
	return len(s.snapshot.Load().vectors)
}
