// Package feedback 提供推荐反馈的写入与计数查询。
//
// 写路径落到目录存储（事件 + 计数同事务），读路径可选挂 KV 热缓存
// （生产用 Redis，测试用内存实现），缓存按 key 失效。
package feedback

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rushteam/shoprec/core"
)

const defaultCacheTTL = 300 // 秒

// Service 是反馈服务。
type Service struct {
	catalog  core.CatalogStore
	cache    core.Store // 可选；nil 时直读目录存储
	cacheTTL int
	logger   *zap.Logger
}

// Option 配置 Service。
type Option func(*Service)

// WithCache 挂接计数热缓存（如 Redis）。
func WithCache(cache core.Store) Option {
	return func(s *Service) { s.cache = cache }
}

// WithCacheTTL 设置缓存 TTL（秒），默认 300。
func WithCacheTTL(seconds int) Option {
	return func(s *Service) {
		if seconds > 0 {
			s.cacheTTL = seconds
		}
	}
}

// WithLogger 设置日志器，默认 zap.NewNop()。
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService 创建反馈服务。
func NewService(catalog core.CatalogStore, opts ...Option) *Service {
	s := &Service{
		catalog:  catalog,
		cacheTTL: defaultCacheTTL,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordPair 记录"推荐是否有帮助"的商品对反馈。
func (s *Service) RecordPair(ctx context.Context, anchorID, candidateID int64, polarity core.Polarity, userID int64, feedbackContext string) error {
	if anchorID <= 0 || candidateID <= 0 {
		return core.NewDomainError(core.ModuleFeedback, core.ErrorCodeInvalidInput, "anchor and candidate ids are required")
	}
	if !core.ValidatePolarity(polarity) {
		return core.NewDomainError(core.ModuleFeedback, core.ErrorCodeInvalidInput, "invalid polarity: "+string(polarity))
	}

	err := s.catalog.RecordFeedback(ctx, &core.FeedbackEvent{
		AnchorID:    anchorID,
		CandidateID: candidateID,
		Polarity:    polarity,
		UserID:      userID,
		Context:     feedbackContext,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, pairCacheKey(anchorID, candidateID))
	s.logger.Debug("pair feedback recorded",
		zap.Int64("anchor_id", anchorID),
		zap.Int64("candidate_id", candidateID),
		zap.String("polarity", string(polarity)),
	)
	return nil
}

// RecordScenario 记录场景分组内的商品反馈。
func (s *Service) RecordScenario(ctx context.Context, scenarioID, groupName string, productID int64, polarity core.Polarity, userID int64) error {
	if scenarioID == "" || groupName == "" || productID <= 0 {
		return core.NewDomainError(core.ModuleFeedback, core.ErrorCodeInvalidInput, "scenario id, group name and product id are required")
	}
	if !core.ValidatePolarity(polarity) {
		return core.NewDomainError(core.ModuleFeedback, core.ErrorCodeInvalidInput, "invalid polarity: "+string(polarity))
	}

	err := s.catalog.RecordFeedback(ctx, &core.FeedbackEvent{
		ScenarioID:  scenarioID,
		GroupName:   groupName,
		CandidateID: productID,
		Polarity:    polarity,
		UserID:      userID,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, scenarioCacheKey(scenarioID, groupName, productID))
	return nil
}

// RecordInteraction 记录曝光/点击/加购交互。
func (s *Service) RecordInteraction(ctx context.Context, event *core.InteractionEvent) error {
	if event == nil || event.ProductID <= 0 {
		return core.NewDomainError(core.ModuleFeedback, core.ErrorCodeInvalidInput, "product id is required")
	}
	return s.catalog.RecordInteraction(ctx, event)
}

// PairStats 批量查询商品对反馈计数，优先走热缓存。
// 缓存未命中的部分回源目录存储并写回缓存；无反馈的商品对返回零值计数。
func (s *Service) PairStats(ctx context.Context, anchorID int64, candidateIDs []int64) (map[int64]core.FeedbackStats, error) {
	if len(candidateIDs) == 0 {
		return map[int64]core.FeedbackStats{}, nil
	}
	if s.cache == nil {
		return s.catalog.GetPairFeedbackStats(ctx, anchorID, candidateIDs)
	}

	out := make(map[int64]core.FeedbackStats, len(candidateIDs))
	keys := make([]string, len(candidateIDs))
	keyToID := make(map[string]int64, len(candidateIDs))
	for i, id := range candidateIDs {
		keys[i] = pairCacheKey(anchorID, id)
		keyToID[keys[i]] = id
	}

	cached, err := s.cache.BatchGet(ctx, keys)
	if err != nil {
		// 缓存故障时直接回源
		s.logger.Warn("feedback cache read failed", zap.Error(err))
		cached = nil
	}

	var misses []int64
	for key, id := range keyToID {
		raw, ok := cached[key]
		if !ok {
			misses = append(misses, id)
			continue
		}
		var stats core.FeedbackStats
		if err := json.Unmarshal(raw, &stats); err != nil {
			misses = append(misses, id)
			continue
		}
		out[id] = stats
	}

	if len(misses) > 0 {
		fresh, err := s.catalog.GetPairFeedbackStats(ctx, anchorID, misses)
		if err != nil {
			return nil, err
		}
		writeback := make(map[string][]byte, len(misses))
		for _, id := range misses {
			stats := fresh[id] // 无反馈时为零值，同样缓存防穿透
			out[id] = stats
			if raw, err := json.Marshal(stats); err == nil {
				writeback[pairCacheKey(anchorID, id)] = raw
			}
		}
		if err := s.cache.BatchSet(ctx, writeback, s.cacheTTL); err != nil {
			s.logger.Warn("feedback cache write failed", zap.Error(err))
		}
	}
	return out, nil
}

// ScenarioStats 批量查询场景分组反馈计数，优先走热缓存。
func (s *Service) ScenarioStats(ctx context.Context, scenarioID, groupName string, candidateIDs []int64) (map[int64]core.FeedbackStats, error) {
	if len(candidateIDs) == 0 {
		return map[int64]core.FeedbackStats{}, nil
	}
	if s.cache == nil {
		return s.catalog.GetScenarioFeedbackStats(ctx, scenarioID, groupName, candidateIDs)
	}

	out := make(map[int64]core.FeedbackStats, len(candidateIDs))
	var misses []int64
	keys := make([]string, len(candidateIDs))
	keyToID := make(map[string]int64, len(candidateIDs))
	for i, id := range candidateIDs {
		keys[i] = scenarioCacheKey(scenarioID, groupName, id)
		keyToID[keys[i]] = id
	}

	cached, err := s.cache.BatchGet(ctx, keys)
	if err != nil {
		s.logger.Warn("feedback cache read failed", zap.Error(err))
		cached = nil
	}
	for key, id := range keyToID {
		raw, ok := cached[key]
		if !ok {
			misses = append(misses, id)
			continue
		}
		var stats core.FeedbackStats
		if err := json.Unmarshal(raw, &stats); err != nil {
			misses = append(misses, id)
			continue
		}
		out[id] = stats
	}

	if len(misses) > 0 {
		fresh, err := s.catalog.GetScenarioFeedbackStats(ctx, scenarioID, groupName, misses)
		if err != nil {
			return nil, err
		}
		writeback := make(map[string][]byte, len(misses))
		for _, id := range misses {
			stats := fresh[id]
			out[id] = stats
			if raw, err := json.Marshal(stats); err == nil {
				writeback[scenarioCacheKey(scenarioID, groupName, id)] = raw
			}
		}
		if err := s.cache.BatchSet(ctx, writeback, s.cacheTTL); err != nil {
			s.logger.Warn("feedback cache write failed", zap.Error(err))
		}
	}
	return out, nil
}

// invalidate 写后失效缓存，缓存故障只记日志不阻塞写入。
func (s *Service) invalidate(ctx context.Context, key string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, key); err != nil {
		s.logger.Warn("feedback cache invalidation failed", zap.String("key", key), zap.Error(err))
	}
}

func pairCacheKey(anchorID, candidateID int64) string {
	return fmt.Sprintf("fb:pair:%d:%d", anchorID, candidateID)
}

func scenarioCacheKey(scenarioID, groupName string, productID int64) string {
	return fmt.Sprintf("fb:scenario:%s:%s:%d", scenarioID, groupName, productID)
}
