package catalog

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rushteam/shoprec/core"
)

// MemoryCatalog 是内存实现的 CatalogStore，用于测试/开发/原型。
// 与 SQLiteCatalog 行为一致（反馈双写、共购无向对、Laplace 计数等），但进程重启后数据丢失。
type MemoryCatalog struct {
	mu            sync.RWMutex
	products      map[int64]*core.Product
	categories    map[int64]*core.Category
	embeddings    map[int64]core.ProductEmbedding
	pairEvents    []*core.FeedbackEvent
	pairStats     map[pairKey]*core.FeedbackStats
	scenarioStats map[scenarioKey]*core.FeedbackStats
	interactions  []*core.InteractionEvent
	orders        map[int64][]int64
	copurchase    map[pairKey]int64
}

type pairKey struct{ a, b int64 }

type scenarioKey struct {
	scenarioID string
	groupName  string
	productID  int64
}

// NewMemoryCatalog 创建空的内存目录。
func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{
		products:      make(map[int64]*core.Product),
		categories:    make(map[int64]*core.Category),
		embeddings:    make(map[int64]core.ProductEmbedding),
		pairStats:     make(map[pairKey]*core.FeedbackStats),
		scenarioStats: make(map[scenarioKey]*core.FeedbackStats),
		orders:        make(map[int64][]int64),
		copurchase:    make(map[pairKey]int64),
	}
}

func (m *MemoryCatalog) Name() string { return "memory" }

// Close 清空全部数据。
func (m *MemoryCatalog) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products = map[int64]*core.Product{}
	m.categories = map[int64]*core.Category{}
	return nil
}

// AddProduct 写入商品。
func (m *MemoryCatalog) AddProduct(p *core.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = p
}

// AddCategory 写入类目。
func (m *MemoryCatalog) AddCategory(c *core.Category) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.categories[c.ID] = c
}

// AddEmbedding 写入商品嵌入。
func (m *MemoryCatalog) AddEmbedding(pe core.ProductEmbedding) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.embeddings[pe.ProductID] = pe
}

// AddOrder 写入订单明细并累加下单计数。
func (m *MemoryCatalog) AddOrder(orderID int64, productIDs []int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[orderID] = append(m.orders[orderID], productIDs...)
	for _, pid := range productIDs {
		if p, ok := m.products[pid]; ok {
			p.Popularity.OrderCount++
		}
	}
}

func (m *MemoryCatalog) GetProduct(_ context.Context, id int64) (*core.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[id]
	if !ok {
		return nil, core.NewDomainError(core.ModuleCatalog, core.ErrorCodeNotFound,
			fmt.Sprintf("product not found: %d", id))
	}
	return p, nil
}

func (m *MemoryCatalog) GetProducts(_ context.Context, ids []int64) (map[int64]*core.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[int64]*core.Product, len(ids))
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (m *MemoryCatalog) GetProductsByCategories(_ context.Context, categoryIDs, excludeIDs []int64, limit int) ([]*core.Product, error) {
	if limit <= 0 {
		limit = 100
	}
	catSet := make(map[int64]bool, len(categoryIDs))
	for _, id := range categoryIDs {
		catSet[id] = true
	}
	excludeSet := make(map[int64]bool, len(excludeIDs))
	for _, id := range excludeIDs {
		excludeSet[id] = true
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*core.Product
	for _, p := range m.products {
		if p.Available && catSet[p.CategoryID] && !excludeSet[p.ID] {
			out = append(out, p)
		}
	}
	// 与 SQLite 实现一致：按商品 ID 升序截断
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryCatalog) SampleAvailableProducts(_ context.Context, n int) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []int64
	for id, p := range m.products {
		if p.Available {
			ids = append(ids, id)
		}
	}
	// map 遍历本身随机，排序后截断保证测试可复现
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if n > 0 && len(ids) > n {
		ids = ids[:n]
	}
	return ids, nil
}

func (m *MemoryCatalog) ListCategories(_ context.Context) ([]*core.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*core.Category, 0, len(m.categories))
	for _, c := range m.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryCatalog) RecordFeedback(_ context.Context, event *core.FeedbackEvent) error {
	if event == nil {
		return core.NewDomainError(core.ModuleCatalog, core.ErrorCodeInvalidInput, "feedback event is nil")
	}
	if !core.ValidatePolarity(event.Polarity) {
		return core.NewDomainError(core.ModuleCatalog, core.ErrorCodeInvalidInput,
			"invalid feedback polarity: "+string(event.Polarity))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *event
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	m.pairEvents = append(m.pairEvents, &cp)

	var stats *core.FeedbackStats
	if event.IsScenario() {
		key := scenarioKey{event.ScenarioID, event.GroupName, event.CandidateID}
		if m.scenarioStats[key] == nil {
			m.scenarioStats[key] = &core.FeedbackStats{}
		}
		stats = m.scenarioStats[key]
	} else {
		key := pairKey{event.AnchorID, event.CandidateID}
		if m.pairStats[key] == nil {
			m.pairStats[key] = &core.FeedbackStats{}
		}
		stats = m.pairStats[key]
	}
	if event.Polarity == core.PolarityPositive {
		stats.Positive++
	} else {
		stats.Negative++
	}
	return nil
}

func (m *MemoryCatalog) RecordInteraction(_ context.Context, event *core.InteractionEvent) error {
	if event == nil {
		return core.NewDomainError(core.ModuleCatalog, core.ErrorCodeInvalidInput, "interaction event is nil")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *event
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	m.interactions = append(m.interactions, &cp)

	p, ok := m.products[event.ProductID]
	if !ok {
		return nil
	}
	switch event.Kind {
	case core.InteractionImpression, core.InteractionClick:
		p.Popularity.ViewCount++
	case core.InteractionCartAdd:
		p.Popularity.CartAddCount++
	default:
		return core.NewDomainError(core.ModuleCatalog, core.ErrorCodeInvalidInput,
			"invalid interaction kind: "+string(event.Kind))
	}
	return nil
}

func (m *MemoryCatalog) GetPairFeedbackStats(_ context.Context, anchorID int64, candidateIDs []int64) (map[int64]core.FeedbackStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[int64]core.FeedbackStats, len(candidateIDs))
	for _, id := range candidateIDs {
		if stats, ok := m.pairStats[pairKey{anchorID, id}]; ok {
			out[id] = *stats
		}
	}
	return out, nil
}

func (m *MemoryCatalog) GetScenarioFeedbackStats(_ context.Context, scenarioID, groupName string, candidateIDs []int64) (map[int64]core.FeedbackStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[int64]core.FeedbackStats, len(candidateIDs))
	for _, id := range candidateIDs {
		if stats, ok := m.scenarioStats[scenarioKey{scenarioID, groupName, id}]; ok {
			out[id] = *stats
		}
	}
	return out, nil
}

func (m *MemoryCatalog) ListPairStats(_ context.Context, minPositive int64) ([]core.PairStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []core.PairStats
	for key, stats := range m.pairStats {
		if stats.Positive >= minPositive {
			out = append(out, core.PairStats{AnchorID: key.a, CandidateID: key.b, Stats: *stats})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Stats.Positive > out[j].Stats.Positive })
	return out, nil
}

func (m *MemoryCatalog) ListNegativePairStats(_ context.Context) ([]core.PairStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []core.PairStats
	for key, stats := range m.pairStats {
		if stats.Negative > stats.Positive {
			out = append(out, core.PairStats{AnchorID: key.a, CandidateID: key.b, Stats: *stats})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Stats.Negative > out[j].Stats.Negative })
	return out, nil
}

func (m *MemoryCatalog) GetCopurchaseStats(_ context.Context, anchorID int64, candidateIDs []int64) (map[int64]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[int64]int64, len(candidateIDs))
	for _, id := range candidateIDs {
		if count, ok := m.copurchase[orderedPair(anchorID, id)]; ok {
			out[id] = count
		}
	}
	return out, nil
}

func (m *MemoryCatalog) ListCopurchasePairs(_ context.Context, minCount int64, limit int) ([]core.CopurchasePair, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []core.CopurchasePair
	for key, count := range m.copurchase {
		if count >= minCount {
			out = append(out, core.CopurchasePair{ProductID1: key.a, ProductID2: key.b, Count: count})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		if out[i].ProductID1 != out[j].ProductID1 {
			return out[i].ProductID1 < out[j].ProductID1
		}
		return out[i].ProductID2 < out[j].ProductID2
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryCatalog) RebuildCopurchase(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.copurchase = make(map[pairKey]int64)
	for _, productIDs := range m.orders {
		unique := dedupe(productIDs)
		if len(unique) < 2 {
			continue
		}
		for i := 0; i < len(unique); i++ {
			for j := i + 1; j < len(unique); j++ {
				m.copurchase[pairKey{unique[i], unique[j]}]++
			}
		}
	}
	return nil
}

// LoadAll 实现 core.EmbeddingSource。
func (m *MemoryCatalog) LoadAll(_ context.Context) ([]core.ProductEmbedding, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.ProductEmbedding, 0, len(m.embeddings))
	for _, pe := range m.embeddings {
		out = append(out, pe)
	}
	return out, nil
}

func orderedPair(a, b int64) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{a, b}
}

var (
	_ core.CatalogStore    = (*MemoryCatalog)(nil)
	_ core.EmbeddingSource = (*MemoryCatalog)(nil)
)
