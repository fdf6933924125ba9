package feast

import (
	"context"

	"go.uber.org/zap"

	"github.com/rushteam/shoprec/core"
)

// 商品统计特征的默认全名。
const (
	defaultEntityKey    = "product_id"
	defaultViewFeature  = "product_stats:view_count"
	defaultCartFeature  = "product_stats:cart_add_count"
	defaultOrderFeature = "product_stats:order_count"
)

// Provider 从 Feature Store 批量读取商品热度计数。
type Provider struct {
	client    Client
	project   string
	entityKey string
	features  [3]string // view, cart, order
	logger    *zap.Logger
}

// ProviderOption 配置 Provider。
type ProviderOption func(*Provider)

// WithProviderLogger 设置日志器。
func WithProviderLogger(logger *zap.Logger) ProviderOption {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithFeatureNames 覆盖三个计数特征的全名（view, cart, order）。
func WithFeatureNames(view, cart, order string) ProviderOption {
	return func(p *Provider) {
		p.features = [3]string{view, cart, order}
	}
}

// WithEntityKey 覆盖实体键名（默认 product_id）。
func WithEntityKey(key string) ProviderOption {
	return func(p *Provider) { p.entityKey = key }
}

// NewProvider 创建热度特征提供者。
func NewProvider(client Client, project string, opts ...ProviderOption) *Provider {
	p := &Provider{
		client:    client,
		project:   project,
		entityKey: defaultEntityKey,
		features:  [3]string{defaultViewFeature, defaultCartFeature, defaultOrderFeature},
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Fetch 批量读取商品热度计数；特征缺失的商品在结果中缺席。
func (p *Provider) Fetch(ctx context.Context, productIDs []int64) (map[int64]core.Popularity, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}

	entities := make([]Row, len(productIDs))
	for i, id := range productIDs {
		entities[i] = Row{p.entityKey: id}
	}
	resp, err := p.client.OnlineFeatures(ctx, &OnlineFeaturesRequest{
		Features: p.features[:],
		Entities: entities,
		Project:  p.project,
	})
	if err != nil {
		return nil, err
	}

	out := make(map[int64]core.Popularity, len(resp.Vectors))
	for i, fv := range resp.Vectors {
		if i >= len(productIDs) {
			break
		}
		pop := core.Popularity{
			ViewCount:    asCount(fv.Values[p.features[0]]),
			CartAddCount: asCount(fv.Values[p.features[1]]),
			OrderCount:   asCount(fv.Values[p.features[2]]),
		}
		if pop == (core.Popularity{}) {
			continue
		}
		out[productIDs[i]] = pop
	}
	return out, nil
}

// Enrich 把取到的热度计数写入商品；目录已有计数的商品不覆盖。
// 读取失败只记日志，商品按目录原值返回。
func (p *Provider) Enrich(ctx context.Context, products []*core.Product) {
	ids := make([]int64, 0, len(products))
	for _, prod := range products {
		if prod != nil && prod.Popularity == (core.Popularity{}) {
			ids = append(ids, prod.ID)
		}
	}
	if len(ids) == 0 {
		return
	}

	stats, err := p.Fetch(ctx, ids)
	if err != nil {
		p.logger.Warn("feature store unavailable, keeping catalog popularity",
			zap.Int("products", len(ids)),
			zap.Error(err))
		return
	}
	for _, prod := range products {
		if prod == nil || prod.Popularity != (core.Popularity{}) {
			continue
		}
		if pop, ok := stats[prod.ID]; ok {
			prod.Popularity = pop
		}
	}
}

func asCount(v interface{}) int64 {
	switch val := v.(type) {
	case int64:
		return val
	case float64:
		return int64(val)
	default:
		return 0
	}
}

// Catalog 在目录之上叠加热度富化：商品读取路径经过 Provider
// 补齐 view/cart/order 计数，其余操作透传。
type Catalog struct {
	core.CatalogStore
	provider *Provider
}

var _ core.CatalogStore = (*Catalog)(nil)

// NewCatalog 包装一个目录后端。
func NewCatalog(inner core.CatalogStore, provider *Provider) *Catalog {
	return &Catalog{CatalogStore: inner, provider: provider}
}

func (c *Catalog) GetProduct(ctx context.Context, id int64) (*core.Product, error) {
	p, err := c.CatalogStore.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	c.provider.Enrich(ctx, []*core.Product{p})
	return p, nil
}

func (c *Catalog) GetProducts(ctx context.Context, ids []int64) (map[int64]*core.Product, error) {
	m, err := c.CatalogStore.GetProducts(ctx, ids)
	if err != nil {
		return nil, err
	}
	batch := make([]*core.Product, 0, len(m))
	for _, p := range m {
		batch = append(batch, p)
	}
	c.provider.Enrich(ctx, batch)
	return m, nil
}

func (c *Catalog) GetProductsByCategories(ctx context.Context, categoryIDs, excludeIDs []int64, limit int) ([]*core.Product, error) {
	out, err := c.CatalogStore.GetProductsByCategories(ctx, categoryIDs, excludeIDs, limit)
	if err != nil {
		return nil, err
	}
	c.provider.Enrich(ctx, out)
	return out, nil
}
