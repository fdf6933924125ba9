package config

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rushteam/shoprec/artifact"
	"github.com/rushteam/shoprec/catalog"
	"github.com/rushteam/shoprec/complement"
	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/embedding"
	"github.com/rushteam/shoprec/feast"
	"github.com/rushteam/shoprec/feature"
	"github.com/rushteam/shoprec/feedback"
	"github.com/rushteam/shoprec/filter"
	"github.com/rushteam/shoprec/rank"
	"github.com/rushteam/shoprec/recommend"
	"github.com/rushteam/shoprec/store"
	"github.com/rushteam/shoprec/taxonomy"
	"github.com/rushteam/shoprec/train"
	"github.com/rushteam/shoprec/vector"
)

// BuildOption 配置组装过程。
type BuildOption func(*builder)

// WithLogger 设置全局日志器。
func WithLogger(logger *zap.Logger) BuildOption {
	return func(b *builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithCatalog 注入目录后端，跳过按配置创建（测试注入用）。
func WithCatalog(c core.CatalogStore) BuildOption {
	return func(b *builder) { b.catalog = c }
}

type builder struct {
	logger  *zap.Logger
	catalog core.CatalogStore
}

// Build 按配置组装推荐服务。返回的 cleanup 关闭目录与缓存连接。
func Build(ctx context.Context, cfg *Config, opts ...BuildOption) (*recommend.Service, func() error, error) {
	b := &builder{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(b)
	}
	logger := b.logger

	var closers []func() error
	cleanup := func() error {
		var first error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil && first == nil {
				first = err
			}
		}
		return first
	}
	fail := func(err error) (*recommend.Service, func() error, error) {
		_ = cleanup()
		return nil, nil, err
	}

	// 目录后端
	cat := b.catalog
	if cat == nil {
		switch cfg.Catalog.Driver {
		case CatalogSQLite:
			sqliteCat, err := catalog.NewSQLiteCatalog(cfg.Catalog.Path, catalog.WithLogger(logger))
			if err != nil {
				return fail(err)
			}
			closers = append(closers, sqliteCat.Close)
			cat = sqliteCat
		default:
			cat = catalog.NewMemoryCatalog()
		}
	}

	// 向量快照与近邻索引从未装饰的目录读取
	source, ok := cat.(core.EmbeddingSource)
	if !ok {
		return fail(core.NewDomainError(core.ModuleVector, core.ErrorCodeInvalidInput,
			"catalog backend does not expose embeddings"))
	}
	embeddings := embedding.NewStore(source, embedding.WithLogger(logger))
	if err := embeddings.Reload(ctx); err != nil {
		return fail(err)
	}
	index := vector.NewIndex(vector.WithLogger(logger))
	if err := index.BuildFromStore(embeddings); err != nil {
		return fail(err)
	}

	// 热度富化装饰器
	if cfg.Feast.Enabled {
		client, err := feast.NewGrpcClient(cfg.Feast.Host, cfg.Feast.Port, cfg.Feast.Project,
			feastClientOptions(cfg)...)
		if err != nil {
			return fail(fmt.Errorf("feast: %w", err))
		}
		closers = append(closers, client.Close)
		provider := feast.NewProvider(client, cfg.Feast.Project, feast.WithProviderLogger(logger))
		cat = feast.NewCatalog(cat, provider)
	}

	// 类目森林与场景模板
	cats, err := cat.ListCategories(ctx)
	if err != nil {
		return fail(err)
	}
	forest := taxonomy.NewForest(cats)

	scenarios := cfg.Scenarios
	if len(scenarios) == 0 && cfg.ScenariosFile != "" {
		scenarios, err = taxonomy.LoadScenarios(cfg.ScenariosFile)
		if err != nil {
			return fail(err)
		}
	}
	matcher := taxonomy.NewMatcher(scenarios)

	// 计数缓存
	var feedbackOpts []feedback.Option
	var kv core.Store
	if cfg.Cache.Driver == CacheRedis {
		redisStore, err := store.NewRedisStore(cfg.Cache.Addr, cfg.Cache.DB)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, redisStore.Close)
		kv = redisStore
		feedbackOpts = append(feedbackOpts,
			feedback.WithCache(kv),
			feedback.WithCacheTTL(cfg.Cache.TTLSeconds))
	}
	feedbackOpts = append(feedbackOpts, feedback.WithLogger(logger))
	fb := feedback.NewService(cat, feedbackOpts...)

	// 制品仓库、学习排序与训练
	registry, err := artifact.NewRegistry(cfg.Artifacts.Dir)
	if err != nil {
		return fail(err)
	}
	ranker, err := rank.NewRanker(registry, rank.WithRankerLogger(logger))
	if err != nil {
		return fail(err)
	}
	extractor := feature.NewExtractor(forest)
	generator := train.NewGenerator(cat, embeddings, extractor, train.WithGeneratorLogger(logger))
	trainer := train.NewTrainer(generator, registry, train.WithTrainerLogger(logger))

	// 类目向量（相似类目查询）
	categoryStore := embedding.NewCategoryStore()
	ids := make([]int64, 0, embeddings.Len())
	for id := range embeddings.All() {
		ids = append(ids, id)
	}
	if len(ids) > 0 {
		products, err := cat.GetProducts(ctx, ids)
		if err != nil {
			return fail(err)
		}
		if err := categoryStore.Compute(ctx, embeddings, products); err != nil {
			return fail(err)
		}
	}

	// 类目互补模型
	var compModel *complement.Model
	if cfg.Complement.Enabled {
		compCategories, err := complement.BuildCategoryStore(ctx, cat, embeddings)
		if err != nil {
			return fail(err)
		}
		compModel, err = complement.NewModel(compCategories, matcher, registry, complement.WithLogger(logger))
		if err != nil {
			return fail(err)
		}
	}

	// 候选过滤链
	var filters []filter.Filter
	if len(cfg.FilterRules) > 0 {
		filters = append(filters, filter.NewRuleFilter(cfg.FilterRules))
	}
	if cfg.Exposure.Enabled && kv != nil {
		adapter := filter.NewStoreAdapterWithBloomFilter(kv,
			filter.NewStoreBloomChecker(kv, 1_000_000, 0.01))
		filters = append(filters, filter.NewExposedFilter(adapter,
			cfg.Exposure.KeyPrefix, cfg.Exposure.WindowSeconds, cfg.Exposure.BloomDays))
	}

	svc := recommend.NewService(recommend.Deps{
		Catalog:    cat,
		Embeddings: embeddings,
		Index:      index,
		Forest:     forest,
		Matcher:    matcher,
		Feedback:   fb,
		Ranker:     ranker,
		Trainer:    trainer,
		Complement: compModel,
		Categories: categoryStore,
	},
		recommend.WithLogger(logger),
		recommend.WithScoringConfig(cfg.ScoringConfig()),
		recommend.WithFilters(filters...),
	)
	return svc, cleanup, nil
}

func feastClientOptions(cfg *Config) []feast.ClientOption {
	var opts []feast.ClientOption
	if cfg.Feast.StaticToken != "" {
		opts = append(opts, feast.WithStaticToken(cfg.Feast.StaticToken))
	}
	return opts
}
