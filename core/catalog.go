package core

import "context"

// CatalogStore 是商品目录与关系数据的领域接口（关系查询面）。
//
// 设计原则：
//   - 定义在领域层（core），由基础设施层（catalog）实现
//   - 统一候选生成/特征抽取/训练的数据访问接口，避免接口爆炸
//   - 所有候选集级别的读取必须是批量形态：一次排序请求对每类数据
//     至多一次查询（硬性性能约束，候选集可达数百）
//
// 实现：
//   - catalog.SQLiteStore 实现此接口（modernc.org/sqlite，生产）
//   - catalog.MemoryStore 实现此接口（测试/原型）
type CatalogStore interface {
	// Name 返回后端名称（用于日志/监控）
	Name() string

	// ========== 商品 ==========

	// GetProduct 按 ID 获取商品；不存在返回 NOT_FOUND
	GetProduct(ctx context.Context, id int64) (*Product, error)

	// GetProducts 批量获取商品，返回 map[id]*Product；缺失的 ID 直接缺席
	GetProducts(ctx context.Context, ids []int64) (map[int64]*Product, error)

	// GetProductsByCategories 按类目集合取在售商品，支持排除与截断
	GetProductsByCategories(ctx context.Context, categoryIDs []int64, excludeIDs []int64, limit int) ([]*Product, error)

	// SampleAvailableProducts 随机抽取 n 个在售商品 ID（hard negative 采样）
	SampleAvailableProducts(ctx context.Context, n int) ([]int64, error)

	// ========== 类目 ==========

	// ListCategories 返回全部类目（taxonomy 包据此建立森林索引）
	ListCategories(ctx context.Context) ([]*Category, error)

	// ========== 反馈 ==========

	// RecordFeedback 原子写入：事件追加 + 对应计数器 upsert 累加，
	// 两者在同一事务内，要么都生效要么都不生效。
	RecordFeedback(ctx context.Context, event *FeedbackEvent) error

	// RecordInteraction 追加一条原始交互事件（曝光/点击/加购）
	RecordInteraction(ctx context.Context, event *InteractionEvent) error

	// GetPairFeedbackStats 批量读取 (anchor, candidate) 计数器
	GetPairFeedbackStats(ctx context.Context, anchorID int64, candidateIDs []int64) (map[int64]FeedbackStats, error)

	// GetScenarioFeedbackStats 批量读取 (scenario, group, candidate) 计数器
	GetScenarioFeedbackStats(ctx context.Context, scenarioID, groupName string, candidateIDs []int64) (map[int64]FeedbackStats, error)

	// ListPairStats 列出正反馈数 >= minPositive 的全部商品对计数器（训练正样本）
	ListPairStats(ctx context.Context, minPositive int64) ([]PairStats, error)

	// ListNegativePairStats 列出负反馈数 > 正反馈数的商品对计数器（训练负样本）
	ListNegativePairStats(ctx context.Context) ([]PairStats, error)

	// ========== 共购 ==========

	// GetCopurchaseStats 批量读取锚点与候选集的共购计数（对称，任一方向命中即返回）
	GetCopurchaseStats(ctx context.Context, anchorID int64, candidateIDs []int64) (map[int64]int64, error)

	// ListCopurchasePairs 列出共购次数 >= minCount 的商品对（训练正样本），按次数降序截断
	ListCopurchasePairs(ctx context.Context, minCount int64, limit int) ([]CopurchasePair, error)

	// RebuildCopurchase 从订单行项目重建共购计数表（离线任务）
	RebuildCopurchase(ctx context.Context) error

	// Close 关闭连接/释放资源
	Close() error
}

// PairStats 是一行商品对反馈计数器。
type PairStats struct {
	AnchorID    int64
	CandidateID int64
	Stats       FeedbackStats
}

// CopurchasePair 是一对商品的共购计数（无序对，查询方向无关）。
type CopurchasePair struct {
	ProductID1 int64
	ProductID2 int64
	Count      int64
}

// EmbeddingSource 是向量数据源的领域接口。
// 向量由外部批处理任务产出，这里只做全量快照拉取，
// 用于（重）建 embedding.Store 与 vector.Index。
type EmbeddingSource interface {
	// LoadAll 拉取全部 (商品 ID, 向量, 可选源文本)
	LoadAll(ctx context.Context) ([]ProductEmbedding, error)
}

// ProductEmbedding 一条商品向量记录。
type ProductEmbedding struct {
	ProductID  int64
	Vector     []float64
	SourceText string
}
