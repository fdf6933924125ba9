// Package catalog 提供商品目录与关系数据的持久化访问。
//
// SQLite 实现承载商品、类目、嵌入、反馈事件与计数、交互、共购统计等表；
// 反馈写入采用"事件 + 计数"双写事务，保证计数与明细一致。
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/rushteam/shoprec/core"
)

// SQLiteCatalog 是 core.CatalogStore 的 SQLite 实现。
// 同时实现 core.EmbeddingSource，供嵌入存储全量加载向量。
type SQLiteCatalog struct {
	db     *sql.DB
	logger *zap.Logger
}

// SQLiteOption 配置 SQLiteCatalog。
type SQLiteOption func(*SQLiteCatalog)

// WithLogger 设置日志器，默认 zap.NewNop()。
func WithLogger(logger *zap.Logger) SQLiteOption {
	return func(c *SQLiteCatalog) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewSQLiteCatalog 打开（或创建）SQLite 数据库并初始化表结构。
// path 为 ":memory:" 时使用内存库（测试场景）。
func NewSQLiteCatalog(path string, opts ...SQLiteOption) (*SQLiteCatalog, error) {
	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_busy_timeout=10000&_journal_mode=WAL&_synchronous=NORMAL", path)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite 写入串行化，连接数保持低位即可
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect database: %w", err)
	}

	c := &SQLiteCatalog{db: db, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}

	if err := c.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return c, nil
}

func (c *SQLiteCatalog) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS categories (
		id        INTEGER PRIMARY KEY,
		parent_id INTEGER,
		name      TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS products (
		id             INTEGER PRIMARY KEY,
		name           TEXT NOT NULL,
		category_id    INTEGER NOT NULL,
		vendor         TEXT DEFAULT '',
		price          REAL NOT NULL DEFAULT 0,
		discount_price REAL,
		picture        TEXT DEFAULT '',
		available      INTEGER NOT NULL DEFAULT 1,
		view_count     INTEGER NOT NULL DEFAULT 0,
		cart_add_count INTEGER NOT NULL DEFAULT 0,
		order_count    INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_products_category ON products(category_id);

	CREATE TABLE IF NOT EXISTS product_embeddings (
		product_id  INTEGER PRIMARY KEY,
		embedding   TEXT NOT NULL,
		source_text TEXT DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS product_pair_feedback (
		id                     INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id                INTEGER,
		main_product_id        INTEGER NOT NULL,
		recommended_product_id INTEGER NOT NULL,
		feedback_type          TEXT NOT NULL,
		context                TEXT DEFAULT '',
		created_at             DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS pair_feedback_stats (
		main_product_id        INTEGER NOT NULL,
		recommended_product_id INTEGER NOT NULL,
		positive_count         INTEGER NOT NULL DEFAULT 0,
		negative_count         INTEGER NOT NULL DEFAULT 0,
		updated_at             DATETIME NOT NULL,
		PRIMARY KEY (main_product_id, recommended_product_id)
	);

	CREATE TABLE IF NOT EXISTS scenario_feedback (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id       INTEGER,
		scenario_id   TEXT NOT NULL,
		group_name    TEXT NOT NULL,
		product_id    INTEGER NOT NULL,
		feedback_type TEXT NOT NULL,
		created_at    DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS scenario_feedback_stats (
		scenario_id    TEXT NOT NULL,
		group_name     TEXT NOT NULL,
		product_id     INTEGER NOT NULL,
		positive_count INTEGER NOT NULL DEFAULT 0,
		negative_count INTEGER NOT NULL DEFAULT 0,
		updated_at     DATETIME NOT NULL,
		PRIMARY KEY (scenario_id, group_name, product_id)
	);

	CREATE TABLE IF NOT EXISTS interactions (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		product_id INTEGER NOT NULL,
		anchor_id  INTEGER DEFAULT 0,
		kind       TEXT NOT NULL,
		user_id    INTEGER,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS order_items (
		order_id   INTEGER NOT NULL,
		product_id INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_order_items_order ON order_items(order_id);

	CREATE TABLE IF NOT EXISTS copurchase_stats (
		product_id_1     INTEGER NOT NULL,
		product_id_2     INTEGER NOT NULL,
		copurchase_count INTEGER NOT NULL DEFAULT 0,
		updated_at       DATETIME NOT NULL,
		PRIMARY KEY (product_id_1, product_id_2)
	);
	`
	_, err := c.db.Exec(schema)
	return err
}

func (c *SQLiteCatalog) Name() string { return "sqlite" }

// Close 关闭数据库连接。
func (c *SQLiteCatalog) Close() error {
	return c.db.Close()
}

const productColumns = `
	p.id, p.name, p.category_id, COALESCE(c.name, ''), p.vendor, p.price,
	p.discount_price, p.picture, p.available,
	p.view_count, p.cart_add_count, p.order_count`

func scanProduct(scanner interface{ Scan(...any) error }) (*core.Product, error) {
	var (
		p         core.Product
		discount  sql.NullFloat64
		available int64
	)
	err := scanner.Scan(
		&p.ID, &p.Name, &p.CategoryID, &p.CategoryName, &p.Vendor, &p.Price,
		&discount, &p.Picture, &available,
		&p.Popularity.ViewCount, &p.Popularity.CartAddCount, &p.Popularity.OrderCount,
	)
	if err != nil {
		return nil, err
	}
	if discount.Valid {
		v := discount.Float64
		p.DiscountPrice = &v
	}
	p.Available = available != 0
	return &p, nil
}

// GetProduct 按 ID 查询商品，不存在时返回 NOT_FOUND。
func (c *SQLiteCatalog) GetProduct(ctx context.Context, id int64) (*core.Product, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products p
		LEFT JOIN categories c ON p.category_id = c.id
		WHERE p.id = ?`, id)

	p, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return nil, core.NewDomainError(core.ModuleCatalog, core.ErrorCodeNotFound,
			fmt.Sprintf("product not found: %d", id))
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GetProducts 批量查询商品，缺失的 ID 不出现在结果中。
func (c *SQLiteCatalog) GetProducts(ctx context.Context, ids []int64) (map[int64]*core.Product, error) {
	out := make(map[int64]*core.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	query := `
		SELECT ` + productColumns + `
		FROM products p
		LEFT JOIN categories c ON p.category_id = c.id
		WHERE p.id IN (` + placeholders(len(ids)) + `)`
	rows, err := c.db.QueryContext(ctx, query, int64Args(ids)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

// GetProductsByCategories 按类目查询在售商品，排除指定 ID，按商品 ID 升序截断。
func (c *SQLiteCatalog) GetProductsByCategories(ctx context.Context, categoryIDs, excludeIDs []int64, limit int) ([]*core.Product, error) {
	if len(categoryIDs) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}

	args := int64Args(categoryIDs)
	query := `
		SELECT ` + productColumns + `
		FROM products p
		LEFT JOIN categories c ON p.category_id = c.id
		WHERE p.category_id IN (` + placeholders(len(categoryIDs)) + `)
		  AND p.available = 1`
	if len(excludeIDs) > 0 {
		query += ` AND p.id NOT IN (` + placeholders(len(excludeIDs)) + `)`
		args = append(args, int64Args(excludeIDs)...)
	}
	query += ` ORDER BY p.id LIMIT ?`
	args = append(args, limit)

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*core.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SampleAvailableProducts 随机抽取 n 个在售商品 ID（训练负采样用）。
func (c *SQLiteCatalog) SampleAvailableProducts(ctx context.Context, n int) ([]int64, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := c.db.QueryContext(ctx, `
		SELECT id FROM products
		WHERE available = 1
		ORDER BY RANDOM()
		LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// ListCategories 返回全部类目。
func (c *SQLiteCatalog) ListCategories(ctx context.Context) ([]*core.Category, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT id, parent_id, name FROM categories`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*core.Category
	for rows.Next() {
		var (
			cat    core.Category
			parent sql.NullInt64
		)
		if err := rows.Scan(&cat.ID, &parent, &cat.Name); err != nil {
			return nil, err
		}
		if parent.Valid {
			v := parent.Int64
			cat.ParentID = &v
		}
		out = append(out, &cat)
	}
	return out, rows.Err()
}

// RecordFeedback 在同一事务内写入反馈事件并更新计数，失败时整体回滚。
func (c *SQLiteCatalog) RecordFeedback(ctx context.Context, event *core.FeedbackEvent) error {
	if event == nil {
		return core.NewDomainError(core.ModuleCatalog, core.ErrorCodeInvalidInput, "feedback event is nil")
	}
	if !core.ValidatePolarity(event.Polarity) {
		return core.NewDomainError(core.ModuleCatalog, core.ErrorCodeInvalidInput,
			"invalid feedback polarity: "+string(event.Polarity))
	}

	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	posDelta, negDelta := 0, 0
	if event.Polarity == core.PolarityPositive {
		posDelta = 1
	} else {
		negDelta = 1
	}

	if event.IsScenario() {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO scenario_feedback (user_id, scenario_id, group_name, product_id, feedback_type, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			nullableID(event.UserID), event.ScenarioID, event.GroupName, event.CandidateID, string(event.Polarity), createdAt)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO scenario_feedback_stats (scenario_id, group_name, product_id, positive_count, negative_count, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (scenario_id, group_name, product_id)
			DO UPDATE SET positive_count = positive_count + excluded.positive_count,
			              negative_count = negative_count + excluded.negative_count,
			              updated_at = excluded.updated_at`,
			event.ScenarioID, event.GroupName, event.CandidateID, posDelta, negDelta, createdAt)
		if err != nil {
			return err
		}
	} else {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO product_pair_feedback (user_id, main_product_id, recommended_product_id, feedback_type, context, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			nullableID(event.UserID), event.AnchorID, event.CandidateID, string(event.Polarity), event.Context, createdAt)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO pair_feedback_stats (main_product_id, recommended_product_id, positive_count, negative_count, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (main_product_id, recommended_product_id)
			DO UPDATE SET positive_count = positive_count + excluded.positive_count,
			              negative_count = negative_count + excluded.negative_count,
			              updated_at = excluded.updated_at`,
			event.AnchorID, event.CandidateID, posDelta, negDelta, createdAt)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// RecordInteraction 写入交互事件并累加对应的商品计数。
func (c *SQLiteCatalog) RecordInteraction(ctx context.Context, event *core.InteractionEvent) error {
	if event == nil {
		return core.NewDomainError(core.ModuleCatalog, core.ErrorCodeInvalidInput, "interaction event is nil")
	}

	var column string
	switch event.Kind {
	case core.InteractionImpression:
		column = "view_count"
	case core.InteractionCartAdd:
		column = "cart_add_count"
	case core.InteractionClick:
		column = "view_count"
	default:
		return core.NewDomainError(core.ModuleCatalog, core.ErrorCodeInvalidInput,
			"invalid interaction kind: "+string(event.Kind))
	}

	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO interactions (product_id, anchor_id, kind, user_id, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		event.ProductID, event.AnchorID, string(event.Kind), nullableID(event.UserID), createdAt)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE products SET `+column+` = `+column+` + 1 WHERE id = ?`, event.ProductID)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// GetPairFeedbackStats 批量查询锚点商品对候选商品的反馈计数。
func (c *SQLiteCatalog) GetPairFeedbackStats(ctx context.Context, anchorID int64, candidateIDs []int64) (map[int64]core.FeedbackStats, error) {
	out := make(map[int64]core.FeedbackStats, len(candidateIDs))
	if len(candidateIDs) == 0 {
		return out, nil
	}

	args := append([]any{anchorID}, int64Args(candidateIDs)...)
	rows, err := c.db.QueryContext(ctx, `
		SELECT recommended_product_id, positive_count, negative_count
		FROM pair_feedback_stats
		WHERE main_product_id = ?
		  AND recommended_product_id IN (`+placeholders(len(candidateIDs))+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id    int64
			stats core.FeedbackStats
		)
		if err := rows.Scan(&id, &stats.Positive, &stats.Negative); err != nil {
			return nil, err
		}
		out[id] = stats
	}
	return out, rows.Err()
}

// GetScenarioFeedbackStats 批量查询场景分组内候选商品的反馈计数。
func (c *SQLiteCatalog) GetScenarioFeedbackStats(ctx context.Context, scenarioID, groupName string, candidateIDs []int64) (map[int64]core.FeedbackStats, error) {
	out := make(map[int64]core.FeedbackStats, len(candidateIDs))
	if len(candidateIDs) == 0 {
		return out, nil
	}

	args := append([]any{scenarioID, groupName}, int64Args(candidateIDs)...)
	rows, err := c.db.QueryContext(ctx, `
		SELECT product_id, positive_count, negative_count
		FROM scenario_feedback_stats
		WHERE scenario_id = ? AND group_name = ?
		  AND product_id IN (`+placeholders(len(candidateIDs))+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id    int64
			stats core.FeedbackStats
		)
		if err := rows.Scan(&id, &stats.Positive, &stats.Negative); err != nil {
			return nil, err
		}
		out[id] = stats
	}
	return out, rows.Err()
}

// ListPairStats 返回正反馈数不低于阈值的商品对（训练正样本），按正反馈数降序。
func (c *SQLiteCatalog) ListPairStats(ctx context.Context, minPositive int64) ([]core.PairStats, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT main_product_id, recommended_product_id, positive_count, negative_count
		FROM pair_feedback_stats
		WHERE positive_count >= ?
		ORDER BY positive_count DESC`, minPositive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPairStats(rows)
}

// ListNegativePairStats 返回负反馈多于正反馈的商品对（训练负样本），按负反馈数降序。
func (c *SQLiteCatalog) ListNegativePairStats(ctx context.Context) ([]core.PairStats, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT main_product_id, recommended_product_id, positive_count, negative_count
		FROM pair_feedback_stats
		WHERE negative_count > positive_count
		ORDER BY negative_count DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPairStats(rows)
}

func scanPairStats(rows *sql.Rows) ([]core.PairStats, error) {
	var out []core.PairStats
	for rows.Next() {
		var ps core.PairStats
		if err := rows.Scan(&ps.AnchorID, &ps.CandidateID, &ps.Stats.Positive, &ps.Stats.Negative); err != nil {
			return nil, err
		}
		out = append(out, ps)
	}
	return out, rows.Err()
}

// GetCopurchaseStats 批量查询锚点与候选商品的共购次数（无向对，双向查询）。
func (c *SQLiteCatalog) GetCopurchaseStats(ctx context.Context, anchorID int64, candidateIDs []int64) (map[int64]int64, error) {
	out := make(map[int64]int64, len(candidateIDs))
	if len(candidateIDs) == 0 {
		return out, nil
	}

	ph := placeholders(len(candidateIDs))
	args := append([]any{anchorID}, int64Args(candidateIDs)...)
	args = append(args, anchorID)
	args = append(args, int64Args(candidateIDs)...)

	rows, err := c.db.QueryContext(ctx, `
		SELECT product_id_2, copurchase_count
		FROM copurchase_stats
		WHERE product_id_1 = ? AND product_id_2 IN (`+ph+`)
		UNION
		SELECT product_id_1, copurchase_count
		FROM copurchase_stats
		WHERE product_id_2 = ? AND product_id_1 IN (`+ph+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id, count int64
		if err := rows.Scan(&id, &count); err != nil {
			return nil, err
		}
		out[id] = count
	}
	return out, rows.Err()
}

// ListCopurchasePairs 返回共购次数不低于阈值的商品对，按次数降序截断。
func (c *SQLiteCatalog) ListCopurchasePairs(ctx context.Context, minCount int64, limit int) ([]core.CopurchasePair, error) {
	if limit <= 0 {
		limit = 10000
	}
	rows, err := c.db.QueryContext(ctx, `
		SELECT product_id_1, product_id_2, copurchase_count
		FROM copurchase_stats
		WHERE copurchase_count >= ?
		ORDER BY copurchase_count DESC
		LIMIT ?`, minCount, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.CopurchasePair
	for rows.Next() {
		var cp core.CopurchasePair
		if err := rows.Scan(&cp.ProductID1, &cp.ProductID2, &cp.Count); err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, rows.Err()
}

// RebuildCopurchase 从订单明细全量重建共购统计。
// 对每个含 2 件以上商品的订单，统计所有无向商品对的出现次数；
// 旧统计在同一事务内清空重建。
func (c *SQLiteCatalog) RebuildCopurchase(ctx context.Context) error {
	rows, err := c.db.QueryContext(ctx, `
		SELECT order_id, product_id FROM order_items ORDER BY order_id`)
	if err != nil {
		return err
	}

	orders := make(map[int64][]int64)
	for rows.Next() {
		var orderID, productID int64
		if err := rows.Scan(&orderID, &productID); err != nil {
			rows.Close()
			return err
		}
		orders[orderID] = append(orders[orderID], productID)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	type pairKey struct{ p1, p2 int64 }
	pairCounts := make(map[pairKey]int64)
	for _, productIDs := range orders {
		unique := dedupe(productIDs)
		if len(unique) < 2 {
			continue
		}
		for i := 0; i < len(unique); i++ {
			for j := i + 1; j < len(unique); j++ {
				pairCounts[pairKey{unique[i], unique[j]}]++
			}
		}
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM copurchase_stats`); err != nil {
		return err
	}
	now := time.Now().UTC()
	for key, count := range pairCounts {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO copurchase_stats (product_id_1, product_id_2, copurchase_count, updated_at)
			VALUES (?, ?, ?, ?)`, key.p1, key.p2, count, now)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	c.logger.Info("copurchase stats rebuilt",
		zap.Int("orders", len(orders)),
		zap.Int("pairs", len(pairCounts)),
	)
	return nil
}

// LoadAll 实现 core.EmbeddingSource，全量加载商品嵌入。
func (c *SQLiteCatalog) LoadAll(ctx context.Context) ([]core.ProductEmbedding, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT product_id, embedding, source_text FROM product_embeddings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.ProductEmbedding
	for rows.Next() {
		var (
			pe  core.ProductEmbedding
			raw string
		)
		if err := rows.Scan(&pe.ProductID, &raw, &pe.SourceText); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(raw), &pe.Vector); err != nil {
			continue
		}
		out = append(out, pe)
	}
	return out, rows.Err()
}

// 写入侧辅助方法（数据导入/测试用）

// UpsertCategory 写入或更新类目。
func (c *SQLiteCatalog) UpsertCategory(ctx context.Context, cat *core.Category) error {
	var parent any
	if cat.ParentID != nil {
		parent = *cat.ParentID
	}
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO categories (id, parent_id, name) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET parent_id = excluded.parent_id, name = excluded.name`,
		cat.ID, parent, cat.Name)
	return err
}

// UpsertProduct 写入或更新商品。
func (c *SQLiteCatalog) UpsertProduct(ctx context.Context, p *core.Product) error {
	var discount any
	if p.DiscountPrice != nil {
		discount = *p.DiscountPrice
	}
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO products (id, name, category_id, vendor, price, discount_price, picture, available,
		                      view_count, cart_add_count, order_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name, category_id = excluded.category_id, vendor = excluded.vendor,
			price = excluded.price, discount_price = excluded.discount_price,
			picture = excluded.picture, available = excluded.available,
			view_count = excluded.view_count, cart_add_count = excluded.cart_add_count,
			order_count = excluded.order_count`,
		p.ID, p.Name, p.CategoryID, p.Vendor, p.Price, discount, p.Picture, boolInt(p.Available),
		p.Popularity.ViewCount, p.Popularity.CartAddCount, p.Popularity.OrderCount)
	return err
}

// UpsertEmbedding 写入或更新商品嵌入（JSON 编码）。
func (c *SQLiteCatalog) UpsertEmbedding(ctx context.Context, pe *core.ProductEmbedding) error {
	raw, err := json.Marshal(pe.Vector)
	if err != nil {
		return err
	}
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO product_embeddings (product_id, embedding, source_text) VALUES (?, ?, ?)
		ON CONFLICT (product_id) DO UPDATE SET embedding = excluded.embedding, source_text = excluded.source_text`,
		pe.ProductID, string(raw), pe.SourceText)
	return err
}

// AddOrder 写入订单明细，并累加商品的下单计数。
func (c *SQLiteCatalog) AddOrder(ctx context.Context, orderID int64, productIDs []int64) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, pid := range productIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO order_items (order_id, product_id) VALUES (?, ?)`, orderID, pid); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE products SET order_count = order_count + 1 WHERE id = ?`, pid); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// helpers

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

func nullableID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// 确保实现了接口
var (
	_ core.CatalogStore    = (*SQLiteCatalog)(nil)
	_ core.EmbeddingSource = (*SQLiteCatalog)(nil)
)
