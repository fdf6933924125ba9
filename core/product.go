package core

// Product 是候选商品的统一承载结构。
// 由外部商品目录（CatalogStore）提供，推荐核心只读不写。
type Product struct {
	ID            int64
	Name          string
	CategoryID    int64
	CategoryName  string
	Vendor        string
	Price         float64
	DiscountPrice *float64 // 促销价；nil 表示无促销
	Picture       string
	Available     bool

	// Popularity 是可选的热度计数（浏览/加购/下单）。
	// 目录未提供时保持零值，特征抽取按 log1p(0)=0 处理。
	Popularity Popularity
}

// Popularity 商品热度计数。
type Popularity struct {
	ViewCount    int64
	CartAddCount int64
	OrderCount   int64
}

// HasDiscount 判断商品是否处于有效促销中。
func (p *Product) HasDiscount() bool {
	return p != nil && p.DiscountPrice != nil && *p.DiscountPrice > 0 && *p.DiscountPrice < p.Price
}

// DiscountFraction 返回折扣比例（0~1）；无促销返回 0。
func (p *Product) DiscountFraction() float64 {
	if !p.HasDiscount() || p.Price <= 0 {
		return 0
	}
	return (p.Price - *p.DiscountPrice) / p.Price
}

// Category 商品类目节点。ParentID 为 nil 表示根类目。
// 类目全集构成森林（无环），由 taxonomy 包建立索引与根查找。
type Category struct {
	ID       int64
	ParentID *int64
	Name     string
}

// IsRoot 判断类目是否为根。
func (c *Category) IsRoot() bool {
	return c != nil && c.ParentID == nil
}
