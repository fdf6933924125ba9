// Package feast 对接 Feast Feature Store，把线上统计特征
// （浏览/加购/下单计数）补进商品热度字段。
//
// 设计原则：
//   - 领域层只见 Client 接口，gRPC 实现在本包内（官方 SDK）
//   - 特征富化是可选增强：服务不可用时降级为目录原值，不报错
//
// 使用场景：
//   - 商品热度计数由独立数仓任务写入 Feast，目录库不落这三列
//   - 排序特征抽取需要 view/cart/order 计数时经 Catalog 装饰器取数
package feast

import (
	"context"
	"time"
)

// Row 一行实体键值，例如 {"product_id": 1001}。
type Row map[string]interface{}

// OnlineFeaturesRequest 在线特征读取请求。
type OnlineFeaturesRequest struct {
	// Features 特征全名列表，例如 "product_stats:view_count"
	Features []string

	// Entities 实体行，按行返回特征向量
	Entities []Row

	// Project Feast 项目名
	Project string
}

// FeatureVector 一行实体的特征值集合。
type FeatureVector struct {
	// Values key 为特征全名
	Values map[string]interface{}

	// Entity 对应的实体行
	Entity Row
}

// OnlineFeaturesResponse 在线特征读取响应，行序与请求实体行一致。
type OnlineFeaturesResponse struct {
	Vectors []FeatureVector
}

// Client 是 Feature Store 的最小客户端接口。
type Client interface {
	OnlineFeatures(ctx context.Context, req *OnlineFeaturesRequest) (*OnlineFeaturesResponse, error)
	Close() error
}

// ClientConfig 客户端配置。
type ClientConfig struct {
	Timeout time.Duration

	// StaticToken 静态 Token 认证（为空则匿名连接）
	StaticToken string
}

// ClientOption 配置选项。
type ClientOption func(*ClientConfig)

// WithTimeout 设置单次请求超时。
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *ClientConfig) { c.Timeout = timeout }
}

// WithStaticToken 设置静态 Token 认证。
func WithStaticToken(token string) ClientOption {
	return func(c *ClientConfig) { c.StaticToken = token }
}
