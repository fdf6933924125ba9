package feast

import (
	"context"
	"fmt"
	"time"

	feastsdk "github.com/feast-dev/feast/sdk/go"
	feasttypes "github.com/feast-dev/feast/sdk/go/protos/feast/types"
)

// GrpcClient 基于官方 Feast Go SDK 的 gRPC 客户端。
type GrpcClient struct {
	client  *feastsdk.GrpcClient
	project string
	timeout time.Duration
}

var _ Client = (*GrpcClient)(nil)

// NewGrpcClient 连接 Feast Feature Server（默认端口 6565）。
func NewGrpcClient(host string, port int, project string, opts ...ClientOption) (*GrpcClient, error) {
	if port == 0 {
		port = 6565
	}
	cfg := &ClientConfig{Timeout: 30 * time.Second}
	for _, opt := range opts {
		opt(cfg)
	}

	var (
		client *feastsdk.GrpcClient
		err    error
	)
	if cfg.StaticToken != "" {
		security := feastsdk.SecurityConfig{
			EnableTLS:  false,
			Credential: feastsdk.NewStaticCredential(cfg.StaticToken),
		}
		client, err = feastsdk.NewSecureGrpcClient(host, port, security)
	} else {
		client, err = feastsdk.NewGrpcClient(host, port)
	}
	if err != nil {
		return nil, fmt.Errorf("连接 Feast gRPC 失败: %w", err)
	}

	return &GrpcClient{client: client, project: project, timeout: cfg.Timeout}, nil
}

// OnlineFeatures 读取在线特征，行序与请求实体行一致。
func (c *GrpcClient) OnlineFeatures(ctx context.Context, req *OnlineFeaturesRequest) (*OnlineFeaturesResponse, error) {
	if len(req.Features) == 0 || len(req.Entities) == 0 {
		return nil, fmt.Errorf("features and entities are required")
	}
	project := req.Project
	if project == "" {
		project = c.project
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	entityRows := make([]feastsdk.Row, len(req.Entities))
	for i, row := range req.Entities {
		entityRow := make(feastsdk.Row, len(row))
		for k, v := range row {
			entityRow[k] = toSDKValue(v)
		}
		entityRows[i] = entityRow
	}

	sdkResp, err := c.client.GetOnlineFeatures(ctx, &feastsdk.OnlineFeaturesRequest{
		Features: req.Features,
		Entities: entityRows,
		Project:  project,
	})
	if err != nil {
		return nil, fmt.Errorf("feast get online features failed: %w", err)
	}

	rows := sdkResp.Rows()
	if len(rows) != len(req.Entities) {
		return nil, fmt.Errorf("response row count mismatch: expected %d, got %d", len(req.Entities), len(rows))
	}

	out := &OnlineFeaturesResponse{Vectors: make([]FeatureVector, len(rows))}
	for i, row := range rows {
		values := make(map[string]interface{}, len(req.Features))
		for _, name := range req.Features {
			if val, ok := row[name]; ok {
				if converted := fromSDKValue(val); converted != nil {
					values[name] = converted
				}
			}
		}
		out.Vectors[i] = FeatureVector{Values: values, Entity: req.Entities[i]}
	}
	return out, nil
}

// Close 释放连接。SDK 的 gRPC 连接由库自身管理。
func (c *GrpcClient) Close() error {
	c.client = nil
	return nil
}

func toSDKValue(v interface{}) *feasttypes.Value {
	switch val := v.(type) {
	case string:
		return feastsdk.StrVal(val)
	case int:
		return feastsdk.Int64Val(int64(val))
	case int32:
		return feastsdk.Int64Val(int64(val))
	case int64:
		return feastsdk.Int64Val(val)
	case float32:
		return feastsdk.FloatVal(val)
	case float64:
		return feastsdk.DoubleVal(val)
	case bool:
		return feastsdk.BoolVal(val)
	case []byte:
		return feastsdk.BytesVal(val)
	default:
		return feastsdk.StrVal(fmt.Sprintf("%v", val))
	}
}

func fromSDKValue(v *feasttypes.Value) interface{} {
	if v == nil {
		return nil
	}
	switch val := v.Val.(type) {
	case *feasttypes.Value_StringVal:
		return val.StringVal
	case *feasttypes.Value_Int32Val:
		return int64(val.Int32Val)
	case *feasttypes.Value_Int64Val:
		return val.Int64Val
	case *feasttypes.Value_FloatVal:
		return float64(val.FloatVal)
	case *feasttypes.Value_DoubleVal:
		return val.DoubleVal
	case *feasttypes.Value_BoolVal:
		return val.BoolVal
	case *feasttypes.Value_BytesVal:
		return val.BytesVal
	default:
		return nil
	}
}
