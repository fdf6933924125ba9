package core

// DomainError 是领域层的统一错误类型。
//
// 设计原则：
//   - 所有领域层错误都使用此类型
//   - 提供错误代码（Code）和消息（Message）
//   - 支持错误检查函数（IsXXX）
//
// 错误分层（对调用方的可见性）：
//   - NOT_FOUND / INSUFFICIENT_DATA / INVALID_INPUT 显式上抛给调用方
//   - 信号缺失（无向量/无反馈/无共购）不是错误，按中性默认值降级
//   - 重排失败在 rank 内部吸收：记日志、回退公式打分，请求照常成功
type DomainError struct {
	Code    string // 错误代码（如 "NOT_FOUND", "INSUFFICIENT_DATA"）
	Message string // 错误消息
	Module  string // 模块名称（如 "catalog", "rank", "train"）
}

func (e *DomainError) Error() string {
	return e.Message
}

// GetDomainError 获取 DomainError，如果不是则返回 nil
func GetDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	if domainErr, ok := err.(*DomainError); ok {
		return domainErr
	}
	return nil
}

// NewDomainError 创建新的领域错误
func NewDomainError(module, code, message string) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
	}
}

// 错误代码常量
const (
	ErrorCodeNotFound         = "NOT_FOUND"         // 资源不存在
	ErrorCodeInsufficientData = "INSUFFICIENT_DATA" // 训练数据不足，不产出模型
	ErrorCodeInvalidInput     = "INVALID_INPUT"     // 输入无效（ID 列表/极性等）
	ErrorCodeNotSupported     = "NOT_SUPPORTED"     // 操作不支持
	ErrorCodeUnavailable      = "UNAVAILABLE"       // 服务不可用（降级态）
	ErrorCodeInternalError    = "INTERNAL_ERROR"    // 内部错误
)

// 模块名称常量
const (
	ModuleCatalog    = "catalog"    // 商品目录/关系查询
	ModuleStore      = "store"      // KV 存储
	ModuleVector     = "vector"     // 向量索引
	ModuleTaxonomy   = "taxonomy"   // 类目与场景
	ModuleFeedback   = "feedback"   // 反馈
	ModuleRank       = "rank"       // 排序
	ModuleTrain      = "train"      // 训练
	ModuleArtifact   = "artifact"   // 模型制品
	ModuleComplement = "complement" // 类目互补模型
)

// IsNotFound 检查错误是否为 NOT_FOUND
func IsNotFound(err error) bool {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == ErrorCodeNotFound
	}
	return false
}

// IsInsufficientData 检查错误是否为 INSUFFICIENT_DATA
func IsInsufficientData(err error) bool {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == ErrorCodeInsufficientData
	}
	return false
}

// IsInvalidInput 检查错误是否为 INVALID_INPUT
func IsInvalidInput(err error) bool {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == ErrorCodeInvalidInput
	}
	return false
}

// IsUnavailable 检查错误是否为 UNAVAILABLE
func IsUnavailable(err error) bool {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == ErrorCodeUnavailable
	}
	return false
}
