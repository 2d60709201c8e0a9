package core

import "errors"

// DomainError 是领域层的统一错误类型。
//
// 使用场景：
//   - Store 错误：NOT_FOUND, NOT_SUPPORTED
//   - Preference 错误：INVALID_INPUT（存储中的列表字段不是合法 JSON）
//   - Source 错误：NOT_FOUND, UNAVAILABLE
type DomainError struct {
	Code    string // 错误代码（如 "NOT_FOUND", "INVALID_INPUT"）
	Message string // 错误消息
	Module  string // 模块名称（如 "store", "preference"）
}

func (e *DomainError) Error() string {
	return e.Message
}

// Is 支持 errors.Is：Module 与 Code 相同即视为同一类错误。
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return e.Module == t.Module && e.Code == t.Code
}

// GetDomainError 沿错误链获取 DomainError，不存在时返回 nil
func GetDomainError(err error) *DomainError {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
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
	ErrorCodeNotFound     = "NOT_FOUND"     // 资源不存在
	ErrorCodeInvalidInput = "INVALID_INPUT" // 输入无效
)

// 模块名称常量
const (
	ModuleStore      = "store"
	ModulePreference = "preference"
	ModuleSource     = "source"
	ModulePipeline   = "pipeline"
)

var (
	// ErrPreferencesMalformed 表示偏好记录中的列表字段无法解析
	ErrPreferencesMalformed = NewDomainError(ModulePreference, ErrorCodeInvalidInput, "preference: malformed list field")

	// ErrEntityNotFound 表示内容源中不存在该实体
	ErrEntityNotFound = NewDomainError(ModuleSource, ErrorCodeNotFound, "source: entity not found")

	// ErrInvalidArgument 表示调用方传入了非法参数（编程错误）
	ErrInvalidArgument = NewDomainError(ModulePipeline, ErrorCodeInvalidInput, "pipeline: invalid argument")
)

// IsNotFound 检查错误是否为 NOT_FOUND
func IsNotFound(err error) bool {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == ErrorCodeNotFound
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
