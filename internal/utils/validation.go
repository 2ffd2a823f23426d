package utils

import (
	"regexp"
	"strings"
)

const maxIDLength = 64

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateID 验证路径和查询参数中的 ID 格式
func ValidateID(id string) error {
	if id == "" {
		return ErrEmptyID
	}
	if len(id) > maxIDLength {
		return ErrIDTooLong
	}
	if !idPattern.MatchString(id) {
		return ErrInvalidIDFormat
	}
	return nil
}

// TrimOptional 去除首尾空白,结果为空时返回 nil
func TrimOptional(s string) *string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// 错误定义
var (
	ErrEmptyID         = &ValidationError{Code: "EMPTY_ID", Message: "id cannot be empty"}
	ErrInvalidIDFormat = &ValidationError{Code: "INVALID_ID_FORMAT", Message: "id contains invalid characters"}
	ErrIDTooLong       = &ValidationError{Code: "ID_TOO_LONG", Message: "id exceeds maximum length"}
)

// ValidationError 验证错误
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
