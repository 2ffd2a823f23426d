package maintenance

import (
	"errors"
	"fmt"
)

// 错误分类
// 调用方通过 errors.Is 判断错误类型,引擎不会自动重试任何一类错误
var (
	// ErrValidation 输入缺失或格式错误,调用方修正后可重试
	ErrValidation = errors.New("validation error")
	// ErrConflict 当前状态下操作不合法,需重新读取状态
	ErrConflict = errors.New("conflict")
	// ErrInvariant 操作会破坏结构性约束(例如向已关闭的记录添加步骤)
	ErrInvariant = errors.New("invariant violation")
	// ErrNotFound 未知 ID
	ErrNotFound = errors.New("not found")
)

// Validationf 构造校验错误
func Validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Conflictf 构造冲突错误
func Conflictf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// Invariantf 构造约束错误
func Invariantf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvariant, fmt.Sprintf(format, args...))
}

// NotFoundf 构造未找到错误
func NotFoundf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}
