package config

import (
	"errors"
	"fmt"
)

// ErrConfiguration 标记所有配置类错误：输入越界、未知发行版、宿主不满足前置条件等，这类错误不会重试。
var ErrConfiguration = errors.New("configuration error")

// FieldError 提供字段路径与错误原因，便于 CLI 向用户反馈。
type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Is 使 errors.Is(err, ErrConfiguration) 对所有字段错误成立。
func (e FieldError) Is(target error) bool {
	return target == ErrConfiguration
}

// newFieldError 创建包含字段路径与原因的 error，便于 CLI 定位。
func newFieldError(field, reason string) error {
	return FieldError{Field: field, Reason: reason}
}

// inputField 用于拼接输入字段路径，输出 Input[use-cache] 形式。
func inputField(name string) string {
	return fmt.Sprintf("Input[%s]", name)
}
