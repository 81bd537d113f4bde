package errors

import (
	"errors"
	"fmt"
)

// ErrPersistence 底层存储不可用
// 日状态按键原子写入，调用方收到此错误时不应假设有任何部分写入生效
var ErrPersistence = errors.New("存储服务暂不可用，请稍后重试")

// Persistence 将存储层错误包装为 ErrPersistence，保留原始错误链
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}
