package utils

import (
	"context"
	"fmt"
	"time"
)

// SleepFunc 可被测试替换的等待函数
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep 定时器等待，ctx 结束时提前返回
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Retry 尝试执行 fn，如果失败则重试，最多 retries 次
// delay 是两次重试之间的间隔，backoff=true 表示指数退避
func Retry(ctx context.Context, retries int, delay time.Duration, backoff bool, fn func() error) error {
	var err error
	for i := 0; i < retries; i++ {
		err = fn()
		if err == nil {
			return nil
		}

		if i < retries-1 { // 最后一次就不用 sleep 了
			sleep := delay
			if backoff {
				sleep = delay * time.Duration(1<<i) // 1x,2x,4x,8x...
			}
			if serr := Sleep(ctx, sleep); serr != nil {
				return serr
			}
		}
	}
	return fmt.Errorf("after %d attempts, last error: %w", retries, err)
}
