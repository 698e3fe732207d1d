package strategy

import (
	"context"
	"errors"
	"sync"
)

// ErrLockTimeout 等待同一币种的上一个流程超时
var ErrLockTimeout = errors.New("timed out waiting for symbol lock")

// Locker 按币种加锁，同一币种的信号串行处理
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// MemoryLocker 单实例部署使用
type MemoryLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{slots: make(map[string]chan struct{})}
}

func (l *MemoryLocker) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[key] = ch
	}
	return ch
}

func (l *MemoryLocker) Lock(ctx context.Context, key string) (func(), error) {
	ch := l.slot(key)
	select {
	case ch <- struct{}{}:
	case <-ctx.Done():
		return nil, ErrLockTimeout
	}
	var once sync.Once
	return func() {
		once.Do(func() { <-ch })
	}, nil
}
