package strategy

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"novaflow/internal/model"
	"novaflow/pkg/logger"
)

// ErrShuttingDown 服务正在关闭，不再接收新信号
var ErrShuttingDown = errors.New("service is shutting down")

// Handler 执行一次信号流程
type Handler interface {
	Symbol() string
	Handle(ctx context.Context, requestID string, alert model.Alert) model.WorkflowOutcome
}

// 信号调度：每条信号一个协程，同一币种通过 Locker 串行
// http(webhook) ---> WebhookHandler ---> Dispatcher ---> Orchestrator
type Dispatcher struct {
	handler  Handler
	locker   Locker
	lockWait time.Duration

	mu      sync.RWMutex
	closing bool
	wg      sync.WaitGroup
}

func NewDispatcher(h Handler, locker Locker, lockWait time.Duration) *Dispatcher {
	if locker == nil {
		locker = NewMemoryLocker()
	}
	return &Dispatcher{handler: h, locker: locker, lockWait: lockWait}
}

// Dispatch 异步执行流程，结果写入返回的 channel（缓冲为 1，调用方可以不读）
// 流程使用与请求分离的 ctx，http 请求超时或断开不会中断下单
func (d *Dispatcher) Dispatch(ctx context.Context, requestID string, alert model.Alert) (<-chan model.WorkflowOutcome, error) {
	d.mu.RLock()
	if d.closing {
		d.mu.RUnlock()
		return nil, ErrShuttingDown
	}
	d.wg.Add(1)
	d.mu.RUnlock()

	result := make(chan model.WorkflowOutcome, 1)
	wctx := context.WithoutCancel(ctx)

	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				logger.Error("workflow panic",
					logger.Pair("request_id", requestID),
					logger.Pair("panic", fmt.Sprint(r)))
				result <- model.WorkflowOutcome{
					Status:  model.OutcomeError,
					Reason:  model.ReasonInternalError,
					Message: fmt.Sprintf("panic: %v", r),
				}
			}
		}()
		result <- d.run(wctx, requestID, alert)
	}()
	return result, nil
}

func (d *Dispatcher) run(ctx context.Context, requestID string, alert model.Alert) model.WorkflowOutcome {
	symbol := d.handler.Symbol()

	lockCtx := ctx
	if d.lockWait > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, d.lockWait)
		defer cancel()
	}
	unlock, err := d.locker.Lock(lockCtx, symbol)
	if err != nil {
		logger.Warn("symbol busy, alert dropped",
			logger.Pair("request_id", requestID),
			logger.Pair("symbol", symbol),
			logger.Pair("error", err.Error()))
		return model.WorkflowOutcome{
			Status:  model.OutcomeSkipped,
			Reason:  model.ReasonSymbolBusy,
			Message: err.Error(),
			Err:     err,
		}
	}
	defer unlock()

	return d.handler.Handle(ctx, requestID, alert)
}

// Drain 停止接收新信号，等待进行中的流程结束，ctx 到期时返回
func (d *Dispatcher) Drain(ctx context.Context) error {
	d.mu.Lock()
	d.closing = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain in-flight workflows: %w", ctx.Err())
	}
}

// Closing 是否已经开始关闭
func (d *Dispatcher) Closing() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.closing
}
