package notify

import (
	"context"
	"sync"
	"time"

	"novaflow/internal/model"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// Event 一次流程结束后推送给运维的事件
type Event struct {
	RequestID string                `json:"request_id"`
	Symbol    string                `json:"symbol"`
	Alert     string                `json:"alert"`
	Outcome   model.WorkflowOutcome `json:"outcome"`
	Time      time.Time             `json:"time"`
}

// Notifier 运维通知
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// NeedsAttention 需要人工介入的结果：止损没挂上、成交无法确认、未知错误
func NeedsAttention(o model.WorkflowOutcome) bool {
	if o.Status == model.OutcomeError {
		return true
	}
	if o.Reason == model.ReasonExecutionUnconfirmed {
		return true
	}
	return o.Details != nil && o.Details.ProtectionFailed
}

// Multi 并发推送到所有通道，错误合并返回
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, ev Event) error {
	var (
		mu   sync.Mutex
		errs error
		g    errgroup.Group
	)
	for _, n := range m {
		n := n
		g.Go(func() error {
			if err := n.Notify(ctx, ev); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errs
}

// Nop 未配置任何通知通道时使用
type Nop struct{}

func (Nop) Notify(context.Context, Event) error { return nil }
