package strategy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"novaflow/internal/exchange"
	"novaflow/internal/execution"
	"novaflow/internal/metrics"
	"novaflow/internal/model"
	"novaflow/internal/notify"
	"novaflow/internal/position"
	"novaflow/internal/protection"
	"novaflow/internal/sizing"
	"novaflow/pkg/logger"
	"novaflow/pkg/utils"

	"github.com/shopspring/decimal"
)

// ErrInvalidSignal 信号内容不合法，不会调用交易所
var ErrInvalidSignal = errors.New("invalid signal")

// Journal 流程结果日志，只追加
type Journal interface {
	Record(v any) error
}

// Config 单个交易标的的流程参数
type Config struct {
	Symbol          string
	Leverage        decimal.Decimal
	SizeIncrement   decimal.Decimal
	MinSize         decimal.Decimal
	ReleaseDelay    time.Duration
	MinReleaseDelta decimal.Decimal
	Confirm         execution.Config
}

/*
Orchestrator 处理一条信号：
Received -> Reversing -> Sizing -> Executing -> Protecting -> Done
任何一步失败都直接结束，并转换成对应的结果状态
*/
type Orchestrator struct {
	cfg       Config
	gateway   exchange.Gateway
	sizer     *sizing.Sizer
	resolver  *position.ReversalResolver
	confirmer *execution.Confirmer
	placer    *protection.Placer
	journal   Journal
	notifier  notify.Notifier
}

func NewOrchestrator(gw exchange.Gateway, cfg Config) (*Orchestrator, error) {
	if cfg.Symbol == "" {
		return nil, errors.New("symbol is required")
	}
	if cfg.Leverage.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("leverage must be positive, got %s", cfg.Leverage)
	}
	sizer, err := sizing.NewSizer(cfg.SizeIncrement, cfg.MinSize)
	if err != nil {
		return nil, err
	}
	return &Orchestrator{
		cfg:       cfg,
		gateway:   gw,
		sizer:     sizer,
		resolver:  position.NewReversalResolver(gw, cfg.ReleaseDelay, cfg.MinReleaseDelta),
		confirmer: execution.NewConfirmer(gw, cfg.Confirm).WithRounder(sizer),
		placer:    protection.NewPlacer(gw),
		notifier:  notify.Nop{},
	}, nil
}

// WithSleep 替换所有等待
func (o *Orchestrator) WithSleep(fn utils.SleepFunc) *Orchestrator {
	o.resolver.WithSleep(fn)
	o.confirmer.WithSleep(fn)
	return o
}

func (o *Orchestrator) WithJournal(j Journal) *Orchestrator {
	o.journal = j
	return o
}

func (o *Orchestrator) WithNotifier(n notify.Notifier) *Orchestrator {
	if n != nil {
		o.notifier = n
	}
	return o
}

func (o *Orchestrator) Symbol() string {
	return o.cfg.Symbol
}

// ParseAlert 把 webhook 的原始字段转换成信号，不合法时返回 ErrInvalidSignal
func ParseAlert(action string, price, stopLoss decimal.Decimal) (model.Alert, error) {
	a, err := model.ParseAction(action)
	if err != nil {
		return model.Alert{}, fmt.Errorf("%w: %v", ErrInvalidSignal, err)
	}
	alert := model.Alert{Action: a, ReferencePrice: price, StopLossPrice: stopLoss}
	return alert, ValidateAlert(alert)
}

// ValidateAlert 价格和止损必须为正，止损必须在保护方向：多单止损低于价格，空单止损高于价格
func ValidateAlert(a model.Alert) error {
	if a.Action != model.ActionBuy && a.Action != model.ActionSell {
		return fmt.Errorf("%w: unknown action %q", ErrInvalidSignal, a.Action)
	}
	if a.ReferencePrice.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: price must be positive", ErrInvalidSignal)
	}
	if a.StopLossPrice.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: stop_loss must be positive", ErrInvalidSignal)
	}
	if a.Action == model.ActionBuy && a.StopLossPrice.GreaterThanOrEqual(a.ReferencePrice) {
		return fmt.Errorf("%w: buy stop_loss %s must be below price %s", ErrInvalidSignal, a.StopLossPrice, a.ReferencePrice)
	}
	if a.Action == model.ActionSell && a.StopLossPrice.LessThanOrEqual(a.ReferencePrice) {
		return fmt.Errorf("%w: sell stop_loss %s must be above price %s", ErrInvalidSignal, a.StopLossPrice, a.ReferencePrice)
	}
	return nil
}

// Handle 执行一次完整流程，结果总会被记录、打点，需要时通知运维
func (o *Orchestrator) Handle(ctx context.Context, requestID string, alert model.Alert) model.WorkflowOutcome {
	start := time.Now()
	metrics.WorkflowStarted()
	defer metrics.WorkflowFinished()

	out := o.run(ctx, alert)
	out.Duration = time.Since(start)
	o.finish(ctx, requestID, alert, out)
	return out
}

func (o *Orchestrator) run(ctx context.Context, alert model.Alert) model.WorkflowOutcome {
	symbol := o.cfg.Symbol

	// Received
	if err := ValidateAlert(alert); err != nil {
		return fail(model.OutcomeFailed, model.ReasonInvalidSignal, err)
	}
	details := &model.OutcomeDetails{
		Symbol:    symbol,
		Action:    alert.Action,
		StopPrice: alert.StopLossPrice,
	}

	// Reversing
	rev, err := o.resolver.Resolve(ctx, symbol, alert.Action.PositionSide())
	if rev.Closed {
		details.Reversed = true
		details.ClosedSize = rev.ClosedSize
		metrics.ObserveOrders(metrics.OrderClose, "submitted", 1)
	}
	if err != nil {
		if errors.Is(err, position.ErrMarginNotReleased) {
			return withDetails(fail(model.OutcomeSkipped, model.ReasonMarginNotReleased, err), details)
		}
		return withDetails(classifyGatewayError(err), details)
	}
	if rev.SameSideOpen {
		skip := fail(model.OutcomeSkipped, model.ReasonSameSidePosition,
			fmt.Errorf("%s position already open on %s", alert.Action.PositionSide(), symbol))
		return withDetails(skip, details)
	}

	// Sizing
	account, err := o.gateway.FetchMargin(ctx)
	if err != nil {
		if errors.Is(err, exchange.ErrMarginUnavailable) {
			return withDetails(fail(model.OutcomeSkipped, model.ReasonMarginUnavailable, err), details)
		}
		return withDetails(classifyGatewayError(err), details)
	}
	qty, err := o.sizer.Size(account.AvailableMargin, o.cfg.Leverage, alert.ReferencePrice)
	switch {
	case errors.Is(err, sizing.ErrInsufficientSize):
		return withDetails(fail(model.OutcomeSkipped, model.ReasonInsufficientSize, err), details)
	case errors.Is(err, sizing.ErrInsufficientMargin):
		return withDetails(fail(model.OutcomeSkipped, model.ReasonInsufficientMargin, err), details)
	case err != nil:
		return withDetails(fail(model.OutcomeError, model.ReasonInternalError, err), details)
	}
	details.Quantity = qty
	logger.Info("position sized",
		logger.Pair("symbol", symbol),
		logger.Pair("margin", account.AvailableMargin.String()),
		logger.Pair("leverage", o.cfg.Leverage.String()),
		logger.Pair("price", alert.ReferencePrice.String()),
		logger.Pair("quantity", qty.String()))

	// Executing
	exec, err := o.confirmer.Execute(ctx, symbol, alert.Action.Side(), qty)
	metrics.ObserveOrders(metrics.OrderEntry, "submitted", exec.Submissions)
	details.Attempts = exec.Attempts
	details.Submissions = exec.Submissions
	details.FilledSize = exec.FilledSize
	if exec.Order != nil {
		details.EntryOrderID = exec.Order.ID
	}
	details.EntryPrice = alert.ReferencePrice
	if exec.AvgPrice.GreaterThan(decimal.Zero) {
		details.EntryPrice = exec.AvgPrice
	}
	if err != nil {
		if exec.FilledSize.GreaterThan(decimal.Zero) {
			// 已有部分成交但没有止损，不能按跳过处理
			partial := fmt.Errorf("%w: %s of %s filled before entry stopped: %v",
				execution.ErrExecutionUnconfirmed, exec.FilledSize, qty, err)
			return withDetails(fail(model.OutcomeFailed, model.ReasonExecutionUnconfirmed, partial), details)
		}
		switch {
		case errors.Is(err, execution.ErrExecutionUnconfirmed):
			return withDetails(fail(model.OutcomeFailed, model.ReasonExecutionUnconfirmed, err), details)
		case errors.Is(err, execution.ErrInsufficientFunds):
			return withDetails(fail(model.OutcomeSkipped, model.ReasonInsufficientFunds, err), details)
		case errors.Is(err, execution.ErrExchangeRejected):
			return withDetails(fail(model.OutcomeRejected, model.ReasonExchangeRejected, err), details)
		}
		return withDetails(fail(model.OutcomeError, model.ReasonInternalError, err), details)
	}

	// Protecting，止损数量用请求数量
	prot, err := o.placer.Attach(ctx, symbol, alert.Action.Side().Opposite(), qty, alert.StopLossPrice)
	if err != nil {
		metrics.ObserveOrders(metrics.OrderStop, "failed", 1)
		details.ProtectionFailed = true
		return model.WorkflowOutcome{
			Status:  model.OutcomeSuccess,
			Reason:  model.ReasonProtectionFailed,
			Message: err.Error(),
			Details: details,
			Err:     err,
		}
	}
	metrics.ObserveOrders(metrics.OrderStop, "submitted", 1)
	if prot.Order != nil {
		details.StopOrderID = prot.Order.ID
	}

	return model.WorkflowOutcome{
		Status:  model.OutcomeSuccess,
		Reason:  model.ReasonFilled,
		Message: fmt.Sprintf("%s %s %s filled, stop at %s", alert.Action, exec.FilledSize, symbol, alert.StopLossPrice),
		Details: details,
	}
}

// 结果写日志、journal、指标和通知
func (o *Orchestrator) finish(ctx context.Context, requestID string, alert model.Alert, out model.WorkflowOutcome) {
	fields := []logger.Field{
		logger.Pair("request_id", requestID),
		logger.Pair("symbol", o.cfg.Symbol),
		logger.Pair("alert", alert.String()),
		logger.Pair("status", string(out.Status)),
		logger.Pair("reason", out.Reason),
		logger.Pair("duration", out.Duration.String()),
	}
	if d := out.Details; d != nil {
		fields = append(fields,
			logger.Pair("quantity", d.Quantity.String()),
			logger.Pair("filled", d.FilledSize.String()),
			logger.Pair("stop_price", d.StopPrice.String()))
	}
	switch out.Status {
	case model.OutcomeSuccess:
		if out.Details != nil && out.Details.ProtectionFailed {
			logger.Error("workflow finished without protection: "+out.Message, fields...)
		} else {
			logger.Info("workflow finished", fields...)
		}
	case model.OutcomeError:
		logger.Error("workflow error: "+out.Message, fields...)
	default:
		logger.Warn("workflow finished: "+out.Message, fields...)
	}

	metrics.ObserveOutcome(string(out.Status), out.Reason, out.Duration)

	now := time.Now()
	if o.journal != nil {
		entry := journalEntry{
			RequestID:  requestID,
			Time:       now,
			Symbol:     o.cfg.Symbol,
			Action:     alert.Action,
			Price:      alert.ReferencePrice,
			StopLoss:   alert.StopLossPrice,
			Status:     out.Status,
			Reason:     out.Reason,
			Message:    out.Message,
			Details:    out.Details,
			DurationMs: out.Duration.Milliseconds(),
		}
		if err := o.journal.Record(entry); err != nil {
			logger.Warn("journal write failed", logger.Pair("error", err.Error()))
		}
	}

	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	ev := notify.Event{RequestID: requestID, Symbol: o.cfg.Symbol, Alert: alert.String(), Outcome: out, Time: now}
	if err := o.notifier.Notify(nctx, ev); err != nil {
		logger.Warn("notify failed", logger.Pair("error", err.Error()))
	}
}

type journalEntry struct {
	RequestID  string                `json:"request_id"`
	Time       time.Time             `json:"time"`
	Symbol     string                `json:"symbol"`
	Action     model.Action          `json:"action"`
	Price      decimal.Decimal       `json:"price"`
	StopLoss   decimal.Decimal       `json:"stop_loss"`
	Status     model.OutcomeStatus   `json:"status"`
	Reason     string                `json:"reason"`
	Message    string                `json:"message,omitempty"`
	Details    *model.OutcomeDetails `json:"details,omitempty"`
	DurationMs int64                 `json:"duration_ms"`
}

func fail(status model.OutcomeStatus, reason string, err error) model.WorkflowOutcome {
	return model.WorkflowOutcome{Status: status, Reason: reason, Message: err.Error(), Err: err}
}

func withDetails(o model.WorkflowOutcome, d *model.OutcomeDetails) model.WorkflowOutcome {
	o.Details = d
	return o
}

// 反手或查询阶段的交易所错误
func classifyGatewayError(err error) model.WorkflowOutcome {
	switch {
	case errors.Is(err, exchange.ErrInsufficientFunds):
		return fail(model.OutcomeSkipped, model.ReasonInsufficientFunds, err)
	case errors.Is(err, exchange.ErrRejected):
		return fail(model.OutcomeRejected, model.ReasonExchangeRejected, err)
	}
	return fail(model.OutcomeError, model.ReasonInternalError, err)
}
