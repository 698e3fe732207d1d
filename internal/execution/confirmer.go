package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"novaflow/internal/exchange"
	"novaflow/internal/model"
	"novaflow/pkg/logger"
	"novaflow/pkg/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrExecutionUnconfirmed 重试次数用完仍未确认成交
	ErrExecutionUnconfirmed = errors.New("execution unconfirmed")
	// ErrExchangeRejected 交易所明确拒绝下单
	ErrExchangeRejected = errors.New("exchange rejected order")
	// ErrInsufficientFunds 交易所因余额不足拒绝下单
	ErrInsufficientFunds = exchange.ErrInsufficientFunds
)

// State 确认流程的状态
type State string

const (
	StateSubmit    State = "submit"
	StateWait      State = "wait"
	StateCheck     State = "check"
	StateResubmit  State = "resubmit"  // 已观察到未成交，补单
	StateRecheck   State = "recheck"   // 无法观察成交情况，下一轮只查询不下单
	StateConfirmed State = "confirmed" // 成交比例达到阈值
	StateExhausted State = "exhausted" // 次数用完
)

// Config 确认流程参数
type Config struct {
	Attempts  int             // 最多几轮 下单/等待/查询
	Delay     time.Duration   // 每轮下单后等待成交的时间
	Threshold decimal.Decimal // 成交数量 >= Threshold * 请求数量 视为成交
}

// Rounder 补单数量取整到交易所允许的精度
type Rounder interface {
	Round(qty decimal.Decimal) decimal.Decimal
}

type noRounding struct{}

func (noRounding) Round(qty decimal.Decimal) decimal.Decimal { return qty }

func DefaultConfig() Config {
	return Config{
		Attempts:  3,
		Delay:     2 * time.Second,
		Threshold: decimal.RequireFromString("0.9"),
	}
}

// ExecutionOutcome 入场单的确认结果
type ExecutionOutcome struct {
	Confirmed   bool
	Order       *model.OrderResult // 最后一次提交的订单
	OrderIDs    []string
	FilledSize  decimal.Decimal
	AvgPrice    decimal.Decimal
	Attempts    int
	Submissions int
	State       State
	Transitions []State
}

// Confirmer 下单后确认交易所真的成交，未成交时按剩余数量补单
type Confirmer struct {
	gateway exchange.Gateway
	cfg     Config
	sleep   utils.SleepFunc
	rounder Rounder
}

func NewConfirmer(gw exchange.Gateway, cfg Config) *Confirmer {
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}
	return &Confirmer{gateway: gw, cfg: cfg, sleep: utils.Sleep, rounder: noRounding{}}
}

// WithSleep 替换等待函数
func (c *Confirmer) WithSleep(fn utils.SleepFunc) *Confirmer {
	c.sleep = fn
	return c
}

// WithRounder 补单数量按 r 取整，默认不取整
func (c *Confirmer) WithRounder(r Rounder) *Confirmer {
	if r != nil {
		c.rounder = r
	}
	return c
}

// 一次确认流程的运行状态
type run struct {
	symbol   string
	side     model.OrderSide
	quantity decimal.Decimal
	target   decimal.Decimal

	baseline      decimal.Decimal
	baselineKnown bool

	orders   []*model.OrderResult
	filled   map[string]decimal.Decimal
	observed bool
	total    decimal.Decimal
	out      ExecutionOutcome
}

func (r *run) to(s State) {
	r.out.State = s
	r.out.Transitions = append(r.out.Transitions, s)
}

// Execute 状态机: submit -> wait -> check -> (confirmed | resubmit | recheck | exhausted)
func (c *Confirmer) Execute(ctx context.Context, symbol string, side model.OrderSide, quantity decimal.Decimal) (ExecutionOutcome, error) {
	r := &run{
		symbol:   symbol,
		side:     side,
		quantity: quantity,
		target:   quantity.Mul(c.cfg.Threshold),
		filled:   make(map[string]decimal.Decimal),
	}
	c.captureBaseline(ctx, r)

	state := StateSubmit
	for {
		switch state {
		case StateSubmit, StateResubmit:
			r.to(state)
			r.out.Attempts++
			if err := c.submit(ctx, r); err != nil {
				// 之前的订单可能已经部分成交，调用方需要知道真实的持仓
				r.out.FilledSize = r.total
				return r.out, err
			}
			state = StateWait

		case StateRecheck:
			r.to(state)
			r.out.Attempts++
			state = StateWait

		case StateWait:
			r.to(state)
			if err := c.sleep(ctx, c.cfg.Delay); err != nil {
				r.out.FilledSize = r.total
				return r.out, err
			}
			state = StateCheck

		case StateCheck:
			r.to(state)
			c.check(ctx, r)
			state = c.next(r)

		case StateConfirmed:
			r.to(state)
			r.out.Confirmed = true
			r.out.FilledSize = r.total
			return r.out, nil

		case StateExhausted:
			r.to(state)
			r.out.FilledSize = r.total
			return r.out, fmt.Errorf("%w: filled %s of %s after %d attempts",
				ErrExecutionUnconfirmed, r.total, r.quantity, r.out.Attempts)
		}
	}
}

// 入场前同方向的持仓数量，作为持仓差值的基准
func (c *Confirmer) captureBaseline(ctx context.Context, r *run) {
	positions, err := c.gateway.FetchPositions(ctx, r.symbol)
	if err != nil {
		logger.Warn("baseline position unavailable, falling back to order status only",
			logger.Pair("symbol", r.symbol),
			logger.Pair("error", err.Error()))
		return
	}
	r.baseline = model.SumSize(positions, positionSide(r.side))
	r.baselineKnown = true
}

func (c *Confirmer) submit(ctx context.Context, r *run) error {
	size := r.quantity
	if len(r.orders) > 0 || r.out.Submissions > 0 {
		// 只补未成交的部分
		size = c.rounder.Round(r.quantity.Sub(r.total))
	}
	if size.LessThanOrEqual(decimal.Zero) {
		return nil
	}

	req := model.OrderRequest{
		Symbol:   r.symbol,
		Type:     model.Market,
		Side:     r.side,
		Size:     size,
		ClientID: uuid.NewString(),
	}
	r.out.Submissions++
	res, err := c.gateway.SubmitOrder(ctx, req)
	switch {
	case err == nil:
	case errors.Is(err, exchange.ErrInsufficientFunds):
		return fmt.Errorf("submit entry order: %w", err)
	case errors.Is(err, exchange.ErrRejected):
		return fmt.Errorf("%w: %v", ErrExchangeRejected, err)
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		// 结果未知，订单可能已经到达交易所，通过持仓确认
		logger.Warn("entry order result unknown",
			logger.Pair("symbol", r.symbol),
			logger.Pair("client_id", req.ClientID),
			logger.Pair("error", err.Error()))
		return nil
	}

	logger.Info("entry order submitted",
		logger.Pair("symbol", r.symbol),
		logger.Pair("side", string(r.side)),
		logger.Pair("size", size.String()),
		logger.Pair("order_id", res.ID),
		logger.Pair("submission", r.out.Submissions))
	r.orders = append(r.orders, res)
	r.out.Order = res
	r.out.OrderIDs = append(r.out.OrderIDs, res.ID)
	r.filled[res.ID] = res.FilledSize
	if res.AvgPrice.GreaterThan(decimal.Zero) {
		r.out.AvgPrice = res.AvgPrice
	}
	return nil
}

// check 优先查询订单成交，查不到时用持仓变化判断
func (c *Confirmer) check(ctx context.Context, r *run) {
	r.observed = false

	ordersObserved := len(r.orders) > 0
	orderTotal := decimal.Zero
	for _, o := range r.orders {
		res, err := c.gateway.FetchOrder(ctx, r.symbol, o.ID)
		if err != nil {
			ordersObserved = false
			orderTotal = orderTotal.Add(r.filled[o.ID])
			continue
		}
		if res.FilledSize.GreaterThan(r.filled[o.ID]) {
			r.filled[o.ID] = res.FilledSize
		}
		if res.AvgPrice.GreaterThan(decimal.Zero) {
			r.out.AvgPrice = res.AvgPrice
		}
		orderTotal = orderTotal.Add(r.filled[o.ID])
	}
	r.total = orderTotal
	if ordersObserved {
		r.observed = true
		if r.total.GreaterThanOrEqual(r.target) {
			return
		}
	}

	if !r.baselineKnown {
		return
	}
	positions, err := c.gateway.FetchPositions(ctx, r.symbol)
	if err != nil {
		return
	}
	r.observed = true
	delta := model.SumSize(positions, positionSide(r.side)).Sub(r.baseline)
	if delta.GreaterThan(r.total) {
		r.total = delta
	}
}

func (c *Confirmer) next(r *run) State {
	if r.total.GreaterThanOrEqual(r.target) && r.total.GreaterThan(decimal.Zero) {
		return StateConfirmed
	}
	if r.out.Attempts >= c.cfg.Attempts {
		return StateExhausted
	}
	if !r.observed {
		return StateRecheck
	}
	if c.rounder.Round(r.quantity.Sub(r.total)).LessThanOrEqual(decimal.Zero) {
		// 剩余数量不足一个单位，不再补单
		return StateRecheck
	}
	return StateResubmit
}

func positionSide(side model.OrderSide) model.PositionSide {
	if side == model.Sell {
		return model.PositionShort
	}
	return model.PositionLong
}
