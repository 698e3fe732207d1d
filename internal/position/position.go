package position

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

// ErrMarginNotReleased 平掉反向仓位后保证金没有按预期增加
var ErrMarginNotReleased = errors.New("margin not released after closing opposite position")

// ReversalOutcome 反手处理结果
type ReversalOutcome struct {
	Closed       bool            // 是否平掉了反向仓位
	SameSideOpen bool            // 已持有同方向仓位
	ClosedSize   decimal.Decimal // 平仓数量
	CloseOrderID string
	Waited       time.Duration // 等待保证金释放的时间
	MarginBefore decimal.Decimal
	MarginAfter  decimal.Decimal
}

// ReversalResolver 收到信号时，先平掉反方向的仓位，等待保证金释放
type ReversalResolver struct {
	gateway         exchange.Gateway
	releaseDelay    time.Duration
	minReleaseDelta decimal.Decimal
	sleep           utils.SleepFunc
}

func NewReversalResolver(gw exchange.Gateway, releaseDelay time.Duration, minReleaseDelta decimal.Decimal) *ReversalResolver {
	return &ReversalResolver{
		gateway:         gw,
		releaseDelay:    releaseDelay,
		minReleaseDelta: minReleaseDelta,
		sleep:           utils.Sleep,
	}
}

// WithSleep 替换等待函数
func (r *ReversalResolver) WithSleep(fn utils.SleepFunc) *ReversalResolver {
	r.sleep = fn
	return r
}

/*
Resolve 收到 buy 信号时：
如果已有多仓，不处理，由调用方决定是否跳过；
如果有空仓，先平空再开多。
收到 sell 信号时同理。
*/
func (r *ReversalResolver) Resolve(ctx context.Context, symbol string, desired model.PositionSide) (ReversalOutcome, error) {
	var out ReversalOutcome

	positions, err := r.gateway.FetchPositions(ctx, symbol)
	if err != nil {
		return out, fmt.Errorf("fetch positions: %w", err)
	}
	out.SameSideOpen = model.SumSize(positions, desired).GreaterThan(decimal.Zero)

	opposite := desired.Opposite()
	total := model.SumSize(positions, opposite)
	if total.LessThanOrEqual(decimal.Zero) {
		return out, nil
	}

	before, err := r.gateway.FetchMargin(ctx)
	if err != nil {
		return out, fmt.Errorf("fetch margin before close: %w", err)
	}
	out.MarginBefore = before.AvailableMargin

	// 所有反向仓位合并成一笔只减仓的市价单
	logger.Info("closing opposite position",
		logger.Pair("symbol", symbol),
		logger.Pair("side", string(opposite)),
		logger.Pair("size", total.String()))
	res, err := r.gateway.SubmitOrder(ctx, model.OrderRequest{
		Symbol:     symbol,
		Type:       model.Market,
		Side:       opposite.CloseSide(),
		Size:       total,
		ReduceOnly: true,
		ClientID:   uuid.NewString(),
	})
	if err != nil {
		return out, fmt.Errorf("close opposite position: %w", err)
	}
	out.Closed = true
	out.ClosedSize = total
	if res != nil {
		out.CloseOrderID = res.ID
	}

	start := time.Now()
	if err := r.sleep(ctx, r.releaseDelay); err != nil {
		return out, err
	}
	out.Waited = time.Since(start)

	after, err := r.gateway.FetchMargin(ctx)
	if err != nil {
		return out, fmt.Errorf("fetch margin after close: %w", err)
	}
	out.MarginAfter = after.AvailableMargin

	// 必须超过最小释放量，最小释放量为 0 时保证金不变同样视为未释放
	released := after.AvailableMargin.Sub(before.AvailableMargin)
	if released.LessThanOrEqual(r.minReleaseDelta) {
		return out, fmt.Errorf("%w: before=%s after=%s", ErrMarginNotReleased, before.AvailableMargin, after.AvailableMargin)
	}
	return out, nil
}
