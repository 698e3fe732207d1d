package exchange

import (
	"context"
	"errors"

	"novaflow/internal/model"
)

// Gateway 交易所网关，流程只依赖这四个操作。数量单位统一为币，由各实现转换成张数
type Gateway interface {
	// 查询可用保证金
	FetchMargin(ctx context.Context) (model.AccountState, error)
	// 查询某个币种的持仓
	FetchPositions(ctx context.Context, symbol string) ([]model.PositionState, error)
	// 下单，市价单或止损单
	SubmitOrder(ctx context.Context, req model.OrderRequest) (*model.OrderResult, error)
	// 查询订单成交情况
	FetchOrder(ctx context.Context, symbol, orderID string) (*model.OrderResult, error)
}

var (
	// ErrInsufficientFunds 交易所因余额不足拒绝下单
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrRejected 交易所明确拒绝了订单
	ErrRejected = errors.New("order rejected by exchange")
	// ErrMarginUnavailable 账户返回中没有可用保证金字段
	ErrMarginUnavailable = errors.New("available margin unavailable")
	// ErrOrderNotFound 查询不到订单
	ErrOrderNotFound = errors.New("order not found")
)
