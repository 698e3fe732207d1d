package protection

import (
	"context"
	"errors"
	"fmt"

	"novaflow/internal/exchange"
	"novaflow/internal/model"
	"novaflow/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrProtectionFailed 止损单没有挂上，仓位处于无保护状态
var ErrProtectionFailed = errors.New("protective stop not placed")

// ProtectionOutcome 止损单挂单结果
type ProtectionOutcome struct {
	Placed bool
	Order  *model.OrderResult
	Err    error
}

// Placer 入场确认后挂止损
type Placer struct {
	gateway exchange.Gateway
}

func NewPlacer(gw exchange.Gateway) *Placer {
	return &Placer{gateway: gw}
}

// Attach 挂一个只减仓的止损单，数量使用请求数量，不用实际成交数量
func (p *Placer) Attach(ctx context.Context, symbol string, protectiveSide model.OrderSide, quantity, trigger decimal.Decimal) (ProtectionOutcome, error) {
	var out ProtectionOutcome
	if quantity.LessThanOrEqual(decimal.Zero) || trigger.LessThanOrEqual(decimal.Zero) {
		out.Err = fmt.Errorf("%w: quantity=%s trigger=%s", ErrProtectionFailed, quantity, trigger)
		return out, out.Err
	}

	res, err := p.gateway.SubmitOrder(ctx, model.OrderRequest{
		Symbol:       symbol,
		Type:         model.Stop,
		Side:         protectiveSide,
		Size:         quantity,
		TriggerPrice: trigger,
		ReduceOnly:   true,
		ClientID:     uuid.NewString(),
	})
	if err != nil {
		logger.Error("protective stop failed",
			logger.Pair("symbol", symbol),
			logger.Pair("side", string(protectiveSide)),
			logger.Pair("size", quantity.String()),
			logger.Pair("trigger", trigger.String()),
			logger.Pair("error", err.Error()))
		out.Err = fmt.Errorf("%w: %v", ErrProtectionFailed, err)
		return out, out.Err
	}

	out.Placed = true
	out.Order = res
	logger.Info("protective stop placed",
		logger.Pair("symbol", symbol),
		logger.Pair("side", string(protectiveSide)),
		logger.Pair("size", quantity.String()),
		logger.Pair("trigger", trigger.String()),
		logger.Pair("order_id", res.ID))
	return out, nil
}
