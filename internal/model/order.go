package model

import (
	"github.com/shopspring/decimal"
)

type OrderSide string

const (
	Buy  OrderSide = "buy"
	Sell OrderSide = "sell"
)

// Opposite 反方向，用于平仓和止损
func (s OrderSide) Opposite() OrderSide {
	if s == Buy {
		return Sell
	}
	return Buy
}

type OrderType string

const (
	// 市价
	Market OrderType = "market"
	// 止损单，触发后市价成交
	Stop OrderType = "stop"
)

type OrderStatus string

const (
	OrderOpen     OrderStatus = "open"
	OrderFilled   OrderStatus = "filled"
	OrderRejected OrderStatus = "rejected"
	OrderUnknown  OrderStatus = "unknown"
)

// OrderRequest 一次下单请求，数量单位为币（base asset），重试时重新创建并使用新的 ClientID
type OrderRequest struct {
	Symbol       string
	Type         OrderType
	Side         OrderSide
	Size         decimal.Decimal
	TriggerPrice decimal.Decimal // 仅止损单使用
	ReduceOnly   bool
	ClientID     string
}

type OrderResult struct {
	ID         string
	ClientID   string
	FilledSize decimal.Decimal
	AvgPrice   decimal.Decimal
	Status     OrderStatus
	Message    string
}

// 保证金模式（cross / isolated）
const (
	// 全仓模式
	MgnModeCross = "cross"
	// 逐仓模式
	MgnModeIsolated = "isolated"
)
