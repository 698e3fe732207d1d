package model

import "github.com/shopspring/decimal"

// posSide 持仓方向 做多long或者做空short
type PositionSide string

const (
	PositionLong  PositionSide = "long"
	PositionShort PositionSide = "short"
	PositionFlat  PositionSide = "flat"
)

// Opposite 反向持仓
func (p PositionSide) Opposite() PositionSide {
	switch p {
	case PositionLong:
		return PositionShort
	case PositionShort:
		return PositionLong
	}
	return PositionFlat
}

// CloseSide 平掉该方向持仓需要的下单方向
func (p PositionSide) CloseSide() OrderSide {
	if p == PositionShort {
		return Buy
	}
	return Sell
}

// PositionState 交易所返回的持仓，数量单位为币
type PositionState struct {
	Symbol     string
	Side       PositionSide
	Size       decimal.Decimal
	EntryPrice decimal.Decimal
}

// AccountState 账户保证金，每次信号都重新查询
type AccountState struct {
	AvailableMargin decimal.Decimal
}

// SumSize 统计某个方向的持仓数量
func SumSize(positions []PositionState, side PositionSide) decimal.Decimal {
	total := decimal.Zero
	for _, p := range positions {
		if p.Side == side && p.Size.GreaterThan(decimal.Zero) {
			total = total.Add(p.Size)
		}
	}
	return total
}
