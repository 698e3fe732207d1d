package model

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Action 信号方向
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
)

// ParseAction 大小写不敏感
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy":
		return ActionBuy, nil
	case "sell":
		return ActionSell, nil
	}
	return "", fmt.Errorf("unknown action %q", s)
}

// Side 开仓方向对应的下单方向
func (a Action) Side() OrderSide {
	if a == ActionSell {
		return Sell
	}
	return Buy
}

// PositionSide 信号期望持有的仓位方向
func (a Action) PositionSide() PositionSide {
	if a == ActionSell {
		return PositionShort
	}
	return PositionLong
}

// Alert tradingview 推送的一次信号，创建后不再修改
type Alert struct {
	Action         Action
	ReferencePrice decimal.Decimal // 信号价格，用于计算仓位
	StopLossPrice  decimal.Decimal // 止损触发价
}

func (a Alert) String() string {
	return fmt.Sprintf("%s@%s sl=%s", a.Action, a.ReferencePrice.String(), a.StopLossPrice.String())
}
