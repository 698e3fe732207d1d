package sizing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrInsufficientMargin 可用保证金 <= 0
	ErrInsufficientMargin = errors.New("insufficient margin")
	// ErrInsufficientSize 计算出的数量小于最小下单量
	ErrInsufficientSize = errors.New("size below instrument minimum")
	// ErrInvalidInput 价格或杠杆不合法
	ErrInvalidInput = errors.New("invalid sizing input")
)

// Sizer 根据保证金计算下单数量，数量单位为币
type Sizer struct {
	increment decimal.Decimal
	minSize   decimal.Decimal
}

func NewSizer(increment, minSize decimal.Decimal) (*Sizer, error) {
	if increment.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: size increment must be positive", ErrInvalidInput)
	}
	if minSize.LessThan(decimal.Zero) {
		return nil, fmt.Errorf("%w: min size must not be negative", ErrInvalidInput)
	}
	return &Sizer{increment: increment, minSize: minSize}, nil
}

// Size 数量 = 保证金 * 杠杆 / 价格，向下取整到 increment
func (s *Sizer) Size(margin, leverage, price decimal.Decimal) (decimal.Decimal, error) {
	if price.LessThanOrEqual(decimal.Zero) || leverage.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, fmt.Errorf("%w: price=%s leverage=%s", ErrInvalidInput, price, leverage)
	}
	if margin.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, fmt.Errorf("%w: available=%s", ErrInsufficientMargin, margin)
	}
	qty := s.Round(margin.Mul(leverage).Div(price))
	if qty.LessThan(s.minSize) || qty.IsZero() {
		return decimal.Zero, fmt.Errorf("%w: %s < %s", ErrInsufficientSize, qty, s.minSize)
	}
	return qty, nil
}

// Round 向下取整到 increment
func (s *Sizer) Round(qty decimal.Decimal) decimal.Decimal {
	return qty.Div(s.increment).Floor().Mul(s.increment)
}
