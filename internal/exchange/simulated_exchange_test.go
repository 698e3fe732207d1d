package exchange

import (
	"context"
	"errors"
	"testing"

	"novaflow/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestSimulatedExchange_MarketOrderFillsAndConsumesMargin(t *testing.T) {
	ctx := context.Background()
	ex := NewSimulatedExchange(dec("200"), WithMarkPrice(dec("50000")), WithLeverage(dec("5")))

	res, err := ex.SubmitOrder(ctx, model.OrderRequest{
		Symbol: "PF_XBTUSD", Type: model.Market, Side: model.Buy, Size: dec("0.02"), ClientID: "c1",
	})
	require.NoError(t, err)
	assert.Equal(t, model.OrderFilled, res.Status)
	assert.True(t, res.FilledSize.Equal(dec("0.02")))
	assert.True(t, res.AvgPrice.Equal(dec("50000")))

	acc, err := ex.FetchMargin(ctx)
	require.NoError(t, err)
	// 0.02 * 50000 / 5 = 200
	assert.True(t, acc.AvailableMargin.IsZero(), "margin %s", acc.AvailableMargin)

	positions, err := ex.FetchPositions(ctx, "PF_XBTUSD")
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, model.PositionLong, positions[0].Side)
	assert.True(t, positions[0].Size.Equal(dec("0.02")))

	got, err := ex.FetchOrder(ctx, "PF_XBTUSD", res.ID)
	require.NoError(t, err)
	assert.Equal(t, res.ID, got.ID)
}

func TestSimulatedExchange_PartialFillQueue(t *testing.T) {
	ctx := context.Background()
	ex := NewSimulatedExchange(dec("1000"))
	ex.QueueFills(dec("0.5"), dec("0"))

	first, err := ex.SubmitOrder(ctx, model.OrderRequest{Symbol: "X", Type: model.Market, Side: model.Sell, Size: dec("1")})
	require.NoError(t, err)
	assert.Equal(t, model.OrderOpen, first.Status)
	assert.True(t, first.FilledSize.Equal(dec("0.5")))

	second, err := ex.SubmitOrder(ctx, model.OrderRequest{Symbol: "X", Type: model.Market, Side: model.Sell, Size: dec("1")})
	require.NoError(t, err)
	assert.True(t, second.FilledSize.IsZero())
	assert.True(t, second.AvgPrice.IsZero())

	// 队列用完后恢复默认全部成交
	third, err := ex.SubmitOrder(ctx, model.OrderRequest{Symbol: "X", Type: model.Market, Side: model.Sell, Size: dec("1")})
	require.NoError(t, err)
	assert.Equal(t, model.OrderFilled, third.Status)
}

func TestSimulatedExchange_ReduceOnlyClosesOpposite(t *testing.T) {
	ctx := context.Background()
	ex := NewSimulatedExchange(dec("100"), WithReleaseOnClose(false))
	ex.SetPosition("X", model.PositionShort, dec("0.3"))

	res, err := ex.SubmitOrder(ctx, model.OrderRequest{
		Symbol: "X", Type: model.Market, Side: model.Buy, Size: dec("0.5"), ReduceOnly: true,
	})
	require.NoError(t, err)
	// 只能平掉已有的 0.3
	assert.True(t, res.FilledSize.Equal(dec("0.3")))

	positions, err := ex.FetchPositions(ctx, "X")
	require.NoError(t, err)
	assert.Empty(t, positions)

	acc, err := ex.FetchMargin(ctx)
	require.NoError(t, err)
	assert.True(t, acc.AvailableMargin.Equal(dec("100")), "margin should not be released")
}

func TestSimulatedExchange_StopOrderRests(t *testing.T) {
	ctx := context.Background()
	ex := NewSimulatedExchange(dec("100"))

	res, err := ex.SubmitOrder(ctx, model.OrderRequest{
		Symbol: "X", Type: model.Stop, Side: model.Sell, Size: dec("0.1"), TriggerPrice: dec("49000"), ReduceOnly: true,
	})
	require.NoError(t, err)
	assert.Equal(t, model.OrderOpen, res.Status)
	assert.True(t, res.FilledSize.IsZero())
	require.Len(t, ex.Submitted(), 1)
	assert.Equal(t, model.Stop, ex.Submitted()[0].Type)
}

func TestSimulatedExchange_ErrorInjection(t *testing.T) {
	ctx := context.Background()
	ex := NewSimulatedExchange(dec("100"))
	ex.ErrorOnNext(OpFetchMargin, ErrInsufficientFunds)

	_, err := ex.FetchMargin(ctx)
	assert.True(t, errors.Is(err, ErrInsufficientFunds))

	// 第二次调用恢复正常
	_, err = ex.FetchMargin(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 2, ex.Calls(OpFetchMargin))

	ex.SetMarginMissing()
	_, err = ex.FetchMargin(ctx)
	assert.ErrorIs(t, err, ErrMarginUnavailable)

	_, err = ex.FetchOrder(ctx, "X", "missing")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}
