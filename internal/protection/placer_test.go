package protection

import (
	"context"
	"errors"
	"testing"

	"novaflow/internal/exchange"
	"novaflow/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestAttach(t *testing.T) {
	ex := exchange.NewSimulatedExchange(d("1000"))

	out, err := NewPlacer(ex).Attach(context.Background(), "PF_XBTUSD", model.Sell, d("0.02"), d("49000"))
	require.NoError(t, err)
	assert.True(t, out.Placed)
	require.NotNil(t, out.Order)

	orders := ex.Submitted()
	require.Len(t, orders, 1)
	assert.Equal(t, model.Stop, orders[0].Type)
	assert.Equal(t, model.Sell, orders[0].Side)
	assert.True(t, orders[0].ReduceOnly)
	assert.True(t, orders[0].Size.Equal(d("0.02")))
	assert.True(t, orders[0].TriggerPrice.Equal(d("49000")))
}

func TestAttach_GatewayError(t *testing.T) {
	ex := exchange.NewSimulatedExchange(d("1000"))
	ex.ErrorOnNext(exchange.OpSubmitOrder, errors.New("stop endpoint down"))

	out, err := NewPlacer(ex).Attach(context.Background(), "PF_XBTUSD", model.Buy, d("0.02"), d("51000"))
	assert.ErrorIs(t, err, ErrProtectionFailed)
	assert.False(t, out.Placed)
	assert.ErrorIs(t, out.Err, ErrProtectionFailed)
}

func TestAttach_InvalidInput(t *testing.T) {
	ex := exchange.NewSimulatedExchange(d("1000"))

	_, err := NewPlacer(ex).Attach(context.Background(), "PF_XBTUSD", model.Sell, d("0"), d("49000"))
	assert.ErrorIs(t, err, ErrProtectionFailed)
	assert.Equal(t, 0, ex.TotalCalls())
}
