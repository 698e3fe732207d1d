package okx

import (
	"errors"
	"testing"

	"novaflow/internal/exchange"
	model2 "novaflow/internal/model"

	"github.com/nntaoli-project/goex/v2/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToContracts(t *testing.T) {
	cases := []struct {
		name  string
		size  string
		ctVal string
		lot   string
		want  string
	}{
		{"btc swap", "0.02", "0.01", "0.01", "2"},
		{"floor to lot", "0.0237", "0.01", "0.01", "2.37"},
		{"below lot", "0.00005", "0.01", "0.01", "0"},
		{"eth swap", "1.234", "0.1", "1", "12"},
		{"no lot", "0.5", "0.1", "0", "5"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ToContracts(decimal.RequireFromString(tc.size), decimal.RequireFromString(tc.ctVal), decimal.RequireFromString(tc.lot))
			assert.True(t, got.Equal(decimal.RequireFromString(tc.want)), "got %s want %s", got, tc.want)
		})
	}
}

func TestOrderSide(t *testing.T) {
	side, pos := orderSide(model2.Buy, false)
	assert.Equal(t, model.Futures_OpenBuy, side)
	assert.Equal(t, model2.PositionLong, pos)

	side, pos = orderSide(model2.Sell, false)
	assert.Equal(t, model.Futures_OpenSell, side)
	assert.Equal(t, model2.PositionShort, pos)

	// 买入只减仓 = 平空
	side, pos = orderSide(model2.Buy, true)
	assert.Equal(t, model.Futures_CloseSell, side)
	assert.Equal(t, model2.PositionShort, pos)

	side, pos = orderSide(model2.Sell, true)
	assert.Equal(t, model.Futures_CloseBuy, side)
	assert.Equal(t, model2.PositionLong, pos)
}

func TestClassifyError(t *testing.T) {
	funds := classifyError(errors.New(`{"code":"1","data":[{"sCode":"51008","sMsg":"Order failed. Insufficient USDT margin"}]}`), nil)
	assert.ErrorIs(t, funds, exchange.ErrInsufficientFunds)

	rejected := classifyError(errors.New("request failed"), []byte(`{"code":"1","data":[{"sCode":"51000","sMsg":"Parameter sz error"}]}`))
	assert.ErrorIs(t, rejected, exchange.ErrRejected)

	network := errors.New("dial tcp: i/o timeout")
	assert.Equal(t, network, classifyError(network, nil))
	assert.NoError(t, classifyError(nil, nil))
}

func TestParseAlgoResponse(t *testing.T) {
	res, err := parseAlgoResponse([]byte(`{"code":"0","msg":"","data":[{"algoId":"681096944655273984","sCode":"0","sMsg":""}]}`))
	require.NoError(t, err)
	assert.Equal(t, "681096944655273984", res.ID)
	assert.Equal(t, model2.OrderOpen, res.Status)

	_, err = parseAlgoResponse([]byte(`{"code":"1","msg":"","data":[{"algoId":"","sCode":"51277","sMsg":"SL trigger price cannot be higher than the last price"}]}`))
	assert.ErrorIs(t, err, exchange.ErrRejected)

	_, err = parseAlgoResponse([]byte(`not json`))
	assert.Error(t, err)
}
