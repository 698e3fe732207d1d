package kraken

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"novaflow/internal/exchange"
	"novaflow/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = base64.StdEncoding.EncodeToString([]byte("kraken-test-secret"))

// 按 kraken 文档重新计算一遍签名
func expectedAuthent(postData, nonce, path string) string {
	key, _ := base64.StdEncoding.DecodeString(testSecret)
	digest := sha256.Sum256([]byte(postData + nonce + strings.TrimPrefix(path, "/derivatives")))
	mac := hmac.New(sha512.New, key)
	mac.Write(digest[:])
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

type fakeKraken struct {
	t        *testing.T
	handlers map[string]func(form url.Values) string
	forms    map[string]url.Values
}

func newFakeKraken(t *testing.T) (*fakeKraken, *Gateway) {
	f := &fakeKraken{t: t, handlers: map[string]func(url.Values) string{}, forms: map[string]url.Values{}}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)

	client, err := NewClient(srv.URL, "test-key", testSecret, WithRateLimit(1000))
	require.NoError(t, err)
	return f, NewGateway(client, decimal.NewFromInt(1))
}

func (f *fakeKraken) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	postData := string(body)
	if r.Method == http.MethodGet {
		postData = r.URL.RawQuery
	}
	assert.Equal(f.t, "test-key", r.Header.Get("APIKey"))
	assert.Equal(f.t, expectedAuthent(postData, r.Header.Get("Nonce"), r.URL.Path), r.Header.Get("Authent"))

	form, _ := url.ParseQuery(postData)
	f.forms[r.URL.Path] = form
	h, ok := f.handlers[r.URL.Path]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, h(form))
}

func TestGateway_FetchMargin(t *testing.T) {
	f, g := newFakeKraken(t)
	f.handlers[pathAccounts] = func(url.Values) string {
		return `{"result":"success","accounts":{"flex":{"type":"multiCollateralMarginAccount","availableMargin":200.5}}}`
	}

	acc, err := g.FetchMargin(context.Background())
	require.NoError(t, err)
	assert.True(t, acc.AvailableMargin.Equal(decimal.RequireFromString("200.5")))
}

func TestGateway_FetchMarginMissingField(t *testing.T) {
	f, g := newFakeKraken(t)
	f.handlers[pathAccounts] = func(url.Values) string {
		return `{"result":"success","accounts":{"cash":{"type":"cashAccount","balances":{"xbt":0.1}}}}`
	}

	_, err := g.FetchMargin(context.Background())
	assert.ErrorIs(t, err, exchange.ErrMarginUnavailable)
}

func TestGateway_FetchPositions(t *testing.T) {
	f, g := newFakeKraken(t)
	f.handlers[pathOpenPositions] = func(url.Values) string {
		return `{"result":"success","openPositions":[
			{"side":"short","symbol":"PF_XBTUSD","price":51000,"size":0.015},
			{"side":"long","symbol":"PF_ETHUSD","price":3000,"size":1}
		]}`
	}

	positions, err := g.FetchPositions(context.Background(), "PF_XBTUSD")
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, model.PositionShort, positions[0].Side)
	assert.True(t, positions[0].Size.Equal(decimal.RequireFromString("0.015")))
}

func TestGateway_SubmitMarketOrder(t *testing.T) {
	f, g := newFakeKraken(t)
	f.handlers[pathSendOrder] = func(form url.Values) string {
		return `{"result":"success","sendStatus":{"order_id":"abc-1","status":"placed","orderEvents":[
			{"type":"EXECUTION","price":50000,"amount":0.01},
			{"type":"EXECUTION","price":50100,"amount":0.01}
		]}}`
	}

	res, err := g.SubmitOrder(context.Background(), model.OrderRequest{
		Symbol: "PF_XBTUSD", Type: model.Market, Side: model.Buy,
		Size: decimal.RequireFromString("0.02"), ClientID: "cli-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "abc-1", res.ID)
	assert.Equal(t, model.OrderFilled, res.Status)
	assert.True(t, res.FilledSize.Equal(decimal.RequireFromString("0.02")))
	assert.True(t, res.AvgPrice.Equal(decimal.RequireFromString("50050")))

	form := f.forms[pathSendOrder]
	assert.Equal(t, "mkt", form.Get("orderType"))
	assert.Equal(t, "buy", form.Get("side"))
	assert.Equal(t, "0.02", form.Get("size"))
	assert.Equal(t, "cli-1", form.Get("cliOrdId"))
	assert.Empty(t, form.Get("reduceOnly"))
}

func TestGateway_SubmitStopOrder(t *testing.T) {
	f, g := newFakeKraken(t)
	f.handlers[pathSendOrder] = func(form url.Values) string {
		return `{"result":"success","sendStatus":{"order_id":"stop-1","status":"placed","orderEvents":[]}}`
	}

	res, err := g.SubmitOrder(context.Background(), model.OrderRequest{
		Symbol: "PF_XBTUSD", Type: model.Stop, Side: model.Sell,
		Size: decimal.RequireFromString("0.02"), TriggerPrice: decimal.RequireFromString("49000"), ReduceOnly: true,
	})
	require.NoError(t, err)
	assert.Equal(t, model.OrderOpen, res.Status)

	form := f.forms[pathSendOrder]
	assert.Equal(t, "stp", form.Get("orderType"))
	assert.Equal(t, "49000", form.Get("stopPrice"))
	assert.Equal(t, "true", form.Get("reduceOnly"))
}

func TestGateway_SubmitOrderErrors(t *testing.T) {
	cases := []struct {
		status string
		want   error
	}{
		{"insufficientAvailableFunds", exchange.ErrInsufficientFunds},
		{"invalidSize", exchange.ErrRejected},
		{"wouldNotReducePosition", exchange.ErrRejected},
	}
	for _, tc := range cases {
		t.Run(tc.status, func(t *testing.T) {
			f, g := newFakeKraken(t)
			f.handlers[pathSendOrder] = func(url.Values) string {
				return `{"result":"success","sendStatus":{"status":"` + tc.status + `"}}`
			}
			_, err := g.SubmitOrder(context.Background(), model.OrderRequest{
				Symbol: "PF_XBTUSD", Type: model.Market, Side: model.Sell, Size: decimal.RequireFromString("1"),
			})
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestGateway_FetchOrder(t *testing.T) {
	f, g := newFakeKraken(t)
	f.handlers[pathOrderStatus] = func(form url.Values) string {
		if form.Get("orderIds") != "abc-1" {
			return `{"result":"success","orders":[]}`
		}
		return `{"result":"success","orders":[{"order":{"orderId":"abc-1","symbol":"PF_XBTUSD","quantity":0.02,"filled":0.01},"status":"PARTIALLY_FILLED"}]}`
	}

	res, err := g.FetchOrder(context.Background(), "PF_XBTUSD", "abc-1")
	require.NoError(t, err)
	assert.Equal(t, model.OrderOpen, res.Status)
	assert.True(t, res.FilledSize.Equal(decimal.RequireFromString("0.01")))

	_, err = g.FetchOrder(context.Background(), "PF_XBTUSD", "missing")
	assert.ErrorIs(t, err, exchange.ErrOrderNotFound)
}

func TestGateway_HTTPError(t *testing.T) {
	_, g := newFakeKraken(t)
	// 未注册的路径返回 404
	_, err := g.FetchMargin(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, exchange.ErrMarginUnavailable)
}
