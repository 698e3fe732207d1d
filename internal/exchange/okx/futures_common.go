package okx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"novaflow/internal/exchange"
	model2 "novaflow/internal/model"

	"github.com/goccy/go-json"
	"github.com/nntaoli-project/goex/v2/model"
	"github.com/nntaoli-project/goex/v2/okx/common"
	"github.com/nntaoli-project/goex/v2/okx/futures"
	"github.com/shopspring/decimal"
)

// 合约公共结构体，持仓查询、张数换算、止损委托
type FuturesCommon struct {
	Okx
	mgnMode string
	lotSize decimal.Decimal
}

// 只有合约才可以获取持仓数据，数量换算成币
func (e *FuturesCommon) getPositions(ctx context.Context, symbol string) ([]model2.PositionState, error) {
	pair, err := e.toCurrencyPair(symbol)
	if err != nil {
		return nil, err
	}
	swap, ok := e.prv.(*futures.PrvApi)
	if !ok {
		return nil, errors.New("Prv() 不是合约接口，无法获取仓位")
	}

	res, _, err := call(ctx, &e.Okx, func() ([]model.FuturesPosition, []byte, error) {
		return swap.GetPositions(pair)
	})
	if err != nil {
		return nil, err
	}

	ctVal := decimal.NewFromFloat(pair.ContractVal)
	var items []model2.PositionState
	for _, re := range res {
		if re.Qty == 0 {
			// 没有张数的仓位忽略
			continue
		}
		var side model2.PositionSide
		switch re.PosSide {
		case model.Futures_OpenBuy:
			side = model2.PositionLong
		case model.Futures_OpenSell:
			side = model2.PositionShort
		default:
			continue
		}
		items = append(items, model2.PositionState{
			Symbol:     symbol,
			Side:       side,
			Size:       decimal.NewFromFloat(re.Qty).Mul(ctVal),
			EntryPrice: decimal.NewFromFloat(re.AvgPx),
		})
	}
	return items, nil
}

// 币数量 -> 张数，按 lotSize 向下取整
func (e *FuturesCommon) toContracts(size decimal.Decimal, ctVal float64) decimal.Decimal {
	return ToContracts(size, decimal.NewFromFloat(ctVal), e.lotSize)
}

// ToContracts 币数量换算成张数，向下取整到 lot
func ToContracts(size, ctVal, lot decimal.Decimal) decimal.Decimal {
	if ctVal.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	sz := size.Div(ctVal)
	if lot.GreaterThan(decimal.Zero) {
		sz = sz.Div(lot).Floor().Mul(lot)
	}
	return sz
}

// 下单方向：开仓 Futures_OpenBuy/OpenSell，只减仓时平掉反向持仓
func orderSide(side model2.OrderSide, reduceOnly bool) (model.OrderSide, model2.PositionSide) {
	switch {
	case side == model2.Buy && !reduceOnly:
		return model.Futures_OpenBuy, model2.PositionLong
	case side == model2.Sell && !reduceOnly:
		return model.Futures_OpenSell, model2.PositionShort
	case side == model2.Buy && reduceOnly:
		// 持有空单，平掉空单
		return model.Futures_CloseSell, model2.PositionShort
	default:
		// 持有多单，平掉多单
		return model.Futures_CloseBuy, model2.PositionLong
	}
}

type algoOrderResponse struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data []struct {
		AlgoId string `json:"algoId"`
		SCode  string `json:"sCode"`
		SMsg   string `json:"sMsg"`
	} `json:"data"`
}

// placeStopOrder 止损委托 /api/v5/trade/order-algo，触发后市价平仓
func (e *FuturesCommon) placeStopOrder(ctx context.Context, pair model.CurrencyPair, req model2.OrderRequest, sz decimal.Decimal) (*model2.OrderResult, error) {
	prv, ok := e.prv.(*futures.PrvApi)
	if !ok {
		return nil, errors.New("placeStopOrder: Prv() 必须是合约")
	}
	_, posSide := orderSide(req.Side, true)
	reqUrl := fmt.Sprintf("%s%s", prv.UriOpts.Endpoint, "/api/v5/trade/order-algo")

	params := url.Values{}
	params.Set("instId", pair.Symbol)
	params.Set("tdMode", e.mgnMode)
	params.Set("side", string(req.Side))
	params.Set("posSide", string(posSide))
	params.Set("ordType", "conditional")
	params.Set("sz", sz.String())
	params.Set("slTriggerPx", req.TriggerPrice.String())
	params.Set("slOrdPx", "-1") // -1 表示市价止损
	params.Set("reduceOnly", "true")
	if req.ClientID != "" {
		params.Set("algoClOrdId", req.ClientID)
	}
	common.AdaptOrderClientIDOptionParameter(&params)

	_, body, err := call(ctx, &e.Okx, func() ([]byte, []byte, error) {
		return prv.DoAuthRequest(http.MethodPost, reqUrl, &params, nil)
	})
	if err != nil {
		return nil, classifyError(err, body)
	}
	return parseAlgoResponse(body)
}

func parseAlgoResponse(data []byte) (*model2.OrderResult, error) {
	var r algoOrderResponse
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode order-algo response: %w", err)
	}
	if r.Code != "0" || len(r.Data) == 0 {
		return nil, classifyError(fmt.Errorf("order-algo code=%s msg=%s", r.Code, r.Msg), data)
	}
	d := r.Data[0]
	if d.SCode != "" && d.SCode != "0" {
		return nil, classifyError(fmt.Errorf("order-algo sCode=%s sMsg=%s", d.SCode, d.SMsg), data)
	}
	return &model2.OrderResult{ID: d.AlgoId, Status: model2.OrderOpen}, nil
}

var _ exchange.Gateway = (*Swap)(nil)
