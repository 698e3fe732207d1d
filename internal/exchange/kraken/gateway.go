package kraken

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"novaflow/internal/exchange"
	"novaflow/internal/model"
	"novaflow/pkg/logger"

	"github.com/shopspring/decimal"
)

type accountsResponse struct {
	Result   string `json:"result"`
	Error    string `json:"error"`
	Accounts map[string]struct {
		Type            string           `json:"type"`
		AvailableMargin *decimal.Decimal `json:"availableMargin"`
	} `json:"accounts"`
}

type openPositionsResponse struct {
	Result        string `json:"result"`
	Error         string `json:"error"`
	OpenPositions []struct {
		Side   string          `json:"side"`
		Symbol string          `json:"symbol"`
		Price  decimal.Decimal `json:"price"`
		Size   decimal.Decimal `json:"size"`
	} `json:"openPositions"`
}

type orderEvent struct {
	Type   string          `json:"type"`
	Price  decimal.Decimal `json:"price"`
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason"`
}

type sendOrderResponse struct {
	Result     string `json:"result"`
	Error      string `json:"error"`
	SendStatus struct {
		OrderID     string       `json:"order_id"`
		CliOrdID    string       `json:"cliOrdId"`
		Status      string       `json:"status"`
		OrderEvents []orderEvent `json:"orderEvents"`
	} `json:"sendStatus"`
}

type orderStatusResponse struct {
	Result string `json:"result"`
	Error  string `json:"error"`
	Orders []struct {
		Order struct {
			OrderID  string          `json:"orderId"`
			CliOrdID string          `json:"cliOrdId"`
			Symbol   string          `json:"symbol"`
			Quantity decimal.Decimal `json:"quantity"`
			Filled   decimal.Decimal `json:"filled"`
		} `json:"order"`
		Status string `json:"status"`
	} `json:"orders"`
}

// Gateway kraken futures 网关，合约张数与币数量通过 contractSize 换算
type Gateway struct {
	client       *Client
	contractSize decimal.Decimal
}

func NewGateway(client *Client, contractSize decimal.Decimal) *Gateway {
	if contractSize.LessThanOrEqual(decimal.Zero) {
		contractSize = decimal.NewFromInt(1)
	}
	return &Gateway{client: client, contractSize: contractSize}
}

var _ exchange.Gateway = (*Gateway)(nil)

// FetchMargin 使用 flex(多币种保证金) 账户的 availableMargin
func (g *Gateway) FetchMargin(ctx context.Context) (model.AccountState, error) {
	var resp accountsResponse
	if err := g.client.do(ctx, http.MethodGet, pathAccounts, nil, &resp); err != nil {
		return model.AccountState{}, err
	}
	if resp.Result != "success" {
		return model.AccountState{}, fmt.Errorf("kraken accounts: %s", resp.Error)
	}
	flex, ok := resp.Accounts["flex"]
	if !ok || flex.AvailableMargin == nil {
		return model.AccountState{}, exchange.ErrMarginUnavailable
	}
	return model.AccountState{AvailableMargin: *flex.AvailableMargin}, nil
}

func (g *Gateway) FetchPositions(ctx context.Context, symbol string) ([]model.PositionState, error) {
	var resp openPositionsResponse
	if err := g.client.do(ctx, http.MethodGet, pathOpenPositions, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Result != "success" {
		return nil, fmt.Errorf("kraken openpositions: %s", resp.Error)
	}
	var out []model.PositionState
	for _, p := range resp.OpenPositions {
		if !strings.EqualFold(p.Symbol, symbol) || p.Size.LessThanOrEqual(decimal.Zero) {
			continue
		}
		side := model.PositionLong
		if strings.EqualFold(p.Side, "short") {
			side = model.PositionShort
		}
		out = append(out, model.PositionState{
			Symbol:     symbol,
			Side:       side,
			Size:       p.Size.Mul(g.contractSize),
			EntryPrice: p.Price,
		})
	}
	return out, nil
}

func (g *Gateway) SubmitOrder(ctx context.Context, req model.OrderRequest) (*model.OrderResult, error) {
	params := url.Values{}
	params.Set("symbol", req.Symbol)
	params.Set("side", string(req.Side))
	params.Set("size", req.Size.Div(g.contractSize).String())
	switch req.Type {
	case model.Market:
		params.Set("orderType", "mkt")
	case model.Stop:
		params.Set("orderType", "stp")
		params.Set("stopPrice", req.TriggerPrice.String())
		params.Set("triggerSignal", "mark")
	default:
		return nil, fmt.Errorf("unsupported order type: %s", req.Type)
	}
	if req.ReduceOnly {
		params.Set("reduceOnly", "true")
	}
	if req.ClientID != "" {
		params.Set("cliOrdId", req.ClientID)
	}

	var resp sendOrderResponse
	if err := g.client.do(ctx, http.MethodPost, pathSendOrder, params, &resp); err != nil {
		return nil, err
	}
	if resp.Result != "success" {
		return nil, fmt.Errorf("kraken sendorder: %s", resp.Error)
	}

	st := resp.SendStatus
	switch st.Status {
	case "placed", "partiallyFilled", "filled":
	case "insufficientAvailableFunds":
		return nil, fmt.Errorf("%w: %s", exchange.ErrInsufficientFunds, st.Status)
	default:
		logger.Warn("kraken order rejected",
			logger.Pair("symbol", req.Symbol),
			logger.Pair("status", st.Status),
			logger.Pair("cli_ord_id", req.ClientID))
		return nil, fmt.Errorf("%w: %s", exchange.ErrRejected, st.Status)
	}

	result := &model.OrderResult{
		ID:       st.OrderID,
		ClientID: req.ClientID,
		Status:   model.OrderOpen,
	}
	// 市价单的成交记录在 orderEvents 中直接返回
	notional := decimal.Zero
	for _, ev := range st.OrderEvents {
		if ev.Type != "EXECUTION" {
			continue
		}
		result.FilledSize = result.FilledSize.Add(ev.Amount)
		notional = notional.Add(ev.Amount.Mul(ev.Price))
	}
	if result.FilledSize.GreaterThan(decimal.Zero) {
		result.AvgPrice = notional.Div(result.FilledSize)
		result.FilledSize = result.FilledSize.Mul(g.contractSize)
	}
	if st.Status == "filled" || result.FilledSize.GreaterThanOrEqual(req.Size) {
		result.Status = model.OrderFilled
	}
	return result, nil
}

func (g *Gateway) FetchOrder(ctx context.Context, symbol, orderID string) (*model.OrderResult, error) {
	params := url.Values{}
	params.Set("orderIds", orderID)

	var resp orderStatusResponse
	if err := g.client.do(ctx, http.MethodPost, pathOrderStatus, params, &resp); err != nil {
		return nil, err
	}
	if resp.Result != "success" {
		return nil, fmt.Errorf("kraken orders/status: %s", resp.Error)
	}
	for _, o := range resp.Orders {
		if o.Order.OrderID != orderID {
			continue
		}
		result := &model.OrderResult{
			ID:         o.Order.OrderID,
			ClientID:   o.Order.CliOrdID,
			FilledSize: o.Order.Filled.Mul(g.contractSize),
			Status:     orderStatus(o.Status),
		}
		return result, nil
	}
	// 已完全成交的市价单可能查询不到，由调用方根据持仓判断
	return nil, fmt.Errorf("%w: %s", exchange.ErrOrderNotFound, orderID)
}

func orderStatus(s string) model.OrderStatus {
	switch s {
	case "FULLY_EXECUTED":
		return model.OrderFilled
	case "ENTERED_BOOK", "UNTOUCHED", "PARTIALLY_FILLED", "TRIGGER_PLACED":
		return model.OrderOpen
	case "REJECTED", "CANCELLED":
		return model.OrderRejected
	}
	return model.OrderUnknown
}
