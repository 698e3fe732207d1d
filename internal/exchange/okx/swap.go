package okx

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"novaflow/internal/account"
	"novaflow/internal/exchange"
	model2 "novaflow/internal/model"
	"novaflow/pkg/logger"

	"github.com/google/uuid"
	goexv2 "github.com/nntaoli-project/goex/v2"
	"github.com/nntaoli-project/goex/v2/model"
	"github.com/nntaoli-project/goex/v2/options"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

type Config struct {
	ApiKey     string
	SecretKey  string
	Passphrase string
	MgnMode    string // cross / isolated
	MarginCoin string
	LotSize    decimal.Decimal
	Timeout    time.Duration
	RateLimit  float64
}

// 永续合约网关
type Swap struct {
	FuturesCommon
	account    *account.Service
	marginCoin string
}

// NewSwap okxv5 api 如果要使用模拟交易，需要切到到模拟交易下创建apikey
func NewSwap(cfg Config) *Swap {
	conf := []options.ApiOption{
		options.WithApiKey(cfg.ApiKey),
		options.WithApiSecretKey(cfg.SecretKey),
		options.WithPassphrase(cfg.Passphrase),
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 5
	}
	if cfg.MgnMode == "" {
		cfg.MgnMode = model2.MgnModeCross
	}
	if cfg.MarginCoin == "" {
		cfg.MarginCoin = "USDT"
	}

	pub := goexv2.OKx.Swap
	prv := pub.NewPrvApi(conf...)
	return &Swap{
		FuturesCommon: FuturesCommon{
			Okx: Okx{
				prv:     prv,
				pub:     pub,
				timeout: cfg.Timeout,
				limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
				pairs:   make(map[string]model.CurrencyPair),
			},
			mgnMode: cfg.MgnMode,
			lotSize: cfg.LotSize,
		},
		account:    account.NewAccountService(prv, cfg.Timeout),
		marginCoin: cfg.MarginCoin,
	}
}

func (e *Swap) FetchMargin(ctx context.Context) (model2.AccountState, error) {
	acc, err := e.account.GetAccount(ctx, e.marginCoin)
	if errors.Is(err, account.ErrCoinNotFound) {
		return model2.AccountState{}, fmt.Errorf("%w: %s", exchange.ErrMarginUnavailable, e.marginCoin)
	}
	if err != nil {
		return model2.AccountState{}, err
	}
	return model2.AccountState{AvailableMargin: acc.Available}, nil
}

func (e *Swap) FetchPositions(ctx context.Context, symbol string) ([]model2.PositionState, error) {
	return e.getPositions(ctx, symbol)
}

// SubmitOrder 数量单位为币，下单前换算成张数
func (e *Swap) SubmitOrder(ctx context.Context, req model2.OrderRequest) (*model2.OrderResult, error) {
	pair, err := e.toCurrencyPair(req.Symbol)
	if err != nil {
		return nil, err
	}
	sz := e.toContracts(req.Size, pair.ContractVal)
	if sz.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: size %s below one lot", exchange.ErrRejected, req.Size)
	}
	clientID := req.ClientID
	if clientID == "" {
		clientID = uuid.NewString()
	}
	// okx 的 clOrdId 只允许字母和数字
	clientID = strings.ReplaceAll(clientID, "-", "")

	if req.Type == model2.Stop {
		req.ClientID = clientID
		return e.placeStopOrder(ctx, pair, req, sz)
	}

	side, posSide := orderSide(req.Side, req.ReduceOnly)
	/*
		合约交易需要设置tdMode
		| 值          | 含义   |
		| ---------- | ---- |
		| `cross`    | 全仓模式 |
		| `isolated` | 逐仓模式 |
	*/
	opts := []model.OptionParameter{
		{Key: "tdMode", Value: e.mgnMode},
		{Key: "posSide", Value: string(posSide)},
		{Key: "clOrdId", Value: clientID},
	}
	if req.ReduceOnly {
		opts = append(opts, model.OptionParameter{Key: "reduceOnly", Value: "true"})
	}

	qty := sz.InexactFloat64()
	created, body, err := call(ctx, &e.Okx, func() (*model.Order, []byte, error) {
		return e.prv.CreateOrder(pair, qty, 0, side, model.OrderType_Market, opts...)
	})
	if err != nil {
		logger.Warn("okx CreateOrder error",
			logger.Pair("symbol", req.Symbol),
			logger.Pair("size", req.Size.String()),
			logger.Pair("error", err.Error()))
		return nil, classifyError(err, body)
	}

	return &model2.OrderResult{
		ID:       created.Id,
		ClientID: clientID,
		Status:   model2.OrderOpen,
	}, nil
}

func (e *Swap) FetchOrder(ctx context.Context, symbol, orderID string) (*model2.OrderResult, error) {
	pair, err := e.toCurrencyPair(symbol)
	if err != nil {
		return nil, err
	}
	info, body, err := call(ctx, &e.Okx, func() (*model.Order, []byte, error) {
		return e.prv.GetOrderInfo(pair, orderID)
	})
	if err != nil {
		return nil, classifyError(err, body)
	}
	if info == nil {
		return nil, fmt.Errorf("%w: %s", exchange.ErrOrderNotFound, orderID)
	}

	ctVal := decimal.NewFromFloat(pair.ContractVal)
	result := &model2.OrderResult{
		ID:         info.Id,
		FilledSize: decimal.NewFromFloat(info.ExecutedQty).Mul(ctVal),
		Status:     model2.OrderOpen,
	}
	if info.Qty > 0 && info.ExecutedQty >= info.Qty {
		result.Status = model2.OrderFilled
	}
	return result, nil
}

// EnableSimulatedTrading okx 模拟盘需要在请求头中带上 x-simulated-trading
func EnableSimulatedTrading() {
	goexv2.DefaultHttpCli.SetHeaders("x-simulated-trading", "1")
}
