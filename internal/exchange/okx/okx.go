package okx

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"novaflow/internal/exchange"

	goexv2 "github.com/nntaoli-project/goex/v2"
	"github.com/nntaoli-project/goex/v2/model"
	"golang.org/x/time/rate"
)

// OKX 合约网关的基础结构，缓存交易对信息
type Okx struct {
	prv     goexv2.IPrvRest
	pub     goexv2.IPubRest
	timeout time.Duration
	limiter *rate.Limiter

	mu    sync.Mutex
	pairs map[string]model.CurrencyPair
}

// symbol 格式转换: "BTC/USDT" -> goex 需要的 CurrencyPair
func (e *Okx) toCurrencyPair(symbol string) (model.CurrencyPair, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if pair, ok := e.pairs[symbol]; ok {
		return pair, nil
	}

	parts := strings.Split(symbol, "/")
	if len(parts) == 1 { // 防止BTC-USDT-SWAP
		parts = strings.Split(symbol, "-")
	}
	if len(parts) < 2 {
		return model.CurrencyPair{}, fmt.Errorf("invalid symbol format %q, expected like BTC/USDT", symbol)
	}
	pair, err := e.pub.NewCurrencyPair(parts[0], parts[1])
	if err != nil {
		return model.CurrencyPair{}, err
	}
	if pair.ContractVal <= 0 {
		return model.CurrencyPair{}, fmt.Errorf("contract value unknown for %s", symbol)
	}
	e.pairs[symbol] = pair
	return pair, nil
}

// call goex 的方法没有 context，用超时和限流包一层
func call[T any](ctx context.Context, e *Okx, fn func() (T, []byte, error)) (T, []byte, error) {
	var zero T
	if err := e.limiter.Wait(ctx); err != nil {
		return zero, nil, err
	}
	timeoutCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	type result struct {
		v    T
		body []byte
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		v, body, err := fn()
		ch <- result{v, body, err}
	}()

	select {
	case <-timeoutCtx.Done():
		return zero, nil, timeoutCtx.Err()
	case r := <-ch:
		return r.v, r.body, r.err
	}
}

// okx 返回的业务错误码
const (
	codeInsufficientBalance = "51008"
	codeInsufficientMargin  = "51004"
)

// classifyError 把 okx 的业务错误转换成网关错误，网络错误原样返回
func classifyError(err error, body []byte) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	msg := err.Error() + string(body)
	switch {
	case strings.Contains(msg, codeInsufficientBalance), strings.Contains(msg, codeInsufficientMargin):
		return fmt.Errorf("%w: %s", exchange.ErrInsufficientFunds, msg)
	case strings.Contains(msg, `"sCode"`), strings.Contains(msg, `"code"`):
		return fmt.Errorf("%w: %s", exchange.ErrRejected, msg)
	}
	return err
}
