package account

import (
	"context"
	"errors"
	"time"

	"github.com/nntaoli-project/goex/v2/model"
	"github.com/shopspring/decimal"
)

// ErrCoinNotFound 账户返回中没有该币种
var ErrCoinNotFound = errors.New("account info not found for coin")

// BalanceFetcher goex 私有接口中查询余额的部分
type BalanceFetcher interface {
	GetAccount(coin string) (map[string]model.Account, []byte, error)
}

type Account struct {
	Currency  string          // 如 "USDT"
	Total     decimal.Decimal // 总资产
	Available decimal.Decimal // 可用保证金
	Frozen    decimal.Decimal // 冻结资产（如挂单锁定的部分）
}

type Service struct {
	prv     BalanceFetcher
	timeout time.Duration
}

// NewAccountService 创建账户服务，prv是goex私有API客户端
func NewAccountService(prv BalanceFetcher, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Service{prv: prv, timeout: timeout}
}

type balanceResult struct {
	bal map[string]model.Account
	err error
}

// GetAccount 查询指定币种的账户余额（可用余额）
func (s *Service) GetAccount(ctx context.Context, coin string) (*Account, error) {
	// goex私有方法没有context，临时用超时控制
	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	// 带缓冲，超时返回后 goroutine 不会阻塞
	ch := make(chan balanceResult, 1)
	go func() {
		bal, _, err := s.prv.GetAccount(coin)
		ch <- balanceResult{bal, err}
	}()

	select {
	case <-timeoutCtx.Done():
		return nil, timeoutCtx.Err()
	case result := <-ch:
		if result.err != nil {
			return nil, result.err
		}
		acc, ok := result.bal[coin]
		if !ok {
			return nil, ErrCoinNotFound
		}
		return &Account{
			Currency:  acc.Coin,
			Total:     decimal.NewFromFloat(acc.Balance),
			Available: decimal.NewFromFloat(acc.AvailableBalance),
			Frozen:    decimal.NewFromFloat(acc.FrozenBalance),
		}, nil
	}
}
