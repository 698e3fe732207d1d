package exchange

import (
	"context"
	"fmt"
	"sync"

	"novaflow/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// 模拟交易所的操作名称，用于注入错误和统计调用次数
const (
	OpFetchMargin    = "fetch_margin"
	OpFetchPositions = "fetch_positions"
	OpSubmitOrder    = "submit_order"
	OpFetchOrder     = "fetch_order"
)

// 模拟交易所，本地联调和测试使用
// 市价单按成交比例立即成交，开仓占用保证金，平仓可选是否释放保证金
type SimulatedExchange struct {
	mu sync.Mutex
	// 用一个 map 存储所有订单记录，根据订单id存储订单状态
	orders    map[string]*model.OrderResult
	positions map[string]map[model.PositionSide]*model.PositionState

	margin         decimal.Decimal
	marginMissing  bool
	markPrice      decimal.Decimal
	leverage       decimal.Decimal
	fillRatio      decimal.Decimal
	fillQueue      []decimal.Decimal
	releaseOnClose bool
	hideSubmitFill bool

	errs      map[string][]error
	calls     map[string]int
	submitted []model.OrderRequest
}

type SimulatedOption func(*SimulatedExchange)

// WithMarkPrice 成交价格，同时用来计算保证金占用
func WithMarkPrice(price decimal.Decimal) SimulatedOption {
	return func(s *SimulatedExchange) { s.markPrice = price }
}

// WithLeverage 保证金占用 = 成交数量 * 价格 / 杠杆
func WithLeverage(lev decimal.Decimal) SimulatedOption {
	return func(s *SimulatedExchange) { s.leverage = lev }
}

// WithFillRatio 默认成交比例，1 表示全部成交
func WithFillRatio(ratio decimal.Decimal) SimulatedOption {
	return func(s *SimulatedExchange) { s.fillRatio = ratio }
}

// WithReleaseOnClose 平仓后立即释放保证金
func WithReleaseOnClose(release bool) SimulatedOption {
	return func(s *SimulatedExchange) { s.releaseOnClose = release }
}

// WithoutSubmitFills 下单返回中不带成交信息，只能通过查询订单或持仓确认
func WithoutSubmitFills() SimulatedOption {
	return func(s *SimulatedExchange) { s.hideSubmitFill = true }
}

func NewSimulatedExchange(margin decimal.Decimal, opts ...SimulatedOption) *SimulatedExchange {
	s := &SimulatedExchange{
		orders:         make(map[string]*model.OrderResult),
		positions:      make(map[string]map[model.PositionSide]*model.PositionState),
		margin:         margin,
		markPrice:      decimal.NewFromInt(50000),
		leverage:       decimal.NewFromInt(5),
		fillRatio:      decimal.NewFromInt(1),
		releaseOnClose: true,
		errs:           make(map[string][]error),
		calls:          make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ErrorOnNext 下一次调用 op 时返回 err，可多次调用排队
func (s *SimulatedExchange) ErrorOnNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[op] = append(s.errs[op], err)
}

// QueueFills 依次指定后续市价单的成交比例，用完后使用默认比例
func (s *SimulatedExchange) QueueFills(ratios ...decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fillQueue = append(s.fillQueue, ratios...)
}

// SetMargin 设置可用保证金
func (s *SimulatedExchange) SetMargin(margin decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.margin = margin
	s.marginMissing = false
}

// SetMarginMissing 模拟账户返回中缺少可用保证金字段
func (s *SimulatedExchange) SetMarginMissing() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marginMissing = true
}

// SetPosition 设置初始持仓
func (s *SimulatedExchange) SetPosition(symbol string, side model.PositionSide, size decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.position(symbol, side).Size = size
	s.position(symbol, side).EntryPrice = s.markPrice
}

// Submitted 返回所有提交过的订单
func (s *SimulatedExchange) Submitted() []model.OrderRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.OrderRequest, len(s.submitted))
	copy(out, s.submitted)
	return out
}

// Calls 某个操作被调用的次数
func (s *SimulatedExchange) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// TotalCalls 所有操作的调用次数
func (s *SimulatedExchange) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

func (s *SimulatedExchange) FetchMargin(ctx context.Context) (model.AccountState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, OpFetchMargin); err != nil {
		return model.AccountState{}, err
	}
	if s.marginMissing {
		return model.AccountState{}, ErrMarginUnavailable
	}
	return model.AccountState{AvailableMargin: s.margin}, nil
}

func (s *SimulatedExchange) FetchPositions(ctx context.Context, symbol string) ([]model.PositionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, OpFetchPositions); err != nil {
		return nil, err
	}
	var out []model.PositionState
	for _, side := range []model.PositionSide{model.PositionLong, model.PositionShort} {
		if p, ok := s.positions[symbol][side]; ok && p.Size.GreaterThan(decimal.Zero) {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *SimulatedExchange) SubmitOrder(ctx context.Context, req model.OrderRequest) (*model.OrderResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, OpSubmitOrder); err != nil {
		return nil, err
	}
	if req.Size.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: size must be positive", ErrRejected)
	}
	s.submitted = append(s.submitted, req)

	// 创建订单id
	result := &model.OrderResult{
		ID:       uuid.NewString(),
		ClientID: req.ClientID,
		Status:   model.OrderOpen,
	}
	s.orders[result.ID] = result

	// 止损单只挂单，不成交
	if req.Type == model.Stop {
		return s.snapshot(result), nil
	}

	ratio := s.fillRatio
	if len(s.fillQueue) > 0 {
		ratio = s.fillQueue[0]
		s.fillQueue = s.fillQueue[1:]
	}
	filled := req.Size.Mul(ratio)
	if req.ReduceOnly {
		filled = s.reduce(req, filled)
	} else {
		s.open(req, filled)
	}
	result.FilledSize = filled
	if filled.GreaterThan(decimal.Zero) {
		result.AvgPrice = s.markPrice
	}
	if filled.GreaterThanOrEqual(req.Size) {
		result.Status = model.OrderFilled
	}
	if s.hideSubmitFill {
		return &model.OrderResult{ID: result.ID, ClientID: result.ClientID, Status: model.OrderOpen}, nil
	}
	return s.snapshot(result), nil
}

func (s *SimulatedExchange) FetchOrder(ctx context.Context, symbol, orderID string) (*model.OrderResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, OpFetchOrder); err != nil {
		return nil, err
	}
	result, ok := s.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	return s.snapshot(result), nil
}

// 开仓，占用保证金
func (s *SimulatedExchange) open(req model.OrderRequest, filled decimal.Decimal) {
	side := model.PositionLong
	if req.Side == model.Sell {
		side = model.PositionShort
	}
	p := s.position(req.Symbol, side)
	p.Size = p.Size.Add(filled)
	p.EntryPrice = s.markPrice
	s.margin = s.margin.Sub(s.marginFor(filled))
}

// 平仓，只减少反方向持仓，返回实际成交数量
func (s *SimulatedExchange) reduce(req model.OrderRequest, filled decimal.Decimal) decimal.Decimal {
	side := model.PositionShort
	if req.Side == model.Sell {
		side = model.PositionLong
	}
	p := s.position(req.Symbol, side)
	if filled.GreaterThan(p.Size) {
		filled = p.Size
	}
	p.Size = p.Size.Sub(filled)
	if s.releaseOnClose {
		s.margin = s.margin.Add(s.marginFor(filled))
	}
	return filled
}

func (s *SimulatedExchange) marginFor(size decimal.Decimal) decimal.Decimal {
	if s.leverage.IsZero() {
		return decimal.Zero
	}
	return size.Mul(s.markPrice).Div(s.leverage)
}

func (s *SimulatedExchange) position(symbol string, side model.PositionSide) *model.PositionState {
	bySide, ok := s.positions[symbol]
	if !ok {
		bySide = make(map[model.PositionSide]*model.PositionState)
		s.positions[symbol] = bySide
	}
	p, ok := bySide[side]
	if !ok {
		p = &model.PositionState{Symbol: symbol, Side: side}
		bySide[side] = p
	}
	return p
}

// 记录调用次数，返回排队的错误
func (s *SimulatedExchange) enter(ctx context.Context, op string) error {
	s.calls[op]++
	if err := ctx.Err(); err != nil {
		return err
	}
	if queue := s.errs[op]; len(queue) > 0 {
		err := queue[0]
		s.errs[op] = queue[1:]
		return err
	}
	return nil
}

func (s *SimulatedExchange) snapshot(r *model.OrderResult) *model.OrderResult {
	cp := *r
	return &cp
}
