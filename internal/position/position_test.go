package position

import (
	"context"
	"errors"
	"testing"
	"time"

	"novaflow/internal/exchange"
	"novaflow/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// 记录等待时间，不真正 sleep
type recordSleep struct {
	waits []time.Duration
}

func (r *recordSleep) sleep(_ context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return nil
}

func newResolver(ex exchange.Gateway, rs *recordSleep) *ReversalResolver {
	return NewReversalResolver(ex, 3*time.Second, d("0.01")).WithSleep(rs.sleep)
}

func TestResolve_NoPosition(t *testing.T) {
	ex := exchange.NewSimulatedExchange(d("200"))
	rs := &recordSleep{}

	out, err := newResolver(ex, rs).Resolve(context.Background(), "X", model.PositionLong)
	require.NoError(t, err)
	assert.False(t, out.Closed)
	assert.False(t, out.SameSideOpen)
	assert.Empty(t, ex.Submitted())
	assert.Empty(t, rs.waits)
	assert.Equal(t, 0, ex.Calls(exchange.OpFetchMargin))
}

func TestResolve_ClosesOppositeAndWaits(t *testing.T) {
	ex := exchange.NewSimulatedExchange(d("100"), exchange.WithMarkPrice(d("50000")), exchange.WithLeverage(d("5")))
	ex.SetPosition("X", model.PositionShort, d("0.01"))
	rs := &recordSleep{}

	out, err := newResolver(ex, rs).Resolve(context.Background(), "X", model.PositionLong)
	require.NoError(t, err)
	assert.True(t, out.Closed)
	assert.True(t, out.ClosedSize.Equal(d("0.01")))
	assert.Equal(t, []time.Duration{3 * time.Second}, rs.waits)
	// 0.01 * 50000 / 5 = 100
	assert.True(t, out.MarginAfter.Equal(d("200")))

	orders := ex.Submitted()
	require.Len(t, orders, 1)
	assert.Equal(t, model.Buy, orders[0].Side)
	assert.True(t, orders[0].ReduceOnly)
	assert.Equal(t, model.Market, orders[0].Type)
}

func TestResolve_MarginNotReleased(t *testing.T) {
	ex := exchange.NewSimulatedExchange(d("100"), exchange.WithReleaseOnClose(false))
	ex.SetPosition("X", model.PositionLong, d("0.5"))
	rs := &recordSleep{}

	out, err := newResolver(ex, rs).Resolve(context.Background(), "X", model.PositionShort)
	assert.ErrorIs(t, err, ErrMarginNotReleased)
	assert.True(t, out.Closed)
	assert.Len(t, ex.Submitted(), 1)
}

func TestResolve_SameSideUntouched(t *testing.T) {
	ex := exchange.NewSimulatedExchange(d("100"))
	ex.SetPosition("X", model.PositionLong, d("0.5"))
	rs := &recordSleep{}

	out, err := newResolver(ex, rs).Resolve(context.Background(), "X", model.PositionLong)
	require.NoError(t, err)
	assert.True(t, out.SameSideOpen)
	assert.False(t, out.Closed)
	assert.Empty(t, ex.Submitted())
}

func TestResolve_CloseRejected(t *testing.T) {
	ex := exchange.NewSimulatedExchange(d("100"))
	ex.SetPosition("X", model.PositionShort, d("0.5"))
	ex.ErrorOnNext(exchange.OpSubmitOrder, exchange.ErrRejected)

	_, err := newResolver(ex, &recordSleep{}).Resolve(context.Background(), "X", model.PositionLong)
	assert.ErrorIs(t, err, exchange.ErrRejected)
}

func TestResolve_PositionsError(t *testing.T) {
	ex := exchange.NewSimulatedExchange(d("100"))
	boom := errors.New("timeout")
	ex.ErrorOnNext(exchange.OpFetchPositions, boom)

	_, err := newResolver(ex, &recordSleep{}).Resolve(context.Background(), "X", model.PositionLong)
	assert.ErrorIs(t, err, boom)
}

func TestResolve_ZeroDeltaUnchangedMarginNotReleased(t *testing.T) {
	ex := exchange.NewSimulatedExchange(d("100"), exchange.WithReleaseOnClose(false))
	ex.SetPosition("X", model.PositionLong, d("0.02"))

	r := NewReversalResolver(ex, time.Second, decimal.Zero).WithSleep((&recordSleep{}).sleep)
	out, err := r.Resolve(context.Background(), "X", model.PositionShort)
	assert.ErrorIs(t, err, ErrMarginNotReleased)
	assert.True(t, out.MarginAfter.Equal(out.MarginBefore))
}

func TestResolve_ReleaseEqualToDeltaNotEnough(t *testing.T) {
	// 0.0001 * 50000 / 5 = 1，恰好等于最小释放量
	ex := exchange.NewSimulatedExchange(d("100"))
	ex.SetPosition("X", model.PositionShort, d("0.0001"))

	r := NewReversalResolver(ex, time.Second, d("1")).WithSleep((&recordSleep{}).sleep)
	_, err := r.Resolve(context.Background(), "X", model.PositionLong)
	assert.ErrorIs(t, err, ErrMarginNotReleased)
}
