package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// 指标在 init 中注册，由 router 的 /metrics 暴露
//   novaflow_outcomes_total{status,reason}  流程结果
//   novaflow_orders_total{kind,result}      下单次数，kind: close|entry|stop
//   novaflow_workflow_seconds               单次流程耗时
//   novaflow_workflows_in_flight            正在执行的流程数
var (
	outcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "novaflow_outcomes_total",
			Help: "Workflow outcomes by status and reason",
		},
		[]string{"status", "reason"},
	)

	orders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "novaflow_orders_total",
			Help: "Orders submitted to the exchange",
		},
		[]string{"kind", "result"},
	)

	duration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "novaflow_workflow_seconds",
			Help:    "Alert workflow duration",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
	)

	inFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "novaflow_workflows_in_flight",
			Help: "Workflows currently running",
		},
	)
)

func init() {
	prometheus.MustRegister(outcomes, orders, duration, inFlight)
}

// 下单种类
const (
	OrderClose = "close"
	OrderEntry = "entry"
	OrderStop  = "stop"
)

func ObserveOutcome(status, reason string, d time.Duration) {
	outcomes.WithLabelValues(status, reason).Inc()
	duration.Observe(d.Seconds())
}

func ObserveOrders(kind, result string, n int) {
	if n <= 0 {
		return
	}
	orders.WithLabelValues(kind, result).Add(float64(n))
}

func WorkflowStarted()  { inFlight.Inc() }
func WorkflowFinished() { inFlight.Dec() }
