package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OutcomeStatus string

const (
	OutcomeSuccess  OutcomeStatus = "success"
	OutcomeSkipped  OutcomeStatus = "skipped"
	OutcomeFailed   OutcomeStatus = "failed"
	OutcomeRejected OutcomeStatus = "rejected"
	OutcomeError    OutcomeStatus = "error"
)

// 流程结果原因
const (
	ReasonInvalidSignal        = "invalid_signal"
	ReasonSameSidePosition     = "same_side_position"
	ReasonMarginNotReleased    = "margin_not_released"
	ReasonMarginUnavailable    = "margin_unavailable"
	ReasonInsufficientMargin   = "insufficient_margin"
	ReasonInsufficientSize     = "insufficient_size"
	ReasonInsufficientFunds    = "insufficient_funds"
	ReasonExchangeRejected     = "exchange_rejected"
	ReasonExecutionUnconfirmed = "execution_unconfirmed"
	ReasonProtectionFailed     = "protection_failed"
	ReasonFilled               = "filled"
	ReasonInternalError        = "internal_error"
	ReasonSymbolBusy           = "symbol_busy"
)

// OutcomeDetails 返回给信号源的下单明细
type OutcomeDetails struct {
	Symbol           string          `json:"symbol"`
	Action           Action          `json:"action"`
	EntryPrice       decimal.Decimal `json:"entry_price"`
	Quantity         decimal.Decimal `json:"quantity"`
	FilledSize       decimal.Decimal `json:"filled_size"`
	StopPrice        decimal.Decimal `json:"stop_price"`
	EntryOrderID     string          `json:"entry_order_id,omitempty"`
	StopOrderID      string          `json:"stop_order_id,omitempty"`
	Reversed         bool            `json:"reversed"`
	ClosedSize       decimal.Decimal `json:"closed_size"`
	Attempts         int             `json:"attempts"`
	Submissions      int             `json:"submissions"`
	ProtectionFailed bool            `json:"protection_failed"`
}

// WorkflowOutcome 一次信号处理的最终结果
type WorkflowOutcome struct {
	Status   OutcomeStatus   `json:"status"`
	Reason   string          `json:"reason"`
	Message  string          `json:"message,omitempty"`
	Details  *OutcomeDetails `json:"details,omitempty"`
	Duration time.Duration   `json:"duration"`
	Err      error           `json:"-"`
}
