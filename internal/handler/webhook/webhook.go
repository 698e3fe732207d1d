package webhook

import (
	"errors"
	"net/http"
	"time"

	"novaflow/internal/consts"
	"novaflow/internal/model"
	"novaflow/internal/strategy"
	errs "novaflow/pkg/errors"
	"novaflow/pkg/errors/ecode"
	"novaflow/pkg/logger"
	"novaflow/pkg/response"
	"novaflow/pkg/validator"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// TradingView Webhook 的请求体
type alertRequest struct {
	Action   string           `json:"action" binding:"required,alert_action"`
	Price    *decimal.Decimal `json:"price" binding:"required"`
	StopLoss *decimal.Decimal `json:"stop_loss" binding:"required"`
}

type Handler struct {
	dispatcher   *strategy.Dispatcher
	responseWait time.Duration
}

func NewHandler(d *strategy.Dispatcher, responseWait time.Duration) *Handler {
	return &Handler{dispatcher: d, responseWait: responseWait}
}

// HandlerWebhook 接收信号，等待流程结果后返回；超过 responseWait 返回 pending，流程继续在后台执行
func (h *Handler) HandlerWebhook() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetString(consts.RequestId)

		var req alertRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			logger.Warn("[Webhook] invalid payload",
				logger.Pair(consts.RequestId, requestID),
				logger.Pair("error", err.Error()))
			response.BadRequests(c, errors.New(validator.Translate(err)))
			return
		}
		alert, err := strategy.ParseAlert(req.Action, *req.Price, *req.StopLoss)
		if err != nil {
			response.JSON(c, errs.Wrap(err, ecode.SignalInvalid, "alert rejected"), nil)
			return
		}
		logger.Info("[Webhook] alert received",
			logger.Pair(consts.RequestId, requestID),
			logger.Pair("alert", alert.String()))

		result, err := h.dispatcher.Dispatch(c.Request.Context(), requestID, alert)
		if err != nil {
			if errors.Is(err, strategy.ErrShuttingDown) {
				response.Unavailable(c, err.Error())
				return
			}
			response.Outcome(c, http.StatusInternalServerError, ecode.Unknown, consts.StatusError, err.Error(), nil)
			return
		}

		timer := time.NewTimer(h.responseWait)
		defer timer.Stop()
		select {
		case out := <-result:
			status, code := outcomeHTTP(out)
			response.Outcome(c, status, code, string(out.Status), out.Message, out.Details)
		case <-timer.C:
			response.Outcome(c, http.StatusAccepted, ecode.Success, consts.StatusPending,
				"workflow still running, see journal for the final outcome", nil)
		}
	}
}

// 业务结果返回 200，只有信号本身不合法时返回 400
func outcomeHTTP(out model.WorkflowOutcome) (int, int) {
	switch out.Status {
	case model.OutcomeSuccess:
		return http.StatusOK, ecode.Success
	case model.OutcomeSkipped:
		return http.StatusOK, ecode.WorkflowSkipped
	case model.OutcomeRejected:
		return http.StatusOK, ecode.ExchangeRejected
	case model.OutcomeFailed:
		if out.Reason == model.ReasonInvalidSignal {
			return http.StatusBadRequest, ecode.SignalInvalid
		}
		return http.StatusOK, ecode.ExecutionUnconfirmed
	}
	return http.StatusOK, ecode.WorkflowInternalError
}
