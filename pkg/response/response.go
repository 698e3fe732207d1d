package response

import (
	"net/http"

	"novaflow/internal/consts"
	"novaflow/pkg/errors"
	"novaflow/pkg/errors/ecode"

	"github.com/gin-gonic/gin"
)

// 代表响应给客户端的的一个消息结构，包括错误码，流程状态，错误信息，响应数据
type ApiResponse struct {
	RequestId string      `json:"request_id"` // 请求的唯一ID
	Code      int         `json:"code"`       // 错误码 0表示无错误
	Status    string      `json:"status"`     // success / skipped / failed / rejected / error / ignored
	Message   string      `json:"message"`    // 提示信息
	Data      interface{} `json:"data"`       // 响应数据
}

// 发送json格式数据
func JSON(c *gin.Context, err error, data interface{}) {
	code, message := errors.DecodeErr(err)
	status := consts.StatusSuccess
	// 如果code != 0, 失败的话 返回http状态码400
	httpStatus := http.StatusOK
	if code != ecode.Success {
		httpStatus = http.StatusBadRequest
		status = consts.StatusFailed
	}
	c.JSON(httpStatus, ApiResponse{
		RequestId: c.GetString(consts.RequestId),
		Code:      code,
		Status:    status,
		Message:   message,
		Data:      data,
	})
}

// Outcome 返回流程结果，skipped/rejected 等业务结果仍然是200，信号源不需要重试
func Outcome(c *gin.Context, httpStatus int, code int, status, message string, data interface{}) {
	c.JSON(httpStatus, ApiResponse{
		RequestId: c.GetString(consts.RequestId),
		Code:      code,
		Status:    status,
		Message:   message,
		Data:      data,
	})
}

// 重复请求，直接忽略
func Ignored(c *gin.Context, message string) {
	c.JSON(http.StatusOK, ApiResponse{
		RequestId: c.GetString(consts.RequestId),
		Code:      ecode.Success,
		Status:    consts.StatusIgnored,
		Message:   message,
	})
}

// 服务正在关闭，返回503
func Unavailable(c *gin.Context, message string) {
	c.JSON(http.StatusServiceUnavailable, ApiResponse{
		RequestId: c.GetString(consts.RequestId),
		Code:      ecode.Unavailable,
		Status:    consts.StatusIgnored,
		Message:   message,
	})
}

// 参数错误，返回400
func BadRequests(c *gin.Context, err error) {
	message := "invalid request"
	if err != nil {
		message = err.Error()
	}
	c.JSON(http.StatusBadRequest, ApiResponse{
		RequestId: c.GetString(consts.RequestId),
		Code:      ecode.InvalidParams,
		Status:    consts.StatusFailed,
		Message:   message,
	})
}
