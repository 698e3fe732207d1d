package middleware

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"novaflow/internal/consts"
	"novaflow/pkg/logger"

	"github.com/gin-gonic/gin"
)

// 日志里最多记录的请求体长度
const maxLoggedBody = 2048

// 探活和指标抓取太频繁，不记录
var quietPaths = map[string]struct{}{
	"/health":  {},
	"/ping":    {},
	"/metrics": {},
}

// Logger 记录每个请求的开始和结束，5xx 记 error，4xx 记 warn
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if _, ok := quietPaths[path]; ok {
			c.Next()
			return
		}

		start := time.Now()
		reqId := c.GetString(consts.RequestId)
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			body = []byte{}
		}
		c.Request.Body = io.NopCloser(bytes.NewBuffer(body))
		if len(body) > maxLoggedBody {
			body = body[:maxLoggedBody]
		}

		logger.Info("request start",
			logger.Pair(consts.RequestId, reqId),
			logger.Pair("client_ip", c.ClientIP()),
			logger.Pair("method", c.Request.Method),
			logger.Pair("path", path),
			logger.Pair("body", string(body)))

		c.Next()

		fields := []logger.Field{
			logger.Pair(consts.RequestId, reqId),
			logger.Pair("path", path),
			logger.Pair("status", c.Writer.Status()),
			logger.Pair("cost", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, logger.Pair("errors", c.Errors.String()))
		}
		switch code := c.Writer.Status(); {
		case code >= http.StatusInternalServerError:
			logger.Error("request end", fields...)
		case code >= http.StatusBadRequest:
			logger.Warn("request end", fields...)
		default:
			logger.Info("request end", fields...)
		}
	}
}
