package middleware

import (
	"net/http"

	"novaflow/internal/consts"
	"novaflow/pkg/errors/ecode"
	"novaflow/pkg/logger"
	"novaflow/pkg/response"

	"github.com/gin-gonic/gin"
)

// Middleware 全局中间件，作为第一个 Router 加载
type Middleware struct{}

func NewMiddleware() *Middleware {
	return &Middleware{}
}

func (m *Middleware) Load(g *gin.Engine) {
	g.Use(RequestId(), Recovery(), Logger(), NoCache(), Secure())
	g.NoRoute(func(c *gin.Context) {
		response.Outcome(c, http.StatusNotFound, ecode.InvalidParams, consts.StatusFailed, "route not found", nil)
	})
}

// Recovery panic 时返回 error 状态，不暴露堆栈
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, err any) {
		logger.Error("[Panic]",
			logger.Pair(consts.RequestId, c.GetString(consts.RequestId)),
			logger.Pair("path", c.Request.URL.Path),
			logger.Pair("error", err))
		response.Outcome(c, http.StatusInternalServerError, ecode.Unknown, consts.StatusError, "internal error", nil)
		c.Abort()
	})
}
