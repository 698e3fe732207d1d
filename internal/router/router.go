package router

import (
	"time"

	"novaflow/conf"
	"novaflow/internal/handler/ping"
	"novaflow/internal/handler/webhook"
	"novaflow/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type ApiRouter struct {
	cfg         *conf.Config
	wh          *webhook.Handler
	dedupWindow time.Duration
	secret      string
}

func NewApiRouter(cfg *conf.Config, wh *webhook.Handler) *ApiRouter {
	return &ApiRouter{
		cfg:         cfg,
		wh:          wh,
		dedupWindow: cfg.Workflow.DedupWindow.Std(),
		secret:      cfg.Webhook.Secret,
	}
}

func (api *ApiRouter) Load(g *gin.Engine) {
	g.GET("/", ping.Status(api.cfg))
	g.GET("/health", ping.Health())
	g.GET("/ping", ping.Ping())
	g.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// tradingview 推送，先验签，同一信号短时间内重复推送时忽略
	verify := middleware.VerifySignature(api.secret)
	dedup := middleware.AntiDuplicate(api.dedupWindow, 500)
	g.POST("/webhook", verify, dedup, api.wh.HandlerWebhook())

	base := g.Group("/api/v1")
	{
		base.POST("/webhook", verify, dedup, api.wh.HandlerWebhook())
	}
}
