package ping

import (
	"net/http"

	"novaflow/conf"

	"github.com/gin-gonic/gin"
)

func Ping() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.String(http.StatusOK, "\r\nSuccess")
	}
}

// Health 给部署平台做存活检查
func Health() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "healthy"})
	}
}

type statusDoc struct {
	Status       string `json:"status"`
	Message      string `json:"message"`
	Environment  string `json:"environment"`
	Exchange     string `json:"exchange"`
	Symbol       string `json:"symbol"`
	ApiKeySet    bool   `json:"api_key_set"`
	ApiSecretSet bool   `json:"api_secret_set"`
	Hint         string `json:"hint"`
}

// Status 服务状态，只返回密钥是否已配置，不返回密钥本身
func Status(cfg *conf.Config) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		key, secret := cfg.CredentialsSet()
		ctx.JSON(http.StatusOK, statusDoc{
			Status:       "OK",
			Message:      cfg.AppName + " webhook bot is running",
			Environment:  cfg.Environment,
			Exchange:     cfg.Exchange.Name,
			Symbol:       cfg.Trading.Symbol,
			ApiKeySet:    key,
			ApiSecretSet: secret,
			Hint:         "api_key_set and api_secret_set are true when exchange credentials are loaded",
		})
	}
}
