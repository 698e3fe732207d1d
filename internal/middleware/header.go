package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"time"

	"novaflow/internal/consts"
	"novaflow/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
)

// NoCache 控制客户端不要使用缓存
func NoCache() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-cache, max-age=0, must-revalidate")
		c.Header("Expires", "Thu, 01 Jan 1970 00:00:00 GMT")
		c.Header("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
		c.Next()
	}
}

// Secure 添加安全控制
func Secure() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		if c.Request.TLS != nil {
			c.Header("Strict-Transport-Security", "max-age=31536000")
		}
		c.Next()
	}
}

// RequestId 用来设置和透传requestId，信号源自带的 X-Request-Id 优先
func RequestId() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestId := c.GetHeader("X-Request-Id")
		if requestId == "" {
			requestId = uuid.NewString()
		}
		c.Header("X-Request-Id", requestId)

		// 设置requestId到context中，便于后面调用链的透传
		c.Set(consts.RequestId, requestId)
		c.Next()
	}
}

// AntiDuplicate 同一个信号（路径 + 请求体相同）在 window 内重复推送时直接返回 ignored
// tradingview 在超时时会重推，重复下单比漏单更危险
func AntiDuplicate(window time.Duration, size int) gin.HandlerFunc {
	// 限制缓存的最大大小，且是并发安全的 LRU 缓存
	cache, _ := lru.New(size)
	return func(c *gin.Context) {
		if window <= 0 {
			c.Next()
			return
		}
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			body = []byte{}
		}
		c.Request.Body = io.NopCloser(bytes.NewBuffer(body))

		sum := sha256.Sum256(append([]byte(c.Request.URL.Path+"\n"), body...))
		key := hex.EncodeToString(sum[:])
		if value, ok := cache.Get(key); ok {
			if time.Since(value.(time.Time)) < window {
				response.Ignored(c, "duplicate alert ignored")
				c.Abort()
				return
			}
		}
		cache.Add(key, time.Now())
		c.Next()
	}
}
