package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"

	"novaflow/internal/consts"
	"novaflow/pkg/errors/ecode"
	"novaflow/pkg/response"

	"github.com/gin-gonic/gin"
)

// VerifySignature 校验 X-Signature，secret 为空时不校验
func VerifySignature(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}
		signature := c.GetHeader("X-Signature")
		if signature == "" {
			response.Outcome(c, http.StatusUnauthorized, ecode.RequireAuthErr, consts.StatusFailed, "missing signature", nil)
			c.Abort()
			return
		}
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			response.BadRequests(c, err)
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewBuffer(body))

		if !validSignature(body, signature, secret) {
			response.Outcome(c, http.StatusUnauthorized, ecode.RequireAuthErr, consts.StatusFailed, "invalid signature", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}

func validSignature(body []byte, signature, secret string) bool {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	provided, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(provided, h.Sum(nil))
}
