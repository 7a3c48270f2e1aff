package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// APITokenHeader 是扩展调用 API 时携带令牌的 Header。
const APITokenHeader = "X-API-Token"

// APITokenMiddleware 校验共享 API 令牌。令牌为空时不做校验（仅本机使用）。
func APITokenMiddleware(token string) gin.HandlerFunc {
	token = strings.TrimSpace(token)
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}
		// 令牌必须通过 Header 传递，避免 query 泄露到浏览器/日志。
		got := strings.TrimSpace(c.GetHeader(APITokenHeader))
		if got == "" {
			got = strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "))
		}
		if !ValidToken(token, got) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// ValidToken 以常量时间比较令牌；expected 为空时任何值都有效。
func ValidToken(expected, got string) bool {
	if expected == "" {
		return true
	}
	return got != "" && subtle.ConstantTimeCompare([]byte(expected), []byte(got)) == 1
}
