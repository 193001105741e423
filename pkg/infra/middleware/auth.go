package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/memoria/pkg/errors"
	"github.com/kart-io/memoria/pkg/response"
	"github.com/kart-io/memoria/pkg/security/auth"
)

// Auth 校验 Bearer 令牌并把 sub 作为所有者写入请求 context。
// verifier 为 nil 表示关闭鉴权，请求以 auth.Anonymous 身份继续。
func Auth(verifier auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if verifier == nil {
			c.Request = c.Request.WithContext(auth.ContextWithSubject(c.Request.Context(), auth.Anonymous))
			c.Next()
			return
		}

		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			response.Fail(c, errors.ErrUnauthorized.WithMessage("missing authentication token"))
			return
		}

		claims, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			logger.Warnw("authentication failed",
				"error", err.Error(),
				"remote_addr", c.ClientIP(),
				"path", c.Request.URL.Path,
				"token_prefix", tokenPrefix(token),
			)
			response.FailWithError(c, err)
			return
		}

		c.Request = c.Request.WithContext(auth.ContextWithClaims(c.Request.Context(), claims))
		c.Next()
	}
}

func bearerToken(header string) string {
	const scheme = "Bearer "
	if len(header) < len(scheme) || !strings.EqualFold(header[:len(scheme)], scheme) {
		return ""
	}
	return strings.TrimSpace(header[len(scheme):])
}

func tokenPrefix(token string) string {
	if len(token) > 16 {
		return token[:16] + "..."
	}
	return "..."
}
