// Package middleware 提供 memoria HTTP 服务使用的 gin 中间件。
package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/memoria/pkg/id"
	"github.com/kart-io/memoria/pkg/response"
)

// HeaderXRequestID is the header name for request ID.
const HeaderXRequestID = response.HeaderRequestID

type requestIDKey struct{}

// WithRequestID stores the request ID in the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// GetRequestID returns the request ID from the context.
// Returns empty string if not found.
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// RequestID 为每个请求分配 ULID 请求 ID，已带合法 ID 的请求沿用原值。
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(HeaderXRequestID)
		if requestID == "" || len(requestID) > 128 {
			requestID = id.New()
		}
		c.Header(HeaderXRequestID, requestID)
		c.Request = c.Request.WithContext(WithRequestID(c.Request.Context(), requestID))
		c.Next()
	}
}
