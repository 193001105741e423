package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/memoria/pkg/errors"
	"github.com/kart-io/memoria/pkg/response"
)

// Recovery converts handler panics into ErrPanic responses.
// 响应头已写出（例如事件流已开始）时只记录日志。
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Global().WithCtx(c.Request.Context()).Errorw("panic recovered",
					"path", c.Request.URL.Path,
					"request_id", GetRequestID(c.Request.Context()),
					"panic", r,
					"stack", string(debug.Stack()),
				)
				if c.Writer.Written() {
					c.Abort()
					return
				}
				response.Fail(c, errors.ErrPanic.WithMessage(fmt.Sprintf("panic: %v", r)))
			}
		}()
		c.Next()
	}
}
