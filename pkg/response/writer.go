// Package response 提供 gin 处理器使用的 JSON 响应工具。
package response

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/memoria/pkg/errors"
)

// ErrorBody 是错误响应体。
type ErrorBody struct {
	Code      int    `json:"code"`
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// Writer 向 gin.Context 写响应。
type Writer struct {
	ctx  *gin.Context
	lang string
}

// NewWriter creates a new response writer for the given context.
// 语言取自 Accept-Language 的首选项。
func NewWriter(c *gin.Context) *Writer {
	return &Writer{ctx: c, lang: preferredLang(c.GetHeader("Accept-Language"))}
}

// WithLang sets the language for error messages.
func (w *Writer) WithLang(lang string) *Writer {
	w.lang = lang
	return w
}

// OK writes data with 200.
func (w *Writer) OK(data any) {
	w.ctx.JSON(http.StatusOK, data)
}

// Fail writes an Errno as {"code","error"}.
func (w *Writer) Fail(e *errors.Errno) {
	status := e.HTTPStatus()
	if status >= http.StatusInternalServerError {
		logger.Global().WithCtx(w.ctx.Request.Context()).Errorw("request failed",
			"path", w.ctx.Request.URL.Path,
			"code", e.Code,
			"error", e.Error(),
		)
	}
	w.ctx.AbortWithStatusJSON(status, ErrorBody{
		Code:      e.Code,
		Error:     e.Message(w.lang),
		RequestID: w.ctx.Writer.Header().Get(HeaderRequestID),
	})
}

// FailWithError converts err and writes it.
// Errno 直接使用，其余一律按 ErrInternal 处理。
func (w *Writer) FailWithError(err error) {
	w.Fail(errors.FromError(err))
}

// HeaderRequestID 请求 ID 响应头。
const HeaderRequestID = "X-Request-ID"

func preferredLang(header string) string {
	if header == "" {
		return ""
	}
	first := strings.SplitN(header, ",", 2)[0]
	first = strings.TrimSpace(strings.SplitN(first, ";", 2)[0])
	if strings.HasPrefix(strings.ToLower(first), "zh") {
		return "zh"
	}
	return "en"
}

// OK sends a successful response.
func OK(c *gin.Context, data any) {
	NewWriter(c).OK(data)
}

// Fail sends an error response using Errno.
func Fail(c *gin.Context, e *errors.Errno) {
	NewWriter(c).Fail(e)
}

// FailWithError converts a standard error and sends it.
func FailWithError(c *gin.Context, err error) {
	NewWriter(c).FailWithError(err)
}
