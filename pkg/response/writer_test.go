package response

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/memoria/pkg/errors"
	"github.com/kart-io/memoria/pkg/utils/json"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(t *testing.T, lang string, h gin.HandlerFunc) (*httptest.ResponseRecorder, ErrorBody) {
	t.Helper()
	r := gin.New()
	r.GET("/x", h)
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if lang != "" {
		req.Header.Set("Accept-Language", lang)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var body ErrorBody
	if w.Code >= 400 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	}
	return w, body
}

func TestFail(t *testing.T) {
	tests := []struct {
		name     string
		lang     string
		err      error
		status   int
		code     int
		contains string
	}{
		{"项目不存在", "", errors.ErrProjectNotFound, 404, errors.ErrProjectNotFound.Code, "Project not found"},
		{"中文消息", "zh-CN,zh;q=0.9", errors.ErrProjectNotFound, 404, errors.ErrProjectNotFound.Code, "项目不存在"},
		{"包装的 Errno", "", fmt.Errorf("wrap: %w", errors.ErrRunInProgress), 409, errors.ErrRunInProgress.Code, "already in progress"},
		{"普通错误", "", fmt.Errorf("boom"), 500, errors.ErrInternal.Code, "Internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := serve(t, tt.lang, func(c *gin.Context) { FailWithError(c, tt.err) })
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, body.Code)
			assert.Contains(t, body.Error, tt.contains)
		})
	}
}

func TestOK(t *testing.T) {
	w, _ := serve(t, "", func(c *gin.Context) { OK(c, gin.H{"diagnostic": nil}) })
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"diagnostic":null}`, w.Body.String())
}
