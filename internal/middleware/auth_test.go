package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"card-server/internal/config"
	"card-server/internal/pkg/crypto"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupAuthRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{}
	cfg.JWT.Secret = strings.Repeat("s", 32)
	config.Set(cfg)

	r := gin.New()
	r.GET("/protected", AuthMiddleware(), AdminMiddleware(), func(c *gin.Context) {
		// 操作者标识供管理端审计日志使用
		c.JSON(http.StatusOK, gin.H{"operator": GetSubject(c)})
	})
	return r
}

func doAuthed(r *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddlewareSubject(t *testing.T) {
	r := setupAuthRouter(t)

	token, err := crypto.GenerateToken("ops", "admin", config.Get().JWT.Secret, 1)
	require.NoError(t, err)

	w := doAuthed(r, "Bearer "+token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"operator":"ops"`)
}

func TestAuthMiddlewareRejections(t *testing.T) {
	r := setupAuthRouter(t)

	tests := []struct {
		name   string
		header func() string
		want   int
	}{
		{"缺少认证头", func() string { return "" }, http.StatusUnauthorized},
		{"格式错误", func() string { return "Basic abc" }, http.StatusUnauthorized},
		{"无效令牌", func() string { return "Bearer not-a-jwt" }, http.StatusUnauthorized},
		{
			"非管理员角色",
			func() string {
				token, _ := crypto.GenerateToken("viewer", "viewer", config.Get().JWT.Secret, 1)
				return "Bearer " + token
			},
			http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doAuthed(r, tt.header())
			assert.Equal(t, tt.want, w.Code)
		})
	}
}
