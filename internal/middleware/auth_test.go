package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/banquiz-board/internal/backend"
	"github.com/wfunc/banquiz-board/internal/errors"
	"github.com/wfunc/banquiz-board/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func signToken(t *testing.T, exp time.Time) string {
	claims := &utils.TokenClaims{
		UserID: 7,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("backend-secret"))
	require.NoError(t, err)
	return token
}

func newAuthEngine(handler gin.HandlerFunc) *gin.Engine {
	m := NewAuthMiddleware(time.Second, nil)
	engine := gin.New()
	engine.Use(RequestID())
	engine.GET("/required", m.RequireToken(), handler)
	engine.GET("/optional", m.OptionalToken(), handler)
	return engine
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) *errors.ErrorResponse {
	var resp struct {
		Success   bool   `json:"success"`
		RequestID string `json:"request_id"`
		Error     struct {
			Code int `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return &errors.ErrorResponse{
		Success:   resp.Success,
		RequestID: resp.RequestID,
		Error:     &errors.AppError{Code: errors.ErrorCode(resp.Error.Code)},
	}
}

func TestRequireToken(t *testing.T) {
	var gotToken string
	var gotUser int64
	engine := newAuthEngine(func(c *gin.Context) {
		gotToken, _ = backend.TokenFromContext(c.Request.Context())
		gotUser, _ = GetUserID(c)
		c.Status(http.StatusNoContent)
	})

	t.Run("缺少令牌", func(t *testing.T) {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/required", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		resp := decodeError(t, w)
		assert.False(t, resp.Success)
		assert.Equal(t, errors.ErrAuthentication, resp.Error.Code)
		assert.NotEmpty(t, resp.RequestID)
	})

	t.Run("格式错误", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/required", nil)
		req.Header.Set("Authorization", "Bearer not-a-jwt")
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, errors.ErrTokenInvalid, decodeError(t, w).Error.Code)
	})

	t.Run("已过期", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/required", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, time.Now().Add(-time.Minute)))
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, errors.ErrTokenExpired, decodeError(t, w).Error.Code)
	})

	t.Run("有效令牌透传到请求上下文", func(t *testing.T) {
		token := signToken(t, time.Now().Add(time.Hour))
		req := httptest.NewRequest(http.MethodGet, "/required", nil)
		req.Header.Set("X-Access-Token", token)
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, token, gotToken)
		assert.Equal(t, int64(7), gotUser)
	})

	t.Run("Query参数令牌", func(t *testing.T) {
		token := signToken(t, time.Now().Add(time.Hour))
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/required?token="+token, nil))

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, token, gotToken)
	})
}

func TestOptionalToken(t *testing.T) {
	var authenticated bool
	engine := newAuthEngine(func(c *gin.Context) {
		authenticated = IsAuthenticated(c)
		c.Status(http.StatusNoContent)
	})

	t.Run("无令牌放行", func(t *testing.T) {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/optional", nil))
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.False(t, authenticated)
	})

	t.Run("过期令牌按未登录处理", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/optional", nil)
		req.AddCookie(&http.Cookie{Name: "access_token", Value: signToken(t, time.Now().Add(-time.Hour))})
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.False(t, authenticated)
	})

	t.Run("Cookie令牌", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/optional", nil)
		req.AddCookie(&http.Cookie{Name: "access_token", Value: signToken(t, time.Now().Add(time.Hour))})
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		assert.True(t, authenticated)
	})
}

func TestRequestID(t *testing.T) {
	engine := gin.New()
	engine.Use(RequestID())
	engine.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, GetRequestID(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	assert.Equal(t, "req-1", w.Body.String())
	assert.Equal(t, "req-1", w.Header().Get(RequestIDHeader))
}

func TestRecovery(t *testing.T) {
	engine := gin.New()
	engine.Use(RequestID(), Recovery())
	engine.GET("/panic", func(c *gin.Context) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, errors.ErrUnknown, decodeError(t, w).Error.Code)
}

func TestGetCaller(t *testing.T) {
	var caller string
	engine := newAuthEngine(func(c *gin.Context) {
		caller = GetCaller(c)
		c.Status(http.StatusNoContent)
	})
	serve := func(token string) {
		req := httptest.NewRequest(http.MethodGet, "/optional", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		engine.ServeHTTP(httptest.NewRecorder(), req)
	}

	t.Run("带用户ID", func(t *testing.T) {
		serve(signToken(t, time.Now().Add(time.Hour)))
		assert.Equal(t, "user:7", caller)
	})

	t.Run("没有用户ID时用令牌摘要", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject:   "kiosk",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}).SignedString([]byte("backend-secret"))
		require.NoError(t, err)

		serve(token)
		assert.Regexp(t, `^token:[0-9a-f]{16}$`, caller)
	})

	t.Run("未带令牌", func(t *testing.T) {
		serve("")
		assert.Empty(t, caller)
	})
}
