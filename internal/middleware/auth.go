package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/banquiz-board/internal/backend"
	"github.com/wfunc/banquiz-board/internal/errors"
	"github.com/wfunc/banquiz-board/internal/utils"
	"go.uber.org/zap"
)

// AuthMiddleware 令牌透传中间件
// 令牌的签名由后端校验，这里只检查格式和过期时间
type AuthMiddleware struct {
	leeway time.Duration
	logger *zap.Logger
}

// NewAuthMiddleware 创建认证中间件
func NewAuthMiddleware(leeway time.Duration, logger *zap.Logger) *AuthMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthMiddleware{
		leeway: leeway,
		logger: logger,
	}
}

// RequireToken 需要令牌的中间件
func (m *AuthMiddleware) RequireToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := m.extractToken(c)
		if token == "" {
			abortWithError(c, errors.New(errors.ErrAuthentication, "缺少认证令牌"))
			return
		}

		claims, err := utils.CheckToken(token, m.leeway)
		if err != nil {
			m.logger.Debug("令牌检查失败",
				zap.String("path", c.Request.URL.Path),
				zap.Error(err))
			abortWithError(c, tokenError(err))
			return
		}

		m.attach(c, token, claims)
		c.Next()
	}
}

// OptionalToken 可选令牌的中间件（令牌无效时按未登录处理）
func (m *AuthMiddleware) OptionalToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := m.extractToken(c)
		if token != "" {
			if claims, err := utils.CheckToken(token, m.leeway); err == nil {
				m.attach(c, token, claims)
			}
		}

		c.Next()
	}
}

// attach 将令牌放入 gin 上下文和请求上下文
func (m *AuthMiddleware) attach(c *gin.Context, token string, claims *utils.TokenClaims) {
	c.Set("token", token)
	if claims != nil && claims.UserID != 0 {
		c.Set("userID", claims.UserID)
	}
	c.Request = c.Request.WithContext(backend.WithToken(c.Request.Context(), token))
}

// extractToken 从请求中提取令牌
func (m *AuthMiddleware) extractToken(c *gin.Context) string {
	// 1. 从Authorization Header获取 (Bearer Token)
	bearerToken := c.GetHeader("Authorization")
	if bearerToken != "" {
		parts := strings.Split(bearerToken, " ")
		if len(parts) == 2 && strings.ToLower(parts[0]) == "bearer" {
			return parts[1]
		}
	}

	// 2. 从X-Access-Token Header获取
	if token := c.GetHeader("X-Access-Token"); token != "" {
		return token
	}

	// 3. 从Cookie获取
	if token, err := c.Cookie("access_token"); err == nil && token != "" {
		return token
	}

	// 4. 从Query参数获取（WebSocket 握手无法带 Header）
	if token := c.Query("token"); token != "" {
		return token
	}

	return ""
}

func tokenError(err error) *errors.AppError {
	if err == utils.ErrExpiredToken {
		return errors.New(errors.ErrTokenExpired)
	}
	return errors.New(errors.ErrTokenInvalid)
}

func abortWithError(c *gin.Context, appErr *errors.AppError) {
	c.AbortWithStatusJSON(appErr.HTTPStatus(), errors.NewErrorResponse(appErr, GetRequestID(c)))
}

// GetToken 从上下文获取令牌
func GetToken(c *gin.Context) (string, bool) {
	if token, exists := c.Get("token"); exists {
		if t, ok := token.(string); ok && t != "" {
			return t, true
		}
	}
	return "", false
}

// GetUserID 从上下文获取用户ID
func GetUserID(c *gin.Context) (int64, bool) {
	if userID, exists := c.Get("userID"); exists {
		if id, ok := userID.(int64); ok {
			return id, true
		}
	}
	return 0, false
}

// GetCaller 调用方标识：令牌带用户ID时用用户ID，否则用令牌摘要；未带令牌时为空
func GetCaller(c *gin.Context) string {
	if id, ok := GetUserID(c); ok {
		return "user:" + strconv.FormatInt(id, 10)
	}
	if fp := backend.TokenFingerprint(c.Request.Context()); fp != "" {
		return "token:" + fp
	}
	return ""
}

// IsAuthenticated 检查是否已带令牌
func IsAuthenticated(c *gin.Context) bool {
	_, exists := GetToken(c)
	return exists
}
