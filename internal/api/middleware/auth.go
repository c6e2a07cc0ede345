package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"campusconnect/backend/internal/service"
	"campusconnect/backend/pkg/jwt"
	"campusconnect/backend/pkg/response"
)

// RevocationChecker 判断 Access Token 是否已注销（由 AuthService 实现）
type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// JWTAuth JWT 认证中间件
// 从 Authorization: Bearer <token> 中提取并验证 Access Token；
// 浏览器的 EventSource / WebSocket 无法设置请求头，允许通过 access_token 查询参数传入
func JWTAuth(jwtMgr *jwt.Manager, revoked RevocationChecker, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := extractToken(c)
		if !ok {
			response.Unauthorized(c, 10002, "缺少认证信息")
			c.Abort()
			return
		}

		claims, ok := parseAccessToken(c, jwtMgr, revoked, logger, token)
		if !ok {
			c.Abort()
			return
		}

		setIdentity(c, claims)
		c.Next()
	}
}

// OptionalAuth 可选认证：携带有效 Token 时注入身份，否则按匿名继续
// Token 存在但无效时仍然拒绝，避免客户端误以为已登录
func OptionalAuth(jwtMgr *jwt.Manager, revoked RevocationChecker, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := extractToken(c)
		if !ok {
			c.Next()
			return
		}

		claims, ok := parseAccessToken(c, jwtMgr, revoked, logger, token)
		if !ok {
			c.Abort()
			return
		}

		setIdentity(c, claims)
		c.Next()
	}
}

// RequireRole 角色能力校验
// 每次请求从数据库重新读取角色，不信任 Token 中的 role 声明
func RequireRole(access service.AccessService, roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("user_id")
		if userID == "" {
			response.Unauthorized(c, 10002, "未认证")
			c.Abort()
			return
		}

		role, err := access.Require(c.Request.Context(), userID, roles...)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrForbidden):
				response.Forbidden(c, 10003, "无权限访问")
			case errors.Is(err, service.ErrUserNotFound):
				response.Unauthorized(c, 10002, "用户不存在或已删除")
			default:
				_ = c.Error(err)
				response.InternalError(c)
			}
			c.Abort()
			return
		}

		// 下游使用数据库中的当前角色
		c.Set("role", role)
		c.Next()
	}
}

func extractToken(c *gin.Context) (string, bool) {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			return "", false
		}
		return parts[1], true
	}
	if token := c.Query("access_token"); token != "" {
		return token, true
	}
	return "", false
}

func parseAccessToken(c *gin.Context, jwtMgr *jwt.Manager, revoked RevocationChecker, logger *zap.Logger, token string) (*jwt.Claims, bool) {
	claims, err := jwtMgr.ParseToken(token)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			response.Unauthorized(c, 10002, "Token 已过期")
		} else {
			response.Unauthorized(c, 10002, "Token 无效")
		}
		return nil, false
	}

	if claims.TokenType != jwt.TokenTypeAccess {
		response.Unauthorized(c, 10002, "Token 类型无效")
		return nil, false
	}

	if revoked != nil {
		isRevoked, err := revoked.IsRevoked(c.Request.Context(), claims.ID)
		if err != nil {
			// Redis 不可用时降级放行
			logger.Warn("检查 Token 黑名单失败", zap.Error(err))
		} else if isRevoked {
			response.Unauthorized(c, 10002, "Token 已注销")
			return nil, false
		}
	}

	return claims, true
}

func setIdentity(c *gin.Context, claims *jwt.Claims) {
	c.Set("user_id", claims.UserID)
	c.Set("role", claims.Role)
	c.Set("claims", claims)
}
