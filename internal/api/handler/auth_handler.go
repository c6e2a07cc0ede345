package handler

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"campusconnect/backend/config"
	"campusconnect/backend/internal/dto"
	"campusconnect/backend/internal/service"
	"campusconnect/backend/pkg/response"
	"campusconnect/backend/pkg/storage"
)

const (
	refreshCookieName = "refresh_token"
	refreshCookiePath = "/api/v1/auth"

	defaultRefreshTTL    = 7 * 24 * time.Hour
	defaultMaxImageBytes = 2 << 20
)

// AuthHandler 认证模块 HTTP 处理器
type AuthHandler struct {
	authSvc       service.AuthService
	refreshTTL    time.Duration
	maxImageBytes int64
}

// NewAuthHandler 创建 AuthHandler，配置为 nil 时使用默认值
func NewAuthHandler(authSvc service.AuthService, authCfg *config.AuthConfig, storageCfg *config.StorageConfig) *AuthHandler {
	h := &AuthHandler{
		authSvc:       authSvc,
		refreshTTL:    defaultRefreshTTL,
		maxImageBytes: defaultMaxImageBytes,
	}
	if authCfg != nil && authCfg.RefreshTokenTTL > 0 {
		h.refreshTTL = authCfg.RefreshTokenTTL
	}
	if storageCfg != nil && storageCfg.MaxBytes > 0 {
		h.maxImageBytes = storageCfg.MaxBytes
	}
	return h
}

// Register 注册
// POST /api/v1/auth/register
//
// 支持两种提交方式：
//   - application/json
//   - multipart/form-data，可附带 profile_image 文件
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if isMultipart(c) {
		if err := c.ShouldBind(&req); err != nil {
			bindFailed(c, err)
			return
		}
		img, ok := h.readImage(c)
		if !ok {
			return
		}
		req.ProfileImage = img
	} else if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	result, err := h.authSvc.Register(c.Request.Context(), &req)
	if err != nil {
		handleAuthError(c, err)
		return
	}

	h.setRefreshCookie(c, result.RefreshToken)
	response.Created(c, result)
}

// Login 用户登录
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}
	req.ClientIP = c.ClientIP()

	result, err := h.authSvc.Login(c.Request.Context(), &req)
	if err != nil {
		handleAuthError(c, err)
		return
	}

	h.setRefreshCookie(c, result.RefreshToken)
	response.OK(c, result)
}

// Google 使用 Google ID Token 登录（首次登录自动注册）
// POST /api/v1/auth/google
func (h *AuthHandler) Google(c *gin.Context) {
	var req dto.GoogleLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	result, err := h.authSvc.Google(c.Request.Context(), &req)
	if err != nil {
		handleAuthError(c, err)
		return
	}

	h.setRefreshCookie(c, result.RefreshToken)
	response.OK(c, result)
}

// RefreshToken 刷新 Token
// POST /api/v1/auth/refresh
// 优先读取请求体，其次读取 HttpOnly Cookie
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req dto.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		cookie, cerr := c.Cookie(refreshCookieName)
		if cerr != nil || cookie == "" {
			response.BadRequest(c, 10001, "缺少 refresh_token")
			return
		}
		req.RefreshToken = cookie
	}

	result, err := h.authSvc.Refresh(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRefreshToken) {
			h.clearRefreshCookie(c)
		}
		handleAuthError(c, err)
		return
	}

	h.setRefreshCookie(c, result.RefreshToken)
	response.OK(c, result)
}

// Logout 登出，当前 Access Token 加入黑名单
// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	claims, ok := MustGetClaims(c)
	if !ok {
		return
	}

	if err := h.authSvc.Logout(c.Request.Context(), claims); err != nil {
		handleAuthError(c, err)
		return
	}

	h.clearRefreshCookie(c)
	response.OK(c, nil)
}

// GetCurrentUser 获取当前用户信息
// GET /api/v1/auth/me
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	user, err := h.authSvc.Me(c.Request.Context(), userID)
	if err != nil {
		handleAuthError(c, err)
		return
	}

	response.OK(c, user)
}

// UpdateProfile 更新个人资料（JSON 或 multipart）
// PUT /api/v1/auth/profile
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.UpdateProfileRequest
	if isMultipart(c) {
		if err := c.ShouldBind(&req); err != nil {
			bindFailed(c, err)
			return
		}
		img, ok := h.readImage(c)
		if !ok {
			return
		}
		req.ProfileImage = img
	} else if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	user, err := h.authSvc.UpdateProfile(c.Request.Context(), userID, &req)
	if err != nil {
		handleAuthError(c, err)
		return
	}

	response.OK(c, user)
}

// readImage 读取可选的 profile_image 文件，未上传时返回 nil
func (h *AuthHandler) readImage(c *gin.Context) (*dto.ImageUpload, bool) {
	file, header, err := c.Request.FormFile("profile_image")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, true
	}
	if err != nil {
		response.BadRequest(c, 10001, "读取上传文件失败")
		return nil, false
	}
	defer file.Close()

	data, err := storage.ReadAll(file, h.maxImageBytes)
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			handleAuthError(c, service.ErrImageTooLarge)
			return nil, false
		}
		response.BadRequest(c, 10001, "读取上传文件失败")
		return nil, false
	}

	return &dto.ImageUpload{
		Filename:    header.Filename,
		ContentType: imageContentType(header, data),
		Data:        data,
	}, true
}

func (h *AuthHandler) setRefreshCookie(c *gin.Context, token string) {
	if token == "" {
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(refreshCookieName, token, int(h.refreshTTL.Seconds()), refreshCookiePath, "", isSecure(c), true)
}

func (h *AuthHandler) clearRefreshCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(refreshCookieName, "", -1, refreshCookiePath, "", isSecure(c), true)
}

func isMultipart(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "multipart/form-data")
}

func isSecure(c *gin.Context) bool {
	return c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https"
}

// imageContentType 客户端未声明类型时按内容嗅探
func imageContentType(header *multipart.FileHeader, data []byte) string {
	if ct := header.Header.Get("Content-Type"); ct != "" && ct != "application/octet-stream" {
		return ct
	}
	return http.DetectContentType(data)
}

func handleAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		response.Unauthorized(c, 11001, "邮箱或密码错误")
	case errors.Is(err, service.ErrEmailExists):
		response.Conflict(c, 11002, "该邮箱已被注册")
	case errors.Is(err, service.ErrGoogleAccountExists):
		response.Conflict(c, 11003, "该 Google 账号已绑定其他用户")
	case errors.Is(err, service.ErrDepartmentRequired):
		response.BadRequest(c, 11004, "学生必须选择院系")
	case errors.Is(err, service.ErrDepartmentNotAllowed):
		response.BadRequest(c, 11005, "仅学生可以设置院系")
	case errors.Is(err, service.ErrLoginLocked):
		response.TooManyRequests(c, 11006, "登录失败次数过多，请稍后再试")
	case errors.Is(err, service.ErrInvalidRefreshToken):
		response.Unauthorized(c, 11007, "刷新令牌无效或已过期")
	case errors.Is(err, service.ErrGoogleLoginDisabled):
		response.BadRequest(c, 11008, "未启用 Google 登录")
	case errors.Is(err, service.ErrGoogleTokenInvalid):
		response.Unauthorized(c, 11009, "Google 身份令牌无效")
	case errors.Is(err, service.ErrGoogleEmailUnverified):
		response.Unauthorized(c, 11010, "Google 邮箱未验证")
	case errors.Is(err, service.ErrImageTooLarge):
		response.Error(c, http.StatusRequestEntityTooLarge, 11011, "图片过大")
	case errors.Is(err, service.ErrImageType):
		response.BadRequest(c, 11012, "仅支持 JPEG/PNG/GIF/WebP 图片")
	case errors.Is(err, service.ErrDepartmentNotFound):
		response.BadRequest(c, 11013, "院系不存在")
	case errors.Is(err, service.ErrDepartmentInactive):
		response.BadRequest(c, 11014, "院系已停用")
	default:
		handleCommonError(c, err)
	}
}
