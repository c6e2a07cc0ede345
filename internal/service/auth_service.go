package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"campusconnect/backend/config"
	"campusconnect/backend/internal/dto"
	"campusconnect/backend/internal/model"
	"campusconnect/backend/internal/repository"
	pkgerrors "campusconnect/backend/pkg/errors"
	"campusconnect/backend/pkg/googleauth"
	"campusconnect/backend/pkg/jwt"
	"campusconnect/backend/pkg/storage"
)

var (
	ErrInvalidCredentials    = errors.New("邮箱或密码错误")
	ErrEmailExists           = errors.New("该邮箱已被注册")
	ErrGoogleAccountExists   = errors.New("该 Google 账号已绑定其他用户")
	ErrDepartmentRequired    = errors.New("学生必须选择院系")
	ErrDepartmentNotAllowed  = errors.New("仅学生可以设置院系")
	ErrLoginLocked           = errors.New("登录失败次数过多，请稍后再试")
	ErrInvalidRefreshToken   = errors.New("刷新令牌无效或已过期")
	ErrGoogleLoginDisabled   = errors.New("未启用 Google 登录")
	ErrGoogleTokenInvalid    = errors.New("Google 身份令牌无效")
	ErrGoogleEmailUnverified = errors.New("Google 邮箱未验证")
	ErrImageTooLarge         = errors.New("图片过大")
	ErrImageType             = errors.New("仅支持 JPEG/PNG/GIF/WebP 图片")
)

// AuthService 认证业务接口
type AuthService interface {
	Register(ctx context.Context, req *dto.RegisterRequest) (*dto.TokenResponse, error)
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error)
	Google(ctx context.Context, req *dto.GoogleLoginRequest) (*dto.TokenResponse, error)
	Refresh(ctx context.Context, req *dto.RefreshTokenRequest) (*dto.TokenResponse, error)
	// Logout 将当前 Access Token 加入黑名单直至其过期
	Logout(ctx context.Context, claims *jwt.Claims) error
	// IsRevoked 供认证中间件检查 jti 是否已注销
	IsRevoked(ctx context.Context, jti string) (bool, error)
	Me(ctx context.Context, userID string) (*dto.UserResponse, error)
	UpdateProfile(ctx context.Context, userID string, req *dto.UpdateProfileRequest) (*dto.UserResponse, error)
}

type authService struct {
	cfg     *config.Config
	repo    *repository.Repository
	jwtMgr  *jwt.Manager
	tokens  TokenStore
	storage storage.Storage
	google  googleauth.Verifier
	logger  *zap.Logger
}

// NewAuthService 创建 AuthService 实例
func NewAuthService(
	cfg *config.Config,
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	deps Deps,
	logger *zap.Logger,
) AuthService {
	return &authService{
		cfg:     cfg,
		repo:    repo,
		jwtMgr:  jwtMgr,
		tokens:  deps.Tokens,
		storage: deps.Storage,
		google:  deps.Google,
		logger:  logger,
	}
}

// ────────────────────── Register ──────────────────────

func (s *authService) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.TokenResponse, error) {
	email := normalizeEmail(req.Email)
	role := req.Role
	if role == "" {
		role = model.RoleStudent
	}

	// 1. 学生必须归属有效院系
	var profile *model.StudentProfile
	var dept *model.Department
	if role == model.RoleStudent {
		d, err := s.resolveDepartment(ctx, req.DepartmentCode)
		if err != nil {
			return nil, err
		}
		dept = d
		profile = &model.StudentProfile{DepartmentID: d.DepartmentID}
	}

	// 2. 邮箱唯一
	if _, err := s.repo.User.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询用户失败", zap.Error(err))
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("密码哈希失败", zap.Error(err))
		return nil, err
	}
	hashStr := string(hash)

	user := &model.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        email,
		PasswordHash: &hashStr,
		Role:         role,
	}

	// 3. 头像（可选）
	if req.ProfileImage != nil {
		url, err := s.uploadAvatar(ctx, req.ProfileImage)
		if err != nil {
			return nil, err
		}
		user.ProfileImage = &url
	}

	// 4. 用户 + 学生档案同一事务写入
	if err := s.repo.User.CreateWithProfile(ctx, user, profile); err != nil {
		if pkgerrors.IsUniqueViolation(err, "uk_users_email") {
			return nil, ErrEmailExists
		}
		s.logger.Error("创建用户失败", zap.Error(err))
		return nil, err
	}
	if profile != nil {
		profile.Department = dept
		user.StudentProfile = profile
	}

	s.logger.Info("用户注册成功", zap.String("user_id", user.UserID), zap.String("role", user.Role))
	return s.issueTokens(user)
}

// ────────────────────── Login ──────────────────────

func (s *authService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error) {
	email := normalizeEmail(req.Email)
	subject := email + "|" + req.ClientIP

	// 1. 锁定检查（Redis 不可用时跳过）
	if s.tokens != nil {
		locked, err := s.tokens.IsLoginLocked(ctx, subject)
		if err != nil {
			s.logger.Warn("查询登录锁定状态失败", zap.Error(err))
		} else if locked {
			return nil, ErrLoginLocked
		}
	}

	// 2. 查询用户并校验密码
	user, err := s.repo.User.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, s.loginFailed(ctx, subject)
		}
		s.logger.Error("查询用户失败", zap.Error(err))
		return nil, err
	}
	if user.PasswordHash == nil {
		// 仅 Google 登录的账号
		return nil, s.loginFailed(ctx, subject)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, s.loginFailed(ctx, subject)
	}

	if s.tokens != nil {
		if err := s.tokens.ClearLoginFailures(ctx, subject); err != nil {
			s.logger.Warn("清除登录失败计数失败", zap.Error(err))
		}
	}

	return s.issueTokens(user)
}

// loginFailed 记录一次失败；达到阈值时返回锁定错误
func (s *authService) loginFailed(ctx context.Context, subject string) error {
	if s.tokens == nil {
		return ErrInvalidCredentials
	}
	locked, err := s.tokens.RecordLoginFailure(ctx, subject, s.cfg.Auth.MaxLoginAttempts, s.cfg.Auth.LockoutDuration)
	if err != nil {
		s.logger.Warn("记录登录失败次数失败", zap.Error(err))
		return ErrInvalidCredentials
	}
	if locked {
		s.logger.Warn("登录失败次数过多，已锁定", zap.String("subject", subject))
		return ErrLoginLocked
	}
	return ErrInvalidCredentials
}

// ────────────────────── Google ──────────────────────

func (s *authService) Google(ctx context.Context, req *dto.GoogleLoginRequest) (*dto.TokenResponse, error) {
	if s.google == nil {
		return nil, ErrGoogleLoginDisabled
	}

	identity, err := s.google.Verify(ctx, req.IDToken)
	if err != nil {
		switch {
		case errors.Is(err, googleauth.ErrNotConfigured):
			return nil, ErrGoogleLoginDisabled
		case errors.Is(err, googleauth.ErrEmailNotVerified):
			return nil, ErrGoogleEmailUnverified
		default:
			s.logger.Info("Google 令牌校验失败", zap.Error(err))
			return nil, ErrGoogleTokenInvalid
		}
	}

	// 1. 已绑定的账号直接登录
	user, err := s.repo.User.GetByGoogleID(ctx, identity.Subject)
	if err == nil {
		return s.issueTokens(user)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询用户失败", zap.Error(err))
		return nil, err
	}

	// 2. 同邮箱账号：绑定 Google ID
	email := normalizeEmail(identity.Email)
	user, err = s.repo.User.GetByEmail(ctx, email)
	if err == nil {
		if user.GoogleID != nil && *user.GoogleID != identity.Subject {
			return nil, ErrGoogleAccountExists
		}
		if err := s.repo.User.LinkGoogle(ctx, user.UserID, identity.Subject); err != nil {
			if pkgerrors.IsUniqueViolation(err, "uk_users_google_id") {
				return nil, ErrGoogleAccountExists
			}
			s.logger.Error("绑定 Google 账号失败", zap.Error(err))
			return nil, err
		}
		user.GoogleID = &identity.Subject
		return s.issueTokens(user)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询用户失败", zap.Error(err))
		return nil, err
	}

	// 3. 新用户：以学生身份创建
	dept, err := s.resolveDepartment(ctx, req.DepartmentCode)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(identity.Name)
	if name == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}
	user = &model.User{
		Name:     name,
		Email:    email,
		GoogleID: &identity.Subject,
		Role:     model.RoleStudent,
	}
	if identity.Picture != "" {
		user.ProfileImage = &identity.Picture
	}
	profile := &model.StudentProfile{DepartmentID: dept.DepartmentID}
	if err := s.repo.User.CreateWithProfile(ctx, user, profile); err != nil {
		switch {
		case pkgerrors.IsUniqueViolation(err, "uk_users_email"):
			return nil, ErrEmailExists
		case pkgerrors.IsUniqueViolation(err, "uk_users_google_id"):
			return nil, ErrGoogleAccountExists
		}
		s.logger.Error("创建 Google 用户失败", zap.Error(err))
		return nil, err
	}
	profile.Department = dept
	user.StudentProfile = profile

	s.logger.Info("Google 用户注册成功", zap.String("user_id", user.UserID))
	return s.issueTokens(user)
}

// ────────────────────── Refresh / Logout ──────────────────────

func (s *authService) Refresh(ctx context.Context, req *dto.RefreshTokenRequest) (*dto.TokenResponse, error) {
	claims, err := s.jwtMgr.ParseToken(req.RefreshToken)
	if err != nil || claims.TokenType != jwt.TokenTypeRefresh {
		return nil, ErrInvalidRefreshToken
	}
	revoked, err := s.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrInvalidRefreshToken
	}

	// 角色以数据库为准
	user, err := s.repo.User.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		s.logger.Error("查询用户失败", zap.Error(err))
		return nil, err
	}

	// 旧 Refresh Token 轮换作废
	if s.tokens != nil {
		if err := s.tokens.BlacklistToken(ctx, claims.ID, claims.RemainingTTL()); err != nil {
			s.logger.Warn("作废旧 RefreshToken 失败", zap.Error(err))
		}
	}

	return s.issueTokens(user)
}

func (s *authService) Logout(ctx context.Context, claims *jwt.Claims) error {
	if s.tokens == nil {
		s.logger.Warn("Redis 不可用，跳过 Token 注销", zap.String("user_id", claims.UserID))
		return nil
	}
	if err := s.tokens.BlacklistToken(ctx, claims.ID, claims.RemainingTTL()); err != nil {
		s.logger.Error("写入 Token 黑名单失败", zap.Error(err))
		return err
	}
	return nil
}

func (s *authService) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if s.tokens == nil || jti == "" {
		return false, nil
	}
	revoked, err := s.tokens.IsBlacklisted(ctx, jti)
	if err != nil {
		// Redis 故障时放行，避免全站不可用
		s.logger.Warn("查询 Token 黑名单失败", zap.Error(err))
		return false, nil
	}
	return revoked, nil
}

// ────────────────────── Me / UpdateProfile ──────────────────────

func (s *authService) Me(ctx context.Context, userID string) (*dto.UserResponse, error) {
	user, err := s.repo.User.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		s.logger.Error("查询用户失败", zap.Error(err))
		return nil, err
	}
	return toUserResponse(user), nil
}

func (s *authService) UpdateProfile(ctx context.Context, userID string, req *dto.UpdateProfileRequest) (*dto.UserResponse, error) {
	user, err := s.repo.User.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		s.logger.Error("查询用户失败", zap.Error(err))
		return nil, err
	}

	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
	}

	var profile *model.StudentProfile
	if req.DepartmentCode != nil {
		if !user.IsStudent() {
			return nil, ErrDepartmentNotAllowed
		}
		dept, err := s.resolveDepartment(ctx, *req.DepartmentCode)
		if err != nil {
			return nil, err
		}
		profile = &model.StudentProfile{UserID: user.UserID, DepartmentID: dept.DepartmentID, Department: dept}
	}

	if req.ProfileImage != nil {
		url, err := s.uploadAvatar(ctx, req.ProfileImage)
		if err != nil {
			return nil, err
		}
		user.ProfileImage = &url
	}

	if err := s.repo.User.UpdateProfile(ctx, user, profile); err != nil {
		s.logger.Error("更新个人资料失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	if profile != nil {
		user.StudentProfile = profile
	}
	return toUserResponse(user), nil
}

// ── 辅助函数 ──

func (s *authService) issueTokens(user *model.User) (*dto.TokenResponse, error) {
	accessToken, err := s.jwtMgr.GenerateAccessToken(user.UserID, user.Role)
	if err != nil {
		s.logger.Error("生成 AccessToken 失败", zap.Error(err))
		return nil, err
	}
	refreshToken, err := s.jwtMgr.GenerateRefreshToken(user.UserID, user.Role)
	if err != nil {
		s.logger.Error("生成 RefreshToken 失败", zap.Error(err))
		return nil, err
	}
	return &dto.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int(s.jwtMgr.AccessTokenTTL().Seconds()),
		User:         *toUserResponse(user),
	}, nil
}

func (s *authService) resolveDepartment(ctx context.Context, code string) (*model.Department, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, ErrDepartmentRequired
	}
	dept, err := s.repo.Department.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDepartmentNotFound
		}
		s.logger.Error("查询院系失败", zap.Error(err))
		return nil, err
	}
	if !dept.IsActive {
		return nil, ErrDepartmentInactive
	}
	return dept, nil
}

func (s *authService) uploadAvatar(ctx context.Context, img *dto.ImageUpload) (string, error) {
	ext, err := storage.ImageExt(img.ContentType)
	if err != nil {
		return "", ErrImageType
	}
	if s.cfg.Storage.MaxBytes > 0 && int64(len(img.Data)) > s.cfg.Storage.MaxBytes {
		return "", ErrImageTooLarge
	}
	if s.storage == nil {
		return "", errors.New("存储未配置")
	}
	url, err := s.storage.Put(ctx, storage.ObjectKey("avatars", "avatar"+ext), img.Data, img.ContentType)
	if err != nil {
		s.logger.Error("上传头像失败", zap.Error(err))
		return "", err
	}
	return url, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
