package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"campusconnect/backend/config"
	"campusconnect/backend/internal/repository"
	"campusconnect/backend/pkg/googleauth"
	"campusconnect/backend/pkg/jwt"
	"campusconnect/backend/pkg/pubsub"
	"campusconnect/backend/pkg/storage"
)

// TokenStore Token 黑名单与登录失败计数（由 pkg/redis 实现）
type TokenStore interface {
	BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
	RecordLoginFailure(ctx context.Context, subject string, maxAttempts int, lockout time.Duration) (bool, error)
	IsLoginLocked(ctx context.Context, subject string) (bool, error)
	ClearLoginFailures(ctx context.Context, subject string) error
}

// Deps Service 层依赖的外部组件
// Tokens 为 nil 时表示 Redis 不可用，黑名单与登录锁定降级关闭
type Deps struct {
	Tokens    TokenStore
	Storage   storage.Storage
	Google    googleauth.Verifier
	Publisher pubsub.Publisher
}

// Service 所有 Service 的聚合入口
type Service struct {
	Access       AccessService
	Auth         AuthService
	Department   DepartmentService
	Friend       FriendService
	Notification NotificationService
	Routine      RoutineService
	StudyGroup   StudyGroupService
	Game         GameService
	Chat         ChatService
	Feedback     FeedbackService
	Admin        AdminService
}

// NewService 创建 Service 聚合
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	deps Deps,
	logger *zap.Logger,
) *Service {
	access := NewAccessService(repo, logger)
	return &Service{
		Access:       access,
		Auth:         NewAuthService(cfg, repo, jwtMgr, deps, logger),
		Department:   NewDepartmentService(repo, logger),
		Friend:       NewFriendService(repo, deps.Publisher, logger),
		Notification: NewNotificationService(repo, logger),
		Routine:      NewRoutineService(cfg, repo, logger),
		StudyGroup:   NewStudyGroupService(repo, logger),
		Game:         NewGameService(repo, deps.Publisher, logger),
		Chat:         NewChatService(repo, deps.Publisher, logger),
		Feedback:     NewFeedbackService(repo, logger),
		Admin:        NewAdminService(repo, logger),
	}
}
