package handler

import (
	"go.uber.org/zap"

	"campusconnect/backend/config"
	"campusconnect/backend/internal/service"
)

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Auth         *AuthHandler
	Department   *DepartmentHandler
	Friend       *FriendHandler
	Routine      *RoutineHandler
	StudyGroup   *StudyGroupHandler
	Game         *GameHandler
	Chat         *ChatHandler
	Notification *NotificationHandler
	Feedback     *FeedbackHandler
	Admin        *AdminHandler
	Stream       *StreamHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(cfg *config.Config, svc *service.Service, events Subscriber, logger *zap.Logger) *Handler {
	return &Handler{
		Auth:         NewAuthHandler(svc.Auth, &cfg.Auth, &cfg.Storage),
		Department:   NewDepartmentHandler(svc.Department),
		Friend:       NewFriendHandler(svc.Friend),
		Routine:      NewRoutineHandler(svc.Routine, cfg.Routine.ImportMaxFileSize),
		StudyGroup:   NewStudyGroupHandler(svc.StudyGroup),
		Game:         NewGameHandler(svc.Game),
		Chat:         NewChatHandler(svc.Chat),
		Notification: NewNotificationHandler(svc.Notification),
		Feedback:     NewFeedbackHandler(svc.Feedback),
		Admin:        NewAdminHandler(svc.Admin),
		Stream:       NewStreamHandler(events, svc.Chat, svc.Game, cfg.Server.CORS.AllowOrigins, logger),
	}
}
