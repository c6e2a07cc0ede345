package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"campusconnect/backend/internal/dto"
	"campusconnect/backend/internal/model"
	"campusconnect/backend/internal/repository"
)

var ErrNotificationNotFound = errors.New("通知不存在")

// NotificationService 通知业务接口
// 通知仅由好友模块产生，这里只有读取与已读状态切换，没有删除
type NotificationService interface {
	List(ctx context.Context, me string, req *dto.NotificationListRequest) ([]dto.NotificationResponse, int64, error)
	UnreadCount(ctx context.Context, me string) (*dto.UnreadCountResponse, error)
	MarkRead(ctx context.Context, me, id string) error
	MarkUnread(ctx context.Context, me, id string) error
	MarkAllRead(ctx context.Context, me string) (*dto.MarkResultResponse, error)
	MarkAllUnread(ctx context.Context, me string) (*dto.MarkResultResponse, error)
}

type notificationService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewNotificationService 创建 NotificationService 实例
func NewNotificationService(repo *repository.Repository, logger *zap.Logger) NotificationService {
	return &notificationService{repo: repo, logger: logger}
}

func (s *notificationService) List(ctx context.Context, me string, req *dto.NotificationListRequest) ([]dto.NotificationResponse, int64, error) {
	limit := req.GetLimit()
	offset := (req.GetPage() - 1) * limit

	list, total, err := s.repo.Notification.List(ctx, me, req.UnreadOnly, offset, limit)
	if err != nil {
		s.logger.Error("查询通知列表失败", zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.NotificationResponse, 0, len(list))
	for i := range list {
		result = append(result, *toNotificationResponse(&list[i]))
	}
	return result, total, nil
}

func (s *notificationService) UnreadCount(ctx context.Context, me string) (*dto.UnreadCountResponse, error) {
	n, err := s.repo.Notification.CountUnread(ctx, me)
	if err != nil {
		s.logger.Error("统计未读通知失败", zap.Error(err))
		return nil, err
	}
	return &dto.UnreadCountResponse{Unread: n}, nil
}

func (s *notificationService) MarkRead(ctx context.Context, me, id string) error {
	if err := s.ensureExists(ctx, me, id); err != nil {
		return err
	}
	if _, err := s.repo.Notification.MarkRead(ctx, me, id); err != nil {
		s.logger.Error("标记通知已读失败", zap.Error(err))
		return err
	}
	return nil
}

// MarkUnread 同类未读通知已存在时保持已读，视为成功
func (s *notificationService) MarkUnread(ctx context.Context, me, id string) error {
	if err := s.ensureExists(ctx, me, id); err != nil {
		return err
	}
	if _, err := s.repo.Notification.MarkUnread(ctx, me, id); err != nil {
		s.logger.Error("标记通知未读失败", zap.Error(err))
		return err
	}
	return nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, me string) (*dto.MarkResultResponse, error) {
	n, err := s.repo.Notification.MarkAllRead(ctx, me)
	if err != nil {
		s.logger.Error("全部标记已读失败", zap.Error(err))
		return nil, err
	}
	return &dto.MarkResultResponse{Updated: n}, nil
}

func (s *notificationService) MarkAllUnread(ctx context.Context, me string) (*dto.MarkResultResponse, error) {
	n, err := s.repo.Notification.MarkAllUnread(ctx, me)
	if err != nil {
		s.logger.Error("全部标记未读失败", zap.Error(err))
		return nil, err
	}
	return &dto.MarkResultResponse{Updated: n}, nil
}

func (s *notificationService) ensureExists(ctx context.Context, me, id string) error {
	if _, err := s.repo.Notification.GetByID(ctx, me, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotificationNotFound
		}
		s.logger.Error("查询通知失败", zap.Error(err))
		return err
	}
	return nil
}

func toNotificationResponse(n *model.Notification) *dto.NotificationResponse {
	return &dto.NotificationResponse{
		ID:        n.NotificationID,
		Type:      n.Type,
		Actor:     toUserBrief(n.Actor),
		IsRead:    n.IsRead,
		ReadAt:    formatTimePtr(n.ReadAt),
		CreatedAt: formatTime(n.CreatedAt),
	}
}
