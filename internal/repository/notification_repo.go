package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"campusconnect/backend/internal/model"
)

// NotificationRepository 通知数据访问接口
type NotificationRepository interface {
	List(ctx context.Context, recipientID string, unreadOnly bool, offset, limit int) ([]model.Notification, int64, error)
	CountUnread(ctx context.Context, recipientID string) (int64, error)
	GetByID(ctx context.Context, recipientID, id string) (*model.Notification, error)
	MarkRead(ctx context.Context, recipientID, id string) (int64, error)
	MarkAllRead(ctx context.Context, recipientID string) (int64, error)
	// MarkUnread 若已存在同 (actor, type) 的未读通知则不做修改
	MarkUnread(ctx context.Context, recipientID, id string) (int64, error)
	MarkAllUnread(ctx context.Context, recipientID string) (int64, error)
}

type notificationRepo struct {
	db *gorm.DB
}

// NewNotificationRepo 创建 NotificationRepository 实例
func NewNotificationRepo(db *gorm.DB) NotificationRepository {
	return &notificationRepo{db: db}
}

func (r *notificationRepo) List(ctx context.Context, recipientID string, unreadOnly bool, offset, limit int) ([]model.Notification, int64, error) {
	var list []model.Notification
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Notification{}).Where("recipient_id = ?", recipientID)
	if unreadOnly {
		db = db.Where("is_read = ?", false)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.Preload("Actor").
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&list).Error
	return list, total, err
}

func (r *notificationRepo) CountUnread(ctx context.Context, recipientID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Count(&count).Error
	return count, err
}

func (r *notificationRepo) GetByID(ctx context.Context, recipientID, id string) (*model.Notification, error) {
	var n model.Notification
	err := r.db.WithContext(ctx).
		Preload("Actor").
		Where("notification_id = ? AND recipient_id = ?", id, recipientID).
		First(&n).Error
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *notificationRepo) MarkRead(ctx context.Context, recipientID, id string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Notification{}).
		Where("notification_id = ? AND recipient_id = ? AND is_read = ?", id, recipientID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": time.Now().UTC()})
	return result.RowsAffected, result.Error
}

func (r *notificationRepo) MarkAllRead(ctx context.Context, recipientID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": time.Now().UTC()})
	return result.RowsAffected, result.Error
}

func (r *notificationRepo) MarkUnread(ctx context.Context, recipientID, id string) (int64, error) {
	result := r.db.WithContext(ctx).Exec(`
		UPDATE notifications n
		SET is_read = FALSE, read_at = NULL
		WHERE n.notification_id = ? AND n.recipient_id = ? AND n.is_read = TRUE
		  AND NOT EXISTS (
		      SELECT 1 FROM notifications d
		      WHERE d.recipient_id = n.recipient_id AND d.actor_id = n.actor_id
		        AND d.type = n.type AND d.is_read = FALSE)`,
		id, recipientID,
	)
	return result.RowsAffected, result.Error
}

func (r *notificationRepo) MarkAllUnread(ctx context.Context, recipientID string) (int64, error) {
	// 同一 (actor, type) 仅恢复最新的一条，避免违反未读去重索引
	result := r.db.WithContext(ctx).Exec(`
		UPDATE notifications n
		SET is_read = FALSE, read_at = NULL
		WHERE n.notification_id IN (
		    SELECT DISTINCT ON (actor_id, type) notification_id
		    FROM notifications
		    WHERE recipient_id = ? AND is_read = TRUE
		    ORDER BY actor_id, type, created_at DESC)
		  AND NOT EXISTS (
		      SELECT 1 FROM notifications d
		      WHERE d.recipient_id = n.recipient_id AND d.actor_id = n.actor_id
		        AND d.type = n.type AND d.is_read = FALSE)`,
		recipientID,
	)
	return result.RowsAffected, result.Error
}
