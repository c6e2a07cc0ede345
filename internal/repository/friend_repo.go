package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"campusconnect/backend/internal/model"
)

// FriendRepository 好友关系数据访问接口
type FriendRepository interface {
	// Between 返回两个用户之间所有方向的关系边
	Between(ctx context.Context, a, b string) ([]model.Friendship, error)
	GetPending(ctx context.Context, requesterID, recipientID string) (*model.Friendship, error)
	// SendRequest 事务：写入/重置 pending 边并插入通知（重复未读通知忽略）
	SendRequest(ctx context.Context, requesterID, recipientID string) (*model.Notification, error)
	// Accept 事务：pending → accepted 并通知原请求方
	Accept(ctx context.Context, requesterID, recipientID string) (*model.Notification, error)
	DeleteEdge(ctx context.Context, requesterID, recipientID string) (int64, error)
	DeleteBetween(ctx context.Context, a, b string) (int64, error)
	ListAccepted(ctx context.Context, userID string) ([]model.Friendship, error)
	ListIncoming(ctx context.Context, userID string) ([]model.Friendship, error)
	ListOutgoing(ctx context.Context, userID string) ([]model.Friendship, error)
	AreFriends(ctx context.Context, a, b string) (bool, error)
	// FilterFriends 返回 candidates 中与 userID 为好友的用户
	FilterFriends(ctx context.Context, userID string, candidates []string) ([]string, error)
}

type friendRepo struct {
	db *gorm.DB
}

// NewFriendRepo 创建 FriendRepository 实例
func NewFriendRepo(db *gorm.DB) FriendRepository {
	return &friendRepo{db: db}
}

func pairScope(a, b string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("((requester_id = ? AND recipient_id = ?) OR (requester_id = ? AND recipient_id = ?))", a, b, b, a)
	}
}

func (r *friendRepo) Between(ctx context.Context, a, b string) ([]model.Friendship, error) {
	var edges []model.Friendship
	err := r.db.WithContext(ctx).Scopes(pairScope(a, b)).Find(&edges).Error
	return edges, err
}

func (r *friendRepo) GetPending(ctx context.Context, requesterID, recipientID string) (*model.Friendship, error) {
	var edge model.Friendship
	err := r.db.WithContext(ctx).
		Where("requester_id = ? AND recipient_id = ? AND status = ?", requesterID, recipientID, model.FriendStatusPending).
		First(&edge).Error
	if err != nil {
		return nil, err
	}
	return &edge, nil
}

// insertNotification 插入通知，命中未读去重索引时返回 nil
func insertNotification(tx *gorm.DB, recipientID, actorID, typ string) (*model.Notification, error) {
	n := &model.Notification{
		RecipientID: recipientID,
		ActorID:     actorID,
		Type:        typ,
	}
	result := tx.Omit("Actor").Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "recipient_id"}, {Name: "actor_id"}, {Name: "type"}},
		TargetWhere: clause.Where{Exprs: []clause.Expression{
			clause.Eq{Column: clause.Column{Name: "is_read"}, Value: false},
		}},
		DoNothing: true,
	}).Create(n)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return n, nil
}

func (r *friendRepo) SendRequest(ctx context.Context, requesterID, recipientID string) (*model.Notification, error) {
	var created *model.Notification
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		edge := &model.Friendship{
			RequesterID: requesterID,
			RecipientID: recipientID,
			Status:      model.FriendStatusPending,
		}
		err := tx.Omit("Requester", "Recipient").Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "requester_id"}, {Name: "recipient_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"status":      model.FriendStatusPending,
				"accepted_at": nil,
				"updated_at":  gorm.Expr("NOW()"),
			}),
		}).Create(edge).Error
		if err != nil {
			return err
		}

		created, err = insertNotification(tx, recipientID, requesterID, model.NotificationFriendRequestReceived)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *friendRepo) Accept(ctx context.Context, requesterID, recipientID string) (*model.Notification, error) {
	var created *model.Notification
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		result := tx.Model(&model.Friendship{}).
			Where("requester_id = ? AND recipient_id = ? AND status = ?", requesterID, recipientID, model.FriendStatusPending).
			Updates(map[string]interface{}{
				"status":      model.FriendStatusAccepted,
				"accepted_at": now,
				"updated_at":  now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		var err error
		created, err = insertNotification(tx, requesterID, recipientID, model.NotificationFriendRequestAccepted)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *friendRepo) DeleteEdge(ctx context.Context, requesterID, recipientID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("requester_id = ? AND recipient_id = ? AND status = ?", requesterID, recipientID, model.FriendStatusPending).
		Delete(&model.Friendship{})
	return result.RowsAffected, result.Error
}

func (r *friendRepo) DeleteBetween(ctx context.Context, a, b string) (int64, error) {
	result := r.db.WithContext(ctx).Scopes(pairScope(a, b)).Delete(&model.Friendship{})
	return result.RowsAffected, result.Error
}

func (r *friendRepo) ListAccepted(ctx context.Context, userID string) ([]model.Friendship, error) {
	var edges []model.Friendship
	err := r.db.WithContext(ctx).
		Preload("Requester.StudentProfile.Department").
		Preload("Recipient.StudentProfile.Department").
		Where("status = ? AND (requester_id = ? OR recipient_id = ?)", model.FriendStatusAccepted, userID, userID).
		Order("accepted_at DESC").
		Find(&edges).Error
	return edges, err
}

func (r *friendRepo) ListIncoming(ctx context.Context, userID string) ([]model.Friendship, error) {
	var edges []model.Friendship
	err := r.db.WithContext(ctx).
		Preload("Requester.StudentProfile.Department").
		Where("recipient_id = ? AND status = ?", userID, model.FriendStatusPending).
		Order("updated_at DESC").
		Find(&edges).Error
	return edges, err
}

func (r *friendRepo) ListOutgoing(ctx context.Context, userID string) ([]model.Friendship, error) {
	var edges []model.Friendship
	err := r.db.WithContext(ctx).
		Preload("Recipient.StudentProfile.Department").
		Where("requester_id = ? AND status = ?", userID, model.FriendStatusPending).
		Order("updated_at DESC").
		Find(&edges).Error
	return edges, err
}

func (r *friendRepo) AreFriends(ctx context.Context, a, b string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Friendship{}).
		Scopes(pairScope(a, b)).
		Where("status = ?", model.FriendStatusAccepted).
		Count(&count).Error
	return count > 0, err
}

func (r *friendRepo) FilterFriends(ctx context.Context, userID string, candidates []string) ([]string, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	var ids []string
	err := r.db.WithContext(ctx).Raw(`
		SELECT CASE WHEN requester_id = ? THEN recipient_id ELSE requester_id END
		FROM friendships
		WHERE status = ?
		  AND ((requester_id = ? AND recipient_id IN ?) OR (recipient_id = ? AND requester_id IN ?))`,
		userID, model.FriendStatusAccepted, userID, candidates, userID, candidates,
	).Scan(&ids).Error
	return ids, err
}
