package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"campusconnect/backend/internal/model"
)

// ChatRepository 聊天数据访问接口
type ChatRepository interface {
	GetRoom(ctx context.Context, roomID string) (*model.ChatRoom, error)
	GetDirectRoom(ctx context.Context, directKey string) (*model.ChatRoom, error)
	// CreateRoom 事务：创建房间与全部成员
	CreateRoom(ctx context.Context, room *model.ChatRoom, userIDs []string) error
	GetParticipant(ctx context.Context, roomID, userID string) (*model.ChatParticipant, error)
	ListParticipants(ctx context.Context, roomID string) ([]model.ChatParticipant, error)
	ListRoomSummaries(ctx context.Context, userID string) ([]model.RoomSummary, error)

	// CreateMessage 事务：写入消息并刷新房间 updated_at
	CreateMessage(ctx context.Context, msg *model.ChatMessage) error
	GetMessage(ctx context.Context, messageID string) (*model.ChatMessage, error)
	// ListMessages 返回最近的一页（offset 从最新消息算起），按时间正序排列
	ListMessages(ctx context.Context, roomID string, offset, limit int) ([]model.ChatMessage, int64, error)
	SoftDeleteMessage(ctx context.Context, messageID, senderID string) (int64, error)
	MarkRead(ctx context.Context, roomID, userID string, at time.Time) error
}

type chatRepo struct {
	db *gorm.DB
}

// NewChatRepo 创建 ChatRepository 实例
func NewChatRepo(db *gorm.DB) ChatRepository {
	return &chatRepo{db: db}
}

func (r *chatRepo) GetRoom(ctx context.Context, roomID string) (*model.ChatRoom, error) {
	var room model.ChatRoom
	if err := r.db.WithContext(ctx).Where("room_id = ?", roomID).First(&room).Error; err != nil {
		return nil, err
	}
	return &room, nil
}

func (r *chatRepo) GetDirectRoom(ctx context.Context, directKey string) (*model.ChatRoom, error) {
	var room model.ChatRoom
	if err := r.db.WithContext(ctx).Where("direct_key = ?", directKey).First(&room).Error; err != nil {
		return nil, err
	}
	return &room, nil
}

func (r *chatRepo) CreateRoom(ctx context.Context, room *model.ChatRoom, userIDs []string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(room).Error; err != nil {
			return err
		}
		now := time.Now().UTC()
		participants := make([]model.ChatParticipant, 0, len(userIDs))
		for _, uid := range userIDs {
			participants = append(participants, model.ChatParticipant{
				RoomID:   room.RoomID,
				UserID:   uid,
				JoinedAt: now,
			})
		}
		return tx.Omit("User").Create(&participants).Error
	})
}

func (r *chatRepo) GetParticipant(ctx context.Context, roomID, userID string) (*model.ChatParticipant, error) {
	var p model.ChatParticipant
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *chatRepo) ListParticipants(ctx context.Context, roomID string) ([]model.ChatParticipant, error) {
	var list []model.ChatParticipant
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("room_id = ?", roomID).
		Order("joined_at ASC").
		Find(&list).Error
	return list, err
}

func (r *chatRepo) ListRoomSummaries(ctx context.Context, userID string) ([]model.RoomSummary, error) {
	var rooms []model.ChatRoom
	err := r.db.WithContext(ctx).
		Joins("JOIN chat_participants p ON p.room_id = chat_rooms.room_id").
		Where("p.user_id = ?", userID).
		Order("chat_rooms.updated_at DESC").
		Find(&rooms).Error
	if err != nil || len(rooms) == 0 {
		return nil, err
	}

	roomIDs := make([]string, len(rooms))
	for i, room := range rooms {
		roomIDs[i] = room.RoomID
	}

	// 每个房间的最后一条消息
	var last []model.ChatMessage
	err = r.db.WithContext(ctx).Raw(`
		SELECT DISTINCT ON (room_id) *
		FROM chat_messages
		WHERE room_id IN ?
		ORDER BY room_id, created_at DESC`, roomIDs,
	).Scan(&last).Error
	if err != nil {
		return nil, err
	}
	if err := r.attachSenders(ctx, last); err != nil {
		return nil, err
	}
	lastByRoom := make(map[string]model.ChatMessage, len(last))
	for _, m := range last {
		lastByRoom[m.RoomID] = m
	}

	// 未读数：我的 last_read_at 之后、非本人发送、未删除的消息
	var unread []struct {
		RoomID string
		Count  int64
	}
	err = r.db.WithContext(ctx).Raw(`
		SELECT m.room_id, COUNT(*) AS count
		FROM chat_messages m
		JOIN chat_participants p ON p.room_id = m.room_id AND p.user_id = ?
		WHERE m.room_id IN ?
		  AND m.sender_id <> ?
		  AND m.is_deleted = FALSE
		  AND (p.last_read_at IS NULL OR m.created_at > p.last_read_at)
		GROUP BY m.room_id`, userID, roomIDs, userID,
	).Scan(&unread).Error
	if err != nil {
		return nil, err
	}
	unreadByRoom := make(map[string]int64, len(unread))
	for _, u := range unread {
		unreadByRoom[u.RoomID] = u.Count
	}

	out := make([]model.RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		s := model.RoomSummary{Room: room, UnreadCount: unreadByRoom[room.RoomID]}
		if m, ok := lastByRoom[room.RoomID]; ok {
			msg := m
			s.LastMessage = &msg
		}
		out = append(out, s)
	}
	return out, nil
}

// attachSenders 批量加载消息发送者
func (r *chatRepo) attachSenders(ctx context.Context, msgs []model.ChatMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(msgs))
	ids := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if !seen[m.SenderID] {
			seen[m.SenderID] = true
			ids = append(ids, m.SenderID)
		}
	}

	var senders []model.User
	if err := r.db.WithContext(ctx).Where("user_id IN ?", ids).Find(&senders).Error; err != nil {
		return err
	}
	byID := make(map[string]*model.User, len(senders))
	for i := range senders {
		byID[senders[i].UserID] = &senders[i]
	}
	for i := range msgs {
		msgs[i].Sender = byID[msgs[i].SenderID]
	}
	return nil
}

func (r *chatRepo) CreateMessage(ctx context.Context, msg *model.ChatMessage) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Sender").Create(msg).Error; err != nil {
			return err
		}
		return tx.Model(&model.ChatRoom{}).
			Where("room_id = ?", msg.RoomID).
			Update("updated_at", msg.CreatedAt).Error
	})
}

func (r *chatRepo) GetMessage(ctx context.Context, messageID string) (*model.ChatMessage, error) {
	var msg model.ChatMessage
	err := r.db.WithContext(ctx).
		Preload("Sender").
		Where("message_id = ?", messageID).
		First(&msg).Error
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *chatRepo) ListMessages(ctx context.Context, roomID string, offset, limit int) ([]model.ChatMessage, int64, error) {
	var msgs []model.ChatMessage
	var total int64

	db := r.db.WithContext(ctx).Model(&model.ChatMessage{}).Where("room_id = ?", roomID)
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := db.Preload("Sender").
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, 0, err
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, total, nil
}

func (r *chatRepo) SoftDeleteMessage(ctx context.Context, messageID, senderID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.ChatMessage{}).
		Where("message_id = ? AND sender_id = ? AND is_deleted = ?", messageID, senderID, false).
		Updates(map[string]interface{}{"is_deleted": true, "updated_at": gorm.Expr("NOW()")})
	return result.RowsAffected, result.Error
}

func (r *chatRepo) MarkRead(ctx context.Context, roomID, userID string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.ChatParticipant{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Update("last_read_at", at).Error
}
