package dto

// ── 聊天模块 DTO ──

// DirectRoomRequest 获取/创建私聊房间
type DirectRoomRequest struct {
	FriendID string `json:"friend_id" binding:"required,uuid"`
}

// CreateGroupRoomRequest 创建群聊
type CreateGroupRoomRequest struct {
	Name      string   `json:"name"       binding:"required,min=1,max=100"`
	MemberIDs []string `json:"member_ids" binding:"required,min=1,max=50,dive,uuid"`
}

// SendMessageRequest 发送消息
type SendMessageRequest struct {
	Body      string  `json:"body"        binding:"required,min=1,max=4000"`
	ReplyToID *string `json:"reply_to_id" binding:"omitempty,uuid"`
}

// MessageListRequest 消息分页参数
type MessageListRequest struct {
	Page  int `form:"page"  binding:"omitempty,min=1"`
	Limit int `form:"limit" binding:"omitempty,min=1"`
}

// GetPage 获取页码（含默认值）
func (r *MessageListRequest) GetPage() int {
	if r.Page <= 0 {
		return 1
	}
	return r.Page
}

// GetLimit 获取每页数量（含默认值）
func (r *MessageListRequest) GetLimit() int {
	return clampLimit(r.Limit, 50)
}

// ChatRoomResponse 房间信息
type ChatRoomResponse struct {
	ID           string           `json:"id"`
	Type         string           `json:"type"`
	Name         *string          `json:"name,omitempty"`
	CreatorID    string           `json:"creator_id"`
	Participants []UserBrief      `json:"participants,omitempty"`
	LastMessage  *MessageResponse `json:"last_message,omitempty"`
	UnreadCount  int64            `json:"unread_count"`
	UpdatedAt    string           `json:"updated_at"`
}

// MessageResponse 消息
// 已删除消息的 body 置空
type MessageResponse struct {
	ID        string     `json:"id"`
	RoomID    string     `json:"room_id"`
	Sender    *UserBrief `json:"sender,omitempty"`
	SenderID  string     `json:"sender_id"`
	Body      string     `json:"body"`
	ReplyToID *string    `json:"reply_to_id,omitempty"`
	IsDeleted bool       `json:"is_deleted"`
	CreatedAt string     `json:"created_at"`
}
