package model

import "time"

// 聊天室类型
const (
	ChatRoomDirect = "direct"
	ChatRoomGroup  = "group"
)

// ChatRoom 聊天室，对应 chat_rooms
type ChatRoom struct {
	RoomID    string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"room_id"`
	Type      string  `gorm:"type:varchar(10);not null"                      json:"type"`
	Name      *string `gorm:"type:varchar(100)"                              json:"name,omitempty"`
	CreatorID string  `gorm:"type:uuid;not null"                             json:"creator_id"`
	DirectKey *string `gorm:"type:varchar(80)"                               json:"-"`
	BaseModel
}

// TableName 指定表名
func (ChatRoom) TableName() string { return "chat_rooms" }

// DirectKey 私聊房间唯一键：较小 ID 在前
func DirectKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + ":" + b
}

// ChatParticipant 聊天室成员，对应 chat_participants
type ChatParticipant struct {
	ParticipantID string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"participant_id"`
	RoomID        string     `gorm:"type:uuid;not null"                             json:"room_id"`
	UserID        string     `gorm:"type:uuid;not null"                             json:"user_id"`
	LastReadAt    *time.Time `gorm:"type:timestamptz"                               json:"last_read_at,omitempty"`
	JoinedAt      time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"joined_at"`

	User *User `gorm:"foreignKey:UserID;references:UserID" json:"user,omitempty"`
}

// TableName 指定表名
func (ChatParticipant) TableName() string { return "chat_participants" }

// ChatMessage 聊天消息，对应 chat_messages
type ChatMessage struct {
	MessageID string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"message_id"`
	RoomID    string  `gorm:"type:uuid;not null"                             json:"room_id"`
	SenderID  string  `gorm:"type:uuid;not null"                             json:"sender_id"`
	Body      string  `gorm:"type:text;not null"                             json:"body"`
	ReplyToID *string `gorm:"type:uuid"                                      json:"reply_to_id,omitempty"`
	IsDeleted bool    `gorm:"not null;default:false"                         json:"is_deleted"`
	BaseModel

	Sender *User `gorm:"foreignKey:SenderID;references:UserID" json:"sender,omitempty"`
}

// TableName 指定表名
func (ChatMessage) TableName() string { return "chat_messages" }

// RoomSummary 房间列表行：房间 + 最后一条消息 + 未读数
type RoomSummary struct {
	Room        ChatRoom
	LastMessage *ChatMessage
	UnreadCount int64
}
