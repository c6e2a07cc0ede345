package model

import "time"

// 通知类型
const (
	NotificationFriendRequestReceived = "friend_request_received"
	NotificationFriendRequestAccepted = "friend_request_accepted"
)

// Notification 通知表，对应 notifications
type Notification struct {
	NotificationID string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"notification_id"`
	RecipientID    string     `gorm:"type:uuid;not null"                             json:"recipient_id"`
	ActorID        string     `gorm:"type:uuid;not null"                             json:"actor_id"`
	Type           string     `gorm:"type:varchar(50);not null"                      json:"type"`
	IsRead         bool       `gorm:"not null;default:false"                         json:"is_read"`
	ReadAt         *time.Time `gorm:"type:timestamptz"                               json:"read_at,omitempty"`
	CreatedAt      time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`

	Actor *User `gorm:"foreignKey:ActorID;references:UserID" json:"actor,omitempty"`
}

// TableName 指定表名
func (Notification) TableName() string { return "notifications" }
