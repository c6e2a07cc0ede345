package model

import "time"

// 好友关系状态
const (
	FriendStatusPending  = "pending"
	FriendStatusAccepted = "accepted"
)

// Friendship 好友关系边，对应 friendships
// 有向存储（requester → recipient），accepted 后双方对称可见
type Friendship struct {
	FriendshipID string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"friendship_id"`
	RequesterID  string     `gorm:"type:uuid;not null"                             json:"requester_id"`
	RecipientID  string     `gorm:"type:uuid;not null"                             json:"recipient_id"`
	Status       string     `gorm:"type:varchar(20);not null;default:'pending'"    json:"status"`
	AcceptedAt   *time.Time `gorm:"type:timestamptz"                               json:"accepted_at,omitempty"`
	BaseModel

	Requester *User `gorm:"foreignKey:RequesterID;references:UserID" json:"requester,omitempty"`
	Recipient *User `gorm:"foreignKey:RecipientID;references:UserID" json:"recipient,omitempty"`
}

// TableName 指定表名
func (Friendship) TableName() string { return "friendships" }

// Other 返回关系中对方的用户 ID
func (f *Friendship) Other(userID string) string {
	if f.RequesterID == userID {
		return f.RecipientID
	}
	return f.RequesterID
}
