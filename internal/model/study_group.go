package model

import "time"

// 小组成员角色
const (
	GroupRoleCreator = "creator"
	GroupRoleMember  = "member"
)

// StudyGroup 学习小组，对应 study_groups
type StudyGroup struct {
	GroupID     string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"group_id"`
	CreatorID   string `gorm:"type:uuid;not null"                             json:"creator_id"`
	Name        string `gorm:"type:varchar(100);not null"                     json:"name"`
	Description string `gorm:"type:text"                                      json:"description,omitempty"`
	BaseModel

	Creator *User `gorm:"foreignKey:CreatorID;references:UserID" json:"creator,omitempty"`
}

// TableName 指定表名
func (StudyGroup) TableName() string { return "study_groups" }

// GroupMember 小组成员，对应 group_members
type GroupMember struct {
	MemberID string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"member_id"`
	GroupID  string    `gorm:"type:uuid;not null"                             json:"group_id"`
	UserID   string    `gorm:"type:uuid;not null"                             json:"user_id"`
	Role     string    `gorm:"type:varchar(20);not null;default:'member'"     json:"role"`
	JoinedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"joined_at"`

	User *User `gorm:"foreignKey:UserID;references:UserID" json:"user,omitempty"`
}

// TableName 指定表名
func (GroupMember) TableName() string { return "group_members" }
