package model

// FeedbackItem 用户反馈，对应 feedback_items
type FeedbackItem struct {
	FeedbackID string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"feedback_id"`
	ReporterID *string `gorm:"type:uuid"                                      json:"reporter_id,omitempty"`
	Category   string  `gorm:"type:varchar(30);not null;default:'general'"    json:"category"`
	Subject    string  `gorm:"type:varchar(200);not null"                     json:"subject"`
	Message    string  `gorm:"type:text;not null"                             json:"message"`
	Rating     *int    `gorm:"type:smallint"                                  json:"rating,omitempty"`
	Status     string  `gorm:"type:varchar(20);not null;default:'new'"        json:"status"`
	AdminNotes *string `gorm:"type:text"                                      json:"admin_notes,omitempty"`
	BaseModel

	Reporter *User `gorm:"foreignKey:ReporterID;references:UserID" json:"reporter,omitempty"`
}

// TableName 指定表名
func (FeedbackItem) TableName() string { return "feedback_items" }

// BugReport 缺陷报告，对应 bug_reports
type BugReport struct {
	BugID       string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"bug_id"`
	ReporterID  *string `gorm:"type:uuid"                                      json:"reporter_id,omitempty"`
	Title       string  `gorm:"type:varchar(200);not null"                     json:"title"`
	Description string  `gorm:"type:text;not null"                             json:"description"`
	Steps       *string `gorm:"type:text"                                      json:"steps,omitempty"`
	Severity    string  `gorm:"type:varchar(20);not null;default:'medium'"     json:"severity"`
	Priority    string  `gorm:"type:varchar(20);not null;default:'medium'"     json:"priority"`
	Status      string  `gorm:"type:varchar(20);not null;default:'open'"       json:"status"`
	AdminNotes  *string `gorm:"type:text"                                      json:"admin_notes,omitempty"`
	BaseModel

	Reporter *User `gorm:"foreignKey:ReporterID;references:UserID" json:"reporter,omitempty"`
}

// TableName 指定表名
func (BugReport) TableName() string { return "bug_reports" }

// 反馈状态
const (
	FeedbackStatusNew       = "new"
	FeedbackStatusReviewed  = "reviewed"
	FeedbackStatusResolved  = "resolved"
	FeedbackStatusDismissed = "dismissed"
)

// 缺陷状态
const (
	BugStatusOpen       = "open"
	BugStatusInProgress = "in_progress"
	BugStatusResolved   = "resolved"
	BugStatusClosed     = "closed"
	BugStatusWontFix    = "wont_fix"
)
