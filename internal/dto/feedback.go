package dto

// ── 反馈与缺陷 DTO ──

// CreateFeedbackRequest 提交反馈
type CreateFeedbackRequest struct {
	Category string `json:"category" binding:"omitempty,oneof=general feature ui performance other"`
	Subject  string `json:"subject"  binding:"required,min=1,max=200"`
	Message  string `json:"message"  binding:"required,min=1,max=5000"`
	Rating   *int   `json:"rating"   binding:"omitempty,min=1,max=5"`
}

// CreateBugReportRequest 提交缺陷
type CreateBugReportRequest struct {
	Title       string  `json:"title"       binding:"required,min=1,max=200"`
	Description string  `json:"description" binding:"required,min=1,max=5000"`
	Steps       *string `json:"steps"       binding:"omitempty,max=5000"`
	Severity    string  `json:"severity"    binding:"omitempty,oneof=low medium high critical"`
	Priority    string  `json:"priority"    binding:"omitempty,oneof=low medium high"`
}

// FeedbackListRequest 反馈列表筛选（管理后台）
type FeedbackListRequest struct {
	OffsetRequest
	Status   string `form:"status"   binding:"omitempty,max=20"`
	Category string `form:"category" binding:"omitempty,max=30"`
	Q        string `form:"q"        binding:"omitempty,max=100"`
}

// BugListRequest 缺陷列表筛选（管理后台）
type BugListRequest struct {
	OffsetRequest
	Status   string `form:"status"   binding:"omitempty,max=20"`
	Severity string `form:"severity" binding:"omitempty,oneof=low medium high critical"`
	Priority string `form:"priority" binding:"omitempty,oneof=low medium high"`
	Q        string `form:"q"        binding:"omitempty,max=100"`
}

// UpdateStatusRequest 更新状态
// 状态合法性由服务层按流转表校验
type UpdateStatusRequest struct {
	Status     string  `json:"status"      binding:"required,max=20"`
	AdminNotes *string `json:"admin_notes" binding:"omitempty,max=5000"`
}

// FeedbackResponse 反馈条目
type FeedbackResponse struct {
	ID         string     `json:"id"`
	Reporter   *UserBrief `json:"reporter,omitempty"`
	Category   string     `json:"category"`
	Subject    string     `json:"subject"`
	Message    string     `json:"message"`
	Rating     *int       `json:"rating,omitempty"`
	Status     string     `json:"status"`
	AdminNotes *string    `json:"admin_notes,omitempty"`
	CreatedAt  string     `json:"created_at"`
	UpdatedAt  string     `json:"updated_at"`
}

// BugReportResponse 缺陷条目
type BugReportResponse struct {
	ID          string     `json:"id"`
	Reporter    *UserBrief `json:"reporter,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Steps       *string    `json:"steps,omitempty"`
	Severity    string     `json:"severity"`
	Priority    string     `json:"priority"`
	Status      string     `json:"status"`
	AdminNotes  *string    `json:"admin_notes,omitempty"`
	CreatedAt   string     `json:"created_at"`
	UpdatedAt   string     `json:"updated_at"`
}

// AdminSummaryResponse 后台概览
type AdminSummaryResponse struct {
	Feedback map[string]int64 `json:"feedback"`
	Bugs     map[string]int64 `json:"bugs"`
	Users    map[string]int64 `json:"users"`
}
