package dto

// ── 通知模块 DTO ──

// NotificationListRequest 通知列表查询参数
type NotificationListRequest struct {
	Page       int  `form:"page"        binding:"omitempty,min=1"`
	Limit      int  `form:"limit"       binding:"omitempty,min=1"`
	UnreadOnly bool `form:"unread_only"`
}

// GetPage 获取页码（含默认值）
func (r *NotificationListRequest) GetPage() int {
	if r.Page <= 0 {
		return 1
	}
	return r.Page
}

// GetLimit 获取每页数量（含默认值）
func (r *NotificationListRequest) GetLimit() int {
	return clampLimit(r.Limit, 20)
}

// NotificationResponse 通知条目
type NotificationResponse struct {
	ID        string     `json:"id"`
	Type      string     `json:"type"`
	Actor     *UserBrief `json:"actor,omitempty"`
	IsRead    bool       `json:"is_read"`
	ReadAt    *string    `json:"read_at,omitempty"`
	CreatedAt string     `json:"created_at"`
}

// UnreadCountResponse 未读数
type UnreadCountResponse struct {
	Unread int64 `json:"unread"`
}

// MarkResultResponse 批量标记结果
type MarkResultResponse struct {
	Updated int64 `json:"updated"`
}
