package dto

// ── 日程模块 DTO ──

// CreateRoutineRequest 创建日程请求
type CreateRoutineRequest struct {
	Day       string  `json:"day"        binding:"required,weekday"`
	StartTime string  `json:"start_time" binding:"required,clock"`
	EndTime   string  `json:"end_time"   binding:"required,clock"`
	Activity  string  `json:"activity"   binding:"required,min=1,max=200"`
	Location  *string `json:"location"   binding:"omitempty,max=200"`
	Type      string  `json:"type"       binding:"omitempty,routine_type"`
}

// UpdateRoutineRequest 更新日程请求（全部字段可选）
type UpdateRoutineRequest struct {
	Day       *string `json:"day"        binding:"omitempty,weekday"`
	StartTime *string `json:"start_time" binding:"omitempty,clock"`
	EndTime   *string `json:"end_time"   binding:"omitempty,clock"`
	Activity  *string `json:"activity"   binding:"omitempty,min=1,max=200"`
	Location  *string `json:"location"   binding:"omitempty,max=200"`
	Type      *string `json:"type"       binding:"omitempty,routine_type"`
}

// RoutineListRequest 日程列表查询参数
type RoutineListRequest struct {
	Day string `form:"day" binding:"omitempty,weekday"`
}

// RoutineResponse 日程条目
type RoutineResponse struct {
	ID        string  `json:"id"`
	UserID    string  `json:"user_id"`
	Day       string  `json:"day"`
	StartTime string  `json:"start_time"`
	EndTime   string  `json:"end_time"`
	Activity  string  `json:"activity"`
	Location  *string `json:"location,omitempty"`
	Type      string  `json:"type"`
}

// FreeTimeRequest 共同空闲时间查询参数
type FreeTimeRequest struct {
	FriendID   string `form:"friend_id"   binding:"required,uuid"`
	Day        string `form:"day"         binding:"required,weekday"`
	MinMinutes int    `form:"min_minutes" binding:"omitempty,min=1,max=1440"`
}

// FreeTimeWeekRequest 一周共同空闲时间查询参数
type FreeTimeWeekRequest struct {
	FriendID   string `form:"friend_id"   binding:"required,uuid"`
	MinMinutes int    `form:"min_minutes" binding:"omitempty,min=1,max=1440"`
}

// TimeSlot 时间段（HH:MM）
type TimeSlot struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// FreeTimeResponse 某天的共同空闲时间
type FreeTimeResponse struct {
	Day   string     `json:"day"`
	Slots []TimeSlot `json:"slots"`
}

// ImportRoutinesResponse ICS 导入结果
type ImportRoutinesResponse struct {
	Total    int               `json:"total"`
	Imported int               `json:"imported"`
	Skipped  []ImportSkipEntry `json:"skipped,omitempty"`
}

// ImportSkipEntry 被跳过的事件
type ImportSkipEntry struct {
	Summary string `json:"summary"`
	Day     string `json:"day,omitempty"`
	Start   string `json:"start,omitempty"`
	End     string `json:"end,omitempty"`
	Reason  string `json:"reason"`
}
