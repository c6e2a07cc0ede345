package model

import "strings"

// 日程类型
const (
	RoutineTypeClass    = "class"
	RoutineTypeStudy    = "study"
	RoutineTypeBreak    = "break"
	RoutineTypeActivity = "activity"
)

// RoutineTypes 合法日程类型
var RoutineTypes = map[string]bool{
	RoutineTypeClass:    true,
	RoutineTypeStudy:    true,
	RoutineTypeBreak:    true,
	RoutineTypeActivity: true,
}

// Weekdays 一周七天（按顺序）
var Weekdays = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

// NormalizeWeekday 星期名统一为小写存储，"Monday" 与 "monday" 等价
func NormalizeWeekday(day string) string {
	return strings.ToLower(strings.TrimSpace(day))
}

// IsWeekday 判断是否为合法星期名，不区分大小写
func IsWeekday(day string) bool {
	day = NormalizeWeekday(day)
	for _, d := range Weekdays {
		if d == day {
			return true
		}
	}
	return false
}

// Routine 每周固定日程，对应 routines
// StartTime / EndTime 为 PostgreSQL TIME，读出时形如 "09:00:00"
type Routine struct {
	RoutineID string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"routine_id"`
	UserID    string  `gorm:"type:uuid;not null"                             json:"user_id"`
	Day       string  `gorm:"type:varchar(10);not null"                      json:"day"`
	StartTime string  `gorm:"type:time;not null"                             json:"start_time"`
	EndTime   string  `gorm:"type:time;not null"                             json:"end_time"`
	Activity  string  `gorm:"type:varchar(200);not null"                     json:"activity"`
	Location  *string `gorm:"type:varchar(200)"                              json:"location,omitempty"`
	Type      string  `gorm:"type:varchar(20);not null;default:'class'"      json:"type"`
	BaseModel
}

// TableName 指定表名
func (Routine) TableName() string { return "routines" }
