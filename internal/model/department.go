package model

// Department 院系表，对应 departments
type Department struct {
	DepartmentID string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"department_id"`
	Code         string `gorm:"type:varchar(16);not null"                      json:"code"`
	Name         string `gorm:"type:varchar(100);not null"                     json:"name"`
	IsActive     bool   `gorm:"not null;default:true"                          json:"is_active"`
	BaseModel
}

// TableName 指定表名
func (Department) TableName() string { return "departments" }
