package model

// 用户角色
const (
	RoleStudent = "student"
	RoleManager = "manager"
	RoleAdmin   = "admin"
)

// ValidRoles 合法角色集合
var ValidRoles = map[string]bool{
	RoleStudent: true,
	RoleManager: true,
	RoleAdmin:   true,
}

// User 用户表，对应 users
type User struct {
	UserID       string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"user_id"`
	Name         string  `gorm:"type:varchar(100);not null"                     json:"name"`
	Email        string  `gorm:"type:varchar(255);not null"                     json:"email"`
	PasswordHash *string `gorm:"type:varchar(255)"                              json:"-"`
	GoogleID     *string `gorm:"type:varchar(64)"                               json:"-"`
	Role         string  `gorm:"type:varchar(20);not null;default:'student'"    json:"role"`
	ProfileImage *string `gorm:"type:varchar(500)"                              json:"profile_image,omitempty"`
	BaseModel

	// 关联
	StudentProfile *StudentProfile `gorm:"foreignKey:UserID;references:UserID" json:"student_profile,omitempty"`
}

// TableName 指定表名
func (User) TableName() string { return "users" }

// IsStudent 是否学生
func (u *User) IsStudent() bool { return u.Role == RoleStudent }

// StudentProfile 学生档案表，对应 student_profiles（与 users 1:1，仅学生）
type StudentProfile struct {
	UserID       string `gorm:"type:uuid;primaryKey" json:"user_id"`
	DepartmentID string `gorm:"type:uuid;not null"   json:"department_id"`
	BaseModel

	Department *Department `gorm:"foreignKey:DepartmentID;references:DepartmentID" json:"department,omitempty"`
}

// TableName 指定表名
func (StudentProfile) TableName() string { return "student_profiles" }
