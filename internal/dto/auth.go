package dto

// ── 认证模块 DTO ──

// RegisterRequest 注册请求（JSON 或 multipart 表单）
type RegisterRequest struct {
	Name           string `json:"name"            form:"name"            binding:"required,min=2,max=100"`
	Email          string `json:"email"           form:"email"           binding:"required,email,max=255"`
	Password       string `json:"password"        form:"password"        binding:"required,min=8,max=72"`
	Role           string `json:"role"            form:"role"            binding:"omitempty,oneof=student manager"`
	DepartmentCode string `json:"department_code" form:"department_code" binding:"omitempty,max=16"`

	// 头像由 handler 从 multipart 中读取
	ProfileImage *ImageUpload `json:"-" form:"-"`
}

// ImageUpload 已读入内存的上传图片
type ImageUpload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email"    binding:"required,email"`
	Password string `json:"password" binding:"required"`

	// 由 handler 填入，用于登录失败锁定
	ClientIP string `json:"-"`
}

// GoogleLoginRequest Google 登录请求
type GoogleLoginRequest struct {
	IDToken        string `json:"id_token"        binding:"required"`
	DepartmentCode string `json:"department_code" binding:"omitempty,max=16"`
}

// RefreshTokenRequest 刷新 Token 请求
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// UpdateProfileRequest 更新个人资料请求
type UpdateProfileRequest struct {
	Name           *string `json:"name"            form:"name"            binding:"omitempty,min=2,max=100"`
	DepartmentCode *string `json:"department_code" form:"department_code" binding:"omitempty,max=16"`

	ProfileImage *ImageUpload `json:"-" form:"-"`
}
