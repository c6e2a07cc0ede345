package dto

// ── 院系模块 DTO ──

// CreateDepartmentRequest 创建院系请求
type CreateDepartmentRequest struct {
	Code string `json:"code" binding:"required,min=2,max=16,alphanum"`
	Name string `json:"name" binding:"required,min=2,max=100"`
}

// UpdateDepartmentRequest 更新院系请求
type UpdateDepartmentRequest struct {
	Name     *string `json:"name"      binding:"omitempty,min=2,max=100"`
	IsActive *bool   `json:"is_active"`
}

// DepartmentListRequest 院系列表查询参数
type DepartmentListRequest struct {
	IncludeInactive bool `form:"include_inactive"`
}

// DepartmentDetailResponse 院系详细信息响应
type DepartmentDetailResponse struct {
	ID        string `json:"id"`
	Code      string `json:"code"`
	Name      string `json:"name"`
	IsActive  bool   `json:"is_active"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}
