package dto

// ── 用户管理 DTO（管理后台） ──

// UserListRequest 用户列表查询参数
type UserListRequest struct {
	PaginationRequest
	Role    string `form:"role"    binding:"omitempty,oneof=student manager admin"`
	Keyword string `form:"keyword" binding:"omitempty,max=50"`
}

// AssignRoleRequest 分配角色请求
// 改为 student 时必须提供院系代码
type AssignRoleRequest struct {
	Role           string `json:"role"            binding:"required,oneof=student manager admin"`
	DepartmentCode string `json:"department_code" binding:"omitempty,max=16"`
}
