package dto

// ── 用户模块响应 ──

// UserResponse 用户信息响应（脱敏）
type UserResponse struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	Email        string              `json:"email"`
	Role         string              `json:"role"`
	ProfileImage *string             `json:"profile_image,omitempty"`
	Department   *DepartmentResponse `json:"department,omitempty"`
	GoogleLinked bool                `json:"google_linked"`
	CreatedAt    string              `json:"created_at,omitempty"`
}

// UserBrief 列表中嵌入的用户摘要
type UserBrief struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Email        string  `json:"email,omitempty"`
	ProfileImage *string `json:"profile_image,omitempty"`
}

// DepartmentResponse 院系简要信息
type DepartmentResponse struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// ── 认证模块响应 ──

// TokenResponse Token 对响应
type TokenResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int          `json:"expires_in"` // Access Token 有效期（秒）
	User         UserResponse `json:"user"`
}

// ── 分页请求 ──

// MaxLimit 单页数量上限，超出时按上限截断
const MaxLimit = 100

// clampLimit 未传时取默认值，超过上限时截断
func clampLimit(n, def int) int {
	switch {
	case n <= 0:
		return def
	case n > MaxLimit:
		return MaxLimit
	default:
		return n
	}
}

// PaginationRequest 通用分页参数
type PaginationRequest struct {
	Page     int `form:"page"      binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1"`
}

// GetPage 获取页码（含默认值）
func (p *PaginationRequest) GetPage() int {
	if p.Page <= 0 {
		return 1
	}
	return p.Page
}

// GetPageSize 获取每页数量（含默认值）
func (p *PaginationRequest) GetPageSize() int {
	return clampLimit(p.PageSize, 20)
}

// GetOffset 计算偏移量
func (p *PaginationRequest) GetOffset() int {
	return (p.GetPage() - 1) * p.GetPageSize()
}

// OffsetRequest limit/offset 风格的分页参数（管理后台列表）
type OffsetRequest struct {
	Limit  int `form:"limit"  binding:"omitempty,min=1"`
	Offset int `form:"offset" binding:"omitempty,min=0"`
}

// GetLimit 获取每页数量（含默认值）
func (o *OffsetRequest) GetLimit() int {
	return clampLimit(o.Limit, 20)
}

// GetPage 由 offset 推算页码，用于统一的分页响应
func (o *OffsetRequest) GetPage() int {
	return o.Offset/o.GetLimit() + 1
}
