package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"campusconnect/backend/internal/dto"
	"campusconnect/backend/internal/service"
	"campusconnect/backend/pkg/response"
)

// DepartmentHandler 院系模块 HTTP 处理器
type DepartmentHandler struct {
	deptSvc service.DepartmentService
}

// NewDepartmentHandler 创建 DepartmentHandler
func NewDepartmentHandler(deptSvc service.DepartmentService) *DepartmentHandler {
	return &DepartmentHandler{deptSvc: deptSvc}
}

// ListDepartments 获取院系列表（注册页使用，无需登录）
// GET /api/v1/departments
func (h *DepartmentHandler) ListDepartments(c *gin.Context) {
	var req dto.DepartmentListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindFailed(c, err)
		return
	}

	depts, err := h.deptSvc.List(c.Request.Context(), &req)
	if err != nil {
		handleDepartmentError(c, err)
		return
	}

	response.OK(c, gin.H{"list": depts})
}

// CreateDepartment 创建院系
// POST /api/v1/admin/departments
func (h *DepartmentHandler) CreateDepartment(c *gin.Context) {
	var req dto.CreateDepartmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	dept, err := h.deptSvc.Create(c.Request.Context(), &req)
	if err != nil {
		handleDepartmentError(c, err)
		return
	}

	response.Created(c, dept)
}

// UpdateDepartment 更新院系（名称 / 启用状态）
// PUT /api/v1/admin/departments/:id
func (h *DepartmentHandler) UpdateDepartment(c *gin.Context) {
	id, ok := MustParamID(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateDepartmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	dept, err := h.deptSvc.Update(c.Request.Context(), id, &req)
	if err != nil {
		handleDepartmentError(c, err)
		return
	}

	response.OK(c, dept)
}

func handleDepartmentError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrDepartmentNotFound):
		response.NotFound(c, 18101, "院系不存在")
	case errors.Is(err, service.ErrDepartmentCodeExists):
		response.Conflict(c, 18102, "院系代码已存在")
	case errors.Is(err, service.ErrDepartmentInactive):
		response.BadRequest(c, 18103, "院系已停用")
	default:
		handleCommonError(c, err)
	}
}
