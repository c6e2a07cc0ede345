package handler

import (
	"bytes"
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"campusconnect/backend/internal/dto"
	"campusconnect/backend/internal/service"
	"campusconnect/backend/pkg/response"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// AdminHandler 管理后台 HTTP 处理器
// 路由层已通过 RequireRole 校验管理员身份
type AdminHandler struct {
	adminSvc service.AdminService
}

// NewAdminHandler 创建 AdminHandler
func NewAdminHandler(adminSvc service.AdminService) *AdminHandler {
	return &AdminHandler{adminSvc: adminSvc}
}

// ListFeedback 反馈列表
// GET /api/v1/admin/feedback?status=&category=&q=&limit=&offset=
func (h *AdminHandler) ListFeedback(c *gin.Context) {
	var req dto.FeedbackListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindFailed(c, err)
		return
	}

	list, total, err := h.adminSvc.ListFeedback(c.Request.Context(), &req)
	if err != nil {
		handleAdminError(c, err)
		return
	}

	response.OKPage(c, list, total, req.GetPage(), req.GetLimit())
}

// UpdateFeedback 更新反馈状态
// PUT /api/v1/admin/feedback/:id
func (h *AdminHandler) UpdateFeedback(c *gin.Context) {
	id, ok := MustParamID(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	fb, err := h.adminSvc.UpdateFeedbackStatus(c.Request.Context(), id, &req)
	if err != nil {
		handleAdminError(c, err)
		return
	}

	response.OK(c, fb)
}

// ExportFeedback 导出反馈为 Excel
// GET /api/v1/admin/feedback/export
func (h *AdminHandler) ExportFeedback(c *gin.Context) {
	var req dto.FeedbackListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindFailed(c, err)
		return
	}

	buf, filename, err := h.adminSvc.ExportFeedback(c.Request.Context(), &req)
	if err != nil {
		handleAdminError(c, err)
		return
	}

	sendXLSX(c, buf, filename)
}

// ListBugs 缺陷列表
// GET /api/v1/admin/bugs?status=&severity=&priority=&q=&limit=&offset=
func (h *AdminHandler) ListBugs(c *gin.Context) {
	var req dto.BugListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindFailed(c, err)
		return
	}

	list, total, err := h.adminSvc.ListBugs(c.Request.Context(), &req)
	if err != nil {
		handleAdminError(c, err)
		return
	}

	response.OKPage(c, list, total, req.GetPage(), req.GetLimit())
}

// UpdateBug 更新缺陷状态
// PUT /api/v1/admin/bugs/:id
func (h *AdminHandler) UpdateBug(c *gin.Context) {
	id, ok := MustParamID(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	bug, err := h.adminSvc.UpdateBugStatus(c.Request.Context(), id, &req)
	if err != nil {
		handleAdminError(c, err)
		return
	}

	response.OK(c, bug)
}

// ExportBugs 导出缺陷为 Excel
// GET /api/v1/admin/bugs/export
func (h *AdminHandler) ExportBugs(c *gin.Context) {
	var req dto.BugListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindFailed(c, err)
		return
	}

	buf, filename, err := h.adminSvc.ExportBugs(c.Request.Context(), &req)
	if err != nil {
		handleAdminError(c, err)
		return
	}

	sendXLSX(c, buf, filename)
}

// Summary 后台概览
// GET /api/v1/admin/summary
func (h *AdminHandler) Summary(c *gin.Context) {
	summary, err := h.adminSvc.Summary(c.Request.Context())
	if err != nil {
		handleAdminError(c, err)
		return
	}

	response.OK(c, summary)
}

// ListUsers 用户列表
// GET /api/v1/admin/users?role=&keyword=&page=&page_size=
func (h *AdminHandler) ListUsers(c *gin.Context) {
	var req dto.UserListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindFailed(c, err)
		return
	}

	list, total, err := h.adminSvc.ListUsers(c.Request.Context(), &req)
	if err != nil {
		handleAdminError(c, err)
		return
	}

	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// AssignRole 分配角色
// PUT /api/v1/admin/users/:id/role
func (h *AdminHandler) AssignRole(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	id, ok := MustParamID(c, "id")
	if !ok {
		return
	}

	var req dto.AssignRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	user, err := h.adminSvc.AssignRole(c.Request.Context(), callerID, id, &req)
	if err != nil {
		handleAdminError(c, err)
		return
	}

	response.OK(c, user)
}

// sendXLSX 写入 Excel 下载响应
func sendXLSX(c *gin.Context, buf *bytes.Buffer, filename string) {
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.QueryEscape(filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func handleAdminError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrFeedbackNotFound):
		response.NotFound(c, 18001, "反馈不存在")
	case errors.Is(err, service.ErrBugNotFound):
		response.NotFound(c, 18002, "缺陷报告不存在")
	case errors.Is(err, service.ErrInvalidStatus):
		response.BadRequest(c, 18003, "无效的状态值")
	case errors.Is(err, service.ErrInvalidTransition):
		response.BadRequest(c, 18004, "不允许的状态流转")
	case errors.Is(err, service.ErrStatusConflict):
		response.Conflict(c, 18005, "状态已被其他管理员修改，请刷新后重试")
	case errors.Is(err, service.ErrUserSelfRoleChange):
		response.BadRequest(c, 18006, "不能修改自己的角色")
	case errors.Is(err, service.ErrExportGenerateFail):
		response.Error(c, http.StatusInternalServerError, 18007, "生成 Excel 文件失败")
	case errors.Is(err, service.ErrDepartmentRequired):
		response.BadRequest(c, 11004, "学生必须选择院系")
	case errors.Is(err, service.ErrDepartmentNotFound):
		response.BadRequest(c, 11013, "院系不存在")
	case errors.Is(err, service.ErrDepartmentInactive):
		response.BadRequest(c, 11014, "院系已停用")
	default:
		handleCommonError(c, err)
	}
}
