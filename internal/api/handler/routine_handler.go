package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"campusconnect/backend/internal/dto"
	"campusconnect/backend/internal/service"
	"campusconnect/backend/pkg/response"
	"campusconnect/backend/pkg/storage"
)

const defaultICSMaxBytes = 1 << 20

// RoutineHandler 日程模块 HTTP 处理器
type RoutineHandler struct {
	routineSvc  service.RoutineService
	icsMaxBytes int64
}

// NewRoutineHandler 创建 RoutineHandler
func NewRoutineHandler(routineSvc service.RoutineService, icsMaxBytes int64) *RoutineHandler {
	if icsMaxBytes <= 0 {
		icsMaxBytes = defaultICSMaxBytes
	}
	return &RoutineHandler{routineSvc: routineSvc, icsMaxBytes: icsMaxBytes}
}

// ListMine 我的日程，可按 day 过滤
// GET /api/v1/routines
func (h *RoutineHandler) ListMine(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.RoutineListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindFailed(c, err)
		return
	}

	list, err := h.routineSvc.ListMine(c.Request.Context(), userID, req.Day)
	if err != nil {
		handleRoutineError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// ListForUser 查看指定用户的日程
// GET /api/v1/routines/user/:id
func (h *RoutineHandler) ListForUser(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	ownerID, ok := MustParamID(c, "id")
	if !ok {
		return
	}

	list, err := h.routineSvc.ListForUser(c.Request.Context(), userID, ownerID)
	if err != nil {
		handleRoutineError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// Create 新建日程
// POST /api/v1/routines
func (h *RoutineHandler) Create(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.CreateRoutineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	routine, err := h.routineSvc.Create(c.Request.Context(), userID, &req)
	if err != nil {
		handleRoutineError(c, err)
		return
	}

	response.Created(c, routine)
}

// Update 修改日程
// PUT /api/v1/routines/:id
func (h *RoutineHandler) Update(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	id, ok := MustParamID(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateRoutineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	routine, err := h.routineSvc.Update(c.Request.Context(), userID, id, &req)
	if err != nil {
		handleRoutineError(c, err)
		return
	}

	response.OK(c, routine)
}

// Delete 删除日程
// DELETE /api/v1/routines/:id
func (h *RoutineHandler) Delete(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	id, ok := MustParamID(c, "id")
	if !ok {
		return
	}

	if err := h.routineSvc.Delete(c.Request.Context(), userID, id); err != nil {
		handleRoutineError(c, err)
		return
	}

	response.OK(c, nil)
}

// FreeTime 与好友某天的共同空闲时间
// GET /api/v1/routines/free-time?friend_id=&day=&min_minutes=
func (h *RoutineHandler) FreeTime(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.FreeTimeRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindFailed(c, err)
		return
	}

	result, err := h.routineSvc.FreeTime(c.Request.Context(), userID, &req)
	if err != nil {
		handleRoutineError(c, err)
		return
	}

	response.OK(c, result)
}

// FreeTimeWeek 与好友一周的共同空闲时间
// GET /api/v1/routines/free-time/week?friend_id=
func (h *RoutineHandler) FreeTimeWeek(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.FreeTimeWeekRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindFailed(c, err)
		return
	}

	days, err := h.routineSvc.FreeTimeWeek(c.Request.Context(), userID, &req)
	if err != nil {
		handleRoutineError(c, err)
		return
	}

	response.OK(c, gin.H{"list": days})
}

// ImportICS 从 ICS 文件导入日程
// POST /api/v1/routines/import
//
// 支持两种方式：
//   - 文件上传: multipart/form-data, field="file"
//   - 原始内容: Content-Type: text/calendar
func (h *RoutineHandler) ImportICS(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var (
		data []byte
		err  error
	)
	switch {
	case isMultipart(c):
		file, _, ferr := c.Request.FormFile("file")
		if ferr != nil {
			response.BadRequest(c, 13008, "请上传 ICS 文件")
			return
		}
		defer file.Close()
		data, err = storage.ReadAll(file, h.icsMaxBytes)
	case strings.HasPrefix(c.ContentType(), "text/calendar"):
		data, err = storage.ReadAll(c.Request.Body, h.icsMaxBytes)
	default:
		response.BadRequest(c, 13008, "请上传 ICS 文件")
		return
	}
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			response.Error(c, http.StatusRequestEntityTooLarge, 13007, "日历文件过大")
			return
		}
		response.BadRequest(c, 13008, "读取 ICS 文件失败")
		return
	}

	result, err := h.routineSvc.ImportICS(c.Request.Context(), userID, data)
	if err != nil {
		handleRoutineError(c, err)
		return
	}

	response.Created(c, result)
}

// ExportICS 导出我的日程为每周重复的日历
// GET /api/v1/routines/export
func (h *RoutineHandler) ExportICS(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	data, err := h.routineSvc.ExportICS(c.Request.Context(), userID)
	if err != nil {
		handleRoutineError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="routines.ics"`)
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", data)
}

func handleRoutineError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrRoutineNotFound):
		response.NotFound(c, 13001, "日程不存在")
	case errors.Is(err, service.ErrRoutineTimeRange):
		response.BadRequest(c, 13002, "开始时间必须早于结束时间")
	case errors.Is(err, service.ErrRoutineOverlap):
		response.Conflict(c, 13003, "时间段与已有日程冲突")
	case errors.Is(err, service.ErrRoutineNotVisible):
		response.Forbidden(c, 13004, "只能查看好友的日程")
	case errors.Is(err, service.ErrICSInvalid):
		response.BadRequest(c, 13005, "无法解析日历文件")
	case errors.Is(err, service.ErrICSEmpty):
		response.BadRequest(c, 13006, "日历中没有可导入的事件")
	default:
		handleCommonError(c, err)
	}
}
