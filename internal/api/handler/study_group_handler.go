package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"campusconnect/backend/internal/dto"
	"campusconnect/backend/internal/service"
	"campusconnect/backend/pkg/response"
)

// StudyGroupHandler 学习小组 HTTP 处理器
type StudyGroupHandler struct {
	groupSvc service.StudyGroupService
}

// NewStudyGroupHandler 创建 StudyGroupHandler
func NewStudyGroupHandler(groupSvc service.StudyGroupService) *StudyGroupHandler {
	return &StudyGroupHandler{groupSvc: groupSvc}
}

// Search 搜索小组（分页）
// GET /api/v1/study-groups?q=&page=&page_size=
func (h *StudyGroupHandler) Search(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.StudyGroupSearchRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindFailed(c, err)
		return
	}

	list, total, err := h.groupSvc.Search(c.Request.Context(), userID, &req)
	if err != nil {
		handleStudyGroupError(c, err)
		return
	}

	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// ListMine 我加入的小组
// GET /api/v1/study-groups/mine
func (h *StudyGroupHandler) ListMine(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	list, err := h.groupSvc.ListMine(c.Request.Context(), userID)
	if err != nil {
		handleStudyGroupError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// Get 小组详情
// GET /api/v1/study-groups/:id
func (h *StudyGroupHandler) Get(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	groupID, ok := MustParamID(c, "id")
	if !ok {
		return
	}

	group, err := h.groupSvc.Get(c.Request.Context(), userID, groupID)
	if err != nil {
		handleStudyGroupError(c, err)
		return
	}

	response.OK(c, group)
}

// ListMembers 小组成员
// GET /api/v1/study-groups/:id/members
func (h *StudyGroupHandler) ListMembers(c *gin.Context) {
	groupID, ok := MustParamID(c, "id")
	if !ok {
		return
	}

	list, err := h.groupSvc.ListMembers(c.Request.Context(), groupID)
	if err != nil {
		handleStudyGroupError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// Create 创建小组
// POST /api/v1/study-groups
func (h *StudyGroupHandler) Create(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.CreateStudyGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	group, err := h.groupSvc.Create(c.Request.Context(), userID, &req)
	if err != nil {
		handleStudyGroupError(c, err)
		return
	}

	response.Created(c, group)
}

// Join 加入小组（重复加入视为成功）
// POST /api/v1/study-groups/:id/join
func (h *StudyGroupHandler) Join(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	groupID, ok := MustParamID(c, "id")
	if !ok {
		return
	}

	result, err := h.groupSvc.Join(c.Request.Context(), userID, groupID)
	if err != nil {
		handleStudyGroupError(c, err)
		return
	}

	response.OK(c, result)
}

// Leave 退出小组
// POST /api/v1/study-groups/:id/leave
func (h *StudyGroupHandler) Leave(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	groupID, ok := MustParamID(c, "id")
	if !ok {
		return
	}

	if err := h.groupSvc.Leave(c.Request.Context(), userID, groupID); err != nil {
		handleStudyGroupError(c, err)
		return
	}

	response.OK(c, nil)
}

// Transfer 转让小组
// POST /api/v1/study-groups/:id/transfer
func (h *StudyGroupHandler) Transfer(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	groupID, ok := MustParamID(c, "id")
	if !ok {
		return
	}

	var req dto.TransferOwnershipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	if err := h.groupSvc.TransferOwnership(c.Request.Context(), userID, groupID, &req); err != nil {
		handleStudyGroupError(c, err)
		return
	}

	response.OK(c, nil)
}

// Delete 解散小组
// DELETE /api/v1/study-groups/:id
func (h *StudyGroupHandler) Delete(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	groupID, ok := MustParamID(c, "id")
	if !ok {
		return
	}

	if err := h.groupSvc.Delete(c.Request.Context(), userID, groupID); err != nil {
		handleStudyGroupError(c, err)
		return
	}

	response.OK(c, nil)
}

func handleStudyGroupError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrGroupNotFound):
		response.NotFound(c, 14001, "学习小组不存在")
	case errors.Is(err, service.ErrNotGroupMember):
		response.Forbidden(c, 14002, "你不是该小组成员")
	case errors.Is(err, service.ErrNotGroupCreator):
		response.Forbidden(c, 14003, "只有小组创建者可以执行此操作")
	case errors.Is(err, service.ErrSoleCreatorCannotLeave):
		response.Conflict(c, 14004, "你是唯一的创建者，请先转让小组再退出")
	case errors.Is(err, service.ErrTransferTargetInvalid):
		response.BadRequest(c, 14005, "只能转让给小组中的其他成员")
	default:
		handleCommonError(c, err)
	}
}
