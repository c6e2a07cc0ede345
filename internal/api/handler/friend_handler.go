package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"campusconnect/backend/internal/dto"
	"campusconnect/backend/internal/service"
	"campusconnect/backend/pkg/response"
)

// FriendHandler 好友模块 HTTP 处理器
type FriendHandler struct {
	friendSvc service.FriendService
}

// NewFriendHandler 创建 FriendHandler
func NewFriendHandler(friendSvc service.FriendService) *FriendHandler {
	return &FriendHandler{friendSvc: friendSvc}
}

// SendRequest 发送好友请求
// POST /api/v1/friends/request
func (h *FriendHandler) SendRequest(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.SendFriendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	if err := h.friendSvc.SendRequest(c.Request.Context(), userID, &req); err != nil {
		handleFriendError(c, err)
		return
	}

	response.Created(c, nil)
}

// Respond 接受 / 拒绝收到的请求，或撤回发出的请求
// PUT /api/v1/friends/respond
func (h *FriendHandler) Respond(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.RespondFriendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	if err := h.friendSvc.Respond(c.Request.Context(), userID, &req); err != nil {
		handleFriendError(c, err)
		return
	}

	response.OK(c, nil)
}

// ListFriends 好友列表
// GET /api/v1/friends
func (h *FriendHandler) ListFriends(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	list, err := h.friendSvc.ListAccepted(c.Request.Context(), userID)
	if err != nil {
		handleFriendError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// ListPending 待处理的好友请求
// GET /api/v1/friends/pending
func (h *FriendHandler) ListPending(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	pending, err := h.friendSvc.ListPending(c.Request.Context(), userID)
	if err != nil {
		handleFriendError(c, err)
		return
	}

	response.OK(c, pending)
}

// Search 搜索学生
// GET /api/v1/friends/search?q=
func (h *FriendHandler) Search(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.FriendSearchRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindFailed(c, err)
		return
	}

	list, err := h.friendSvc.Search(c.Request.Context(), userID, req.Q)
	if err != nil {
		handleFriendError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// Remove 删除好友
// DELETE /api/v1/friends/:id
func (h *FriendHandler) Remove(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	otherID, ok := MustParamID(c, "id")
	if !ok {
		return
	}

	if err := h.friendSvc.Remove(c.Request.Context(), userID, otherID); err != nil {
		handleFriendError(c, err)
		return
	}

	response.OK(c, nil)
}

func handleFriendError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrFriendSelf):
		response.BadRequest(c, 12001, "不能添加自己为好友")
	case errors.Is(err, service.ErrFriendNotStudent):
		response.BadRequest(c, 12002, "仅学生之间可以成为好友")
	case errors.Is(err, service.ErrFriendRequestReversePending):
		response.Conflict(c, 12003, "对方已向你发送好友请求，请直接处理")
	case errors.Is(err, service.ErrAlreadyFriends):
		response.Conflict(c, 12004, "你们已经是好友")
	case errors.Is(err, service.ErrFriendRespondTarget):
		response.BadRequest(c, 12005, "requester_id 与 recipient_id 必须且只能提供一个")
	case errors.Is(err, service.ErrCannotAcceptOwnRequest):
		response.BadRequest(c, 12006, "不能接受自己发出的好友请求")
	case errors.Is(err, service.ErrFriendRequestNotFound):
		response.NotFound(c, 12007, "好友请求不存在")
	case errors.Is(err, service.ErrFriendshipNotFound):
		response.NotFound(c, 12008, "好友关系不存在")
	default:
		handleCommonError(c, err)
	}
}
