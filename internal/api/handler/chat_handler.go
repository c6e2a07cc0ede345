package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"campusconnect/backend/internal/dto"
	"campusconnect/backend/internal/service"
	"campusconnect/backend/pkg/response"
)

// ChatHandler 聊天模块 HTTP 处理器
type ChatHandler struct {
	chatSvc service.ChatService
}

// NewChatHandler 创建 ChatHandler
func NewChatHandler(chatSvc service.ChatService) *ChatHandler {
	return &ChatHandler{chatSvc: chatSvc}
}

// ListRooms 我的聊天室（含最后一条消息与未读数）
// GET /api/v1/chat/rooms
func (h *ChatHandler) ListRooms(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	rooms, err := h.chatSvc.ListRooms(c.Request.Context(), userID)
	if err != nil {
		handleChatError(c, err)
		return
	}

	response.OK(c, gin.H{"list": rooms})
}

// DirectRoom 获取或创建与好友的私聊
// POST /api/v1/chat/rooms/direct
func (h *ChatHandler) DirectRoom(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.DirectRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	room, err := h.chatSvc.GetOrCreateDirectRoom(c.Request.Context(), userID, &req)
	if err != nil {
		handleChatError(c, err)
		return
	}

	response.OK(c, room)
}

// CreateGroupRoom 创建群聊
// POST /api/v1/chat/rooms
func (h *ChatHandler) CreateGroupRoom(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.CreateGroupRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	room, err := h.chatSvc.CreateGroupRoom(c.Request.Context(), userID, &req)
	if err != nil {
		handleChatError(c, err)
		return
	}

	response.Created(c, room)
}

// ListMessages 消息列表（时间正序），同时标记已读
// GET /api/v1/chat/rooms/:id/messages?page=&limit=
func (h *ChatHandler) ListMessages(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	roomID, ok := MustParamID(c, "id")
	if !ok {
		return
	}

	var req dto.MessageListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindFailed(c, err)
		return
	}

	list, total, err := h.chatSvc.GetMessages(c.Request.Context(), userID, roomID, &req)
	if err != nil {
		handleChatError(c, err)
		return
	}

	response.OKPage(c, list, total, req.GetPage(), req.GetLimit())
}

// SendMessage 发送消息
// POST /api/v1/chat/rooms/:id/messages
func (h *ChatHandler) SendMessage(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	roomID, ok := MustParamID(c, "id")
	if !ok {
		return
	}

	var req dto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	msg, err := h.chatSvc.SendMessage(c.Request.Context(), userID, roomID, &req)
	if err != nil {
		handleChatError(c, err)
		return
	}

	response.Created(c, msg)
}

// DeleteMessage 撤回自己的消息
// DELETE /api/v1/chat/messages/:id
func (h *ChatHandler) DeleteMessage(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	msgID, ok := MustParamID(c, "id")
	if !ok {
		return
	}

	if err := h.chatSvc.DeleteMessage(c.Request.Context(), userID, msgID); err != nil {
		handleChatError(c, err)
		return
	}

	response.OK(c, nil)
}

func handleChatError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrChatSelf):
		response.BadRequest(c, 16001, "不能和自己聊天")
	case errors.Is(err, service.ErrChatNotFriends):
		response.Forbidden(c, 16002, "只能与好友聊天")
	case errors.Is(err, service.ErrChatRoomNotFound):
		response.NotFound(c, 16003, "聊天室不存在")
	case errors.Is(err, service.ErrNotChatParticipant):
		response.Forbidden(c, 16004, "你不是该聊天室成员")
	case errors.Is(err, service.ErrReplyNotInRoom):
		response.BadRequest(c, 16005, "回复的消息不在当前聊天室")
	case errors.Is(err, service.ErrMessageNotFound):
		response.NotFound(c, 16006, "消息不存在")
	case errors.Is(err, service.ErrNotMessageSender):
		response.Forbidden(c, 16007, "只能删除自己发送的消息")
	default:
		handleCommonError(c, err)
	}
}
