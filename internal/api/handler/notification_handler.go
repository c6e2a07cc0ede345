package handler

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	"campusconnect/backend/internal/dto"
	"campusconnect/backend/internal/service"
	"campusconnect/backend/pkg/response"
)

// NotificationHandler 通知模块 HTTP 处理器
type NotificationHandler struct {
	notifySvc service.NotificationService
}

// NewNotificationHandler 创建 NotificationHandler
func NewNotificationHandler(notifySvc service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifySvc: notifySvc}
}

// List 通知列表（最新在前）
// GET /api/v1/notifications?page=&limit=&unread_only=
func (h *NotificationHandler) List(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.NotificationListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindFailed(c, err)
		return
	}

	list, total, err := h.notifySvc.List(c.Request.Context(), userID, &req)
	if err != nil {
		handleNotificationError(c, err)
		return
	}

	response.OKPage(c, list, total, req.GetPage(), req.GetLimit())
}

// UnreadCount 未读数
// GET /api/v1/notifications/unread-count
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	count, err := h.notifySvc.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		handleNotificationError(c, err)
		return
	}

	response.OK(c, count)
}

// MarkRead 标记已读
// PATCH /api/v1/notifications/:id/read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	h.mark(c, h.notifySvc.MarkRead)
}

// MarkUnread 标记未读
// PATCH /api/v1/notifications/:id/unread
func (h *NotificationHandler) MarkUnread(c *gin.Context) {
	h.mark(c, h.notifySvc.MarkUnread)
}

// MarkAllRead 全部已读
// PATCH /api/v1/notifications/read-all
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.notifySvc.MarkAllRead(c.Request.Context(), userID)
	if err != nil {
		handleNotificationError(c, err)
		return
	}

	response.OK(c, result)
}

// MarkAllUnread 全部未读
// PATCH /api/v1/notifications/unread-all
func (h *NotificationHandler) MarkAllUnread(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.notifySvc.MarkAllUnread(c.Request.Context(), userID)
	if err != nil {
		handleNotificationError(c, err)
		return
	}

	response.OK(c, result)
}

func (h *NotificationHandler) mark(c *gin.Context, fn func(ctx context.Context, me, id string) error) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	id, ok := MustParamID(c, "id")
	if !ok {
		return
	}

	if err := fn(c.Request.Context(), userID, id); err != nil {
		handleNotificationError(c, err)
		return
	}

	response.OK(c, nil)
}

func handleNotificationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotificationNotFound):
		response.NotFound(c, 17001, "通知不存在")
	default:
		handleCommonError(c, err)
	}
}
