package handler

import (
	"github.com/gin-gonic/gin"

	"campusconnect/backend/internal/dto"
	"campusconnect/backend/internal/service"
	"campusconnect/backend/pkg/response"
)

// FeedbackHandler 反馈与缺陷提交（登录可选）
type FeedbackHandler struct {
	feedbackSvc service.FeedbackService
}

// NewFeedbackHandler 创建 FeedbackHandler
func NewFeedbackHandler(feedbackSvc service.FeedbackService) *FeedbackHandler {
	return &FeedbackHandler{feedbackSvc: feedbackSvc}
}

// SubmitFeedback 提交反馈
// POST /api/v1/feedback
func (h *FeedbackHandler) SubmitFeedback(c *gin.Context) {
	var req dto.CreateFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	reporterID, _ := GetUserID(c)
	fb, err := h.feedbackSvc.SubmitFeedback(c.Request.Context(), reporterID, &req)
	if err != nil {
		handleAdminError(c, err)
		return
	}

	response.Created(c, fb)
}

// SubmitBug 提交缺陷
// POST /api/v1/bugs
func (h *FeedbackHandler) SubmitBug(c *gin.Context) {
	var req dto.CreateBugReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	reporterID, _ := GetUserID(c)
	bug, err := h.feedbackSvc.SubmitBug(c.Request.Context(), reporterID, &req)
	if err != nil {
		handleAdminError(c, err)
		return
	}

	response.Created(c, bug)
}
