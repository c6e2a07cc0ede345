package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"campusconnect/backend/internal/dto"
	"campusconnect/backend/internal/model"
	"campusconnect/backend/internal/repository"
)

// FeedbackService 反馈与缺陷提交（允许匿名）
type FeedbackService interface {
	// SubmitFeedback reporterID 为空表示匿名
	SubmitFeedback(ctx context.Context, reporterID string, req *dto.CreateFeedbackRequest) (*dto.FeedbackResponse, error)
	SubmitBug(ctx context.Context, reporterID string, req *dto.CreateBugReportRequest) (*dto.BugReportResponse, error)
}

type feedbackService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewFeedbackService 创建 FeedbackService 实例
func NewFeedbackService(repo *repository.Repository, logger *zap.Logger) FeedbackService {
	return &feedbackService{repo: repo, logger: logger}
}

func (s *feedbackService) SubmitFeedback(ctx context.Context, reporterID string, req *dto.CreateFeedbackRequest) (*dto.FeedbackResponse, error) {
	category := req.Category
	if category == "" {
		category = "general"
	}
	item := &model.FeedbackItem{
		ReporterID: optionalID(reporterID),
		Category:   category,
		Subject:    strings.TrimSpace(req.Subject),
		Message:    strings.TrimSpace(req.Message),
		Rating:     req.Rating,
		Status:     model.FeedbackStatusNew,
	}
	if err := s.repo.Feedback.CreateFeedback(ctx, item); err != nil {
		s.logger.Error("提交反馈失败", zap.Error(err))
		return nil, err
	}
	return toFeedbackResponse(item), nil
}

func (s *feedbackService) SubmitBug(ctx context.Context, reporterID string, req *dto.CreateBugReportRequest) (*dto.BugReportResponse, error) {
	bug := &model.BugReport{
		ReporterID:  optionalID(reporterID),
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		Steps:       trimPtr(req.Steps),
		Severity:    defaultString(req.Severity, "medium"),
		Priority:    defaultString(req.Priority, "medium"),
		Status:      model.BugStatusOpen,
	}
	if err := s.repo.Feedback.CreateBug(ctx, bug); err != nil {
		s.logger.Error("提交缺陷报告失败", zap.Error(err))
		return nil, err
	}
	s.logger.Info("收到缺陷报告", zap.String("bug_id", bug.BugID), zap.String("severity", bug.Severity))
	return toBugReportResponse(bug), nil
}

func optionalID(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}

func defaultString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func toFeedbackResponse(f *model.FeedbackItem) *dto.FeedbackResponse {
	return &dto.FeedbackResponse{
		ID:         f.FeedbackID,
		Reporter:   toUserBrief(f.Reporter),
		Category:   f.Category,
		Subject:    f.Subject,
		Message:    f.Message,
		Rating:     f.Rating,
		Status:     f.Status,
		AdminNotes: f.AdminNotes,
		CreatedAt:  formatTime(f.CreatedAt),
		UpdatedAt:  formatTime(f.UpdatedAt),
	}
}

func toBugReportResponse(b *model.BugReport) *dto.BugReportResponse {
	return &dto.BugReportResponse{
		ID:          b.BugID,
		Reporter:    toUserBrief(b.Reporter),
		Title:       b.Title,
		Description: b.Description,
		Steps:       b.Steps,
		Severity:    b.Severity,
		Priority:    b.Priority,
		Status:      b.Status,
		AdminNotes:  b.AdminNotes,
		CreatedAt:   formatTime(b.CreatedAt),
		UpdatedAt:   formatTime(b.UpdatedAt),
	}
}
