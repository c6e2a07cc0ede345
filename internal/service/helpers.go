package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"campusconnect/backend/internal/dto"
	"campusconnect/backend/internal/model"
	"campusconnect/backend/pkg/pubsub"
)

// formatTime 统一输出 UTC RFC3339
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func toUserBrief(u *model.User) *dto.UserBrief {
	if u == nil {
		return nil
	}
	return &dto.UserBrief{
		ID:           u.UserID,
		Name:         u.Name,
		Email:        u.Email,
		ProfileImage: u.ProfileImage,
	}
}

// briefOrID 关联未加载时至少返回 ID
func briefOrID(u *model.User, id string) dto.UserBrief {
	if b := toUserBrief(u); b != nil {
		return *b
	}
	return dto.UserBrief{ID: id}
}

func toUserResponse(u *model.User) *dto.UserResponse {
	resp := &dto.UserResponse{
		ID:           u.UserID,
		Name:         u.Name,
		Email:        u.Email,
		Role:         u.Role,
		ProfileImage: u.ProfileImage,
		GoogleLinked: u.GoogleID != nil,
		CreatedAt:    formatTime(u.CreatedAt),
	}
	if u.StudentProfile != nil && u.StudentProfile.Department != nil {
		resp.Department = toDepartmentResponse(u.StudentProfile.Department)
	}
	return resp
}

func toDepartmentResponse(d *model.Department) *dto.DepartmentResponse {
	return &dto.DepartmentResponse{ID: d.DepartmentID, Code: d.Code, Name: d.Name}
}

// publishEvent 推送实时事件；推送失败只记录日志，不影响已提交的业务操作
func publishEvent(ctx context.Context, pub pubsub.Publisher, logger *zap.Logger, channel, eventType string, data interface{}) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, channel, eventType, data); err != nil {
		logger.Warn("推送实时事件失败",
			zap.String("channel", channel),
			zap.String("type", eventType),
			zap.Error(err),
		)
	}
}
