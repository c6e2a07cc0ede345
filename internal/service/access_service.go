package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"campusconnect/backend/internal/repository"
)

var (
	ErrUserNotFound = errors.New("用户不存在")
	ErrForbidden    = errors.New("无权执行此操作")
)

// AccessService 权限校验
// 角色每次都从数据库读取，不信任 Token 中的角色声明
type AccessService interface {
	// Require 校验用户当前角色属于 roles 之一（roles 为空时仅校验用户存在），返回当前角色
	Require(ctx context.Context, userID string, roles ...string) (string, error)
}

type accessService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewAccessService 创建 AccessService 实例
func NewAccessService(repo *repository.Repository, logger *zap.Logger) AccessService {
	return &accessService{repo: repo, logger: logger}
}

func (s *accessService) Require(ctx context.Context, userID string, roles ...string) (string, error) {
	role, err := s.repo.User.GetRole(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrUserNotFound
		}
		s.logger.Error("查询用户角色失败", zap.String("user_id", userID), zap.Error(err))
		return "", err
	}
	if len(roles) == 0 {
		return role, nil
	}
	for _, r := range roles {
		if r == role {
			return role, nil
		}
	}
	return role, ErrForbidden
}
