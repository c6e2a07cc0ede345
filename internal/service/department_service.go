package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"campusconnect/backend/internal/dto"
	"campusconnect/backend/internal/model"
	"campusconnect/backend/internal/repository"
	pkgerrors "campusconnect/backend/pkg/errors"
)

// ── 院系模块业务错误 ──

var (
	ErrDepartmentNotFound   = errors.New("院系不存在")
	ErrDepartmentInactive   = errors.New("院系已停用")
	ErrDepartmentCodeExists = errors.New("院系代码已存在")
)

// DepartmentService 院系业务接口
type DepartmentService interface {
	List(ctx context.Context, req *dto.DepartmentListRequest) ([]dto.DepartmentDetailResponse, error)
	Create(ctx context.Context, req *dto.CreateDepartmentRequest) (*dto.DepartmentDetailResponse, error)
	Update(ctx context.Context, id string, req *dto.UpdateDepartmentRequest) (*dto.DepartmentDetailResponse, error)
}

type departmentService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewDepartmentService 创建 DepartmentService 实例
func NewDepartmentService(repo *repository.Repository, logger *zap.Logger) DepartmentService {
	return &departmentService{repo: repo, logger: logger}
}

// ────────────────────── List ──────────────────────

func (s *departmentService) List(ctx context.Context, req *dto.DepartmentListRequest) ([]dto.DepartmentDetailResponse, error) {
	depts, err := s.repo.Department.List(ctx, req.IncludeInactive)
	if err != nil {
		s.logger.Error("查询院系列表失败", zap.Error(err))
		return nil, err
	}

	result := make([]dto.DepartmentDetailResponse, 0, len(depts))
	for i := range depts {
		result = append(result, *toDepartmentDetailResponse(&depts[i]))
	}
	return result, nil
}

// ────────────────────── Create ──────────────────────

func (s *departmentService) Create(ctx context.Context, req *dto.CreateDepartmentRequest) (*dto.DepartmentDetailResponse, error) {
	code := strings.ToUpper(strings.TrimSpace(req.Code))

	// 检查代码唯一性
	if _, err := s.repo.Department.GetByCode(ctx, code); err == nil {
		return nil, ErrDepartmentCodeExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询院系失败", zap.Error(err))
		return nil, err
	}

	dept := &model.Department{
		Code:     code,
		Name:     strings.TrimSpace(req.Name),
		IsActive: true,
	}
	if err := s.repo.Department.Create(ctx, dept); err != nil {
		if pkgerrors.IsUniqueViolation(err, "uk_departments_code") {
			return nil, ErrDepartmentCodeExists
		}
		s.logger.Error("创建院系失败", zap.Error(err))
		return nil, err
	}

	s.logger.Info("院系已创建", zap.String("code", dept.Code))
	return toDepartmentDetailResponse(dept), nil
}

// ────────────────────── Update ──────────────────────

func (s *departmentService) Update(ctx context.Context, id string, req *dto.UpdateDepartmentRequest) (*dto.DepartmentDetailResponse, error) {
	dept, err := s.repo.Department.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDepartmentNotFound
		}
		s.logger.Error("查询院系失败", zap.Error(err))
		return nil, err
	}

	if req.Name != nil {
		dept.Name = strings.TrimSpace(*req.Name)
	}
	if req.IsActive != nil {
		dept.IsActive = *req.IsActive
	}

	if err := s.repo.Department.Update(ctx, dept); err != nil {
		s.logger.Error("更新院系失败", zap.Error(err))
		return nil, err
	}
	return toDepartmentDetailResponse(dept), nil
}

func toDepartmentDetailResponse(d *model.Department) *dto.DepartmentDetailResponse {
	return &dto.DepartmentDetailResponse{
		ID:        d.DepartmentID,
		Code:      d.Code,
		Name:      d.Name,
		IsActive:  d.IsActive,
		CreatedAt: formatTime(d.CreatedAt),
		UpdatedAt: formatTime(d.UpdatedAt),
	}
}
