package repository

import (
	"context"

	"gorm.io/gorm"

	"campusconnect/backend/internal/model"
)

// DepartmentRepository 院系数据访问接口
type DepartmentRepository interface {
	List(ctx context.Context, includeInactive bool) ([]model.Department, error)
	GetByID(ctx context.Context, id string) (*model.Department, error)
	GetByCode(ctx context.Context, code string) (*model.Department, error)
	Create(ctx context.Context, dept *model.Department) error
	Update(ctx context.Context, dept *model.Department) error
}

type departmentRepo struct {
	db *gorm.DB
}

// NewDepartmentRepo 创建 DepartmentRepository 实例
func NewDepartmentRepo(db *gorm.DB) DepartmentRepository {
	return &departmentRepo{db: db}
}

func (r *departmentRepo) List(ctx context.Context, includeInactive bool) ([]model.Department, error) {
	var depts []model.Department
	db := r.db.WithContext(ctx)
	if !includeInactive {
		db = db.Where("is_active = ?", true)
	}
	err := db.Order("code ASC").Find(&depts).Error
	return depts, err
}

func (r *departmentRepo) GetByID(ctx context.Context, id string) (*model.Department, error) {
	var dept model.Department
	if err := r.db.WithContext(ctx).Where("department_id = ?", id).First(&dept).Error; err != nil {
		return nil, err
	}
	return &dept, nil
}

func (r *departmentRepo) GetByCode(ctx context.Context, code string) (*model.Department, error) {
	var dept model.Department
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&dept).Error; err != nil {
		return nil, err
	}
	return &dept, nil
}

func (r *departmentRepo) Create(ctx context.Context, dept *model.Department) error {
	return r.db.WithContext(ctx).Create(dept).Error
}

func (r *departmentRepo) Update(ctx context.Context, dept *model.Department) error {
	return r.db.WithContext(ctx).
		Model(&model.Department{}).
		Where("department_id = ?", dept.DepartmentID).
		Updates(map[string]interface{}{
			"name":       dept.Name,
			"is_active":  dept.IsActive,
			"updated_at": gorm.Expr("NOW()"),
		}).Error
}
