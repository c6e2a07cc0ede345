package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"campusconnect/backend/internal/model"
)

// UserFilter 用户列表筛选条件
type UserFilter struct {
	Role string
	Q    string
}

// UserRepository 用户数据访问接口
type UserRepository interface {
	// CreateWithProfile 在同一事务中创建用户与学生档案（profile 为 nil 时仅创建用户）
	CreateWithProfile(ctx context.Context, user *model.User, profile *model.StudentProfile) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByGoogleID(ctx context.Context, googleID string) (*model.User, error)
	GetRole(ctx context.Context, id string) (string, error)
	// UpdateProfile 在同一事务中更新用户基本信息与学生档案
	UpdateProfile(ctx context.Context, user *model.User, profile *model.StudentProfile) error
	LinkGoogle(ctx context.Context, userID, googleID string) error
	// UpdateRole 修改角色；profile 非空时写入学生档案，否则删除已有档案
	UpdateRole(ctx context.Context, userID, role string, profile *model.StudentProfile) error
	List(ctx context.Context, filter UserFilter, offset, limit int) ([]model.User, int64, error)
	SearchStudents(ctx context.Context, excludeID, q string, limit int) ([]model.User, error)
	GetByIDs(ctx context.Context, ids []string) ([]model.User, error)
	CountByRole(ctx context.Context) (map[string]int64, error)
}

// userRepo UserRepository 的 GORM 实现
type userRepo struct {
	db *gorm.DB
}

// NewUserRepo 创建 UserRepository 实例
func NewUserRepo(db *gorm.DB) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) CreateWithProfile(ctx context.Context, user *model.User, profile *model.StudentProfile) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("StudentProfile").Create(user).Error; err != nil {
			return err
		}
		if profile == nil {
			return nil
		}
		profile.UserID = user.UserID
		if err := tx.Omit("Department").Create(profile).Error; err != nil {
			return err
		}
		user.StudentProfile = profile
		return nil
	})
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Preload("StudentProfile.Department").
		Where("user_id = ?", id).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Preload("StudentProfile.Department").
		Where("email = ?", strings.ToLower(email)).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) GetByGoogleID(ctx context.Context, googleID string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Preload("StudentProfile.Department").
		Where("google_id = ?", googleID).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) GetRole(ctx context.Context, id string) (string, error) {
	var role string
	err := r.db.WithContext(ctx).
		Model(&model.User{}).
		Select("role").
		Where("user_id = ?", id).
		Take(&role).Error
	return role, err
}

func (r *userRepo) UpdateProfile(ctx context.Context, user *model.User, profile *model.StudentProfile) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&model.User{}).
			Where("user_id = ?", user.UserID).
			Updates(map[string]interface{}{
				"name":          user.Name,
				"profile_image": user.ProfileImage,
				"updated_at":    gorm.Expr("NOW()"),
			}).Error
		if err != nil {
			return err
		}
		if profile == nil {
			return nil
		}
		profile.UserID = user.UserID
		return tx.Omit("Department").Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"department_id": profile.DepartmentID, "updated_at": gorm.Expr("NOW()")}),
		}).Create(profile).Error
	})
}

func (r *userRepo) LinkGoogle(ctx context.Context, userID, googleID string) error {
	return r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"google_id":  googleID,
			"updated_at": gorm.Expr("NOW()"),
		}).Error
}

func (r *userRepo) UpdateRole(ctx context.Context, userID, role string, profile *model.StudentProfile) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.User{}).
			Where("user_id = ?", userID).
			Updates(map[string]interface{}{"role": role, "updated_at": gorm.Expr("NOW()")})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		if profile == nil {
			return tx.Where("user_id = ?", userID).Delete(&model.StudentProfile{}).Error
		}
		profile.UserID = userID
		return tx.Omit("Department").Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"department_id": profile.DepartmentID}),
		}).Create(profile).Error
	})
}

func (r *userRepo) List(ctx context.Context, filter UserFilter, offset, limit int) ([]model.User, int64, error) {
	var users []model.User
	var total int64

	db := r.db.WithContext(ctx).Model(&model.User{})
	if filter.Role != "" {
		db = db.Where("role = ?", filter.Role)
	}
	if filter.Q != "" {
		like := "%" + escapeLike(filter.Q) + "%"
		db = db.Where("(name ILIKE ? OR email ILIKE ?)", like, like)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Preload("StudentProfile.Department").
		Offset(offset).Limit(limit).
		Order("created_at DESC").
		Find(&users).Error; err != nil {
		return nil, 0, err
	}

	return users, total, nil
}

func (r *userRepo) SearchStudents(ctx context.Context, excludeID, q string, limit int) ([]model.User, error) {
	var users []model.User
	like := "%" + escapeLike(q) + "%"
	err := r.db.WithContext(ctx).
		Preload("StudentProfile.Department").
		Where("role = ? AND user_id <> ?", model.RoleStudent, excludeID).
		Where("(name ILIKE ? OR email ILIKE ?)", like, like).
		Order("name ASC").
		Limit(limit).
		Find(&users).Error
	return users, err
}

func (r *userRepo) GetByIDs(ctx context.Context, ids []string) ([]model.User, error) {
	var users []model.User
	if len(ids) == 0 {
		return users, nil
	}
	err := r.db.WithContext(ctx).Where("user_id IN ?", ids).Find(&users).Error
	return users, err
}

func (r *userRepo) CountByRole(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Role  string
		Count int64
	}
	err := r.db.WithContext(ctx).
		Model(&model.User{}).
		Select("role, COUNT(*) AS count").
		Group("role").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Role] = row.Count
	}
	return out, nil
}

// escapeLike 转义 LIKE 通配符
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
