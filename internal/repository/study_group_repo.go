package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"campusconnect/backend/internal/model"
)

// StudyGroupRepository 学习小组数据访问接口
type StudyGroupRepository interface {
	// CreateWithCreator 事务：创建小组并写入 creator 角色成员
	CreateWithCreator(ctx context.Context, group *model.StudyGroup) error
	GetByID(ctx context.Context, id string) (*model.StudyGroup, error)
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, q string, offset, limit int) ([]model.StudyGroup, int64, error)
	ListByMember(ctx context.Context, userID string) ([]model.StudyGroup, error)

	GetMember(ctx context.Context, groupID, userID string) (*model.GroupMember, error)
	// AddMember 已是成员时返回 false
	AddMember(ctx context.Context, groupID, userID string) (bool, error)
	RemoveMember(ctx context.Context, groupID, userID string) (int64, error)
	ListMembers(ctx context.Context, groupID string) ([]model.GroupMember, error)
	CountByRole(ctx context.Context, groupID, role string) (int64, error)
	CountMembers(ctx context.Context, groupIDs []string) (map[string]int64, error)
	MemberOf(ctx context.Context, userID string, groupIDs []string) (map[string]bool, error)
	// TransferOwnership 事务：to 升为 creator，from 降为 member，并更新 creator_id
	TransferOwnership(ctx context.Context, groupID, fromUserID, toUserID string) error
}

type studyGroupRepo struct {
	db *gorm.DB
}

// NewStudyGroupRepo 创建 StudyGroupRepository 实例
func NewStudyGroupRepo(db *gorm.DB) StudyGroupRepository {
	return &studyGroupRepo{db: db}
}

func (r *studyGroupRepo) CreateWithCreator(ctx context.Context, group *model.StudyGroup) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Creator").Create(group).Error; err != nil {
			return err
		}
		member := &model.GroupMember{
			GroupID:  group.GroupID,
			UserID:   group.CreatorID,
			Role:     model.GroupRoleCreator,
			JoinedAt: time.Now().UTC(),
		}
		return tx.Omit("User").Create(member).Error
	})
}

func (r *studyGroupRepo) GetByID(ctx context.Context, id string) (*model.StudyGroup, error) {
	var group model.StudyGroup
	err := r.db.WithContext(ctx).
		Preload("Creator").
		Where("group_id = ?", id).
		First(&group).Error
	if err != nil {
		return nil, err
	}
	return &group, nil
}

func (r *studyGroupRepo) Delete(ctx context.Context, id string) error {
	// group_members 通过外键级联删除
	return r.db.WithContext(ctx).Where("group_id = ?", id).Delete(&model.StudyGroup{}).Error
}

func (r *studyGroupRepo) Search(ctx context.Context, q string, offset, limit int) ([]model.StudyGroup, int64, error) {
	var groups []model.StudyGroup
	var total int64

	db := r.db.WithContext(ctx).Model(&model.StudyGroup{})
	if q != "" {
		like := "%" + escapeLike(q) + "%"
		db = db.Where("(name ILIKE ? OR description ILIKE ?)", like, like)
	}
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := db.Preload("Creator").
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&groups).Error
	return groups, total, err
}

func (r *studyGroupRepo) ListByMember(ctx context.Context, userID string) ([]model.StudyGroup, error) {
	var groups []model.StudyGroup
	err := r.db.WithContext(ctx).
		Preload("Creator").
		Joins("JOIN group_members gm ON gm.group_id = study_groups.group_id").
		Where("gm.user_id = ?", userID).
		Order("gm.joined_at DESC").
		Find(&groups).Error
	return groups, err
}

func (r *studyGroupRepo) GetMember(ctx context.Context, groupID, userID string) (*model.GroupMember, error) {
	var m model.GroupMember
	err := r.db.WithContext(ctx).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *studyGroupRepo) AddMember(ctx context.Context, groupID, userID string) (bool, error) {
	m := &model.GroupMember{
		GroupID:  groupID,
		UserID:   userID,
		Role:     model.GroupRoleMember,
		JoinedAt: time.Now().UTC(),
	}
	result := r.db.WithContext(ctx).Omit("User").Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "group_id"}, {Name: "user_id"}},
		DoNothing: true,
	}).Create(m)
	return result.RowsAffected > 0, result.Error
}

func (r *studyGroupRepo) RemoveMember(ctx context.Context, groupID, userID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Delete(&model.GroupMember{})
	return result.RowsAffected, result.Error
}

func (r *studyGroupRepo) ListMembers(ctx context.Context, groupID string) ([]model.GroupMember, error) {
	var members []model.GroupMember
	err := r.db.WithContext(ctx).
		Preload("User.StudentProfile.Department").
		Where("group_id = ?", groupID).
		Order("CASE role WHEN 'creator' THEN 0 ELSE 1 END, joined_at ASC").
		Find(&members).Error
	return members, err
}

func (r *studyGroupRepo) CountByRole(ctx context.Context, groupID, role string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.GroupMember{}).
		Where("group_id = ? AND role = ?", groupID, role).
		Count(&count).Error
	return count, err
}

func (r *studyGroupRepo) CountMembers(ctx context.Context, groupIDs []string) (map[string]int64, error) {
	out := make(map[string]int64, len(groupIDs))
	if len(groupIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		GroupID string
		Count   int64
	}
	err := r.db.WithContext(ctx).
		Model(&model.GroupMember{}).
		Select("group_id, COUNT(*) AS count").
		Where("group_id IN ?", groupIDs).
		Group("group_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.GroupID] = row.Count
	}
	return out, nil
}

func (r *studyGroupRepo) MemberOf(ctx context.Context, userID string, groupIDs []string) (map[string]bool, error) {
	out := make(map[string]bool, len(groupIDs))
	if len(groupIDs) == 0 {
		return out, nil
	}
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&model.GroupMember{}).
		Where("user_id = ? AND group_id IN ?", userID, groupIDs).
		Pluck("group_id", &ids).Error
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

func (r *studyGroupRepo) TransferOwnership(ctx context.Context, groupID, fromUserID, toUserID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 锁定小组行，串行化并发转让
		var group model.StudyGroup
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("group_id = ?", groupID).First(&group).Error; err != nil {
			return err
		}

		result := tx.Model(&model.GroupMember{}).
			Where("group_id = ? AND user_id = ? AND role = ?", groupID, fromUserID, model.GroupRoleCreator).
			Update("role", model.GroupRoleMember)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		result = tx.Model(&model.GroupMember{}).
			Where("group_id = ? AND user_id = ?", groupID, toUserID).
			Update("role", model.GroupRoleCreator)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		return tx.Model(&model.StudyGroup{}).
			Where("group_id = ?", groupID).
			Updates(map[string]interface{}{"creator_id": toUserID, "updated_at": gorm.Expr("NOW()")}).Error
	})
}
