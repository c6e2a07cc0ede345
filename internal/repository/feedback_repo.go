package repository

import (
	"context"

	"gorm.io/gorm"

	"campusconnect/backend/internal/model"
)

// FeedbackFilter 反馈列表筛选
type FeedbackFilter struct {
	Status   string
	Category string
	Q        string
}

// BugFilter 缺陷列表筛选
type BugFilter struct {
	Status   string
	Severity string
	Priority string
	Q        string
}

// FeedbackRepository 反馈与缺陷数据访问接口
type FeedbackRepository interface {
	CreateFeedback(ctx context.Context, item *model.FeedbackItem) error
	CreateBug(ctx context.Context, bug *model.BugReport) error
	GetFeedback(ctx context.Context, id string) (*model.FeedbackItem, error)
	GetBug(ctx context.Context, id string) (*model.BugReport, error)
	ListFeedback(ctx context.Context, filter FeedbackFilter, offset, limit int) ([]model.FeedbackItem, int64, error)
	ListBugs(ctx context.Context, filter BugFilter, offset, limit int) ([]model.BugReport, int64, error)
	// UpdateFeedbackStatus 仅当当前状态仍为 from 时更新
	UpdateFeedbackStatus(ctx context.Context, id, from, to string, notes *string) (int64, error)
	UpdateBugStatus(ctx context.Context, id, from, to string, notes *string) (int64, error)
	CountFeedbackByStatus(ctx context.Context) (map[string]int64, error)
	CountBugsByStatus(ctx context.Context) (map[string]int64, error)
}

type feedbackRepo struct {
	db *gorm.DB
}

// NewFeedbackRepo 创建 FeedbackRepository 实例
func NewFeedbackRepo(db *gorm.DB) FeedbackRepository {
	return &feedbackRepo{db: db}
}

func (r *feedbackRepo) CreateFeedback(ctx context.Context, item *model.FeedbackItem) error {
	return r.db.WithContext(ctx).Omit("Reporter").Create(item).Error
}

func (r *feedbackRepo) CreateBug(ctx context.Context, bug *model.BugReport) error {
	return r.db.WithContext(ctx).Omit("Reporter").Create(bug).Error
}

func (r *feedbackRepo) GetFeedback(ctx context.Context, id string) (*model.FeedbackItem, error) {
	var item model.FeedbackItem
	if err := r.db.WithContext(ctx).Preload("Reporter").Where("feedback_id = ?", id).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *feedbackRepo) GetBug(ctx context.Context, id string) (*model.BugReport, error) {
	var bug model.BugReport
	if err := r.db.WithContext(ctx).Preload("Reporter").Where("bug_id = ?", id).First(&bug).Error; err != nil {
		return nil, err
	}
	return &bug, nil
}

func (r *feedbackRepo) ListFeedback(ctx context.Context, filter FeedbackFilter, offset, limit int) ([]model.FeedbackItem, int64, error) {
	var items []model.FeedbackItem
	var total int64

	db := r.db.WithContext(ctx).Model(&model.FeedbackItem{})
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}
	if filter.Category != "" {
		db = db.Where("category = ?", filter.Category)
	}
	if filter.Q != "" {
		like := "%" + escapeLike(filter.Q) + "%"
		db = db.Where("(subject ILIKE ? OR message ILIKE ?)", like, like)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := db.Preload("Reporter").
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&items).Error
	return items, total, err
}

func (r *feedbackRepo) ListBugs(ctx context.Context, filter BugFilter, offset, limit int) ([]model.BugReport, int64, error) {
	var bugs []model.BugReport
	var total int64

	db := r.db.WithContext(ctx).Model(&model.BugReport{})
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}
	if filter.Severity != "" {
		db = db.Where("severity = ?", filter.Severity)
	}
	if filter.Priority != "" {
		db = db.Where("priority = ?", filter.Priority)
	}
	if filter.Q != "" {
		like := "%" + escapeLike(filter.Q) + "%"
		db = db.Where("(title ILIKE ? OR description ILIKE ?)", like, like)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := db.Preload("Reporter").
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&bugs).Error
	return bugs, total, err
}

func statusUpdates(to string, notes *string) map[string]interface{} {
	updates := map[string]interface{}{
		"status":     to,
		"updated_at": gorm.Expr("NOW()"),
	}
	if notes != nil {
		updates["admin_notes"] = *notes
	}
	return updates
}

func (r *feedbackRepo) UpdateFeedbackStatus(ctx context.Context, id, from, to string, notes *string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.FeedbackItem{}).
		Where("feedback_id = ? AND status = ?", id, from).
		Updates(statusUpdates(to, notes))
	return result.RowsAffected, result.Error
}

func (r *feedbackRepo) UpdateBugStatus(ctx context.Context, id, from, to string, notes *string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.BugReport{}).
		Where("bug_id = ? AND status = ?", id, from).
		Updates(statusUpdates(to, notes))
	return result.RowsAffected, result.Error
}

func countByStatus(db *gorm.DB, m interface{}) (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	if err := db.Model(m).Select("status, COUNT(*) AS count").Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}

func (r *feedbackRepo) CountFeedbackByStatus(ctx context.Context) (map[string]int64, error) {
	return countByStatus(r.db.WithContext(ctx), &model.FeedbackItem{})
}

func (r *feedbackRepo) CountBugsByStatus(ctx context.Context) (map[string]int64, error) {
	return countByStatus(r.db.WithContext(ctx), &model.BugReport{})
}
