package repository

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"campusconnect/backend/internal/model"
	pkgerrors "campusconnect/backend/pkg/errors"
)

// RoutineRepository 日程数据访问接口
// 写入前在事务内按 (user, day) 加咨询锁并做冲突查询
type RoutineRepository interface {
	ListByUser(ctx context.Context, userID, day string) ([]model.Routine, error)
	GetByIDAndOwner(ctx context.Context, id, ownerID string) (*model.Routine, error)
	HasOverlap(ctx context.Context, userID, day, start, end, excludeID string) (bool, error)
	// Create 冲突时返回 pkgerrors.ErrTimeOverlap
	Create(ctx context.Context, routine *model.Routine) error
	// Update 冲突时返回 pkgerrors.ErrTimeOverlap；不属于 owner 时返回 gorm.ErrRecordNotFound
	Update(ctx context.Context, routine *model.Routine) error
	Delete(ctx context.Context, id, ownerID string) (int64, error)
	// CreateBatch 同一事务中逐条写入，跳过冲突项并返回其下标
	CreateBatch(ctx context.Context, routines []model.Routine) (skipped []int, err error)
}

type routineRepo struct {
	db *gorm.DB
}

// NewRoutineRepo 创建 RoutineRepository 实例
func NewRoutineRepo(db *gorm.DB) RoutineRepository {
	return &routineRepo{db: db}
}

var dayOrderExpr = func() string {
	var b strings.Builder
	b.WriteString("CASE day")
	for i, d := range model.Weekdays {
		fmt.Fprintf(&b, " WHEN '%s' THEN %d", d, i+1)
	}
	b.WriteString(" END")
	return b.String()
}()

func (r *routineRepo) ListByUser(ctx context.Context, userID, day string) ([]model.Routine, error) {
	var routines []model.Routine
	db := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if day != "" {
		db = db.Where("day = ?", day)
	}
	err := db.Order(dayOrderExpr + ", start_time ASC").Find(&routines).Error
	return routines, err
}

func (r *routineRepo) GetByIDAndOwner(ctx context.Context, id, ownerID string) (*model.Routine, error) {
	var routine model.Routine
	err := r.db.WithContext(ctx).
		Where("routine_id = ? AND user_id = ?", id, ownerID).
		First(&routine).Error
	if err != nil {
		return nil, err
	}
	return &routine, nil
}

func (r *routineRepo) HasOverlap(ctx context.Context, userID, day, start, end, excludeID string) (bool, error) {
	return hasOverlap(r.db.WithContext(ctx), userID, day, start, end, excludeID)
}

// hasOverlap 半开区间 [start, end) 相交：existing.start < new.end AND new.start < existing.end
func hasOverlap(db *gorm.DB, userID, day, start, end, excludeID string) (bool, error) {
	q := db.Model(&model.Routine{}).
		Where("user_id = ? AND day = ?", userID, day).
		Where("start_time < ?::time AND ?::time < end_time", end, start)
	if excludeID != "" {
		q = q.Where("routine_id <> ?", excludeID)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func lockOwnerDay(tx *gorm.DB, userID, day string) error {
	return tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", "routine:"+userID+":"+day).Error
}

func (r *routineRepo) Create(ctx context.Context, routine *model.Routine) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return createChecked(tx, routine)
	})
}

func createChecked(tx *gorm.DB, routine *model.Routine) error {
	if err := lockOwnerDay(tx, routine.UserID, routine.Day); err != nil {
		return err
	}
	overlap, err := hasOverlap(tx, routine.UserID, routine.Day, routine.StartTime, routine.EndTime, "")
	if err != nil {
		return err
	}
	if overlap {
		return pkgerrors.ErrTimeOverlap
	}
	return tx.Create(routine).Error
}

func (r *routineRepo) Update(ctx context.Context, routine *model.Routine) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockOwnerDay(tx, routine.UserID, routine.Day); err != nil {
			return err
		}
		overlap, err := hasOverlap(tx, routine.UserID, routine.Day, routine.StartTime, routine.EndTime, routine.RoutineID)
		if err != nil {
			return err
		}
		if overlap {
			return pkgerrors.ErrTimeOverlap
		}

		result := tx.Model(&model.Routine{}).
			Where("routine_id = ? AND user_id = ?", routine.RoutineID, routine.UserID).
			Updates(map[string]interface{}{
				"day":        routine.Day,
				"start_time": routine.StartTime,
				"end_time":   routine.EndTime,
				"activity":   routine.Activity,
				"location":   routine.Location,
				"type":       routine.Type,
				"updated_at": gorm.Expr("NOW()"),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *routineRepo) Delete(ctx context.Context, id, ownerID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("routine_id = ? AND user_id = ?", id, ownerID).
		Delete(&model.Routine{})
	return result.RowsAffected, result.Error
}

func (r *routineRepo) CreateBatch(ctx context.Context, routines []model.Routine) ([]int, error) {
	var skipped []int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		skipped = skipped[:0]
		for i := range routines {
			err := createChecked(tx, &routines[i])
			if err == pkgerrors.ErrTimeOverlap {
				skipped = append(skipped, i)
				continue
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
	return skipped, err
}
