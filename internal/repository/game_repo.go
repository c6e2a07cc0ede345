package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"campusconnect/backend/internal/model"
	pkgerrors "campusconnect/backend/pkg/errors"
)

// GameRepository 游戏房间数据访问接口
type GameRepository interface {
	// Create 事务：创建房间与房主座位
	Create(ctx context.Context, room *model.GameRoom, creator *model.GameRoomPlayer) error
	GetByCode(ctx context.Context, code string) (*model.GameRoom, error)
	// AddPlayer 事务：入座；满员时以乐观锁将房间切换为 playing
	AddPlayer(ctx context.Context, room *model.GameRoom, player *model.GameRoomPlayer, full bool) error
	// SaveState 事务：乐观锁更新房间；results 非空时同时累加战绩
	SaveState(ctx context.Context, room *model.GameRoom, results []model.GameResult) error
	ListByPlayer(ctx context.Context, userID string, limit int) ([]model.GameRoom, error)
	ListStats(ctx context.Context, userID string) ([]model.GameStatistic, error)
	Leaderboard(ctx context.Context, gameType string, limit int) ([]model.GameStatistic, error)
	DeleteStaleWaiting(ctx context.Context, before time.Time) (int64, error)
	AbandonIdlePlaying(ctx context.Context, before time.Time) (int64, error)
}

type gameRepo struct {
	db *gorm.DB
}

// NewGameRepo 创建 GameRepository 实例
func NewGameRepo(db *gorm.DB) GameRepository {
	return &gameRepo{db: db}
}

func (r *gameRepo) Create(ctx context.Context, room *model.GameRoom, creator *model.GameRoomPlayer) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Players").Create(room).Error; err != nil {
			return err
		}
		creator.RoomID = room.RoomID
		if err := tx.Omit("User").Create(creator).Error; err != nil {
			return err
		}
		room.Players = []model.GameRoomPlayer{*creator}
		return nil
	})
}

func (r *gameRepo) GetByCode(ctx context.Context, code string) (*model.GameRoom, error) {
	var room model.GameRoom
	err := r.db.WithContext(ctx).
		Preload("Players", func(db *gorm.DB) *gorm.DB { return db.Order("seat ASC") }).
		Preload("Players.User").
		Where("code = ?", code).
		First(&room).Error
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// updateRoom 以 version 作为乐观锁条件更新房间
func updateRoom(tx *gorm.DB, room *model.GameRoom) error {
	oldVersion := room.Version
	result := tx.Model(&model.GameRoom{}).
		Where("room_id = ? AND version = ?", room.RoomID, oldVersion).
		Updates(map[string]interface{}{
			"status":     room.Status,
			"state":      room.State,
			"winner_id":  room.WinnerID,
			"version":    oldVersion + 1,
			"updated_at": gorm.Expr("NOW()"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	room.Version = oldVersion + 1
	return nil
}

func (r *gameRepo) AddPlayer(ctx context.Context, room *model.GameRoom, player *model.GameRoomPlayer, full bool) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		player.RoomID = room.RoomID
		if err := tx.Omit("User").Create(player).Error; err != nil {
			return err
		}
		if full {
			room.Status = model.GameStatusPlaying
		}
		return updateRoom(tx, room)
	})
}

func (r *gameRepo) SaveState(ctx context.Context, room *model.GameRoom, results []model.GameResult) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := updateRoom(tx, room); err != nil {
			return err
		}
		for _, res := range results {
			if err := upsertStat(tx, res.UserID, room.GameType, res.Result); err != nil {
				return err
			}
		}
		return nil
	})
}

// upsertStat 不存在则创建，存在则累加对应计数
func upsertStat(tx *gorm.DB, userID, gameType, result string) error {
	stat := &model.GameStatistic{
		UserID:     userID,
		GameType:   gameType,
		TotalGames: 1,
	}
	col := ""
	switch result {
	case "win":
		stat.Wins, col = 1, "wins"
	case "loss":
		stat.Losses, col = 1, "losses"
	default:
		stat.Draws, col = 1, "draws"
	}

	return tx.Omit("User").Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "game_type"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			col:           gorm.Expr("game_statistics." + col + " + 1"),
			"total_games": gorm.Expr("game_statistics.total_games + 1"),
			"updated_at":  gorm.Expr("NOW()"),
		}),
	}).Create(stat).Error
}

func (r *gameRepo) ListByPlayer(ctx context.Context, userID string, limit int) ([]model.GameRoom, error) {
	var rooms []model.GameRoom
	err := r.db.WithContext(ctx).
		Preload("Players", func(db *gorm.DB) *gorm.DB { return db.Order("seat ASC") }).
		Preload("Players.User").
		Joins("JOIN game_room_players gp ON gp.room_id = game_rooms.room_id").
		Where("gp.user_id = ?", userID).
		Order("game_rooms.updated_at DESC").
		Limit(limit).
		Find(&rooms).Error
	return rooms, err
}

func (r *gameRepo) ListStats(ctx context.Context, userID string) ([]model.GameStatistic, error) {
	var stats []model.GameStatistic
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("game_type ASC").
		Find(&stats).Error
	return stats, err
}

func (r *gameRepo) Leaderboard(ctx context.Context, gameType string, limit int) ([]model.GameStatistic, error) {
	var stats []model.GameStatistic
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("game_type = ?", gameType).
		Order("wins DESC, draws DESC, total_games ASC").
		Limit(limit).
		Find(&stats).Error
	return stats, err
}

func (r *gameRepo) DeleteStaleWaiting(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", model.GameStatusWaiting, before).
		Delete(&model.GameRoom{})
	return result.RowsAffected, result.Error
}

func (r *gameRepo) AbandonIdlePlaying(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.GameRoom{}).
		Where("status = ? AND updated_at < ?", model.GameStatusPlaying, before).
		Updates(map[string]interface{}{
			"status":     model.GameStatusFinished,
			"winner_id":  nil,
			"version":    gorm.Expr("version + 1"),
			"updated_at": gorm.Expr("NOW()"),
		})
	return result.RowsAffected, result.Error
}
