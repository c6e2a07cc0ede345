package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"campusconnect/backend/config"
)

const (
	defaultSweepSpec    = "0 */10 * * * *"
	defaultStaleRoomTTL = 24 * time.Hour
	defaultSweepTimeout = 30 * time.Second
)

// RoomSweeper 游戏房间清理（由 repository.GameRepository 实现）
type RoomSweeper interface {
	DeleteStaleWaiting(ctx context.Context, before time.Time) (int64, error)
	AbandonIdlePlaying(ctx context.Context, before time.Time) (int64, error)
}

// Manager 定时任务管理器
type Manager struct {
	cron    *cron.Cron
	rooms   RoomSweeper
	logger  *zap.Logger
	spec    string
	ttl     time.Duration
	timeout time.Duration
	now     func() time.Time
}

// NewManager 创建定时任务管理器，cron 表达式带秒字段
func NewManager(cfg *config.JobsConfig, rooms RoomSweeper, logger *zap.Logger) *Manager {
	m := &Manager{
		cron:    cron.New(cron.WithSeconds()),
		rooms:   rooms,
		logger:  logger.Named("jobs"),
		spec:    defaultSweepSpec,
		ttl:     defaultStaleRoomTTL,
		timeout: defaultSweepTimeout,
		now:     time.Now,
	}
	if cfg != nil {
		if cfg.SweepSpec != "" {
			m.spec = cfg.SweepSpec
		}
		if cfg.StaleRoomTTL > 0 {
			m.ttl = cfg.StaleRoomTTL
		}
		if cfg.SweepTimeout > 0 {
			m.timeout = cfg.SweepTimeout
		}
	}
	return m
}

// Start 注册并启动所有任务
func (m *Manager) Start() error {
	if _, err := m.cron.AddFunc(m.spec, m.runSweep); err != nil {
		return err
	}
	m.cron.Start()
	m.logger.Info("定时任务已启动", zap.String("sweep_spec", m.spec), zap.Duration("stale_room_ttl", m.ttl))
	return nil
}

// Stop 停止调度并等待正在执行的任务结束
func (m *Manager) Stop() {
	<-m.cron.Stop().Done()
	m.logger.Info("定时任务已停止")
}

func (m *Manager) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()
	m.SweepGameRooms(ctx)
}

// SweepGameRooms 删除长时间无人加入的等待房间，并将长时间无操作的对局结束为无胜者
// 被放弃的对局不计入战绩
func (m *Manager) SweepGameRooms(ctx context.Context) (deleted, abandoned int64) {
	before := m.now().Add(-m.ttl)

	deleted, err := m.rooms.DeleteStaleWaiting(ctx, before)
	if err != nil {
		m.logger.Error("清理等待中的房间失败", zap.Error(err))
	}

	abandoned, err = m.rooms.AbandonIdlePlaying(ctx, before)
	if err != nil {
		m.logger.Error("结束闲置对局失败", zap.Error(err))
	}

	if deleted > 0 || abandoned > 0 {
		m.logger.Info("游戏房间清理完成",
			zap.Int64("deleted_waiting", deleted),
			zap.Int64("abandoned_playing", abandoned),
		)
	}
	return deleted, abandoned
}
