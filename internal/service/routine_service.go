package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"campusconnect/backend/config"
	"campusconnect/backend/internal/dto"
	"campusconnect/backend/internal/model"
	"campusconnect/backend/internal/repository"
	pkgerrors "campusconnect/backend/pkg/errors"
	"campusconnect/backend/pkg/validate"
)

// ── 日程模块业务错误 ──

var (
	ErrRoutineNotFound   = errors.New("日程不存在")
	ErrRoutineTimeRange  = errors.New("开始时间必须早于结束时间")
	ErrRoutineOverlap    = errors.New("时间段与已有日程冲突")
	ErrRoutineNotVisible = errors.New("只能查看好友的日程")
	ErrICSInvalid        = errors.New("无法解析日历文件")
	ErrICSEmpty          = errors.New("日历中没有可导入的事件")
)

// RoutineService 日程业务接口
type RoutineService interface {
	ListMine(ctx context.Context, me, day string) ([]dto.RoutineResponse, error)
	// ListForUser 查看他人日程；开启 friends_only_routines 时仅本人或好友可见
	ListForUser(ctx context.Context, me, ownerID string) ([]dto.RoutineResponse, error)
	Create(ctx context.Context, me string, req *dto.CreateRoutineRequest) (*dto.RoutineResponse, error)
	Update(ctx context.Context, me, id string, req *dto.UpdateRoutineRequest) (*dto.RoutineResponse, error)
	Delete(ctx context.Context, me, id string) error
	FreeTime(ctx context.Context, me string, req *dto.FreeTimeRequest) (*dto.FreeTimeResponse, error)
	FreeTimeWeek(ctx context.Context, me string, req *dto.FreeTimeWeekRequest) ([]dto.FreeTimeResponse, error)
	ImportICS(ctx context.Context, me string, data []byte) (*dto.ImportRoutinesResponse, error)
	ExportICS(ctx context.Context, me string) ([]byte, error)
}

type routineService struct {
	cfg    *config.RoutineConfig
	flags  *config.FeatureConfig
	repo   *repository.Repository
	loc    *time.Location
	logger *zap.Logger
}

// NewRoutineService 创建 RoutineService 实例
func NewRoutineService(cfg *config.Config, repo *repository.Repository, logger *zap.Logger) RoutineService {
	loc, err := time.LoadLocation(cfg.Routine.Timezone)
	if err != nil {
		loc = time.UTC
	}
	return &routineService{
		cfg:    &cfg.Routine,
		flags:  &cfg.Feature,
		repo:   repo,
		loc:    loc,
		logger: logger,
	}
}

// ────────────────────── 查询 ──────────────────────

func (s *routineService) ListMine(ctx context.Context, me, day string) ([]dto.RoutineResponse, error) {
	routines, err := s.repo.Routine.ListByUser(ctx, me, model.NormalizeWeekday(day))
	if err != nil {
		s.logger.Error("查询日程失败", zap.Error(err))
		return nil, err
	}
	return toRoutineResponses(routines), nil
}

func (s *routineService) ListForUser(ctx context.Context, me, ownerID string) ([]dto.RoutineResponse, error) {
	if err := s.ensureVisible(ctx, me, ownerID); err != nil {
		return nil, err
	}
	routines, err := s.repo.Routine.ListByUser(ctx, ownerID, "")
	if err != nil {
		s.logger.Error("查询日程失败", zap.Error(err))
		return nil, err
	}
	return toRoutineResponses(routines), nil
}

// ensureVisible 本人或好友可见；开关关闭时对所有登录用户可见
func (s *routineService) ensureVisible(ctx context.Context, me, ownerID string) error {
	if me == ownerID || !s.flags.FriendsOnlyRoutines {
		return nil
	}
	ok, err := s.repo.Friend.AreFriends(ctx, me, ownerID)
	if err != nil {
		s.logger.Error("查询好友关系失败", zap.Error(err))
		return err
	}
	if !ok {
		return ErrRoutineNotVisible
	}
	return nil
}

// ────────────────────── Create ──────────────────────

func (s *routineService) Create(ctx context.Context, me string, req *dto.CreateRoutineRequest) (*dto.RoutineResponse, error) {
	if err := checkRange(req.StartTime, req.EndTime); err != nil {
		return nil, err
	}

	routineType := req.Type
	if routineType == "" {
		routineType = model.RoutineTypeClass
	}
	routine := &model.Routine{
		UserID:    me,
		Day:       model.NormalizeWeekday(req.Day),
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Activity:  strings.TrimSpace(req.Activity),
		Location:  trimPtr(req.Location),
		Type:      routineType,
	}

	if err := s.repo.Routine.Create(ctx, routine); err != nil {
		if errors.Is(err, pkgerrors.ErrTimeOverlap) {
			return nil, ErrRoutineOverlap
		}
		s.logger.Error("创建日程失败", zap.Error(err))
		return nil, err
	}
	return toRoutineResponse(routine), nil
}

// ────────────────────── Update ──────────────────────

func (s *routineService) Update(ctx context.Context, me, id string, req *dto.UpdateRoutineRequest) (*dto.RoutineResponse, error) {
	routine, err := s.repo.Routine.GetByIDAndOwner(ctx, id, me)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoutineNotFound
		}
		s.logger.Error("查询日程失败", zap.Error(err))
		return nil, err
	}

	if req.Day != nil {
		routine.Day = model.NormalizeWeekday(*req.Day)
	}
	if req.StartTime != nil {
		routine.StartTime = *req.StartTime
	}
	if req.EndTime != nil {
		routine.EndTime = *req.EndTime
	}
	if req.Activity != nil {
		routine.Activity = strings.TrimSpace(*req.Activity)
	}
	if req.Location != nil {
		routine.Location = trimPtr(req.Location)
	}
	if req.Type != nil {
		routine.Type = *req.Type
	}
	routine.StartTime = validate.NormalizeClock(routine.StartTime)
	routine.EndTime = validate.NormalizeClock(routine.EndTime)

	if err := checkRange(routine.StartTime, routine.EndTime); err != nil {
		return nil, err
	}

	if err := s.repo.Routine.Update(ctx, routine); err != nil {
		switch {
		case errors.Is(err, pkgerrors.ErrTimeOverlap):
			return nil, ErrRoutineOverlap
		case errors.Is(err, gorm.ErrRecordNotFound):
			return nil, ErrRoutineNotFound
		}
		s.logger.Error("更新日程失败", zap.Error(err))
		return nil, err
	}
	return toRoutineResponse(routine), nil
}

// ────────────────────── Delete ──────────────────────

func (s *routineService) Delete(ctx context.Context, me, id string) error {
	rows, err := s.repo.Routine.Delete(ctx, id, me)
	if err != nil {
		s.logger.Error("删除日程失败", zap.Error(err))
		return err
	}
	// 不属于本人的日程同样报告不存在
	if rows == 0 {
		return ErrRoutineNotFound
	}
	return nil
}

// ────────────────────── 共同空闲时间 ──────────────────────

func (s *routineService) FreeTime(ctx context.Context, me string, req *dto.FreeTimeRequest) (*dto.FreeTimeResponse, error) {
	week, err := s.freeTime(ctx, me, req.FriendID, req.Day, req.MinMinutes)
	if err != nil {
		return nil, err
	}
	return &week[0], nil
}

func (s *routineService) FreeTimeWeek(ctx context.Context, me string, req *dto.FreeTimeWeekRequest) ([]dto.FreeTimeResponse, error) {
	return s.freeTime(ctx, me, req.FriendID, "", req.MinMinutes)
}

// freeTime day 为空时计算整周
func (s *routineService) freeTime(ctx context.Context, me, friendID, day string, minMinutes int) ([]dto.FreeTimeResponse, error) {
	if err := s.ensureVisible(ctx, me, friendID); err != nil {
		return nil, err
	}
	if minMinutes <= 0 {
		minMinutes = s.cfg.MinFreeMinutes
	}
	day = model.NormalizeWeekday(day)
	window, err := s.window()
	if err != nil {
		return nil, err
	}

	mine, err := s.repo.Routine.ListByUser(ctx, me, day)
	if err != nil {
		s.logger.Error("查询日程失败", zap.Error(err))
		return nil, err
	}
	theirs, err := s.repo.Routine.ListByUser(ctx, friendID, day)
	if err != nil {
		s.logger.Error("查询日程失败", zap.Error(err))
		return nil, err
	}
	myBusy, err := busyByDay(mine)
	if err != nil {
		return nil, err
	}
	theirBusy, err := busyByDay(theirs)
	if err != nil {
		return nil, err
	}

	days := model.Weekdays
	if day != "" {
		days = []string{day}
	}
	result := make([]dto.FreeTimeResponse, 0, len(days))
	for _, d := range days {
		slots := mutualFree(myBusy[d], theirBusy[d], window, minMinutes)
		resp := dto.FreeTimeResponse{Day: d, Slots: make([]dto.TimeSlot, 0, len(slots))}
		for _, sl := range slots {
			resp.Slots = append(resp.Slots, dto.TimeSlot{
				Start: validate.FormatClock(sl.Start),
				End:   validate.FormatClock(sl.End),
			})
		}
		result = append(result, resp)
	}
	return result, nil
}

func (s *routineService) window() (span, error) {
	start, err := validate.ParseClock(s.cfg.WindowStart)
	if err != nil {
		return span{}, err
	}
	end, err := validate.ParseClock(s.cfg.WindowEnd)
	if err != nil {
		return span{}, err
	}
	return span{Start: start, End: end}, nil
}

func busyByDay(routines []model.Routine) (map[string][]span, error) {
	out := make(map[string][]span)
	for _, r := range routines {
		start, err := validate.ParseClock(r.StartTime)
		if err != nil {
			return nil, err
		}
		end, err := validate.ParseClock(r.EndTime)
		if err != nil {
			return nil, err
		}
		out[r.Day] = append(out[r.Day], span{Start: start, End: end})
	}
	return out, nil
}

// ────────────────────── ICS 导入导出 ──────────────────────

func (s *routineService) ImportICS(ctx context.Context, me string, data []byte) (*dto.ImportRoutinesResponse, error) {
	routines, skipped, err := parseRoutineICS(bytes.NewReader(data), me, s.loc)
	if err != nil {
		s.logger.Info("ICS 解析失败", zap.Error(err))
		return nil, ErrICSInvalid
	}
	if len(routines) == 0 && len(skipped) == 0 {
		return nil, ErrICSEmpty
	}

	resp := &dto.ImportRoutinesResponse{Total: len(routines) + len(skipped), Skipped: skipped}
	if len(routines) == 0 {
		return resp, nil
	}

	conflicts, err := s.repo.Routine.CreateBatch(ctx, routines)
	if err != nil {
		s.logger.Error("批量导入日程失败", zap.Error(err))
		return nil, err
	}
	for _, i := range conflicts {
		r := routines[i]
		resp.Skipped = append(resp.Skipped, dto.ImportSkipEntry{
			Summary: r.Activity,
			Day:     r.Day,
			Start:   r.StartTime,
			End:     r.EndTime,
			Reason:  ErrRoutineOverlap.Error(),
		})
	}
	resp.Imported = len(routines) - len(conflicts)

	s.logger.Info("ICS 导入完成",
		zap.String("user_id", me),
		zap.Int("imported", resp.Imported),
		zap.Int("skipped", len(resp.Skipped)),
	)
	return resp, nil
}

func (s *routineService) ExportICS(ctx context.Context, me string) ([]byte, error) {
	routines, err := s.repo.Routine.ListByUser(ctx, me, "")
	if err != nil {
		s.logger.Error("查询日程失败", zap.Error(err))
		return nil, err
	}
	content, err := buildRoutineICS(routines, "CampusConnect", time.Now(), s.loc)
	if err != nil {
		s.logger.Error("生成 ICS 失败", zap.Error(err))
		return nil, err
	}
	return []byte(content), nil
}

// ── 辅助函数 ──

func checkRange(start, end string) error {
	st, err := validate.ParseClock(start)
	if err != nil {
		return ErrRoutineTimeRange
	}
	en, err := validate.ParseClock(end)
	if err != nil {
		return ErrRoutineTimeRange
	}
	if st >= en {
		return ErrRoutineTimeRange
	}
	return nil
}

func clockMinutes(s string) (int, error) {
	return validate.ParseClock(s)
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func toRoutineResponse(r *model.Routine) *dto.RoutineResponse {
	return &dto.RoutineResponse{
		ID:        r.RoutineID,
		UserID:    r.UserID,
		Day:       r.Day,
		StartTime: validate.NormalizeClock(r.StartTime),
		EndTime:   validate.NormalizeClock(r.EndTime),
		Activity:  r.Activity,
		Location:  r.Location,
		Type:      r.Type,
	}
}

func toRoutineResponses(routines []model.Routine) []dto.RoutineResponse {
	result := make([]dto.RoutineResponse, 0, len(routines))
	for i := range routines {
		result = append(result, *toRoutineResponse(&routines[i]))
	}
	return result
}
