package service

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"strings"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"campusconnect/backend/internal/dto"
	"campusconnect/backend/internal/game"
	"campusconnect/backend/internal/model"
	"campusconnect/backend/internal/repository"
	pkgerrors "campusconnect/backend/pkg/errors"
	"campusconnect/backend/pkg/pubsub"
)

// ── 小游戏业务错误 ──

var (
	ErrGameRoomNotFound  = errors.New("游戏房间不存在")
	ErrGameRoomFull      = errors.New("房间已满")
	ErrGameRoomFinished  = errors.New("对局已结束")
	ErrGameNotStarted    = errors.New("对局尚未开始")
	ErrNotGamePlayer     = errors.New("你不是该房间的玩家")
	ErrGameConflict      = errors.New("房间状态已变化，请刷新后重试")
	ErrRoomCodeExhausted = errors.New("生成房间号失败，请重试")
)

// 实时事件类型
const (
	EventGamePlayerJoined = "game.player_joined"
	EventGameState        = "game.state"
	EventGameReset        = "game.reset"
)

const (
	roomCodeLength   = 6
	roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	roomCodeRetries  = 5
	myRoomsLimit     = 50
	leaderboardLimit = 10
)

// GameService 小游戏业务接口
type GameService interface {
	Create(ctx context.Context, me string, req *dto.CreateGameRoomRequest) (*dto.GameRoomResponse, error)
	Join(ctx context.Context, me, code string) (*dto.GameRoomResponse, error)
	Move(ctx context.Context, me, code string, req *dto.GameMoveRequest) (*dto.GameRoomResponse, error)
	Reset(ctx context.Context, me, code string) (*dto.GameRoomResponse, error)
	Get(ctx context.Context, me, code string) (*dto.GameRoomResponse, error)
	ListMine(ctx context.Context, me string) ([]dto.GameRoomResponse, error)
	Stats(ctx context.Context, userID string) ([]dto.GameStatResponse, error)
	Leaderboard(ctx context.Context, gameType string) ([]dto.GameStatResponse, error)
}

type gameService struct {
	repo      *repository.Repository
	publisher pubsub.Publisher
	logger    *zap.Logger
}

// NewGameService 创建 GameService 实例
func NewGameService(repo *repository.Repository, publisher pubsub.Publisher, logger *zap.Logger) GameService {
	return &gameService{repo: repo, publisher: publisher, logger: logger}
}

// ────────────────────── Create ──────────────────────

func (s *gameService) Create(ctx context.Context, me string, req *dto.CreateGameRoomRequest) (*dto.GameRoomResponse, error) {
	state, err := game.New(req.GameType)
	if err != nil {
		return nil, err
	}
	raw, err := state.Marshal()
	if err != nil {
		return nil, err
	}
	symbol, err := game.SymbolForSeat(req.GameType, 1)
	if err != nil {
		return nil, err
	}

	// 房间号冲突时重新生成
	for attempt := 0; attempt < roomCodeRetries; attempt++ {
		code, err := generateRoomCode()
		if err != nil {
			return nil, err
		}
		room := &model.GameRoom{
			Code:      code,
			GameType:  req.GameType,
			CreatorID: me,
			Status:    model.GameStatusWaiting,
			State:     datatypes.JSON(raw),
		}
		room.Version = 1
		creator := &model.GameRoomPlayer{UserID: me, Symbol: symbol, Seat: 1}

		err = s.repo.Game.Create(ctx, room, creator)
		if err == nil {
			s.logger.Info("游戏房间已创建", zap.String("code", code), zap.String("type", req.GameType))
			return s.reload(ctx, me, code)
		}
		if !pkgerrors.IsUniqueViolation(err, "uk_game_rooms_code") {
			s.logger.Error("创建游戏房间失败", zap.Error(err))
			return nil, err
		}
		s.logger.Debug("房间号冲突，重新生成", zap.String("code", code))
	}
	return nil, ErrRoomCodeExhausted
}

// ────────────────────── Join ──────────────────────

func (s *gameService) Join(ctx context.Context, me, code string) (*dto.GameRoomResponse, error) {
	room, err := s.getRoom(ctx, code)
	if err != nil {
		return nil, err
	}

	// 已在房间中：幂等返回
	if findPlayer(room, me) != nil {
		return toGameRoomResponse(room, me), nil
	}
	if room.Status == model.GameStatusFinished {
		return nil, ErrGameRoomFinished
	}
	maxPlayers := game.MaxPlayers(room.GameType)
	if len(room.Players) >= maxPlayers {
		return nil, ErrGameRoomFull
	}

	seat := len(room.Players) + 1
	symbol, err := game.SymbolForSeat(room.GameType, seat)
	if err != nil {
		return nil, ErrGameRoomFull
	}
	player := &model.GameRoomPlayer{UserID: me, Symbol: symbol, Seat: seat}

	if err := s.repo.Game.AddPlayer(ctx, room, player, seat == maxPlayers); err != nil {
		switch {
		case pkgerrors.IsUniqueViolation(err, "uk_game_room_players"):
			return s.reload(ctx, me, room.Code)
		case pkgerrors.IsUniqueViolation(err, "uk_game_room_seats"):
			// 同一座位被并发抢占
			return nil, ErrGameRoomFull
		case errors.Is(err, pkgerrors.ErrOptimisticLock):
			return nil, ErrGameConflict
		}
		s.logger.Error("加入游戏房间失败", zap.Error(err))
		return nil, err
	}

	room, err = s.getRoom(ctx, room.Code)
	if err != nil {
		return nil, err
	}
	s.broadcast(ctx, room, EventGamePlayerJoined)
	return toGameRoomResponse(room, me), nil
}

// ────────────────────── Move ──────────────────────

func (s *gameService) Move(ctx context.Context, me, code string, req *dto.GameMoveRequest) (*dto.GameRoomResponse, error) {
	room, err := s.getRoom(ctx, code)
	if err != nil {
		return nil, err
	}
	player := findPlayer(room, me)
	if player == nil {
		return nil, ErrNotGamePlayer
	}
	switch room.Status {
	case model.GameStatusWaiting:
		return nil, ErrGameNotStarted
	case model.GameStatusFinished:
		return nil, ErrGameRoomFinished
	}

	state, err := game.Unmarshal(room.State)
	if err != nil {
		s.logger.Error("房间状态损坏", zap.String("code", code), zap.Error(err))
		return nil, err
	}
	// 非法走子不修改任何状态
	if err := state.Apply(player.Symbol, game.Move{Cell: req.Cell, Choice: req.Choice}); err != nil {
		return nil, err
	}
	raw, err := state.Marshal()
	if err != nil {
		return nil, err
	}
	room.State = datatypes.JSON(raw)

	// 终局：记录胜者并在同一事务中累加全部玩家战绩
	var results []model.GameResult
	if outcome := state.Outcome(); outcome.Finished {
		room.Status = model.GameStatusFinished
		room.WinnerID = nil
		for _, p := range room.Players {
			result := "draw"
			if !outcome.Draw {
				if p.Symbol == outcome.Winner {
					result = "win"
					uid := p.UserID
					room.WinnerID = &uid
				} else {
					result = "loss"
				}
			}
			results = append(results, model.GameResult{UserID: p.UserID, Result: result})
		}
	}

	if err := s.repo.Game.SaveState(ctx, room, results); err != nil {
		if errors.Is(err, pkgerrors.ErrOptimisticLock) {
			return nil, ErrGameConflict
		}
		s.logger.Error("保存对局状态失败", zap.Error(err))
		return nil, err
	}

	s.broadcast(ctx, room, EventGameState)
	return toGameRoomResponse(room, me), nil
}

// ────────────────────── Reset ──────────────────────

func (s *gameService) Reset(ctx context.Context, me, code string) (*dto.GameRoomResponse, error) {
	room, err := s.getRoom(ctx, code)
	if err != nil {
		return nil, err
	}
	if findPlayer(room, me) == nil {
		return nil, ErrNotGamePlayer
	}

	state, err := game.New(room.GameType)
	if err != nil {
		return nil, err
	}
	raw, err := state.Marshal()
	if err != nil {
		return nil, err
	}
	room.State = datatypes.JSON(raw)
	room.WinnerID = nil
	// 玩家名单不变；人未到齐时仍为 waiting
	if len(room.Players) >= game.MaxPlayers(room.GameType) {
		room.Status = model.GameStatusPlaying
	} else {
		room.Status = model.GameStatusWaiting
	}

	if err := s.repo.Game.SaveState(ctx, room, nil); err != nil {
		if errors.Is(err, pkgerrors.ErrOptimisticLock) {
			return nil, ErrGameConflict
		}
		s.logger.Error("重置对局失败", zap.Error(err))
		return nil, err
	}

	s.broadcast(ctx, room, EventGameReset)
	return toGameRoomResponse(room, me), nil
}

// ────────────────────── 查询 ──────────────────────

func (s *gameService) Get(ctx context.Context, me, code string) (*dto.GameRoomResponse, error) {
	return s.reload(ctx, me, code)
}

func (s *gameService) ListMine(ctx context.Context, me string) ([]dto.GameRoomResponse, error) {
	rooms, err := s.repo.Game.ListByPlayer(ctx, me, myRoomsLimit)
	if err != nil {
		s.logger.Error("查询我的游戏房间失败", zap.Error(err))
		return nil, err
	}
	result := make([]dto.GameRoomResponse, 0, len(rooms))
	for i := range rooms {
		result = append(result, *toGameRoomResponse(&rooms[i], me))
	}
	return result, nil
}

func (s *gameService) Stats(ctx context.Context, userID string) ([]dto.GameStatResponse, error) {
	stats, err := s.repo.Game.ListStats(ctx, userID)
	if err != nil {
		s.logger.Error("查询战绩失败", zap.Error(err))
		return nil, err
	}
	return toGameStatResponses(stats), nil
}

func (s *gameService) Leaderboard(ctx context.Context, gameType string) ([]dto.GameStatResponse, error) {
	if !game.IsValidType(gameType) {
		return nil, game.ErrUnknownGameType
	}
	stats, err := s.repo.Game.Leaderboard(ctx, gameType, leaderboardLimit)
	if err != nil {
		s.logger.Error("查询排行榜失败", zap.Error(err))
		return nil, err
	}
	return toGameStatResponses(stats), nil
}

// ── 辅助函数 ──

func (s *gameService) getRoom(ctx context.Context, code string) (*model.GameRoom, error) {
	room, err := s.repo.Game.GetByCode(ctx, strings.ToUpper(code))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGameRoomNotFound
		}
		s.logger.Error("查询游戏房间失败", zap.Error(err))
		return nil, err
	}
	return room, nil
}

func (s *gameService) reload(ctx context.Context, me, code string) (*dto.GameRoomResponse, error) {
	room, err := s.getRoom(ctx, code)
	if err != nil {
		return nil, err
	}
	return toGameRoomResponse(room, me), nil
}

// broadcast 推送给房间订阅者；使用旁观视图，不带 my_symbol 与未结算的出拳
func (s *gameService) broadcast(ctx context.Context, room *model.GameRoom, eventType string) {
	shared := toGameRoomResponse(room, "")
	publishEvent(ctx, s.publisher, s.logger, pubsub.GameChannel(room.Code), eventType, *shared)
}

func findPlayer(room *model.GameRoom, userID string) *model.GameRoomPlayer {
	for i := range room.Players {
		if room.Players[i].UserID == userID {
			return &room.Players[i]
		}
	}
	return nil
}

func generateRoomCode() (string, error) {
	var sb strings.Builder
	alphabetLen := big.NewInt(int64(len(roomCodeAlphabet)))
	for i := 0; i < roomCodeLength; i++ {
		n, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", err
		}
		sb.WriteByte(roomCodeAlphabet[n.Int64()])
	}
	return sb.String(), nil
}

func toGameRoomResponse(room *model.GameRoom, me string) *dto.GameRoomResponse {
	resp := &dto.GameRoomResponse{
		ID:        room.RoomID,
		Code:      room.Code,
		GameType:  room.GameType,
		CreatorID: room.CreatorID,
		Status:    room.Status,
		WinnerID:  room.WinnerID,
		Players:   make([]dto.GamePlayerResponse, 0, len(room.Players)),
		Version:   room.Version,
		UpdatedAt: formatTime(room.UpdatedAt),
	}
	for i := range room.Players {
		p := &room.Players[i]
		resp.Players = append(resp.Players, dto.GamePlayerResponse{
			User:   briefOrID(p.User, p.UserID),
			Symbol: p.Symbol,
			Seat:   p.Seat,
		})
		if p.UserID == me {
			resp.MySymbol = p.Symbol
		}
	}
	if state, err := game.Unmarshal(room.State); err == nil {
		resp.Outcome = state.Outcome()
		resp.State = state.ViewFor(resp.MySymbol)
	}
	return resp
}

func toGameStatResponses(stats []model.GameStatistic) []dto.GameStatResponse {
	result := make([]dto.GameStatResponse, 0, len(stats))
	for i := range stats {
		st := &stats[i]
		result = append(result, dto.GameStatResponse{
			User:       toUserBrief(st.User),
			GameType:   st.GameType,
			Wins:       st.Wins,
			Losses:     st.Losses,
			Draws:      st.Draws,
			TotalGames: st.TotalGames,
		})
	}
	return result
}
