package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"campusconnect/backend/internal/dto"
	"campusconnect/backend/internal/game"
	"campusconnect/backend/internal/service"
	"campusconnect/backend/pkg/response"
)

// GameHandler 小游戏 HTTP 处理器
type GameHandler struct {
	gameSvc service.GameService
}

// NewGameHandler 创建 GameHandler
func NewGameHandler(gameSvc service.GameService) *GameHandler {
	return &GameHandler{gameSvc: gameSvc}
}

// CreateRoom 创建房间
// POST /api/v1/games/rooms
func (h *GameHandler) CreateRoom(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.CreateGameRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	room, err := h.gameSvc.Create(c.Request.Context(), userID, &req)
	if err != nil {
		handleGameError(c, err)
		return
	}

	response.Created(c, room)
}

// ListMine 我参与的房间
// GET /api/v1/games/rooms
func (h *GameHandler) ListMine(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	list, err := h.gameSvc.ListMine(c.Request.Context(), userID)
	if err != nil {
		handleGameError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// GetRoom 房间状态
// GET /api/v1/games/rooms/:code
func (h *GameHandler) GetRoom(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	room, err := h.gameSvc.Get(c.Request.Context(), userID, c.Param("code"))
	if err != nil {
		handleGameError(c, err)
		return
	}

	response.OK(c, room)
}

// Join 加入房间
// POST /api/v1/games/rooms/:code/join
func (h *GameHandler) Join(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	room, err := h.gameSvc.Join(c.Request.Context(), userID, c.Param("code"))
	if err != nil {
		handleGameError(c, err)
		return
	}

	response.OK(c, room)
}

// Move 走子 / 出拳
// POST /api/v1/games/rooms/:code/move
func (h *GameHandler) Move(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.GameMoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	room, err := h.gameSvc.Move(c.Request.Context(), userID, c.Param("code"), &req)
	if err != nil {
		handleGameError(c, err)
		return
	}

	response.OK(c, room)
}

// Reset 重开一局
// POST /api/v1/games/rooms/:code/reset
func (h *GameHandler) Reset(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	room, err := h.gameSvc.Reset(c.Request.Context(), userID, c.Param("code"))
	if err != nil {
		handleGameError(c, err)
		return
	}

	response.OK(c, room)
}

// Stats 战绩，默认查询自己，可通过 user_id 查询他人
// GET /api/v1/games/stats?user_id=
func (h *GameHandler) Stats(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	if target := c.Query("user_id"); target != "" {
		if _, err := uuid.Parse(target); err != nil {
			response.BadRequest(c, 10001, "user_id 格式无效")
			return
		}
		userID = target
	}

	stats, err := h.gameSvc.Stats(c.Request.Context(), userID)
	if err != nil {
		handleGameError(c, err)
		return
	}

	response.OK(c, gin.H{"list": stats})
}

// Leaderboard 排行榜（按胜场取前 10）
// GET /api/v1/games/leaderboard?game_type=
func (h *GameHandler) Leaderboard(c *gin.Context) {
	var req dto.LeaderboardRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindFailed(c, err)
		return
	}

	list, err := h.gameSvc.Leaderboard(c.Request.Context(), req.GameType)
	if err != nil {
		handleGameError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

func handleGameError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrGameRoomNotFound):
		response.NotFound(c, 15001, "游戏房间不存在")
	case errors.Is(err, service.ErrGameRoomFull):
		response.Conflict(c, 15002, "房间已满")
	case errors.Is(err, service.ErrGameRoomFinished), errors.Is(err, game.ErrGameOver):
		response.Conflict(c, 15003, "对局已结束")
	case errors.Is(err, service.ErrGameNotStarted):
		response.Conflict(c, 15004, "对局尚未开始")
	case errors.Is(err, service.ErrNotGamePlayer):
		response.Forbidden(c, 15005, "你不是该房间的玩家")
	case errors.Is(err, service.ErrGameConflict):
		response.Conflict(c, 15006, "房间状态已变化，请刷新后重试")
	case errors.Is(err, service.ErrRoomCodeExhausted):
		response.Error(c, http.StatusServiceUnavailable, 15007, "生成房间号失败，请重试")
	case errors.Is(err, game.ErrUnknownGameType):
		response.BadRequest(c, 15008, "未知的游戏类型")
	case errors.Is(err, game.ErrInvalidMove):
		response.BadRequest(c, 15009, "无效的走子")
	case errors.Is(err, game.ErrNotYourTurn):
		response.Conflict(c, 15010, "还没轮到你")
	case errors.Is(err, game.ErrCellOutOfRange):
		response.BadRequest(c, 15011, "格子编号超出范围")
	case errors.Is(err, game.ErrCellOccupied):
		response.Conflict(c, 15012, "该格子已被占用")
	case errors.Is(err, game.ErrInvalidChoice):
		response.BadRequest(c, 15013, "无效的出拳选项")
	case errors.Is(err, game.ErrAlreadyChose):
		response.Conflict(c, 15014, "本回合已出拳")
	default:
		handleCommonError(c, err)
	}
}
