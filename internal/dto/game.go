package dto

import "campusconnect/backend/internal/game"

// ── 小游戏 DTO ──

// CreateGameRoomRequest 创建房间请求
type CreateGameRoomRequest struct {
	GameType string `json:"game_type" binding:"required,oneof=tic_tac_toe rock_paper_scissors"`
}

// GameMoveRequest 走子请求
type GameMoveRequest struct {
	Cell   *int   `json:"cell"   binding:"omitempty,min=0,max=8"`
	Choice string `json:"choice" binding:"omitempty,oneof=rock paper scissors"`
}

// LeaderboardRequest 排行榜参数
type LeaderboardRequest struct {
	GameType string `form:"game_type" binding:"required,oneof=tic_tac_toe rock_paper_scissors"`
}

// GamePlayerResponse 房间玩家
type GamePlayerResponse struct {
	User   UserBrief `json:"user"`
	Symbol string    `json:"symbol"`
	Seat   int       `json:"seat"`
}

// GameRoomResponse 房间状态
type GameRoomResponse struct {
	ID        string               `json:"id"`
	Code      string               `json:"code"`
	GameType  string               `json:"game_type"`
	CreatorID string               `json:"creator_id"`
	Status    string               `json:"status"`
	State     game.State           `json:"state"`
	Outcome   game.Outcome         `json:"outcome"`
	WinnerID  *string              `json:"winner_id,omitempty"`
	Players   []GamePlayerResponse `json:"players"`
	MySymbol  string               `json:"my_symbol,omitempty"`
	Version   int                  `json:"version"`
	UpdatedAt string               `json:"updated_at"`
}

// GameStatResponse 战绩
type GameStatResponse struct {
	User       *UserBrief `json:"user,omitempty"`
	GameType   string     `json:"game_type"`
	Wins       int        `json:"wins"`
	Losses     int        `json:"losses"`
	Draws      int        `json:"draws"`
	TotalGames int        `json:"total_games"`
}
