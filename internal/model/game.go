package model

import (
	"time"

	"gorm.io/datatypes"
)

// 游戏房间状态
const (
	GameStatusWaiting  = "waiting"
	GameStatusPlaying  = "playing"
	GameStatusFinished = "finished"
)

// GameRoom 游戏房间，对应 game_rooms
// State 为 internal/game 的标签联合 JSON，Version 用于乐观锁
type GameRoom struct {
	RoomID    string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"room_id"`
	Code      string         `gorm:"type:char(6);not null"                          json:"code"`
	GameType  string         `gorm:"type:varchar(30);not null"                      json:"game_type"`
	CreatorID string         `gorm:"type:uuid;not null"                             json:"creator_id"`
	Status    string         `gorm:"type:varchar(20);not null;default:'waiting'"    json:"status"`
	State     datatypes.JSON `gorm:"type:jsonb;not null"                            json:"state"`
	WinnerID  *string        `gorm:"type:uuid"                                      json:"winner_id,omitempty"`
	VersionedModel

	Players []GameRoomPlayer `gorm:"foreignKey:RoomID;references:RoomID" json:"players,omitempty"`
}

// TableName 指定表名
func (GameRoom) TableName() string { return "game_rooms" }

// GameRoomPlayer 房间玩家，对应 game_room_players
type GameRoomPlayer struct {
	PlayerID string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"player_id"`
	RoomID   string    `gorm:"type:uuid;not null"                             json:"room_id"`
	UserID   string    `gorm:"type:uuid;not null"                             json:"user_id"`
	Symbol   string    `gorm:"type:varchar(10);not null"                      json:"symbol"`
	Seat     int       `gorm:"type:smallint;not null"                         json:"seat"`
	JoinedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"joined_at"`

	User *User `gorm:"foreignKey:UserID;references:UserID" json:"user,omitempty"`
}

// TableName 指定表名
func (GameRoomPlayer) TableName() string { return "game_room_players" }

// GameStatistic 玩家战绩，对应 game_statistics
type GameStatistic struct {
	StatisticID string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"statistic_id"`
	UserID      string `gorm:"type:uuid;not null"                             json:"user_id"`
	GameType    string `gorm:"type:varchar(30);not null"                      json:"game_type"`
	Wins        int    `gorm:"not null;default:0"                             json:"wins"`
	Losses      int    `gorm:"not null;default:0"                             json:"losses"`
	Draws       int    `gorm:"not null;default:0"                             json:"draws"`
	TotalGames  int    `gorm:"not null;default:0"                             json:"total_games"`
	BaseModel

	User *User `gorm:"foreignKey:UserID;references:UserID" json:"user,omitempty"`
}

// TableName 指定表名
func (GameStatistic) TableName() string { return "game_statistics" }

// GameResult 单个玩家的对局结果
type GameResult struct {
	UserID string
	Result string // win | loss | draw
}
