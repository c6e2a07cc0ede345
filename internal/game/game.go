// Package game 回合制小游戏的纯状态机
//
// 房间状态以标签联合存储：type 字段决定哪个变体有效，
// Apply 与 Outcome 对每个变体穷举处理。
package game

import (
	"encoding/json"
	"errors"
	"fmt"
)

// 游戏类型
const (
	TypeTicTacToe         = "tic_tac_toe"
	TypeRockPaperScissors = "rock_paper_scissors"
)

var (
	ErrUnknownGameType = errors.New("未知的游戏类型")
	ErrInvalidMove     = errors.New("无效的走子")
	ErrNotYourTurn     = errors.New("还没轮到你")
	ErrCellOutOfRange  = errors.New("格子编号超出范围")
	ErrCellOccupied    = errors.New("该格子已被占用")
	ErrInvalidChoice   = errors.New("无效的出拳选项")
	ErrAlreadyChose    = errors.New("本回合已出拳")
	ErrGameOver        = errors.New("对局已结束")
	ErrUnknownSymbol   = errors.New("未知的玩家标识")
)

// State 标签联合：仅 Type 对应的字段非空
type State struct {
	Type              string                  `json:"type"`
	TicTacToe         *TicTacToeState         `json:"tic_tac_toe,omitempty"`
	RockPaperScissors *RockPaperScissorsState `json:"rock_paper_scissors,omitempty"`
}

// Move 客户端提交的走子
// 井字棋使用 Cell，石头剪刀布使用 Choice
type Move struct {
	Cell   *int   `json:"cell,omitempty"`
	Choice string `json:"choice,omitempty"`
}

// Outcome 对局结果
type Outcome struct {
	Finished bool   `json:"finished"`
	Draw     bool   `json:"draw"`
	Winner   string `json:"winner,omitempty"` // 获胜方标识（X/O 或 player1/player2）
}

// IsValidType 是否为支持的游戏类型
func IsValidType(gameType string) bool {
	return gameType == TypeTicTacToe || gameType == TypeRockPaperScissors
}

// MaxPlayers 每种游戏开局所需人数
func MaxPlayers(gameType string) int {
	switch gameType {
	case TypeTicTacToe, TypeRockPaperScissors:
		return 2
	default:
		return 0
	}
}

// Symbols 按入座顺序返回玩家标识
func Symbols(gameType string) []string {
	switch gameType {
	case TypeTicTacToe:
		return []string{SymbolX, SymbolO}
	case TypeRockPaperScissors:
		return []string{Player1, Player2}
	default:
		return nil
	}
}

// SymbolForSeat 返回第 seat（从 1 开始）个座位的标识
func SymbolForSeat(gameType string, seat int) (string, error) {
	symbols := Symbols(gameType)
	if seat < 1 || seat > len(symbols) {
		return "", fmt.Errorf("座位号 %d 超出范围", seat)
	}
	return symbols[seat-1], nil
}

// New 初始化对应游戏的初始状态
func New(gameType string) (State, error) {
	switch gameType {
	case TypeTicTacToe:
		return State{Type: gameType, TicTacToe: newTicTacToe()}, nil
	case TypeRockPaperScissors:
		return State{Type: gameType, RockPaperScissors: newRockPaperScissors()}, nil
	default:
		return State{}, ErrUnknownGameType
	}
}

// Apply 以 symbol 身份执行一步
func (s *State) Apply(symbol string, m Move) error {
	if s.Outcome().Finished {
		return ErrGameOver
	}
	switch s.Type {
	case TypeTicTacToe:
		if m.Cell == nil {
			return ErrInvalidMove
		}
		return s.TicTacToe.apply(symbol, *m.Cell)
	case TypeRockPaperScissors:
		if m.Choice == "" {
			return ErrInvalidMove
		}
		return s.RockPaperScissors.apply(symbol, m.Choice)
	default:
		return ErrUnknownGameType
	}
}

// Outcome 计算当前结果
func (s *State) Outcome() Outcome {
	switch s.Type {
	case TypeTicTacToe:
		return s.TicTacToe.outcome()
	case TypeRockPaperScissors:
		return s.RockPaperScissors.outcome()
	default:
		return Outcome{}
	}
}

// ViewFor 返回 symbol 可见的状态副本，symbol 为空表示旁观视图
// 猜拳未结算的选择只对出拳者本人可见
func (s State) ViewFor(symbol string) State {
	if s.Type == TypeRockPaperScissors && s.RockPaperScissors != nil {
		s.RockPaperScissors = s.RockPaperScissors.viewFor(symbol)
	}
	return s
}

// Marshal 序列化为 JSON（存入 jsonb）
func (s State) Marshal() ([]byte, error) {
	return json.Marshal(s)
}

// Unmarshal 解析 JSON 并校验变体与 type 一致
func Unmarshal(data []byte) (State, error) {
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return State{}, fmt.Errorf("解析游戏状态失败: %w", err)
	}
	switch s.Type {
	case TypeTicTacToe:
		if s.TicTacToe == nil || s.RockPaperScissors != nil {
			return State{}, fmt.Errorf("游戏状态与类型不匹配: %s", s.Type)
		}
	case TypeRockPaperScissors:
		if s.RockPaperScissors == nil || s.TicTacToe != nil {
			return State{}, fmt.Errorf("游戏状态与类型不匹配: %s", s.Type)
		}
		s.RockPaperScissors.ensureMaps()
	default:
		return State{}, ErrUnknownGameType
	}
	return s, nil
}
