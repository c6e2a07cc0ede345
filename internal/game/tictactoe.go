package game

// 井字棋玩家标识
const (
	SymbolX = "X"
	SymbolO = "O"
)

var winLines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

// TicTacToeState 3x3 棋盘，格子 0..8 按行编号，空格为 ""
type TicTacToeState struct {
	Board [9]string `json:"board"`
	Turn  string    `json:"turn"`
	Moves int       `json:"moves"`
}

func newTicTacToe() *TicTacToeState {
	return &TicTacToeState{Turn: SymbolX}
}

func (t *TicTacToeState) apply(symbol string, cell int) error {
	if symbol != SymbolX && symbol != SymbolO {
		return ErrUnknownSymbol
	}
	if symbol != t.Turn {
		return ErrNotYourTurn
	}
	if cell < 0 || cell >= len(t.Board) {
		return ErrCellOutOfRange
	}
	if t.Board[cell] != "" {
		return ErrCellOccupied
	}

	t.Board[cell] = symbol
	t.Moves++
	if t.Turn == SymbolX {
		t.Turn = SymbolO
	} else {
		t.Turn = SymbolX
	}
	return nil
}

func (t *TicTacToeState) outcome() Outcome {
	for _, line := range winLines {
		a := t.Board[line[0]]
		if a != "" && a == t.Board[line[1]] && a == t.Board[line[2]] {
			return Outcome{Finished: true, Winner: a}
		}
	}
	for _, c := range t.Board {
		if c == "" {
			return Outcome{}
		}
	}
	return Outcome{Finished: true, Draw: true}
}
