package game

// 石头剪刀布玩家标识与出拳选项
const (
	Player1 = "player1"
	Player2 = "player2"

	ChoiceRock     = "rock"
	ChoicePaper    = "paper"
	ChoiceScissors = "scissors"

	rpsWinsNeeded = 2
	rpsMaxRounds  = 5
)

// beats[a] = b 表示 a 胜 b
var beats = map[string]string{
	ChoiceRock:     ChoiceScissors,
	ChoicePaper:    ChoiceRock,
	ChoiceScissors: ChoicePaper,
}

// RPSRound 已结算的一回合
type RPSRound struct {
	Round   int               `json:"round"`
	Choices map[string]string `json:"choices"`
	Winner  string            `json:"winner,omitempty"` // 平局为空
}

// RockPaperScissorsState 三局两胜，最多五回合
// Pending 为本回合已出拳但尚未结算的选择
// HasChosen 只出现在对外视图中，不落库
type RockPaperScissorsState struct {
	Round     int               `json:"round"`
	Pending   map[string]string `json:"pending"`
	HasChosen map[string]bool   `json:"has_chosen,omitempty"`
	Scores    map[string]int    `json:"scores"`
	History   []RPSRound        `json:"history"`
}

func newRockPaperScissors() *RockPaperScissorsState {
	return &RockPaperScissorsState{
		Round:   1,
		Pending: map[string]string{},
		Scores:  map[string]int{Player1: 0, Player2: 0},
		History: []RPSRound{},
	}
}

func (r *RockPaperScissorsState) ensureMaps() {
	if r.Pending == nil {
		r.Pending = map[string]string{}
	}
	if r.Scores == nil {
		r.Scores = map[string]int{Player1: 0, Player2: 0}
	}
	if r.History == nil {
		r.History = []RPSRound{}
	}
}

// viewFor 返回 symbol 可见的副本：仅保留其本人未结算的选择
func (r *RockPaperScissorsState) viewFor(symbol string) *RockPaperScissorsState {
	v := &RockPaperScissorsState{
		Round:     r.Round,
		Pending:   map[string]string{},
		HasChosen: map[string]bool{Player1: false, Player2: false},
		Scores:    make(map[string]int, len(r.Scores)),
		History:   r.History,
	}
	for k, n := range r.Scores {
		v.Scores[k] = n
	}
	for k, choice := range r.Pending {
		v.HasChosen[k] = true
		if k == symbol {
			v.Pending[k] = choice
		}
	}
	if v.History == nil {
		v.History = []RPSRound{}
	}
	return v
}

func (r *RockPaperScissorsState) apply(symbol, choice string) error {
	if symbol != Player1 && symbol != Player2 {
		return ErrUnknownSymbol
	}
	if _, ok := beats[choice]; !ok {
		return ErrInvalidChoice
	}
	r.ensureMaps()
	if _, ok := r.Pending[symbol]; ok {
		return ErrAlreadyChose
	}

	r.Pending[symbol] = choice
	if len(r.Pending) < 2 {
		return nil
	}

	// 双方均已出拳，结算本回合
	c1, c2 := r.Pending[Player1], r.Pending[Player2]
	round := RPSRound{
		Round:   r.Round,
		Choices: map[string]string{Player1: c1, Player2: c2},
	}
	switch {
	case beats[c1] == c2:
		round.Winner = Player1
		r.Scores[Player1]++
	case beats[c2] == c1:
		round.Winner = Player2
		r.Scores[Player2]++
	}
	r.History = append(r.History, round)
	r.Pending = map[string]string{}
	r.Round++
	return nil
}

func (r *RockPaperScissorsState) outcome() Outcome {
	p1, p2 := r.Scores[Player1], r.Scores[Player2]
	if p1 >= rpsWinsNeeded {
		return Outcome{Finished: true, Winner: Player1}
	}
	if p2 >= rpsWinsNeeded {
		return Outcome{Finished: true, Winner: Player2}
	}
	if len(r.History) < rpsMaxRounds {
		return Outcome{}
	}
	switch {
	case p1 > p2:
		return Outcome{Finished: true, Winner: Player1}
	case p2 > p1:
		return Outcome{Finished: true, Winner: Player2}
	default:
		return Outcome{Finished: true, Draw: true}
	}
}
