package battle

// BattleEvent is published for the streaming layer to consume.
type BattleEvent interface {
	EventType() string
}

// MoveRef identifies the move a side used in event payloads.
type MoveRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Type Type   `json:"type"`
}

func RefMove(m Move) MoveRef {
	return MoveRef{ID: m.ID, Name: m.Name, Type: m.Type}
}

// EventTurnResolved carries everything the client needs to play the turn
// back in order: who went first, what each side did and whether it landed.
type EventTurnResolved struct {
	BattleID   int64      `json:"battle_id"`
	Turn       int        `json:"turn"`
	First      string     `json:"first"`
	PlayerMove MoveRef    `json:"player_move"`
	OppMove    MoveRef    `json:"opp_move"`
	Result     TurnResult `json:"result"`
}

func (EventTurnResolved) EventType() string { return "turn_resolved" }

type EventBattleEnd struct {
	BattleID int64  `json:"battle_id"`
	Outcome  string `json:"outcome"`
	Winner   string `json:"winner"`
}

func (EventBattleEnd) EventType() string { return "battle_end" }
