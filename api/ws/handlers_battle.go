package ws

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/sketchmon/arena/game/arena"
)

const (
	packetSnapshot = "snapshot"
	packetMoveAck  = "move_ack"
	packetPong     = "pong"
)

// clientErrors may be shown to players verbatim.
var clientErrors = []error{
	arena.ErrBattleNotFound,
	arena.ErrMoveNotAllowed,
	arena.ErrMoveNotFound,
	arena.ErrInvalidCombatant,
	arena.ErrBattleOver,
	arena.ErrBattleConflict,
	arena.ErrBattleBusy,
	arena.ErrTurnRejected,
}

func clientMessage(err error) string {
	for _, e := range clientErrors {
		if errors.Is(err, e) {
			return e.Error()
		}
	}
	return "internal error"
}

func (h *Handler) registerBattleHandlers() {
	h.router.OnError(clientMessage)
	h.router.On("move", h.handleMove)
	h.router.On("state", h.handleState)
	h.router.On("ping", func(_ context.Context, s *Session, _ json.RawMessage) error {
		s.Send(packetPong, struct{}{})
		return nil
	})
}

type movePayload struct {
	Slot *int `json:"slot"`
}

type moveAck struct {
	Turn    int    `json:"turn"`
	Outcome string `json:"outcome"`
}

// handleMove resolves one turn. The turn itself reaches the client through
// the battle channel; the ack only confirms the submission.
func (h *Handler) handleMove(ctx context.Context, s *Session, payload json.RawMessage) error {
	var req movePayload
	if err := json.Unmarshal(payload, &req); err != nil || req.Slot == nil {
		return arena.ErrMoveNotAllowed
	}
	tv, err := h.svc.SubmitMove(ctx, s.AccountID, s.BattleID, *req.Slot)
	if err != nil {
		return err
	}
	s.Send(packetMoveAck, moveAck{Turn: tv.Battle.Turn, Outcome: tv.Outcome})
	return nil
}

func (h *Handler) handleState(ctx context.Context, s *Session, _ json.RawMessage) error {
	view, err := h.svc.GetBattle(ctx, s.AccountID, s.BattleID)
	if err != nil {
		return err
	}
	s.Send(packetSnapshot, view)
	return nil
}
