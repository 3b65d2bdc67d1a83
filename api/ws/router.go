package ws

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	mw "github.com/sketchmon/arena/middleware"
	"go.uber.org/zap"
)

// HandlerFunc processes a decoded packet payload.
type HandlerFunc func(ctx context.Context, s *Session, payload json.RawMessage) error

// ErrorFunc turns a handler error into the message sent back to the client.
type ErrorFunc func(err error) string

// Router dispatches incoming packets to registered handlers.
type Router struct {
	handlers map[string]HandlerFunc
	onError  ErrorFunc
	logger   *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		handlers: make(map[string]HandlerFunc),
		onError:  func(error) string { return "internal error" },
		logger:   logger,
	}
}

// On registers fn for msgType, replacing any previous handler.
func (r *Router) On(msgType string, fn HandlerFunc) {
	r.handlers[msgType] = fn
}

// OnError sets how handler errors are reported to the client.
func (r *Router) OnError(fn ErrorFunc) {
	r.onError = fn
}

// Dispatch decodes raw, enforces the sequence number and runs the handler.
// A failing handler answers with an "error" packet.
func (r *Router) Dispatch(ctx context.Context, s *Session, raw []byte) {
	var pkt Packet
	if err := json.Unmarshal(raw, &pkt); err != nil {
		r.logger.Warn("malformed packet",
			zap.Int64("account_id", s.AccountID),
			zap.Error(err))
		s.Send("error", errorPayload{Error: "malformed packet"})
		return
	}

	// Seq == 0 means the client does not track sequence numbers.
	if pkt.Seq != 0 && pkt.Seq <= s.LastSeq {
		r.logger.Warn("replayed or out-of-order packet",
			zap.Int64("account_id", s.AccountID),
			zap.Uint64("seq", pkt.Seq),
			zap.Uint64("last_seq", s.LastSeq))
		return
	}
	if pkt.Seq != 0 {
		s.LastSeq = pkt.Seq
	}

	fn, ok := r.handlers[pkt.Type]
	if !ok {
		r.logger.Debug("unhandled message type",
			zap.String("type", pkt.Type),
			zap.Int64("account_id", s.AccountID))
		s.Send("error", errorPayload{Error: "unknown message type", Type: pkt.Type, Seq: pkt.Seq})
		return
	}

	s.TraceID = uuid.NewString()
	ctx = mw.WithTraceID(ctx, s.TraceID)
	if err := fn(ctx, s, pkt.Payload); err != nil {
		r.logger.Info("ws handler error",
			zap.String("type", pkt.Type),
			zap.Int64("account_id", s.AccountID),
			zap.Int64("battle_id", s.BattleID),
			zap.String("trace_id", s.TraceID),
			zap.Error(err))
		s.Send("error", errorPayload{Error: r.onError(err), Type: pkt.Type, Seq: pkt.Seq})
	}
}

type errorPayload struct {
	Error string `json:"error"`
	Type  string `json:"type,omitempty"`
	Seq   uint64 `json:"seq,omitempty"`
}
