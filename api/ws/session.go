package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"
)

const (
	sendChanBuf   = 64
	writeDeadline = 10 * time.Second
	pingInterval  = 30 * time.Second
	readLimit     = 4096
)

// Packet is the envelope of every message in both directions.
type Packet struct {
	Seq     uint64          `json:"seq,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Session is one socket attached to one battle.
type Session struct {
	AccountID int64
	BattleID  int64
	TraceID   string
	LastSeq   uint64

	conn      *websocket.Conn
	sendChan  chan []byte
	done      chan struct{}
	closeOnce sync.Once
	logger    *zap.Logger
}

func newSession(accountID, battleID int64, conn *websocket.Conn, logger *zap.Logger) *Session {
	return &Session{
		AccountID: accountID,
		BattleID:  battleID,
		conn:      conn,
		sendChan:  make(chan []byte, sendChanBuf),
		done:      make(chan struct{}),
		logger:    logger,
	}
}

// writePump drains the send queue and pings the peer until the session
// closes or ctx ends.
func (s *Session) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case data := <-s.sendChan:
			wctx, cancel := context.WithTimeout(ctx, writeDeadline)
			err := s.conn.Write(wctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				s.logger.Debug("ws write failed",
					zap.Int64("account_id", s.AccountID),
					zap.Error(err))
				s.Close()
				return
			}
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, writeDeadline)
			err := s.conn.Ping(pctx)
			cancel()
			if err != nil {
				s.Close()
				return
			}
		case <-s.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Send encodes payload under msgType and queues it. Packets are dropped when
// the queue is full or the session is closed.
func (s *Session) Send(msgType string, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("ws encode packet", zap.String("type", msgType), zap.Error(err))
		return
	}
	s.SendRaw(msgType, raw)
}

// SendRaw queues an already encoded payload.
func (s *Session) SendRaw(msgType string, payload json.RawMessage) {
	if s.IsClosed() {
		return
	}
	data, err := json.Marshal(Packet{Type: msgType, Payload: payload})
	if err != nil {
		return
	}
	select {
	case s.sendChan <- data:
	case <-s.done:
	default:
		s.logger.Warn("send channel full, dropping packet",
			zap.Int64("account_id", s.AccountID),
			zap.String("type", msgType))
	}
}

// Close marks the session closed. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *Session) IsClosed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}
