// Package ws serves a per-battle WebSocket: the client submits moves and
// receives the same turn events the SSE stream carries.
package ws

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/sketchmon/arena/cache"
	"github.com/sketchmon/arena/game/arena"
	mw "github.com/sketchmon/arena/middleware"
	"go.uber.org/zap"
)

// Handler is the Gin handler for GET /ws/battles/:id. Routes must sit behind
// middleware.StreamAuth.
type Handler struct {
	svc     *arena.Service
	pubsub  cache.PubSub
	origins []string
	router  *Router
	logger  *zap.Logger
}

// NewHandler creates a Handler. origins are full origins such as
// "https://arena.example"; an empty list permits every origin (development
// only).
func NewHandler(svc *arena.Service, pubsub cache.PubSub, origins []string, logger *zap.Logger) *Handler {
	h := &Handler{
		svc:     svc,
		pubsub:  pubsub,
		origins: origins,
		router:  NewRouter(logger),
		logger:  logger,
	}
	h.registerBattleHandlers()
	return h
}

// ServeBattle upgrades the request and serves the battle until the client
// disconnects.
func (h *Handler) ServeBattle(c *gin.Context) {
	battleID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || battleID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	accountID := mw.GetAccountID(c)

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// Subscribe before loading so no turn published in between is lost.
	msgCh, unsub, err := h.pubsub.Subscribe(ctx, cache.BattleChannel(battleID))
	if err != nil {
		h.logger.Error("ws subscribe failed", zap.Int64("battle_id", battleID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	defer unsub()

	view, err := h.svc.GetBattle(ctx, accountID, battleID)
	if errors.Is(err, arena.ErrBattleNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "battle not found"})
		return
	}
	if err != nil {
		h.logger.Error("ws load battle", zap.Int64("battle_id", battleID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	opts := &websocket.AcceptOptions{OriginPatterns: h.origins}
	if len(h.origins) == 0 {
		opts.InsecureSkipVerify = true
	}
	conn, err := websocket.Accept(upgradeWriter{c.Writer}, c.Request, opts)
	if err != nil {
		// Accept has already written the error response.
		h.logger.Warn("ws accept failed", zap.Int64("battle_id", battleID), zap.Error(err))
		return
	}
	conn.SetReadLimit(readLimit)

	sess := newSession(accountID, battleID, conn, h.logger)
	defer sess.Close()
	go sess.writePump(ctx)
	go h.forward(ctx, sess, msgCh)

	sess.Send(packetSnapshot, view)
	h.logger.Info("battle socket opened",
		zap.Int64("battle_id", battleID),
		zap.Int64("account_id", accountID))

	h.readPump(ctx, sess)
	_ = conn.Close(websocket.StatusNormalClosure, "")
	h.logger.Info("battle socket closed",
		zap.Int64("battle_id", battleID),
		zap.Int64("account_id", accountID))
}

// readPump reads packets until the connection fails or closes.
func (h *Handler) readPump(ctx context.Context, s *Session) {
	for {
		_, raw, err := s.conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway, websocket.StatusNoStatusRcvd:
			default:
				if ctx.Err() == nil {
					h.logger.Debug("ws read ended",
						zap.Int64("account_id", s.AccountID),
						zap.Error(err))
				}
			}
			return
		}
		h.router.Dispatch(ctx, s, raw)
	}
}

// forward relays published battle events to the socket.
func (h *Handler) forward(ctx context.Context, s *Session, msgCh <-chan *cache.Message) {
	for {
		select {
		case msg, ok := <-msgCh:
			if !ok {
				return
			}
			var env struct {
				Type string          `json:"type"`
				Data json.RawMessage `json:"data"`
			}
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil || env.Type == "" {
				continue
			}
			s.SendRaw(env.Type, env.Data)
		case <-ctx.Done():
			return
		}
	}
}

// upgradeWriter hands Accept a writer without gin's WriteHeaderNow. Gin
// treats a flushed header as written and then refuses to hijack, so the 101
// goes to the underlying writer and is flushed by the hijack itself.
type upgradeWriter struct {
	gw gin.ResponseWriter
}

func (w upgradeWriter) Header() http.Header { return w.gw.Header() }

func (w upgradeWriter) Write(b []byte) (int, error) { return w.gw.Write(b) }

func (w upgradeWriter) WriteHeader(code int) {
	w.gw.WriteHeader(code)
	if code != http.StatusSwitchingProtocols {
		w.gw.WriteHeaderNow()
		return
	}
	if u, ok := w.gw.(interface{ Unwrap() http.ResponseWriter }); ok {
		u.Unwrap().WriteHeader(code)
	}
}

func (w upgradeWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return w.gw.Hijack()
}
