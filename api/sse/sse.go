// Package sse streams battle events to browsers as server-sent events.
package sse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sketchmon/arena/cache"
	"github.com/sketchmon/arena/game/arena"
	"github.com/sketchmon/arena/game/battle"
	mw "github.com/sketchmon/arena/middleware"
	"go.uber.org/zap"
)

const (
	announceChannel  = "announce"
	defaultKeepalive = 30 * time.Second
	eventSnapshot    = "snapshot"
	eventAnnounce    = "announce"
)

// Handler serves GET /sse/battles/:id. Routes must sit behind
// middleware.StreamAuth so browsers can pass the token as a query param.
type Handler struct {
	svc       *arena.Service
	pubsub    cache.PubSub
	origins   map[string]bool
	keepalive time.Duration
	logger    *zap.Logger
}

// NewHandler creates a Handler. An empty origins list allows every origin.
func NewHandler(svc *arena.Service, pubsub cache.PubSub, origins []string, logger *zap.Logger) *Handler {
	h := &Handler{svc: svc, pubsub: pubsub, keepalive: defaultKeepalive, logger: logger}
	if len(origins) > 0 {
		h.origins = make(map[string]bool, len(origins))
		for _, o := range origins {
			h.origins[o] = true
		}
	}
	return h
}

// WithKeepalive overrides the keepalive comment interval.
func (h *Handler) WithKeepalive(d time.Duration) *Handler {
	if d > 0 {
		h.keepalive = d
	}
	return h
}

func (h *Handler) originAllowed(origin string) bool {
	return h.origins == nil || origin == "" || h.origins[origin]
}

// ServeBattle streams one battle. The first event is a snapshot of the
// battle; after that every published turn_resolved and battle_end event is
// forwarded, plus server announcements. The stream ends after battle_end.
func (h *Handler) ServeBattle(c *gin.Context) {
	if !h.originAllowed(c.GetHeader("Origin")) {
		c.JSON(http.StatusForbidden, gin.H{"error": "origin not allowed"})
		return
	}
	battleID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || battleID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	accountID := mw.GetAccountID(c)

	// Subscribe before loading so no turn published in between is lost.
	subCtx, subCancel := context.WithCancel(c.Request.Context())
	defer subCancel()
	msgCh, unsub, err := h.pubsub.Subscribe(subCtx, cache.BattleChannel(battleID), announceChannel)
	if err != nil {
		h.logger.Error("sse subscribe failed", zap.Int64("battle_id", battleID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	defer unsub()

	view, err := h.svc.GetBattle(c.Request.Context(), accountID, battleID)
	if errors.Is(err, arena.ErrBattleNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "battle not found"})
		return
	}
	if err != nil {
		h.logger.Error("sse load battle", zap.Int64("battle_id", battleID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	snapshot, _ := json.Marshal(view)
	writeEvent(c, eventSnapshot, snapshot)
	if view.Outcome != battle.OutcomeInProgress.String() {
		return
	}

	h.logger.Debug("sse stream opened",
		zap.Int64("battle_id", battleID),
		zap.Int64("account_id", accountID))

	ticker := time.NewTicker(h.keepalive)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-msgCh:
			if !ok {
				return
			}
			if msg.Channel == announceChannel {
				writeEvent(c, eventAnnounce, []byte(msg.Payload))
				continue
			}
			var env struct {
				Type string          `json:"type"`
				Data json.RawMessage `json:"data"`
			}
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil || env.Type == "" {
				h.logger.Warn("sse dropped malformed event", zap.Int64("battle_id", battleID))
				continue
			}
			writeEvent(c, env.Type, env.Data)
			if env.Type == (battle.EventBattleEnd{}).EventType() {
				return
			}

		case <-ticker.C:
			fmt.Fprint(c.Writer, ": keepalive\n\n")
			c.Writer.Flush()

		case <-c.Request.Context().Done():
			return
		}
	}
}

func writeEvent(c *gin.Context, name string, data []byte) {
	fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", name, data)
	c.Writer.Flush()
}

// Announce publishes an announcement to every open battle stream.
func (h *Handler) Announce(ctx context.Context, message string) error {
	payload, err := json.Marshal(map[string]string{"message": message})
	if err != nil {
		return err
	}
	return h.pubsub.Publish(ctx, announceChannel, string(payload))
}

type announceRequest struct {
	Message string `json:"message" binding:"required,max=500"`
}

// PostAnnounce handles POST /api/admin/announce.
func (h *Handler) PostAnnounce(c *gin.Context) {
	var req announceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.Announce(c.Request.Context(), req.Message); err != nil {
		h.logger.Error("announce", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "publish failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
