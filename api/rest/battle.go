package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sketchmon/arena/game/arena"
	mw "github.com/sketchmon/arena/middleware"
	"github.com/sketchmon/arena/render"
	"go.uber.org/zap"
)

// BattleHandler exposes the battle lifecycle over REST.
type BattleHandler struct {
	svc         *arena.Service
	startEnergy int
	logger      *zap.Logger
}

// NewBattleHandler creates a BattleHandler. startEnergy scales the energy bar
// on rendered cards.
func NewBattleHandler(svc *arena.Service, startEnergy int, logger *zap.Logger) *BattleHandler {
	return &BattleHandler{svc: svc, startEnergy: startEnergy, logger: logger}
}

type startBattleRequest struct {
	MonsterID int64 `json:"monster_id" binding:"required,min=1"`
}

// Create handles POST /api/battles.
func (h *BattleHandler) Create(c *gin.Context) {
	var req startBattleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	view, err := h.svc.StartBattle(c.Request.Context(), mw.GetAccountID(c), req.MonsterID)
	if err != nil {
		respondArenaError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

// Get handles GET /api/battles/:id.
func (h *BattleHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	view, err := h.svc.GetBattle(c.Request.Context(), mw.GetAccountID(c), id)
	if err != nil {
		respondArenaError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type submitMoveRequest struct {
	// Slot is a pointer so that slot 0 passes the required check.
	Slot *int `json:"slot" binding:"required"`
}

// SubmitMove handles POST /api/battles/:id/moves.
func (h *BattleHandler) SubmitMove(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req submitMoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	turn, err := h.svc.SubmitMove(c.Request.Context(), mw.GetAccountID(c), id, *req.Slot)
	if err != nil {
		respondArenaError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, turn)
}

// Card handles GET /api/battles/:id/card.png.
func (h *BattleHandler) Card(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	view, err := h.svc.GetBattle(c.Request.Context(), mw.GetAccountID(c), id)
	if err != nil {
		respondArenaError(c, h.logger, err)
		return
	}
	img, err := render.BattleCard(view, h.startEnergy)
	if err != nil {
		respondArenaError(c, h.logger, err)
		return
	}
	buf, err := render.EncodePNG(img)
	if err != nil {
		respondArenaError(c, h.logger, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", buf)
}
