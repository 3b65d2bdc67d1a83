package rest

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sketchmon/arena/audit"
	"github.com/sketchmon/arena/game/analyze"
	"github.com/sketchmon/arena/game/balance"
	mw "github.com/sketchmon/arena/middleware"
	"github.com/sketchmon/arena/model"
	"github.com/sketchmon/arena/plugin/hook"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	maxMonstersPerAccount = 200
	defaultUploadLimit    = 5 << 20
)

// MonsterHandler turns sketches into balanced monsters and stores them.
type MonsterHandler struct {
	db          *gorm.DB
	analyzer    analyze.Analyzer
	traits      balance.TraitMenu
	hooks       *hook.HookCenter
	audit       audit.Logger
	uploadLimit int64
	logger      *zap.Logger
}

// NewMonsterHandler creates a MonsterHandler. analyzer may be nil, in which
// case every analysis uses the fallback stats.
func NewMonsterHandler(db *gorm.DB, analyzer analyze.Analyzer, traits balance.TraitMenu, uploadLimit int64, logger *zap.Logger) *MonsterHandler {
	if uploadLimit <= 0 {
		uploadLimit = defaultUploadLimit
	}
	return &MonsterHandler{
		db:          db,
		analyzer:    analyzer,
		traits:      traits,
		uploadLimit: uploadLimit,
		logger:      logger,
	}
}

func (h *MonsterHandler) WithHooks(hc *hook.HookCenter) *MonsterHandler {
	h.hooks = hc
	return h
}

func (h *MonsterHandler) WithAudit(a audit.Logger) *MonsterHandler {
	h.audit = a
	return h
}

type analysisResponse struct {
	Stats    balance.Stats    `json:"stats"`
	Raw      balance.RawStats `json:"raw"`
	Flavor   string           `json:"flavor"`
	Fallback bool             `json:"fallback"`
}

// Analyze handles POST /api/monsters/analyze.
// Expects multipart/form-data with an "image" field. Analysis failures never
// fail the request; the fallback creature is returned instead.
func (h *MonsterHandler) Analyze(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.uploadLimit+1024)
	fh, err := c.FormFile("image")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "no image file provided"})
		return
	}
	if fh.Size > h.uploadLimit {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image too large"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read image"})
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, h.uploadLimit))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read image"})
		return
	}

	raw, err := analyze.AnalyzeOrFallback(c.Request.Context(), h.analyzer, data, fh.Header.Get("Content-Type"))
	if err != nil {
		h.logger.Warn("sketch analysis failed, using fallback",
			zap.Int64("account_id", mw.GetAccountID(c)),
			zap.Error(err))
	}
	stats := balance.Balance(raw)
	c.JSON(http.StatusOK, analysisResponse{
		Stats:    stats,
		Raw:      raw,
		Flavor:   balance.Flavor(stats, h.traits, nil),
		Fallback: err != nil,
	})
}

type createMonsterRequest struct {
	balance.RawStats
	ImageRef string `json:"image_ref" binding:"max=255"`
}

// Create handles POST /api/monsters.
// The submitted stats are always re-balanced before they are stored.
func (h *MonsterHandler) Create(c *gin.Context) {
	accountID := mw.GetAccountID(c)
	var req createMonsterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var count int64
	if err := h.db.Model(&model.Monster{}).Where("account_id = ?", accountID).Count(&count).Error; err != nil {
		h.logger.Error("count monsters", zap.Int64("account_id", accountID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	if count >= maxMonstersPerAccount {
		c.JSON(http.StatusBadRequest, gin.H{"error": "monster limit reached"})
		return
	}

	stats := balance.Balance(req.RawStats)
	if len([]rune(stats.Name)) > 64 {
		stats.Name = string([]rune(stats.Name)[:64])
	}
	mon := &model.Monster{
		AccountID:   accountID,
		Name:        stats.Name,
		Type:        string(stats.Type),
		Attack:      stats.Attack,
		Defense:     stats.Defense,
		Speed:       stats.Speed,
		Health:      stats.Health,
		Description: stats.Description,
		Flavor:      balance.Flavor(stats, h.traits, nil),
		ImageRef:    req.ImageRef,
	}
	if err := h.db.Create(mon).Error; err != nil {
		h.logger.Error("create monster", zap.Int64("account_id", accountID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create monster"})
		return
	}

	ctx := c.Request.Context()
	if h.hooks != nil {
		h.hooks.Trigger(ctx, hook.OnMonsterCreated, &hook.MonsterContext{
			AccountID: accountID,
			MonsterID: mon.ID,
			Name:      mon.Name,
		})
	}
	if h.audit != nil {
		h.audit.Log(audit.Entry{
			TraceID:   mw.GetTraceID(c),
			AccountID: &accountID,
			MonsterID: &mon.ID,
			Action:    audit.ActionMonsterCreated,
			Request:   req.RawStats,
			Response:  stats,
			IP:        c.ClientIP(),
		})
	}
	h.logger.Info("monster created",
		zap.Int64("account_id", accountID),
		zap.Int64("monster_id", mon.ID),
		zap.String("type", mon.Type))
	c.JSON(http.StatusCreated, gin.H{"monster": mon})
}

// List handles GET /api/monsters.
func (h *MonsterHandler) List(c *gin.Context) {
	accountID := mw.GetAccountID(c)
	var monsters []model.Monster
	if err := h.db.Where("account_id = ?", accountID).Order("id DESC").Find(&monsters).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"monsters": monsters})
}

// Get handles GET /api/monsters/:id.
func (h *MonsterHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var mon model.Monster
	err := h.db.Where("id = ? AND account_id = ?", id, mw.GetAccountID(c)).First(&mon).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "monster not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	budget := float64(mon.Attack) + float64(mon.Defense) + float64(mon.Health)/10
	c.JSON(http.StatusOK, gin.H{"monster": mon, "budget": budget})
}
