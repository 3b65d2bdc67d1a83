package rest

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sketchmon/arena/cache"
	"github.com/sketchmon/arena/game/arena"
	"github.com/sketchmon/arena/model"
	"github.com/sketchmon/arena/plugin/hook"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultRankingTop = 100

// RankingHandler handles the wins leaderboard.
type RankingHandler struct {
	db     *gorm.DB
	repo   *arena.GormRepository
	cache  cache.Cache
	top    int
	logger *zap.Logger
}

// NewRankingHandler creates a RankingHandler keeping at most top entries.
func NewRankingHandler(db *gorm.DB, c cache.Cache, top int, logger *zap.Logger) *RankingHandler {
	if top <= 0 {
		top = defaultRankingTop
	}
	return &RankingHandler{db: db, repo: arena.NewGormRepository(db), cache: c, top: top, logger: logger}
}

// RankEntry is one row in the leaderboard.
type RankEntry struct {
	Rank      int    `json:"rank"`
	AccountID int64  `json:"account_id"`
	Username  string `json:"username"`
	Wallet    string `json:"wallet,omitempty"`
	Wins      int64  `json:"wins"`
}

// TopWins returns the accounts with the most won battles.
// GET /api/ranking/wins?limit=20
func (h *RankingHandler) TopWins(c *gin.Context) {
	limit := 20
	if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 && l <= h.top {
		limit = l
	}

	ctx := c.Request.Context()
	if entries, err := h.cachedWins(ctx, limit); err != nil {
		h.logger.Warn("ranking cache read, falling back to db", zap.Error(err))
	} else if len(entries) > 0 {
		if err := h.enrichNames(entries); err != nil {
			h.logger.Error("ranking names", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ranking": entries, "source": "cache"})
		return
	}

	rows, err := h.repo.ListWinners(ctx, limit)
	if err != nil {
		h.logger.Error("ranking query", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	entries := make([]RankEntry, len(rows))
	for i, r := range rows {
		entries[i] = RankEntry{Rank: i + 1, AccountID: r.AccountID, Wins: r.Wins}
		_ = h.cache.ZAdd(ctx, cache.RankingWinsKey, float64(r.Wins), strconv.FormatInt(r.AccountID, 10))
	}
	if err := h.enrichNames(entries); err != nil {
		h.logger.Error("ranking names", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ranking": entries, "source": "db"})
}

// cachedWins reads the top of the wins sorted set. A read error on any
// member fails the whole read so the caller can fall back to the database.
func (h *RankingHandler) cachedWins(ctx context.Context, limit int) ([]RankEntry, error) {
	members, err := h.cache.ZRevRange(ctx, cache.RankingWinsKey, 0, int64(limit-1))
	if err != nil {
		return nil, err
	}
	entries := make([]RankEntry, 0, len(members))
	for _, m := range members {
		accountID, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		score, err := h.cache.ZScore(ctx, cache.RankingWinsKey, m)
		if cache.IsNotFound(err) {
			// removed by a concurrent refresh
			continue
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, RankEntry{
			Rank:      len(entries) + 1,
			AccountID: accountID,
			Wins:      int64(score),
		})
	}
	return entries, nil
}

// Refresh rebuilds the wins sorted set from the battles table.
// Run periodically by the scheduler.
func (h *RankingHandler) Refresh(ctx context.Context) (int, error) {
	rows, err := h.repo.ListWinners(ctx, h.top)
	if err != nil {
		return 0, err
	}
	if err := h.cache.Del(ctx, cache.RankingWinsKey); err != nil {
		return 0, err
	}
	for _, r := range rows {
		if err := h.cache.ZAdd(ctx, cache.RankingWinsKey, float64(r.Wins), strconv.FormatInt(r.AccountID, 10)); err != nil {
			return 0, err
		}
	}
	return len(rows), nil
}

// RefreshRanking handles POST /api/admin/ranking/refresh.
func (h *RankingHandler) RefreshRanking(c *gin.Context) {
	n, err := h.Refresh(c.Request.Context())
	if err != nil {
		h.logger.Error("ranking refresh", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "refresh failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"refreshed": n})
}

// RecordWin is an on_battle_end hook that bumps the winner's score.
// Opponent wins are not ranked.
func (h *RankingHandler) RecordWin(ctx context.Context, _ string, data interface{}) (interface{}, error) {
	bc, ok := data.(*hook.BattleContext)
	if !ok || bc.Winner != model.WinnerPlayer {
		return data, nil
	}
	_, err := h.cache.ZIncrBy(ctx, cache.RankingWinsKey, 1, strconv.FormatInt(bc.AccountID, 10))
	return data, err
}

func (h *RankingHandler) enrichNames(entries []RankEntry) error {
	if len(entries) == 0 {
		return nil
	}
	ids := make([]int64, len(entries))
	for i, e := range entries {
		ids[i] = e.AccountID
	}
	var accounts []model.Account
	if err := h.db.Select("id, username, wallet").Where("id IN ?", ids).Find(&accounts).Error; err != nil {
		return err
	}
	byID := make(map[int64]model.Account, len(accounts))
	for _, a := range accounts {
		byID[a.ID] = a
	}
	for i := range entries {
		if a, ok := byID[entries[i].AccountID]; ok {
			entries[i].Username = a.Username
			entries[i].Wallet = a.Wallet
		}
	}
	return nil
}
