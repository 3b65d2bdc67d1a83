// Package api binds the HTTP, SSE and WebSocket handlers onto a gin engine.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	apirest "github.com/sketchmon/arena/api/rest"
	"github.com/sketchmon/arena/api/sse"
	apiws "github.com/sketchmon/arena/api/ws"
	"github.com/sketchmon/arena/cache"
	"github.com/sketchmon/arena/config"
	mw "github.com/sketchmon/arena/middleware"
	"golang.org/x/time/rate"
)

// Handlers groups every handler the router needs.
type Handlers struct {
	Auth    *apirest.AuthHandler
	Monster *apirest.MonsterHandler
	Battle  *apirest.BattleHandler
	Ranking *apirest.RankingHandler
	Admin   *apirest.AdminHandler
	SSE     *sse.Handler
	WS      *apiws.Handler
}

// Register mounts the full route table on r.
func Register(r *gin.Engine, h Handlers, cfg *config.Config, c cache.Cache) {
	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	auth := mw.Auth(cfg.Security, c)
	moveLimit := mw.AccountRateLimit(rate.Limit(cfg.Security.MoveRateRPS), cfg.Security.MoveRateBurst)

	api := r.Group("/api")
	{
		authG := api.Group("/auth")
		authG.POST("/login", h.Auth.Login)
		authG.POST("/logout", auth, h.Auth.Logout)
		authG.POST("/refresh", auth, h.Auth.Refresh)

		monstersG := api.Group("/monsters", auth)
		monstersG.POST("/analyze", moveLimit, h.Monster.Analyze)
		monstersG.POST("", h.Monster.Create)
		monstersG.GET("", h.Monster.List)
		monstersG.GET("/:id", h.Monster.Get)

		battlesG := api.Group("/battles", auth)
		battlesG.POST("", h.Battle.Create)
		battlesG.GET("/:id", h.Battle.Get)
		battlesG.POST("/:id/moves", moveLimit, h.Battle.SubmitMove)
		battlesG.GET("/:id/card.png", h.Battle.Card)

		api.GET("/ranking/wins", h.Ranking.TopWins)

		adminG := api.Group("/admin")
		adminG.Use(mw.IPWhitelist(cfg.Server.AdminIPs), apirest.AdminAuth(cfg.Server.AdminKey))
		adminG.GET("/metrics", h.Admin.Metrics)
		adminG.POST("/accounts/:id/ban", h.Admin.BanAccount)
		adminG.GET("/scheduler", h.Admin.ListSchedulerTasks)
		adminG.POST("/scheduler/:name/run", h.Admin.RunTask)
		adminG.DELETE("/battles/:id/lock", h.Admin.ReleaseBattleLock)
		adminG.POST("/ranking/refresh", h.Ranking.RefreshRanking)
		adminG.POST("/announce", h.SSE.PostAnnounce)
	}

	stream := mw.StreamAuth(cfg.Security, c)
	r.GET("/sse/battles/:id", stream, h.SSE.ServeBattle)
	r.GET("/ws/battles/:id", stream, h.WS.ServeBattle)
}
