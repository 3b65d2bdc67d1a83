package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sketchmon/arena/api"
	apirest "github.com/sketchmon/arena/api/rest"
	"github.com/sketchmon/arena/api/sse"
	apiws "github.com/sketchmon/arena/api/ws"
	"github.com/sketchmon/arena/audit"
	"github.com/sketchmon/arena/cache"
	"github.com/sketchmon/arena/config"
	dbadapter "github.com/sketchmon/arena/db"
	"github.com/sketchmon/arena/game/analyze"
	"github.com/sketchmon/arena/game/arena"
	mw "github.com/sketchmon/arena/middleware"
	"github.com/sketchmon/arena/model"
	"github.com/sketchmon/arena/plugin/hook"
	"github.com/sketchmon/arena/resource"
	"github.com/sketchmon/arena/scheduler"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	cfgPath := "config/config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}
	if err := run(cfgPath); err != nil {
		log.Fatal(err)
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger, err := newLogger(cfg.Server.Debug)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logger.Sync()

	if cfg.Server.AdminKey == "" {
		logger.Warn("server.admin_key is not set; admin endpoints are disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---- Database ----
	db, err := dbadapter.OpenWithLogger(cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	if err := model.AutoMigrate(db); err != nil {
		return fmt.Errorf("db migrate: %w", err)
	}
	logger.Info("DB initialized", zap.String("mode", cfg.Database.Mode))

	// ---- Audit ----
	auditSvc := audit.New(db, logger)
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := auditSvc.Stop(flushCtx); err != nil {
			logger.Warn("audit flush incomplete", zap.Error(err))
		}
	}()

	// ---- Cache / PubSub ----
	c, pubsub, err := cache.Open(cfg.Cache)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer c.Close()
	defer pubsub.Close()
	logger.Info("Cache initialized", zap.Bool("redis", cfg.Cache.RedisAddr != ""))

	// ---- Move catalog ----
	catalog, err := resource.LoadCatalog(cfg.Game.CatalogPath)
	if err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	repo := arena.NewGormRepository(db)
	if err := repo.SyncCatalog(ctx, catalog); err != nil {
		return fmt.Errorf("catalog sync: %w", err)
	}
	logger.Info("Move catalog loaded", zap.Int("moves", len(catalog.Moves)))

	// ---- Hooks ----
	hooks := hook.NewHookCenter()
	hooks.SetErrorHandler(func(event, name string, err error) {
		logger.Warn("hook failed",
			zap.String("event", event),
			zap.String("hook", name),
			zap.Error(err))
	})

	// ---- Services ----
	battleSvc := arena.NewService(repo, catalog, c, pubsub, cfg.Game, logger).
		WithHooks(hooks).
		WithAudit(auditSvc)

	var analyzer analyze.Analyzer
	if cfg.AI.APIKey != "" {
		gemini, err := analyze.NewGeminiAnalyzer(ctx, cfg.AI, logger)
		if err != nil {
			return fmt.Errorf("gemini: %w", err)
		}
		defer gemini.Close()
		analyzer = gemini
		logger.Info("Sketch analysis enabled", zap.String("model", cfg.AI.Model))
	} else {
		logger.Warn("ai.api_key is not set; every sketch gets the fallback stats")
	}

	rankH := apirest.NewRankingHandler(db, c, cfg.Game.LeaderboardSize, logger)
	hooks.Register(hook.OnBattleEnd, 100, "ranking", rankH.RecordWin)

	// ---- Scheduler ----
	sched := scheduler.New(logger)
	defer sched.Stop()
	sched.Every("leaderboard_refresh", cfg.Game.LeaderboardRefresh, func(tctx context.Context) error {
		n, err := rankH.Refresh(tctx)
		if err != nil {
			return err
		}
		logger.Debug("leaderboard refreshed", zap.Int("entries", n))
		return nil
	})
	if err := sched.RunNow(ctx, "leaderboard_refresh"); err != nil {
		logger.Warn("initial leaderboard refresh", zap.Error(err))
	}

	// ---- Gin HTTP Server ----
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(logger, "/health"), mw.Recovery(logger))
	r.Use(mw.RateLimit(rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst))

	monsterH := apirest.NewMonsterHandler(db, analyzer, catalog.Traits, cfg.AI.MaxUploadBytes, logger).
		WithHooks(hooks).
		WithAudit(auditSvc)
	api.Register(r, api.Handlers{
		Auth:    apirest.NewAuthHandler(db, c, cfg.Security),
		Monster: monsterH,
		Battle:  apirest.NewBattleHandler(battleSvc, cfg.Game.StartEnergy, logger),
		Ranking: rankH,
		Admin:   apirest.NewAdminHandler(db, c, sched, logger),
		SSE:     sse.NewHandler(battleSvc, pubsub, cfg.Security.AllowedOrigins, logger),
		WS:      apiws.NewHandler(battleSvc, pubsub, cfg.Security.AllowedOrigins, logger),
	}, cfg, c)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return serve(ctx, srv, logger)
}

// serve runs srv until ctx ends or the listener fails. A listener failure
// is returned; a cancelled ctx shuts the server down gracefully.
func serve(ctx context.Context, srv *http.Server, logger *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	logger.Info("Server listening", zap.String("addr", srv.Addr))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}
	logger.Info("shutdown initiated")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
		_ = srv.Close()
	}
	logger.Info("server shutdown complete")
	return nil
}
