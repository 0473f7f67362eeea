package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/playmatatu/bumper/internal/api"
	"github.com/playmatatu/bumper/internal/config"
	"github.com/playmatatu/bumper/internal/database"
	"github.com/playmatatu/bumper/internal/game"
	"github.com/playmatatu/bumper/internal/middleware"
	"github.com/playmatatu/bumper/internal/migrations"
	"github.com/playmatatu/bumper/internal/observability"
	"github.com/playmatatu/bumper/internal/redis"
	"github.com/playmatatu/bumper/internal/ws"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load()
	observability.InitializeLogger(cfg.Logger)
	defer observability.Sync()
	logger := observability.GetLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
	logger.Info("server stopped cleanly")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	var db *sqlx.DB
	if cfg.DatabaseURL != "" {
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		conn, err := database.Connect(connectCtx, cfg.DatabaseURL)
		cancel()
		if err != nil {
			return err
		}
		db = conn
		defer db.Close()

		if cfg.MigrateOnStart {
			logger.Info("running database migrations")
			if err := migrations.RunMigrations(cfg.DatabaseURL, "migrations", logger); err != nil {
				return err
			}
		}
	} else {
		logger.Warn("DATABASE_URL empty, match history is not persisted")
	}

	var rdb *goredis.Client
	if cfg.RedisURL != "" {
		connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		client, err := redis.Connect(connectCtx, cfg.RedisURL)
		cancel()
		if err != nil {
			return err
		}
		rdb = client
		defer rdb.Close()
	} else {
		logger.Warn("REDIS_URL empty, snapshots and turn deadlines are disabled")
	}

	mm := game.NewMatchManager(db, rdb, cfg, logger)
	hub := ws.NewHub(mm, logger)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(logger))
	api.SetupRoutes(router, mm, hub, cfg, logger)

	port := cfg.Port
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		mm.StartExpiryChecker(gctx, time.Minute)
		return nil
	})
	g.Go(func() error {
		game.StartTurnWorker(gctx, mm)
		return nil
	})
	hub.StartMatchEventSubscriber(gctx, rdb)

	g.Go(func() error {
		logger.Info("starting bumper server", zap.String("port", port), zap.String("environment", cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
