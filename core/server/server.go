package server

import (
	"classroom-api/core/cache"
	"classroom-api/core/config"
	"classroom-api/core/controller"
	"classroom-api/core/database"
	"classroom-api/core/logger"
	"classroom-api/core/middleware"
	"classroom-api/core/queue"
	"classroom-api/modules/auth"
	"classroom-api/modules/calendar"
	"classroom-api/modules/chat"
	"classroom-api/modules/classes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
)

// Run starts the HTTP API, the task worker and the reminder scheduler, and
// blocks until SIGINT or SIGTERM.
func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.InitDB(database.DatabaseConfig{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.Database.RunMigrations {
		if err := db.Migrate(ctx); err != nil {
			return err
		}
	}

	redisCache, err := cache.NewRedisCache(ctx, cache.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return err
	}
	defer redisCache.Close()

	redisOpt := asynq.RedisClientOpt{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}
	queueClient := queue.NewClient(redisOpt)
	defer queueClient.Close()
	worker := queue.NewWorker(redisOpt, cfg.Scheduler.WorkerConcurrency)

	gateway, expander, err := calendar.Init(ctx, cfg.GoogleAPI)
	if err != nil {
		return err
	}
	loc := gateway.Location()

	e := echo.New()
	e.HideBanner = true
	e.Validator = controller.NewRequestValidator()
	e.Use(echoMiddleware.RequestID())
	e.Use(echoMiddleware.Recover())
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	mw := middleware.NewMiddleware(redisCache)
	identity := auth.Init(e, db, redisCache, mw)
	chatService := chat.Init(cfg.Matrix, queueClient, worker, identity, loc)
	reminders := classes.Init(e, mw, classes.Deps{
		DB:        db,
		Cache:     redisCache,
		Gateway:   gateway,
		Expander:  expander,
		Identity:  identity,
		Chat:      chatService,
		Queue:     queueClient,
		Worker:    worker,
		Storage:   cfg.Storage,
		Scheduler: cfg.Scheduler,
		Location:  loc,
	})

	if err := worker.Start(); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}
	defer worker.Shutdown()

	if err := reminders.Start(); err != nil {
		return err
	}

	serveErr := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		logger.Info("Server:Run:Listening", "addr", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Server:Run:ShuttingDown")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout(cfg.Server))
	defer cancel()

	reminders.Stop(shutdownCtx)
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func shutdownTimeout(cfg config.ServerConfig) time.Duration {
	if cfg.ShutdownTimeout <= 0 {
		return 10 * time.Second
	}
	return cfg.ShutdownTimeout
}
