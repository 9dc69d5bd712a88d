package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"

	"github.com/medflow/pharmacy-backend/internal/pharmacy/events"
	"github.com/medflow/pharmacy-backend/internal/pharmacy/handler"
	"github.com/medflow/pharmacy-backend/internal/pharmacy/repository"
	"github.com/medflow/pharmacy-backend/internal/pharmacy/service"
	"github.com/medflow/pharmacy-backend/pkg/clock"
	"github.com/medflow/pharmacy-backend/pkg/config"
	"github.com/medflow/pharmacy-backend/pkg/database"
	"github.com/medflow/pharmacy-backend/pkg/httputil"
	"github.com/medflow/pharmacy-backend/pkg/idgen"
	"github.com/medflow/pharmacy-backend/pkg/lock"
	"github.com/medflow/pharmacy-backend/pkg/logger"
	"github.com/medflow/pharmacy-backend/pkg/messaging"
)

const serviceName = "pharmacy-service"

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(serviceName, cfg.Server.Environment)
	log.Info().Msg("starting Pharmacy Service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	rmq, err := messaging.New(ctx, &cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	publisher, err := events.NewInventoryEventPublisher(rmq, cfg.RabbitMQ.Exchange, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}

	// Receive lock: in-process for a single replica, Redis when scaled out
	var (
		locker lock.Locker
		rdb    *redis.Client
	)
	switch cfg.Inventory.LockBackend {
	case config.LockBackendRedis:
		rdb, err = lock.NewRedisClient(ctx, &cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to Redis")
		}
		defer rdb.Close()
		locker = lock.NewRedis(rdb, "pharmacy:lock:", cfg.Inventory.LockTTL, log)
	default:
		locker = lock.NewLocal()
	}

	store := repository.NewStore(db, cfg.Inventory.LockTimeout)
	engine := service.NewEngine(
		store,
		clock.System{Location: time.UTC},
		idgen.NewULID(),
		locker,
		publisher,
		service.Config{
			ExpiryToleranceDays: cfg.Inventory.ExpiryToleranceDays,
			RecentBatchDays:     cfg.Inventory.RecentBatchDays,
			LockTimeout:         cfg.Inventory.LockTimeout,
		},
		log,
	)

	var scheduler *service.StatusRefreshScheduler
	if cfg.Inventory.StatusRefreshInterval > 0 {
		scheduler = service.NewStatusRefreshScheduler(engine, cfg.Inventory.StatusRefreshInterval, log)
		scheduler.Start(ctx)
	}

	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowOriginFunc: allowOrigin,
		AllowedMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:  []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:  []string{"X-Request-ID"},
		MaxAge:          300,
	}))

	checks := map[string]handler.HealthCheck{
		"database": db.Health,
		"rabbitmq": func(context.Context) map[string]string { return rmq.Health() },
	}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) map[string]string {
			if err := rdb.Ping(ctx).Err(); err != nil {
				return map[string]string{"status": "down", "error": err.Error()}
			}
			return map[string]string{"status": "up"}
		}
	}
	r.Get("/health", handler.Health(serviceName, checks))

	handler.Mount(r, engine, log)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	if scheduler != nil {
		scheduler.Stop()
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

// allowOrigin accepts local frontends and the medflow.de domains.
func allowOrigin(_ *http.Request, origin string) bool {
	switch origin {
	case "http://localhost:3000", "http://localhost:5173", "https://medflow.de":
		return true
	}
	return len(origin) > 11 && origin[len(origin)-11:] == ".medflow.de"
}
