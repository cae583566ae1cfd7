package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/richardliu001/board-service/internal/config"
	"github.com/richardliu001/board-service/internal/logger"
	"github.com/richardliu001/board-service/internal/push"
	"github.com/richardliu001/board-service/internal/registry"
	"github.com/richardliu001/board-service/internal/repo"
	"github.com/richardliu001/board-service/internal/service"
	httptransport "github.com/richardliu001/board-service/internal/transport/http"

	"github.com/go-redis/redis/v8"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	// 1. load config
	cfg, err := config.Load("internal/config/config.yaml")
	if err != nil {
		panic(fmt.Errorf("load config: %w", err))
	}

	// 2. init logger
	log, err := logger.NewLogger(cfg.Log.Level)
	if err != nil {
		panic(fmt.Errorf("init logger: %w", err))
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. postgres
	gdb, err := gorm.Open(postgres.Open(cfg.Postgres.DSN), &gorm.Config{PrepareStmt: true})
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}
	if err := repo.Migrate(gdb); err != nil {
		log.Fatalf("auto-migrate: %v", err)
	}

	// 4. redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("redis ping: %v", err)
	}

	// 5. repo, registry, hub & service
	repository := repo.NewRepository(gdb, log)
	reg := registry.NewRedisRegistry(rdb, cfg.Registry.ConnectionTTL, cfg.Registry.RemovalGrace, log)
	hub := push.NewHub(cfg.Push.WriteBufferSize, log)
	svc := service.NewBoardService(repository, log)

	// 6. gin router
	router := httptransport.NewRouter(svc, reg, hub, httptransport.Options{
		RateLimit:       cfg.RateLimit,
		Gateway:         cfg.Push.AdvertiseURL,
		RegistryRefresh: cfg.Registry.RefreshInterval,
	}, log)

	// 7. serve
	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Server.Port), Handler: router}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Infof("board-server listening on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("listen: %v", err)
	}
}
