package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/richardliu001/board-service/internal/broadcast"
	"github.com/richardliu001/board-service/internal/bus"
	"github.com/richardliu001/board-service/internal/config"
	"github.com/richardliu001/board-service/internal/event"
	"github.com/richardliu001/board-service/internal/logger"
	"github.com/richardliu001/board-service/internal/processor"
	"github.com/richardliu001/board-service/internal/push"
	"github.com/richardliu001/board-service/internal/registry"
	"github.com/richardliu001/board-service/internal/repo"

	"github.com/go-redis/redis/v8"
	"golang.org/x/sync/errgroup"
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

	// 5. fan-out
	reg := registry.NewRedisRegistry(rdb, cfg.Registry.ConnectionTTL, cfg.Registry.RemovalGrace, log)
	gateway := push.NewGatewayClient(cfg.Push.GatewayURL, &http.Client{Timeout: cfg.Push.SendTimeout})
	notifier := broadcast.New(reg, gateway, broadcast.Config{
		SendTimeout: cfg.Push.SendTimeout,
		MaxInFlight: cfg.Push.MaxInFlight,
	}, log)

	// 6. processors
	proc := processor.New(processor.Deps{
		Store:    repo.NewRepository(gdb, log),
		Notifier: notifier,
		Log:      log,
	})

	// 7. one consumer group per topic
	sources := []struct {
		topic string
		kind  event.Kind
	}{
		{cfg.Kafka.UserTopic, event.KindUserRegistration},
		{cfg.Kafka.MessageTopic, event.KindMessagePosting},
		{cfg.Kafka.BoardQueue, event.KindBoardCreation},
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, src := range sources {
		c := bus.NewConsumer(bus.ConsumerConfig{
			Brokers:      cfg.Kafka.Brokers,
			GroupID:      cfg.Kafka.GroupID + "." + src.topic,
			Topic:        src.topic,
			Kind:         src.kind,
			EventTimeout: cfg.Processor.EventTimeout,
			Backoff:      cfg.Kafka.RedeliveryBackoff,
		}, log)
		g.Go(func() error { return c.Run(gctx, proc.Handle) })
	}

	log.Info("board-processor started")
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("consumer: %v", err)
	}
}
