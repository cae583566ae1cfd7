package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/richardliu001/board-service/internal/bus"
	"github.com/richardliu001/board-service/internal/config"
	"github.com/richardliu001/board-service/internal/logger"
	"github.com/richardliu001/board-service/internal/relay"
	"github.com/richardliu001/board-service/internal/repo"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/segmentio/kafka-go"
)

func main() {
	cfg, err := config.Load("internal/config/config.yaml")
	if err != nil {
		panic(fmt.Errorf("load config: %w", err))
	}

	log, err := logger.NewLogger(cfg.Log.Level)
	if err != nil {
		panic(fmt.Errorf("init logger: %w", err))
	}
	defer log.Sync()

	gdb, err := gorm.Open(postgres.Open(cfg.Postgres.DSN), &gorm.Config{PrepareStmt: true})
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}

	// no fixed Topic: every message names the topic of its event kind
	kw := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Kafka.Brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
	defer kw.Close()

	pub := bus.NewPublisher(kw, bus.Topics{
		UserRegistration: cfg.Kafka.UserTopic,
		MessagePosting:   cfg.Kafka.MessageTopic,
		BoardCreation:    cfg.Kafka.BoardQueue,
	}, log)
	r := relay.New(repo.NewRepository(gdb, log), pub, cfg.Outbox.BatchSize, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("board-poller started")
	if err := r.Run(ctx, cfg.Outbox.PollInterval); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("relay: %v", err)
	}
}
