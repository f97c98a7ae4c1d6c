// The auditor tails the order event stream and records every event into
// the order_events table. It sits outside the request path: the API
// never waits on it.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"golang.org/x/sync/errgroup"

	"github.com/wearagain/thriftmarket/internal/config"
	kafkax "github.com/wearagain/thriftmarket/internal/kafka"
	"github.com/wearagain/thriftmarket/internal/orders"
	"github.com/wearagain/thriftmarket/internal/postgres"
	"github.com/wearagain/thriftmarket/internal/redisx"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	if len(cfg.KafkaBrokers) == 0 {
		slog.Error("KAFKA_BROKERS is required for the auditor")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		slog.Error("db connect", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := postgres.InitSchema(ctx, db); err != nil {
		slog.Error("schema init", "error", err)
		os.Exit(1)
	}

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	audit := &orders.AuditRepo{DB: db}
	handler := auditHandler(audit, rdb)

	group := getenv("AUDITOR_GROUP", "order-auditor")
	workers := getint("AUDITOR_WORKERS", 4)

	g, gctx := errgroup.WithContext(ctx)
	for _, topic := range []string{orders.TopicOrderPlaced, orders.TopicOrderStatusChanged} {
		cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, topic, workers)
		slog.Info("auditor consumer started", "group", group, "topic", topic, "workers", workers)
		g.Go(func() error { return cons.Start(gctx, handler) })
	}

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		slog.Info("shutting down auditor...")
		cancel()
	}()

	if err := g.Wait(); err != nil {
		slog.Error("consumer exit", "error", err)
		os.Exit(1)
	}
}

// auditHandler decodes an envelope, dedups by event id, and records it.
func auditHandler(audit *orders.AuditRepo, rdb *redis.Client) kafkax.Handler {
	return func(ctx context.Context, m kafkago.Message) error {
		var env orders.Envelope
		if err := json.Unmarshal(m.Value, &env); err != nil {
			// Poison message: log and commit past it.
			slog.Warn("skipping undecodable event", "error", err)
			return nil
		}

		dkey := fmt.Sprintf(redisx.KeyDedup, "auditor", env.EventID)
		if seen, _ := redisx.Exists(ctx, rdb, dkey); seen {
			return nil
		}

		if err := audit.Record(ctx, env); err != nil {
			return err
		}
		_ = rdb.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
		return nil
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
