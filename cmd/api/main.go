package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/wearagain/thriftmarket/internal/auth"
	"github.com/wearagain/thriftmarket/internal/catalog"
	"github.com/wearagain/thriftmarket/internal/config"
	"github.com/wearagain/thriftmarket/internal/httpx"
	kafkax "github.com/wearagain/thriftmarket/internal/kafka"
	"github.com/wearagain/thriftmarket/internal/orders"
	"github.com/wearagain/thriftmarket/internal/postgres"
	"github.com/wearagain/thriftmarket/internal/redisx"
	"github.com/wearagain/thriftmarket/internal/users"
	"github.com/wearagain/thriftmarket/internal/wishlist"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
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

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers (optional: no brokers, no event stream)
	var placed, statusChanged *kafkax.Producer
	if len(cfg.KafkaBrokers) > 0 {
		placed = kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderPlaced, 1024)
		placed.Start(ctx)
		statusChanged = kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderStatusChanged, 1024)
		statusChanged.Start(ctx)
	}

	tokens := &auth.TokenIssuer{Secret: []byte(cfg.JWTSecret), TTL: cfg.TokenTTL}
	hasher := auth.Hasher{Cost: cfg.BcryptCost}
	userRepo := &users.Repo{DB: db}

	mw := &httpx.AuthMiddleware{Tokens: tokens, Users: userRepo}
	router := httpx.NewRouter(cfg.CORSOrigin)

	ah := &httpx.AuthHandler{Store: userRepo, Tokens: tokens, Hasher: hasher, AdminCode: cfg.AdminCode}
	ah.Register(router, mw)
	ih := &httpx.ItemsHandler{Store: &catalog.Repo{DB: db}, Redis: rdb}
	ih.Register(router, mw)
	oh := &httpx.OrdersHandler{
		Store:          &orders.Repo{DB: db},
		Redis:          rdb,
		PlacedProducer: placed,
		StatusProducer: statusChanged,
		Service:        cfg.ServiceName,
	}
	oh.Register(router, mw)
	wh := &httpx.WishlistsHandler{Store: &wishlist.Repo{DB: db}}
	wh.Register(router, mw)
	uh := &httpx.UsersHandler{Store: userRepo}
	uh.Register(router, mw)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		slog.Info("HTTP listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("listen", "error", err)
			os.Exit(1)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	slog.Info("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)

	// Stop accepting events, then wait for the flush loops to drain.
	// The deferred cancel only fires after both producers are done.
	if placed != nil {
		placed.Close()
		statusChanged.Close()
		placed.WaitClosed()
		statusChanged.WaitClosed()
	}
}
