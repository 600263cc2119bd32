package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"dealfinder/internal/config"
	"dealfinder/internal/enrich"
	"dealfinder/internal/fetch"
	"dealfinder/internal/metrics"
	"dealfinder/internal/publisher"
	"dealfinder/internal/scheduler"
	"dealfinder/internal/service"
	"dealfinder/internal/source/okkazeo"
	"dealfinder/internal/source/reviews"
	"dealfinder/internal/source/shops"
	"dealfinder/internal/storage/postgres"
	"dealfinder/internal/sweeper"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := setupLogger("info")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg.LogLevel)

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
		URL:        cfg.RabbitMQ.URL,
		Exchange:   cfg.RabbitMQ.Exchange,
		RoutingKey: cfg.RabbitMQ.RoutingKey,
		QueueName:  cfg.RabbitMQ.QueueName,
	}, logger)
	if err != nil {
		logger.Error("failed to connect to rabbitmq", "error", err)
		os.Exit(1)
	}
	defer rabbitMQ.Close()

	listingStore := postgres.NewListingStore(db)
	sellerStore := postgres.NewSellerStore(db)
	txManager := postgres.NewTransactionManager(db)

	client := fetch.New(fetch.Config{
		RequestsPerMinute: cfg.Fetch.RequestsPerMinute,
		Timeout:           cfg.Fetch.Timeout,
		ProxyFile:         cfg.Fetch.ProxyFile,
		UserAgent:         cfg.Fetch.UserAgent,
	}, logger)

	marketplace := okkazeo.New(okkazeo.Config{
		BaseURL:  cfg.Marketplace.BaseURL,
		FeedPath: cfg.Marketplace.FeedPath,
	}, client, logger)

	priceSources := []enrich.PriceSource{
		shops.NewPhilibert(client, logger),
		shops.NewAgorajeux(client, logger),
		shops.NewUltrajeux(client, logger),
		shops.NewLudocortex(client, logger),
	}
	reviewSources := []enrich.ReviewSource{
		reviews.NewBGG(client, logger),
		reviews.NewTricTrac(client, logger),
	}

	enricher := enrich.New(marketplace, priceSources, reviewSources, logger)
	reconciler := service.NewReconcileService(listingStore, sellerStore, txManager, rabbitMQ, logger)
	poller := service.NewPollService(marketplace, enricher, reconciler, listingStore, logger)

	sched := scheduler.NewScheduler(poller, cfg.Poll.Interval, logger)
	sweep := sweeper.New(listingStore, marketplace, rabbitMQ, cfg.Sweep.Tiers, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	metricsSrv := &http.Server{Addr: cfg.Metrics.Addr, Handler: metrics.Handler()}
	go func() {
		logger.Info("metrics listening", "addr", cfg.Metrics.Addr)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		_ = metricsSrv.Shutdown(context.Background())
	}()

	logger.Info("starting deal finder",
		"marketplace", cfg.Marketplace.BaseURL,
		"poll_interval", cfg.Poll.Interval,
		"sweep_tiers", len(cfg.Sweep.Tiers),
	)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := sched.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("scheduler error", "error", err)
			cancel()
		}
	}()
	go func() {
		defer wg.Done()
		if err := sweep.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("sweeper error", "error", err)
			cancel()
		}
	}()
	wg.Wait()
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
