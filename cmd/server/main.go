package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	_ "github.com/lib/pq"

	"github.com/example/courier-booking/internal/addressbook"
	"github.com/example/courier-booking/internal/booking"
	"github.com/example/courier-booking/internal/config"
	"github.com/example/courier-booking/internal/dispatch"
	"github.com/example/courier-booking/internal/geocode"
	httpapi "github.com/example/courier-booking/internal/http"
	"github.com/example/courier-booking/internal/ingest"
	"github.com/example/courier-booking/internal/location"
	"github.com/example/courier-booking/internal/logging"
	"github.com/example/courier-booking/internal/pricing"
	"github.com/example/courier-booking/internal/storage"
	"github.com/example/courier-booking/internal/upstream"
)

func main() {
	cfg, err := config.LoadServerConfig()
	logger := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	api := upstream.New(cfg.UpstreamBaseURL, cfg.UpstreamToken, cfg.UpstreamTimeout)
	geocoder := geocode.NewClient(cfg.GeocodeBaseURL, cfg.SearchMinLength, cfg.GeocodeTimeout, logger)

	var cache location.CacheStore
	if cfg.RedisAddr != "" {
		cache = location.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisCacheKey, cfg.CacheTTL)
		logger.Info("using redis location cache", "addr", cfg.RedisAddr)
	} else {
		cache = location.NewMemoryCache()
	}
	resolver := location.NewResolver(geocoder, cache, cfg.CacheEpsilonDeg, logger)

	var store storage.OrderStore
	if cfg.PGDSN != "" {
		if cfg.RunMigrations {
			runMigrations(cfg.PGDSN, logger)
		}
		ps, err := storage.NewPostgresStore(cfg.PGDSN)
		if err != nil {
			logger.Error("postgres unavailable", "error", err)
			os.Exit(1)
		}
		store = ps
		logger.Info("using postgres order store")
	} else {
		store = storage.NewMemoryStore()
	}

	var events booking.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		producer := ingest.NewEventProducer(cfg.KafkaBrokers, cfg.KafkaOrderTopic)
		defer producer.Close()
		events = producer
		logger.Info("publishing booking events", "topic", cfg.KafkaOrderTopic)
	}

	manager := booking.NewManager(pricing.NewClient(api), api, store, events, logger)
	directory := addressbook.NewDirectory(api)
	wsreg := dispatch.NewWSRegistry()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if len(cfg.KafkaBrokers) > 0 {
		pusher := dispatch.NewPushDispatcher(cfg.PushEndpoint, cfg.PushKey, wsreg)
		statusConsumer := ingest.NewStatusConsumer(cfg.KafkaBrokers, cfg.KafkaStatusTopic, cfg.KafkaGroup, store, pusher, logger)
		defer statusConsumer.Close()
		go statusConsumer.Run(ctx)
		logger.Info("consuming order status events", "topic", cfg.KafkaStatusTopic)
	}

	srv := httpapi.NewServer(manager, geocoder, resolver, directory, store, wsreg, cfg.SearchDebounce, logger)

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		logger.Info("booking gateway listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

func runMigrations(dsn string, logger *slog.Logger) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		logger.Warn("migration db open error", "error", err)
		return
	}
	defer db.Close()
	b, err := os.ReadFile(filepath.Join("migrations", "001_create_orders.sql"))
	if err != nil {
		logger.Warn("migration read error", "error", err)
		return
	}
	if _, err := db.Exec(string(b)); err != nil {
		logger.Warn("migration exec error", "error", err)
		return
	}
	logger.Info("migration applied", "file", "001_create_orders.sql")
}
