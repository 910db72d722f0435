package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"starboard-bot/internal/api"
	"starboard-bot/internal/config"
	"starboard-bot/internal/discord"
	"starboard-bot/internal/gateway"
	"starboard-bot/internal/logging"
	"starboard-bot/internal/redis"
	"starboard-bot/internal/starboard"
	"starboard-bot/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting_service", "service", "starboard-bot", "http_addr", cfg.HTTPAddr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// entity cache is optional; without redis every resolution is a fetch
	var cache *redis.Client
	if cfg.RedisDSN != "" {
		cache, err = redis.New(cfg.RedisDSN)
		if err != nil {
			logger.Error("redis_connect_failed", "error", err)
			os.Exit(1)
		}
		defer cache.Close()
	} else {
		logger.Info("redis_not_configured", "entity_cache", "disabled")
	}

	store, cleanup, err := buildStore(ctx, cfg)
	if err != nil {
		logger.Error("store_init_failed", "backend", cfg.StoreBackend, "error", err)
		os.Exit(1)
	}
	if cleanup != nil {
		defer cleanup()
	}

	client := discord.NewClient(logger, cfg.BotToken, cache)

	svc, err := starboard.New(logger, client, store, starboard.Options{
		Emoji:      cfg.DefaultEmoji,
		Threshold:  cfg.DefaultThreshold,
		SelfStar:   cfg.DefaultSelfStar,
		StarBotMsg: cfg.DefaultStarBotMsg,
	})
	if err != nil {
		logger.Error("starboard_init_failed", "error", err)
		os.Exit(1)
	}

	// Observability subscriber: the decision to mirror a message is the
	// host's; this binary just reports crossings.
	svc.Bus.Subscribe(starboard.EventReactionAdd, func(ev starboard.Event) {
		if ev.MeetsThreshold() {
			logger.Info("starboard_threshold_met",
				"channel_id", ev.Message.ChannelID,
				"message_id", ev.Message.ID,
				"emoji", ev.Emoji,
				"count", ev.Count,
				"threshold", ev.Config.Options.Threshold,
			)
		}
	})

	// A malformed store is fatal: running with a partial config set would
	// silently ignore starboards.
	if err := svc.Start(ctx); err != nil {
		var formatErr *starboard.StorageFormatError
		if errors.As(err, &formatErr) {
			logger.Error("storage_format_error", "source", formatErr.Source, "error", formatErr.Err)
		} else {
			logger.Error("starboard_start_failed", "error", err)
		}
		os.Exit(1)
	}

	gw := gateway.NewManager(cfg.BotToken, svc.Normalizer.Enqueue, logger)
	if err := gw.Start(ctx); err != nil {
		logger.Error("gateway_start_failed", "error", err)
		os.Exit(1)
	}

	apiServer := api.NewServer(logger, cfg, svc.Registry)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http_server_failed", "error", err)
		}
	}()

	logger.Info("service_started", "starboards", len(svc.Registry.All()))

	stop := make(chan os.Signal, 2)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting_down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	gw.Close()
	logger.Info("gateway_closed")

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http_shutdown_error", "error", err)
	}

	cancel()
	logger.Info("service_stopped")
}

// buildStore picks the config persistence backend. The returned cleanup may
// be nil.
func buildStore(ctx context.Context, cfg config.Config) (starboard.ConfigStore, func(), error) {
	switch cfg.StoreBackend {
	case config.StoreNone:
		return nil, nil, nil

	case config.StoreFile:
		return storage.NewFileStore(cfg.StorePath), nil, nil

	case config.StorePostgres:
		store, err := storage.NewPostgresStore(ctx, cfg.DBDSN)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil

	case config.StoreS3:
		store, err := storage.NewS3Store(ctx, storage.S3Config{
			Endpoint: cfg.S3Endpoint,
			Bucket:   cfg.S3Bucket,
			Key:      cfg.S3Key,
			Region:   cfg.S3Region,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	}

	return nil, nil, errors.New("unknown store backend: " + cfg.StoreBackend)
}
