package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/ecomxpert/storefront/backend/internal/cache"
	"github.com/ecomxpert/storefront/backend/internal/config"
	"github.com/ecomxpert/storefront/backend/internal/handler"
	"github.com/ecomxpert/storefront/backend/internal/middleware"
	cartService "github.com/ecomxpert/storefront/backend/internal/service/cart"
	chatService "github.com/ecomxpert/storefront/backend/internal/service/chat"
	geoService "github.com/ecomxpert/storefront/backend/internal/service/geo"
	"github.com/ecomxpert/storefront/backend/internal/service/marketplace"
	"github.com/ecomxpert/storefront/backend/internal/service/sales"
	"github.com/ecomxpert/storefront/backend/pkg/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.L().Fatal().Err(err).Msg("failed to load configuration")
	}

	log.Init(log.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty, Service: "storefront"})
	logger := log.L()
	if envErr != nil {
		logger.Info().Msg("no .env file, continuing with system environment variables only")
	}

	client := marketplace.New(cfg.Marketplace.BaseURL, cfg.Marketplace.AssetURL, cfg.Marketplace.Timeout)

	var geoCache cache.Cache = cache.NewMemoryCache()
	if cfg.Redis.Enabled() {
		redisCache, err := cache.NewRedisCache(cfg.Redis, "storefront:geo:")
		if err != nil {
			logger.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unavailable, using in-memory geo cache")
		} else {
			geoCache = redisCache
			logger.Info().Str("addr", cfg.Redis.Addr).Msg("geo cache backed by redis")
		}
	}
	defer geoCache.Close()

	chatSvc := chatService.NewService(client, chatService.Options{
		MaxOpen:        cfg.Chat.MaxOpenSessions,
		MaxAttachments: cfg.Chat.MaxAttachments,
		IdleTTL:        cfg.Chat.IdleTTL,
	})
	poller := chatService.NewPoller(chatSvc, chatService.PollerConfig{
		Interval:      cfg.Chat.PollInterval,
		InboxInterval: cfg.Chat.InboxInterval,
		Concurrency:   cfg.Chat.PollConcurrency,
	})

	geoSvc := geoService.NewService(
		geoService.NewPSGC(cfg.Geo.PSGCBaseURL, nil),
		geoService.NewNominatim(cfg.Geo.NominatimBaseURL, cfg.Geo.UserAgent, nil),
		geoCache,
		cfg.Geo.CacheTTL,
	)

	limiter := middleware.NewRateLimiter(cfg.RateLimit)
	editor := cartService.NewEditor(client, cartService.DefaultDedupeWindow)

	router := handler.NewRouter(handler.Deps{
		Config:      cfg,
		Marketplace: client,
		Chat:        chatSvc,
		Cart:        editor,
		Geo:         geoSvc,
		Sales:       sales.NewExporter(client),
		Limiter:     limiter,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := poller.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		limiter.Run(gctx)
		return nil
	})
	g.Go(func() error {
		editor.Run(gctx, cfg.Chat.DraftTTL)
		return nil
	})
	g.Go(func() error {
		logger.Info().
			Str("addr", cfg.Server.Addr).
			Str("marketplace", cfg.Marketplace.BaseURL).
			Msg("storefront backend listening")
		return runServer(gctx, srv)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server error")
	}

	// 等待后台投递结束，避免丢失已显示为发送中的消息
	chatSvc.Wait()
	logger.Info().Msg("shutdown complete")
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
