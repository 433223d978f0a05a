package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"headshot/internal/catalog"
	"headshot/internal/checkout"
	"headshot/internal/domain"
	"headshot/internal/http/handlers"
	httpapi "headshot/internal/http/httpapi"
	"headshot/internal/infra"
	"headshot/internal/infra/credentials"
	"headshot/internal/infra/geoip"
	"headshot/internal/middleware"
	"headshot/internal/providers/genai"
	"headshot/internal/sse"
	"headshot/internal/studio"
	"headshot/internal/unlocks"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		pool, err = infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect database")
		}
		defer pool.Close()
	}

	store, closeStore, err := openUnlockStore(ctx, cfg, pool, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("store", cfg.UnlockStore).Msg("failed to open unlock store")
	}
	defer closeStore()

	var credStore *credentials.Store
	if pool != nil {
		credStore = credentials.NewStore(infra.NewSQLRunner(pool, logger.With().Str("component", "credentials").Logger()))
		if err := credStore.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to prepare credential schema")
		}
	}
	var selector *credentials.Selector
	if credStore != nil {
		selector = credentials.NewSelector(cfg.GeminiAPIKey, cfg.GeminiProAPIKey, credStore)
	} else {
		selector = credentials.NewSelector(cfg.GeminiAPIKey, cfg.GeminiProAPIKey, nil)
	}

	genaiLogger := logger.With().Str("component", "genai").Logger()
	genaiOpts := genai.Options{
		APIKey:         cfg.GeminiAPIKey,
		BaseURL:        cfg.GeminiBaseURL,
		PreviewModel:   cfg.GeminiPreviewModel,
		HighModel:      cfg.GeminiHighModel,
		ValidatorModel: cfg.GeminiValidatorModel,
		Logger:         &genaiLogger,
	}
	if credStore != nil || cfg.GeminiProAPIKey != "" {
		genaiOpts.Keys = selector
	}
	editor, err := genai.NewClient(genaiOpts)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build gemini client")
	}
	var keys studio.KeySelector
	if editor.Synthetic() {
		logger.Warn().Msg("no Gemini API key configured, serving synthetic images")
	} else {
		keys = selector
	}

	hubLogger := logger.With().Str("component", "sse").Logger()
	hub := sse.NewHub(&hubLogger)
	go hub.Run(ctx)

	studioLogger := logger.With().Str("component", "studio").Logger()
	mode := domain.ParseUnlockMode(cfg.UnlockMode)
	registry := studio.NewRegistry(studio.Deps{
		Catalog:        catalog.Default(),
		Editor:         editor,
		Validator:      editor,
		Unlocks:        store,
		Keys:           keys,
		Notifier:       hub,
		Logger:         &studioLogger,
		Mode:           mode,
		Policy:         studio.ParseBatchPolicy(cfg.GenerateAllPolicy),
		BatchDelay:     cfg.GenerateAllDelay,
		MaxSourceBytes: cfg.MaxUploadBytes,
	}, cfg.SessionTTL)
	go registry.Run(ctx)

	pricing := checkout.NewPricing()
	var provider checkout.Provider
	if cfg.CheckoutEnabled() {
		checkoutLogger := logger.With().Str("component", "checkout").Logger()
		stripeProvider, err := checkout.NewStripeProvider(checkout.StripeOptions{
			SecretKey:     cfg.StripeSecretKey,
			WebhookSecret: cfg.StripeWebhookSecret,
			AppURL:        cfg.AppURL,
			Pricing:       pricing,
			Logger:        &checkoutLogger,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure checkout")
		}
		provider = stripeProvider
	} else if mode == domain.UnlockPaywall {
		logger.Warn().Msg("paywall mode without STRIPE_SECRET_KEY, purchases are disabled")
	}

	var lookup middleware.CountryLookup
	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	} else if resolver != nil {
		lookup = resolver.CountryCode
		defer resolver.Close()
	}

	app := handlers.NewApp(handlers.Options{
		Sessions:       registry,
		Catalog:        catalog.Default(),
		Events:         hub,
		Checkout:       provider,
		Pricing:        pricing,
		Logger:         &logger,
		Mode:           mode,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Synthetic:      editor.Synthetic(),
		Background:     ctx,
	})
	router := httpapi.NewRouter(app, httpapi.RouterOptions{
		Logger:          logger,
		AllowedOrigins:  cfg.AllowedOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		CountryLookup:   lookup,
	})

	server := infra.NewHTTPServer(cfg, router)
	logger.Info().
		Str("addr", server.Addr()).
		Str("unlock_mode", string(mode)).
		Str("unlock_store", cfg.UnlockStore).
		Bool("checkout", provider != nil).
		Msg("API listening")
	if err := server.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("http server failed")
	}
	logger.Info().Msg("server stopped")
}

func openUnlockStore(ctx context.Context, cfg *infra.Config, pool *pgxpool.Pool, logger infra.Logger) (studio.UnlockStore, func(), error) {
	noop := func() {}
	switch cfg.UnlockStore {
	case "postgres":
		if pool == nil {
			return nil, noop, fmt.Errorf("postgres unlock store requires DATABASE_URL")
		}
		pg := unlocks.NewPostgresStore(infra.NewSQLRunner(pool, logger.With().Str("component", "unlocks").Logger()))
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, noop, err
		}
		return pg, noop, nil
	case "redis":
		rdb, err := unlocks.DialRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, noop, err
		}
		return unlocks.NewRedisStore(rdb, cfg.UnlockTTL), func() { _ = rdb.Close() }, nil
	default:
		return unlocks.NewMemoryStore(), noop, nil
	}
}
