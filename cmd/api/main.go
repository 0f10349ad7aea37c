package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"posterstudio/internal/adapter/repo"
	"posterstudio/internal/auth"
	"posterstudio/internal/cache"
	"posterstudio/internal/domain"
	"posterstudio/internal/generation"
	"posterstudio/internal/http/handlers"
	httpapi "posterstudio/internal/http/httpapi"
	"posterstudio/internal/infra"
	"posterstudio/internal/infra/credentials"
	"posterstudio/internal/providers/image"
	"posterstudio/internal/storage"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, cfg.Debug)

	ctx := context.Background()

	shutdownTracing, err := infra.InitTracing(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init tracing")
	}

	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	runner := infra.NewSQLRunner(dbpool, logger)

	var themes domain.ThemeRepository = repo.NewThemeRepository(runner)
	if cfg.RedisURL != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, theme cache disabled")
		} else {
			defer rdb.Close()
			themes = cache.NewThemeRepository(themes, rdb, cache.DefaultThemeTTL, logger)
		}
	}
	generations := repo.NewGenerationRepository(runner)

	store, files, err := storage.FromConfig(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init object storage")
	}

	provider, err := buildProvider(ctx, cfg, credentials.NewStore(runner), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init image provider")
	}

	authn, err := buildAuthenticator(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init authentication")
	}

	svc := generation.NewService(themes, generations, store, provider, logger, generation.Options{})

	app := &handlers.App{
		Logger:      logger,
		Themes:      themes,
		Generations: svc,
		Admins:      auth.NewAdminAllowlist(cfg.AdminEmails),
		DB:          dbpool,
		Files:       files,
	}

	router := httpapi.NewRouter(app, httpapi.Options{
		Logger:             logger,
		Authenticator:      authn,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		TrustedProxies:     cfg.TrustedProxies,
		StartRateLimit:     cfg.RateLimitPerMin,
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().
			Str("storage", cfg.StorageDriver).
			Bool("theme_cache", cfg.RedisURL != "").
			Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	// in-flight generations may hold a request for the full hard timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), generation.DefaultHardTimeout+5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to flush traces")
	}
	logger.Info().Msg("server stopped")
}

// buildProvider falls back to the key stored in integration_tokens when the
// environment does not carry one.
func buildProvider(ctx context.Context, cfg *infra.Config, creds *credentials.Store, logger zerolog.Logger) (image.Generator, error) {
	pc := cfg.Provider
	if pc.APIURL != "" && pc.APIKey == "" {
		lookupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		key, err := creds.ProviderAPIKey(lookupCtx)
		cancel()
		if err != nil {
			logger.Warn().Err(err).Msg("failed to load stored provider key")
		}
		pc.APIKey = key
	}
	return image.New(image.OptionsFromConfig(pc, logger))
}

func buildAuthenticator(cfg *infra.Config) (auth.Authenticator, error) {
	if cfg.SupabaseJWTSecret != "" {
		return auth.NewJWTVerifier(cfg.SupabaseJWTSecret)
	}
	return auth.NewGoTrueVerifier(cfg.SupabaseURL, cfg.SupabaseServiceRoleKey)
}
