package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/bytelense/backend/config"
	httpDelivery "github.com/bytelense/backend/internal/delivery/http"
	"github.com/bytelense/backend/internal/domain"
	"github.com/bytelense/backend/internal/infrastructure/cache"
	"github.com/bytelense/backend/internal/infrastructure/imageanalyzer"
	"github.com/bytelense/backend/internal/infrastructure/llm"
	"github.com/bytelense/backend/internal/infrastructure/metrics"
	"github.com/bytelense/backend/internal/infrastructure/openfoodfacts"
	"github.com/bytelense/backend/internal/infrastructure/searxng"
	"github.com/bytelense/backend/internal/infrastructure/storage"
	"github.com/bytelense/backend/internal/infrastructure/usda"
	"github.com/bytelense/backend/internal/logging"
	"github.com/bytelense/backend/internal/usecase"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "bytelense-server",
		Short: "Bytelense food scanning backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			var paths []string
			if configPath != "" {
				paths = append(paths, configPath)
			}
			cfg, err := config.Load(paths...)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg)
		},
		SilenceUsage: true,
	}
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to a config file")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info().
		Str("version", httpDelivery.Version).
		Str("environment", cfg.Server.Environment).
		Str("port", cfg.Server.Port).
		Msg("starting Bytelense backend")

	recorder := metrics.New()

	memoryCache := cache.NewMemoryCache(cache.Options{
		CleanupInterval: cfg.Cache.CleanupInterval,
		MaxEntries:      cfg.Cache.MaxEntries,
	})
	defer memoryCache.Close()

	// Nutrition lookup chain: barcode, then text search, then USDA when a key is configured
	matcher := usecase.NewMatchingService(usecase.MatchConfig{
		MinConfidenceThreshold: cfg.Matching.MinConfidenceThreshold,
		EnableFuzzyMatching:    cfg.Matching.EnableFuzzyMatching,
	}, logger)
	preprocessor := usecase.NewQueryPreprocessor(logger)

	offClient := openfoodfacts.NewClient(openfoodfacts.Config{
		BaseURL:   cfg.OpenFoodFacts.BaseURL,
		Timeout:   cfg.OpenFoodFacts.Timeout,
		RateLimit: cfg.RateLimit.OpenFoodFacts,
	}, logger)

	providers := []domain.NutritionProvider{
		usecase.NewOpenFoodFactsBarcodeProvider(offClient),
		usecase.NewOpenFoodFactsSearchProvider(offClient, matcher),
	}

	usdaEnabled := cfg.USDA.APIKey != ""
	if usdaEnabled {
		usdaClient := usda.NewClient(cfg.USDA.APIKey, cfg.USDA.BaseURL, logger)
		usdaClient.SetTimeout(cfg.USDA.Timeout)
		usdaClient.SetRateLimit(cfg.RateLimit.USDA)
		providers = append(providers, usecase.NewUSDASearchProvider(usdaClient, matcher, preprocessor))
	} else {
		logger.Warn().Msg("USDA API key not configured, USDA lookups disabled")
	}

	nutritionService := usecase.NewNutritionService(memoryCache, providers, recorder, logger, usecase.NutritionServiceConfig{
		CacheTTL:        cfg.Cache.TTL,
		ProviderTimeout: cfg.OpenFoodFacts.Timeout,
	})

	searchClient := searxng.NewClient(searxng.Config{
		BaseURL:   cfg.SearXNG.BaseURL,
		Timeout:   cfg.SearXNG.Timeout,
		RateLimit: cfg.RateLimit.SearXNG,
	}, logger)

	var agent *usecase.ScoringAgent
	if cfg.LLM.Enabled {
		model, err := llm.New(ctx, llm.Config{
			Provider:    cfg.LLM.Provider,
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			APIKey:      cfg.LLM.APIKey,
			Timeout:     cfg.LLM.Timeout,
			Temperature: cfg.LLM.Temperature,
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to create language model: %w", err)
		}
		agent = usecase.NewScoringAgent(model, cfg.LLM.MaxIterations, logger)
		logger.Info().Str("provider", cfg.LLM.Provider).Str("model", cfg.LLM.Model).Int("max_iterations", cfg.LLM.MaxIterations).Msg("AI scoring enabled")
	} else {
		logger.Info().Msg("AI scoring disabled, using rule-based scoring")
	}

	scoringService := usecase.NewScoringService(agent, searchClient, recorder, logger, usecase.ScoringServiceConfig{
		AgentTimeout: cfg.LLM.Timeout,
	})

	profileStore, closeStore, err := openProfileStore(cfg.Storage)
	if err != nil {
		return err
	}
	defer closeStore()

	profileService := usecase.NewProfileService(profileStore, nil, logger)

	analyzer := imageanalyzer.NewClient(imageanalyzer.Config{
		BaseURL: cfg.Image.AnalyzerURL,
		Timeout: cfg.Image.Timeout,
	}, logger)

	scanService := usecase.NewScanService(analyzer, nutritionService, profileStore, scoringService, preprocessor, recorder, logger)

	handler := httpDelivery.NewHandler(profileService, scanService, httpDelivery.HandlerOptions{
		MaxImageSizeMB: cfg.Image.MaxSizeMB,
		MaxIterations:  cfg.LLM.MaxIterations,
		Features: httpDelivery.Features{
			AIScoring: cfg.LLM.Enabled,
			USDA:      usdaEnabled,
			WebSearch: cfg.SearXNG.BaseURL != "",
		},
	}, logger)

	router := httpDelivery.SetupRouter(cfg, handler, recorder.Handler(), logger)

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	keepAlive := searxng.NewKeepAlive(searchClient, cfg.SearXNG.KeepAliveInterval, 0, logger)
	keepAlive.OnPing(recorder.KeepAlivePing)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str("addr", server.Addr).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return keepAlive.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("server stopped with error")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

// openProfileStore picks the configured profile backend
func openProfileStore(cfg config.StorageConfig) (domain.ProfileStore, func(), error) {
	switch cfg.Driver {
	case "memory":
		store := storage.NewMemoryProfileStore()
		return store, func() { _ = store.Close() }, nil
	default:
		if cfg.DSN != ":memory:" && !strings.HasPrefix(cfg.DSN, "file:") {
			if err := os.MkdirAll(filepath.Dir(cfg.DSN), 0o755); err != nil {
				return nil, nil, fmt.Errorf("failed to create data directory: %w", err)
			}
		}
		store, err := storage.NewSQLiteProfileStore(cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open profile store: %w", err)
		}
		return store, func() { _ = store.Close() }, nil
	}
}
