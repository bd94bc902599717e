package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/aurevtech/coder/internal/catalog"
	"github.com/aurevtech/coder/internal/coding"
	"github.com/aurevtech/coder/internal/config"
	"github.com/aurevtech/coder/internal/platform/auth"
	"github.com/aurevtech/coder/internal/platform/db"
	"github.com/aurevtech/coder/internal/platform/middleware"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "coder-server",
		Short: "Medical coding decision API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(catalogCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the coding API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func catalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the reference catalog",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "info",
		Short: "Show the embedded catalog version",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat := catalog.Default()
			fmt.Printf("dataset version: %s\n", cat.Version())
			fmt.Printf("lexicon terms:   %d\n", len(cat.LexiconTerms()))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "seed",
		Short: "Create and populate the reference tables in Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL is required for catalog seed")
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			cat := catalog.Default()
			if err := cat.SeedPG(ctx, pool); err != nil {
				return fmt.Errorf("seed reference tables: %w", err)
			}
			fmt.Printf("seeded reference tables with dataset %s\n", cat.Version())
			return nil
		},
	})

	return cmd
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	// Catalog: Postgres-backed when configured, embedded otherwise. Either
	// way it is frozen before the first request is accepted.
	ctx := context.Background()
	cat := catalog.Default()
	var dbHealth echo.HandlerFunc
	if cfg.DatabaseURL != "" {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()

		cat, err = catalog.LoadPG(ctx, pool)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to load reference catalog")
		}
		logger.Info().Str("dataset", cat.Version()).Msg("loaded reference catalog from database")
		dbHealth = db.HealthHandler(pool)
	} else {
		logger.Info().Str("dataset", cat.Version()).Msg("using embedded reference catalog")
	}

	// Engine
	policy := coding.DefaultPolicy()
	policy.SubmitThreshold = cfg.SubmitThreshold
	policy.ConfidenceFlagThreshold = cfg.ConfidenceThreshold
	policy.FuzzyMinTermLen = cfg.FuzzyMinTermLen
	engine := coding.NewEngine(cat, policy, logger)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
	}))
	if timeout, err := time.ParseDuration(cfg.RequestTimeout); err == nil && timeout > 0 {
		e.Use(middleware.RequestTimeout(timeout))
	}

	// Auth middleware
	if cfg.ResolvedAuthMode() == "development" {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:   cfg.AuthIssuer,
			Audience: cfg.AuthAudience,
			JWKSURL:  cfg.AuthJWKSURL,
		}))
	}

	// API group
	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}))

	handler := coding.NewHandler(engine, cat)
	handler.RegisterRoutes(apiV1)

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":          "ok",
			"version":         coding.Version,
			"dataset":         cat.Version(),
			"capabilities":    coding.Capabilities,
			"supported_modes": coding.SupportedModes,
		})
	})
	if dbHealth != nil {
		e.GET("/health/db", dbHealth)
	}

	// Serve with graceful shutdown
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str("port", cfg.Port).Msg("starting server")
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-quit:
			logger.Info().Str("signal", sig.String()).Msg("shutting down")
		case <-gctx.Done():
			return gctx.Err()
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Error().Err(err).Msg("server exited with error")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
