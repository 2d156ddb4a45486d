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

	"github.com/wardlight/wardlight/internal/config"
	"github.com/wardlight/wardlight/internal/domain/assessment"
	"github.com/wardlight/wardlight/internal/domain/risk"
	"github.com/wardlight/wardlight/internal/platform/auth"
	"github.com/wardlight/wardlight/internal/platform/db"
	"github.com/wardlight/wardlight/internal/platform/middleware"
	"github.com/wardlight/wardlight/internal/platform/modelgateway"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "wardlight-server",
		Short: "Clinical decision support API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

// modelClients resolves the registry's lazily built clients into the
// pipeline interfaces. Unconfigured clients stay nil interfaces rather
// than typed nils, so the orchestrator's nil checks keep working.
func modelClients(reg *modelgateway.Registry) (assessment.LLMClient, assessment.VisionClient, assessment.Transcriber, assessment.Retriever) {
	var (
		llm       assessment.LLMClient
		vision    assessment.VisionClient
		asr       assessment.Transcriber
		retriever assessment.Retriever
	)
	if c := reg.LLM(); c != nil {
		llm = c
	}
	if c := reg.Vision(); c != nil {
		vision = c
	}
	if c := reg.ASR(); c != nil {
		asr = c
	}
	if c := reg.Retriever(); c != nil {
		retriever = c
	}
	return llm, vision, asr, retriever
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
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Model sidecars
	models := modelgateway.NewRegistry(modelgateway.Config{
		LLMURL:       cfg.LLMURL,
		VisionURL:    cfg.VisionURL,
		ASRURL:       cfg.ASRURL,
		RetrieverURL: cfg.RetrieverURL,
		Timeout:      cfg.ModelTimeout,
	})
	llm, vision, asr, retriever := modelClients(models)
	logger.Info().
		Bool("llm", llm != nil).
		Bool("vision", vision != nil).
		Bool("asr", asr != nil).
		Bool("retriever", retriever != nil).
		Msg("model sidecars configured")

	// Assessment pipeline
	orch := assessment.NewOrchestrator(llm, vision, asr, retriever, assessment.OrchestratorOpts{
		TieDelta: cfg.PrimaryBasisTieDelta,
		TopK:     cfg.RagTopK,
		Budget: assessment.EvidenceBudget{
			ItemChars:  cfg.RagEvidenceItemChars,
			TotalChars: cfg.RagEvidenceTotalChars,
		},
	}, logger)
	assessRepo := assessment.NewRepoPG(pool)
	assessSvc := assessment.NewService(assessRepo, orch, logger)
	jobs := assessment.NewJobManager(assessSvc, cfg.AssessTimeout, logger)
	assessHandler := assessment.NewHandler(assessSvc, jobs)

	// Risk engine
	riskRepo := risk.NewRepoPG(pool)
	riskSvc := risk.NewService(riskRepo)
	riskHandler := risk.NewHandler(riskSvc)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit("1M", "25M"))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// API group
	apiV1 := e.Group("/api/v1")

	// Auth middleware, API routes only so health probes stay open
	if cfg.IsDev() {
		apiV1.Use(auth.DevAuthMiddleware())
	} else {
		apiV1.Use(auth.JWTMiddleware([]byte(cfg.AuthSigningKey)))
	}

	// Audit middleware
	e.Use(middleware.Audit(logger))

	// Rate limiting middleware
	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	// Request timeout on the API surface. Assessment runs are asynchronous,
	// so the HTTP deadline stays short even when ASSESS_TIMEOUT is long.
	apiV1.Use(middleware.RequestTimeout(30 * time.Second))

	// Routes
	assessHandler.RegisterRoutes(apiV1)
	riskHandler.RegisterRoutes(apiV1)

	// Health checks
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/healthz/db", db.HealthHandler(pool))

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	jobs.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
