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
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/icumetrics/sofa/internal/config"
	"github.com/icumetrics/sofa/internal/domain/cohort"
	"github.com/icumetrics/sofa/internal/domain/results"
	"github.com/icumetrics/sofa/internal/platform/auth"
	"github.com/icumetrics/sofa/internal/platform/db"
	"github.com/icumetrics/sofa/internal/platform/middleware"
	"github.com/icumetrics/sofa/internal/platform/reporting"
	"github.com/icumetrics/sofa/internal/sofa"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "sofa-server",
		Short: "SOFA severity scoring pipeline and read API",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(scoreCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger().Level(level)
	}
	return logger
}

// profilesForFlag maps the --config flag value onto the scoring
// profiles to run. "all" runs every registered profile so the
// comparison streams land in the same batch.
func profilesForFlag(value string) ([]string, error) {
	switch value {
	case "all":
		return []string{sofa.DefaultProfile().ConfigID, sofa.MedianProfile().ConfigID}, nil
	case sofa.DefaultProfile().ConfigID, sofa.MedianProfile().ConfigID:
		return []string{value}, nil
	default:
		return nil, fmt.Errorf("unknown config %q (want %s, %s or all)",
			value, sofa.DefaultProfile().ConfigID, sofa.MedianProfile().ConfigID)
	}
}

func scoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score the ICU cohort and persist windows to the gold layer",
		RunE: func(cmd *cobra.Command, args []string) error {
			configFlag, _ := cmd.Flags().GetString("config")
			ids, err := profilesForFlag(configFlag)
			if err != nil {
				return err
			}
			return runScore(ids)
		},
	}
	cmd.Flags().String("config", sofa.DefaultProfile().ConfigID, "Scoring profile to run (config1, config2 or all)")
	return cmd
}

func runScore(configIDs []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := newLogger(cfg)

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	cohortRepo := cohort.NewRepo(pool, cohort.Filter{
		MinStayHours: cfg.MinStayHours,
		MaxStayHours: cfg.MaxStayHours,
	})
	resultsRepo := results.NewRepo(pool)
	resultsSvc := results.NewService(resultsRepo)

	for _, configID := range configIDs {
		p := cfg.Profile(configID)
		engine := sofa.NewEngine(cohortRepo, cohortRepo, cohortRepo, resultsRepo, p, cfg.ScoreWorkers, logger)

		summary, err := engine.Run(ctx)
		if err != nil {
			return fmt.Errorf("scoring run %s: %w", configID, err)
		}
		if err := resultsSvc.SaveRun(ctx, summary); err != nil {
			return fmt.Errorf("persist run summary %s: %w", configID, err)
		}

		fmt.Printf("run %s (%s): %d/%d stays scored, %d windows, %d gated, %d skipped\n",
			summary.RunID, summary.ConfigID,
			summary.StaysScored, summary.StaysTotal,
			summary.WindowsScored, summary.WindowsGated, summary.StaysSkipped)
		for stayID, msg := range summary.StayErrors {
			fmt.Printf("  stay %d: %s\n", stayID, msg)
		}
	}
	return nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if dir == "" {
				dir = cfg.MigrationsDir
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
	upCmd.Flags().String("dir", "", "Path to migrations directory (defaults to MIGRATIONS_DIR)")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if dir == "" {
				dir = cfg.MigrationsDir
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
	statusCmd.Flags().String("dir", "", "Path to migrations directory (defaults to MIGRATIONS_DIR)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the scoring results API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := newLogger(cfg)

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())

	// Auth middleware
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware([]byte(cfg.AuthSecret)))
	}

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	apiV1 := e.Group("/api/v1")

	resultsHandler := results.NewHandler(results.NewService(results.NewRepo(pool)))
	resultsHandler.RegisterRoutes(apiV1)

	reportHandler := reporting.NewHandler(pool)
	reportHandler.RegisterRoutes(apiV1)

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
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
