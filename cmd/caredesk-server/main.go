package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/caredesk/caredesk/internal/config"
	"github.com/caredesk/caredesk/internal/domain/dashboard"
	"github.com/caredesk/caredesk/internal/domain/patient"
	"github.com/caredesk/caredesk/internal/domain/records"
	"github.com/caredesk/caredesk/internal/platform/blobstore"
	"github.com/caredesk/caredesk/internal/platform/db"
	"github.com/caredesk/caredesk/internal/platform/metrics"
	"github.com/caredesk/caredesk/internal/platform/middleware"
	"github.com/caredesk/caredesk/internal/platform/sandbox"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "caredesk-server",
		Short: "Hospital administration API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())

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

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Populate the store with demo data",
		RunE: func(cmd *cobra.Command, args []string) error {
			count, _ := cmd.Flags().GetInt("patients")
			perPatient, _ := cmd.Flags().GetInt("records")
			seed, _ := cmd.Flags().GetInt64("seed")

			logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx := context.Background()
			deps, err := buildServices(ctx, cfg)
			if err != nil {
				return err
			}
			defer deps.Close()

			seedCfg := sandbox.DefaultSeedConfig()
			if count > 0 {
				seedCfg.PatientCount = count
			}
			if perPatient > 0 {
				seedCfg.RecordsPerPatient = perPatient
			}
			seedCfg.Seed = seed

			seeder := sandbox.NewSeeder(deps.patientSvc, deps.recordSvc, seedCfg.Seed, logger)
			result, err := seeder.Run(ctx, seedCfg)
			if err != nil {
				return err
			}

			fmt.Printf("Seeded %d patient(s) and %d record(s) in %s.\n",
				result.Patients, result.Records, result.Duration.Round(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().Int("patients", 0, "Number of demo patients to create")
	cmd.Flags().Int("records", 0, "Medical records per patient")
	cmd.Flags().Int64("seed", 0, "RNG seed for reproducible output (0 = random)")
	return cmd
}

// services bundles the wired domain services plus whatever needs closing on
// exit. pool is nil when the memory driver is active.
type services struct {
	patientSvc *patient.Service
	recordSvc  *records.Service
	blobs      blobstore.Store
	pool       *pgxpool.Pool
}

func (s *services) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// buildServices wires repositories, blob store, and services for the
// configured driver. The patient service delegates record cleanup to the
// records service, and record uploads check patient existence the other way;
// both hang off interfaces so the two packages stay decoupled.
func buildServices(ctx context.Context, cfg *config.Config) (*services, error) {
	var (
		patientRepo patient.Repository
		recordRepo  records.Repository
		blobs       blobstore.Store
		pool        *pgxpool.Pool
	)

	switch cfg.StoreDriver {
	case "postgres":
		p, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		pool = p
		patientRepo = patient.NewRepoPG(p)
		recordRepo = records.NewRepoPG(p)
	case "memory":
		patientRepo = patient.NewMemoryRepo()
		recordRepo = records.NewMemoryRepo()
	}

	if cfg.BlobDir != "" {
		fs, err := blobstore.NewFSStore(cfg.BlobDir, cfg.BlobBaseURL)
		if err != nil {
			return nil, fmt.Errorf("open blob directory: %w", err)
		}
		blobs = fs
	} else {
		blobs = blobstore.NewMemoryStore(cfg.BlobBaseURL)
	}

	patientSvc := patient.NewService(patientRepo, nil)
	recordSvc := records.NewService(recordRepo, blobs, patientSvc)
	patientSvc.SetPurger(recordSvc)

	return &services{
		patientSvc: patientSvc,
		recordSvc:  recordSvc,
		blobs:      blobs,
		pool:       pool,
	}, nil
}

func runServer() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	collector := metrics.NewCollector("caredesk")

	ctx := context.Background()
	deps, err := buildServices(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build services")
	}
	defer deps.Close()
	logger.Info().Str("driver", cfg.StoreDriver).Msg("store ready")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeoutDuration()))
	e.Use(collector.Middleware())

	apiV1 := e.Group("/api/v1")

	patientHandler := patient.NewHandler(deps.patientSvc, collector)
	patientHandler.RegisterRoutes(apiV1)

	recordHandler := records.NewHandler(deps.recordSvc, collector)
	recordHandler.RegisterRoutes(apiV1)

	dashboardHandler := dashboard.NewHandler(dashboard.NewService(dashboard.Stats{}))
	dashboardHandler.RegisterRoutes(apiV1)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	if deps.pool != nil {
		e.GET("/health/db", db.HealthHandler(deps.pool))
	}
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	// Serve uploaded blobs when they live on local disk.
	if fs, ok := deps.blobs.(*blobstore.FSStore); ok {
		e.Static("/blobs", fs.Root())
	}

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
