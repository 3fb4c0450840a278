package main

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ruralcare/telemed/internal/config"
	"github.com/ruralcare/telemed/internal/domain/queue"
	"github.com/ruralcare/telemed/internal/domain/triage"
	"github.com/ruralcare/telemed/internal/platform/auth"
	"github.com/ruralcare/telemed/internal/platform/db"
	"github.com/ruralcare/telemed/internal/platform/middleware"
	"github.com/ruralcare/telemed/migrations"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "telemed-server",
		Short: "Rural telemedicine triage and consultation queue API",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(reportCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func openPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	return db.NewPool(ctx, cfg.DatabaseURL, db.PoolOptions{
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		ApplicationName: "telemed-server",
	})
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

func migrationSource(dir string) fs.FS {
	if dir == "" {
		return migrations.FS
	}
	return os.DirFS(dir)
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
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")
			target, _ := cmd.Flags().GetInt("to")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := newLogger(cfg.Env)

			ctx := context.Background()
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, migrationSource(dir), logger)
			count, err := migrator.UpTo(ctx, schema, target)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) to schema %s.\n", count, schema)
			return nil
		},
	}
	upCmd.Flags().String("schema", db.DefaultSchema, "Target schema for migrations")
	upCmd.Flags().String("dir", "", "Migrations directory (default: embedded migrations)")
	upCmd.Flags().Int("to", 0, "Stop after this version (0 applies all)")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, migrationSource(dir), newLogger(cfg.Env))
			statuses, err := migrator.Status(ctx, schema)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("Migration status for schema: %s\n", schema)
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				state, at := "pending", ""
				if s.Applied {
					state = "applied"
					at = s.AppliedAt.Format(time.RFC3339)
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, state, at)
			}
			return nil
		},
	}
	statusCmd.Flags().String("schema", db.DefaultSchema, "Target schema")
	statusCmd.Flags().String("dir", "", "Migrations directory (default: embedded migrations)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Export operational reports",
	}

	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Write queue statistics to an xlsx workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, _ := cmd.Flags().GetString("out")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := newQueueService(pool, cfg, newLogger(cfg.Env))
			stats, err := svc.Statistics(ctx)
			if err != nil {
				return fmt.Errorf("load statistics: %w", err)
			}

			f, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := queue.WriteStatisticsWorkbook(f, stats); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Printf("Wrote queue statistics to %s\n", out)
			return nil
		},
	}
	queueCmd.Flags().String("out", "queue-statistics.xlsx", "Output file")
	cmd.AddCommand(queueCmd)

	return cmd
}

func newQueueService(pool *pgxpool.Pool, cfg *config.Config, logger zerolog.Logger) *queue.Service {
	return queue.NewService(
		queue.NewRepo(pool),
		queue.NewDirectory(pool),
		db.NewTransactor(pool),
		triage.DefaultPrioritizer(),
		queue.WithConsultationMinutes(cfg.ConsultationMinutes),
		queue.WithLogger(logger.With().Str("component", "queue").Logger()),
	)
}

// newTriageService attaches the Redis cache when REDIS_URL is set and
// reachable. The service runs uncached otherwise.
func newTriageService(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*triage.Service, func()) {
	tlog := logger.With().Str("component", "triage").Logger()
	opts := []triage.Option{triage.WithLogger(tlog)}
	cleanup := func() {}

	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Warn().Err(err).Msg("invalid REDIS_URL, triage cache disabled")
		} else {
			client := redis.NewClient(redisOpts)
			pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err := client.Ping(pingCtx).Err()
			cancel()
			if err != nil {
				logger.Warn().Err(err).Msg("redis unreachable, triage cache disabled")
				client.Close()
			} else {
				opts = append(opts, triage.WithCache(triage.NewRedisStore(client, "telemed:triage:"), cfg.TriageCacheTTL))
				cleanup = func() { client.Close() }
				logger.Info().Msg("triage cache enabled")
			}
		}
	}

	return triage.NewService(triage.DefaultCorpus(), triage.DefaultPrioritizer(), opts...), cleanup
}

type server struct {
	cfg    *config.Config
	logger zerolog.Logger
	db     db.Pinger
	stats  func() *db.PoolStats
	triage *triage.Service
	queue  *queue.Service
}

func (s *server) router() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(s.logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(s.logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: s.cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
	}))
	e.Use(echomw.Secure())
	e.Use(echomw.BodyLimit(s.cfg.BodyLimit))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	if s.db != nil {
		e.GET("/health/db", db.HealthHandler(s.db, s.stats))
	}

	var authn echo.MiddlewareFunc
	if s.cfg.IsDev() {
		authn = auth.DevAuthMiddleware()
	} else {
		authn = auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     s.cfg.AuthIssuer,
			Audience:   s.cfg.AuthAudience,
			SigningKey: []byte(s.cfg.AuthSigningKey),
		})
	}

	rateLimitCfg := middleware.DefaultRateLimitConfig()
	if s.cfg.RateLimitRPS > 0 {
		rateLimitCfg.RequestsPerSecond = s.cfg.RateLimitRPS
	}
	if s.cfg.RateLimitBurst > 0 {
		rateLimitCfg.BurstSize = s.cfg.RateLimitBurst
	}

	apiV1 := e.Group("/api/v1", authn, middleware.RateLimit(rateLimitCfg))
	triage.NewHandler(s.triage).RegisterRoutes(apiV1)
	if s.queue != nil {
		queue.NewHandler(s.queue).RegisterRoutes(apiV1)
	}
	return e
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Env)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}
	if cfg.IsDev() {
		logger.Warn().Msg("development mode: requests are authenticated as the dev principal")
	}

	ctx := context.Background()
	pool, err := openPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	triageSvc, closeCache := newTriageService(ctx, cfg, logger)
	defer closeCache()

	srv := &server{
		cfg:    cfg,
		logger: logger,
		db:     pool,
		stats:  func() *db.PoolStats { return db.GetPoolStats(pool) },
		triage: triageSvc,
		queue:  newQueueService(pool, cfg, logger),
	}
	e := srv.router()

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
