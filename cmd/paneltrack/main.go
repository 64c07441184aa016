package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"

	"github.com/panelhub/paneltrack/internal/api"
	"github.com/panelhub/paneltrack/internal/config"
	"github.com/panelhub/paneltrack/internal/database"
	"github.com/panelhub/paneltrack/internal/migrations"
	"github.com/panelhub/paneltrack/internal/ratelimit"
	"github.com/panelhub/paneltrack/internal/sources/panelapp"
	"github.com/panelhub/paneltrack/internal/sources/variantvalidator"
	syncer "github.com/panelhub/paneltrack/internal/sync"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "paneltrack",
		Short: "Panel version tracking and patient test history service",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(syncCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return logger.Level(level)
}

func openDB(cfg *config.Config) (*bun.DB, error) {
	return database.NewDB(cfg.DatabasePath, cfg.DebugSQL)
}

// sourceLimiters builds per-source limiters from the YAML rate limit
// file, falling back to defaults when the file is absent.
func sourceLimiters(cfg *config.Config, logger zerolog.Logger) (pa, vv ratelimit.Config) {
	pa, vv = ratelimit.DefaultConfig(), ratelimit.DefaultConfig()
	if cfg.RateLimitFile == "" {
		return pa, vv
	}

	data, err := os.ReadFile(cfg.RateLimitFile)
	if err != nil {
		logger.Warn().Err(err).Str("path", cfg.RateLimitFile).Msg("rate limit file unreadable, using defaults")
		return pa, vv
	}
	cfgs, err := ratelimit.LoadSourceConfigs(data)
	if err != nil {
		logger.Warn().Err(err).Msg("rate limit file invalid, using defaults")
		return pa, vv
	}

	if c, err := cfgs.Get("panelapp"); err == nil {
		pa = c
	}
	if c, err := cfgs.Get("variantvalidator"); err == nil {
		vv = c
	}
	return pa, vv
}

func loadProblemGenes(cfg *config.Config, logger zerolog.Logger) map[string]struct{} {
	if cfg.ProblemGeneFile == "" {
		return nil
	}
	data, err := os.ReadFile(cfg.ProblemGeneFile)
	if err != nil {
		logger.Warn().Err(err).Str("path", cfg.ProblemGeneFile).Msg("problem gene file unreadable")
		return nil
	}
	return variantvalidator.ParseProblemGenes(data)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service with the background registry sync",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := migrations.RunMigrations(ctx, db); err != nil {
				return err
			}

			paCfg, vvCfg := sourceLimiters(cfg, logger)
			registry := panelapp.NewClient(cfg.PanelAppURL, ratelimit.New(paCfg))
			coords := variantvalidator.NewClient(cfg.VariantValidatorURL, ratelimit.New(vvCfg), vvCfg)

			server := api.NewServer(db, registry, coords, loadProblemGenes(cfg, logger), logger)

			go func() {
				job := syncer.New(db, registry, registry, logger)
				if err := job.RunEvery(ctx, cfg.SyncInterval); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error().Err(err).Msg("background sync stopped")
				}
			}()

			errCh := make(chan error, 1)
			go func() {
				errCh <- server.Start(":" + cfg.Port)
			}()

			select {
			case err := <-errCh:
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
			case <-ctx.Done():
				logger.Info().Msg("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			if err := migrations.RunMigrations(cmd.Context(), db); err != nil {
				return err
			}
			logger.Info().Str("database", cfg.DatabasePath).Msg("migrations applied")
			return nil
		},
	}
}

func syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one registry sync pass and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := migrations.RunMigrations(ctx, db); err != nil {
				return err
			}

			paCfg, _ := sourceLimiters(cfg, logger)
			registry := panelapp.NewClient(cfg.PanelAppURL, ratelimit.New(paCfg))

			summary, err := syncer.New(db, registry, registry, logger).Run(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("panels seen=%d updated=%d inserted=%d skipped=%d failed=%d\n",
				summary.Seen, summary.Updated, summary.Inserted, summary.Skipped, summary.Failed)
			return nil
		},
	}
}
