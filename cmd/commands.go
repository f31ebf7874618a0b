package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/mochatech1725/scholarship-scraper2/internal/db"
	"github.com/mochatech1725/scholarship-scraper2/internal/logger"
	"github.com/mochatech1725/scholarship-scraper2/internal/model"
	"github.com/mochatech1725/scholarship-scraper2/internal/registry"
)

const shutdownTimeout = 10 * time.Second

// ─── run ─────────────────────────────────────────────────────────────────────

func newRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run one scrape across every enabled source and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfigAndLogger()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			summary, runErr := a.scheduler.RunNow(cmd.Context())
			if summary != nil {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(summary); err != nil {
					return fmt.Errorf("write summary: %w", err)
				}
			}
			return runErr
		},
	}
}

// ─── schedule ────────────────────────────────────────────────────────────────

func newScheduleCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run scrapes on the configured cron schedule and serve the status API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, log, err := loadConfigAndLogger()
			if err != nil {
				return err
			}
			a, err := newApp(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.scheduler.Start(ctx); err != nil {
				return err
			}

			srv := &http.Server{
				Addr:              ":" + cfg.Port,
				Handler:           a.handler().Router(),
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       10 * time.Second,
				WriteTimeout:      10 * time.Second,
			}

			serveErr := make(chan error, 1)
			go func() {
				log.Info("Status API listening",
					logger.String("addr", srv.Addr),
					logger.String("version", version),
					logger.String("schedule", cfg.ScrapeSchedule))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serveErr <- err
				}
				close(serveErr)
			}()

			// ── Graceful shutdown ────────────────────────────────────────────────
			select {
			case <-ctx.Done():
			case err := <-serveErr:
				if err != nil {
					log.Error("HTTP server error", logger.Error(err))
				}
			}

			log.Info("Shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Warn("HTTP shutdown error", logger.Error(err))
			}
			a.scheduler.Stop()
			log.Info("Stopped")
			return nil
		},
	}
}

// ─── migrate ─────────────────────────────────────────────────────────────────

func newMigrateCommand() *cobra.Command {
	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
	}

	migrate.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, log, err := loadConfigAndLogger()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			return db.MigrateUp(cfg.DatabaseURL, log)
		},
	})

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(_ *cobra.Command, _ []string) error {
			if steps < 1 {
				return fmt.Errorf("--steps must be at least 1, got %d", steps)
			}
			cfg, log, err := loadConfigAndLogger()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			return db.MigrateDown(cfg.DatabaseURL, steps, log)
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	migrate.AddCommand(down)

	return migrate
}

// ─── sources ─────────────────────────────────────────────────────────────────

func newSourcesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List the enabled sources a run would scrape",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, log, err := loadConfigAndLogger()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL, 2)
			if err != nil {
				return fmt.Errorf("postgres: %w", err)
			}
			defer pool.Close()

			sources, err := registry.New(registry.NewPostgresStore(pool), log).LoadEnabledSources(ctx)
			if err != nil {
				return err
			}
			if len(sources) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No enabled sources.")
				return nil
			}
			renderSources(sources)
			return nil
		},
	}
}

func renderSources(sources []model.SourceConfig) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Name", "Kind", "Target", "Exclude Terms", "Updated"})
	for i := range sources {
		s := &sources[i]
		t.AppendRow(table.Row{
			s.Name,
			s.Kind,
			sourceTarget(s),
			strings.Join(s.ExcludeTerms, ", "),
			s.UpdatedAt.Format(time.DateOnly),
		})
	}
	t.AppendFooter(table.Row{"", "", "", "Total", len(sources)})
	t.Render()
}

func sourceTarget(s *model.SourceConfig) string {
	switch {
	case s.API != nil:
		return s.API.Endpoint
	case s.Crawl != nil:
		return s.Crawl.URL
	case s.Discovery != nil:
		return strings.Join(s.Discovery.SeedURLs, " ")
	case s.Search != nil:
		return fmt.Sprintf("%d search terms", len(s.Search.Terms))
	}
	return ""
}
