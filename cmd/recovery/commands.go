package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/smallbiznis/recovery/internal/clock"
	"github.com/smallbiznis/recovery/internal/config"
	ingestiondomain "github.com/smallbiznis/recovery/internal/ingestion/domain"
	profiledomain "github.com/smallbiznis/recovery/internal/profile/domain"
	riskdomain "github.com/smallbiznis/recovery/internal/risk/domain"
	"github.com/smallbiznis/recovery/internal/scheduler"
	"github.com/smallbiznis/recovery/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func serveCmd() *cobra.Command {
	var withScheduler bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and, when enabled, the scheduler loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := []fx.Option{
				core(),
				server.Domains,
				server.Module,
				scheduler.Module,
			}
			if withScheduler {
				opts = append(opts, fx.Decorate(func(cfg config.Config) config.Config {
					cfg.Scheduler.Enabled = true
					return cfg
				}))
			}
			app := fx.New(opts...)
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}
	cmd.Flags().BoolVar(&withScheduler, "scheduler", false, "run the scheduler loop regardless of SCHEDULER_ENABLED")
	return cmd
}

func ingestCmd() *cobra.Command {
	var (
		feedURL string
		sheet   string
	)
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Run one ingestion pass over the invoice feed and print the report",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var svc ingestiondomain.Service
			opts := withDomains(
				fx.Populate(&svc),
				fx.Decorate(func(cfg config.Config) config.Config {
					if feedURL != "" {
						cfg.Feed.URL = feedURL
					}
					if sheet != "" {
						cfg.Feed.Sheet = sheet
					}
					return cfg
				}),
			)
			return runOnce(ctx, cmd.Name(), func(ctx context.Context) error {
				report, err := svc.Run(ctx)
				if werr := writeJSON(cmd.OutOrStdout(), report); werr != nil && err == nil {
					err = werr
				}
				return err
			}, opts...)
		},
	}
	cmd.Flags().StringVar(&feedURL, "url", "", "feed location (http(s)://, gs://, file:// or a path); overrides FEED_URL")
	cmd.Flags().StringVar(&sheet, "sheet", "", "worksheet name for xlsx feeds")
	return cmd
}

func reclassifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reclassify",
		Short: "Recompute zone and action for every open case",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var (
				svc riskdomain.Service
				clk clock.Clock
			)
			return runOnce(ctx, cmd.Name(), func(ctx context.Context) error {
				report, err := svc.Reclassify(ctx, clk.Now())
				if werr := writeJSON(cmd.OutOrStdout(), report); werr != nil && err == nil {
					err = werr
				}
				return err
			}, withDomains(fx.Populate(&svc, &clk))...)
		},
	}
}

func refreshProfilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh-profiles",
		Short: "Rebuild customer payment behaviour profiles from cleared cases",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var svc profiledomain.Service
			return runOnce(ctx, cmd.Name(), func(ctx context.Context) error {
				report, err := svc.Refresh(ctx)
				if werr := writeJSON(cmd.OutOrStdout(), report); werr != nil && err == nil {
					err = werr
				}
				return err
			}, withDomains(fx.Populate(&svc))...)
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			// migration.Module applies the schema while the graph starts
			return runOnce(cmd.Context(), cmd.Name(), func(context.Context) error { return nil })
		},
	}
}
