package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"ProductImporter/internal/app"
	"ProductImporter/internal/config"
	"ProductImporter/internal/domain"
	"ProductImporter/internal/logging"
)

type globalFlags struct {
	configFile string
	logLevel   string
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "productimporter",
		Short: "Weekly product catalog import from supermarket price feeds",
		Long: `productimporter collects price observations from the configured retail chains,
merges them per barcode, filters out noise and reconciles the result with the
product catalog: new products are created, known ones refreshed and stale ones archived.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flags.configFile, "config", "", "YAML config file (default $PRODUCT_IMPORTER_CONFIG)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		newRunCommand(flags),
		newPlanCommand(flags),
		newScheduleCommand(flags),
		newMigrateCommand(flags),
		newStatusCommand(flags),
	)
	return root
}

func newRunCommand(flags *globalFlags) *cobra.Command {
	var opts app.Options
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one import now",
		Example: `  productimporter run --config config.yaml
  productimporter run --dry-run`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApplication(cmd.Context(), flags, opts, func(ctx context.Context, a *app.Application) error {
				record, err := a.Run(ctx)
				printRecord(cmd, record)
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "compute the plan but write nothing")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "run even when import.enabled is false")
	return cmd
}

func newPlanCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Print the actions the next import would apply",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApplication(cmd.Context(), flags, app.Options{DryRun: true}, func(ctx context.Context, a *app.Application) error {
				return a.Plan(ctx, cmd.OutOrStdout())
			})
		},
	}
}

func newScheduleCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run the import every scheduler.interval until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApplication(cmd.Context(), flags, app.Options{}, func(ctx context.Context, a *app.Application) error {
				return a.Schedule(ctx)
			})
		},
	}
}

func newMigrateCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the catalog and run history tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApplication(cmd.Context(), flags, app.Options{}, func(ctx context.Context, a *app.Application) error {
				if err := a.Migrate(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "schema applied")
				return nil
			})
		},
	}
}

func newStatusCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the most recent import run",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApplication(cmd.Context(), flags, app.Options{}, func(ctx context.Context, a *app.Application) error {
				last, err := a.LastRun(ctx)
				if err != nil {
					return err
				}
				if last == nil {
					fmt.Fprintln(cmd.OutOrStdout(), "no import has run yet")
					return nil
				}
				printRecord(cmd, *last)
				return nil
			})
		},
	}
}

func withApplication(ctx context.Context, flags *globalFlags, opts app.Options, fn func(context.Context, *app.Application) error) error {
	cfg := loadConfig(flags)
	logger := logging.NewWithWriter(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)

	application, err := app.New(ctx, cfg, logger, opts)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := application.Close(); cerr != nil {
			logger.Warn("close application", slog.Any("error", cerr))
		}
	}()

	return fn(ctx, application)
}

func loadConfig(flags *globalFlags) config.Config {
	var cfg config.Config
	if flags.configFile != "" {
		cfg = config.LoadFile(flags.configFile)
	} else {
		cfg = config.Load()
	}
	if flags.logLevel != "" {
		cfg.Logging.Level = flags.logLevel
	}
	return cfg
}

func printRecord(cmd *cobra.Command, record domain.RunRecord) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run %s: %s\n", record.RunID, record.Status)
	if !record.StartedAt.IsZero() {
		fmt.Fprintf(out, "started %s, took %s\n", record.StartedAt.Format(time.RFC3339),
			record.FinishedAt.Sub(record.StartedAt).Round(time.Millisecond))
	}
	fmt.Fprintf(out, "products %d, %s\n", record.ProductCount, record.Summary.String())
	if len(record.FailedSources) > 0 {
		fmt.Fprintf(out, "failed chains: %s\n", strings.Join(record.FailedSources, ", "))
	}
}
