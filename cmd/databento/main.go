package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"seasonality-backend/internal/databento"
	"seasonality-backend/internal/jobs"
	"seasonality-backend/internal/store"
	"seasonality-backend/lib/configutil"
	"seasonality-backend/lib/serviceutil"
	"seasonality-backend/lib/telemetry"

	"github.com/spf13/cobra"
)

type Config struct {
	APIKey      string `json:"api_key" env:"DATABENTO_API_KEY"`
	DatabaseURL string `json:"database_url" env:"DATABASE_URL"`
}

var (
	startFlag       string
	endFlag         string
	dryRunFlag      bool
	futuresOnlyFlag bool
	stocksOnlyFlag  bool
	cronFlag        string
)

var rootCmd = &cobra.Command{
	Use:   "databento-fetch",
	Short: "Fetches daily futures and stock bars from the Databento Historical API.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := serviceutil.SignalContext()
		job, shutdown := setup(ctx)
		defer shutdown()

		opts, err := optionsFromFlags()
		if err != nil {
			serviceutil.Fatal("bad flags", err)
		}

		if cronFlag == "" {
			err := job.Run(ctx, opts)
			if err != nil {
				serviceutil.Fatal("fetch failed", err)
			}
			return
		}

		scheduler := jobs.NewScheduler()
		err = scheduler.Add(cronFlag, func() {
			err := job.Run(ctx, opts)
			if err != nil {
				slog.ErrorContext(ctx, "scheduled fetch failed", "err", err)
			}
		})
		if err != nil {
			serviceutil.Fatal("bad cron spec", err)
		}
		slog.InfoContext(ctx, "running on schedule", "cron", cronFlag)
		scheduler.Start()
		<-ctx.Done()
		scheduler.Stop()
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verifies dataset access and estimates the cost of a 7-day fetch.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := serviceutil.SignalContext()

		config, err := configutil.Load[Config]("config.json5")
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}
		client, err := databento.NewClient(databento.ClientOptions{APIKey: config.APIKey})
		if err != nil {
			serviceutil.Fatal("failed to create client", err)
		}

		err = jobs.RunDatabentoCheck(ctx, client, os.Stdout)
		if err != nil {
			serviceutil.Fatal("check failed", err)
		}
	},
}

func setup(ctx context.Context) (jobs.DatabentoJob, func()) {
	config, err := configutil.Load[Config]("config.json5")
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}
	if config.DatabaseURL == "" {
		serviceutil.Fatal("missing database url", fmt.Errorf("set DATABASE_URL or database_url in config.json5"))
	}

	db, err := store.Open(config.DatabaseURL)
	if err != nil {
		serviceutil.Fatal("failed to open database", err)
	}
	s := store.New(db)
	err = s.Init(ctx)
	if err != nil {
		serviceutil.Fatal("failed to apply schema", err)
	}

	client, err := databento.NewClient(databento.ClientOptions{APIKey: config.APIKey})
	if err != nil {
		serviceutil.Fatal("failed to create client", err)
	}

	telemetryShutdown := telemetry.SetupForJob(ctx, "databento-fetch")

	return jobs.DatabentoJob{Source: client, Store: s}, func() {
		telemetryShutdown()
		db.Close()
	}
}

func optionsFromFlags() (jobs.DatabentoOptions, error) {
	opts := jobs.DatabentoOptions{
		DryRun:      dryRunFlag,
		FuturesOnly: futuresOnlyFlag,
		StocksOnly:  stocksOnlyFlag,
	}

	var err error
	if startFlag != "" {
		opts.Start, err = time.Parse("2006-01-02", startFlag)
		if err != nil {
			return opts, fmt.Errorf("parse --start: %w", err)
		}
	}
	if endFlag != "" {
		opts.End, err = time.Parse("2006-01-02", endFlag)
		if err != nil {
			return opts, fmt.Errorf("parse --end: %w", err)
		}
	}
	if opts.FuturesOnly && opts.StocksOnly {
		return opts, fmt.Errorf("--futures-only and --stocks-only are mutually exclusive")
	}
	return opts, nil
}

func main() {
	rootCmd.Flags().StringVar(&startFlag, "start", "", "fetch window start (YYYY-MM-DD), defaults to 7 days before end")
	rootCmd.Flags().StringVar(&endFlag, "end", "", "fetch window end (YYYY-MM-DD), defaults to today")
	rootCmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "fetch and report without writing to the database")
	rootCmd.Flags().BoolVar(&futuresOnlyFlag, "futures-only", false, "skip the stock fetch")
	rootCmd.Flags().BoolVar(&stocksOnlyFlag, "stocks-only", false, "skip the futures fetch")
	rootCmd.Flags().StringVar(&cronFlag, "cron", "", "run as a daemon on this cron spec instead of once")
	rootCmd.AddCommand(checkCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
