package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"seasonality-backend/internal/jobs"
	"seasonality-backend/internal/mrci"
	"seasonality-backend/internal/store"
	"seasonality-backend/lib/configutil"
	"seasonality-backend/lib/serviceutil"
	"seasonality-backend/lib/telemetry"

	"github.com/spf13/cobra"
)

type Config struct {
	DatabaseURL string `json:"database_url" env:"DATABASE_URL"`
	ProfileDir  string `json:"profile_dir" env:"MRCI_PROFILE_DIR"`
}

var (
	startFlag         string
	endFlag           string
	cronFlag          string
	clearanceDateFlag string
)

var rootCmd = &cobra.Command{
	Use:   "mrci-scrape",
	Short: "Scrapes daily contract prices from the MRCI OHLC pages.",
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
				serviceutil.Fatal("scrape failed", err)
			}
			return
		}

		scheduler := jobs.NewScheduler()
		err = scheduler.Add(cronFlag, func() {
			// scheduled runs always resume from the checkpoint
			err := job.Run(ctx, jobs.MRCIOptions{})
			if err != nil {
				slog.ErrorContext(ctx, "scheduled scrape failed", "err", err)
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

// sessionCmd checks whether the stored session can still reach the site.
// Run it from a machine with a browser-like network position when the
// scrape job starts reporting challenge pages.
var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Probes the site and reports whether the Cloudflare clearance still works.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := serviceutil.SignalContext()

		config, err := configutil.Load[Config]("config.json5")
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}
		client, err := mrci.NewClient(mrci.ClientOptions{ProfileDir: config.ProfileDir})
		if err != nil {
			serviceutil.Fatal("failed to create client", err)
		}

		day := lastWeekday(time.Now().UTC())
		html, err := client.FetchDay(ctx, day)
		if err != nil {
			serviceutil.Fatal("probe fetch failed", err)
		}

		switch mrci.ClassifyPage(html) {
		case mrci.PageData:
			fmt.Println("session ok: got a data page for", day.Format("2006-01-02"))
		case mrci.PageChallenge:
			fmt.Println("session blocked: Cloudflare challenge page, run the clearance subcommand")
			os.Exit(1)
		default:
			fmt.Println("session reachable but no data table for", day.Format("2006-01-02"))
		}
	},
}

// clearanceCmd earns a fresh cf_clearance cookie by driving a real browser
// on the persistent profile, then saves it where the scrape client looks.
var clearanceCmd = &cobra.Command{
	Use:   "clearance",
	Short: "Opens a browser to pass the Cloudflare challenge and saves the session.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := serviceutil.SignalContext()

		config, err := configutil.Load[Config]("config.json5")
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}

		day := lastWeekday(time.Now().UTC())
		if clearanceDateFlag != "" {
			day, err = time.Parse("2006-01-02", clearanceDateFlag)
			if err != nil {
				serviceutil.Fatal("parse --date", err)
			}
		}

		err = mrci.AcquireClearance(ctx, mrci.ClearanceOptions{
			ProfileDir: config.ProfileDir,
			Day:        day,
		})
		if err != nil {
			serviceutil.Fatal("clearance failed", err)
		}
		fmt.Println("clearance saved, the scrape job can run headless now")
	},
}

func setup(ctx context.Context) (jobs.MRCIJob, func()) {
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

	client, err := mrci.NewClient(mrci.ClientOptions{ProfileDir: config.ProfileDir})
	if err != nil {
		serviceutil.Fatal("failed to create client", err)
	}

	telemetryShutdown := telemetry.SetupForJob(ctx, "mrci-scrape")

	return jobs.MRCIJob{Source: client, Store: s}, func() {
		telemetryShutdown()
		db.Close()
	}
}

func optionsFromFlags() (jobs.MRCIOptions, error) {
	var opts jobs.MRCIOptions
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
	return opts, nil
}

// the site only publishes pages for trading days
func lastWeekday(t time.Time) time.Time {
	d := store.DateOf(t)
	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

func main() {
	rootCmd.Flags().StringVar(&startFlag, "start", "", "scrape window start (YYYY-MM-DD), defaults to the stored checkpoint")
	rootCmd.Flags().StringVar(&endFlag, "end", "", "scrape window end (YYYY-MM-DD), defaults to today")
	rootCmd.Flags().StringVar(&cronFlag, "cron", "", "run as a daemon on this cron spec instead of once")
	clearanceCmd.Flags().StringVar(&clearanceDateFlag, "date", "", "OHLC page used to verify the clearance (YYYY-MM-DD), defaults to the last weekday")
	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(clearanceCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
