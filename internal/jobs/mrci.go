package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"seasonality-backend/internal/mrci"
	"seasonality-backend/internal/store"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"
)

// PageSource is the slice of the MRCI client the scrape job needs.
type PageSource interface {
	WarmSession(ctx context.Context, year int) error
	FetchDay(ctx context.Context, d time.Time) (string, error)
}

type MRCIOptions struct {
	// Start overrides the stored checkpoint when set.
	Start time.Time
	// End defaults to today.
	End time.Time
}

type MRCIJob struct {
	Source PageSource
	Store  store.Store
}

// Run walks day by day from the checkpoint (or an explicit start) to the
// end date, scraping each OHLC page. The checkpoint advances even on bad
// days so a single broken page never wedges the loop; re-running a window
// later is safe because inserts skip existing rows.
func (j MRCIJob) Run(ctx context.Context, opts MRCIOptions) error {
	ctx, span := tracer.Start(ctx, "mrci:Run")
	defer span.End()

	known, err := j.Store.AssetSymbols(ctx)
	if err != nil {
		return fmt.Errorf("load assets: %w", err)
	}
	if len(known) == 0 {
		span.SetStatus(codes.Error, "assets table is empty")
		return fmt.Errorf("assets table is empty, seed roots (CL, NG, ZS, ...) first")
	}

	current, err := j.resolveStart(ctx, opts)
	if err != nil {
		return err
	}
	end := opts.End
	if end.IsZero() {
		end = store.DateOf(time.Now().UTC())
	}

	slog.InfoContext(ctx, "starting mrci scrape",
		"run_id", uuid.NewString(),
		"start", current.Format("2006-01-02"),
		"end", end.Format("2006-01-02"),
	)

	// warm the yearly index first, it helps the Cloudflare check pass
	err = j.Source.WarmSession(ctx, current.Year())
	if err != nil {
		slog.WarnContext(ctx, "session warmup failed", "err", err)
	}

	for !current.After(end) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		j.scrapeDay(ctx, current, known)

		err = j.Store.SetCheckpoint(ctx, current)
		if err != nil {
			return fmt.Errorf("set checkpoint: %w", err)
		}
		current = current.AddDate(0, 0, 1)
	}

	return nil
}

func (j MRCIJob) resolveStart(ctx context.Context, opts MRCIOptions) (time.Time, error) {
	if !opts.Start.IsZero() {
		err := j.Store.SetCheckpoint(ctx, opts.Start)
		if err != nil {
			return time.Time{}, fmt.Errorf("set checkpoint: %w", err)
		}
		return store.DateOf(opts.Start), nil
	}

	checkpoint, err := j.Store.Checkpoint(ctx)
	if err != nil {
		return time.Time{}, fmt.Errorf("read checkpoint: %w", err)
	}
	return checkpoint, nil
}

// scrapeDay never fails the run: fetch, parse and insert errors are logged
// and the day is abandoned.
func (j MRCIJob) scrapeDay(ctx context.Context, day time.Time, known map[string]bool) {
	html, err := j.Source.FetchDay(ctx, day)
	if err != nil {
		slog.ErrorContext(ctx, "fetch failed", "day", day.Format("2006-01-02"), "err", err)
		return
	}

	switch mrci.ClassifyPage(html) {
	case mrci.PageChallenge:
		slog.WarnContext(ctx, "cloudflare challenge page, refresh the session",
			"day", day.Format("2006-01-02"))
		return
	case mrci.PageBlank:
		slog.InfoContext(ctx, "no data page", "day", day.Format("2006-01-02"))
		return
	}

	rows, stats, err := mrci.ParseDay(strings.NewReader(html), day, known)
	if err != nil {
		slog.ErrorContext(ctx, "parse failed", "day", day.Format("2006-01-02"), "err", err)
		return
	}

	inserted, err := j.Store.InsertContractPrices(ctx, rows)
	if err != nil {
		slog.ErrorContext(ctx, "insert failed", "day", day.Format("2006-01-02"), "err", err)
		return
	}

	slog.InfoContext(ctx, "scraped day",
		"day", day.Format("2006-01-02"),
		"lines", stats.LinesScanned,
		"parsed", stats.RowsParsed,
		"unknown_root", stats.RowsUnknownRoot,
		"bad", stats.RowsBadFormat,
		"inserted", inserted,
		"unknown_sections", stats.UnknownSections,
	)
}
