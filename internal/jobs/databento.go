// Package jobs wires sources to the store: the run loops behind the
// databento-fetch and mrci-scrape binaries.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"seasonality-backend/internal/databento"
	"seasonality-backend/internal/store"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("jobs")

// BarSource is the slice of the Databento client the fetch job needs.
type BarSource interface {
	TimeseriesGetRange(ctx context.Context, p databento.GetRangeParams) ([]databento.OHLCVBar, error)
}

type DatabentoOptions struct {
	// Start defaults to End minus 7 days.
	Start time.Time
	// End defaults to today.
	End time.Time
	// DryRun fetches and reports but never touches the database.
	DryRun      bool
	FuturesOnly bool
	StocksOnly  bool
	// StockBatchSize caps symbols per stock request. Defaults to 50.
	StockBatchSize int
	// Preview receives the dry-run sample tables. Defaults to stdout.
	Preview io.Writer
}

type DatabentoJob struct {
	Source BarSource
	Store  store.Store
}

// Run fetches daily bars for the configured window. Futures contracts land
// in historical_data for downstream volume-based rolling; stocks go
// straight to continuous_prices.
func (j DatabentoJob) Run(ctx context.Context, opts DatabentoOptions) error {
	ctx, span := tracer.Start(ctx, "databento:Run")
	defer span.End()

	if opts.End.IsZero() {
		opts.End = store.DateOf(time.Now().UTC())
	}
	if opts.Start.IsZero() {
		opts.Start = opts.End.AddDate(0, 0, -7)
	}
	if opts.StockBatchSize <= 0 {
		opts.StockBatchSize = 50
	}
	if opts.Preview == nil {
		opts.Preview = os.Stdout
	}

	fetchFutures := !opts.StocksOnly
	fetchStocks := !opts.FuturesOnly && len(databento.StockSymbols) > 0

	slog.InfoContext(ctx, "starting databento fetch",
		"run_id", uuid.NewString(),
		"start", opts.Start.Format("2006-01-02"),
		"end", opts.End.Format("2006-01-02"),
		"dry_run", opts.DryRun,
		"futures", fetchFutures,
		"stocks", fetchStocks,
	)

	var errlist []error
	if fetchFutures {
		err := j.runFutures(ctx, opts)
		if err != nil {
			span.SetStatus(codes.Error, "futures fetch failed")
			errlist = append(errlist, fmt.Errorf("futures: %w", err))
		}
	}
	if fetchStocks {
		err := j.runStocks(ctx, opts)
		if err != nil {
			span.SetStatus(codes.Error, "stock fetch failed")
			errlist = append(errlist, fmt.Errorf("stocks: %w", err))
		}
	}
	return errors.Join(errlist...)
}

func (j DatabentoJob) runFutures(ctx context.Context, opts DatabentoOptions) error {
	if !opts.DryRun {
		err := j.Store.EnsureAssets(ctx, databento.FuturesDBSymbols(), "Futures")
		if err != nil {
			return fmt.Errorf("ensure assets: %w", err)
		}
	}

	roots := databento.FuturesRootSymbols()
	var bars []store.ContractBar
	failures := 0

	for _, root := range roots {
		fetched, err := j.fetchRoot(ctx, root, opts)
		if err != nil {
			slog.ErrorContext(ctx, "futures root fetch failed", "root", root, "err", err)
			failures++
			continue
		}

		dbSymbol := databento.FuturesRoots[root]
		kept := 0
		for _, bar := range fetched {
			if bar.Close <= 0 {
				continue
			}
			bars = append(bars, store.ContractBar{
				Symbol:    dbSymbol,
				TradeDate: bar.TradeDate,
				Open:      bar.Open,
				High:      bar.High,
				Low:       bar.Low,
				Close:     bar.Close,
				Volume:    bar.Volume,
				Contract:  bar.Symbol,
			})
			kept++
		}
		slog.InfoContext(ctx, "fetched futures root", "root", root, "bars", kept)
	}

	if failures == len(roots) {
		return fmt.Errorf("all %d futures roots failed", len(roots))
	}

	if opts.DryRun {
		slog.InfoContext(ctx, "dry run, skipping insert", "futures_bars", len(bars))
		previewContractBars(opts.Preview, bars)
		return nil
	}

	inserted, err := j.Store.UpsertHistorical(ctx, bars)
	if err != nil {
		return fmt.Errorf("upsert historical: %w", err)
	}
	slog.InfoContext(ctx, "inserted futures bars", "rows", inserted)
	return nil
}

// fetchRoot asks for every contract under a root via parent symbology, and
// falls back to the front four explicitly-named contracts when the parent
// expansion is rejected (some accounts lack parent symbology on GLBX).
func (j DatabentoJob) fetchRoot(ctx context.Context, root string, opts DatabentoOptions) ([]databento.OHLCVBar, error) {
	bars, err := j.Source.TimeseriesGetRange(ctx, databento.GetRangeParams{
		Dataset: databento.FuturesDataset,
		Symbols: []string{root},
		StypeIn: databento.StypeParent,
		Schema:  databento.SchemaOHLCV1D,
		Start:   opts.Start,
		End:     opts.End,
	})
	if err == nil {
		return bars, nil
	}
	slog.WarnContext(ctx, "parent symbology fetch failed, trying active contracts",
		"root", root, "err", err)

	return j.Source.TimeseriesGetRange(ctx, databento.GetRangeParams{
		Dataset: databento.FuturesDataset,
		Symbols: databento.ActiveContracts(root, opts.End),
		Schema:  databento.SchemaOHLCV1D,
		Start:   opts.Start,
		End:     opts.End,
	})
}

func (j DatabentoJob) runStocks(ctx context.Context, opts DatabentoOptions) error {
	symbols := databento.StockSymbols

	if !opts.DryRun {
		prefixed := make([]string, len(symbols))
		for i, s := range symbols {
			prefixed[i] = databento.StockPrefix + s
		}
		err := j.Store.EnsureAssets(ctx, prefixed, "Stock")
		if err != nil {
			return fmt.Errorf("ensure assets: %w", err)
		}
	}

	var bars []store.ContinuousBar
	batches := 0
	failures := 0

	for start := 0; start < len(symbols); start += opts.StockBatchSize {
		end := min(start+opts.StockBatchSize, len(symbols))
		batch := symbols[start:end]
		batches++

		fetched, err := j.Source.TimeseriesGetRange(ctx, databento.GetRangeParams{
			Dataset: databento.StocksDataset,
			Symbols: batch,
			Schema:  databento.SchemaOHLCV1D,
			Start:   opts.Start,
			End:     opts.End,
		})
		if err != nil {
			slog.ErrorContext(ctx, "stock batch fetch failed", "batch", batches, "err", err)
			failures++
			continue
		}

		kept := 0
		for _, bar := range fetched {
			if bar.Close <= 0 || bar.Symbol == "" {
				continue
			}
			bars = append(bars, store.ContinuousBar{
				TradeDate: bar.TradeDate,
				Symbol:    databento.StockPrefix + bar.Symbol,
				Open:      bar.Open,
				High:      bar.High,
				Low:       bar.Low,
				Close:     bar.Close,
			})
			kept++
		}
		slog.InfoContext(ctx, "fetched stock batch", "batch", batches, "bars", kept)
	}

	if failures == batches {
		return fmt.Errorf("all %d stock batches failed", batches)
	}

	if opts.DryRun {
		slog.InfoContext(ctx, "dry run, skipping insert", "stock_bars", len(bars))
		previewContinuousBars(opts.Preview, bars)
		return nil
	}

	inserted, err := j.Store.UpsertContinuous(ctx, bars)
	if err != nil {
		return fmt.Errorf("upsert continuous: %w", err)
	}
	slog.InfoContext(ctx, "inserted stock bars", "rows", inserted)
	return nil
}

const previewRows = 5

func previewContractBars(out io.Writer, bars []store.ContractBar) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.AppendHeader(table.Row{"symbol", "date", "open", "high", "low", "close", "volume", "contract"})
	for i, bar := range bars {
		if i >= previewRows {
			break
		}
		t.AppendRow(table.Row{
			bar.Symbol, bar.TradeDate.Format("2006-01-02"),
			bar.Open, bar.High, bar.Low, bar.Close,
			bar.Volume, bar.Contract,
		})
	}
	t.Render()
}

func previewContinuousBars(out io.Writer, bars []store.ContinuousBar) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.AppendHeader(table.Row{"date", "symbol", "open", "high", "low", "close"})
	for i, bar := range bars {
		if i >= previewRows {
			break
		}
		t.AppendRow(table.Row{
			bar.TradeDate.Format("2006-01-02"), bar.Symbol,
			bar.Open, bar.High, bar.Low, bar.Close,
		})
	}
	t.Render()
}
