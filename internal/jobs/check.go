package jobs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"seasonality-backend/internal/databento"
	"seasonality-backend/internal/store"

	"github.com/jedib0t/go-pretty/v6/table"
)

// CostSource is the slice of the Databento client the preflight check
// needs: metadata only, no data is ever fetched.
type CostSource interface {
	MetadataDatasetRange(ctx context.Context, dataset string) (databento.DatasetRange, error)
	MetadataGetCost(ctx context.Context, p databento.GetRangeParams) (float64, error)
}

// RunDatabentoCheck verifies dataset access and prints per-root cost
// estimates for the last 7 days, plus an aggregate for the whole window.
func RunDatabentoCheck(ctx context.Context, src CostSource, out io.Writer) error {
	end := store.DateOf(time.Now().UTC())
	start := end.AddDate(0, 0, -7)

	datasetRange, err := src.MetadataDatasetRange(ctx, databento.FuturesDataset)
	if err != nil {
		return fmt.Errorf("no access to %s: %w", databento.FuturesDataset, err)
	}
	fmt.Fprintf(out, "%s available: %s to %s\n",
		databento.FuturesDataset, datasetRange.StartDate, datasetRange.EndDate)

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.AppendHeader(table.Row{"root", "7-day cost (usd)"})

	var available []string
	total := 0.0
	for _, root := range databento.FuturesRootSymbols() {
		cost, err := src.MetadataGetCost(ctx, databento.GetRangeParams{
			Dataset: databento.FuturesDataset,
			Symbols: []string{root},
			StypeIn: databento.StypeParent,
			Schema:  databento.SchemaOHLCV1D,
			Start:   start,
			End:     end,
		})
		if err != nil {
			slog.WarnContext(ctx, "cost estimate failed", "root", root, "err", err)
			continue
		}
		t.AppendRow(table.Row{root, fmt.Sprintf("%.4f", cost)})
		available = append(available, root)
		total += cost
	}
	t.AppendFooter(table.Row{"total", fmt.Sprintf("%.2f", total)})
	t.Render()

	if len(available) == 0 {
		return fmt.Errorf("no futures roots available")
	}

	stocksRange, err := src.MetadataDatasetRange(ctx, databento.StocksDataset)
	if err != nil {
		slog.WarnContext(ctx, "stocks dataset unavailable", "dataset", databento.StocksDataset, "err", err)
		return nil
	}
	fmt.Fprintf(out, "%s available: %s to %s\n",
		databento.StocksDataset, stocksRange.StartDate, stocksRange.EndDate)

	stockCost, err := src.MetadataGetCost(ctx, databento.GetRangeParams{
		Dataset: databento.StocksDataset,
		Symbols: databento.StockSymbols,
		Schema:  databento.SchemaOHLCV1D,
		Start:   start,
		End:     end,
	})
	if err != nil {
		slog.WarnContext(ctx, "stock cost estimate failed", "err", err)
		return nil
	}
	fmt.Fprintf(out, "stocks 7-day cost: $%.4f\n", stockCost)

	return nil
}
