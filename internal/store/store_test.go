package store_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"seasonality-backend/internal/store"
	"seasonality-backend/lib/testutil"

	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestEnsureAssets(t *testing.T) {
	setup, cleanup := testutil.SetupStore(t, "store/assets")
	defer cleanup()
	s := setup.Store
	ctx := context.Background()

	err := s.EnsureAssets(ctx, []string{"CL", "NG", "ZS"}, "Futures")
	require.NoError(t, err)

	// repeat runs must not fail or duplicate
	err = s.EnsureAssets(ctx, []string{"CL", "STKSPY"}, "Stock")
	require.NoError(t, err)

	symbols, err := s.AssetSymbols(ctx)
	require.NoError(t, err)
	require.Len(t, symbols, 4)
	require.True(t, symbols["CL"])
	require.True(t, symbols["STKSPY"])
}

func TestUpsertHistorical(t *testing.T) {
	setup, cleanup := testutil.SetupStore(t, "store/historical")
	defer cleanup()
	s := setup.Store
	ctx := context.Background()

	bars := []store.ContractBar{
		{Symbol: "ES", TradeDate: date(2024, 3, 4), Open: 5100, High: 5150, Low: 5080, Close: 5140, Volume: 120000, Contract: "ESH24"},
		{Symbol: "ES", TradeDate: date(2024, 3, 4), Open: 5110, High: 5160, Low: 5090, Close: 5150, Volume: 8000, Contract: "ESM24"},
	}
	n, err := s.UpsertHistorical(ctx, bars)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	// re-running the same window must replace, not duplicate
	bars[0].Close = 5144
	n, err = s.UpsertHistorical(ctx, bars)
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestUpsertContinuous(t *testing.T) {
	setup, cleanup := testutil.SetupStore(t, "store/continuous")
	defer cleanup()
	s := setup.Store
	ctx := context.Background()

	bars := []store.ContinuousBar{
		{TradeDate: date(2024, 3, 4), Symbol: "STKSPY", Open: 512.1, High: 514.9, Low: 510.3, Close: 514.2},
		{TradeDate: date(2024, 3, 5), Symbol: "STKSPY", Open: 514.4, High: 515.0, Low: 509.8, Close: 510.1},
	}
	n, err := s.UpsertContinuous(ctx, bars)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	n, err = s.UpsertContinuous(ctx, bars[:1])
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestInsertContractPricesCountsNewRowsOnly(t *testing.T) {
	setup, cleanup := testutil.SetupStore(t, "store/mrci")
	defer cleanup()
	s := setup.Store
	ctx := context.Background()

	rows := []store.ContractPrice{
		{
			Symbol:    "LC",
			TradeDate: date(2015, 6, 1),
			Open:      sql.NullFloat64{Float64: 151.2, Valid: true},
			High:      sql.NullFloat64{Float64: 152.0, Valid: true},
			Low:       sql.NullFloat64{Float64: 150.1, Valid: true},
			Close:     sql.NullFloat64{Float64: 151.8, Valid: true},
			Volume:    sql.NullInt64{Int64: 4200, Valid: true},
			Contract:  "Jun15",
		},
		{
			// blank cells stay null
			Symbol:    "LC",
			TradeDate: date(2015, 6, 1),
			Close:     sql.NullFloat64{Float64: 149.9, Valid: true},
			Contract:  "Aug15",
		},
	}

	n, err := s.InsertContractPrices(ctx, rows)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	// conflict rows are skipped, not updated
	n, err = s.InsertContractPrices(ctx, rows)
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestCheckpoint(t *testing.T) {
	setup, cleanup := testutil.SetupStore(t, "store/checkpoint")
	defer cleanup()
	s := setup.Store
	ctx := context.Background()

	d, err := s.Checkpoint(ctx)
	require.NoError(t, err)
	require.Equal(t, store.DefaultMRCIStart, d)

	err = s.SetCheckpoint(ctx, date(2024, 12, 20))
	require.NoError(t, err)

	d, err = s.Checkpoint(ctx)
	require.NoError(t, err)
	require.Equal(t, date(2024, 12, 20), d)
}
