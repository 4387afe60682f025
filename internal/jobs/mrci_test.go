package jobs_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"seasonality-backend/internal/jobs"
	"seasonality-backend/lib/testutil"

	"github.com/stretchr/testify/require"
)

const dataPage = `<html><body>
<table class="strat">
<tr><th class="note1" colspan="10">Live Cattle(CME)</th></tr>
<tr>
  <td>Jun15</td><td>150604</td>
  <td>151.40</td><td>152.05</td><td>150.10</td><td>151.77</td>
  <td>+0.37</td><td>12,345</td><td>98,765</td>
</tr>
<tr>
  <td>Aug15</td><td>150604</td>
  <td>148.00</td><td>148.90</td><td>147.20</td><td>148.50</td>
  <td>+0.50</td><td>8,000</td><td>54,321</td>
</tr>
</table>
</body></html>`

const blankPage = `<html><body><p>No data for this date.</p></body></html>`

const challengePage = `<html><head><title>Just a moment...</title></head><body></body></html>`

type fakePageSource struct {
	pages      map[string]string
	errs       map[string]error
	warmed     []int
	warmErr    error
	daysCalled []string
}

func (f *fakePageSource) WarmSession(_ context.Context, year int) error {
	f.warmed = append(f.warmed, year)
	return f.warmErr
}

func (f *fakePageSource) FetchDay(_ context.Context, d time.Time) (string, error) {
	key := d.Format("2006-01-02")
	f.daysCalled = append(f.daysCalled, key)
	if err, ok := f.errs[key]; ok {
		return "", err
	}
	return f.pages[key], nil
}

func seedRoots(t *testing.T, setup testutil.StoreResult, roots ...string) {
	err := setup.Store.EnsureAssets(context.Background(), roots, "Futures")
	require.NoError(t, err)
}

func TestMRCIRun(t *testing.T) {
	setup, cleanup := testutil.SetupStore(t, "jobs/mrci")
	defer cleanup()
	ctx := context.Background()
	seedRoots(t, setup, "LC", "LH")

	source := &fakePageSource{
		pages: map[string]string{
			"2015-06-04": dataPage,
			"2015-06-05": blankPage,
			"2015-06-07": challengePage,
		},
		errs: map[string]error{
			"2015-06-06": fmt.Errorf("connection reset"),
		},
	}

	job := jobs.MRCIJob{Source: source, Store: setup.Store}
	err := job.Run(ctx, jobs.MRCIOptions{
		Start: tradeDate(2015, 6, 4),
		End:   tradeDate(2015, 6, 7),
	})
	require.NoError(t, err)

	require.Equal(t,
		[]string{"2015-06-04", "2015-06-05", "2015-06-06", "2015-06-07"},
		source.daysCalled)
	require.Equal(t, []int{2015}, source.warmed)

	require.Equal(t, 2, countRows(t, setup, "mrci_contract_prices"))

	var contract string
	var volume int64
	err = setup.DB.QueryRow(
		`SELECT contract, volume FROM mrci_contract_prices WHERE symbol = $1 AND contract = $2`,
		"LC", "Jun15",
	).Scan(&contract, &volume)
	require.NoError(t, err)
	require.Equal(t, int64(12345), volume)

	// bad days still advance the checkpoint
	checkpoint, err := setup.Store.Checkpoint(ctx)
	require.NoError(t, err)
	require.Equal(t, tradeDate(2015, 6, 7), checkpoint)
}

func TestMRCIRunResumesFromCheckpoint(t *testing.T) {
	setup, cleanup := testutil.SetupStore(t, "jobs/mrci-resume")
	defer cleanup()
	ctx := context.Background()
	seedRoots(t, setup, "LC")

	err := setup.Store.SetCheckpoint(ctx, tradeDate(2015, 6, 5))
	require.NoError(t, err)

	source := &fakePageSource{
		pages: map[string]string{
			"2015-06-05": blankPage,
			"2015-06-06": blankPage,
		},
	}

	job := jobs.MRCIJob{Source: source, Store: setup.Store}
	err = job.Run(ctx, jobs.MRCIOptions{End: tradeDate(2015, 6, 6)})
	require.NoError(t, err)

	require.Equal(t, []string{"2015-06-05", "2015-06-06"}, source.daysCalled)
}

func TestMRCIRunRequiresAssets(t *testing.T) {
	setup, cleanup := testutil.SetupStore(t, "jobs/mrci-empty")
	defer cleanup()
	ctx := context.Background()

	source := &fakePageSource{}
	job := jobs.MRCIJob{Source: source, Store: setup.Store}

	err := job.Run(ctx, jobs.MRCIOptions{End: tradeDate(2015, 6, 6)})
	require.Error(t, err)
	require.Contains(t, err.Error(), "assets table is empty")
	require.Empty(t, source.daysCalled)
}

func TestMRCIRunWarmupFailureIsNotFatal(t *testing.T) {
	setup, cleanup := testutil.SetupStore(t, "jobs/mrci-warm")
	defer cleanup()
	ctx := context.Background()
	seedRoots(t, setup, "LC")

	source := &fakePageSource{
		warmErr: fmt.Errorf("timeout"),
		pages:   map[string]string{"2015-06-05": blankPage},
	}

	job := jobs.MRCIJob{Source: source, Store: setup.Store}
	err := job.Run(ctx, jobs.MRCIOptions{
		Start: tradeDate(2015, 6, 5),
		End:   tradeDate(2015, 6, 5),
	})
	require.NoError(t, err)
	require.Equal(t, []string{"2015-06-05"}, source.daysCalled)
}
