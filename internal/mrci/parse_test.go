package mrci

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// trimmed-down shape of a real OHLC page: section headers as th.note1,
// data rows with contract, yymmdd date, OHLC, change, volume, OI
const samplePage = `
<html><body>
<table class="strat">
  <tr><th class="note1" colspan="9">Live Cattle(CME)</th></tr>
  <tr>
    <td>Jun15</td><td>150601</td>
    <td>151.20</td><td>152.00</td><td>150.10</td><td>151.80</td>
    <td>+0.60</td><td>4,200</td><td>12,345</td>
  </tr>
  <tr>
    <td>Aug15</td><td>150601</td>
    <td>-</td><td>&nbsp;</td><td></td><td>149.90</td>
    <td>-0.15</td><td>-</td><td>9,876</td>
  </tr>
  <tr>
    <td>Oct15</td><td>badDate</td>
    <td>148.00</td><td>148.50</td><td>147.20</td><td>147.90</td>
    <td>-0.10</td><td>oops</td><td>1,000</td>
  </tr>
  <tr><td>Total Volume</td><td>14,076</td></tr>
  <tr><td>short</td><td>row</td></tr>
  <tr><th class="note1" colspan="9">Random Spread(XYZ)</th></tr>
  <tr>
    <td>Jul15</td><td>150601</td>
    <td>1.00</td><td>1.10</td><td>0.90</td><td>1.05</td>
    <td>+0.05</td><td>10</td><td>20</td>
  </tr>
  <tr><th class="note1" colspan="9">Lean Hogs(CME)</th></tr>
  <tr>
    <td>Jul15</td><td>150601</td>
    <td>82.10</td><td>83.00</td><td>81.50</td><td>82.70</td>
    <td>+0.40</td><td>2,500</td><td>7,700</td>
  </tr>
</table>
</body></html>
`

var knownAssets = map[string]bool{"LC": true, "LH": true}

func pageDate() time.Time {
	return time.Date(2015, 6, 1, 0, 0, 0, 0, time.UTC)
}

func TestParseDay(t *testing.T) {
	rows, stats, err := ParseDay(strings.NewReader(samplePage), pageDate(), knownAssets)
	require.NoError(t, err)

	require.True(t, stats.HadTable)
	// total-volume and short rows are never scanned
	require.Equal(t, 5, stats.LinesScanned)
	require.Equal(t, 3, stats.RowsParsed)
	require.Equal(t, 1, stats.RowsUnknownRoot)
	require.Equal(t, 1, stats.RowsBadFormat)
	require.Equal(t, []string{"Random Spread(XYZ)"}, stats.UnknownSections)

	require.Len(t, rows, 3)

	jun := rows[0]
	require.Equal(t, "LC", jun.Symbol)
	require.Equal(t, "Jun15", jun.Contract)
	require.Equal(t, pageDate(), jun.TradeDate)
	require.True(t, jun.Open.Valid)
	require.InDelta(t, 151.20, jun.Open.Float64, 1e-9)
	require.InDelta(t, 151.80, jun.Close.Float64, 1e-9)
	require.True(t, jun.Volume.Valid)
	require.Equal(t, int64(4200), jun.Volume.Int64)
	require.Equal(t, int64(12345), jun.OpenInterest.Int64)

	// blank markers become nulls
	aug := rows[1]
	require.Equal(t, "Aug15", aug.Contract)
	require.False(t, aug.Open.Valid)
	require.False(t, aug.High.Valid)
	require.False(t, aug.Low.Valid)
	require.True(t, aug.Close.Valid)
	require.False(t, aug.Volume.Valid)
	require.True(t, aug.OpenInterest.Valid)

	hogs := rows[2]
	require.Equal(t, "LH", hogs.Symbol)
	require.Equal(t, int64(2500), hogs.Volume.Int64)
}

func TestParseDayNoTable(t *testing.T) {
	rows, stats, err := ParseDay(strings.NewReader("<html><body>nothing here</body></html>"), pageDate(), knownAssets)
	require.NoError(t, err)
	require.False(t, stats.HadTable)
	require.Empty(t, rows)
}

func TestParseYYMMDD(t *testing.T) {
	d, ok := parseYYMMDD("241220")
	require.True(t, ok)
	require.Equal(t, time.Date(2024, 12, 20, 0, 0, 0, 0, time.UTC), d)

	// century pivot at 1970
	d, ok = parseYYMMDD("700104")
	require.True(t, ok)
	require.Equal(t, 1970, d.Year())

	d, ok = parseYYMMDD("690104")
	require.True(t, ok)
	require.Equal(t, 2069, d.Year())

	_, ok = parseYYMMDD("2024-12-20")
	require.False(t, ok)
	_, ok = parseYYMMDD("991340")
	require.False(t, ok)
}

func TestCellCleaning(t *testing.T) {
	f, err := toFloat(" 1,234.50 ")
	require.NoError(t, err)
	require.True(t, f.Valid)
	require.InDelta(t, 1234.50, f.Float64, 1e-9)

	f, err = toFloat("-")
	require.NoError(t, err)
	require.False(t, f.Valid)

	f, err = toFloat(" ")
	require.NoError(t, err)
	require.False(t, f.Valid)

	_, err = toFloat("12x.4")
	require.Error(t, err)

	n, err := toInt("9,876")
	require.NoError(t, err)
	require.Equal(t, int64(9876), n.Int64)

	n, err = toInt("")
	require.NoError(t, err)
	require.False(t, n.Valid)
}
