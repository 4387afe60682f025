package databento

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	SchemaOHLCV1D = "ohlcv-1d"
	StypeParent   = "parent"
)

// fixed-precision price unit used by the wire format
const priceScale = 1e9

type GetRangeParams struct {
	Dataset string
	Symbols []string
	Schema  string
	// StypeIn is the input symbology, e.g. "parent" to expand a futures
	// root into all of its contracts. Empty means native symbols.
	StypeIn string
	Start   time.Time
	End     time.Time
}

func (p GetRangeParams) query() url.Values {
	q := url.Values{}
	q.Set("dataset", p.Dataset)
	q.Set("symbols", strings.Join(p.Symbols, ","))
	q.Set("schema", p.Schema)
	q.Set("start", p.Start.Format("2006-01-02"))
	q.Set("end", p.End.Format("2006-01-02"))
	if p.StypeIn != "" {
		q.Set("stype_in", p.StypeIn)
	}
	return q
}

// OHLCVBar is one decoded daily bar.
type OHLCVBar struct {
	Symbol       string
	InstrumentID int64
	TradeDate    time.Time
	Open         float64
	High         float64
	Low          float64
	Close        float64
	Volume       int64
}

// TimeseriesGetRange fetches daily bars for the given params. The response
// is newline-delimited JSON with nanosecond timestamps and 1e-9 scaled
// fixed-precision prices.
func (c *Client) TimeseriesGetRange(ctx context.Context, p GetRangeParams) ([]OHLCVBar, error) {
	q := p.query()
	q.Set("encoding", "json")
	q.Set("map_symbols", "true")

	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParamsFromValues(q).
		Get("/v0/timeseries.get_range")
	if err != nil {
		return nil, fmt.Errorf("get_range: %w", err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("get_range: %s: %s", res.Status(), truncate(res.String(), 200))
	}

	return decodeBars(strings.NewReader(res.String()))
}

type ohlcvRecord struct {
	Hd struct {
		TsEvent      string `json:"ts_event"`
		InstrumentID int64  `json:"instrument_id"`
	} `json:"hd"`
	Open   string `json:"open"`
	High   string `json:"high"`
	Low    string `json:"low"`
	Close  string `json:"close"`
	Volume string `json:"volume"`
	Symbol string `json:"symbol"`
}

func decodeBars(r io.Reader) ([]OHLCVBar, error) {
	var bars []OHLCVBar

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var rec ohlcvRecord
		err := json.Unmarshal([]byte(line), &rec)
		if err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}

		bar, err := rec.toBar()
		if err != nil {
			return nil, err
		}
		bars = append(bars, bar)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return bars, nil
}

func (rec ohlcvRecord) toBar() (OHLCVBar, error) {
	ns, err := strconv.ParseInt(rec.Hd.TsEvent, 10, 64)
	if err != nil {
		return OHLCVBar{}, fmt.Errorf("ts_event %q: %w", rec.Hd.TsEvent, err)
	}

	open, err := parsePrice(rec.Open)
	if err != nil {
		return OHLCVBar{}, err
	}
	high, err := parsePrice(rec.High)
	if err != nil {
		return OHLCVBar{}, err
	}
	low, err := parsePrice(rec.Low)
	if err != nil {
		return OHLCVBar{}, err
	}
	clos, err := parsePrice(rec.Close)
	if err != nil {
		return OHLCVBar{}, err
	}

	var volume int64
	if rec.Volume != "" {
		volume, err = strconv.ParseInt(rec.Volume, 10, 64)
		if err != nil {
			return OHLCVBar{}, fmt.Errorf("volume %q: %w", rec.Volume, err)
		}
	}

	return OHLCVBar{
		Symbol:       rec.Symbol,
		InstrumentID: rec.Hd.InstrumentID,
		TradeDate:    time.Unix(0, ns).UTC(),
		Open:         open,
		High:         high,
		Low:          low,
		Close:        clos,
		Volume:       volume,
	}, nil
}

func parsePrice(raw string) (float64, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("price %q: %w", raw, err)
	}
	return float64(v) / priceScale, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
