// Package databento is a minimal client for the Databento Historical HTTP
// API, covering just the surface the fetch job needs: daily OHLCV ranges
// plus the metadata endpoints used for preflight cost checks.
package databento

import (
	"fmt"
	"time"

	"seasonality-backend/lib/telemetry"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const DefaultBaseURL = "https://hist.databento.com"

type Client struct {
	http *resty.Client
}

type ClientOptions struct {
	// APIKey authenticates as the basic-auth username, password empty.
	APIKey  string
	BaseURL string
	// RequestsPerSecond caps the client-side request rate. Defaults to 5.
	RequestsPerSecond float64
}

func NewClient(opts ClientOptions) (*Client, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("databento api key is required")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 5
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseURL)
	client.SetBasicAuth(opts.APIKey, "")
	client.SetTimeout(time.Minute * 2)

	limiter := rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return limiter.Wait(req.Context())
	})

	telemetry.InstrumentResty(client, "databento/http")

	return &Client{http: client}, nil
}
