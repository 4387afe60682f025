// Package mrci scrapes the daily OHLC pages on mrci.com. The site sits
// behind Cloudflare, so the client carries a bypass transport, a pinned
// browser user agent and a cookie jar persisted inside a profile directory
// so a cf_clearance cookie survives between runs.
package mrci

import (
	"context"
	"fmt"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"seasonality-backend/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const DefaultBaseURL = "https://www.mrci.com"
const DefaultProfileDir = "./mrci_profile"

// delay between page fetches, the site is small and easily hammered
const DefaultThrottle = 400 * time.Millisecond

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/138.0.0.0 Safari/537.36"

type Client struct {
	http    *resty.Client
	baseURL *url.URL
	session *sessionFile
}

type ClientOptions struct {
	BaseURL    string
	ProfileDir string
	UserAgent  string
	Throttle   time.Duration
}

func NewClient(opts ClientOptions) (*Client, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.ProfileDir == "" {
		opts.ProfileDir = DefaultProfileDir
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.Throttle <= 0 {
		opts.Throttle = DefaultThrottle
	}

	baseURL, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, err
	}

	err = os.MkdirAll(opts.ProfileDir, 0o755)
	if err != nil {
		return nil, fmt.Errorf("create profile dir: %w", err)
	}
	session := &sessionFile{path: filepath.Join(opts.ProfileDir, "cookies.json")}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	cookies, err := session.load()
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if len(cookies) > 0 {
		jar.SetCookies(baseURL, cookies)
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseURL)
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	client.SetHeader("user-agent", opts.UserAgent)
	client.SetTimeout(time.Second * 20)

	limiter := rate.NewLimiter(rate.Every(opts.Throttle), 1)
	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return limiter.Wait(req.Context())
	})

	telemetry.InstrumentResty(client, "mrci/http")

	return &Client{
		http:    client,
		baseURL: baseURL,
		session: session,
	}, nil
}

// PagePath is the site path of the OHLC page for a given trade date.
func PagePath(d time.Time) string {
	return fmt.Sprintf("/ohlc/%d/%s.php", d.Year(), d.Format("060102"))
}

// WarmSession visits the yearly index page before the day loop starts,
// which helps with the Cloudflare check and sets a plausible referer chain.
func (c *Client) WarmSession(ctx context.Context, year int) error {
	_, err := c.http.R().
		SetContext(ctx).
		Get(fmt.Sprintf("/ohlc/%d/", year))
	if err != nil {
		return err
	}
	return c.persistCookies()
}

// FetchDay returns the raw HTML of the OHLC page for d. Non-2xx responses
// are returned as page content rather than errors: a Cloudflare challenge
// page is still a page, and the caller classifies it.
func (c *Client) FetchDay(ctx context.Context, d time.Time) (string, error) {
	res, err := c.http.R().
		SetContext(ctx).
		Get(PagePath(d))
	if err != nil {
		return "", err
	}

	err = c.persistCookies()
	if err != nil {
		return "", err
	}
	return res.String(), nil
}

func (c *Client) persistCookies() error {
	jar := c.http.GetClient().Jar
	if jar == nil {
		return nil
	}
	return c.session.save(jar.Cookies(c.baseURL))
}

type PageKind int

const (
	// the Cloudflare interstitial
	PageChallenge PageKind = iota
	// a page carrying the OHLC data table
	PageData
	// anything else, e.g. a weekend page with no table
	PageBlank
)

// ClassifyPage decides what kind of page a fetched body is.
func ClassifyPage(html string) PageKind {
	if strings.Contains(html, "Just a moment") {
		return PageChallenge
	}
	if strings.Contains(html, `class="strat"`) {
		return PageData
	}
	return PageBlank
}
