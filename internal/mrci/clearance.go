package mrci

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
)

type ClearanceOptions struct {
	BaseURL    string
	ProfileDir string
	UserAgent  string
	// Day selects the OHLC page used to verify the clearance. Pick a
	// trading day, weekend pages have no table.
	Day time.Time
	// Timeout bounds how long the operator has to clear the challenge.
	// Defaults to 3 minutes.
	Timeout time.Duration
}

// AcquireClearance opens a headed browser on a persistent profile inside the
// profile directory, loads an OHLC page and waits until the Cloudflare
// challenge clears (on its own or solved by the operator), then copies the
// browser's cookies into the session file the scrape client reads. The
// scrape job itself never drives a browser; this runs once on a desktop
// whenever the job starts reporting challenge pages.
func AcquireClearance(ctx context.Context, opts ClearanceOptions) error {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.ProfileDir == "" {
		opts.ProfileDir = DefaultProfileDir
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Minute
	}

	baseURL, err := url.Parse(opts.BaseURL)
	if err != nil {
		return err
	}
	err = os.MkdirAll(opts.ProfileDir, 0o755)
	if err != nil {
		return fmt.Errorf("create profile dir: %w", err)
	}

	pw, err := playwright.Run()
	if err != nil {
		return fmt.Errorf("start playwright: %w", err)
	}
	defer pw.Stop()

	browser, err := pw.Chromium.LaunchPersistentContext(
		filepath.Join(opts.ProfileDir, "browser"),
		playwright.BrowserTypeLaunchPersistentContextOptions{
			Headless:  playwright.Bool(false),
			UserAgent: playwright.String(opts.UserAgent),
			Viewport:  &playwright.Size{Width: 1280, Height: 900},
			Args:      []string{"--disable-blink-features=AutomationControlled"},
		},
	)
	if err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}
	defer browser.Close()

	page, err := browser.NewPage()
	if err != nil {
		return err
	}

	target := opts.BaseURL + PagePath(opts.Day)
	_, err = page.Goto(target, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	if err != nil {
		return fmt.Errorf("open %s: %w", target, err)
	}

	slog.InfoContext(ctx, "waiting for the challenge to clear, solve it in the browser if asked",
		"url", target, "timeout", opts.Timeout)

	deadline := time.Now().Add(opts.Timeout)
	for {
		html, err := page.Content()
		if err != nil {
			return err
		}
		if ClassifyPage(html) != PageChallenge {
			break
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("challenge did not clear within %s", opts.Timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}

	cookies, err := browser.Cookies()
	if err != nil {
		return fmt.Errorf("read browser cookies: %w", err)
	}
	kept := sessionCookies(cookies, baseURL.Hostname())

	session := &sessionFile{path: filepath.Join(opts.ProfileDir, "cookies.json")}
	err = session.save(kept)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	slog.InfoContext(ctx, "clearance saved", "cookies", len(kept))
	return nil
}

// sessionCookies converts browser cookies into the jar form the scrape
// client persists, keeping only those scoped to the target host.
func sessionCookies(cookies []playwright.Cookie, host string) []*http.Cookie {
	var out []*http.Cookie
	for _, c := range cookies {
		if !strings.HasSuffix(host, strings.TrimPrefix(c.Domain, ".")) {
			continue
		}
		cookie := &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Domain:   c.Domain,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		}
		if c.Expires > 0 {
			cookie.Expires = time.Unix(int64(c.Expires), 0).UTC()
		}
		out = append(out, cookie)
	}
	return out
}
