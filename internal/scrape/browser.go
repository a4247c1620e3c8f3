package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"leadpulse/internal/pipeline"
)

// Config tunes the browser scraper.
type Config struct {
	// Headless controls whether Chrome runs without a window. A visible
	// window is required when the session cookies have expired and the
	// operator must log in manually.
	Headless bool
	// CookiesPath points at a Cookie-Editor export used to restore the
	// source session.
	CookiesPath string
	// RequestDelay is the wait between page loads.
	RequestDelay time.Duration
	// LoginTimeout is how long the operator has to complete a manual
	// login when the source presents its login page.
	LoginTimeout time.Duration
}

// BrowserScraper implements pipeline.Scraper on top of a Chrome instance
// driven over the DevTools protocol.
type BrowserScraper struct {
	cfg    Config
	logger *slog.Logger
}

// NewBrowserScraper builds a scraper.
func NewBrowserScraper(cfg Config, logger *slog.Logger) *BrowserScraper {
	if cfg.RequestDelay <= 0 {
		cfg.RequestDelay = 2 * time.Second
	}
	if cfg.LoginTimeout <= 0 {
		cfg.LoginTimeout = 2 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BrowserScraper{cfg: cfg, logger: logger}
}

// leadRow mirrors the object shape produced by the in-page extractor.
type leadRow struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	JobTitle  string `json:"job_title"`
	Company   string `json:"company"`
	Location  string `json:"location"`
}

// Scrape opens the listing URL, restores the stored session, and walks the
// paginated results until maxLeads records are collected or the listing
// ends.
func (s *BrowserScraper) Scrape(ctx context.Context, listURL string, maxLeads int, progress pipeline.ProgressFunc) ([]pipeline.Lead, error) {
	if maxLeads <= 0 {
		maxLeads = 500
	}
	if progress == nil {
		progress = func(int, int, string) {}
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", s.cfg.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("start-maximized", true),
		chromedp.NoSandbox,
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	if err := s.restoreSession(browserCtx); err != nil {
		s.logger.Warn("cookie injection failed, continuing without session",
			slog.String("error", err.Error()))
	}

	progress(0, maxLeads, "Opening source page")
	if err := chromedp.Run(browserCtx,
		chromedp.Navigate(listURL),
		chromedp.Sleep(4*time.Second),
	); err != nil {
		return nil, fmt.Errorf("open listing: %w", err)
	}

	if err := s.ensureLoggedIn(browserCtx, listURL); err != nil {
		return nil, err
	}

	var (
		leads []pipeline.Lead
		seen  = map[string]struct{}{}
	)
	for pageNum := 1; len(leads) < maxLeads; pageNum++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rows, err := s.extractPage(browserCtx)
		if err != nil {
			return nil, fmt.Errorf("extract page %d: %w", pageNum, err)
		}
		if len(rows) == 0 {
			s.logger.Warn("no leads on page, stopping", slog.Int("page", pageNum))
			break
		}

		added := 0
		for _, row := range rows {
			key := strings.ToLower(row.FirstName + "|" + row.LastName + "|" + row.Company)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			leads = append(leads, pipeline.Lead{
				FirstName: row.FirstName,
				LastName:  row.LastName,
				JobTitle:  row.JobTitle,
				Company:   row.Company,
				Location:  row.Location,
			})
			added++
			if len(leads) >= maxLeads {
				break
			}
		}

		s.logger.Info("page scraped",
			slog.Int("page", pageNum),
			slog.Int("added", added),
			slog.Int("total", len(leads)))
		progress(len(leads), maxLeads, fmt.Sprintf("Scraped page %d (%d leads)", pageNum, len(leads)))

		if len(leads) >= maxLeads {
			break
		}
		moved, err := s.nextPage(browserCtx)
		if err != nil {
			return nil, fmt.Errorf("advance to page %d: %w", pageNum+1, err)
		}
		if !moved {
			break
		}
	}

	return leads, nil
}

// restoreSession loads and injects the stored cookies.
func (s *BrowserScraper) restoreSession(ctx context.Context) error {
	count, err := injectCookies(ctx, s.cfg.CookiesPath)
	if err != nil {
		return err
	}
	if count > 0 {
		s.logger.Info("session cookies injected", slog.Int("count", count))
	}
	return nil
}

// injectCookies loads a Cookie-Editor export and sets its cookies on the
// browser. A missing file injects nothing and is not an error.
func injectCookies(ctx context.Context, path string) (int, error) {
	cookies, err := LoadCookies(path)
	if err != nil {
		return 0, err
	}
	if len(cookies) == 0 {
		return 0, nil
	}

	err = chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		for _, c := range cookies {
			p := network.SetCookie(c.Name, c.Value).
				WithDomain(c.Domain).
				WithPath(c.Path).
				WithHTTPOnly(c.HTTPOnly).
				WithSecure(c.Secure)
			if c.Expires > 0 {
				expires := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
				p = p.WithExpires(&expires)
			}
			if err := p.Do(ctx); err != nil {
				return err
			}
		}
		return nil
	}))
	if err != nil {
		return 0, err
	}
	return len(cookies), nil
}

// ensureLoggedIn waits for a manual login when the source redirected to
// its login page.
func (s *BrowserScraper) ensureLoggedIn(ctx context.Context, listURL string) error {
	var current string
	if err := chromedp.Run(ctx, chromedp.Location(&current)); err != nil {
		return fmt.Errorf("read location: %w", err)
	}
	if !isLoginURL(current) {
		return nil
	}

	s.logger.Warn("login page detected, waiting for manual login",
		slog.Duration("timeout", s.cfg.LoginTimeout))

	deadline := time.Now().Add(s.cfg.LoginTimeout)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
		if err := chromedp.Run(ctx, chromedp.Location(&current)); err != nil {
			return fmt.Errorf("read location: %w", err)
		}
		if !isLoginURL(current) {
			s.logger.Info("login detected, resuming")
			return chromedp.Run(ctx,
				chromedp.Sleep(3*time.Second),
				chromedp.Navigate(listURL),
				chromedp.Sleep(4*time.Second),
			)
		}
	}
	return fmt.Errorf("login not completed within %s", s.cfg.LoginTimeout)
}

// extractPage runs the in-page extractor against the current listing page.
func (s *BrowserScraper) extractPage(ctx context.Context) ([]leadRow, error) {
	var rows []leadRow
	err := chromedp.Run(ctx,
		chromedp.Sleep(2*time.Second),
		chromedp.Evaluate(extractJS, &rows),
	)
	return rows, err
}

// nextPage clicks the pagination control. Returns false when the listing
// has no further pages.
func (s *BrowserScraper) nextPage(ctx context.Context) (bool, error) {
	var moved bool
	if err := chromedp.Run(ctx, chromedp.Evaluate(nextPageJS, &moved)); err != nil {
		return false, err
	}
	if !moved {
		return false, nil
	}
	return true, chromedp.Run(ctx, chromedp.Sleep(s.cfg.RequestDelay+2*time.Second))
}

func isLoginURL(u string) bool {
	u = strings.ToLower(u)
	for _, marker := range []string{"login", "sign_in", "signin", "auth"} {
		if strings.Contains(u, marker) {
			return true
		}
	}
	return false
}
