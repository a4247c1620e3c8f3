package scrape

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

// profileTextJS pulls the readable sections of a profile page: the
// headline panel plus the about and experience sections, falling back to
// the full main content when none of them resolve.
const profileTextJS = `(() => {
	const parts = [];
	const sections = [
		'.pv-text-details__left-panel',
		'#about',
		'#experience',
		'.artdeco-card',
	];
	for (const sel of sections) {
		const el = document.querySelector(sel);
		if (el && el.innerText && el.innerText.trim()) {
			parts.push(el.innerText.trim());
		}
	}
	if (parts.length === 0) {
		const main = document.querySelector('main') || document.body;
		if (main && main.innerText) parts.push(main.innerText.trim());
	}
	return parts.join('\n\n');
})()`

// ProfileTextLimit caps the profile text handed to the AI stage.
const ProfileTextLimit = 3000

// ProfileConfig tunes the profile-page fetcher.
type ProfileConfig struct {
	// CookiesPath points at a Cookie-Editor export for the profile
	// network's session. Profiles behind an auth wall come back empty
	// without it.
	CookiesPath string
	// RequestDelay is the wait between profile visits.
	RequestDelay time.Duration
	// MaxTextLen caps the text returned per profile.
	MaxTextLen int
}

// ProfileFetcher implements pipeline.ProfileFetcher: one headless browser
// session per batch, visiting each profile URL sequentially.
type ProfileFetcher struct {
	cfg    ProfileConfig
	logger *slog.Logger
}

// NewProfileFetcher builds a profile-page fetcher.
func NewProfileFetcher(cfg ProfileConfig, logger *slog.Logger) *ProfileFetcher {
	if cfg.RequestDelay <= 0 {
		cfg.RequestDelay = 2 * time.Second
	}
	if cfg.MaxTextLen <= 0 {
		cfg.MaxTextLen = ProfileTextLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ProfileFetcher{cfg: cfg, logger: logger}
}

// FetchProfiles visits each profile URL in one browser session and
// returns the page text positionally. A page that cannot be read (auth
// wall, navigation error) yields an empty string; only context
// cancellation aborts the batch.
func (f *ProfileFetcher) FetchProfiles(ctx context.Context, urls []string) ([]string, error) {
	texts := make([]string, len(urls))
	if len(urls) == 0 {
		return texts, nil
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.NoSandbox,
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	if count, err := injectCookies(browserCtx, f.cfg.CookiesPath); err != nil {
		f.logger.Warn("profile cookie injection failed, pages may hit the auth wall",
			slog.String("error", err.Error()))
	} else if count == 0 {
		f.logger.Warn("no profile session cookies configured, pages may hit the auth wall")
	}

	for i, url := range urls {
		if err := ctx.Err(); err != nil {
			return texts, err
		}
		texts[i] = f.fetchOne(browserCtx, url)
		f.logger.Info("profile page fetched",
			slog.String("url", url),
			slog.Int("chars", len(texts[i])),
			slog.Int("remaining", len(urls)-i-1))

		if i < len(urls)-1 {
			select {
			case <-ctx.Done():
				return texts, ctx.Err()
			case <-time.After(f.cfg.RequestDelay):
			}
		}
	}
	return texts, nil
}

func (f *ProfileFetcher) fetchOne(ctx context.Context, url string) string {
	var current, text string
	err := chromedp.Run(ctx,
		chromedp.Navigate(url),
		chromedp.Sleep(3*time.Second),
		chromedp.Location(&current),
	)
	if err != nil {
		f.logger.Warn("profile navigation failed",
			slog.String("url", url),
			slog.String("error", err.Error()))
		return ""
	}
	if isLoginURL(current) {
		f.logger.Warn("profile behind auth wall", slog.String("url", url))
		return ""
	}

	if err := chromedp.Run(ctx, chromedp.Evaluate(profileTextJS, &text)); err != nil {
		f.logger.Warn("profile text extraction failed",
			slog.String("url", url),
			slog.String("error", err.Error()))
		return ""
	}
	return cleanProfileText(text, f.cfg.MaxTextLen)
}

var blankLines = regexp.MustCompile(`\n{3,}`)

// cleanProfileText collapses blank-line runs and trims the text to limit
// runes without splitting a multi-byte character.
func cleanProfileText(text string, limit int) string {
	text = strings.TrimSpace(blankLines.ReplaceAllString(text, "\n\n"))
	runes := []rune(text)
	if len(runes) > limit {
		return string(runes[:limit])
	}
	return text
}
