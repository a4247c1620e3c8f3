package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"leadpulse/internal/pipeline"
)

// Default provider endpoints, overridable for tests.
const (
	defaultSearchBaseURL   = "https://www.googleapis.com/customsearch/v1"
	defaultDomainLookupURL = "https://autocomplete.clearbit.com/v1/companies/suggest"

	// excerptLimit caps how much website text is carried forward as AI
	// context.
	excerptLimit = 1500
)

var profileURLPattern = regexp.MustCompile(`^https?://([a-z]+\.)?linkedin\.com/in/`)

// blockedDomains are never accepted as a company website.
var blockedDomains = []string{
	"linkedin.com", "facebook.com", "twitter.com", "instagram.com",
	"youtube.com", "wikipedia.org", "glassdoor.com", "indeed.com",
	"crunchbase.com", "bloomberg.com", "forbes.com", "x.com",
}

// WebSearchConfig configures the web enricher.
type WebSearchConfig struct {
	APIKey string
	CX     string

	// SearchBaseURL and DomainLookupURL override the provider endpoints.
	SearchBaseURL   string
	DomainLookupURL string

	// RequestDelay spaces provider calls to stay inside free-tier quotas.
	RequestDelay time.Duration

	// FetchExcerpt controls whether the company website is fetched for
	// AI context after discovery.
	FetchExcerpt bool
}

// WebSearcher finds a lead's public profile via a programmable search
// engine scoped to linkedin.com, resolves the company website through a
// domain-autocomplete service, and optionally extracts a text excerpt from
// the site for downstream AI context.
type WebSearcher struct {
	cfg     WebSearchConfig
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewWebSearcher builds a web enricher. The HTTP client may be nil.
func NewWebSearcher(cfg WebSearchConfig, client *http.Client, logger *slog.Logger) *WebSearcher {
	if cfg.SearchBaseURL == "" {
		cfg.SearchBaseURL = defaultSearchBaseURL
	}
	if cfg.DomainLookupURL == "" {
		cfg.DomainLookupURL = defaultDomainLookupURL
	}
	if cfg.RequestDelay <= 0 {
		cfg.RequestDelay = 2 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSearcher{
		cfg:     cfg,
		client:  client,
		limiter: rate.NewLimiter(rate.Every(cfg.RequestDelay), 1),
		logger:  logger,
	}
}

// Lookup implements pipeline.WebEnricher.
func (w *WebSearcher) Lookup(ctx context.Context, firstName, lastName, company string) (pipeline.WebProfile, error) {
	var profile pipeline.WebProfile

	if err := w.limiter.Wait(ctx); err != nil {
		return profile, err
	}

	profileURL, err := w.findProfile(ctx, firstName, lastName, company)
	if err != nil {
		w.logger.Debug("profile search failed",
			slog.String("name", firstName+" "+lastName),
			slog.String("error", err.Error()))
	}
	profile.ProfileURL = profileURL

	if company != "" {
		website, err := w.findWebsite(ctx, company)
		if err != nil {
			w.logger.Debug("website lookup failed",
				slog.String("company", company),
				slog.String("error", err.Error()))
		}
		profile.Website = website

		if website != "" && w.cfg.FetchExcerpt {
			profile.WebsiteExcerpt = w.fetchExcerpt(ctx, website)
		}
	}

	if profile.ProfileURL == "" && profile.Website == "" && err != nil {
		return profile, err
	}
	return profile, nil
}

type searchResponse struct {
	Items []struct {
		Link string `json:"link"`
	} `json:"items"`
}

// findProfile queries the search engine for a people-profile URL.
func (w *WebSearcher) findProfile(ctx context.Context, firstName, lastName, company string) (string, error) {
	if w.cfg.APIKey == "" || w.cfg.CX == "" {
		return "", fmt.Errorf("search credentials not configured")
	}

	query := strings.TrimSpace(fmt.Sprintf("%s %s %s site:linkedin.com/in", firstName, lastName, company))
	params := url.Values{
		"key": {w.cfg.APIKey},
		"cx":  {w.cfg.CX},
		"q":   {query},
		"num": {"5"},
	}

	var result searchResponse
	if err := w.getJSON(ctx, w.cfg.SearchBaseURL+"?"+params.Encode(), &result); err != nil {
		return "", err
	}

	for _, item := range result.Items {
		if profileURLPattern.MatchString(item.Link) {
			return item.Link, nil
		}
	}
	return "", nil
}

type domainSuggestion struct {
	Name   string `json:"name"`
	Domain string `json:"domain"`
}

// findWebsite resolves a company name to its website domain.
func (w *WebSearcher) findWebsite(ctx context.Context, company string) (string, error) {
	params := url.Values{"query": {company}}

	var suggestions []domainSuggestion
	if err := w.getJSON(ctx, w.cfg.DomainLookupURL+"?"+params.Encode(), &suggestions); err != nil {
		return "", err
	}

	for _, s := range suggestions {
		if s.Domain == "" || isBlockedDomain(s.Domain) {
			continue
		}
		return "https://" + s.Domain, nil
	}
	return "", nil
}

// fetchExcerpt downloads the website and extracts readable text for AI
// context. Failures just yield an empty excerpt.
func (w *WebSearcher) fetchExcerpt(ctx context.Context, site string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, site, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := w.client.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return ""
	}

	doc.Find("script, style, noscript, nav, footer").Remove()
	text := strings.Join(strings.Fields(doc.Find("body").Text()), " ")
	return truncate(text, excerptLimit)
}

func (w *WebSearcher) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, req.URL.Host)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func isBlockedDomain(domain string) bool {
	domain = strings.ToLower(strings.TrimPrefix(domain, "www."))
	for _, b := range blockedDomains {
		if domain == b || strings.HasSuffix(domain, "."+b) {
			return true
		}
	}
	return false
}
