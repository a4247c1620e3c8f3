package pipeline

import "context"

// ProgressFunc reports incremental completion inside a stage: done items
// out of total, with a short status message.
type ProgressFunc func(done, total int, message string)

// Scraper extracts leads from a source URL, up to maxLeads records.
// Implementations report incremental progress through the callback.
type Scraper interface {
	Scrape(ctx context.Context, url string, maxLeads int, progress ProgressFunc) ([]Lead, error)
}

// WebProfile is the result of a public web lookup for one lead.
type WebProfile struct {
	ProfileURL     string
	Website        string
	WebsiteExcerpt string
}

// WebEnricher discovers public profile and company website information
// for a single lead.
type WebEnricher interface {
	Lookup(ctx context.Context, firstName, lastName, company string) (WebProfile, error)
}

// ContactQuery identifies one lead in a contact-discovery batch.
type ContactQuery struct {
	FirstName string
	LastName  string
	Company   string
	Website   string
}

// ContactInfo is the discovered contact data for one query, positionally
// aligned with the batch that produced it.
type ContactInfo struct {
	Email string
	Phone string
}

// ContactEnricher resolves email and phone data for a batch of leads in a
// single provider round-trip. The returned slice must have the same length
// and order as the input batch.
type ContactEnricher interface {
	EnrichBatch(ctx context.Context, batch []ContactQuery) ([]ContactInfo, error)
}

// AIInsight is the generated commercial context for a hit lead.
type AIInsight struct {
	ActivitySummary string
	ConversionAngle string
}

// AIEnricher produces an activity summary and conversion angle for a lead
// using whatever context the earlier stages collected.
type AIEnricher interface {
	Summarize(ctx context.Context, lead Lead) (AIInsight, error)
}

// ProfileFetcher retrieves the visible text of public profile pages as
// extra AI context for hit leads. Results are positional: the returned
// slice has the same length and order as the input, with an empty string
// where a page could not be read. Implementations typically hold one
// browser session for the whole batch and visit the URLs sequentially.
type ProfileFetcher interface {
	FetchProfiles(ctx context.Context, urls []string) ([]string, error)
}

// Providers bundles the stage collaborators a runner needs. Contact and AI
// may be nil; the matching stage is then skipped while still contributing
// its full weight to total progress. Profile is optional context gathering
// for the AI stage; without it the stage runs on the web-enrichment
// excerpt alone.
type Providers struct {
	Scraper Scraper
	Web     WebEnricher
	Contact ContactEnricher
	AI      AIEnricher
	Profile ProfileFetcher
}
