package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"leadpulse/internal/pipeline"
)

// profileTextLimit caps how much scraped profile text goes into the
// prompt.
const profileTextLimit = 3000

// AIConfig configures the generative enricher.
type AIConfig struct {
	APIKey string
	Model  string

	// BaseURL overrides the API endpoint. Useful for proxies/testing.
	BaseURL string
}

// AIEnricher generates an activity summary and a conversion angle for hit
// leads using a generative model with structured JSON output.
type AIEnricher struct {
	client *genai.Client
	model  string
}

// NewAIEnricher builds the enricher. Returns (nil, nil) when no API key is
// configured, which the pipeline treats as "skip the AI stage".
func NewAIEnricher(ctx context.Context, cfg AIConfig) (*AIEnricher, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, nil
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = "gemini-2.0-flash"
	}

	cc := &genai.ClientConfig{
		APIKey:  strings.TrimSpace(cfg.APIKey),
		Backend: genai.BackendGeminiAPI,
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		cc.HTTPOptions.BaseURL = strings.TrimSpace(cfg.BaseURL)
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &AIEnricher{client: client, model: strings.TrimSpace(cfg.Model)}, nil
}

type insightResponse struct {
	ActivitySummary string `json:"activity_summary"`
	ConversionAngle string `json:"conversion_angle"`
}

var insightSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"activity_summary": {Type: genai.TypeString},
		"conversion_angle": {Type: genai.TypeString},
	},
	Required: []string{"activity_summary", "conversion_angle"},
}

// Summarize implements pipeline.AIEnricher.
func (e *AIEnricher) Summarize(ctx context.Context, lead pipeline.Lead) (pipeline.AIInsight, error) {
	var insight pipeline.AIInsight

	resp, err := e.client.Models.GenerateContent(
		ctx,
		e.model,
		genai.Text(buildPrompt(lead)),
		&genai.GenerateContentConfig{
			CandidateCount:   1,
			ResponseMIMEType: "application/json",
			ResponseSchema:   insightSchema,
		},
	)
	if err != nil {
		return insight, fmt.Errorf("generate insight: %w", err)
	}

	var parsed insightResponse
	if err := json.Unmarshal([]byte(resp.Text()), &parsed); err != nil {
		return insight, fmt.Errorf("parse insight json: %w", err)
	}

	insight.ActivitySummary = strings.TrimSpace(parsed.ActivitySummary)
	insight.ConversionAngle = strings.TrimSpace(parsed.ConversionAngle)
	return insight, nil
}

func buildPrompt(lead pipeline.Lead) string {
	var b strings.Builder
	b.WriteString(`You are a B2B prospecting assistant. From the prospect details below,
produce two concise elements for personalizing a sales approach:

1. activity_summary: 2-3 sentences on the person's professional activity.
2. conversion_angle: one actionable, personalized outreach hook for
   booking a meeting (e.g. "automate their inventory management").

Return ONLY a JSON object with exactly the keys "activity_summary" and
"conversion_angle".

Prospect:
`)
	fmt.Fprintf(&b, "Name: %s\n", lead.FullName())
	fmt.Fprintf(&b, "Title: %s\n", lead.JobTitle)
	fmt.Fprintf(&b, "Company: %s\n", lead.Company)
	fmt.Fprintf(&b, "Location: %s\n", lead.Location)
	if lead.ProfileURL != "" {
		fmt.Fprintf(&b, "Profile: %s\n", lead.ProfileURL)
	}
	if lead.Website != "" {
		fmt.Fprintf(&b, "Company website: %s\n", lead.Website)
	}
	if text := truncate(lead.ProfileText, profileTextLimit); text != "" {
		fmt.Fprintf(&b, "\nProfile page content:\n%s\n", text)
	}
	if excerpt := truncate(lead.WebsiteExcerpt, excerptLimit); excerpt != "" {
		fmt.Fprintf(&b, "\nCompany website excerpt:\n%s\n", excerpt)
	}
	return b.String()
}

// truncate caps s at limit runes without splitting a multi-byte
// character.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
