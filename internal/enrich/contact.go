package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"leadpulse/internal/pipeline"
)

// ContactConfig configures the batch contact-discovery client. The
// provider API is asynchronous: a batch POST returns a request ID that is
// polled until results are ready.
type ContactConfig struct {
	APIKey  string
	BaseURL string

	// PollInterval is the wait between readiness polls; MaxPollAttempts
	// bounds how long a batch may stay pending before it is abandoned.
	PollInterval    time.Duration
	MaxPollAttempts int
}

// ContactClient resolves professional emails and phone numbers for leads
// in provider-sized batches.
type ContactClient struct {
	cfg    ContactConfig
	client *http.Client
	logger *slog.Logger
}

// NewContactClient builds a contact client. Returns nil when no API key is
// configured, which the pipeline treats as "skip the contact stage".
func NewContactClient(cfg ContactConfig, client *http.Client, logger *slog.Logger) *ContactClient {
	if cfg.APIKey == "" {
		return nil
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.dropcontact.com"
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.MaxPollAttempts <= 0 {
		cfg.MaxPollAttempts = 60
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ContactClient{cfg: cfg, client: client, logger: logger}
}

type batchRequest struct {
	Data     []batchEntry `json:"data"`
	Siren    bool         `json:"siren"`
	Language string       `json:"language"`
}

type batchEntry struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Company   string `json:"company"`
	Website   string `json:"website,omitempty"`
}

type batchSubmitResponse struct {
	RequestID string `json:"request_id"`
	Error     string `json:"error,omitempty"`
}

type batchResult struct {
	Success bool              `json:"success"`
	Reason  string            `json:"reason,omitempty"`
	Data    []batchResultItem `json:"data"`
}

type batchResultItem struct {
	Email json.RawMessage `json:"email"`
	Phone json.RawMessage `json:"phone"`
}

// EnrichBatch implements pipeline.ContactEnricher: submit the batch, poll
// until ready, map results positionally back onto the input.
func (c *ContactClient) EnrichBatch(ctx context.Context, batch []pipeline.ContactQuery) ([]pipeline.ContactInfo, error) {
	if len(batch) == 0 {
		return nil, nil
	}

	requestID, err := c.submit(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("submit contact batch: %w", err)
	}

	items, err := c.poll(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("poll contact batch %s: %w", requestID, err)
	}

	infos := make([]pipeline.ContactInfo, len(batch))
	for i := range batch {
		if i >= len(items) {
			break
		}
		infos[i] = pipeline.ContactInfo{
			Email: firstEmail(items[i].Email),
			Phone: firstPhone(items[i].Phone),
		}
	}
	return infos, nil
}

func (c *ContactClient) submit(ctx context.Context, batch []pipeline.ContactQuery) (string, error) {
	payload := batchRequest{
		Data:     make([]batchEntry, 0, len(batch)),
		Siren:    true,
		Language: "EN",
	}
	for _, q := range batch {
		payload.Data = append(payload.Data, batchEntry{
			FirstName: q.FirstName,
			LastName:  q.LastName,
			Company:   q.Company,
			Website:   q.Website,
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/batch", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Access-Token", c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var submitted batchSubmitResponse
	if err := json.NewDecoder(resp.Body).Decode(&submitted); err != nil {
		return "", err
	}
	if submitted.RequestID == "" {
		return "", fmt.Errorf("provider rejected batch: %s", submitted.Error)
	}
	return submitted.RequestID, nil
}

func (c *ContactClient) poll(ctx context.Context, requestID string) ([]batchResultItem, error) {
	for attempt := 0; attempt < c.cfg.MaxPollAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.cfg.PollInterval):
			}
		}

		result, err := c.pollOnce(ctx, requestID)
		if err != nil {
			c.logger.Debug("contact batch poll failed",
				slog.String("request_id", requestID),
				slog.Int("attempt", attempt+1),
				slog.String("error", err.Error()))
			continue
		}
		if result.Success && len(result.Data) > 0 {
			return result.Data, nil
		}
	}
	return nil, fmt.Errorf("batch not ready after %d polls", c.cfg.MaxPollAttempts)
}

func (c *ContactClient) pollOnce(ctx context.Context, requestID string) (*batchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/batch/"+requestID, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Access-Token", c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var result batchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

// firstEmail extracts the best email from a provider result field, which
// may be a string or a list of {email, qualification} objects.
func firstEmail(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var list []struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(raw, &list); err == nil {
		for _, e := range list {
			if e.Email != "" {
				return e.Email
			}
		}
	}
	return ""
}

// firstPhone extracts a phone number, which may be a string or a list of
// {number} objects.
func firstPhone(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var list []struct {
		Number string `json:"number"`
	}
	if err := json.Unmarshal(raw, &list); err == nil {
		for _, p := range list {
			if p.Number != "" {
				return p.Number
			}
		}
	}
	return ""
}
