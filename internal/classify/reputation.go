package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ignite/attribution/internal/pkg/httpretry"
)

// HTTPReputationClient calls the IP reputation provider over HTTP with
// retries. The per-call budget is enforced by the caller's context; this is
// the only operation in the pipeline expected to block meaningfully.
type HTTPReputationClient struct {
	baseURL string
	apiKey  string
	doer    httpretry.HTTPDoer
}

// NewHTTPReputationClient creates a provider client. doer may be nil to use
// a retrying client with a bounded timeout.
func NewHTTPReputationClient(baseURL, apiKey string, doer httpretry.HTTPDoer) *HTTPReputationClient {
	if doer == nil {
		doer = httpretry.NewRetryClient(&http.Client{Timeout: 5 * time.Second}, 2)
	}
	return &HTTPReputationClient{baseURL: baseURL, apiKey: apiKey, doer: doer}
}

// Lookup fetches the raw reputation report for one IP.
func (c *HTTPReputationClient) Lookup(ctx context.Context, ip string) (*ReputationReport, error) {
	u := fmt.Sprintf("%s/%s?key=%s", c.baseURL, url.PathEscape(ip), url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build reputation request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.doer.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reputation request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("reputation provider returned %d: %s", resp.StatusCode, string(body))
	}

	var report ReputationReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return nil, fmt.Errorf("decode reputation report: %w", err)
	}
	return &report, nil
}
