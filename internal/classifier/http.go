package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"mediaflow/internal/jobs"
	"mediaflow/internal/services"
)

// HTTPClient posts classification requests to an external service which
// answers {"verdict": "safe"|"flagged"}.
type HTTPClient struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewHTTPClient constructs a client with the given timeout (default 30s).
func NewHTTPClient(endpoint, apiKey string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		endpoint: strings.TrimSpace(endpoint),
		apiKey:   strings.TrimSpace(apiKey),
		client:   &http.Client{Timeout: timeout},
	}
}

type verdictResponse struct {
	Verdict string `json:"verdict"`
}

// Classify implements Classifier.
func (c *HTTPClient) Classify(ctx context.Context, req Request) (jobs.Sensitivity, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode classify request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "classifier", "build request", "", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "classifier", "classify", "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", services.Wrap(services.ErrExternalTool, "classifier", "classify",
			fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))), nil)
	}

	var decoded verdictResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&decoded); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "classifier", "classify", "decode response", err)
	}
	switch verdict, _ := jobs.ParseSensitivity(decoded.Verdict); verdict {
	case jobs.SensitivitySafe, jobs.SensitivityFlagged:
		return verdict, nil
	default:
		return "", services.Wrap(services.ErrExternalTool, "classifier", "classify",
			fmt.Sprintf("unexpected verdict %q", decoded.Verdict), nil)
	}
}
