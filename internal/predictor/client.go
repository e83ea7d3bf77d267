package predictor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

const defaultMaxPerMin = 60

// Client calls an external model service at POST {baseURL}/predict.
type Client struct {
	baseURL    string
	httpClient *http.Client
	fallback   Predictor

	// Rate limiting: max calls per minute.
	mu        sync.Mutex
	callCount int
	resetAt   time.Time
	maxPerMin int
}

// NewClient creates a model service client.
// Returns nil if baseURL is empty (remote model disabled).
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		return nil
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
		fallback:  Baseline{},
		maxPerMin: defaultMaxPerMin,
	}
}

// FromURL returns a remote client when baseURL is set and Baseline otherwise.
func FromURL(baseURL string) Predictor {
	if c := NewClient(baseURL); c != nil {
		return c
	}
	return Baseline{}
}

// Enabled returns true if the client has a service URL.
func (c *Client) Enabled() bool {
	return c != nil && c.baseURL != ""
}

type request struct {
	Area      int `json:"area"`
	Units     int `json:"units"`
	Intensity int `json:"intensity"`
}

type response struct {
	Time float64 `json:"time"`
	Risk int     `json:"risk"`
}

// Predict implements Predictor. Any remote failure, including the local
// rate limit, falls back to Baseline and is logged.
func (c *Client) Predict(ctx context.Context, area, units, intensity int) (Estimate, error) {
	if !c.Enabled() {
		return Baseline{}.Predict(ctx, area, units, intensity)
	}
	est, err := c.remote(ctx, area, units, intensity)
	if err != nil {
		slog.Warn("model service unavailable, using baseline", "error", err)
		return c.fallback.Predict(ctx, area, units, intensity)
	}
	return est, nil
}

func (c *Client) remote(ctx context.Context, area, units, intensity int) (Estimate, error) {
	// Rate limiting.
	c.mu.Lock()
	now := time.Now()
	if now.After(c.resetAt) {
		c.callCount = 0
		c.resetAt = now.Add(time.Minute)
	}
	if c.callCount >= c.maxPerMin {
		c.mu.Unlock()
		return Estimate{}, fmt.Errorf("rate limit exceeded (%d calls/min)", c.maxPerMin)
	}
	c.callCount++
	c.mu.Unlock()

	body, err := json.Marshal(request{Area: area, Units: units, Intensity: intensity})
	if err != nil {
		return Estimate{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return Estimate{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Estimate{}, fmt.Errorf("model call: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Estimate{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Estimate{}, fmt.Errorf("model error %d: %s", resp.StatusCode, string(respBody))
	}

	var out response
	if err := json.Unmarshal(respBody, &out); err != nil {
		return Estimate{}, fmt.Errorf("unmarshal response: %w", err)
	}

	slog.Debug("model call", "area", area, "units", units, "intensity", intensity, "time", out.Time, "risk", out.Risk)
	return Estimate{Time: out.Time, Risk: out.Risk == 1}, nil
}
