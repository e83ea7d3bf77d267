// Package entropy provides the injectable random sources used by the fire
// model and the crews. Reproducible runs use a Seeded source; the random.org
// Client is available for live runs that want true randomness.
package entropy

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const randomOrgURL = "https://api.random.org/json-rpc/4/invoke"

// Pool tuning. A refill is requested once the pool drops below lowWater.
const (
	batchSize     = 500
	lowWater      = 100
	fetchTimeout  = 10 * time.Second
	minRetryDelay = 30 * time.Second
	maxRetryDelay = 10 * time.Minute
)

// Client is a Source backed by a pool of random.org decimal fractions.
//
// Draws never touch the network. When the pool runs low a single background
// refill is started; until it lands, or while the API is cooling down after
// a failure, draws come from crypto/rand.
type Client struct {
	apiKey   string
	endpoint string
	httpc    *http.Client
	now      func() time.Time

	mu        sync.Mutex
	pool      []float64
	fetching  bool
	retryAt   time.Time
	retryWait time.Duration
	fetches   sync.WaitGroup
}

// NewClient creates a random.org client. Returns nil if apiKey is empty.
func NewClient(apiKey string) *Client {
	if apiKey == "" {
		return nil
	}
	return &Client{
		apiKey:   apiKey,
		endpoint: randomOrgURL,
		httpc:    &http.Client{Timeout: fetchTimeout},
		now:      time.Now,
	}
}

// Enabled reports whether the client has an API key.
func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

// Float64 implements Source.
func (c *Client) Float64() float64 {
	if c == nil {
		return cryptoRandFloat()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.pool) < lowWater && !c.fetching && !c.now().Before(c.retryAt) {
		c.fetching = true
		c.fetches.Add(1)
		go c.fetch()
	}
	if len(c.pool) == 0 {
		return cryptoRandFloat()
	}
	v := c.pool[len(c.pool)-1]
	c.pool = c.pool[:len(c.pool)-1]
	return v
}

// fetch runs one refill and records the outcome.
func (c *Client) fetch() {
	defer c.fetches.Done()

	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()
	vals, err := c.request(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetching = false
	if err != nil {
		switch {
		case c.retryWait == 0:
			c.retryWait = minRetryDelay
		case c.retryWait < maxRetryDelay:
			c.retryWait = min(2*c.retryWait, maxRetryDelay)
		}
		c.retryAt = c.now().Add(c.retryWait)
		slog.Warn("random.org unavailable, using crypto/rand",
			"error", err,
			"retry_in", c.retryWait,
		)
		return
	}
	c.retryWait = 0
	c.retryAt = time.Time{}
	c.pool = append(vals, c.pool...)
	slog.Debug("random.org pool refilled", "added", len(vals), "pool", len(c.pool))
}

func (c *Client) request(ctx context.Context) ([]float64, error) {
	body, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"method":  "generateDecimalFractions",
		"params": map[string]any{
			"apiKey":        c.apiKey,
			"n":             batchSize,
			"decimalPlaces": 6,
		},
		"id": 1,
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()

	var out struct {
		Result struct {
			Random struct {
				Data []float64 `json:"data"`
			} `json:"random"`
		} `json:"result"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	if out.Error != nil {
		return nil, fmt.Errorf("api error: %s", out.Error.Message)
	}

	vals := make([]float64, 0, len(out.Result.Random.Data))
	for _, v := range out.Result.Random.Data {
		// 6 decimal places can round up to exactly 1.
		if v >= 0 && v < 1 {
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		return nil, fmt.Errorf("empty batch (status %d)", resp.StatusCode)
	}
	return vals, nil
}

// cryptoRandFloat draws 53 bits from crypto/rand as a float in [0, 1).
func cryptoRandFloat() float64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0.5
	}
	return float64(binary.LittleEndian.Uint64(buf[:])>>11) / float64(1<<53)
}
