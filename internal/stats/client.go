// Package stats is the client of the view-counting service.
package stats

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/event-participation/internal/model"
	"github.com/cenkalti/backoff/v5"
)

// Client talks to the stats service over HTTP. Every failure it returns
// wraps model.ErrServiceUnavailable.
type Client struct {
	baseURL    string
	http       *http.Client
	hitRetries uint
	backoff    func() backoff.BackOff
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithHitRetries sets how many times RecordHit tries before giving up.
func WithHitRetries(n uint) Option {
	return func(cl *Client) {
		if n > 0 {
			cl.hitRetries = n
		}
	}
}

// WithBackOff sets the retry schedule used by RecordHit.
func WithBackOff(fn func() backoff.BackOff) Option {
	return func(cl *Client) { cl.backoff = fn }
}

// NewClient constructs a Client for the service at baseURL.
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		http:       &http.Client{Timeout: timeout},
		hitRetries: 3,
		backoff:    func() backoff.BackOff { return backoff.NewExponentialBackOff() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RecordHit sends hit to the stats service, retrying transient failures.
// Client errors (4xx) are not retried.
func (c *Client) RecordHit(ctx context.Context, hit model.Hit) error {
	body, err := json.Marshal(hit)
	if err != nil {
		return fmt.Errorf("encode hit: %w", err)
	}

	send := func() (struct{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/hit", bytes.NewReader(body))
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return struct{}{}, err
		}
		defer drain(resp)

		switch {
		case resp.StatusCode >= 500:
			return struct{}{}, fmt.Errorf("stats responded %d", resp.StatusCode)
		case resp.StatusCode >= 300:
			return struct{}{}, backoff.Permanent(fmt.Errorf("stats responded %d", resp.StatusCode))
		}
		return struct{}{}, nil
	}

	_, err = backoff.Retry(ctx, send,
		backoff.WithBackOff(c.backoff()),
		backoff.WithMaxTries(c.hitRetries),
	)
	if err != nil {
		return fmt.Errorf("%w: record hit: %w", model.ErrServiceUnavailable, err)
	}
	return nil
}

// GetViews returns hit counts per uri between start and end. When unique is
// set each client ip is counted once per uri.
func (c *Client) GetViews(ctx context.Context, start, end time.Time, uris []string, unique bool) ([]model.ViewStats, error) {
	q := url.Values{}
	q.Set("start", start.UTC().Format(model.StatsTimeLayout))
	q.Set("end", end.UTC().Format(model.StatsTimeLayout))
	for _, u := range uris {
		q.Add("uris", u)
	}
	q.Set("unique", strconv.FormatBool(unique))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/stats?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build stats request: %w", model.ErrServiceUnavailable, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: get stats: %w", model.ErrServiceUnavailable, err)
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: stats responded %d", model.ErrServiceUnavailable, resp.StatusCode)
	}
	var out []model.ViewStats
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode stats: %w", model.ErrServiceUnavailable, err)
	}
	return out, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
