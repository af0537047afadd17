// Package fetch provides first-success HTTP retrieval over a list of
// candidate URLs. Off-chain metadata is commonly pinned on IPFS or Arweave
// where any single gateway can be slow or dead, so every fetch carries a
// fallback list.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const maxBodyBytes = 4 * 1024 * 1024

// Client wraps an http.Client with fallback semantics.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a fetch client with the given per-request timeout.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// FirstSuccess tries each URL in order and returns the body of the first
// response with a 2xx status. Candidates are ordered by expected
// reliability, so sequential (not racing) fetch keeps load off the slower
// gateways. The error aggregates every failed attempt.
func (c *Client) FirstSuccess(ctx context.Context, urls []string) ([]byte, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("no URLs to fetch")
	}

	var lastErr error
	for _, url := range urls {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		body, err := c.fetchOne(ctx, url)
		if err != nil {
			lastErr = fmt.Errorf("fetch %s failed: %w", url, err)
			continue
		}
		return body, nil
	}
	return nil, lastErr
}

func (c *Client) fetchOne(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	return body, nil
}
