// Package fetch is the HTTP fetch collaborator used to retrieve the web
// client assets the differencer analyzes.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/seongkah/signing-for-paas-sub002/internal/ratelimit"
)

type Result struct {
	Body    []byte
	Status  int
	Headers http.Header
}

type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (Result, error)
}

type Client struct {
	hc       *http.Client
	timeout  time.Duration
	maxBytes int64
	limiter  *ratelimit.Limiter
	rps      float64
	burst    int
}

func NewClient(timeout time.Duration, maxBytes int64, limiter *ratelimit.Limiter, rps float64, burst int) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if maxBytes <= 0 {
		maxBytes = 4 << 20
	}
	return &Client{
		hc:       &http.Client{Timeout: timeout},
		timeout:  timeout,
		maxBytes: maxBytes,
		limiter:  limiter,
		rps:      rps,
		burst:    burst,
	}
}

func (c *Client) Fetch(ctx context.Context, rawURL string) (Result, error) {
	if err := c.limiter.Wait(ctx, hostKey(rawURL), c.rps, c.burst); err != nil {
		return Result{}, fmt.Errorf("pace fetch: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Result{}, fmt.Errorf("build fetch request: %w", err)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || callCtx.Err() == context.DeadlineExceeded {
			return Result{}, fmt.Errorf("fetch timeout after %s", c.timeout)
		}
		return Result{}, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return Result{}, fmt.Errorf("fetch returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes))
	if err != nil {
		return Result{}, fmt.Errorf("read fetch body: %w", err)
	}

	return Result{Body: body, Status: resp.StatusCode, Headers: resp.Header}, nil
}

func hostKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Host
}
