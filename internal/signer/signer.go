// Package signer is the client for the external signing collaborator. The
// signing algorithm itself is a black box; this package only obtains its
// token fields so the rest of the engine can watch them for drift.
package signer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/seongkah/signing-for-paas-sub002/internal/ratelimit"
)

// Token field names as reported by the signing service.
const (
	FieldSignature = "signature"
	FieldSignedURL = "signed_url"
	FieldBogus     = "x_bogus"
	FieldNavigator = "navigator"
)

// FieldPrimary is the field whose length pattern the change detector tracks.
const FieldPrimary = FieldSignature

// Result is one successful signing response.
type Result struct {
	Fields     map[string]string
	DurationMS int64
}

type Signer interface {
	Sign(ctx context.Context, rawURL string) (Result, error)
}

// Client signs URLs over HTTP with a bounded per-call timeout.
type Client struct {
	endpoint string
	hc       *http.Client
	timeout  time.Duration
	limiter  *ratelimit.Limiter
	rps      float64
	burst    int
}

func NewClient(endpoint string, timeout time.Duration, limiter *ratelimit.Limiter, rps float64, burst int) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		endpoint: endpoint,
		hc:       &http.Client{Timeout: timeout},
		timeout:  timeout,
		limiter:  limiter,
		rps:      rps,
		burst:    burst,
	}
}

func (c *Client) Sign(ctx context.Context, rawURL string) (Result, error) {
	if err := c.limiter.Wait(ctx, paceKey(c.endpoint), c.rps, c.burst); err != nil {
		return Result{}, fmt.Errorf("pace signer call: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, err := json.Marshal(map[string]string{"url": rawURL})
	if err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return Result{}, fmt.Errorf("build sign request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.hc.Do(req)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || callCtx.Err() == context.DeadlineExceeded {
			return Result{DurationMS: elapsed}, fmt.Errorf("sign timeout after %s", c.timeout)
		}
		return Result{DurationMS: elapsed}, fmt.Errorf("sign request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return Result{DurationMS: elapsed}, fmt.Errorf("signer returned status %d", resp.StatusCode)
	}

	fields, err := decodeFields(resp.Body)
	if err != nil {
		return Result{DurationMS: elapsed}, err
	}
	if fields[FieldSignature] == "" {
		return Result{DurationMS: elapsed}, errors.New("signer response missing signature")
	}

	return Result{Fields: fields, DurationMS: elapsed}, nil
}

// decodeFields accepts both a flat object and one nesting the token fields
// under "data", which is how the upstream service shapes its responses.
func decodeFields(r io.Reader) (map[string]string, error) {
	var raw map[string]any
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode sign response: %w", err)
	}
	if nested, ok := raw["data"].(map[string]any); ok {
		raw = nested
	}

	fields := make(map[string]string)
	for _, name := range []string{FieldSignature, FieldSignedURL, FieldNavigator} {
		if v, ok := raw[name].(string); ok {
			fields[name] = v
		}
	}
	// The secondary token appears under either spelling.
	for _, key := range []string{FieldBogus, "x-bogus", "xbogus"} {
		if v, ok := raw[key].(string); ok {
			fields[FieldBogus] = v
			break
		}
	}
	return fields, nil
}

func paceKey(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return endpoint
	}
	return u.Host
}
