// Package source implements the client for the remote text provider. It
// fetches the canonical text for a reference, cleans it, and returns the
// ordered list of addressable units. The cache is its only consumer.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	retry "github.com/avast/retry-go/v4"
	"golang.org/x/time/rate"

	"mikradb/pkg/logger"
)

var (
	// ErrNotFound is returned when the provider has no text for the
	// reference, or when the parsed result is empty.
	ErrNotFound = errors.New("text not found")
	// ErrTimeout is returned when the fetch deadline elapsed.
	ErrTimeout = errors.New("text fetch timed out")
)

const defaultTimeout = 10 * time.Second

// Client talks to the text provider's HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	retries int
}

// Options tunes the client; zero values pick defaults.
type Options struct {
	Timeout time.Duration
	Retries int
	RPS     float64
}

// New returns a client for the provider at baseURL.
func New(baseURL string, opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	rps := opts.RPS
	if rps <= 0 {
		rps = 5
	}
	retries := opts.Retries
	if retries < 0 {
		retries = 0
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), int(rps)+1),
		retries: retries,
	}
}

// payload is the subset of the provider response we consume. The text field
// may be a string, a list of strings, or a nested list per section.
type payload struct {
	Ref  string          `json:"ref"`
	Book string          `json:"book"`
	Text json.RawMessage `json:"text"`
}

// Fetch retrieves and cleans the text units for ref. An empty parsed result
// is an error, never an empty success.
func (c *Client) Fetch(ctx context.Context, ref string) ([]string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	var body []byte
	err := retry.Do(
		func() error {
			b, err := c.get(ctx, ref)
			if err != nil {
				return err
			}
			body = b
			return nil
		},
		retry.Attempts(uint(c.retries)+1),
		retry.Delay(200*time.Millisecond),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			// only transport-level failures are worth retrying
			return !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrTimeout)
		}),
	)
	if err != nil {
		return nil, err
	}

	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("invalid provider payload for %s: %w", ref, err)
	}
	units := CleanUnits(flattenText(p.Text))
	if len(units) == 0 {
		logger.Warn("source_empty_result", "ref", ref)
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	logger.Debug("source_fetched", "ref", ref, "units", len(units))
	return units, nil
}

func (c *Client) get(ctx context.Context, ref string) ([]byte, error) {
	u := c.baseURL + "/texts/" + url.PathEscape(ref) + "?context=0"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, fmt.Errorf("%w: %s", ErrTimeout, ref)
		}
		return nil, err
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("provider returned %d for %s", resp.StatusCode, ref)
	}
	return io.ReadAll(resp.Body)
}

func isTimeout(err error) bool {
	var ne interface{ Timeout() bool }
	return errors.As(err, &ne) && ne.Timeout()
}

// flattenText turns the provider's text field (string, []string or
// [][]string) into a flat ordered list.
func flattenText(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return []string{s}
	}
	var list []json.RawMessage
	if json.Unmarshal(raw, &list) == nil {
		var out []string
		for _, el := range list {
			out = append(out, flattenText(el)...)
		}
		return out
	}
	return nil
}
