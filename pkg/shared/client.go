// Package shared implements the client for the hosted shared store: the
// cross-device text cache table and the progress table. Reads race a short
// timeout so a slow backend never stalls the reading experience; callers
// treat ErrUnavailable as a soft miss.
package shared

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"mikradb/pkg/models"
)

// ErrUnavailable is returned when the shared store cannot be reached or did
// not answer within the race timeout.
var ErrUnavailable = errors.New("shared store unavailable")

const defaultRaceTimeout = 3 * time.Second

// Client talks to the hosted backend's REST surface.
type Client struct {
	baseURL     string
	apiKey      string
	httpc       *http.Client
	raceTimeout time.Duration
}

// New returns a client for the backend at baseURL authenticating with apiKey.
func New(baseURL, apiKey string, raceTimeout time.Duration) *Client {
	if raceTimeout <= 0 {
		raceTimeout = defaultRaceTimeout
	}
	return &Client{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		apiKey:      apiKey,
		httpc:       &http.Client{},
		raceTimeout: raceTimeout,
	}
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body *bytes.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	} else {
		body = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", c.apiKey)
	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: bad response: %v", ErrUnavailable, err)
		}
	}
	return nil
}

var errNotFound = errors.New("not found")

// withRace wraps ctx with the read race timeout.
func (c *Client) withRace(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.raceTimeout)
}

// GetText returns the shared-tier entry for ref, or (nil, nil) when absent.
// Unreachability reports ErrUnavailable.
func (c *Client) GetText(ctx context.Context, ref string) (*models.TextEntry, error) {
	ctx, cancel := c.withRace(ctx)
	defer cancel()
	var e models.TextEntry
	err := c.do(ctx, http.MethodGet, "/rest/v1/text_cache/"+url.PathEscape(ref), nil, &e)
	if err != nil {
		if errors.Is(err, errNotFound) {
			return nil, nil
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
		}
		return nil, err
	}
	return &e, nil
}

// UpsertText writes the entry to the shared tier, keyed by ref.
func (c *Client) UpsertText(ctx context.Context, e models.TextEntry) error {
	return c.do(ctx, http.MethodPut, "/rest/v1/text_cache/"+url.PathEscape(e.Ref), e, nil)
}

// DeleteText removes the entry for ref; absence is not an error.
func (c *Client) DeleteText(ctx context.Context, ref string) error {
	err := c.do(ctx, http.MethodDelete, "/rest/v1/text_cache/"+url.PathEscape(ref), nil, nil)
	if errors.Is(err, errNotFound) {
		return nil
	}
	return err
}

func progressPath(identity, textType, textID string) string {
	return "/rest/v1/progress/" + url.PathEscape(identity) + "/" + url.PathEscape(textType) + "/" + url.PathEscape(textID)
}

// GetProgress returns the record for the natural key, or (nil, nil) when
// absent.
func (c *Client) GetProgress(ctx context.Context, identity, textType, textID string) (*models.ProgressRecord, error) {
	ctx, cancel := c.withRace(ctx)
	defer cancel()
	var rec models.ProgressRecord
	err := c.do(ctx, http.MethodGet, progressPath(identity, textType, textID), nil, &rec)
	if err != nil {
		if errors.Is(err, errNotFound) {
			return nil, nil
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
		}
		return nil, err
	}
	return &rec, nil
}

// UpsertProgress writes the full record under its natural key. Concurrent
// writers converge last-write-wins; the caller's merge keeps cumulative
// fields monotone.
func (c *Client) UpsertProgress(ctx context.Context, rec models.ProgressRecord) error {
	return c.do(ctx, http.MethodPut, progressPath(rec.Identity, rec.TextType, rec.TextID), rec, nil)
}

// ListFilter narrows ListProgress; zero fields are ignored.
type ListFilter struct {
	TextType     string
	UpdatedSince int64 // unix nanos lower bound
}

// ListProgress returns every record for identity matching the filter.
func (c *Client) ListProgress(ctx context.Context, identity string, f ListFilter) ([]models.ProgressRecord, error) {
	ctx, cancel := c.withRace(ctx)
	defer cancel()
	q := url.Values{}
	if f.TextType != "" {
		q.Set("text_type", f.TextType)
	}
	if f.UpdatedSince > 0 {
		q.Set("updated_since", strconv.FormatInt(f.UpdatedSince, 10))
	}
	path := "/rest/v1/progress/" + url.PathEscape(identity)
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out struct {
		Records []models.ProgressRecord `json:"records"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		if errors.Is(err, errNotFound) {
			return nil, nil
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
		}
		return nil, err
	}
	return out.Records, nil
}

// ListIdentities returns every identity with at least one progress record.
// Used by the admin rollup; intended for small user populations.
func (c *Client) ListIdentities(ctx context.Context) ([]string, error) {
	ctx, cancel := c.withRace(ctx)
	defer cancel()
	var out struct {
		Identities []string `json:"identities"`
	}
	if err := c.do(ctx, http.MethodGet, "/rest/v1/progress", nil, &out); err != nil {
		if errors.Is(err, errNotFound) {
			return nil, nil
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
		}
		return nil, err
	}
	return out.Identities, nil
}
