package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/clipworks/evclip/internal/errors"
)

// Client is a bearer-token HTTP client for the catalog API.
type Client struct {
	baseURL string
	token   string
	timeout time.Duration
	httpc   *http.Client
}

// NewClient creates a catalog client. timeout bounds each catalog request
// (sync, lookup, event update). Uploads are bounded only by the caller's
// context so the upload queue can apply its own longer deadline.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		timeout: timeout,
		httpc:   &http.Client{},
	}
}

// requestCtx derives the per-request deadline for non-upload calls.
func (c *Client) requestCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

// Sync fetches the full set of known events and organizer links for the
// local match cache.
func (c *Client) Sync(ctx context.Context) (*SyncResult, error) {
	var out SyncResult
	if err := c.getJSON(ctx, "/api/v1/sync", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Lookup resolves a URL against the catalog in real time.
func (c *Client) Lookup(ctx context.Context, pageURL string) (*LookupResult, error) {
	q := url.Values{"url": {pageURL}}
	var out LookupResult
	if err := c.getJSON(ctx, "/api/v1/lookup", q, &out); err != nil {
		return nil, err
	}
	if out.MatchType == "" {
		out.MatchType = MatchNone
	}
	return &out, nil
}

// UpdateEvent applies a partial update to an event.
func (c *Client) UpdateEvent(ctx context.Context, eventID int64, patch EventPatch) error {
	body, err := json.Marshal(patch)
	if err != nil {
		return errors.NewInternal(err)
	}

	ctx, cancel := c.requestCtx(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch,
		fmt.Sprintf("%s/api/v1/events/%d", c.baseURL, eventID), bytes.NewReader(body))
	if err != nil {
		return errors.NewInternal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return errors.NewTransport(fmt.Sprintf("event update failed: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.NewTransport(fmt.Sprintf("event update failed: %s", resp.Status))
	}
	return nil
}

// uploadRequest is the screenshot upload payload.
type uploadRequest struct {
	Image    string `json:"image"`
	Filename string `json:"filename"`
}

// UploadMedia sends one base64 screenshot for an event and returns the
// server-assigned media descriptor. The progress callback receives sent and
// total byte counts; calls are strictly ordered and monotonic for a single
// upload. Satisfies the upload queue's Transport.
func (c *Client) UploadMedia(ctx context.Context, eventID int64, filename, imageData string, progress func(sent, total int64)) (*MediaAsset, error) {
	body, err := json.Marshal(uploadRequest{Image: imageData, Filename: filename})
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	pr := &progressReader{
		r:        bytes.NewReader(body),
		total:    int64(len(body)),
		progress: progress,
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/api/v1/events/%d/media", c.baseURL, eventID), pr)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	req.ContentLength = int64(len(body))
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpc.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errors.NewTransport("upload timed out")
		}
		return nil, errors.NewTransport(fmt.Sprintf("upload failed: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.NewTransport(fmt.Sprintf("upload rejected: %s", resp.Status))
	}

	var asset MediaAsset
	if err := json.NewDecoder(resp.Body).Decode(&asset); err != nil {
		return nil, errors.NewTransport(fmt.Sprintf("upload response unreadable: %v", err))
	}
	return &asset, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	ctx, cancel := c.requestCtx(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return errors.NewInternal(err)
	}
	c.authorize(req)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return errors.NewTransport(fmt.Sprintf("catalog request failed: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.NewTransport(fmt.Sprintf("catalog request failed: %s", resp.Status))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.NewTransport(fmt.Sprintf("catalog response unreadable: %v", err))
	}
	return nil
}

// progressReader reports bytes consumed from the request body. Progress is
// monotonic by construction: reads only move forward.
type progressReader struct {
	r        io.Reader
	total    int64
	sent     int64
	progress func(sent, total int64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.sent += int64(n)
		if p.progress != nil {
			p.progress(p.sent, p.total)
		}
	}
	return n, err
}
