// Package strapi is a minimal read-only client for the Strapi v5 REST API.
package strapi

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

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/rwaddinsall/hcf2025/internal/log"
	"github.com/rwaddinsall/hcf2025/internal/version"
	"github.com/rwaddinsall/hcf2025/internal/xerrors"
)

// ErrNotFound matches a 404 from the API. A content type that is not
// configured in the CMS answers 404, so callers treat it as "no content".
var ErrNotFound = errors.New("strapi: not found")

const (
	DefaultTimeout = 30 * time.Second

	// responses above this are rejected rather than buffered
	maxResponseBytes = 32 << 20
)

// StatusError is a non-2xx answer from the API.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("strapi %s: HTTP %s", e.Endpoint, e.Status)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// APIError is the error object Strapi puts in an otherwise well-formed body.
type APIError struct {
	Status  int             `json:"status"`
	Name    string          `json:"name"`
	Message string          `json:"message"`
	Details json.RawMessage `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "Unknown Strapi error"
	}
	if e.Name != "" {
		return e.Name + ": " + msg
	}
	return msg
}

// Response is the envelope of every REST answer. Data is kept raw so the
// snapshot preserves fields no Go type knows about.
type Response struct {
	Data  json.RawMessage `json:"data"`
	Meta  json.RawMessage `json:"meta,omitempty"`
	Error *APIError       `json:"error,omitempty"`
}

// Count is the number of entries in Data: its length for a collection, 1 for
// a singleton and 0 for null.
func (r *Response) Count() int {
	d := strings.TrimSpace(string(r.Data))
	switch {
	case d == "" || d == "null":
		return 0
	case strings.HasPrefix(d, "["):
		var items []json.RawMessage
		if err := json.Unmarshal(r.Data, &items); err != nil {
			return 0
		}
		return len(items)
	default:
		return 1
	}
}

type Options struct {
	BaseURL string

	// Token is sent as a bearer token when set. Public content needs none.
	Token string

	HTTPClient *http.Client
	Logger     log.Logger
}

type Client struct {
	base   *url.URL
	token  string
	http   *http.Client
	logger log.Logger
	ua     string
}

func New(opts Options) (*Client, error) {
	raw := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if raw == "" {
		return nil, xerrors.New("strapi: base URL is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, xerrors.Wrapf(err, "strapi: parse base URL %q", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return nil, xerrors.Newf("strapi: base URL must be absolute http(s), got %q", raw)
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{
			Timeout:   DefaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}

	vi := version.Get()
	return &Client{
		base:   u,
		token:  opts.Token,
		http:   hc,
		logger: opts.Logger,
		ua:     vi.AppName + "/" + vi.Version,
	}, nil
}

// BaseURL is the configured base without a trailing slash.
func (c *Client) BaseURL() string { return c.base.String() }

// URL builds {base}/api/{endpoint}?{query}.
func (c *Client) URL(endpoint string, q Query) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + "/api/" + strings.TrimLeft(endpoint, "/")
	u.RawQuery = q.Encode()
	return u.String()
}

// Fetch GETs an endpoint and decodes the envelope. A 404 returns an error
// matching ErrNotFound; other non-2xx answers return a *StatusError; a body
// carrying an error object returns its *APIError.
func (c *Client) Fetch(ctx context.Context, endpoint string, q Query) (*Response, error) {
	target := c.URL(endpoint, q)
	start := time.Now()

	resp, err := c.get(ctx, target)
	if err != nil {
		return nil, xerrors.Wrapf(err, "strapi %s", endpoint)
	}
	defer resp.Body.Close()

	c.logger.Debug(ctx, "strapi response",
		"endpoint", endpoint,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, xerrors.WithStack(&StatusError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
		})
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, xerrors.Wrapf(err, "strapi %s: read body", endpoint)
	}
	if len(body) > maxResponseBytes {
		return nil, xerrors.Newf("strapi %s: response exceeds %d bytes", endpoint, maxResponseBytes)
	}

	var out Response
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, xerrors.Wrapf(err, "strapi %s: decode response", endpoint)
	}
	if out.Error != nil {
		return nil, xerrors.Wrapf(out.Error, "strapi %s", endpoint)
	}
	return &out, nil
}

// Ping asks for a single info page, the cheapest request that proves the
// API answers. It returns nil on 2xx, a *StatusError on any other status
// and the transport error when the API cannot be reached.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.get(ctx, c.URL("info-pages", Query{{"pagination[limit]", "1"}}))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Endpoint: "info-pages", StatusCode: resp.StatusCode, Status: resp.Status}
	}
	return nil
}

func (c *Client) get(ctx context.Context, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.ua)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return c.http.Do(req)
}
