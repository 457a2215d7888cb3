package erp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const maxBodyBytes = 64 << 20

// Config configures the vendor API client.
type Config struct {
	BaseURL       string
	Token         string
	APIKey        string
	Timeout       time.Duration
	RatePerSecond float64
	Burst         int
	HTTPClient    *http.Client
	Logger        *slog.Logger
}

// Client performs authenticated page requests against the vendor API.
type Client struct {
	base    *url.URL
	token   string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewClient validates cfg and builds a client.
func NewClient(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("erp: parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("erp: base url %q must be absolute", cfg.BaseURL)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		base:    base,
		token:   strings.TrimSpace(cfg.Token),
		apiKey:  strings.TrimSpace(cfg.APIKey),
		http:    httpClient,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger.With(slog.String("component", "erp")),
	}, nil
}

// Products fetches one page of products.
func (c *Client) Products(ctx context.Context, start, count int) Page[Product] {
	return fetchPage[Product](ctx, c, CollectionProducts.Path(), start, count)
}

// Prices fetches one page of prices.
func (c *Client) Prices(ctx context.Context, start, count int) Page[Price] {
	return fetchPage[Price](ctx, c, CollectionPrices.Path(), start, count)
}

// Sections fetches one page of sections.
func (c *Client) Sections(ctx context.Context, start, count int) Page[Lookup] {
	return fetchPage[Lookup](ctx, c, CollectionSections.Path(), start, count)
}

// Brands fetches one page of brands.
func (c *Client) Brands(ctx context.Context, start, count int) Page[Lookup] {
	return fetchPage[Lookup](ctx, c, CollectionBrands.Path(), start, count)
}

// Genres fetches one page of genres.
func (c *Client) Genres(ctx context.Context, start, count int) Page[Lookup] {
	return fetchPage[Lookup](ctx, c, CollectionGenres.Path(), start, count)
}

// Groups fetches one page of the groups nested under sectionID.
func (c *Client) Groups(ctx context.Context, sectionID int64, start, count int) Page[Group] {
	page := fetchPage[Group](ctx, c, groupsPath(sectionID), start, count)
	for i := range page.Items {
		if page.Items[i].SecaoID == 0 {
			page.Items[i].SecaoID = sectionID
		}
	}
	return page
}

func fetchPage[T any](ctx context.Context, c *Client, path string, start, count int) Page[T] {
	return decodePage[T](c.get(ctx, path, start, count))
}

type authMode int

const (
	authBearer authMode = iota
	authAPIKey
)

func (m authMode) String() string {
	if m == authAPIKey {
		return "api-key"
	}
	return "bearer"
}

// response is a classified but undecoded vendor answer.
type response struct {
	kind   Kind
	path   string
	status int
	body   []byte
	detail string
}

func (c *Client) get(ctx context.Context, path string, start, count int) response {
	mode := authBearer
	if c.token == "" && c.apiKey != "" {
		mode = authAPIKey
	}
	resp := c.do(ctx, path, start, count, mode)
	if mode == authBearer && c.apiKey != "" && needsAPIKey(resp) {
		c.logger.Debug("bearer rejected, retrying page with api key",
			slog.String("path", path), slog.Int("start", start), slog.String("kind", resp.kind.String()))
		resp = c.do(ctx, path, start, count, authAPIKey)
	}
	return resp
}

func needsAPIKey(resp response) bool {
	switch resp.kind {
	case KindHTML:
		return true
	case KindError:
		return resp.status == http.StatusUnauthorized || resp.status == http.StatusForbidden
	case KindJSON:
		return false
	default:
		return false
	}
}

func (c *Client) do(ctx context.Context, path string, start, count int, mode authMode) response {
	if err := c.limiter.Wait(ctx); err != nil {
		return response{kind: KindError, path: path, detail: "rate limiter: " + err.Error()}
	}

	endpoint := c.base.JoinPath(path)
	q := endpoint.Query()
	q.Set("start", strconv.Itoa(start))
	q.Set("count", strconv.Itoa(count))
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return response{kind: KindError, path: path, detail: err.Error()}
	}
	req.Header.Set("Accept", "application/json")
	switch mode {
	case authAPIKey:
		req.Header.Set("X-API-Key", c.apiKey)
	case authBearer:
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
	}

	started := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		detail := err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			detail = "timeout: " + detail
		}
		return response{kind: KindError, path: path, detail: detail}
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return response{kind: KindError, path: path, status: res.StatusCode, detail: "read body: " + err.Error()}
	}
	c.logger.Debug("vendor page",
		slog.String("path", path),
		slog.Int("start", start),
		slog.Int("count", count),
		slog.String("auth", mode.String()),
		slog.Int("status", res.StatusCode),
		slog.Duration("elapsed", time.Since(started)),
	)
	return classify(path, res.StatusCode, res.Header.Get("Content-Type"), body)
}

func classify(path string, status int, contentType string, body []byte) response {
	trimmed := bytes.TrimSpace(body)
	looksHTML := bytes.HasPrefix(trimmed, []byte("<"))
	isJSON := strings.Contains(strings.ToLower(contentType), "json")

	if status < 200 || status > 299 {
		if looksHTML && status < 400 {
			return response{kind: KindHTML, path: path, status: status, detail: snippet(trimmed)}
		}
		return response{kind: KindError, path: path, status: status, detail: snippet(trimmed)}
	}
	if looksHTML || (!isJSON && len(trimmed) > 0 && trimmed[0] != '{') {
		return response{kind: KindHTML, path: path, status: status, detail: snippet(trimmed)}
	}
	return response{kind: KindJSON, path: path, status: status, body: trimmed}
}

func snippet(body []byte) string {
	const max = 200
	s := strings.Join(strings.Fields(string(body)), " ")
	if r := []rune(s); len(r) > max {
		s = string(r[:max]) + "…"
	}
	if s == "" {
		return "empty body"
	}
	return s
}
