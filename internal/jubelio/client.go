package jubelio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"storefront-gateway/internal/domain"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL  = "https://api2.jubelio.com"
	DefaultLoginURL = "https://api2.jubelio.com/login"

	itemPath    = "/inventory/items/{id}"
	mastersPath = "/inventory/items/masters"
)

var schemePattern = regexp.MustCompile(`(?i)^https?://`)

// Options configures the upstream client
type Options struct {
	BaseURL  string
	LoginURL string
	Timeout  time.Duration
}

// Client talks to the Jubelio inventory and login endpoints
type Client struct {
	http     *resty.Client
	baseURL  string
	loginURL string
	logger   *zap.Logger
}

// NewClient creates a Client. Empty URLs fall back to the public Jubelio hosts.
func NewClient(opts Options, logger *zap.Logger) *Client {
	base := NormalizeBaseURL(opts.BaseURL)
	login := strings.TrimSpace(opts.LoginURL)
	if login == "" {
		login = DefaultLoginURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(base).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "storefront-gateway/1.0")

	return &Client{
		http:     httpClient,
		baseURL:  base,
		loginURL: login,
		logger:   logger,
	}
}

// NormalizeBaseURL trims the configured host, defaults the scheme to https
// and drops a trailing slash.
func NormalizeBaseURL(raw string) string {
	base := strings.TrimSpace(raw)
	if base == "" {
		base = DefaultBaseURL
	}
	if !schemePattern.MatchString(base) {
		base = "https://" + base
	}
	return strings.TrimRight(base, "/")
}

// BaseURL returns the normalized inventory base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// FetchItem loads a single inventory item.
func (c *Client) FetchItem(ctx context.Context, token string, id int64) (domain.RawItem, error) {
	resp, err := c.request(ctx, token).
		SetPathParam("id", strconv.FormatInt(id, 10)).
		Get(itemPath)
	if err != nil {
		return nil, fmt.Errorf("jubelio item request: %w", err)
	}
	if err := c.checkStatus(resp, "item"); err != nil {
		return nil, err
	}

	payload, err := decodeJSON(resp.Body())
	if err != nil {
		return nil, fmt.Errorf("jubelio item decode: %w", err)
	}
	obj, ok := payload.(map[string]any)
	if !ok || len(obj) == 0 {
		return nil, ErrNotFound
	}
	return domain.RawItem(obj), nil
}

// FetchItems loads one page of the item masters listing.
func (c *Client) FetchItems(ctx context.Context, token string, q domain.ProductQuery) (*domain.RawPage, error) {
	resp, err := c.request(ctx, token).
		SetQueryParamsFromValues(mastersParams(q)).
		Get(mastersPath)
	if err != nil {
		return nil, fmt.Errorf("jubelio masters request: %w", err)
	}
	if err := c.checkStatus(resp, "masters"); err != nil {
		return nil, err
	}

	payload, err := decodeJSON(resp.Body())
	if err != nil {
		return nil, fmt.Errorf("jubelio masters decode: %w", err)
	}
	page := extractPage(payload)
	if len(page.Items) == 0 {
		return nil, ErrNotFound
	}
	return page, nil
}

// ExportItems requests the masters listing as CSV and hands the body back untouched.
func (c *Client) ExportItems(ctx context.Context, token string, q domain.ProductQuery) (*domain.CSVExport, error) {
	resp, err := c.request(ctx, token).
		SetHeader("Accept", "text/csv, */*").
		SetQueryParamsFromValues(mastersParams(q)).
		Get(mastersPath)
	if err != nil {
		return nil, fmt.Errorf("jubelio csv request: %w", err)
	}
	if err := c.checkStatus(resp, "csv"); err != nil {
		return nil, err
	}

	contentType := resp.Header().Get("Content-Type")
	if contentType == "" {
		contentType = "text/csv"
	}
	return &domain.CSVExport{
		ContentType: contentType,
		Body:        resp.Body(),
	}, nil
}

// AuthenticateWithEmailPassword posts the credentials to the login URL and
// returns the decoded upstream payload. Any non-2xx answer is an *AuthError.
func (c *Client) AuthenticateWithEmailPassword(ctx context.Context, email, password string) (any, error) {
	status, payload, err := c.postLogin(ctx, c.loginURL, map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, fmt.Errorf("jubelio login request: %w", err)
	}
	if status < 200 || status > 299 {
		c.logger.Warn("Jubelio authentication rejected", zap.Int("status", status))
		return nil, &AuthError{Status: status, Raw: payload}
	}
	return payload, nil
}

// loginCandidates lists the login endpoints tried in order by the token fallback
func (c *Client) loginCandidates() []string {
	return []string{
		c.loginURL,
		c.baseURL + "/api/v1/login",
		c.baseURL + "/api/v1/auth/login",
		c.baseURL + "/api/login",
	}
}

func (c *Client) postLogin(ctx context.Context, loginURL string, body any) (int, any, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("X-Request-ID", requestID(ctx)).
		SetBody(body).
		Post(loginURL)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode(), decodeLoose(resp.Body()), nil
}

func (c *Client) request(ctx context.Context, token string) *resty.Request {
	return c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeader("Content-Type", "application/json").
		SetHeader("X-Request-ID", requestID(ctx))
}

func (c *Client) checkStatus(resp *resty.Response, call string) error {
	if resp.IsSuccess() {
		return nil
	}
	c.logger.Warn("Jubelio request failed",
		zap.String("call", call),
		zap.Int("status", resp.StatusCode()),
		zap.String("body", resp.String()),
	)
	return &StatusError{Status: resp.StatusCode(), Body: resp.String()}
}

func mastersParams(q domain.ProductQuery) url.Values {
	q = q.Normalize()

	params := url.Values{}
	params.Set("page", strconv.Itoa(q.Page))
	params.Set("pageSize", strconv.Itoa(q.PageSize))

	optional := []struct{ key, value string }{
		{"sortDirection", q.SortDirection},
		{"sortBy", q.SortBy},
		{"q", q.Q},
		{"channelId", q.ChannelID},
		{"isFavourite", q.IsFavourite},
		{"csv", q.CSV},
	}
	for _, p := range optional {
		if p.value != "" {
			params.Set(p.key, p.value)
		}
	}
	return params
}

// extractPage pulls the item list and total count out of a masters envelope.
// Items come from "data", "items", or the payload itself when it is a list.
func extractPage(payload any) *domain.RawPage {
	var items []any
	obj, isObject := payload.(map[string]any)
	if isObject {
		for _, key := range []string{"data", "items"} {
			if list, ok := obj[key].([]any); ok && len(list) > 0 {
				items = list
				break
			}
		}
	} else if list, ok := payload.([]any); ok {
		items = list
	}

	raw := make([]domain.RawItem, 0, len(items))
	for _, it := range items {
		m, _ := it.(map[string]any)
		raw = append(raw, domain.RawItem(m))
	}

	total := len(raw)
	if isObject {
		for _, key := range []string{"totalCount", "total", "count"} {
			if n, ok := domain.Int(obj[key]); ok && n > 0 {
				total = int(n)
				break
			}
		}
	}
	return &domain.RawPage{Items: raw, TotalCount: total}
}

// decodeJSON decodes body keeping numbers as json.Number. An empty body decodes to nil.
func decodeJSON(body []byte) (any, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// decodeLoose is decodeJSON that falls back to the raw text
func decodeLoose(body []byte) any {
	v, err := decodeJSON(body)
	if err != nil {
		return string(body)
	}
	return v
}

func requestID(ctx context.Context) string {
	if id := chimiddleware.GetReqID(ctx); id != "" {
		return id
	}
	return uuid.NewString()
}
