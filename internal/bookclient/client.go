// Package bookclient talks to the Book Finder gateway.
package bookclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"bookfinder/internal/catalog"
	"bookfinder/internal/httpx"

	"github.com/goccy/go-json"
)

const (
	DefaultBaseURL = "http://localhost:5001"
	DefaultTimeout = 10 * time.Second
)

// APIError is a non-200 gateway answer. It unwraps to the matching catalog
// sentinel so callers can use errors.Is.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("gateway returned status %d", e.Status)
	}
	return fmt.Sprintf("gateway returned status %d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusBadRequest:
		return catalog.ErrInvalidRequest
	case http.StatusMethodNotAllowed:
		return catalog.ErrMethodNotAllowed
	default:
		return catalog.ErrUpstreamUnavailable
	}
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search calls GET /books/search. A limit of zero leaves the gateway default.
func (c *Client) Search(ctx context.Context, q, searchType string, limit int) (catalog.SearchResult, error) {
	v := url.Values{}
	v.Set("q", q)
	if searchType != "" {
		v.Set("type", searchType)
	}
	if limit > 0 {
		v.Set("limit", strconv.Itoa(limit))
	}
	var out catalog.SearchResult
	err := c.get(ctx, "/books/search", v, &out)
	return out, err
}

func (c *Client) Trending(ctx context.Context) (catalog.TrendingResult, error) {
	var out catalog.TrendingResult
	err := c.get(ctx, "/books/trending", nil, &out)
	return out, err
}

// Recommendations calls GET /books/recommendations with a comma separated
// subject list.
func (c *Client) Recommendations(ctx context.Context, subjects string) (catalog.RecommendationResult, error) {
	v := url.Values{}
	v.Set("subjects", subjects)
	var out catalog.RecommendationResult
	err := c.get(ctx, "/books/recommendations", v, &out)
	return out, err
}

func (c *Client) get(ctx context.Context, path string, query url.Values, target interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", catalog.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("%w: decode response: %v", catalog.ErrUpstreamUnavailable, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return apiErr
	}
	var envelope httpx.ErrorResponse
	if err := json.Unmarshal(body, &envelope); err == nil {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
	}
	return apiErr
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}
