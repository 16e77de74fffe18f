package openlibrary

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

	"bookfinder/internal/logging"
	"bookfinder/internal/metrics"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL   = "https://openlibrary.org"
	CoverURLTemplate = "https://covers.openlibrary.org/b/id/%d-M.jpg"
	breakerName      = "openlibrary"
)

// SearchFields is the projection requested from search.json.
var SearchFields = []string{
	"key", "title", "author_name", "first_sentence", "cover_i", "first_publish_year",
	"number_of_pages_median", "subject", "isbn", "language", "publisher", "ratings_average",
}

// StatusError is returned when Open Library answers with a non-200 status.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.StatusCode)
}

type Options struct {
	BaseURL      string
	UserAgent    string
	RPS          int
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	HTTPClient   *http.Client
}

type Client struct {
	httpClient *http.Client
	userAgent  string
	baseURL    string
	limiter    *rate.Limiter
	maxRetries int
	backoff    time.Duration
	breaker    *gobreaker.CircuitBreaker[*SearchResponse]
}

func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = time.Second
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	limit := rate.Inf
	if opts.RPS > 0 {
		limit = rate.Every(time.Second / time.Duration(opts.RPS))
	}

	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)

	return &Client{
		httpClient: httpClient,
		userAgent:  opts.UserAgent,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		limiter:    rate.NewLimiter(limit, 1),
		maxRetries: opts.MaxRetries,
		backoff:    opts.RetryBackoff,
		breaker:    newBreaker(),
	}
}

func newBreaker() *gobreaker.CircuitBreaker[*SearchResponse] {
	return gobreaker.NewCircuitBreaker[*SearchResponse](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// Doc is one record of search.json. Only the fields in SearchFields are set.
type Doc struct {
	Key                 string   `json:"key"`
	Title               string   `json:"title"`
	AuthorNames         []string `json:"author_name"`
	FirstSentence       []string `json:"first_sentence"`
	CoverID             *int64   `json:"cover_i"`
	FirstPublishYear    *int     `json:"first_publish_year"`
	NumberOfPagesMedian *int     `json:"number_of_pages_median"`
	Subjects            []string `json:"subject"`
	ISBN                []string `json:"isbn"`
	Language            []string `json:"language"`
	Publisher           []string `json:"publisher"`
	RatingsAverage      *float64 `json:"ratings_average"`
}

// SearchResponse matches search.json
type SearchResponse struct {
	NumFound int   `json:"numFound"`
	Docs     []Doc `json:"docs"`
}

// SearchParams describes one search.json call. Field is the single filter
// parameter (q, title, author, subject or isbn).
type SearchParams struct {
	Operation string
	Field     string
	Value     string
	Sort      string
	Limit     int
}

// Values encodes the params as a query string.
func (p SearchParams) Values() url.Values {
	v := url.Values{}
	field := p.Field
	if field == "" {
		field = "q"
	}
	v.Set(field, p.Value)
	if p.Sort != "" {
		v.Set("sort", p.Sort)
	}
	if p.Limit > 0 {
		v.Set("limit", strconv.Itoa(p.Limit))
	}
	v.Set("fields", strings.Join(SearchFields, ","))
	return v
}

// SearchURL returns the absolute search.json URL for p.
func (c *Client) SearchURL(p SearchParams) string {
	return c.baseURL + "/search.json?" + p.Values().Encode()
}

func (c *Client) Search(ctx context.Context, p SearchParams) (*SearchResponse, error) {
	start := time.Now()
	res, err := c.breaker.Execute(func() (*SearchResponse, error) {
		var out SearchResponse
		if err := c.get(ctx, c.SearchURL(p), &out); err != nil {
			return nil, err
		}
		return &out, nil
	})
	op := p.Operation
	if op == "" {
		op = "search"
	}
	metrics.RecordUpstream(op, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// CoverURL builds the medium cover image URL for a cover id.
func CoverURL(coverID int64) string {
	return fmt.Sprintf(CoverURLTemplate, coverID)
}

func (c *Client) get(ctx context.Context, url string, target interface{}) error {
	var lastErr error
	for i := 0; i <= c.maxRetries; i++ {
		if i > 0 {
			backoff := c.backoff * time.Duration(1<<uint(i-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		retry, err := c.do(ctx, url, target)
		if err == nil {
			return nil
		}
		if !retry {
			return err
		}
		lastErr = err
	}
	if c.maxRetries == 0 {
		return lastErr
	}
	return fmt.Errorf("after %d retries: %w", c.maxRetries, lastErr)
}

// do performs one attempt and reports whether a failure is worth retrying.
func (c *Client) do(ctx context.Context, url string, target interface{}) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ctx.Err() == nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		statusErr := &StatusError{StatusCode: resp.StatusCode}
		retry := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return retry, statusErr
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return false, fmt.Errorf("decode response: %w", err)
	}
	return false, nil
}

// IsStatus reports whether err carries the given upstream status code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}
