// Package datasource fetches daily price history for equities. It defines
// a common Provider interface with concrete sources for Alpha Vantage,
// Yahoo Finance and local CSV files, plus a caching, rate-limited and
// circuit-broken wrapper.
package datasource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/seenimoa/pairtrade/internal/equity"
	"github.com/seenimoa/pairtrade/pkg/models"
)

// Provider returns the full daily history of one symbol.
type Provider interface {
	// Name returns the human-readable name of this provider.
	Name() string

	// FetchDaily returns every available daily bar for symbol, oldest
	// first. Failures wrap models.ErrDataUnavailable.
	FetchDaily(ctx context.Context, symbol string) (*equity.Series, error)
}

// --- Sentinel errors ---

// ErrTickerNotFound is returned when a provider does not know the symbol.
var ErrTickerNotFound = fmt.Errorf("%w: ticker not found", models.ErrDataUnavailable)

// ErrRateLimited is returned when a provider refuses the request because
// its quota is spent.
var ErrRateLimited = fmt.Errorf("%w: API call limit reached, try again in 1 minute", models.ErrDataUnavailable)

// ErrHTTP wraps an HTTP error with status code.
type ErrHTTP struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *ErrHTTP) Error() string {
	return fmt.Sprintf("HTTP %d %s: %s", e.StatusCode, e.Status, e.Body)
}

// Is makes every HTTP failure match models.ErrDataUnavailable, and 429
// match ErrRateLimited.
func (e *ErrHTTP) Is(target error) bool {
	if target == models.ErrDataUnavailable {
		return true
	}
	return target == ErrRateLimited && e.StatusCode == http.StatusTooManyRequests
}

// --- Options ---

// Options configures the provider built by Open.
type Options struct {
	Name      string        // alphavantage, yahoo or csv
	APIKey    string        // Alpha Vantage key
	BaseURL   string        // overrides the provider's endpoint
	Timeout   time.Duration // HTTP timeout (default: 30s)
	CSVDir    string        // directory of <SYMBOL>.csv files
	UserAgent string
}

// Open builds the named provider.
func Open(opts Options) (Provider, error) {
	client := &http.Client{Timeout: opts.Timeout}
	if client.Timeout <= 0 {
		client.Timeout = 30 * time.Second
	}
	switch strings.ToLower(strings.TrimSpace(opts.Name)) {
	case "", "alphavantage", "alpha_vantage":
		if opts.APIKey == "" {
			return nil, fmt.Errorf("%w: alpha vantage needs an API key (set ALPHAVANTAGE_API_KEY)", models.ErrInvalidArgument)
		}
		return NewAlphaVantage(opts.APIKey, WithBaseURL(opts.BaseURL), WithHTTPClient(client)), nil
	case "yahoo", "yfinance":
		return NewYFinance(WithBaseURL(opts.BaseURL), WithHTTPClient(client)), nil
	case "csv":
		return NewCSV(opts.CSVDir)
	default:
		return nil, fmt.Errorf("%w: unknown data provider %q (want alphavantage, yahoo or csv)", models.ErrInvalidArgument, opts.Name)
	}
}

// --- Shared HTTP client helpers ---

// DefaultUserAgent is the user agent string used for HTTP requests.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// httpSource holds what every HTTP-backed provider shares.
type httpSource struct {
	client  *http.Client
	baseURL string
}

// HTTPOption customizes an HTTP-backed provider.
type HTTPOption func(*httpSource)

// WithBaseURL points the provider at another endpoint. Empty keeps the
// default.
func WithBaseURL(u string) HTTPOption {
	return func(s *httpSource) {
		if u != "" {
			s.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(s *httpSource) {
		if c != nil {
			s.client = c
		}
	}
}

func newHTTPSource(baseURL string, opts []HTTPOption) httpSource {
	s := httpSource{client: &http.Client{Timeout: 30 * time.Second}, baseURL: baseURL}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// get performs a GET request and returns the whole response body.
func (s httpSource) get(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", DefaultUserAgent)
	req.Header.Set("Accept", "application/json, text/csv, */*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: HTTP GET: %v", models.ErrDataUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &ErrHTTP{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(body),
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", models.ErrDataUnavailable, err)
	}
	return data, nil
}

// buildSeries wraps equity.New so construction failures surface as data
// errors.
func buildSeries(source, symbol string, bars []models.OHLCV) (*equity.Series, error) {
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s returned no bars for %s", models.ErrDataUnavailable, source, symbol)
	}
	s, err := equity.New(symbol, bars)
	if err != nil {
		if errors.Is(err, models.ErrDataUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s data for %s: %v", models.ErrDataUnavailable, source, symbol, err)
	}
	return s.WithSource(source), nil
}
