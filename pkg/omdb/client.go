// Package omdb provides a client for the OMDB API, used to look up IMDB
// ratings by title.
package omdb

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/catalog-etl/internal/fetcher"
	"github.com/sells-group/catalog-etl/internal/resilience"
	"github.com/sells-group/catalog-etl/internal/xref"
)

// DefaultBaseURL is the OMDB API root.
const DefaultBaseURL = "https://www.omdbapi.com/"

// ErrRequestLimit is returned when the API key's daily quota is spent.
var ErrRequestLimit = eris.New("omdb: request limit reached")

// TitleResponse is the by-title response. Fields OMDB does not know are "N/A".
type TitleResponse struct {
	Title      string `json:"Title"`
	Year       string `json:"Year"`
	Type       string `json:"Type"`
	IMDBID     string `json:"imdbID"`
	IMDBRating string `json:"imdbRating"`
	IMDBVotes  string `json:"imdbVotes"`
	Response   string `json:"Response"`
	Error      string `json:"Error"`
}

// Found reports whether OMDB returned a title.
func (r *TitleResponse) Found() bool {
	return r != nil && r.Response == "True"
}

// StartYear parses the first year of Year ("2010", "2008–2013").
func (r *TitleResponse) StartYear() *int {
	if r == nil || len(r.Year) < 4 {
		return nil
	}
	y, err := strconv.Atoi(r.Year[:4])
	if err != nil {
		return nil
	}
	return &y
}

// Client defines the OMDB operations.
type Client interface {
	// Authenticate verifies the API key.
	Authenticate(ctx context.Context) error
	// Title looks up a title. year may be nil; kind is "movie" or "series".
	// A title OMDB does not know returns a response with Found() == false.
	Title(ctx context.Context, title string, year *int, kind string) (*TitleResponse, error)
}

// Option configures the OMDB client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.fetchOpts.Client = hc }
}

// WithRateLimit paces requests to perSec per second.
func WithRateLimit(perSec float64, burst int) Option {
	return func(c *httpClient) {
		c.fetchOpts.RatePerSec = perSec
		c.fetchOpts.Burst = burst
	}
}

// WithRetry sets the retry policy.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) { c.fetchOpts.Retry = cfg }
}

// WithCircuit sets the circuit breaker policy.
func WithCircuit(cfg resilience.CircuitBreakerConfig) Option {
	return func(c *httpClient) { c.fetchOpts.Circuit = cfg }
}

// WithGate charges every retried request against g, so a run's quota
// counts real requests rather than lookups.
func WithGate(g *xref.Gate) Option {
	return func(c *httpClient) {
		if g != nil {
			c.fetchOpts.Admit = g.Acquire
		}
	}
}

type httpClient struct {
	apiKey    string
	baseURL   string
	fetchOpts fetcher.HTTPOptions
	fetch     fetcher.Fetcher
}

// NewClient creates a new OMDB client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  strings.TrimSpace(apiKey),
		baseURL: DefaultBaseURL,
		fetchOpts: fetcher.HTTPOptions{
			Catalog: "omdb",
			Timeout: 15 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.fetch = fetcher.NewHTTPFetcher(c.fetchOpts)
	return c
}

func (c *httpClient) endpoint(q url.Values) string {
	q.Set("apikey", c.apiKey)
	return c.baseURL + "?" + q.Encode()
}

func (c *httpClient) Authenticate(ctx context.Context) error {
	code, body, err := c.fetch.Get(ctx, c.endpoint(url.Values{}), nil)
	if err != nil {
		return eris.Wrap(err, "omdb: authenticate")
	}
	if err := resilience.CheckStatus("omdb", code, body); err != nil {
		return eris.Wrap(err, "omdb: authenticate")
	}
	return nil
}

func (c *httpClient) Title(ctx context.Context, title string, year *int, kind string) (*TitleResponse, error) {
	q := url.Values{}
	q.Set("t", title)
	if year != nil {
		q.Set("y", strconv.Itoa(*year))
	}
	if kind != "" {
		q.Set("type", kind)
	}
	q.Set("r", "json")

	var out TitleResponse
	if err := c.fetch.GetJSON(ctx, c.endpoint(q), nil, &out); err != nil {
		if strings.Contains(err.Error(), "Request limit reached") {
			return nil, eris.Wrapf(ErrRequestLimit, "omdb: title %q", title)
		}
		return nil, eris.Wrapf(err, "omdb: title %q", title)
	}
	if !out.Found() && strings.Contains(out.Error, "limit") {
		return nil, ErrRequestLimit
	}
	return &out, nil
}
