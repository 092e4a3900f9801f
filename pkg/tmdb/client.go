// Package tmdb provides a client for the TMDB v3 API: top-rated listings,
// genre lists and watch providers.
package tmdb

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/catalog-etl/internal/fetcher"
	"github.com/sells-group/catalog-etl/internal/resilience"
)

// DefaultBaseURL is the TMDB v3 API root.
const DefaultBaseURL = "https://api.themoviedb.org/3"

// MediaType selects the movie or tv endpoints.
type MediaType string

const (
	Movie MediaType = "movie"
	TV    MediaType = "tv"
)

func (m MediaType) valid() bool { return m == Movie || m == TV }

// Result is one entry of a top-rated page. Movies fill Title and
// ReleaseDate, shows fill Name and FirstAirDate.
type Result struct {
	ID           int64   `json:"id"`
	Title        string  `json:"title"`
	Name         string  `json:"name"`
	Overview     string  `json:"overview"`
	ReleaseDate  string  `json:"release_date"`
	FirstAirDate string  `json:"first_air_date"`
	GenreIDs     []int64 `json:"genre_ids"`
	Popularity   float64 `json:"popularity"`
	VoteAverage  float64 `json:"vote_average"`
	VoteCount    int64   `json:"vote_count"`
}

// DisplayTitle returns Title for movies and Name for shows.
func (r Result) DisplayTitle() string {
	if r.Title != "" {
		return r.Title
	}
	return r.Name
}

// Date returns ReleaseDate for movies and FirstAirDate for shows.
func (r Result) Date() string {
	if r.ReleaseDate != "" {
		return r.ReleaseDate
	}
	return r.FirstAirDate
}

// Page is one page of a paginated listing.
type Page struct {
	Page         int      `json:"page"`
	Results      []Result `json:"results"`
	TotalPages   int      `json:"total_pages"`
	TotalResults int      `json:"total_results"`
}

// Genre is an entry of a genre list.
type Genre struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type genreList struct {
	Genres []Genre `json:"genres"`
}

type provider struct {
	ProviderID   int64  `json:"provider_id"`
	ProviderName string `json:"provider_name"`
}

type regionProviders struct {
	Link     string     `json:"link"`
	Flatrate []provider `json:"flatrate"`
	Rent     []provider `json:"rent"`
	Buy      []provider `json:"buy"`
}

type providersResponse struct {
	ID      int64                      `json:"id"`
	Results map[string]regionProviders `json:"results"`
}

// PageError records a listing page that could not be fetched.
type PageError struct {
	Page int
	Err  error
}

func (e PageError) Error() string { return fmt.Sprintf("page %d: %v", e.Page, e.Err) }

func (e PageError) Unwrap() error { return e.Err }

// Client defines the TMDB operations used by the extract stage.
type Client interface {
	// Authenticate verifies the token.
	Authenticate(ctx context.Context) error
	// TopRated fetches one page of the top-rated listing.
	TopRated(ctx context.Context, media MediaType, language string, page int) (*Page, error)
	// AllTopRated walks the listing up to the configured page limit. Pages
	// that fail are reported in the error slice and skipped.
	AllTopRated(ctx context.Context, media MediaType, language string) ([]Result, []PageError)
	// Genres fetches the genre list.
	Genres(ctx context.Context, media MediaType, language string) ([]Genre, error)
	// WatchProviders returns the subscription provider names of one title in
	// region. A region without subscription offers yields an empty list.
	WatchProviders(ctx context.Context, media MediaType, id int64, region string) ([]string, error)
}

// Option configures the TMDB client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = strings.TrimRight(u, "/") }
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

// WithMaxPages caps how many listing pages AllTopRated reads. 0 means all.
func WithMaxPages(n int) Option {
	return func(c *httpClient) { c.maxPages = n }
}

type httpClient struct {
	token     string
	baseURL   string
	maxPages  int
	fetchOpts fetcher.HTTPOptions
	fetch     fetcher.Fetcher
}

// NewClient creates a TMDB client authenticating with a v4 read token.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		token:   strings.TrimSpace(token),
		baseURL: DefaultBaseURL,
		fetchOpts: fetcher.HTTPOptions{
			Catalog: "tmdb",
			Timeout: 15 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.fetch = fetcher.NewHTTPFetcher(c.fetchOpts)
	return c
}

func (c *httpClient) header() http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+c.token)
	h.Set("Accept", "application/json")
	return h
}

func (c *httpClient) endpoint(path string, q url.Values) string {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

func (c *httpClient) Authenticate(ctx context.Context) error {
	code, body, err := c.fetch.Get(ctx, c.endpoint("/authentication", nil), c.header())
	if err != nil {
		return eris.Wrap(err, "tmdb: authenticate")
	}
	if err := resilience.CheckStatus("tmdb", code, body); err != nil {
		return eris.Wrap(err, "tmdb: authenticate")
	}
	return nil
}

func (c *httpClient) TopRated(ctx context.Context, media MediaType, language string, page int) (*Page, error) {
	if !media.valid() {
		return nil, eris.Errorf("tmdb: unknown media type %q", media)
	}
	if page < 1 {
		page = 1
	}
	q := url.Values{}
	q.Set("language", language)
	q.Set("page", strconv.Itoa(page))

	var out Page
	if err := c.fetch.GetJSON(ctx, c.endpoint("/"+string(media)+"/top_rated", q), c.header(), &out); err != nil {
		return nil, eris.Wrapf(err, "tmdb: top rated %s page %d", media, page)
	}
	return &out, nil
}

func (c *httpClient) AllTopRated(ctx context.Context, media MediaType, language string) ([]Result, []PageError) {
	first, err := c.TopRated(ctx, media, language, 1)
	if err != nil {
		return nil, []PageError{{Page: 1, Err: err}}
	}

	last := first.TotalPages
	if c.maxPages > 0 && last > c.maxPages {
		last = c.maxPages
	}
	results := append([]Result(nil), first.Results...)
	var errs []PageError
	for p := 2; p <= last; p++ {
		if ctx.Err() != nil {
			errs = append(errs, PageError{Page: p, Err: ctx.Err()})
			break
		}
		page, err := c.TopRated(ctx, media, language, p)
		if err != nil {
			zap.L().Warn("tmdb: page failed",
				zap.String("media", string(media)),
				zap.String("language", language),
				zap.Int("page", p),
				zap.Error(err),
			)
			errs = append(errs, PageError{Page: p, Err: err})
			continue
		}
		results = append(results, page.Results...)
	}
	return results, errs
}

func (c *httpClient) Genres(ctx context.Context, media MediaType, language string) ([]Genre, error) {
	if !media.valid() {
		return nil, eris.Errorf("tmdb: unknown media type %q", media)
	}
	q := url.Values{}
	q.Set("language", language)

	var out genreList
	if err := c.fetch.GetJSON(ctx, c.endpoint("/genre/"+string(media)+"/list", q), c.header(), &out); err != nil {
		return nil, eris.Wrapf(err, "tmdb: %s genres", media)
	}
	return out.Genres, nil
}

func (c *httpClient) WatchProviders(ctx context.Context, media MediaType, id int64, region string) ([]string, error) {
	if !media.valid() {
		return nil, eris.Errorf("tmdb: unknown media type %q", media)
	}
	path := fmt.Sprintf("/%s/%d/watch/providers", media, id)

	var out providersResponse
	if err := c.fetch.GetJSON(ctx, c.endpoint(path, nil), c.header(), &out); err != nil {
		return nil, eris.Wrapf(err, "tmdb: watch providers %s %d", media, id)
	}
	rp, ok := out.Results[region]
	if !ok {
		return []string{}, nil
	}
	names := make([]string, 0, len(rp.Flatrate))
	for _, p := range rp.Flatrate {
		if p.ProviderName != "" {
			names = append(names, p.ProviderName)
		}
	}
	return names, nil
}
