package fetcher

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/catalog-etl/internal/resilience"
)

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	// Catalog names the API in errors and logs ("tmdb", "omdb").
	Catalog    string
	UserAgent  string
	Timeout    time.Duration
	RatePerSec float64
	Burst      int
	Retry      resilience.RetryConfig
	Circuit    resilience.CircuitBreakerConfig
	Client     *http.Client
	// Admit, when set, is called before every retry attempt. An error
	// stops the retries and is returned from Get.
	Admit func(ctx context.Context) error
}

// HTTPFetcher implements Fetcher using net/http with retry, adaptive rate
// limiting and a circuit breaker.
type HTTPFetcher struct {
	client  *http.Client
	opts    HTTPOptions
	limiter *AdaptiveLimiter
	breaker *resilience.CircuitBreaker
}

// NewHTTPFetcher creates a new HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "catalog-etl/1.0"
	}
	if opts.Catalog == "" {
		opts.Catalog = "http"
	}
	if opts.Retry.OnRetry == nil {
		opts.Retry.OnRetry = resilience.RetryLogger(opts.Catalog, "get")
	}
	if opts.Circuit.ShouldTrip == nil {
		opts.Circuit.ShouldTrip = resilience.IsTransient
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				MaxConnsPerHost:     20,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	return &HTTPFetcher{
		client:  client,
		opts:    opts,
		limiter: NewAdaptiveLimiter(opts.Catalog, rate.Limit(opts.RatePerSec), opts.Burst),
		breaker: resilience.NewCircuitBreaker(opts.Circuit),
	}
}

// Limiter exposes the adaptive limiter, mainly for inspection.
func (f *HTTPFetcher) Limiter() *AdaptiveLimiter { return f.limiter }

// Get implements Fetcher.
func (f *HTTPFetcher) Get(ctx context.Context, rawURL string, header http.Header) (int, []byte, error) {
	type result struct {
		code int
		body []byte
	}
	attempt := 0
	res, err := resilience.DoVal(ctx, f.opts.Retry, func(ctx context.Context) (result, error) {
		attempt++
		if attempt > 1 && f.opts.Admit != nil {
			if err := f.opts.Admit(ctx); err != nil {
				return result{}, err
			}
		}
		return resilience.ExecuteVal(ctx, f.breaker, func(ctx context.Context) (result, error) {
			code, body, err := f.do(ctx, rawURL, header)
			if err != nil {
				return result{}, err
			}
			if resilience.IsTransientHTTPStatus(code) {
				return result{}, resilience.CheckStatus(f.opts.Catalog, code, body)
			}
			return result{code: code, body: body}, nil
		})
	})
	if err != nil {
		return 0, nil, eris.Wrapf(err, "%s: get", f.opts.Catalog)
	}
	return res.code, res.body, nil
}

// GetJSON implements Fetcher.
func (f *HTTPFetcher) GetJSON(ctx context.Context, rawURL string, header http.Header, out any) error {
	code, body, err := f.Get(ctx, rawURL, header)
	if err != nil {
		return err
	}
	if err := resilience.CheckStatus(f.opts.Catalog, code, body); err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrapf(err, "%s: decode response", f.opts.Catalog)
	}
	return nil
}

func (f *HTTPFetcher) do(ctx context.Context, rawURL string, header http.Header) (int, []byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return 0, nil, eris.Wrap(err, "rate limiter wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, nil, eris.Wrap(err, "create request")
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, nil, resilience.NewTransientError(eris.Wrap(err, "http request"), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, resilience.NewTransientError(eris.Wrap(err, "read body"), resp.StatusCode)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		f.limiter.OnRateLimit()
	case resp.StatusCode < 300:
		f.limiter.OnSuccess()
	}
	return resp.StatusCode, body, nil
}
