// Package fetcher is the HTTP layer shared by the catalog API clients: JSON
// GETs with pacing, retry and a circuit breaker.
package fetcher

import (
	"context"
	"net/http"
)

// Fetcher performs GET requests against a catalog API.
type Fetcher interface {
	// GetJSON fetches rawURL and decodes a 200 response into out.
	GetJSON(ctx context.Context, rawURL string, header http.Header, out any) error

	// Get fetches rawURL and returns the status code and body. Non-200
	// statuses are not errors.
	Get(ctx context.Context, rawURL string, header http.Header) (int, []byte, error)
}
