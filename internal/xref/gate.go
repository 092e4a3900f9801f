package xref

import (
	"context"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// DefaultQuota is the number of rating catalog calls allowed per run. The
// free OMDB tier allows 1000 requests a day.
const DefaultQuota = 1000

// ErrQuotaExhausted is returned by Acquire once the run's quota is spent.
var ErrQuotaExhausted = eris.New("xref: request quota exhausted")

// Gate paces calls to the rating catalog and enforces a per-run call quota.
// The quota counts HTTP requests: the resolver acquires one unit per lookup
// and a client built with omdb.WithGate acquires one more for each retry.
// One Gate is shared by every worker of a run. A nil Gate admits everything.
type Gate struct {
	limiter *rate.Limiter
	quota   int64
	used    atomic.Int64
}

// NewGate creates a gate allowing perSec calls per second with the given
// burst. perSec <= 0 disables pacing; quota <= 0 disables the quota.
func NewGate(perSec float64, burst, quota int) *Gate {
	limit := rate.Inf
	if perSec > 0 {
		limit = rate.Limit(perSec)
	}
	if burst <= 0 {
		burst = 1
	}
	return &Gate{
		limiter: rate.NewLimiter(limit, burst),
		quota:   int64(quota),
	}
}

// Acquire reserves one call. It fails with ErrQuotaExhausted when the quota
// is spent and with the context error when ctx ends while waiting.
func (g *Gate) Acquire(ctx context.Context) error {
	if g == nil {
		return ctx.Err()
	}
	if err := ctx.Err(); err != nil {
		return eris.Wrap(err, "xref: gate")
	}
	for {
		used := g.used.Load()
		if g.quota > 0 && used >= g.quota {
			return ErrQuotaExhausted
		}
		if g.used.CompareAndSwap(used, used+1) {
			break
		}
	}
	if err := g.limiter.Wait(ctx); err != nil {
		g.used.Add(-1)
		return eris.Wrap(err, "xref: gate wait")
	}
	return nil
}

// Used returns the number of calls admitted so far.
func (g *Gate) Used() int {
	if g == nil {
		return 0
	}
	return int(g.used.Load())
}

// Remaining returns the calls left in the quota, or -1 when unlimited.
func (g *Gate) Remaining() int {
	if g == nil || g.quota <= 0 {
		return -1
	}
	return int(max(g.quota-g.used.Load(), 0))
}
