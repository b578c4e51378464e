package util

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// HostLimiter paces requests per hostname. Many municipalities rent the same
// CMS hosting, so the politeness budget has to attach to the host a portal
// resolves to, not to the portal entry in config.
type HostLimiter struct {
	mu      sync.Mutex
	perHost map[string]*rate.Limiter
	fill    rate.Limit
	burst   int
}

func NewHostLimiter(reqPerSec float64, burst int) *HostLimiter {
	if reqPerSec <= 0 {
		reqPerSec = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &HostLimiter{
		perHost: make(map[string]*rate.Limiter),
		fill:    rate.Limit(reqPerSec),
		burst:   burst,
	}
}

// WaitURL blocks until one request to raw's host fits the budget. Unparsable
// URLs share a single conservative bucket rather than bypassing pacing.
func (hl *HostLimiter) WaitURL(ctx context.Context, raw string) error {
	return hl.bucket(hostOf(raw)).Wait(ctx)
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "_unparsed"
	}
	return strings.ToLower(u.Hostname())
}

func (hl *HostLimiter) bucket(host string) *rate.Limiter {
	hl.mu.Lock()
	defer hl.mu.Unlock()

	lim, ok := hl.perHost[host]
	if !ok {
		lim = rate.NewLimiter(hl.fill, hl.burst)
		hl.perHost[host] = lim
	}
	return lim
}
