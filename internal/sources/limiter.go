package sources

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// HostLimiter paces requests per board host (api.lever.co,
// boards-api.greenhouse.io, ...) and honours Retry-After holds.
type HostLimiter struct {
	mu    sync.Mutex
	m     map[string]*rate.Limiter
	holds map[string]time.Time
	r     rate.Limit
	b     int
}

func NewHostLimiter(reqPerSec float64, burst int) *HostLimiter {
	if burst < 1 {
		burst = 1
	}
	return &HostLimiter{
		m:     make(map[string]*rate.Limiter),
		holds: make(map[string]time.Time),
		r:     rate.Limit(reqPerSec),
		b:     burst,
	}
}

// hostKey is the lowercased hostname without port; "_" when unparseable.
func hostKey(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return "_"
	}
	return strings.ToLower(u.Hostname())
}

func (hl *HostLimiter) bucket(host string) (*rate.Limiter, time.Time) {
	hl.mu.Lock()
	defer hl.mu.Unlock()

	lim, ok := hl.m[host]
	if !ok {
		lim = rate.NewLimiter(hl.r, hl.b)
		hl.m[host] = lim
	}
	return lim, hl.holds[host]
}

// Hold keeps the URL's host quiet for d. A shorter hold never shortens a
// longer one already in place.
func (hl *HostLimiter) Hold(raw string, d time.Duration) {
	if hl == nil || d <= 0 {
		return
	}
	host := hostKey(raw)
	until := time.Now().Add(d)

	hl.mu.Lock()
	defer hl.mu.Unlock()
	if until.After(hl.holds[host]) {
		hl.holds[host] = until
	}
}

// WaitURL blocks until the URL's host may be hit again. A nil limiter never
// waits.
func (hl *HostLimiter) WaitURL(ctx context.Context, raw string) error {
	if hl == nil {
		return nil
	}
	lim, until := hl.bucket(hostKey(raw))
	if d := time.Until(until); d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lim.Wait(ctx)
}
