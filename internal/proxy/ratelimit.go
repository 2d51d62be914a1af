// internal/proxy/ratelimit.go
package proxy

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// rateLimiter enforces a fixed per-(method, caller IP) budget in a rolling
// window. Counters expire with the window; hits must not extend the TTL or
// the window would never roll.
type rateLimiter struct {
	// mu serializes the get-or-create: two first hits for the same key
	// must land on one shared counter, not each install a fresh one.
	mu    sync.Mutex
	cache *ttlcache.Cache[string, *atomic.Int64]
	max   int64
}

func newRateLimiter(window time.Duration, max int) *rateLimiter {
	cache := ttlcache.New[string, *atomic.Int64](
		ttlcache.WithTTL[string, *atomic.Int64](window),
		ttlcache.WithDisableTouchOnHit[string, *atomic.Int64](),
	)
	go cache.Start()
	return &rateLimiter{cache: cache, max: int64(max)}
}

func (rl *rateLimiter) allow(method, ip string) bool {
	key := fmt.Sprintf("%s:%s", method, ip)
	rl.mu.Lock()
	defer rl.mu.Unlock()
	item := rl.cache.Get(key)
	if item == nil {
		counter := &atomic.Int64{}
		counter.Add(1)
		rl.cache.Set(key, counter, ttlcache.DefaultTTL)
		return true
	}
	return item.Value().Add(1) <= rl.max
}

func (rl *rateLimiter) stop() {
	rl.cache.Stop()
}
