// Package dnscache provides a thread-safe, TTL-based cache for MX lookups
// with singleflight deduplication for concurrent requests to the same domain.
package dnscache

import (
	"context"
	"sync"
	"time"

	"github.com/mailprobe/mailprobe/types"
)

// Lookuper is the resolver side of the cache (implemented by dnsx.Resolver).
type Lookuper interface {
	LookupMX(ctx context.Context, domain string) ([]types.MXRecord, error)
}

// Cache is a thread-safe MX lookup cache.
// Concurrent lookups for the same domain are deduplicated:
// only one actual DNS query is performed, and all waiters receive the result.
type Cache struct {
	mu            sync.Mutex
	entries       map[string]*entry
	cacheTTL      time.Duration
	lookupTimeout time.Duration
	resolver      Lookuper
}

type entry struct {
	records []types.MXRecord
	err     error
	expires time.Time
	done    chan struct{} // closed when lookup is complete
}

// New creates an MX cache in front of the given resolver with the given
// per-lookup timeout and cache TTL.
func New(resolver Lookuper, lookupTimeout, cacheTTL time.Duration) *Cache {
	return &Cache{
		entries:       make(map[string]*entry),
		cacheTTL:      cacheTTL,
		lookupTimeout: lookupTimeout,
		resolver:      resolver,
	}
}

// LookupMX returns MX records for the domain, using the cache when possible.
// Concurrent lookups for the same domain are deduplicated via singleflight.
func (c *Cache) LookupMX(domain string) ([]types.MXRecord, error) {
	c.mu.Lock()

	if e, ok := c.entries[domain]; ok {
		select {
		case <-e.done:
			// Completed entry - check if still valid
			if time.Now().Before(e.expires) {
				c.mu.Unlock()
				return copyRecords(e.records), e.err
			}
			// Expired, fall through to refresh
		default:
			// Lookup in progress - wait for it
			c.mu.Unlock()
			<-e.done
			return copyRecords(e.records), e.err
		}
	}

	// Start new lookup
	e := &entry{done: make(chan struct{})}
	c.entries[domain] = e
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), c.lookupTimeout)
	defer cancel()

	e.records, e.err = c.resolver.LookupMX(ctx, domain)
	e.expires = time.Now().Add(c.cacheTTL)
	close(e.done)

	return copyRecords(e.records), e.err
}

// Len returns the number of entries in the cache (for diagnostics).
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// copyRecords hands each caller its own slice so cached data cannot be
// mutated (e.g. via re-sorting).
func copyRecords(records []types.MXRecord) []types.MXRecord {
	if records == nil {
		return nil
	}
	out := make([]types.MXRecord, len(records))
	copy(out, records)
	return out
}
