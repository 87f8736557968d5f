package query

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Cache memoizes aggregation results keyed by a canonical hash of the
// request. It is an optional side-table the caller constructs and injects,
// never ambient package state, and entries expire after an explicit TTL.
type Cache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	result  *AggregationResult
	expires time.Time
}

// NewCache creates a cache with the given TTL.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

// WithNow fixes the clock for testing.
func (c *Cache) WithNow(now func() time.Time) *Cache {
	c.now = now
	return c
}

// Get returns the cached result for an identical earlier request, if it has
// not expired.
func (c *Cache) Get(req AggregationRequest) (*AggregationResult, bool) {
	key := CacheKey(req)
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().After(e.expires) {
		delete(c.entries, key)
		return nil, false
	}
	return e.result, true
}

// Put stores a result under the request's canonical key.
func (c *Cache) Put(req AggregationRequest, result *AggregationResult) {
	key := CacheKey(req)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{result: result, expires: c.now().Add(c.ttl)}
}

// Len returns the number of live entries (expired ones included until read).
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// CacheKey builds the canonical hash of (operation, field, group-by,
// filters, time windows). Slice ordering in the filter does not change
// the key.
func CacheKey(req AggregationRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "op=%s|field=%s|group=%s", req.Operation, req.Field, req.GroupBy)

	risks := make([]string, len(req.Filter.RiskLevels))
	for i, r := range req.Filter.RiskLevels {
		risks[i] = string(r)
	}
	sort.Strings(risks)
	fmt.Fprintf(&b, "|risk=%s", strings.Join(risks, ","))

	cats := append([]string(nil), req.Filter.Categories...)
	sort.Strings(cats)
	fmt.Fprintf(&b, "|cat=%s", strings.Join(cats, ","))

	floors := append([]string(nil), req.Filter.Floors...)
	sort.Strings(floors)
	fmt.Fprintf(&b, "|floor=%s", strings.Join(floors, ","))

	if req.Filter.MinHealthScore != nil {
		fmt.Fprintf(&b, "|min=%g", *req.Filter.MinHealthScore)
	}
	if req.Filter.MaxHealthScore != nil {
		fmt.Fprintf(&b, "|max=%g", *req.Filter.MaxHealthScore)
	}
	if req.TimeRange != nil {
		fmt.Fprintf(&b, "|range=%d-%d", req.TimeRange.Start.Unix(), req.TimeRange.End.Unix())
	}
	if req.CompareWith != nil {
		fmt.Fprintf(&b, "|cmp=%d-%d", req.CompareWith.Start.Unix(), req.CompareWith.End.Unix())
	}

	h := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(h[:])
}
