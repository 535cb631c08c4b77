package cache

import (
	"bytes"
	"net/http"
	"time"
)

// CacheEntry is a page response held in memory for revalidation.
type CacheEntry struct {
	Data         []byte
	ETag         string
	Expires      time.Time
	LastModified time.Time
	StatusCode   int
	Headers      http.Header
	CachedAt     time.Time
}

// IsExpired reports whether the entry is past its Expires time.
func (e *CacheEntry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration, or 0 once expired.
func (e *CacheEntry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// Age is the time since the entry was stored.
func (e *CacheEntry) Age() time.Duration {
	if e.CachedAt.IsZero() {
		return 0
	}
	return time.Since(e.CachedAt)
}

// HasValidators reports whether the server gave us anything to revalidate with.
func (e *CacheEntry) HasValidators() bool {
	return e.ETag != "" || !e.LastModified.IsZero()
}

// Clone returns a deep copy. The manager never hands out its own buffers.
func (e *CacheEntry) Clone() *CacheEntry {
	c := *e
	c.Data = bytes.Clone(e.Data)
	c.Headers = e.Headers.Clone()
	return &c
}
