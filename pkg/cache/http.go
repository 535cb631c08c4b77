package cache

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// DefaultTTL applies when the response carries no usable freshness information.
const DefaultTTL = 5 * time.Minute

// NewEntry builds a cache entry from a response whose body was already read.
// It returns nil when the response must not be stored: a non-200 status,
// Cache-Control: no-store, or nothing to revalidate with.
func NewEntry(resp *http.Response, body []byte) *CacheEntry {
	if resp == nil || resp.StatusCode != http.StatusOK {
		return nil
	}

	now := time.Now()
	expires, storable := freshness(resp.Header, now)
	if !storable {
		return nil
	}

	entry := &CacheEntry{
		Data:       body,
		ETag:       resp.Header.Get("ETag"),
		Expires:    expires,
		StatusCode: resp.StatusCode,
		Headers:    resp.Header.Clone(),
		CachedAt:   now,
	}
	if lm, err := http.ParseTime(resp.Header.Get("Last-Modified")); err == nil {
		entry.LastModified = lm
	}

	if !entry.HasValidators() {
		return nil
	}
	return entry
}

// freshness derives the expiry time from Cache-Control max-age, then Expires,
// then DefaultTTL. An Expires that does not parse ("-1", "0") falls back to
// DefaultTTL; one in the past makes the entry immediately stale.
func freshness(h http.Header, now time.Time) (expires time.Time, storable bool) {
	for _, directive := range strings.Split(h.Get("Cache-Control"), ",") {
		directive = strings.ToLower(strings.TrimSpace(directive))
		switch {
		case directive == "no-store":
			return time.Time{}, false
		case strings.HasPrefix(directive, "max-age="):
			if secs, err := strconv.Atoi(strings.TrimPrefix(directive, "max-age=")); err == nil && secs >= 0 {
				return now.Add(time.Duration(secs) * time.Second), true
			}
		}
	}

	if v := h.Get("Expires"); v != "" {
		if t, err := http.ParseTime(v); err == nil {
			if t.Before(now) {
				return now, true
			}
			return t, true
		}
	}
	return now.Add(DefaultTTL), true
}

// ShouldMakeConditionalRequest reports whether entry can revalidate a request.
func ShouldMakeConditionalRequest(entry *CacheEntry) bool {
	return entry != nil && entry.HasValidators()
}

// AddConditionalHeaders sets If-None-Match, or If-Modified-Since when the
// entry has no ETag.
func AddConditionalHeaders(req *http.Request, entry *CacheEntry) {
	if entry == nil || req == nil {
		return
	}

	if entry.ETag != "" {
		req.Header.Set("If-None-Match", entry.ETag)
	} else if !entry.LastModified.IsZero() {
		req.Header.Set("If-Modified-Since", entry.LastModified.Format(http.TimeFormat))
	}
}
