package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// CacheKey identifies a cached page response.
type CacheKey struct {
	// Resource is the collection path relative to the base URL (e.g., "posts")
	Resource string

	// QueryParams are the query parameters (e.g., {"_page": "2", "_limit": "20"})
	QueryParams url.Values
}

// String generates a deterministic cache key string.
// Format: pagefeed:resource:query1=val1:query2=val2
//
// Example:
//
//	pagefeed:posts:_limit=20:_page=2
func (k CacheKey) String() string {
	parts := []string{"pagefeed"}

	resource := strings.Trim(k.Resource, "/")
	if resource != "" {
		parts = append(parts, resource)
	}

	if len(k.QueryParams) > 0 {
		queryKeys := make([]string, 0, len(k.QueryParams))
		for key := range k.QueryParams {
			queryKeys = append(queryKeys, key)
		}
		sort.Strings(queryKeys)

		for _, key := range queryKeys {
			parts = append(parts, fmt.Sprintf("%s=%s", key, strings.Join(k.QueryParams[key], ",")))
		}
	}

	return strings.Join(parts, ":")
}
