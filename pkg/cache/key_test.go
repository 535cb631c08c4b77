package cache

import (
	"net/url"
	"testing"
)

func TestCacheKey_String(t *testing.T) {
	tests := []struct {
		name string
		key  CacheKey
		want string
	}{
		{
			name: "resource only",
			key:  CacheKey{Resource: "posts"},
			want: "pagefeed:posts",
		},
		{
			name: "slashes trimmed",
			key:  CacheKey{Resource: "/users/1/posts/"},
			want: "pagefeed:users/1/posts",
		},
		{
			name: "query params sorted",
			key: CacheKey{
				Resource: "posts",
				QueryParams: url.Values{
					"_page":  []string{"2"},
					"_limit": []string{"20"},
				},
			},
			want: "pagefeed:posts:_limit=20:_page=2",
		},
		{
			name: "multi-valued param",
			key: CacheKey{
				Resource:    "posts",
				QueryParams: url.Values{"id": []string{"1", "2"}},
			},
			want: "pagefeed:posts:id=1,2",
		},
		{
			name: "empty key",
			key:  CacheKey{},
			want: "pagefeed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCacheKey_Deterministic(t *testing.T) {
	key := CacheKey{
		Resource: "posts",
		QueryParams: url.Values{
			"_page":  []string{"3"},
			"_limit": []string{"20"},
			"userId": []string{"7"},
		},
	}

	first := key.String()
	for i := 0; i < 50; i++ {
		if result := key.String(); result != first {
			t.Fatalf("result[%d] = %v, want %v (not deterministic)", i, result, first)
		}
	}
}
