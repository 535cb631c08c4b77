package cache

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"
)

func pageKey(page int) CacheKey {
	return CacheKey{
		Resource:    "posts",
		QueryParams: url.Values{"_page": {strconv.Itoa(page)}, "_limit": {"20"}},
	}
}

func freshEntry(etag string) *CacheEntry {
	now := time.Now()
	return &CacheEntry{
		Data:       []byte(`[{"id":1,"title":"post 1"}]`),
		ETag:       etag,
		Expires:    now.Add(5 * time.Minute),
		StatusCode: http.StatusOK,
		Headers:    http.Header{"Content-Type": {"application/json"}},
		CachedAt:   now,
	}
}

func TestNewManager_DefaultSize(t *testing.T) {
	for _, n := range []int{0, -3} {
		if got := NewManager(n).maxEntries; got != DefaultMaxEntries {
			t.Errorf("NewManager(%d).maxEntries = %d, want %d", n, got, DefaultMaxEntries)
		}
	}
}

func TestManager_PagesAreSeparateEntries(t *testing.T) {
	m := NewManager(10)
	ctx := context.Background()

	if err := m.Set(ctx, pageKey(1), freshEntry(`"p1"`)); err != nil {
		t.Fatalf("Set(page 1) error = %v", err)
	}
	if err := m.Set(ctx, pageKey(2), freshEntry(`"p2"`)); err != nil {
		t.Fatalf("Set(page 2) error = %v", err)
	}

	for page, want := range map[int]string{1: `"p1"`, 2: `"p2"`} {
		got, err := m.Get(ctx, pageKey(page))
		if err != nil {
			t.Fatalf("Get(page %d) error = %v", page, err)
		}
		if got.ETag != want {
			t.Errorf("page %d ETag = %s, want %s", page, got.ETag, want)
		}
	}
	if _, err := m.Get(ctx, pageKey(3)); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get(page 3) error = %v, want ErrCacheMiss", err)
	}
}

func TestManager_ReturnsCopies(t *testing.T) {
	m := NewManager(10)
	ctx := context.Background()
	stored := freshEntry(`"v1"`)

	_ = m.Set(ctx, pageKey(1), stored)
	stored.Data[0] = 'X'

	got, err := m.Get(ctx, pageKey(1))
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Data[0] != '[' {
		t.Errorf("caller mutation after Set leaked into cache: %q", got.Data)
	}

	got.ETag = "changed"
	got.Headers.Set("Content-Type", "text/plain")
	again, _ := m.Get(ctx, pageKey(1))
	if again.ETag != `"v1"` || again.Headers.Get("Content-Type") != "application/json" {
		t.Errorf("mutating a Get result changed the cache: %+v", again)
	}
}

func TestManager_ExpiredEntries(t *testing.T) {
	m := NewManager(10)
	ctx := context.Background()

	expired := freshEntry(`"old"`)
	expired.Expires = time.Now().Add(-time.Second)
	if err := m.Set(ctx, pageKey(1), expired); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if m.Len() != 0 {
		t.Errorf("expired entry was stored: Len() = %d", m.Len())
	}

	short := freshEntry(`"short"`)
	short.Expires = time.Now().Add(20 * time.Millisecond)
	_ = m.Set(ctx, pageKey(2), short)
	time.Sleep(40 * time.Millisecond)

	if _, err := m.Get(ctx, pageKey(2)); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get() after expiry error = %v, want ErrCacheMiss", err)
	}
	if m.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after expired read", m.Len())
	}
}

func TestManager_Delete(t *testing.T) {
	m := NewManager(10)
	ctx := context.Background()

	_ = m.Set(ctx, pageKey(1), freshEntry(`"a"`))
	if err := m.Delete(ctx, pageKey(1)); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := m.Delete(ctx, pageKey(9)); err != nil {
		t.Errorf("Delete(missing) error = %v, want nil", err)
	}
	if _, err := m.Get(ctx, pageKey(1)); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get() after Delete error = %v, want ErrCacheMiss", err)
	}
}

func TestManager_UpdateTTL(t *testing.T) {
	m := NewManager(10)
	ctx := context.Background()
	_ = m.Set(ctx, pageKey(1), freshEntry(`"a"`))

	later := time.Now().Add(time.Hour).Truncate(time.Second)
	if err := m.UpdateTTL(ctx, pageKey(1), later); err != nil {
		t.Fatalf("UpdateTTL() error = %v", err)
	}
	got, err := m.Get(ctx, pageKey(1))
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !got.Expires.Equal(later) || got.ETag != `"a"` {
		t.Errorf("after UpdateTTL: Expires=%v ETag=%s", got.Expires, got.ETag)
	}

	if err := m.UpdateTTL(ctx, pageKey(2), later); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("UpdateTTL(missing) error = %v, want ErrCacheMiss", err)
	}
}

func TestManager_EvictsLeastRecentlyUsed(t *testing.T) {
	m := NewManager(2)
	ctx := context.Background()

	_ = m.Set(ctx, pageKey(1), freshEntry(`"1"`))
	_ = m.Set(ctx, pageKey(2), freshEntry(`"2"`))
	if _, err := m.Get(ctx, pageKey(1)); err != nil {
		t.Fatalf("Get(page 1) error = %v", err)
	}
	_ = m.Set(ctx, pageKey(3), freshEntry(`"3"`))

	if m.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", m.Len())
	}
	if _, err := m.Get(ctx, pageKey(2)); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("page 2 still cached, want evicted")
	}
	for _, page := range []int{1, 3} {
		if _, err := m.Get(ctx, pageKey(page)); err != nil {
			t.Errorf("page %d evicted: %v", page, err)
		}
	}
}

func TestManager_Set_NilEntry(t *testing.T) {
	if err := NewManager(1).Set(context.Background(), pageKey(1), nil); err == nil {
		t.Error("Set(nil) error = nil, want error")
	}
}

func TestManager_Concurrent(t *testing.T) {
	m := NewManager(8)
	ctx := context.Background()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				page := (w+i)%16 + 1
				_ = m.Set(ctx, pageKey(page), freshEntry(strconv.Itoa(page)))
				_, _ = m.Get(ctx, pageKey(page))
			}
		}(w)
	}
	wg.Wait()

	if m.Len() > 8 {
		t.Errorf("Len() = %d, want at most 8", m.Len())
	}
}
