package pagination

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/Sternrassler/pagefeed/pkg/client"
	"github.com/Sternrassler/pagefeed/pkg/logging"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultPageSize is the number of items requested per page.
const DefaultPageSize = 20

// PageFetcher fetches a single page of a resource. *client.Client implements it.
type PageFetcher interface {
	FetchPage(ctx context.Context, resource string, req client.PageRequest) ([]client.Item, error)
}

// Config holds controller configuration.
type Config struct {
	// Resource is the collection path, e.g. "posts"
	Resource string

	// PageSize is the number of items per page. A page shorter than this
	// marks the end of the collection.
	PageSize int

	// Logger overrides the component logger (optional)
	Logger *zerolog.Logger
}

// DefaultConfig returns the default configuration for resource.
func DefaultConfig(resource string) Config {
	return Config{
		Resource: resource,
		PageSize: DefaultPageSize,
	}
}

// FromEnv overrides fields from <prefix>RESOURCE and <prefix>PAGE_SIZE when set.
func (c *Config) FromEnv(prefix string) error {
	if v, ok := os.LookupEnv(prefix + "RESOURCE"); ok && v != "" {
		c.Resource = v
	}
	if v, ok := os.LookupEnv(prefix + "PAGE_SIZE"); ok && v != "" {
		size, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse %sPAGE_SIZE: %w", prefix, err)
		}
		if size <= 0 {
			return fmt.Errorf("%sPAGE_SIZE must be > 0 (got %d)", prefix, size)
		}
		c.PageSize = size
	}
	return nil
}

type fetchMode int

const (
	modeReplace fetchMode = iota
	modeAppend
)

func (m fetchMode) String() string {
	if m == modeAppend {
		return "append"
	}
	return "replace"
}

// fetch identifies one in-flight page request. A completion is applied only
// while its fetch is still the controller's active one.
type fetch struct {
	id     string
	page   int
	mode   fetchMode
	cancel context.CancelFunc
	done   chan struct{}
}

// Controller owns the paginated list state for one resource: the accumulated
// items, the current page, the end-of-data flag, the loading flags and the
// last error. At most one fetch is in flight at any time. Starting a new
// fetch cancels the previous one, and a cancelled fetch never mutates state.
//
// All methods are safe for concurrent use. Subscribers are notified from a
// single goroutine, in version order.
type Controller struct {
	fetcher PageFetcher
	config  Config
	logger  zerolog.Logger

	baseCtx    context.Context
	cancelBase context.CancelFunc

	mu          sync.Mutex
	items       []client.Item
	currentPage int
	hasMore     bool
	isLoading   bool
	isPaging    bool
	lastError   *ErrorInfo
	active      *fetch
	closed      bool
	version     uint64

	listenersMu  sync.Mutex
	listeners    map[uint64]func(State)
	nextListener uint64

	dispatchOnce sync.Once
	notify       chan struct{}
	stop         chan struct{}
	closeOnce    sync.Once
}

// New creates a controller in its initial state: no items, page 1,
// more data assumed, idle.
func New(fetcher PageFetcher, cfg Config) (*Controller, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if cfg.Resource == "" {
		return nil, fmt.Errorf("resource is required")
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}

	logger := logging.NewLogger("pagefeed-controller")
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Controller{
		fetcher:     fetcher,
		config:      cfg,
		logger:      logger.With().Str("resource", cfg.Resource).Logger(),
		baseCtx:     ctx,
		cancelBase:  cancel,
		currentPage: 1,
		hasMore:     true,
		listeners:   make(map[uint64]func(State)),
		notify:      make(chan struct{}, 1),
		stop:        make(chan struct{}),
	}, nil
}

// Load starts a fresh load from page 1, discarding items and cancelling
// any fetch in flight.
func (c *Controller) Load() {
	c.restart("load")
}

// Refresh is Load under another name, for pull-to-refresh.
func (c *Controller) Refresh() {
	c.restart("refresh")
}

func (c *Controller) restart(op string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	operationsTotal.WithLabelValues(op).Inc()

	c.cancelActiveLocked(op)
	c.items = nil
	c.currentPage = 1
	c.hasMore = true
	c.startLocked(1, modeReplace)
}

// LoadMore fetches the page after the current one and appends it. It does
// nothing when the collection is exhausted or a load from page 1 is in
// flight. A paging fetch already in flight is superseded.
func (c *Controller) LoadMore() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || !c.hasMore || c.isLoading {
		return
	}
	operationsTotal.WithLabelValues("load_more").Inc()

	c.cancelActiveLocked("load_more")
	c.startLocked(c.currentPage+1, modeAppend)
}

// LoadMoreIfNeeded triggers LoadMore when ref is the last loaded item and
// no fetch is in flight. It is meant to be called as items become visible.
func (c *Controller) LoadMoreIfNeeded(ref *client.Item) {
	if ref == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || !c.hasMore || c.isLoading || c.isPaging || len(c.items) == 0 {
		return
	}
	if c.items[len(c.items)-1].ID != ref.ID {
		return
	}
	operationsTotal.WithLabelValues("load_more_if_needed").Inc()

	c.startLocked(c.currentPage+1, modeAppend)
}

// State returns a snapshot of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Subscribe registers fn to receive state snapshots after every change.
// Snapshots may be coalesced but are never delivered out of order. fn runs
// on the controller's notification goroutine and may call back into the
// controller.
func (c *Controller) Subscribe(fn func(State)) (unsubscribe func()) {
	c.listenersMu.Lock()
	id := c.nextListener
	c.nextListener++
	c.listeners[id] = fn
	c.listenersMu.Unlock()

	c.dispatchOnce.Do(func() { go c.dispatch() })

	var once sync.Once
	return func() {
		once.Do(func() {
			c.listenersMu.Lock()
			delete(c.listeners, id)
			c.listenersMu.Unlock()
		})
	}
}

// Wait blocks until no fetch is in flight or ctx is done.
func (c *Controller) Wait(ctx context.Context) error {
	for {
		c.mu.Lock()
		active := c.active
		c.mu.Unlock()

		if active == nil {
			return nil
		}

		select {
		case <-active.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close cancels any fetch in flight and stops notifications. Later
// operations are no-ops. The items already loaded stay readable.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.cancelActiveLocked("close")
		c.changedLocked()
		c.mu.Unlock()

		c.cancelBase()
		close(c.stop)
		c.logger.Debug().Msg("Controller closed")
	})
}

// startLocked begins fetching page and marks the matching loading flag.
func (c *Controller) startLocked(page int, mode fetchMode) {
	ctx, cancel := context.WithCancel(c.baseCtx)
	f := &fetch{
		id:     uuid.NewString(),
		page:   page,
		mode:   mode,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	c.active = f
	c.isLoading = mode == modeReplace
	c.isPaging = mode == modeAppend
	c.changedLocked()

	c.logger.Debug().
		Str("fetch_id", f.id).
		Int("page", page).
		Str("mode", mode.String()).
		Msg("Fetch started")

	go c.run(ctx, f)
}

// cancelActiveLocked abandons the active fetch, if any. Its completion will
// find itself superseded and be dropped.
func (c *Controller) cancelActiveLocked(reason string) {
	if c.active == nil {
		return
	}

	c.logger.Debug().
		Str("fetch_id", c.active.id).
		Int("page", c.active.page).
		Str("reason", reason).
		Msg("Fetch cancelled")

	c.active.cancel()
	c.active = nil
	c.isLoading = false
	c.isPaging = false
}

func (c *Controller) run(ctx context.Context, f *fetch) {
	defer close(f.done)

	if ctx.Err() != nil {
		c.complete(ctx, f, nil, client.ErrCancelled)
		return
	}

	items, err := c.fetcher.FetchPage(ctx, c.config.Resource, client.PageRequest{
		Page: f.page,
		Size: c.config.PageSize,
	})
	c.complete(ctx, f, items, err)
}

func (c *Controller) complete(ctx context.Context, f *fetch, items []client.Item, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != f {
		staleCompletionsTotal.Inc()
		c.logger.Debug().
			Str("fetch_id", f.id).
			Int("page", f.page).
			Msg("Discarding superseded completion")
		return
	}
	// Classify before releasing the fetch context: cancel makes ctx.Err non-nil.
	cancelled := ctx.Err() != nil || errors.Is(err, client.ErrCancelled) || errors.Is(err, context.Canceled)
	c.active = nil
	f.cancel()

	c.isLoading = false
	c.isPaging = false

	switch {
	case cancelled:
		fetchOutcomesTotal.WithLabelValues(f.mode.String(), "cancelled").Inc()

	case err != nil:
		fetchOutcomesTotal.WithLabelValues(f.mode.String(), "error").Inc()
		c.lastError = &ErrorInfo{
			Kind:    client.KindOf(err),
			Message: err.Error(),
			Page:    f.page,
			At:      time.Now(),
		}
		c.logger.Warn().
			Err(err).
			Str("fetch_id", f.id).
			Int("page", f.page).
			Str("error_kind", string(c.lastError.Kind)).
			Int("items", len(c.items)).
			Msg("Page load failed")

	default:
		fetchOutcomesTotal.WithLabelValues(f.mode.String(), "success").Inc()
		if f.mode == modeReplace {
			c.items = append([]client.Item(nil), items...)
		} else {
			c.items = append(c.items, items...)
		}
		c.currentPage = f.page
		c.hasMore = len(items) == c.config.PageSize
		c.lastError = nil

		c.logger.Info().
			Str("fetch_id", f.id).
			Int("page", f.page).
			Int("count", len(items)).
			Int("total", len(c.items)).
			Bool("has_more", c.hasMore).
			Msg("Page loaded")
	}

	c.changedLocked()
}

// changedLocked records a state change and wakes the dispatcher.
func (c *Controller) changedLocked() {
	c.version++
	itemsLoaded.WithLabelValues(c.config.Resource).Set(float64(len(c.items)))

	select {
	case c.notify <- struct{}{}:
	default:
	}
}

func (c *Controller) snapshotLocked() State {
	items := make([]client.Item, len(c.items))
	copy(items, c.items)

	var lastErr *ErrorInfo
	if c.lastError != nil {
		e := *c.lastError
		lastErr = &e
	}

	return State{
		Items:       items,
		CurrentPage: c.currentPage,
		HasMore:     c.hasMore,
		IsLoading:   c.isLoading,
		IsPaging:    c.isPaging,
		LastError:   lastErr,
		Version:     c.version,
	}
}

// dispatch delivers the latest snapshot to subscribers until Close.
func (c *Controller) dispatch() {
	var delivered uint64
	deliver := func() {
		s := c.State()
		if s.Version <= delivered {
			return
		}
		delivered = s.Version

		c.listenersMu.Lock()
		fns := make([]func(State), 0, len(c.listeners))
		for _, fn := range c.listeners {
			fns = append(fns, fn)
		}
		c.listenersMu.Unlock()

		for _, fn := range fns {
			fn(s)
		}
	}

	deliver()
	for {
		select {
		case <-c.notify:
			deliver()
		case <-c.stop:
			deliver()
			return
		}
	}
}
