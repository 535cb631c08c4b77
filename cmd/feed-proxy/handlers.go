package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Sternrassler/pagefeed/pkg/client"
	"github.com/Sternrassler/pagefeed/pkg/metrics"
	"github.com/Sternrassler/pagefeed/pkg/pagination"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// exportTimeout bounds a full collection walk.
const exportTimeout = 60 * time.Second

type server struct {
	ctrl    *pagination.Controller
	batch   *pagination.BatchFetcher
	feedCfg pagination.Config
	redis   *redis.Client
	logger  zerolog.Logger
}

func newServer(ctrl *pagination.Controller, fetcher pagination.PageFetcher, feedCfg pagination.Config, redisClient *redis.Client, logger zerolog.Logger) *server {
	batchCfg := pagination.DefaultBatchConfig()
	batchCfg.MaxConcurrency = getEnvInt("EXPORT_CONCURRENCY", batchCfg.MaxConcurrency)
	batchCfg.Logger = &logger

	return &server{
		ctrl:    ctrl,
		batch:   pagination.NewBatchFetcher(fetcher, batchCfg),
		feedCfg: feedCfg,
		redis:   redisClient,
		logger:  logger,
	}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler)
	mux.HandleFunc("GET /ready", s.readyHandler)
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /feed", s.stateHandler)
	mux.HandleFunc("POST /feed/load", s.triggerHandler("load", s.ctrl.Load))
	mux.HandleFunc("POST /feed/refresh", s.triggerHandler("refresh", s.ctrl.Refresh))
	mux.HandleFunc("POST /feed/more", s.triggerHandler("more", s.ctrl.LoadMore))
	mux.HandleFunc("POST /feed/seen", s.seenHandler)
	mux.HandleFunc("GET /feed/export", s.exportHandler)
	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// readyHandler reports not ready while Redis is configured but unreachable.
func (s *server) readyHandler(w http.ResponseWriter, r *http.Request) {
	if s.redis != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.redis.Ping(ctx).Err(); err != nil {
			s.logger.Warn().Err(err).Msg("Readiness check failed")
			http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

func (s *server) stateHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.ctrl.State())
}

// triggerHandler runs op and answers with the state right after it.
// The fetch it starts completes in the background.
func (s *server) triggerHandler(name string, op func()) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		op()
		s.logger.Debug().Str("op", name).Msg("Feed operation triggered")
		s.writeJSON(w, http.StatusAccepted, s.ctrl.State())
	}
}

// seenHandler reports the item with ?id= as visible.
func (s *server) seenHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.URL.Query().Get("id"))
	if err != nil {
		http.Error(w, "id must be an integer", http.StatusBadRequest)
		return
	}

	s.ctrl.LoadMoreIfNeeded(&client.Item{ID: id})
	s.writeJSON(w, http.StatusAccepted, s.ctrl.State())
}

type exportResponse struct {
	Items []client.Item `json:"items"`
	Count int           `json:"count"`
	Error string        `json:"error,omitempty"`
}

// exportHandler walks the whole collection. On failure it answers 502 with
// the items fetched before the failing page.
func (s *server) exportHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), exportTimeout)
	defer cancel()

	items, err := s.batch.FetchAll(ctx, s.feedCfg.Resource, s.feedCfg.PageSize)
	if items == nil {
		items = []client.Item{}
	}

	resp := exportResponse{Items: items, Count: len(items)}
	status := http.StatusOK
	if err != nil {
		resp.Error = err.Error()
		status = http.StatusBadGateway
	}
	s.writeJSON(w, status, resp)
}

func (s *server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to write response")
	}
}
