//go:build integration

package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Sternrassler/pagefeed/internal/testutil"
	"github.com/Sternrassler/pagefeed/pkg/client"
	"github.com/Sternrassler/pagefeed/pkg/pagination"
	"github.com/rs/zerolog"
)

func TestReadyEndpoint(t *testing.T) {
	redisClient := testutil.StartRedis(t)

	logger := zerolog.Nop()
	clientCfg := client.DefaultConfig()
	clientCfg.Redis = redisClient
	clientCfg.Logger = &logger
	apiClient, err := client.New(clientCfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	defer apiClient.Close()

	feedCfg := pagination.DefaultConfig("posts")
	ctrl, err := pagination.New(apiClient, feedCfg)
	if err != nil {
		t.Fatalf("Failed to create controller: %v", err)
	}
	defer ctrl.Close()

	srv := newServer(ctrl, apiClient, feedCfg, redisClient, logger)

	t.Run("ready", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/ready", nil)
		w := httptest.NewRecorder()

		srv.readyHandler(w, req)

		resp := w.Result()
		body, _ := io.ReadAll(resp.Body)

		if resp.StatusCode != http.StatusOK {
			t.Errorf("Expected status 200, got %d", resp.StatusCode)
		}

		if string(body) != "OK" {
			t.Errorf("Expected body 'OK', got %s", string(body))
		}
	})

	t.Run("not_ready_redis_down", func(t *testing.T) {
		// Close Redis to simulate failure
		redisClient.Close()

		req := httptest.NewRequest("GET", "/ready", nil)
		w := httptest.NewRecorder()

		srv.readyHandler(w, req)

		resp := w.Result()

		if resp.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("Expected status 503, got %d", resp.StatusCode)
		}
	})
}
