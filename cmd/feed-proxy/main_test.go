package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/pagefeed/internal/testutil"
	"github.com/Sternrassler/pagefeed/pkg/client"
	"github.com/Sternrassler/pagefeed/pkg/pagination"
	"github.com/rs/zerolog"
)

type testEnv struct {
	mock   *testutil.MockCollection
	ctrl   *pagination.Controller
	server *httptest.Server
}

func setupTestEnv(t *testing.T, total int) *testEnv {
	t.Helper()
	logger := zerolog.Nop()

	mock := testutil.NewMockCollection("posts", total)
	t.Cleanup(mock.Close)

	clientCfg := client.DefaultConfig()
	clientCfg.BaseURL = mock.URL()
	clientCfg.UserAgent = "feed-proxy-test/1.0"
	clientCfg.Logger = &logger
	apiClient, err := client.New(clientCfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	t.Cleanup(func() { apiClient.Close() })

	feedCfg := pagination.DefaultConfig("posts")
	feedCfg.Logger = &logger
	ctrl, err := pagination.New(apiClient, feedCfg)
	if err != nil {
		t.Fatalf("Failed to create controller: %v", err)
	}
	t.Cleanup(ctrl.Close)

	srv := httptest.NewServer(newServer(ctrl, apiClient, feedCfg, nil, logger).routes())
	t.Cleanup(srv.Close)

	return &testEnv{mock: mock, ctrl: ctrl, server: srv}
}

func (e *testEnv) do(t *testing.T, method, path string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, e.server.URL+path, nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, body
}

func (e *testEnv) wait(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.ctrl.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
}

func (e *testEnv) state(t *testing.T) pagination.State {
	t.Helper()
	resp, body := e.do(t, http.MethodGet, "/feed")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /feed status = %d", resp.StatusCode)
	}
	var s pagination.State
	if err := json.Unmarshal(body, &s); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	return s
}

func TestHealthEndpoint(t *testing.T) {
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	healthHandler(w, req)

	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	if string(body) != "OK" {
		t.Errorf("Expected body 'OK', got %s", string(body))
	}
}

func TestReadyEndpoint_WithoutRedis(t *testing.T) {
	env := setupTestEnv(t, 0)

	resp, body := env.do(t, http.MethodGet, "/ready")
	if resp.StatusCode != http.StatusOK || string(body) != "OK" {
		t.Errorf("GET /ready = %d %q, want 200 OK", resp.StatusCode, body)
	}
}

func TestFeedEndpoints_Pagination(t *testing.T) {
	env := setupTestEnv(t, 45)

	resp, _ := env.do(t, http.MethodPost, "/feed/load")
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("POST /feed/load status = %d, want 202", resp.StatusCode)
	}
	env.wait(t)

	s := env.state(t)
	if len(s.Items) != 20 || s.CurrentPage != 1 || !s.HasMore {
		t.Fatalf("after load: items=%d page=%d hasMore=%v", len(s.Items), s.CurrentPage, s.HasMore)
	}
	if s.Items[0].Title != "post 1" || s.Items[0].OwnerID != 1 {
		t.Errorf("first item = %+v", s.Items[0])
	}

	env.do(t, http.MethodPost, "/feed/more")
	env.wait(t)
	s = env.state(t)
	if len(s.Items) != 40 || s.CurrentPage != 2 {
		t.Fatalf("after more: items=%d page=%d", len(s.Items), s.CurrentPage)
	}

	// Seeing a middle item does nothing; seeing the last one pages.
	env.do(t, http.MethodPost, "/feed/seen?id=10")
	env.wait(t)
	if got := env.state(t); len(got.Items) != 40 {
		t.Fatalf("seen middle item loaded more: items=%d", len(got.Items))
	}

	env.do(t, http.MethodPost, "/feed/seen?id=40")
	env.wait(t)
	s = env.state(t)
	if len(s.Items) != 45 || s.CurrentPage != 3 || s.HasMore {
		t.Fatalf("after seen last: items=%d page=%d hasMore=%v", len(s.Items), s.CurrentPage, s.HasMore)
	}

	env.do(t, http.MethodPost, "/feed/refresh")
	env.wait(t)
	s = env.state(t)
	if len(s.Items) != 20 || s.CurrentPage != 1 || !s.HasMore {
		t.Errorf("after refresh: items=%d page=%d hasMore=%v", len(s.Items), s.CurrentPage, s.HasMore)
	}
}

func TestFeedEndpoints_ErrorSurfacedInState(t *testing.T) {
	env := setupTestEnv(t, 45)
	env.mock.SetPageResponse(1, testutil.NewServerErrorResponse())

	env.do(t, http.MethodPost, "/feed/load")
	env.wait(t)

	s := env.state(t)
	if s.LastError == nil {
		t.Fatal("LastError = nil, want server error")
	}
	if s.LastError.Kind != client.KindHTTPStatus {
		t.Errorf("Kind = %s, want %s", s.LastError.Kind, client.KindHTTPStatus)
	}
	if !strings.HasPrefix(s.LastError.Message, "Server returned HTTP 500") {
		t.Errorf("Message = %q", s.LastError.Message)
	}
	if !s.ShowRetry() {
		t.Error("ShowRetry() = false, want true")
	}
}

func TestSeenEndpoint_BadID(t *testing.T) {
	env := setupTestEnv(t, 45)

	for _, path := range []string{"/feed/seen", "/feed/seen?id=abc"} {
		resp, _ := env.do(t, http.MethodPost, path)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("POST %s status = %d, want 400", path, resp.StatusCode)
		}
	}
}

func TestFeedEndpoints_MethodNotAllowed(t *testing.T) {
	env := setupTestEnv(t, 45)

	resp, _ := env.do(t, http.MethodGet, "/feed/load")
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET /feed/load status = %d, want 405", resp.StatusCode)
	}
}

func TestExportEndpoint(t *testing.T) {
	env := setupTestEnv(t, 65)

	resp, body := env.do(t, http.MethodGet, "/feed/export")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", resp.StatusCode, body)
	}

	var out exportResponse
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Count != 65 || len(out.Items) != 65 {
		t.Errorf("count = %d items = %d, want 65", out.Count, len(out.Items))
	}
	if out.Error != "" {
		t.Errorf("error = %q, want none", out.Error)
	}
}

func TestExportEndpoint_PartialFailure(t *testing.T) {
	env := setupTestEnv(t, 65)
	env.mock.SetPageResponse(2, testutil.NewServerErrorResponse())

	resp, body := env.do(t, http.MethodGet, "/feed/export")
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", resp.StatusCode)
	}

	var out exportResponse
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Count != 20 {
		t.Errorf("count = %d, want 20 (page 1 only)", out.Count)
	}
	if !strings.Contains(out.Error, "fetch page 2") {
		t.Errorf("error = %q, want page 2 failure", out.Error)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := setupTestEnv(t, 5)

	env.do(t, http.MethodPost, "/feed/load")
	env.wait(t)

	resp, body := env.do(t, http.MethodGet, "/metrics")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	bodyStr := string(body)
	if !strings.Contains(bodyStr, "# HELP") || !strings.Contains(bodyStr, "# TYPE") {
		t.Error("Expected Prometheus format metrics output")
	}
	for _, name := range []string{"pagefeed_controller_items", "pagefeed_requests_total", "pagefeed_rate_limit_remaining"} {
		if !strings.Contains(bodyStr, name) {
			t.Errorf("Expected metrics output to contain %s", name)
		}
	}
}
