// Command feed-proxy serves a paginated remote collection over HTTP and lets
// callers drive its pagination controller: load, refresh, load more and
// infinite-scroll triggers.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Sternrassler/pagefeed/pkg/client"
	"github.com/Sternrassler/pagefeed/pkg/logging"
	"github.com/Sternrassler/pagefeed/pkg/pagination"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(getEnv("LOG_LEVEL", "info")),
		Pretty: getEnv("LOG_PRETTY", "false") == "true",
		Output: os.Stderr,
	})

	if err := run(logger); err != nil {
		logger.Fatal().Err(err).Msg("feed-proxy failed")
	}
}

func run(logger zerolog.Logger) error {
	port := getEnv("PORT", "8080")
	redisURL := getEnv("REDIS_URL", "")

	clientCfg := client.DefaultConfig()
	clientCfg.BaseURL = getEnv("BASE_URL", client.DefaultBaseURL)
	clientCfg.UserAgent = getEnv("USER_AGENT", client.DefaultUserAgent)
	if v := getEnv("REQUEST_TIMEOUT", ""); v != "" {
		timeout, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		clientCfg.Timeout = timeout
	}

	ctx := context.Background()

	var redisClient *redis.Client
	if redisURL != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: redisURL})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			return err
		}
		logger.Info().Str("redis", redisURL).Msg("Connected to Redis")
		clientCfg.Redis = redisClient
	}

	apiClient, err := client.New(clientCfg)
	if err != nil {
		return err
	}
	defer apiClient.Close()

	feedCfg := pagination.DefaultConfig("posts")
	if err := feedCfg.FromEnv(""); err != nil {
		return err
	}

	ctrl, err := pagination.New(apiClient, feedCfg)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	srv := newServer(ctrl, apiClient, feedCfg, redisClient, logger)
	httpServer := &http.Server{
		Addr:              ":" + port,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctrl.Load()

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", httpServer.Addr).
			Str("base_url", clientCfg.BaseURL).
			Str("resource", feedCfg.Resource).
			Int("page_size", feedCfg.PageSize).
			Str("user_agent", clientCfg.UserAgent).
			Msg("Starting feed proxy")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-sigCtx.Done():
		logger.Info().Msg("Shutting down")
	}

	ctrl.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
