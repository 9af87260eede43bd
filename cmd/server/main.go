// server is the MCP memory gateway binary. It speaks JSON-RPC 2.0 over
// stdio or over HTTP with Server-Sent Events streaming, depending on -mode.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"mcp-memory-gateway/internal/config"
	"mcp-memory-gateway/internal/logging"
	"mcp-memory-gateway/internal/memory"
	"mcp-memory-gateway/internal/notify"
	"mcp-memory-gateway/internal/ratelimit"
	"mcp-memory-gateway/internal/router"
	"mcp-memory-gateway/internal/session"
	"mcp-memory-gateway/internal/transport"
)

func main() {
	var (
		mode = flag.String("mode", "stdio", "transport mode: stdio or sse")
		addr = flag.String("addr", "", "HTTP listen address, overrides config (mode=sse)")
	)
	flag.Parse()

	if err := run(*mode, *addr); err != nil {
		fmt.Fprintf(os.Stderr, "gateway: %v\n", err)
		os.Exit(1)
	}
}

func run(mode, addr string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.New(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)

	store, err := memory.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		return fmt.Errorf("opening memory store: %w", err)
	}
	defer func() { _ = store.Close() }()

	registry := session.NewRegistry()
	pump := notify.NewPump(registry, logger)
	service := memory.NewService(store, pump, logger)
	dispatcher := router.New(registry, memory.NewExecutor(service), service, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch mode {
	case "stdio":
		logger.Info("starting gateway", "mode", "stdio")
		srv := transport.NewStdioServer(os.Stdin, os.Stdout, registry, dispatcher, logger)
		if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil

	case "sse":
		return runSSE(ctx, cfg, addr, registry, dispatcher, pump, logger)

	default:
		return fmt.Errorf("unknown mode %q (want stdio or sse)", mode)
	}
}

func runSSE(ctx context.Context, cfg *config.Config, addr string, registry *session.Registry, dispatcher *router.Router, pump *notify.Pump, logger logging.Logger) error {
	hub := transport.NewWSHub(logger)
	pump.AttachBroadcaster(hub)

	opts := transport.SSEOptions{
		HeartbeatInterval: cfg.Session.HeartbeatInterval.Std(),
		AllowedOrigins:    cfg.Server.AllowedOrigins,
	}

	if cfg.RateLimit.Enabled {
		limiter, err := buildLimiter(ctx, cfg)
		if err != nil {
			return err
		}
		opts.Middleware = append(opts.Middleware, ratelimit.Middleware(limiter, logger))
	}

	sse := transport.NewSSEServer(registry, dispatcher, pump, hub, logger, opts)

	go transport.RunJanitor(ctx, registry,
		cfg.Session.MaxAge.Std(), cfg.Session.JanitorInterval.Std(), logger)

	if addr == "" {
		addr = cfg.Addr()
	}
	server := &http.Server{
		Addr:        addr,
		Handler:     sse.Routes(),
		ReadTimeout: cfg.Server.ReadTimeout.Std(),
		// SSE streams are long-lived; write timeouts stay disabled.
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting gateway", "mode", "sse", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func buildLimiter(ctx context.Context, cfg *config.Config) (ratelimit.Limiter, error) {
	limit := ratelimit.Config{
		Requests: cfg.RateLimit.Requests,
		Window:   cfg.RateLimit.Window.Std(),
	}

	if cfg.RateLimit.RedisAddr == "" {
		return ratelimit.NewMemoryLimiter(limit), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr: cfg.RateLimit.RedisAddr,
		DB:   cfg.RateLimit.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.RateLimit.RedisAddr, err)
	}
	return ratelimit.NewRedisLimiter(client, limit), nil
}
