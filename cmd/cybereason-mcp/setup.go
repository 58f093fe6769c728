package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/cybereason-mcp/internal/a2a"
	"github.com/anatolykoptev/cybereason-mcp/internal/audit"
	"github.com/anatolykoptev/cybereason-mcp/internal/config"
	"github.com/anatolykoptev/cybereason-mcp/internal/cybereason"
	"github.com/anatolykoptev/cybereason-mcp/internal/metrics"
	"github.com/anatolykoptev/cybereason-mcp/internal/toolreg"
	"github.com/anatolykoptev/cybereason-mcp/internal/tools"
)

// buildAuditTrail creates the status-change audit trail. The log sink is
// always present; Telegram and Postgres sinks are added when configured and
// skipped with a warning when they fail to start.
func buildAuditTrail(ctx context.Context, cfg *config.Config) *audit.Trail {
	sinks := []audit.Sink{audit.NewLogSink(slog.Default())}

	if cfg.TelegramAudit() {
		tg, err := audit.NewTelegramSink(cfg.Audit.TelegramToken, cfg.Audit.TelegramChatID)
		if err != nil {
			slog.Warn("telegram audit sink disabled", slog.Any("error", err))
		} else {
			sinks = append(sinks, tg)
		}
	}

	if cfg.Audit.DatabaseURL != "" {
		pg, err := audit.NewPostgresSink(ctx, cfg.Audit.DatabaseURL)
		if err != nil {
			slog.Warn("postgres audit sink disabled", slog.Any("error", err))
		} else {
			sinks = append(sinks, pg)
		}
	}

	trail := audit.NewTrail(sinks...)
	slog.Info("audit trail ready", slog.Any("sinks", trail.Sinks()))
	return trail
}

// buildDispatcher wires the four tools for the configured API generation onto
// a dispatcher whose client is built and logged in on first use.
// An unknown API version is reported here, before any tool is exposed.
func buildDispatcher(cfg *config.Config, auditor cybereason.Auditor) (*toolreg.Dispatcher, error) {
	gen, err := cybereason.GenerationFor(cfg.Cybereason.APIVersion)
	if err != nil {
		return nil, err
	}
	registry := toolreg.NewRegistry()
	toolreg.RegisterAll(registry, gen)

	var opts []cybereason.Option
	if auditor != nil {
		opts = append(opts, cybereason.WithAuditor(auditor))
	}
	factory := toolreg.NewClientFactory(cfg.Client(), opts...)
	return toolreg.NewDispatcher(registry, factory, cfg.Server.MaxConcurrent), nil
}

// buildMCPServer creates the MCP server with every dispatcher tool registered.
func buildMCPServer(d *toolreg.Dispatcher) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "cybereason-mcp",
		Version: version,
	}, nil)
	tools.RegisterAll(server, d)
	return server
}

// buildMCPHTTPHandler creates a stateless Streamable HTTP handler for the MCP server.
func buildMCPHTTPHandler(server *mcp.Server) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server
	}, &mcp.StreamableHTTPOptions{Stateless: true})
}

// buildMux mounts MCP, health, metrics and, when enabled, the A2A routes.
func buildMux(cfg *config.Config, port string, server *mcp.Server, d *toolreg.Dispatcher) *http.ServeMux {
	mcpHandler := buildMCPHTTPHandler(server)

	mx := http.NewServeMux()
	mx.Handle("/mcp", mcpHandler)
	mx.Handle("/mcp/", mcpHandler)
	mx.HandleFunc("GET /health", healthHandler(cfg.Cybereason.APIVersion))
	mx.Handle("GET /metrics", metrics.Handler())

	if cfg.A2A.Enabled {
		baseURL := cfg.A2A.PublicURL
		if baseURL == "" {
			baseURL = "http://127.0.0.1:" + port
		}
		a2a.Register(mx, d, baseURL, version, cfg.A2A.Secret)
	}
	return mx
}

// healthHandler returns a simple JSON health endpoint handler.
// It never touches the console, so it stays green while credentials are wrong.
func healthHandler(apiVersion string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","service":"cybereason-mcp","version":"%s","api_version":"%s"}`, version, apiVersion)
	}
}

// startHTTPServer runs srv until ctx is done or the listener fails, then
// shuts it down. Returns the listener error, if any, after shutdown.
func startHTTPServer(ctx context.Context, srv *http.Server, label string) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info(label+" listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var listenErr error
	select {
	case err := <-errCh:
		listenErr = fmt.Errorf("%s: %w", label, err)
	case <-ctx.Done():
	}
	slog.Info("shutting down " + label)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx) //nolint:errcheck
	slog.Info(label + " stopped")
	return listenErr
}
