package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/cybereason-mcp/internal/config"
	"github.com/anatolykoptev/cybereason-mcp/internal/metrics"
)

// runServe starts the MCP server in HTTP or stdio mode. It returns after
// shutdown, with the dispatcher and audit sinks already closed.
func runServe(cfg *config.Config) error {
	stdio := hasFlag("--stdio")

	// stdout carries the protocol in stdio mode.
	logWriter := os.Stdout
	if stdio {
		logWriter = os.Stderr
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(logWriter, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	sigCtx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	metrics.InitMetrics()
	trail := buildAuditTrail(sigCtx, cfg)
	defer trail.Close()

	d, err := buildDispatcher(cfg, trail)
	if err != nil {
		return fmt.Errorf("dispatcher setup: %w", err)
	}
	defer d.Close() //nolint:errcheck

	server := buildMCPServer(d)
	slog.Info("cybereason MCP server",
		slog.String("mode", map[bool]string{true: "stdio", false: "http"}[stdio]),
		slog.String("api_version", cfg.Cybereason.APIVersion),
		slog.Int("tools", len(d.Registry().List())))

	if stdio {
		if err := server.Run(sigCtx, &mcp.StdioTransport{}); err != nil && sigCtx.Err() == nil {
			return fmt.Errorf("stdio server: %w", err)
		}
		return nil
	}

	port := cfg.Server.Port
	if p := getFlagValue("--port"); p != "" {
		port = p
	}

	return startHTTPServer(sigCtx, &http.Server{
		Addr:         ":" + port,
		Handler:      buildMux(cfg, port, server, d),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
	}, "MCP server")
}
