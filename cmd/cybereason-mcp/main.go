package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/anatolykoptev/cybereason-mcp/internal/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		if err := runServe(loadConfig()); err != nil {
			slog.Error("serve failed", slog.Any("error", err))
			os.Exit(1)
		}
	case "check":
		os.Exit(runCheck(loadConfig()))
	case "version", "--version":
		fmt.Println(version)
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `cybereason-mcp - Cybereason EDR bridge for MCP clients

Usage:
  cybereason-mcp serve [--port PORT] [--stdio] [--config FILE]   MCP server (HTTP or stdio)
  cybereason-mcp check [--json] [--status S1,S2] [--limit N]     One-shot alert listing
  cybereason-mcp version
`)
}

func loadConfig() *config.Config {
	cfg, err := config.Load(getFlagValue("--config"))
	if err != nil {
		slog.Error("config load failed", slog.Any("error", err))
		os.Exit(1)
	}
	return cfg
}
