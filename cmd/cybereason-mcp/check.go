package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/anatolykoptev/cybereason-mcp/internal/config"
	"github.com/anatolykoptev/cybereason-mcp/internal/cybereason"
	"github.com/anatolykoptev/cybereason-mcp/internal/toolreg"
)

// checkOptions are the parsed flags of the check command.
type checkOptions struct {
	asJSON   bool
	statuses []string
	limit    int
}

func parseCheckOptions(args []string) (checkOptions, error) {
	opts := checkOptions{
		asJSON:   hasFlagIn(args, "--json"),
		statuses: splitList(flagValueIn(args, "--status")),
		limit:    25,
	}
	if s := flagValueIn(args, "--limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return opts, &cybereason.ValidationError{Field: "limit", Value: s, Reason: "must be an integer"}
		}
		opts.limit = n
	}
	return opts, nil
}

// runCheck logs in once, lists malops and returns the process exit code:
// 0 when the queue is empty, 1 when malops were returned or anything failed.
func runCheck(cfg *config.Config) int {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	opts, err := parseCheckOptions(cmdArgs())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	ctx := context.Background()
	client, err := toolreg.NewClientFactory(cfg.Client())(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if c, ok := client.(io.Closer); ok {
		defer c.Close()
	}

	return check(ctx, client, opts, os.Stdout)
}

func check(ctx context.Context, client cybereason.AlertManager, opts checkOptions, w io.Writer) int {
	page, err := client.GetAlerts(ctx, opts.statuses, opts.limit)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if opts.asJSON {
		data, _ := json.MarshalIndent(page, "", "  ")
		fmt.Fprintln(w, string(data))
	} else {
		fmt.Fprint(w, cybereason.FormatAlerts(client.Generation(), page))
	}

	if page.Returned > 0 {
		return 1
	}
	return 0
}
