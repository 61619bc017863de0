// Command ectrol opens one Chrome tab and drives it through the ectrol
// engine: a YAML playbook, an MCP server on stdio, an HTTP control
// surface, or any combination.
//
// Usage:
//
//	ectrol -url https://example.com -playbook login.yaml
//	ectrol -config ectrol.yaml -mcp                # MCP tools on stdio
//	ectrol -url https://example.com -http :8088 -journal ectrol.db
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/ectrol"
	"github.com/hazyhaar/ectrol/internal/browser"
	"github.com/hazyhaar/ectrol/internal/config"
	"github.com/hazyhaar/ectrol/journal"
	"github.com/hazyhaar/ectrol/playbook"
	"github.com/hazyhaar/ectrol/resolver"
)

var version = "dev"

var errUsage = errors.New("usage: ectrol [-config file] [-url url] -playbook <file> | -mcp | -http <addr>")

type flags struct {
	config   string
	url      string
	playbook string
	mcp      bool
	http     string
	journal  string
}

func main() {
	var f flags
	flag.StringVar(&f.config, "config", "", "path to ectrol.yaml")
	flag.StringVar(&f.url, "url", "", "page to open (overrides page.url)")
	flag.StringVar(&f.playbook, "playbook", "", "run a YAML playbook against the page")
	flag.BoolVar(&f.mcp, "mcp", false, "serve MCP tools on stdio")
	flag.StringVar(&f.http, "http", "", "serve the HTTP control surface on this address")
	flag.StringVar(&f.journal, "journal", "", "SQLite journal path (overrides journal.path)")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	// stdout belongs to MCP and playbook reports.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, f); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		logger.Error("ectrol: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, f flags) error {
	cfg, err := loadConfig(f)
	if err != nil {
		return err
	}
	if f.playbook == "" && !cfg.Server.MCP && cfg.Server.HTTP == "" {
		return errUsage
	}

	var pb *playbook.Playbook
	if f.playbook != "" {
		if pb, err = playbook.Load(f.playbook); err != nil {
			return err
		}
	}

	opts, err := engineOptions(cfg, logger)
	if err != nil {
		return err
	}

	if cfg.Journal.Path != "" {
		store, err := journal.Open(cfg.Journal.Path, journal.WithLogger(logger))
		if err != nil {
			return fmt.Errorf("journal: %w", err)
		}
		defer store.Close()
		if n, err := store.Prune(ctx, cfg.Journal.Keep); err != nil {
			logger.Warn("ectrol: journal prune failed", "error", err)
		} else if n > 0 {
			logger.Info("ectrol: journal pruned", "deleted", n)
		}
		opts = append(opts, ectrol.WithJournal(store))
	}

	stealth, err := browser.ParseStealth(cfg.Browser.Stealth)
	if err != nil {
		return err
	}
	mgr := browser.NewManager(browser.Config{
		RemoteURL:        cfg.Browser.Remote,
		ResourceBlocking: cfg.Browser.ResourceBlocking,
		Stealth:          stealth,
		XvfbDisplay:      cfg.Browser.XvfbDisplay,
		Logger:           logger,
	})
	defer mgr.Close()
	if _, err := mgr.Start(ctx); err != nil {
		return err
	}
	tab, err := browser.OpenTab(ctx, mgr, cfg.Page.URL, cfg.Page.NavigateTimeout)
	if err != nil {
		return err
	}
	defer tab.Close()

	e := ectrol.New(tab, opts...)

	if pb != nil {
		rep, runErr := playbook.NewRunner(e, playbook.WithLogger(logger)).Run(ctx, pb)
		if !cfg.Server.MCP {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			enc.Encode(rep)
		}
		if runErr != nil {
			return runErr
		}
	}

	if cfg.Server.HTTP != "" {
		srv := &http.Server{
			Addr:              cfg.Server.HTTP,
			Handler:           e.Routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("ectrol: http listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("ectrol: http server", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("ectrol: http shutdown", "error", err)
			}
		}()
	}

	if cfg.Server.MCP {
		srv := mcp.NewServer(&mcp.Implementation{Name: "ectrol", Version: version}, nil)
		e.RegisterMCP(srv)
		logger.Info("ectrol: mcp on stdio", "tools", len(ectrol.Ops()))
		if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
			return fmt.Errorf("mcp: %w", err)
		}
		return nil
	}

	if cfg.Server.HTTP != "" {
		<-ctx.Done()
	}
	return nil
}

func loadConfig(f flags) (*config.Config, error) {
	cfg := config.Default()
	if f.config != "" {
		var err error
		if cfg, err = config.LoadFile(f.config); err != nil {
			return nil, err
		}
	}
	if f.url != "" {
		cfg.Page.URL = f.url
	}
	if f.journal != "" {
		cfg.Journal.Path = f.journal
	}
	if f.http != "" {
		cfg.Server.HTTP = f.http
	}
	if f.mcp {
		cfg.Server.MCP = true
	}
	return cfg, nil
}

func engineOptions(cfg *config.Config, logger *slog.Logger) ([]ectrol.Option, error) {
	strategy, err := resolver.ParseStrategy(cfg.Timing.WaitStrategy)
	if err != nil {
		return nil, err
	}
	opts := []ectrol.Option{
		ectrol.WithLogger(logger),
		ectrol.WithTiming(ectrol.Timing{
			ClickDelay:   cfg.Timing.ClickDelay,
			PressDelay:   cfg.Timing.PressDelay,
			PollInterval: cfg.Timing.PollInterval,
			Strategy:     strategy,
		}),
	}
	if cfg.Timing.CacheKey != "" {
		opts = append(opts, ectrol.WithCacheKey(cfg.Timing.CacheKey))
	}
	return opts, nil
}
