package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"cliproxy/pkg/backend"
	"cliproxy/pkg/backend/codex"
	"cliproxy/pkg/backend/opencode"
	"cliproxy/pkg/config"
	"cliproxy/pkg/ledger"
	"cliproxy/pkg/metrics"
	"cliproxy/pkg/proxy"
	"cliproxy/pkg/router"
)

var (
	serveListen      string
	serveLogLevel    string
	serveLogRequests bool
	serveTraceDir    string
	serveLedgerPath  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the proxy server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		if serveListen != "" {
			cfg.Listen = serveListen
		}
		if serveLogLevel != "" {
			cfg.LogLevel = serveLogLevel
		}
		if cmd.Flags().Changed("log-requests") {
			cfg.LogRequests = serveLogRequests
		}
		if serveTraceDir != "" {
			cfg.TraceDir = serveTraceDir
		}
		if serveLedgerPath != "" {
			cfg.Ledger.Path = serveLedgerPath
		}

		logger := proxy.NewLogger(proxy.ParseLogLevel(cfg.LogLevel))
		selector := buildSelector(cfg)

		available := 0
		for name, h := range proxy.CheckBackends(selector) {
			if h.Available {
				available++
				logger.Info("backend available", "backend", name, "path", h.Path, "model", h.Model)
			} else {
				logger.Warn("backend not found", "backend", name, "path", h.Path)
			}
		}
		if available == 0 {
			return fmt.Errorf("no CLI backends found on PATH; install codex or opencode, or set CLIPROXY_CODEX_PATH / CLIPROXY_OPENCODE_PATH")
		}

		var collector *metrics.Collector
		if cfg.Metrics.Enabled {
			collector = metrics.NewCollector()
		}

		var store *ledger.Store
		if cfg.Ledger.Path != "" {
			var err error
			store, err = ledger.Open(cfg.Ledger.Path)
			if err != nil {
				return fmt.Errorf("open ledger: %w", err)
			}
			defer store.Close()
			logger.Info("request ledger enabled", "path", cfg.Ledger.Path)
		}

		srv := proxy.NewServer(proxy.Config{
			Version:     version,
			APIKeys:     cfg.APIKeys,
			LogRequests: cfg.LogRequests,
			RateLimit:   cfg.RateLimit,
		}, selector, logger, collector, store)

		httpServer := &http.Server{
			Addr:              cfg.Listen,
			Handler:           srv.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      0, // streaming responses have no deadline
			IdleTimeout:       120 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info("server starting", "listen", cfg.Listen)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- err
			}
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return err
		case sig := <-quit:
			logger.Info("shutting down", "signal", sig.String())
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		logger.Info("server stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "Listen address (default 0.0.0.0:8000)")
	serveCmd.Flags().StringVar(&serveLogLevel, "log-level", "", "Log level: debug, info, warn, error")
	serveCmd.Flags().BoolVar(&serveLogRequests, "log-requests", false, "Log every HTTP request")
	serveCmd.Flags().StringVar(&serveTraceDir, "trace-dir", "", "Write per-run event traces to this directory")
	serveCmd.Flags().StringVar(&serveLedgerPath, "ledger", "", "SQLite file for the request ledger")
}

// buildSelector registers the configured CLI backends under the default
// routing table, wrapped with event tracing when a trace directory is set.
func buildSelector(cfg config.Config) *router.Selector {
	codexBackend := backend.Backend(codex.New(codex.Config{
		Path:     cfg.Codex.Path,
		Model:    cfg.Codex.Model,
		Sandbox:  cfg.Codex.Sandbox,
		FullAuto: cfg.Codex.FullAuto,
	}))
	opencodeBackend := backend.Backend(opencode.New(opencode.Config{
		Path:  cfg.OpenCode.Path,
		Model: cfg.OpenCode.Model,
	}))

	if cfg.TraceDir != "" {
		traceCfg := backend.TraceConfig{Dir: cfg.TraceDir, Redact: true}
		codexBackend = backend.WithTrace(codexBackend, traceCfg)
		opencodeBackend = backend.WithTrace(opencodeBackend, traceCfg)
	}

	sel := router.New(router.DefaultConfig())
	sel.Register("codex", codexBackend)
	sel.Register("opencode", opencodeBackend)
	return sel
}
