// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Ditch Labs

package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ditchlabs/ditchterm/internal/config"
	"github.com/ditchlabs/ditchterm/internal/logstore"
	"github.com/ditchlabs/ditchterm/internal/monitor"
	"github.com/spf13/cobra"
)

var (
	serveHost    string
	servePort    int
	serveStorage string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the information log store",
	Long: `Serve the log store that terminals post their lines to.

Endpoints:
  POST /save-information  {"message": "...", "type": "terminal"|"information"}
                          201 "Information saved in <type>" on success
                          500 "Error saving information: <reason>" otherwise
  GET  /information       ?type=terminal|information&limit=N, newest first
  GET  /metrics           Prometheus metrics
  GET  /health            "OK"

Lines are kept in Redis lists (server.storage: redis) trimmed to
redis.max_entries, or in memory (server.storage: memory).

Examples:
  ditchterm serve --storage memory
  ditchterm serve -c configs/config.yaml --http-port 3000`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Listen address (default from config)")
	serveCmd.Flags().IntVar(&servePort, "http-port", 0, "Listen port (default from config)")
	serveCmd.Flags().StringVar(&serveStorage, "storage", "", "Storage backend: redis or memory")
}

func openStore(ctx context.Context) (logstore.Store, error) {
	if cfg.Server.Storage == "memory" {
		return logstore.NewMemoryStore(int(cfg.Redis.MaxEntries)), nil
	}
	return logstore.NewRedisStore(ctx, cfg.Redis, componentLog("logstore"))
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveHost != "" {
		cfg.Server.Host = serveHost
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
	}
	if serveStorage != "" {
		cfg.Server.Storage = serveStorage
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := componentLog("serve")

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	mon := monitor.NewMonitor(componentLog("monitor"))
	mon.StartRuntimeMonitor(ctx, 30*time.Second)

	mux := http.NewServeMux()
	logstore.NewServer(store, mon, componentLog("logstore")).Routes(mux)
	mux.Handle("/metrics", mon.Handler())
	mux.Handle("/health", mon.Handler())

	srv := &http.Server{
		Addr:              serveAddr(cfg.Server),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("storage", cfg.Server.Storage).Infof("log store listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func serveAddr(sc config.ServerConfig) string {
	return fmt.Sprintf("%s:%d", sc.Host, sc.Port)
}
