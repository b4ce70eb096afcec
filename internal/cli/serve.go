package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lazypower/degrade/internal/counter"
	"github.com/lazypower/degrade/internal/server"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	be, location, err := openBackend(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer be.Close()

	ctrl := counter.New(be, counter.NewType(), counter.WithLogger(log))
	srv := server.New(be, ctrl, VersionString(),
		server.WithLogger(log),
		server.WithRateLimit(cfg.Server.RateLimit, cfg.Server.Burst),
	)
	addr := cfg.ListenAddr()

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		log.Info("degrade serving", "addr", addr, "backend", cfg.Storage.Backend, "store", location)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-done:
	case err := <-errCh:
		return err
	}
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return httpServer.Shutdown(ctx)
}
