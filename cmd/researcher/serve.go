package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/parth0cb/agentic-internet-researcher/internal/config"
	"github.com/parth0cb/agentic-internet-researcher/internal/handler"
	"github.com/parth0cb/agentic-internet-researcher/internal/storage"
	"github.com/parth0cb/agentic-internet-researcher/pkg/logger"
)

var port int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the research HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		defer logger.Sync()

		// Override config with command line flags
		if port > 0 {
			cfg.Server.Port = port
		}

		logger.Info("starting server",
			zap.String("version", Version),
			zap.String("host", cfg.Server.Host),
			zap.Int("port", cfg.Server.Port),
		)

		return startServer(cfg)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides config)")
}

func startServer(cfg *config.Config) error {
	a := newApp(cfg)
	defer a.Close()

	var store *storage.RunStore
	if cfg.Storage.Path != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0755); err != nil {
			return fmt.Errorf("failed to create storage directory: %w", err)
		}
		var err error
		store, err = storage.NewRunStore(cfg.Storage.Path)
		if err != nil {
			return fmt.Errorf("failed to open run log: %w", err)
		}
		defer store.Close()
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler.NewResearchHandler(cfg, a.simple, a.agentic, a.search, store),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	fmt.Printf(`
  researcher %s
  Server:  http://%s:%d
  Health:  http://%s:%d/health
  Search:  POST /search/simple, POST /search/agentic

`, Version, cfg.Server.Host, cfg.Server.Port, cfg.Server.Host, cfg.Server.Port)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info("shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
	return nil
}
