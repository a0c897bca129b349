package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/accountguard"
	"github.com/MrEthical07/accountguard/internal/logging"
)

const shutdownTimeout = 15 * time.Second

// serveFlags override the matching Server config fields when set.
type serveFlags struct {
	addr      string
	logFormat string
	logLevel  string
	redisAddr string
}

// apply copies every non-empty flag onto cfg.
func (f *serveFlags) apply(cfg *accountguard.Config) error {
	if f.addr != "" {
		cfg.Server.Addr = f.addr
	}
	if f.logFormat != "" {
		cfg.Server.LogFormat = f.logFormat
	}
	if f.logLevel != "" {
		cfg.Server.LogLevel = f.logLevel
	}
	if f.redisAddr != "" {
		cfg.Server.RedisAddr = f.redisAddr
	}

	if cfg.Server.LogFormat != "json" && cfg.Server.LogFormat != "text" {
		return fmt.Errorf("log-format must be 'json' or 'text', got %q", cfg.Server.LogFormat)
	}
	if cfg.Server.Addr == "" {
		return errors.New("addr is required")
	}
	return nil
}

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	flags := &serveFlags{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the HTTP server exposing /auth, /admin, /healthz and /metrics.
Runs until SIGINT or SIGTERM, then drains in-flight requests and queued
security events.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if err := flags.apply(&cfg); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}

	cmd.Flags().StringVar(&flags.addr, "addr", "", "listen address (default from config, :8080)")
	cmd.Flags().StringVar(&flags.logFormat, "log-format", "", "log format (json or text)")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&flags.redisAddr, "redis", "", "redis host:port, or \"memory\" for an in-process redis")

	return cmd
}

func newLogger(cfg accountguard.Config) *slog.Logger {
	return logging.Setup(logging.Options{
		Service: "accountguard",
		Version: version,
		Format:  cfg.Server.LogFormat,
		Level:   cfg.Server.LogLevel,
	}, nil)
}

func runServe(ctx context.Context, cfg accountguard.Config) error {
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	rt, err := newRuntime(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	handler, err := rt.handler()
	if err != nil {
		return err
	}

	listener, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Server.Addr, err)
	}
	return serve(ctx, listener, handler, logger)
}

// serve runs srv on listener until ctx is cancelled, then shuts it down
// gracefully.
func serve(ctx context.Context, listener net.Listener, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", listener.Addr().String())
		errCh <- srv.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	<-errCh
	return nil
}
