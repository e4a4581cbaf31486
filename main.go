package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	configpkg "neonrange/server/internal/config"
	"neonrange/server/internal/logging"
	"neonrange/server/internal/replay"
	"neonrange/server/internal/store"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 15 * time.Second
)

func main() {
	cfg, err := configpkg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("range server stopped", logging.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *configpkg.Config, logger *logging.Logger) error {
	var opts []ServerOption

	//1.- Optional collaborators come up before the listeners so startup faults are fatal.
	if path := cfg.Store.Path; path != "" {
		runs, err := store.Open(ctx, path)
		if err != nil {
			return fmt.Errorf("open run store: %w", err)
		}
		defer func() {
			if err := runs.Close(); err != nil {
				logger.Warn("close run store", logging.Error(err))
			}
		}()
		opts = append(opts, WithRunStore(runs))
		logger.Info("run history enabled", logging.String("path", path))
	}
	if dir := cfg.Replay.Directory; dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create replay directory: %w", err)
		}
		cleaner := replay.NewCleaner(dir, replay.RetentionPolicy{
			MaxSessions: cfg.Replay.MaxMatches,
			MaxAge:      cfg.Replay.MaxAge,
		}, logger.With(logging.String("component", "replay")))
		go cleaner.Run(ctx, cfg.Replay.CleanInterval)
		opts = append(opts, WithReplayCleaner(cleaner))
		logger.Info("replay recording enabled", logging.String("directory", dir))
	}

	server, err := NewServer(cfg, logger, opts...)
	if err != nil {
		return err
	}

	//2.- Bind the listeners synchronously so the logged URLs reflect real ports.
	listener, err := net.Listen("tcp", cfg.Address)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Address, err)
	}
	httpServer := &http.Server{
		Handler:           logging.HTTPTraceMiddleware(logger)(server.Routes()),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	errs := make(chan error, 2)
	go func() {
		var err error
		if cfg.TLSEnabled() {
			err = httpServer.ServeTLS(listener, cfg.TLSCertPath, cfg.TLSKeyPath)
		} else {
			err = httpServer.Serve(listener)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- fmt.Errorf("http server: %w", err)
		}
	}()
	logger.Info("range server listening",
		logging.String("url", listenerURL(listener.Addr().String(), cfg.TLSEnabled())),
		logging.Bool("tls", cfg.TLSEnabled()),
		logging.Strings("allowed_origins", cfg.AllowedOrigins),
	)

	var spectators *grpc.Server
	if cfg.GRPCAddress != "" {
		spectators, err = newSpectatorServer(cfg, server.Hub(), logger)
		if err != nil {
			server.Close()
			_ = httpServer.Close()
			return fmt.Errorf("configure spectator server: %w", err)
		}
		grpcListener, err := net.Listen("tcp", cfg.GRPCAddress)
		if err != nil {
			server.Close()
			_ = httpServer.Close()
			return fmt.Errorf("listen %s: %w", cfg.GRPCAddress, err)
		}
		go func() {
			if err := spectators.Serve(grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				errs <- fmt.Errorf("grpc server: %w", err)
			}
		}()
		logger.Info("spectator stream listening", logging.String("address", normaliseHostPort(grpcListener.Addr().String())))
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case runErr = <-errs:
	}

	//3.- Players first so their results persist, then the listeners.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	server.Close()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", logging.Error(err))
	}
	if spectators != nil {
		spectators.GracefulStop()
	}
	logger.Info("range server stopped")
	return runErr
}
