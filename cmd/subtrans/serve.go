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

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Belphemur/SubTranslate/internal/broadcast"
	"github.com/Belphemur/SubTranslate/internal/config"
	grpcserver "github.com/Belphemur/SubTranslate/internal/grpc"
	"github.com/Belphemur/SubTranslate/internal/janitor"
	"github.com/Belphemur/SubTranslate/internal/metrics"
	"github.com/Belphemur/SubTranslate/internal/server"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and, when enabled, the gRPC and metrics servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(runCtx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger := config.GetLogger()

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.Sentry.Environment,
		}); err != nil {
			logger.Warn().Err(err).Msg("Failed to initialize Sentry")
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	a, err := newApp(cfg, "", "")
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close translation cache")
		}
	}()
	config.AttachLogSink(broadcast.NewLogSink(a.events, zerolog.InfoLevel))

	logger.Info().
		Str("proxy_connection_string", cfg.ProxyConnectionString).
		Str("cache_provider", cfg.Cache.Provider).
		Int("server_port", cfg.Server.Port).
		Str("server_address", cfg.Server.Address).
		Bool("grpc_enabled", cfg.GRPC.Enabled).
		Msg("Application started with configuration")

	sweeper, err := janitor.New(cfg.Janitor.Schedule,
		config.ParseDuration("janitor.retention", cfg.Janitor.Retention, 24*time.Hour),
		cfg.Storage.UploadDir, cfg.Storage.OutputDir)
	if err != nil {
		return fmt.Errorf("configure janitor: %w", err)
	}
	sweeper.Start()
	defer func() { <-sweeper.Stop().Done() }()

	var grpcListener net.Listener
	if cfg.GRPC.Enabled {
		address := fmt.Sprintf("%s:%d", cfg.Server.Address, cfg.GRPC.Port)
		grpcListener, err = net.Listen("tcp", address)
		if err != nil {
			return fmt.Errorf("listen grpc on %s: %w", address, err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	api := &http.Server{
		Addr: fmt.Sprintf("%s:%d", cfg.Server.Address, cfg.Server.Port),
		Handler: server.New(server.Options{
			Uploads:  a.uploads,
			Jobs:     a.jobs,
			Media:    a.media,
			Settings: a.settings,
			Cache:    a.cache,
			Events:   a.events,
			Models:   modelCatalog(cfg),
		}).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// Event streams end with the server.
		BaseContext: func(net.Listener) context.Context { return gctx },
	}
	g.Go(func() error {
		logger.Info().Str("address", api.Addr).Msg("Starting HTTP server")
		if err := api.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return shutdown(api)
	})

	if cfg.Metrics.Enabled {
		metricsServer := metrics.NewHTTPServer(cfg.Server.Address, cfg.Metrics.Port)
		g.Go(func() error {
			logger.Info().Str("address", metricsServer.Addr).Msg("Starting Prometheus metrics HTTP server")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serve metrics: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			return shutdown(metricsServer)
		})
	}

	if grpcListener != nil {
		grpcServer := grpcserver.NewGRPCServer(grpcserver.Dependencies{
			Jobs:     a.jobs,
			Settings: a.settings,
			Events:   a.events,
		})
		g.Go(func() error {
			logger.Info().Str("address", grpcListener.Addr().String()).Msg("Starting gRPC server")
			if err := grpcServer.Serve(grpcListener); err != nil {
				return fmt.Errorf("serve grpc: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			stopped := make(chan struct{})
			go func() {
				grpcServer.GracefulStop()
				close(stopped)
			}()
			select {
			case <-stopped:
			case <-time.After(shutdownTimeout):
				// Event streams never finish on their own.
				grpcServer.Stop()
			}
			return nil
		})
	}

	err = g.Wait()
	if ctx.Err() != nil {
		logger.Info().Msg("Server stopped gracefully")
	}
	return err
}

func shutdown(srv *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(ctx)
}
