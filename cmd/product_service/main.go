// Package main runs the products REST service.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "net/http/pprof"

	"github.com/abgdnv/productapi/internal/app"
	"github.com/abgdnv/productapi/internal/config"
	"github.com/abgdnv/productapi/internal/store/migrations"
	"github.com/abgdnv/productapi/pkg/bootstrap"
	"github.com/abgdnv/productapi/pkg/config/configloader"
	"github.com/abgdnv/productapi/pkg/messaging"
	natsclient "github.com/abgdnv/productapi/pkg/nats"
	"github.com/abgdnv/productapi/pkg/telemetry"
	"golang.org/x/sync/errgroup"
)

const (
	serviceName         = "product"
	otelServiceName     = "product-service"
	healthCheckInterval = 10 * time.Second
)

func main() {

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Printf("application run failed: %v", err)
		os.Exit(1)
	}
	log.Println("application stopped gracefully")
}

// run initializes the application, sets up the database connection, and starts the HTTP, gRPC and pprof servers.
func run(ctx context.Context) error {
	cfg, cfgErr := configloader.Load[*config.Config](serviceName)
	if cfgErr != nil {
		return fmt.Errorf("failed to load configuration: %w", cfgErr)
	}
	log.Printf("Configuration loaded: %v", cfg)

	logger := bootstrap.NewLogger(cfg.Log.Level)
	slog.SetDefault(logger)

	mp, metricsHandler, err := telemetry.NewMeterProvider(otelServiceName)
	if err != nil {
		return fmt.Errorf("failed to create meter provider: %w", err)
	}
	defer shutdownProvider(logger, "meter", mp.Shutdown)

	if cfg.Telemetry.Enabled {
		tp, err := telemetry.NewTracerProvider(ctx, otelServiceName, cfg.Telemetry)
		if err != nil {
			return fmt.Errorf("failed to create tracer provider: %w", err)
		}
		defer shutdownProvider(logger, "tracer", tp.Shutdown)
	}

	dbPool, err := bootstrap.NewDbPool(ctx, cfg.Database.URL, cfg.Database.Timeout)
	if err != nil {
		return fmt.Errorf("failed to create database connection pool: %w", err)
	}
	defer dbPool.Close()
	logger.Info("Successfully connected to the database!")

	if cfg.Database.Migrate {
		if err := bootstrap.RunMigrations(migrations.FS, ".", cfg.Database.URL); err != nil {
			return err
		}
		logger.Info("Database migrations applied")
	}

	publisher, closePublisher, err := setupPublisher(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closePublisher()

	deps := app.SetupDependencies(dbPool, publisher, logger)
	httpServer := app.SetupHttpServer(deps, cfg, metricsHandler)
	grpcServer := app.SetupGrpcServer(deps, cfg.GRPC.ReflectionEnabled)
	pprofServer := &http.Server{
		Addr:              cfg.PProf.Addr,
		ReadHeaderTimeout: cfg.HTTPServer.Timeout.ReadHeader,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// Start the HTTP server
	g.Go(func() error {
		logger.Info("HTTP server listening", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})
	// gracefully shutdown HTTP server on context cancellation
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("Shutting down HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.Timeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	// Keep the gRPC health status in line with the database
	g.Go(func() error {
		deps.Health.Run(gCtx, healthCheckInterval)
		return nil
	})

	// Start the gRPC server
	g.Go(func() error {
		grpcAddr := ":" + cfg.GRPC.Port
		lis, err := net.Listen("tcp", grpcAddr)
		if err != nil {
			return fmt.Errorf("failed to listen on gRPC port: %w", err)
		}
		logger.Info("gRPC server listening", slog.String("addr", grpcAddr))
		return grpcServer.Serve(lis)
	})
	// gracefully shutdown gRPC server on context cancellation
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("Shutting down gRPC server...")
		deps.Health.Shutdown()
		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
			logger.Info("gRPC server stopped gracefully.")
			return nil
		case <-time.After(cfg.Shutdown.Timeout):
			logger.Warn("gRPC server graceful stop timed out. Forcing stop.")
			grpcServer.Stop()
			return fmt.Errorf("grpc server graceful stop timed out")
		}
	})

	// Start the pprof server if enabled
	if cfg.PProf.Enabled {
		g.Go(func() error {
			logger.Info("Pprof server listening", slog.String("addr", pprofServer.Addr))
			if err := pprofServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("pprof server failed: %w", err)
			}
			return nil
		})
		// gracefully shutdown pprof server on context cancellation
		g.Go(func() error {
			<-gCtx.Done()
			logger.Info("Shutting down pprof server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.Timeout)
			defer cancel()
			return pprofServer.Shutdown(shutdownCtx)
		})
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("errgroup encountered an error: %w", err)
	}
	return nil
}

// setupPublisher connects to NATS when enabled. The returned func releases the connection.
func setupPublisher(ctx context.Context, cfg *config.Config, logger *slog.Logger) (messaging.Publisher, func(), error) {
	if !cfg.NATS.Enabled {
		logger.Info("NATS disabled, product events are dropped")
		return messaging.NoopPublisher{}, func() {}, nil
	}

	nc, err := natsclient.NewClient(cfg.NATS.Url, cfg.NATS.Timeout)
	if err != nil {
		return nil, nil, err
	}
	js, err := natsclient.NewJetStreamContext(nc)
	if err != nil {
		return nil, nil, err
	}
	if err := natsclient.EnsureStream(ctx, js, cfg.NATS.Stream, messaging.ProductsSubjects); err != nil {
		nc.Close()
		return nil, nil, err
	}
	logger.Info("Connected to NATS", "url", cfg.NATS.Url, "stream", cfg.NATS.Stream)

	closeFn := func() {
		if err := nc.Drain(); err != nil {
			logger.Warn("Failed to drain NATS connection", "error", err)
		}
	}
	return natsclient.NewNatsPublisher(js, cfg.NATS.CircuitBreaker, logger), closeFn, nil
}

func shutdownProvider(logger *slog.Logger, name string, shutdown func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		logger.Warn("Failed to shut down provider", "provider", name, "error", err)
	}
}
