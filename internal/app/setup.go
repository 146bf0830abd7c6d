// Package app contains the application setup for the product service.
package app

import (
	"log/slog"
	"net/http"

	"github.com/abgdnv/productapi/internal/config"
	"github.com/abgdnv/productapi/internal/service"
	"github.com/abgdnv/productapi/internal/store"
	grpcImpl "github.com/abgdnv/productapi/internal/transport/grpc"
	"github.com/abgdnv/productapi/internal/transport/rest"
	pkgconfig "github.com/abgdnv/productapi/pkg/config"
	"github.com/abgdnv/productapi/pkg/messaging"
	"github.com/abgdnv/productapi/pkg/server"
	"github.com/abgdnv/productapi/pkg/web"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"google.golang.org/grpc"
)

type Dependencies struct {
	ProductService service.ProductService
	Health         *grpcImpl.HealthServer
	Logger         *slog.Logger
}

func SetupDependencies(dbPool *pgxpool.Pool, publisher messaging.Publisher, logger *slog.Logger) *Dependencies {
	pService := service.NewService(store.NewPgStore(dbPool), publisher, logger)

	return &Dependencies{
		ProductService: pService,
		Health:         grpcImpl.NewHealthServer(dbPool, logger),
		Logger:         logger,
	}
}

// SetupHttpHandler builds the routes and middleware of the product service.
// metrics may be nil. Used by E2E tests to get the handler without a listener.
func SetupHttpHandler(deps *Dependencies, metrics http.Handler, rateLimit pkgconfig.RateLimitConfig) http.Handler {
	var extra []func(http.Handler) http.Handler
	if rateLimit.RPS > 0 {
		extra = append(extra, web.RateLimiter(rateLimit.RPS, rateLimit.Burst, deps.Logger))
	}
	mux := server.NewChiRouter(deps.Logger, extra...)
	wireRoutes(mux, deps)
	if metrics != nil {
		mux.Method(http.MethodGet, "/metrics", metrics)
	}
	return otelhttp.NewHandler(mux, "product-service")
}

// wireRoutes sets up the HTTP routes for the product service.
func wireRoutes(mux *chi.Mux, deps *Dependencies) {
	productHandler := rest.NewHandler(deps.ProductService, deps.Logger)
	productHandler.RegisterRoutes(mux)
}

// SetupHttpServer creates and configures an HTTP server for the product service.
func SetupHttpServer(deps *Dependencies, cfg *config.Config, metrics http.Handler) *http.Server {
	handler := SetupHttpHandler(deps, metrics, cfg.RateLimit)

	httpCfg := server.HTTPConfig{
		Port:           cfg.HTTPServer.Port,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		ReadTimeout:    cfg.HTTPServer.Timeout.Read,
		WriteTimeout:   cfg.HTTPServer.Timeout.Write,
		IdleTimeout:    cfg.HTTPServer.Timeout.Idle,
		ReadHeader:     cfg.HTTPServer.Timeout.ReadHeader,
	}

	return server.NewHTTPServer(httpCfg, handler)
}

// SetupGrpcServer initializes the gRPC server carrying the health service.
func SetupGrpcServer(deps *Dependencies, reflectionEnabled bool) *grpc.Server {
	return server.NewGRPCServer(deps.Logger, reflectionEnabled, deps.Health.Register)
}
