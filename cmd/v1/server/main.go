package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/openconquer/generals-server/internal/v1/config"
	"github.com/openconquer/generals-server/internal/v1/health"
	"github.com/openconquer/generals-server/internal/v1/httpapi"
	"github.com/openconquer/generals-server/internal/v1/hub"
	"github.com/openconquer/generals-server/internal/v1/logging"
	"github.com/openconquer/generals-server/internal/v1/middleware"
	"github.com/openconquer/generals-server/internal/v1/ratelimit"
	"github.com/openconquer/generals-server/internal/v1/store"
	"github.com/openconquer/generals-server/internal/v1/tracing"
	"github.com/openconquer/generals-server/internal/v1/transport"
)

func main() {
	// Load .env file for local development.
	// Try multiple paths to handle different ways of running the app
	envPaths := []string{".env", "../../../.env", "../../.env"}
	var envLoaded bool

	for _, path := range envPaths {
		if err := godotenv.Load(path); err == nil {
			slog.Info("Loaded environment from", "path", path)
			envLoaded = true
			break
		}
	}

	if !envLoaded {
		slog.Warn("No .env file found in any expected location, relying on environment variables")
	}

	// Validate environment variables before starting the server
	cfg, err := config.ValidateEnv()
	if err != nil {
		slog.Error("Environment validation failed", "error", err)
		os.Exit(1)
	}

	if cfg.DevelopmentMode {
		slog.Info("Running in DEVELOPMENT MODE")
	}

	if err := logging.Initialize(cfg.DevelopmentMode); err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}

	// --- Tracing Initialization (Optional) ---
	var tracerShutdown func(context.Context) error
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(context.Background(), "generals-server", cfg.OTLPEndpoint)
		if err != nil {
			slog.Error("Failed to initialize tracing, continuing without it", "error", err)
		} else {
			tracerShutdown = tp.Shutdown
			slog.Info("Tracing initialized", "endpoint", cfg.OTLPEndpoint)
		}
	}

	// --- User Store Initialization (Optional) ---
	// Registration endpoints stay disabled when DATABASE_URL is unset.
	var users *store.Users
	var pool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		pool, err = pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			slog.Error("Failed to create database pool", "error", err)
			os.Exit(1)
		}
		users = store.NewUsers(pool)
		slog.Info("User store initialized")
	} else {
		slog.Info("DATABASE_URL not set, user registration endpoints disabled")
	}

	rateLimiter, err := ratelimit.NewRateLimiter(cfg)
	if err != nil {
		slog.Error("Failed to create rate limiter", "error", err)
		os.Exit(1)
	}

	// --- Hub ---
	// A single hub owns every session and room; its sweep loop runs for the
	// lifetime of the process.
	h := hub.New()
	go h.Run()

	// --- Set up Server ---
	router := gin.Default()

	allowedOrigins := splitOrigins(cfg.AllowedOrigins, []string{"http://localhost:3000"})
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = allowedOrigins
	router.Use(cors.New(corsConfig))

	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	if cfg.TracingEnabled {
		router.Use(otelgin.Middleware("generals-server"))
	}

	// Routing
	ws := transport.NewServer(h, rateLimiter, allowedOrigins)
	router.GET("/ws", ws.ServeWs)

	api := router.Group("/api")
	api.Use(rateLimiter.APIMiddleware())
	var userStore httpapi.UserStore
	if users != nil {
		userStore = users
	}
	httpapi.NewHandler(h, userStore).RegisterRoutes(api)

	// Prometheus metrics endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health check endpoints
	var pinger health.Pinger
	if users != nil {
		pinger = users
	}
	healthHandler := health.NewHandler(pinger)
	router.GET("/health/live", healthHandler.Liveness)
	router.GET("/health/ready", healthHandler.Readiness)

	// Start the server.
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// --- Graceful Shutdown ---
	// Start the server in a goroutine so it doesn't block.
	go func() {
		slog.Info("API server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Failed to run server", "error", err)
			syscall.Kill(os.Getpid(), syscall.SIGTERM)
		}
	}()

	// Wait for an interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown HTTP server first so no new sessions arrive, then the hub.
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown:", "error", err)
	}

	h.Stop()

	if pool != nil {
		pool.Close()
		slog.Info("Database pool closed")
	}

	if tracerShutdown != nil {
		if err := tracerShutdown(ctx); err != nil {
			slog.Error("Failed to shut down tracer:", "error", err)
		}
	}

	slog.Info("Server exiting")
}

// splitOrigins parses the comma-separated ALLOWED_ORIGINS value, falling back
// to the given defaults when it is empty.
func splitOrigins(raw string, defaults []string) []string {
	if raw == "" {
		return defaults
	}
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		return defaults
	}
	return origins
}
