package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jcmexdev/storefront-checkout/internal/checkout/app"
	"github.com/jcmexdev/storefront-checkout/internal/httpx"
	"github.com/jcmexdev/storefront-checkout/internal/pkg/cache"
	"github.com/jcmexdev/storefront-checkout/internal/pkg/telemetry"
	"github.com/jcmexdev/storefront-checkout/internal/store/sqlite"
)

func main() {
	serviceName := getEnv("OTEL_SERVICE_NAME", "checkout-service")
	telemetry.InitLogger(serviceName)

	seed := flag.Bool("seed", false, "load the demo catalog on startup")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.SetupTracer(ctx, serviceName)
	if err != nil {
		slog.Error("failed to initialise tracer", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			slog.Error("tracer shutdown error", "error", err)
		}
	}()

	dbPath := getEnv("CHECKOUT_DB_PATH", "./data/checkout.db")
	store, err := sqlite.Open(dbPath)
	if err != nil {
		slog.Error("failed to open store", "path", dbPath, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	if *seed {
		if err := store.Seed(ctx); err != nil {
			slog.Error("failed to seed demo catalog", "error", err)
			os.Exit(1)
		}
		slog.Info("demo catalog seeded", "path", dbPath)
	}

	// Idempotent replay is optional: without Redis the service still
	// places orders, it just cannot deduplicate client retries.
	var idem cache.Cache
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		idem = cache.NewRedisCache(redisAddr, "checkout")
	}

	placer := app.NewPlacer(store)
	handler := httpx.NewHandler(placer, idem)
	router := httpx.NewRouter(handler)

	addr := ":" + getEnv("PORT", "8080")
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("checkout service running", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
