package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/joao-fontenele/storefront/internal/config"
	"github.com/joao-fontenele/storefront/internal/gateway"
	"github.com/joao-fontenele/storefront/internal/telemetry"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	config.LoadDotEnv(logger)

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, config.String("OTEL_EXPORTER_OTLP_ENDPOINT", ""), "gateway", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	storefrontURL, err := config.Required("STOREFRONT_URL")
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	secret, err := config.Required("JWT_SECRET")
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	httpClient := &http.Client{
		Timeout:   30 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	handler := gateway.NewHandler(
		gateway.NewServiceProxy(storefrontURL, httpClient),
		gateway.NewTokenVerifier([]byte(secret), config.String("JWT_ISSUER", "")),
		logger,
	)

	mux := http.NewServeMux()
	public := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, telemetry.WithHTTPRoute(h))
	}
	authed := func(pattern string) {
		mux.Handle(pattern, telemetry.WithHTTPRoute(http.HandlerFunc(handler.HandleAuthenticated)))
	}

	public("GET /products", handler.HandlePublic)
	public("GET /products/{id}", handler.HandlePublic)
	public("GET /categories", handler.HandlePublic)

	authed("GET /cart")
	authed("POST /cart/items")
	authed("PATCH /cart/items/{id}")
	authed("DELETE /cart/items/{id}")
	authed("POST /cart/coupon")
	authed("DELETE /cart/coupon")
	authed("GET /wishlist")
	authed("POST /wishlist")
	authed("DELETE /wishlist/{product_id}")
	authed("POST /checkout")
	authed("GET /orders")
	authed("GET /orders/{id}")
	authed("GET /orders/{id}/invoice")
	authed("PATCH /orders/{id}/status")
	authed("GET /wallet")

	port := config.String("PORT", "8080")

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      telemetry.InstrumentHandler(mux, "gateway"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("starting gateway service", "port", port, "upstream", storefrontURL)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
