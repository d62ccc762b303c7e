package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/accounts"
	"github.com/joao-fontenele/storefront/internal/cart"
	"github.com/joao-fontenele/storefront/internal/catalog"
	"github.com/joao-fontenele/storefront/internal/checkout"
	"github.com/joao-fontenele/storefront/internal/config"
	"github.com/joao-fontenele/storefront/internal/coupon"
	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/identity"
	"github.com/joao-fontenele/storefront/internal/invoice"
	"github.com/joao-fontenele/storefront/internal/messaging"
	"github.com/joao-fontenele/storefront/internal/notify"
	"github.com/joao-fontenele/storefront/internal/orders"
	"github.com/joao-fontenele/storefront/internal/storage"
	"github.com/joao-fontenele/storefront/internal/telemetry"
	"github.com/joao-fontenele/storefront/internal/wallet"
	"github.com/joao-fontenele/storefront/internal/wishlist"
)

const serviceVersion = "0.1.0"

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	config.LoadDotEnv(logger)

	fatal := func(msg string, err error) {
		logger.Error(msg, "error", err)
		os.Exit(1)
	}

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, config.String("OTEL_EXPORTER_OTLP_ENDPOINT", ""), "storefront", serviceVersion)
	if err != nil {
		fatal("failed to initialize tracer", err)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider("storefront", serviceVersion)
	if err != nil {
		fatal("failed to initialize meter", err)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	postgresURL, err := config.Required("POSTGRES_URL")
	if err != nil {
		fatal("invalid configuration", err)
	}
	dsn, err := storage.WithSearchPath(postgresURL, "storefront")
	if err != nil {
		fatal("invalid POSTGRES_URL", err)
	}

	db, err := telemetry.OpenDB(ctx, dsn)
	if err != nil {
		fatal("failed to connect to database", err)
	}
	defer func() { _ = db.Close() }()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     config.String("REDIS_ADDR", "localhost:6379"),
		Password: config.String("REDIS_PASSWORD", ""),
	})
	defer func() { _ = redisClient.Close() }()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		fatal("failed to connect to redis", err)
	}

	couponTTL, err := config.Duration("COUPON_SESSION_TTL", 24*time.Hour)
	if err != nil {
		fatal("invalid configuration", err)
	}
	initialBalance, err := config.Decimal("WALLET_INITIAL_BALANCE", decimal.Zero)
	if err != nil {
		fatal("invalid configuration", err)
	}
	checkoutCfg, err := checkoutConfig()
	if err != nil {
		fatal("invalid configuration", err)
	}

	storeName := config.String("STORE_NAME", "Storefront")
	currency := config.String("CURRENCY", "USD")

	var notifier checkout.Notifier
	if brokers := config.List("KAFKA_BROKERS"); len(brokers) > 0 {
		producer := messaging.NewProducer(brokers, domain.TopicOrderPlaced)
		defer func() { _ = producer.Close() }()
		notifier = notify.NewPublisher(producer)
	} else {
		logger.Warn("KAFKA_BROKERS not set, order notifications disabled")
	}

	products := catalog.NewProductRepository(db)
	carts := cart.NewRepository(db)
	coupons := coupon.NewRepository(db)
	sessions := coupon.NewSessionStore(redisClient, couponTTL)
	wallets := wallet.NewRepository(db)
	orderRepo := orders.NewOrderRepository(db)
	invoices := invoice.NewRenderer(storeName, currency)

	cartService := cart.NewService(carts, products, logger)
	checkoutService, err := checkout.NewService(checkout.NewPostgresStore(db), sessions, notifier, checkoutCfg, logger)
	if err != nil {
		fatal("failed to create checkout service", err)
	}

	catalogHandler := catalog.NewHandler(products, logger)
	cartHandler := cart.NewHandler(cartService, logger)
	couponHandler := coupon.NewHandler(coupons, sessions, cartService, logger)
	checkoutHandler := checkout.NewHandler(checkoutService, logger)
	ordersHandler := orders.NewHandler(orderRepo, invoices, logger)
	walletHandler := wallet.NewHandler(wallets, currency, logger)
	wishlistHandler := wishlist.NewHandler(wishlist.NewRepository(db), logger)

	internalToken := config.String("INTERNAL_TOKEN", "")
	if internalToken == "" {
		logger.Warn("INTERNAL_TOKEN not set, user provisioning disabled")
	}
	accountsHandler := accounts.NewHandler(accounts.NewRepository(db), initialBalance, internalToken, logger)

	mux := http.NewServeMux()

	public := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, telemetry.WithHTTPRoute(h))
	}
	authed := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, telemetry.WithHTTPRoute(identity.Middleware(h)))
	}

	public("GET /products", catalogHandler.HandleListProducts)
	public("GET /products/{id}", catalogHandler.HandleGetProduct)
	public("GET /categories", catalogHandler.HandleListCategories)

	authed("GET /cart", cartHandler.HandleView)
	authed("POST /cart/items", cartHandler.HandleAddItem)
	authed("PATCH /cart/items/{id}", cartHandler.HandleUpdateQuantity)
	authed("DELETE /cart/items/{id}", cartHandler.HandleRemoveItem)
	authed("POST /cart/coupon", couponHandler.HandleApply)
	authed("DELETE /cart/coupon", couponHandler.HandleRemove)

	authed("GET /wishlist", wishlistHandler.HandleList)
	authed("POST /wishlist", wishlistHandler.HandleAdd)
	authed("DELETE /wishlist/{product_id}", wishlistHandler.HandleRemove)

	authed("POST /checkout", checkoutHandler.HandleCheckout)

	authed("GET /orders", ordersHandler.HandleList)
	authed("GET /orders/{id}", ordersHandler.HandleGet)
	authed("GET /orders/{id}/invoice", ordersHandler.HandleInvoice)
	authed("PATCH /orders/{id}/status", identity.RequireRole(domain.RoleAdmin, ordersHandler.HandleUpdateStatus))

	authed("GET /wallet", walletHandler.HandleBalance)

	public("POST /internal/users", accountsHandler.HandleProvision)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("GET /metrics", metricsHandler)

	port := config.String("PORT", "8081")

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      telemetry.InstrumentHandler(mux, "storefront"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("starting storefront service", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fatal("server error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	checkoutService.Wait()
}

func checkoutConfig() (checkout.Config, error) {
	cfg := checkout.DefaultConfig()

	retries, err := config.Int("CHECKOUT_MAX_RETRIES", int(cfg.MaxRetries))
	if err != nil {
		return cfg, err
	}
	if retries < 0 {
		return cfg, fmt.Errorf("CHECKOUT_MAX_RETRIES must not be negative, got %d", retries)
	}
	cfg.MaxRetries = uint64(retries)

	if cfg.RetryInterval, err = config.Duration("CHECKOUT_RETRY_INTERVAL", cfg.RetryInterval); err != nil {
		return cfg, err
	}
	if cfg.NotifyTimeout, err = config.Duration("CHECKOUT_NOTIFY_TIMEOUT", cfg.NotifyTimeout); err != nil {
		return cfg, err
	}
	return cfg, nil
}
