package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joao-fontenele/storefront/internal/config"
	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/email"
	"github.com/joao-fontenele/storefront/internal/invoice"
	"github.com/joao-fontenele/storefront/internal/messaging"
	"github.com/joao-fontenele/storefront/internal/notify"
	"github.com/joao-fontenele/storefront/internal/telemetry"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	config.LoadDotEnv(logger)

	brokers := config.List("KAFKA_BROKERS")
	if len(brokers) == 0 {
		logger.Error("KAFKA_BROKERS environment variable is required")
		os.Exit(1)
	}

	smtpCfg, err := config.SMTP()
	if err != nil {
		logger.Error("invalid smtp configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, config.String("OTEL_EXPORTER_OTLP_ENDPOINT", ""), "notifier", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	storeName := config.String("STORE_NAME", "Storefront")
	currency := config.String("CURRENCY", "USD")

	consumer := messaging.NewConsumer(brokers, domain.TopicOrderPlaced,
		config.String("KAFKA_GROUP_ID", "storefront-notifier"),
		messaging.WithAtMostOnce(),
	)
	defer func() { _ = consumer.Close() }()

	handler := notify.NewNotificationHandler(
		invoice.NewRenderer(storeName, currency),
		email.NewSender(smtpCfg, logger),
		storeName,
		currency,
		logger,
	)

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop
		logger.Info("shutting down")
		cancel()
	}()

	logger.Info("starting order notifier", "brokers", brokers, "smtp_host", smtpCfg.Host)

	if err := consumer.Consume(ctx, handler.Handle); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("consumer stopped")
			return
		}
		logger.Error("consumer error", "error", err)
		os.Exit(1)
	}
}
