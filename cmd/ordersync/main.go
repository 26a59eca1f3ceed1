package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"storepay/internal/config"
	kafka_handler "storepay/internal/handler/kafka"
	"storepay/internal/infrastructure/database"
	kafka_infra "storepay/internal/infrastructure/kafka"
	order_pg "storepay/internal/repository/order_repo/postgres"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	zapConfig := zap.NewProductionConfig()
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapConfig.EncoderConfig.TimeKey = "timestamp"

	appLogger, err := zapConfig.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create zap logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()
	appLogger.Info("Order Sync worker starting...")

	dbConfig := database.DBConfig{
		Host:     cfg.DBConfig.Host,
		Port:     cfg.DBConfig.Port,
		User:     cfg.DBConfig.User,
		Password: cfg.DBConfig.Password,
		DBName:   cfg.DBConfig.Name,
		SSLMode:  cfg.DBConfig.SSLMode,
	}
	db, err := database.ConnectWithRetry(dbConfig, cfg.DBConnectRetries, cfg.DBConnectRetryDelay, appLogger)
	if err != nil {
		appLogger.Fatal("Could not connect to database. Exiting.", zap.Error(err))
	}
	defer db.Close()

	if err := database.Migrate(cfg.MigrationsPath, dbConfig, appLogger); err != nil {
		appLogger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	ctxMain, cancelMain := context.WithCancel(context.Background())
	defer cancelMain()

	topicCtx, cancel := context.WithTimeout(ctxMain, 10*time.Second)
	err = kafka_infra.EnsureTopics(topicCtx, cfg.GetKafkaBrokers(), []string{cfg.KafkaPaymentStatusTopic},
		appLogger.With(zap.String("component", "KafkaAdmin")))
	cancel()
	if err != nil {
		appLogger.Fatal("Failed to ensure Kafka topics", zap.Error(err))
	}

	orderRepository := order_pg.NewOrderRepository(db, appLogger.With(zap.String("component", "OrderRepository")))
	consumer := kafka_infra.NewConsumer(
		cfg.GetKafkaBrokers(),
		cfg.KafkaPaymentStatusTopic,
		cfg.KafkaConsumerGroup,
		kafka_handler.PaymentStatusMessageHandler(orderRepository, appLogger.With(zap.String("component", "PaymentStatusHandler"))),
		appLogger.With(zap.String("component", "PaymentStatusConsumer")),
	)

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Order Sync worker is healthy!"))
	})
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.OrderSyncHTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		appLogger.Info("Starting health server", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal("Health server failed", zap.Error(err))
		}
	}()

	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		if err := consumer.Consume(ctxMain); err != nil && !errors.Is(err, context.Canceled) {
			appLogger.Error("Payment status consumer failed", zap.Error(err))
		}
		appLogger.Info("Payment status consumer stopped.")
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	appLogger.Info("Shutting down order sync worker...")
	cancelMain()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Health server shutdown failed", zap.Error(err))
	}
	select {
	case <-consumerDone:
	case <-shutdownCtx.Done():
		appLogger.Warn("Payment status consumer did not stop before the shutdown deadline.")
	}
	if err := consumer.Close(); err != nil {
		appLogger.Error("Error closing payment status consumer", zap.Error(err))
	}
	appLogger.Info("Order sync worker shut down.")
}
