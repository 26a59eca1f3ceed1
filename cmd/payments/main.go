package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"storepay/internal/app/payments"
	"storepay/internal/config"
	payments_http "storepay/internal/handler/http/payments"
	"storepay/internal/infrastructure/database"
	kafka_infra "storepay/internal/infrastructure/kafka"
	"storepay/internal/outbox"
	"storepay/internal/payhere"
	"storepay/internal/repository/notification_repo"
	notification_pg "storepay/internal/repository/notification_repo/postgres"
	outbox_pg "storepay/internal/repository/outbox_repo/postgres"
	"storepay/internal/repository/payments_repo"
	payments_memory "storepay/internal/repository/payments_repo/memory"
	payments_mongo "storepay/internal/repository/payments_repo/mongo"
	payments_pg "storepay/internal/repository/payments_repo/postgres"
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
	appLogger.Info("Payments Service starting...", zap.String("store", cfg.PaymentsStore))

	if cfg.MerchantSecret == "" {
		appLogger.Warn("PAYHERE_MERCHANT_SECRET is not set; checkout hashes will fail and notifications will be rejected")
	}

	ctxMain, cancelMain := context.WithCancel(context.Background())
	defer cancelMain()

	var (
		db              *sql.DB
		paymentRepo     payments_repo.PaymentRepository
		orderSync       payments.OrderStatusSync
		notificationLog notification_repo.NotificationLogRepository
		mongoClient     *mongo.Client
		outboxProcessor *outbox.Processor
		kafkaProducer   kafka_infra.Producer
	)

	if cfg.PaymentsStore != config.StoreMemory {
		dbConfig := database.DBConfig{
			Host:     cfg.DBConfig.Host,
			Port:     cfg.DBConfig.Port,
			User:     cfg.DBConfig.User,
			Password: cfg.DBConfig.Password,
			DBName:   cfg.DBConfig.Name,
			SSLMode:  cfg.DBConfig.SSLMode,
		}

		appLogger.Info("Waiting for database to be available...")
		db, err = database.ConnectWithRetry(dbConfig, cfg.DBConnectRetries, cfg.DBConnectRetryDelay, appLogger)
		if err != nil {
			appLogger.Fatal("Could not connect to database. Exiting.", zap.Error(err))
		}
		defer func() {
			if err := db.Close(); err != nil {
				appLogger.Error("Error closing database connection", zap.Error(err))
			} else {
				appLogger.Info("Database connection closed.")
			}
		}()

		appLogger.Info("Running database migrations...")
		if err := database.Migrate(cfg.MigrationsPath, dbConfig, appLogger); err != nil {
			appLogger.Fatal("Failed to run database migrations", zap.Error(err))
		}

		topicCtx, cancel := context.WithTimeout(ctxMain, 10*time.Second)
		err = kafka_infra.EnsureTopics(topicCtx, cfg.GetKafkaBrokers(), []string{cfg.KafkaPaymentStatusTopic},
			appLogger.With(zap.String("component", "KafkaAdmin")))
		cancel()
		if err != nil {
			appLogger.Fatal("Failed to ensure Kafka topics", zap.Error(err))
		}

		outboxRepository := outbox_pg.NewOutboxRepository()
		orderSync = outbox.NewWriter(db, outboxRepository, cfg.KafkaPaymentStatusTopic,
			appLogger.With(zap.String("component", "OutboxWriter")))
		notificationLog = notification_pg.NewNotificationLogRepository(db)

		kafkaProducer = kafka_infra.NewProducer(cfg.GetKafkaBrokers(),
			appLogger.With(zap.String("component", "KafkaProducer")))
		defer func() {
			if err := kafkaProducer.Close(); err != nil {
				appLogger.Error("Error closing Kafka producer", zap.Error(err))
			}
		}()
		outboxProcessor = outbox.NewProcessor(
			db,
			outboxRepository,
			kafkaProducer,
			cfg.OutboxPollInterval,
			cfg.OutboxPollTimeout,
			appLogger.With(zap.String("component", "OutboxProcessor")),
		)
	}

	switch cfg.PaymentsStore {
	case config.StorePostgres:
		paymentRepo = payments_pg.NewPaymentRepository(db)
	case config.StoreMongo:
		var mongoDB *mongo.Database
		mongoClient, mongoDB, err = database.NewMongoDatabase(ctxMain, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			appLogger.Fatal("Could not connect to MongoDB. Exiting.", zap.Error(err))
		}
		defer func() {
			if err := mongoClient.Disconnect(context.Background()); err != nil {
				appLogger.Error("Error disconnecting from MongoDB", zap.Error(err))
			}
		}()
		mongoRepo := payments_mongo.NewPaymentRepository(mongoDB)
		if err := mongoRepo.EnsureIndexes(ctxMain); err != nil {
			appLogger.Fatal("Failed to ensure MongoDB indexes", zap.Error(err))
		}
		paymentRepo = mongoRepo
	case config.StoreMemory:
		appLogger.Warn("Using in-memory payment store; records are lost on restart and orders are not synchronized")
		paymentRepo = payments_memory.NewPaymentRepository()
	}

	paymentService := payments.NewPaymentService(
		payhere.NewEngine(cfg.MerchantSecret),
		paymentRepo,
		orderSync,
		notificationLog,
		cfg.DefaultCurrency,
		appLogger.With(zap.String("component", "PaymentService")),
	)
	appLogger.Info("Payment Service initialized.")

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           payments_http.NewRouter(paymentService, cfg.AllowedOrigins, appLogger.With(zap.String("component", "HTTPHandler"))),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var wg sync.WaitGroup
	go func() {
		appLogger.Info("Starting HTTP server", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	if outboxProcessor != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outboxProcessor.Start(ctxMain)
			appLogger.Info("Outbox Processor stopped.")
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	appLogger.Info("Shutting down application...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("HTTP server graceful shutdown failed", zap.Error(err))
	} else {
		appLogger.Info("HTTP server gracefully shut down.")
	}

	cancelMain()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		appLogger.Warn("Background workers did not stop before the shutdown deadline.")
	}

	appLogger.Info("Application gracefully shut down.")
}
