package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN is the lib/pq keyword/value connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// MigrationURL is the postgres:// form golang-migrate expects.
func (c DBConfig) MigrationURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}

func NewPostgresDB(cfg DBConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// ConnectWithRetry calls NewPostgresDB up to attempts times, sleeping delay between tries.
func ConnectWithRetry(cfg DBConfig, attempts int, delay time.Duration, logger *zap.Logger) (*sql.DB, error) {
	var lastErr error
	for i := 0; i < attempts; i++ {
		db, err := NewPostgresDB(cfg)
		if err == nil {
			logger.Info("Successfully connected to PostgreSQL database!")
			return db, nil
		}
		lastErr = err
		logger.Warn("Failed to connect to database, retrying",
			zap.Int("attempt", i+1),
			zap.Int("max_attempts", attempts),
			zap.Duration("retry_in", delay),
			zap.Error(err))
		time.Sleep(delay)
	}
	return nil, fmt.Errorf("could not connect to database after %d attempts: %w", attempts, lastErr)
}

// Migrate applies every pending migration found at sourceURL.
func Migrate(sourceURL string, cfg DBConfig, logger *zap.Logger) error {
	m, err := migrate.New(sourceURL, cfg.MigrationURL())
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}
	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to read migration version: %w", err)
	}
	logger.Info("Database migrations completed", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}
