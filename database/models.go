// Package database provides database connection management for the nse-pulse dashboard backend.
//
// This package includes:
//   - Database connection management using GORM and PostgreSQL
//   - Schema migration for every persisted entity
//   - Typed errors shared by the repositories and the API layer
//
// Data Models:
//
//	All data models (PreopenSnapshot, Webhook, StockNews, etc.) are defined in the models_pkg package
//	to avoid circular import dependencies. Each repository lives in its own sub-package.
package database

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	models "nse-pulse/database/models_pkg"
)

// Database holds the GORM database connection and provides access to the underlying DB instance.
type Database struct {
	db *gorm.DB
}

// DB returns the underlying GORM database instance
func (d *Database) DB() *gorm.DB {
	return d.db
}

// ConnectOptions describes how to reach postgres
type ConnectOptions struct {
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
	Debug    bool
}

// Connect establishes database connection using GORM
func Connect(opts ConnectOptions) (*Database, error) {
	sslMode := opts.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	dsn := fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s TimeZone=UTC",
		opts.Host, opts.Port, opts.Name, opts.User, opts.Password, sslMode)

	logMode := logger.Silent
	if opts.Debug {
		logMode = logger.Warn
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logMode),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return &Database{db: db}, nil
}

// Ping checks that the database is reachable
func (d *Database) Ping() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// Close closes the database connection
func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Type aliases so callers that only need the entity types can import database directly.
type StockMaster = models.StockMaster
type PreopenSnapshot = models.PreopenSnapshot
type PreopenSecurity = models.PreopenSecurity
type DeliveryVolumeSnapshot = models.DeliveryVolumeSnapshot
type DeliverySecurity = models.DeliverySecurity
type IntradayAnalysis = models.IntradayAnalysis
type Webhook = models.Webhook
type WebhookData = models.WebhookData
type FinancialCalendarEntry = models.FinancialCalendarEntry
type StockNews = models.StockNews
