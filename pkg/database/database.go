package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/jordanlanch/leadflow/pkg/models"
)

// Client holds the database client
type Client struct {
	DB *gorm.DB
	db *sql.DB // Underlying database for pool stats
}

// PoolConfig holds connection pool configuration
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultPoolConfig returns the pool used for SQLite. A single connection
// serializes every transaction, which keeps each lead mutation and its
// stats delta free of lost updates.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxLifetime: 0,
	}
}

// BuildDSN appends the SQLite pragmas the service relies on to a file path
func BuildDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on"
}

// NewClient opens the SQLite database at path and migrates the schema
func NewClient(path string) (*Client, error) {
	return NewClientWithPool(BuildDSN(path), DefaultPoolConfig())
}

// NewInMemoryClient opens a private in-memory database. The name keeps
// parallel tests apart.
func NewInMemoryClient(name string) (*Client, error) {
	name = strings.NewReplacer("/", "_", " ", "_").Replace(name)
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", name)
	return NewClientWithPool(dsn, DefaultPoolConfig())
}

// NewClientWithPool opens dsn with a custom pool configuration
func NewClientWithPool(dsn string, poolCfg PoolConfig) (*Client, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed opening sqlite database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed getting sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(poolCfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(poolCfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(poolCfg.ConnMaxLifetime)

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return &Client{DB: db, db: sqlDB}, nil
}

// Migrate creates or updates every table
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Lead{},
		&models.StatsCounter{},
		&models.EmailAccount{},
		&models.EmailTemplate{},
		&models.EmailCampaign{},
		&models.EmailSend{},
		&models.EmailEvent{},
	); err != nil {
		return fmt.Errorf("failed creating schema resources: %w", err)
	}
	return nil
}

// Close closes the database connection
func (c *Client) Close() error {
	return c.db.Close()
}

// Ping checks if the database is reachable
func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Stats returns database connection pool statistics
func (c *Client) Stats() sql.DBStats {
	return c.db.Stats()
}
