// Package audit keeps a persistent log of processed ref update events.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DefaultLimit bounds List when Query.Limit is not positive.
const DefaultLimit = 50

// ErrUnsupportedDriver is returned for an unknown Config.Driver.
var ErrUnsupportedDriver = errors.New("unsupported audit database driver")

// Recorder is the write side of the audit log.
type Recorder interface {
	Record(ctx context.Context, rec *Record) error
}

// Config selects the database.
type Config struct {
	// Driver is "sqlite" (default) or "postgres"
	Driver string
	// DSN is a file path for sqlite, a connection string for postgres
	DSN string
}

// Query filters List. Empty fields match everything.
type Query struct {
	Repository string
	Ref        string
	Limit      int
}

// Store is the gorm backed audit log.
type Store struct {
	db *gorm.DB
}

// Open connects to the database described by cfg and migrates the schema.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "", DriverSQLite:
		dialector = sqlite.Open(cfg.DSN)
	case DriverPostgres:
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}

	if err := ping(ctx, db); err != nil {
		return nil, err
	}
	store, err := NewWithConn(db)
	if err != nil {
		if sqlDB, derr := db.DB(); derr == nil {
			_ = sqlDB.Close()
		}
		return nil, err
	}
	return store, nil
}

// ping checks the connection and closes the pool when it is unusable.
func ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return fmt.Errorf("audit database ping failed: %w", err)
	}
	return nil
}

// NewWithConn wraps an existing gorm connection and migrates the schema.
func NewWithConn(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("audit migration failed: %w", err)
	}
	return &Store{db: db}, nil
}

// Record inserts rec, filling in ID and CreatedAt when unset.
func (s *Store) Record(ctx context.Context, rec *Record) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("failed to write audit record: %w", err)
	}
	return nil
}

// List returns matching records, newest first.
func (s *Store) List(ctx context.Context, q Query) ([]Record, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	tx := s.db.WithContext(ctx).Model(&Record{})
	if q.Repository != "" {
		tx = tx.Where("repository = ?", q.Repository)
	}
	if q.Ref != "" {
		tx = tx.Where("ref = ?", q.Ref)
	}

	var records []Record
	if err := tx.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list audit records: %w", err)
	}
	return records, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// MirrorList encodes mirror names for Record.FailedMirrors. Empty input
// yields nil.
func MirrorList(names []string) datatypes.JSON {
	if len(names) == 0 {
		return nil
	}
	data, err := json.Marshal(names)
	if err != nil {
		return nil
	}
	return datatypes.JSON(data)
}

// Mirrors decodes FailedMirrors.
func (r *Record) Mirrors() []string {
	if len(r.FailedMirrors) == 0 {
		return nil
	}
	var names []string
	if err := json.Unmarshal(r.FailedMirrors, &names); err != nil {
		return nil
	}
	return names
}
