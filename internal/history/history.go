// Package history records past `axe test` invocations to a local SQLite
// database via GORM, with a factory-style constructor and a silenced
// GORM logger so routine queries don't clutter CLI output.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// CheckRecord is one row of test history: one batch result checked by
// `axe test --dir`. `axe check` records no history.
type CheckRecord struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement"`
	RunID      string    `gorm:"column:run_id;type:varchar(64);index"`
	Model      string    `gorm:"column:model;type:varchar(16)"`
	File       string    `gorm:"column:file;type:varchar(512)"`
	Verdict    string    `gorm:"column:verdict;type:varchar(4)"` // "OK" or "NO"
	Mismatch   bool      `gorm:"column:mismatch"`                // true when test mode's expected verdict differed
	DurationMS int64     `gorm:"column:duration_ms"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName returns the table name for CheckRecord.
func (CheckRecord) TableName() string {
	return "check_records"
}

// Store is a SQLite-backed history store.
type Store struct {
	db *gorm.DB
}

// Open opens (creating if necessary) the SQLite database at path and
// migrates the schema. An empty path uses an in-memory database.
func Open(path string) (*Store, error) {
	if path == "" {
		path = ":memory:"
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	if err := db.AutoMigrate(&CheckRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate history schema: %w", err)
	}

	return &Store{db: db}, nil
}

// NewRunID generates a fresh run identifier shared by every record one
// `axe test` invocation writes.
func NewRunID() string {
	return uuid.NewString()
}

// Record inserts one history row.
func (s *Store) Record(ctx context.Context, rec CheckRecord) error {
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("failed to record check history: %w", err)
	}
	return nil
}

// RecordBatch inserts several history rows in one statement.
func (s *Store) RecordBatch(ctx context.Context, recs []CheckRecord) error {
	if len(recs) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Create(&recs).Error; err != nil {
		return fmt.Errorf("failed to record check history batch: %w", err)
	}
	return nil
}

// Recent returns the most recent limit records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]CheckRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	var recs []CheckRecord
	if err := s.db.WithContext(ctx).Order("id desc").Limit(limit).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to query check history: %w", err)
	}
	return recs, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
