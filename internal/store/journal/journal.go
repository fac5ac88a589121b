// Package journal keeps a durable audit trail of everything the lifecycle
// core did to the market: fills as they settle, plus placements, cancels
// and cascade transitions. SQLite via gorm, same stack as the rest of the
// tooling around the bot.
package journal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/skittixch/GeminiTrader-sub000/internal/ledger"
)

// Action names for ActionRecord rows.
const (
	ActionPlace           = "place"
	ActionCancel          = "cancel"
	ActionPurge           = "purge"
	ActionCascadeTrigger  = "cascade_trigger"
	ActionCascadeEscalate = "cascade_escalate"
	ActionCascadeResolve  = "cascade_resolve"
)

// FillRecord is one settled fill.
type FillRecord struct {
	ID        string    `gorm:"primaryKey;size:36"`
	Symbol    string    `gorm:"size:32;index"`
	ClientID  string    `gorm:"size:36;index"`
	Kind      string    `gorm:"size:16"`
	Side      string    `gorm:"size:8"`
	Price     float64
	Quantity  float64
	Notional  float64
	FilledAt  time.Time `gorm:"index"`
	CreatedAt time.Time
}

// ActionRecord is one order-management action.
type ActionRecord struct {
	ID        string    `gorm:"primaryKey;size:36"`
	Symbol    string    `gorm:"size:32;index"`
	Action    string    `gorm:"size:24;index"`
	Kind      string    `gorm:"size:16"`
	Price     float64
	Quantity  float64
	Detail    string    `gorm:"size:512"`
	CreatedAt time.Time `gorm:"index"`
}

// Store wraps the journal database.
type Store struct {
	db *gorm.DB
}

// Open creates (or opens) the journal at path and migrates its tables.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("journal: path is required")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("journal: creating dir: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("journal: opening %s: %w", path, err)
	}
	if err := db.AutoMigrate(&FillRecord{}, &ActionRecord{}); err != nil {
		return nil, fmt.Errorf("journal: migrating: %w", err)
	}
	return &Store{db: db}, nil
}

// RecordFill journals a settled fill.
func (s *Store) RecordFill(ctx context.Context, symbol string, o ledger.Order, at time.Time) error {
	rec := FillRecord{
		ID:       uuid.NewString(),
		Symbol:   symbol,
		ClientID: o.ClientID,
		Kind:     string(o.Kind),
		Side:     string(o.Side),
		Price:    o.Price,
		Quantity: o.Quantity,
		Notional: o.Notional(),
		FilledAt: at,
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("journal: recording fill: %w", err)
	}
	return nil
}

// RecordAction journals an order-management action.
func (s *Store) RecordAction(ctx context.Context, symbol, action string, o ledger.Order, detail string) error {
	rec := ActionRecord{
		ID:       uuid.NewString(),
		Symbol:   symbol,
		Action:   action,
		Kind:     string(o.Kind),
		Price:    o.Price,
		Quantity: o.Quantity,
		Detail:   detail,
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("journal: recording action: %w", err)
	}
	return nil
}

// RecentActions returns the newest order-management actions, most recent
// first.
func (s *Store) RecentActions(ctx context.Context, limit int) ([]ActionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []ActionRecord
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("journal: listing actions: %w", err)
	}
	return out, nil
}

// RecentFills returns the newest fills, most recent first.
func (s *Store) RecentFills(ctx context.Context, limit int) ([]FillRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []FillRecord
	err := s.db.WithContext(ctx).
		Order("filled_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("journal: listing fills: %w", err)
	}
	return out, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
