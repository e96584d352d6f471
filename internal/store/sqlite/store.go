package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"tradesim/internal/store/model"
)

// Store is the sqlite-backed order ledger.
type Store struct {
	db *gorm.DB
}

func New(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	return newStore(db)
}

// NewFromDB wraps an existing gorm handle, for tests.
func NewFromDB(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("gorm db cannot be nil")
	}
	return newStore(db)
}

func newStore(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&model.OrderEventModel{}, &model.FillModel{}); err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(2)
		sqlDB.SetMaxIdleConns(2)
	}
	return &Store{db: db}, nil
}

// SaveEvent appends one engine event to the ledger.
func (s *Store) SaveEvent(ctx context.Context, evt *model.OrderEventModel) error {
	if evt == nil {
		return fmt.Errorf("event cannot be nil")
	}
	return s.db.WithContext(ctx).Create(evt).Error
}

// SaveFill appends one fill record.
func (s *Store) SaveFill(ctx context.Context, fill *model.FillModel) error {
	if fill == nil {
		return fmt.Errorf("fill cannot be nil")
	}
	return s.db.WithContext(ctx).Create(fill).Error
}

// EventsForOrder lists the recorded transitions of one order, oldest
// first.
func (s *Store) EventsForOrder(ctx context.Context, orderID string) ([]model.OrderEventModel, error) {
	var events []model.OrderEventModel
	if err := s.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("at ASC, id ASC").
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// RecentEvents lists the latest transitions across all orders.
func (s *Store) RecentEvents(ctx context.Context, limit int) ([]model.OrderEventModel, error) {
	if limit <= 0 {
		limit = 100
	}
	var events []model.OrderEventModel
	if err := s.db.WithContext(ctx).
		Order("at DESC, id DESC").
		Limit(limit).
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// FillsForOrder lists an order's fills, oldest first.
func (s *Store) FillsForOrder(ctx context.Context, orderID string) ([]model.FillModel, error) {
	var fills []model.FillModel
	if err := s.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("timestamp ASC").
		Find(&fills).Error; err != nil {
		return nil, err
	}
	return fills, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
