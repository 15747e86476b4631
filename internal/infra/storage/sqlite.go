package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"tradeguard/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Storage persists the order ledger: submitted orders, reconciled fill
// deltas, the order-event journal and small runtime facts.
type Storage struct {
	db *gorm.DB
}

// NewStorage opens (or creates) the SQLite ledger at path.
func NewStorage(path string) (*Storage, error) {
	if path == "" {
		return nil, fmt.Errorf("storage path is empty")
	}

	// Ensure directory exists
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create DB directory: %w", err)
		}
	}

	// Connect to SQLite (Pure Go)
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Auto Migration
	if err := db.AutoMigrate(
		&domain.OrderRecord{},
		&domain.FillRecord{},
		&domain.EventRecord{},
		&domain.RuntimeKV{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Storage{db: db}, nil
}

// ======================================================================================
// Order Operations
// ======================================================================================

// SaveOrder creates or updates an order record
func (s *Storage) SaveOrder(rec *domain.OrderRecord) error {
	return s.db.Save(rec).Error
}

// GetOrder retrieves an order by client order ID
func (s *Storage) GetOrder(clientOrderID string) (*domain.OrderRecord, error) {
	var rec domain.OrderRecord
	err := s.db.First(&rec, "client_order_id = ?", clientOrderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil // Not found is not an error
	}
	return &rec, err
}

// UpdateOrderStatus updates the status of an existing order
func (s *Storage) UpdateOrderStatus(clientOrderID, status string) error {
	return s.db.Model(&domain.OrderRecord{}).
		Where("client_order_id = ?", clientOrderID).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now()}).Error
}

// ListOpenOrders retrieves orders that are still working at the exchange
func (s *Storage) ListOpenOrders() ([]domain.OrderRecord, error) {
	var recs []domain.OrderRecord
	err := s.db.
		Where("status IN ?", []string{domain.OrderStatusNew, domain.OrderStatusPartiallyFilled}).
		Find(&recs).Error
	return recs, err
}

// ======================================================================================
// Fill Operations
// ======================================================================================

// AppendFill records one reconciled fill delta
func (s *Storage) AppendFill(rec *domain.FillRecord) error {
	return s.db.Create(rec).Error
}

// ListFillsByOrder returns all recorded deltas for an order in insertion
// order. This ordered history is the reconciler's prior-fills input.
func (s *Storage) ListFillsByOrder(orderID string) ([]domain.FillRecord, error) {
	var recs []domain.FillRecord
	err := s.db.
		Where("order_id = ?", orderID).
		Order("id ASC").
		Find(&recs).Error
	return recs, err
}

// ======================================================================================
// Event Journal
// ======================================================================================

// AppendEvent journals one order-stream event
func (s *Storage) AppendEvent(rec *domain.EventRecord) error {
	return s.db.Create(rec).Error
}

// ListEventsAfter returns up to limit journaled events with Seq greater
// than after, oldest first. Feed them to the sequencer's ReplayEvent.
func (s *Storage) ListEventsAfter(after uint64, limit int) ([]domain.EventRecord, error) {
	var recs []domain.EventRecord
	err := s.db.
		Where("seq > ?", after).
		Order("seq ASC").
		Limit(limit).
		Find(&recs).Error
	return recs, err
}

// ======================================================================================
// Runtime Facts
// ======================================================================================

// SaveRuntimeValue stores a small runtime fact (e.g. last shutdown reason)
func (s *Storage) SaveRuntimeValue(key, value string) error {
	rec := domain.RuntimeKV{
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now(),
	}
	return s.db.Save(&rec).Error
}

// LoadRuntimeValue reads a runtime fact, empty string when absent
func (s *Storage) LoadRuntimeValue(key string) (string, error) {
	var rec domain.RuntimeKV
	err := s.db.First(&rec, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	return rec.Value, err
}
