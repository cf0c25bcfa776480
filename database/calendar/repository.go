package calendar

import (
	"context"
	"fmt"
	"time"

	models "nse-pulse/database/models_pkg"

	"gorm.io/gorm"
)

// ChunkSize is the number of entries written per transaction
const ChunkSize = 500

// Key identifies a calendar event for duplicate detection
type Key struct {
	Symbol  string
	Date    string
	Purpose string
}

// Filter narrows a calendar listing
type Filter struct {
	Symbol  string
	Purpose string
	From    time.Time
	To      time.Time
	Limit   int
}

// Repository handles database operations for the financial calendar
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new financial calendar repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ExistingKeys returns the stored (symbol, date, purpose) triples for the given symbols
func (r *Repository) ExistingKeys(ctx context.Context, symbols []string) (map[Key]bool, error) {
	existing := make(map[Key]bool)
	if len(symbols) == 0 {
		return existing, nil
	}

	var rows []models.FinancialCalendarEntry
	err := r.db.WithContext(ctx).
		Select("symbol", "date", "purpose").
		Where("symbol IN ?", symbols).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("ExistingKeys: %w", err)
	}
	for _, row := range rows {
		existing[Key{Symbol: row.Symbol, Date: row.Date, Purpose: row.Purpose}] = true
	}
	return existing, nil
}

// InsertChunked writes entries in chunks of ChunkSize, each chunk in its own
// transaction. Chunks are independent: on failure the already committed
// count is returned together with the error.
func (r *Repository) InsertChunked(ctx context.Context, entries []models.FinancialCalendarEntry) (int, error) {
	committed := 0
	for start := 0; start < len(entries); start += ChunkSize {
		end := start + ChunkSize
		if end > len(entries) {
			end = len(entries)
		}
		chunk := entries[start:end]
		err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return tx.Create(&chunk).Error
		})
		if err != nil {
			return committed, fmt.Errorf("InsertChunked chunk %d: %w", start/ChunkSize, err)
		}
		committed += len(chunk)
	}
	return committed, nil
}

// List retrieves calendar entries ordered by event date
func (r *Repository) List(ctx context.Context, f Filter) ([]models.FinancialCalendarEntry, error) {
	var rows []models.FinancialCalendarEntry
	query := r.db.WithContext(ctx).Order("event_date ASC").Order("symbol ASC")

	if f.Symbol != "" {
		query = query.Where("symbol = ?", f.Symbol)
	}
	if f.Purpose != "" {
		query = query.Where("purpose = ?", f.Purpose)
	}
	if !f.From.IsZero() {
		query = query.Where("event_date >= ?", f.From)
	}
	if !f.To.IsZero() {
		query = query.Where("event_date <= ?", f.To)
	}
	if f.Limit > 0 {
		query = query.Limit(f.Limit)
	}

	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	return rows, nil
}

// Delete removes one entry
func (r *Repository) Delete(ctx context.Context, id int64) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.FinancialCalendarEntry{})
	if res.Error != nil {
		return false, fmt.Errorf("Delete: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}
