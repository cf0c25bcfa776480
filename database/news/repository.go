package news

import (
	"context"
	"fmt"
	"time"

	models "nse-pulse/database/models_pkg"

	"gorm.io/gorm"
)

// Filter narrows a news listing
type Filter struct {
	Type   models.NewsType
	Symbol string
	Date   string
	Limit  int
}

// Repository handles database operations for AI-produced news items
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new stock news repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Save appends a news item
func (r *Repository) Save(ctx context.Context, item *models.StockNews) error {
	if err := r.db.WithContext(ctx).Create(item).Error; err != nil {
		return fmt.Errorf("Save: %w", err)
	}
	return nil
}

// List retrieves news items with filters, newest first
func (r *Repository) List(ctx context.Context, f Filter) ([]models.StockNews, error) {
	var items []models.StockNews
	query := r.db.WithContext(ctx).Order("created_at DESC")

	if f.Type != "" {
		query = query.Where("type = ?", f.Type)
	}
	if f.Symbol != "" {
		query = query.Where("symbol = ?", f.Symbol)
	}
	if f.Date != "" {
		query = query.Where("date = ?", f.Date)
	}
	if f.Limit > 0 {
		query = query.Limit(f.Limit)
	}

	if err := query.Find(&items).Error; err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	return items, nil
}

// Delete removes one news item
func (r *Repository) Delete(ctx context.Context, id int64) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.StockNews{})
	if res.Error != nil {
		return false, fmt.Errorf("Delete: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// DeleteOlderThan hard-deletes every item created before cutoff
func (r *Repository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.StockNews{})
	if res.Error != nil {
		return 0, fmt.Errorf("DeleteOlderThan: %w", res.Error)
	}
	return res.RowsAffected, nil
}
