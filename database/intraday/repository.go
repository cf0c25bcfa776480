package intraday

import (
	"context"
	"errors"
	"fmt"

	models "nse-pulse/database/models_pkg"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository handles persistence of intraday sector/industry analyses
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new intraday analysis repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Upsert stores the analysis for its date, replacing any earlier run
func (r *Repository) Upsert(ctx context.Context, a *models.IntradayAnalysis) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"computed_at", "has_preopen_data", "market", "sectors", "industries"}),
	}).Create(a).Error
	if err != nil {
		return fmt.Errorf("Upsert: %w", err)
	}
	return nil
}

// GetByDate retrieves the analysis for date. Returns (nil, nil) when absent.
func (r *Repository) GetByDate(ctx context.Context, date string) (*models.IntradayAnalysis, error) {
	var a models.IntradayAnalysis
	if err := r.db.WithContext(ctx).Where("date = ?", date).First(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("GetByDate: %w", err)
	}
	return &a, nil
}

// Dates returns the dates that have an analysis, newest first
func (r *Repository) Dates(ctx context.Context, limit int) ([]string, error) {
	var dates []string
	query := r.db.WithContext(ctx).Model(&models.IntradayAnalysis{}).Order("date DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Pluck("date", &dates).Error; err != nil {
		return nil, fmt.Errorf("Dates: %w", err)
	}
	return dates, nil
}
