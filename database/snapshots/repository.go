package snapshots

import (
	"context"
	"fmt"

	models "nse-pulse/database/models_pkg"

	"gorm.io/gorm"
)

// Repository handles persistence of pre-open and delivery/volume snapshots.
// Every ingestion is appended; nothing here overwrites an earlier snapshot.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new snapshots repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// SavePreopen appends a pre-open snapshot
func (r *Repository) SavePreopen(ctx context.Context, snap *models.PreopenSnapshot) error {
	if err := r.db.WithContext(ctx).Create(snap).Error; err != nil {
		return fmt.Errorf("SavePreopen: %w", err)
	}
	return nil
}

// LatestPreopen returns the last-write-wins pre-open snapshot of date, or nil
// when none was ingested
func (r *Repository) LatestPreopen(ctx context.Context, date string) (*models.PreopenSnapshot, error) {
	var snaps []models.PreopenSnapshot
	if err := latestOf(r.db.WithContext(ctx), date).Find(&snaps).Error; err != nil {
		return nil, fmt.Errorf("LatestPreopen: %w", err)
	}
	if len(snaps) == 0 {
		return nil, nil
	}
	return &snaps[0], nil
}

// PreopenDates returns the distinct dates that have pre-open data, newest first
func (r *Repository) PreopenDates(ctx context.Context, limit int) ([]string, error) {
	return r.distinctDates(ctx, &models.PreopenSnapshot{}, limit, "PreopenDates")
}

// SaveDelivery appends a delivery/volume snapshot
func (r *Repository) SaveDelivery(ctx context.Context, snap *models.DeliveryVolumeSnapshot) error {
	if err := r.db.WithContext(ctx).Create(snap).Error; err != nil {
		return fmt.Errorf("SaveDelivery: %w", err)
	}
	return nil
}

// LatestDelivery returns the last-write-wins delivery snapshot of date, or nil
func (r *Repository) LatestDelivery(ctx context.Context, date string) (*models.DeliveryVolumeSnapshot, error) {
	var snaps []models.DeliveryVolumeSnapshot
	if err := latestOf(r.db.WithContext(ctx), date).Find(&snaps).Error; err != nil {
		return nil, fmt.Errorf("LatestDelivery: %w", err)
	}
	if len(snaps) == 0 {
		return nil, nil
	}
	return &snaps[0], nil
}

// DeliveryDates returns the distinct dates that have delivery data, newest first
func (r *Repository) DeliveryDates(ctx context.Context, limit int) ([]string, error) {
	return r.distinctDates(ctx, &models.DeliveryVolumeSnapshot{}, limit, "DeliveryDates")
}

// latestOf narrows a snapshot query to the newest row of date: event
// timestamp, then receipt time, then id.
func latestOf(db *gorm.DB, date string) *gorm.DB {
	return db.Where("date = ?", date).
		Order("timestamp DESC, received_at DESC, id DESC").
		Limit(1)
}

func (r *Repository) distinctDates(ctx context.Context, model interface{}, limit int, op string) ([]string, error) {
	var dates []string
	query := r.db.WithContext(ctx).
		Model(model).
		Distinct("date").
		Order("date DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Pluck("date", &dates).Error; err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return dates, nil
}
