package webhooks

import (
	"context"
	"errors"
	"fmt"

	models "nse-pulse/database/models_pkg"

	"gorm.io/gorm"
)

// EventFilter narrows a webhook event listing
type EventFilter struct {
	WebhookID string
	Date      string
	Limit     int
	Offset    int
}

// Repository handles database operations for webhooks and their received events
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new webhooks repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CreateWebhook saves a new webhook
func (r *Repository) CreateWebhook(ctx context.Context, wh *models.Webhook) error {
	if err := r.db.WithContext(ctx).Create(wh).Error; err != nil {
		return fmt.Errorf("CreateWebhook: %w", err)
	}
	return nil
}

// GetWebhooks retrieves all webhooks, newest first
func (r *Repository) GetWebhooks(ctx context.Context) ([]models.Webhook, error) {
	var hooks []models.Webhook
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&hooks).Error; err != nil {
		return nil, fmt.Errorf("GetWebhooks: %w", err)
	}
	return hooks, nil
}

// GetWebhookByID retrieves a webhook by ID. Returns (nil, nil) when absent.
func (r *Repository) GetWebhookByID(ctx context.Context, id string) (*models.Webhook, error) {
	var wh models.Webhook
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&wh).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("GetWebhookByID: %w", err)
	}
	return &wh, nil
}

// UpdateWebhook saves every column of an existing webhook
func (r *Repository) UpdateWebhook(ctx context.Context, wh *models.Webhook) error {
	if err := r.db.WithContext(ctx).Save(wh).Error; err != nil {
		return fmt.Errorf("UpdateWebhook: %w", err)
	}
	return nil
}

// DeleteWebhook removes a webhook. Its events are kept.
func (r *Repository) DeleteWebhook(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Webhook{})
	if res.Error != nil {
		return false, fmt.Errorf("DeleteWebhook: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// SaveEvent appends a received alert
func (r *Repository) SaveEvent(ctx context.Context, ev *models.WebhookData) error {
	if err := r.db.WithContext(ctx).Create(ev).Error; err != nil {
		return fmt.Errorf("SaveEvent: %w", err)
	}
	return nil
}

// GetEvents retrieves received alerts with filters, newest first
func (r *Repository) GetEvents(ctx context.Context, f EventFilter) ([]models.WebhookData, error) {
	var events []models.WebhookData
	query := r.db.WithContext(ctx).Order("received_at DESC")

	if f.WebhookID != "" {
		query = query.Where("webhook_id = ?", f.WebhookID)
	}
	if f.Date != "" {
		query = query.Where("date = ?", f.Date)
	}
	if f.Limit > 0 {
		query = query.Limit(f.Limit)
	}
	if f.Offset > 0 {
		query = query.Offset(f.Offset)
	}

	if err := query.Find(&events).Error; err != nil {
		return nil, fmt.Errorf("GetEvents: %w", err)
	}
	return events, nil
}

// DeleteEvent removes one received alert
func (r *Repository) DeleteEvent(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.WebhookData{})
	if res.Error != nil {
		return false, fmt.Errorf("DeleteEvent: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}
