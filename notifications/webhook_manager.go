// Package notifications manages the inbound webhooks third-party scanners
// post stock alerts to, and the alert events received on them.
package notifications

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"nse-pulse/cache"
	"nse-pulse/database"
	models "nse-pulse/database/models_pkg"
	"nse-pulse/database/webhooks"
	"nse-pulse/helpers"
	"nse-pulse/realtime"
)

// webhookCacheTTL bounds how long a webhook lookup is served from cache
const webhookCacheTTL = time.Hour

// Repository is the webhook persistence
type Repository interface {
	CreateWebhook(ctx context.Context, wh *models.Webhook) error
	GetWebhooks(ctx context.Context) ([]models.Webhook, error)
	GetWebhookByID(ctx context.Context, id string) (*models.Webhook, error)
	UpdateWebhook(ctx context.Context, wh *models.Webhook) error
	DeleteWebhook(ctx context.Context, id string) (bool, error)
	SaveEvent(ctx context.Context, ev *models.WebhookData) error
	GetEvents(ctx context.Context, f webhooks.EventFilter) ([]models.WebhookData, error)
	DeleteEvent(ctx context.Context, id string) (bool, error)
}

// CreateRequest is the body for registering a webhook
type CreateRequest struct {
	Name           string   `json:"name" validate:"required,max=100"`
	StockSet       string   `json:"stockSet" validate:"omitempty,oneof=NIFTY_500 ANY_WEBHOOK"`
	Tags           []string `json:"tags"`
	Description    string   `json:"description"`
	PossibleOutput string   `json:"possibleOutput"`
}

// UpdateRequest is the body for editing a webhook; nil fields are left alone
type UpdateRequest struct {
	Name           *string   `json:"name" validate:"omitempty,min=1,max=100"`
	StockSet       *string   `json:"stockSet" validate:"omitempty,oneof=NIFTY_500 ANY_WEBHOOK"`
	Tags           *[]string `json:"tags"`
	Description    *string   `json:"description"`
	PossibleOutput *string   `json:"possibleOutput"`
}

// WebhookManager registers webhooks and records the alerts posted to them
type WebhookManager struct {
	repo      Repository
	cache     cache.Store
	publisher realtime.Publisher
	baseURL   string
	loc       *time.Location
	now       func() time.Time
}

// NewWebhookManager creates a new webhook manager. baseURL is the public
// address receive URLs are built from; store and publisher may be nil.
func NewWebhookManager(repo Repository, store cache.Store, publisher realtime.Publisher, baseURL string, loc *time.Location) *WebhookManager {
	if loc == nil {
		loc = time.UTC
	}
	return &WebhookManager{
		repo:      repo,
		cache:     store,
		publisher: publisher,
		baseURL:   strings.TrimRight(baseURL, "/"),
		loc:       loc,
		now:       time.Now,
	}
}

func webhookKey(id string) string {
	return "webhook:" + id
}

// ReceiveURL is the address scanners post alerts for webhook id to
func (wm *WebhookManager) ReceiveURL(id string) string {
	return wm.baseURL + "/api/webhooks/receive/" + id
}

func cleanTags(tags []string) pq.StringArray {
	out := make(pq.StringArray, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// Create registers a webhook
func (wm *WebhookManager) Create(ctx context.Context, req CreateRequest) (*models.Webhook, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := helpers.ValidateStruct(req); err != nil {
		return nil, err
	}
	set := models.StockSet(req.StockSet)
	if set == "" {
		set = models.StockSetAnyWebhook
	}

	id := uuid.NewString()
	wh := &models.Webhook{
		ID:             id,
		Name:           req.Name,
		StockSet:       set,
		Tags:           cleanTags(req.Tags),
		Description:    req.Description,
		PossibleOutput: req.PossibleOutput,
		WebhookURL:     wm.ReceiveURL(id),
	}
	if err := wm.repo.CreateWebhook(ctx, wh); err != nil {
		return nil, database.WrapDBError("CreateWebhook", err)
	}
	log.Info().Str("id", id).Str("name", wh.Name).Msg("🔗 Webhook created")
	return wh, nil
}

// List returns every webhook, newest first
func (wm *WebhookManager) List(ctx context.Context) ([]models.Webhook, error) {
	hooks, err := wm.repo.GetWebhooks(ctx)
	if err != nil {
		return nil, database.WrapDBError("GetWebhooks", err)
	}
	return hooks, nil
}

// Get returns one webhook, from cache when possible
func (wm *WebhookManager) Get(ctx context.Context, id string) (*models.Webhook, error) {
	if wm.cache != nil {
		var cached models.Webhook
		if err := wm.cache.Get(ctx, webhookKey(id), &cached); err == nil {
			return &cached, nil
		}
	}

	wh, err := wm.repo.GetWebhookByID(ctx, id)
	if err != nil {
		return nil, database.WrapDBError("GetWebhookByID", err)
	}
	if wh == nil {
		return nil, database.NewNotFoundErrorWithID("webhook", id)
	}

	if wm.cache != nil {
		if err := wm.cache.Set(ctx, webhookKey(id), wh, webhookCacheTTL); err != nil {
			log.Debug().Err(err).Str("webhook_id", id).Msg("Failed to cache webhook")
		}
	}
	return wh, nil
}

// Update edits a webhook and drops its cache entry
func (wm *WebhookManager) Update(ctx context.Context, id string, req UpdateRequest) (*models.Webhook, error) {
	if err := helpers.ValidateStruct(req); err != nil {
		return nil, err
	}
	wh, err := wm.repo.GetWebhookByID(ctx, id)
	if err != nil {
		return nil, database.WrapDBError("GetWebhookByID", err)
	}
	if wh == nil {
		return nil, database.NewNotFoundErrorWithID("webhook", id)
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, database.NewValidationError("name", "is required")
		}
		wh.Name = name
	}
	if req.StockSet != nil {
		wh.StockSet = models.StockSet(*req.StockSet)
	}
	if req.Tags != nil {
		wh.Tags = cleanTags(*req.Tags)
	}
	if req.Description != nil {
		wh.Description = *req.Description
	}
	if req.PossibleOutput != nil {
		wh.PossibleOutput = *req.PossibleOutput
	}

	if err := wm.repo.UpdateWebhook(ctx, wh); err != nil {
		return nil, database.WrapDBError("UpdateWebhook", err)
	}
	wm.invalidate(ctx, id)
	return wh, nil
}

// Delete removes a webhook. Events already received on it are kept.
func (wm *WebhookManager) Delete(ctx context.Context, id string) error {
	found, err := wm.repo.DeleteWebhook(ctx, id)
	if err != nil {
		return database.WrapDBError("DeleteWebhook", err)
	}
	wm.invalidate(ctx, id)
	if !found {
		return database.NewNotFoundErrorWithID("webhook", id)
	}
	log.Info().Str("id", id).Msg("🗑️  Webhook deleted")
	return nil
}

func (wm *WebhookManager) invalidate(ctx context.Context, id string) {
	if wm.cache == nil {
		return
	}
	if err := wm.cache.Delete(ctx, webhookKey(id)); err != nil && !cache.IsMiss(err) {
		log.Warn().Err(err).Str("id", id).Msg("Failed to invalidate webhook cache")
	}
}
