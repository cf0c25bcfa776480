package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"nse-pulse/analysis"
	"nse-pulse/database"
	models "nse-pulse/database/models_pkg"
	"nse-pulse/database/webhooks"
	"nse-pulse/metrics"
	"nse-pulse/realtime"
)

// DefaultEventsLimit caps an event listing when no limit is given
const DefaultEventsLimit = 100

// AlertPayload is an alert as posted by a scanner. Stocks and TriggerPrices
// arrive as comma-joined strings.
type AlertPayload struct {
	Stocks        string `json:"stocks"`
	TriggerPrices string `json:"trigger_prices"`
	ScanName      string `json:"scan_name"`
	ScanURL       string `json:"scan_url"`
	AlertName     string `json:"alert_name"`
	TriggeredAt   string `json:"triggered_at"`
}

// ParsePayload reads an alert from a form-encoded or JSON body. JSON lists
// are accepted in place of comma-joined strings.
func ParsePayload(contentType string, body []byte) (AlertPayload, error) {
	mediaType, _, _ := mime.ParseMediaType(contentType)
	trimmed := bytes.TrimSpace(body)
	if mediaType == "application/x-www-form-urlencoded" || (mediaType != "application/json" && !looksLikeJSON(trimmed)) {
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return AlertPayload{}, database.NewValidationError("body", "malformed form body")
		}
		return AlertPayload{
			Stocks:        values.Get("stocks"),
			TriggerPrices: values.Get("trigger_prices"),
			ScanName:      values.Get("scan_name"),
			ScanURL:       values.Get("scan_url"),
			AlertName:     values.Get("alert_name"),
			TriggeredAt:   values.Get("triggered_at"),
		}, nil
	}

	if len(trimmed) == 0 {
		return AlertPayload{}, database.NewValidationError("body", "is empty")
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		return AlertPayload{}, database.NewValidationError("body", "must be a JSON object or form data")
	}
	return AlertPayload{
		Stocks:        joined(raw["stocks"]),
		TriggerPrices: joined(raw["trigger_prices"]),
		ScanName:      joined(raw["scan_name"]),
		ScanURL:       joined(raw["scan_url"]),
		AlertName:     joined(raw["alert_name"]),
		TriggeredAt:   joined(raw["triggered_at"]),
	}, nil
}

// looksLikeJSON reports whether a body sent without a usable content type
// starts like a JSON document
func looksLikeJSON(b []byte) bool {
	return len(b) > 0 && (b[0] == '{' || b[0] == '[')
}

func joined(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case []interface{}:
		parts := make([]string, 0, len(x))
		for _, item := range x {
			parts = append(parts, joined(item))
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(x)
	}
}

// SplitList splits a comma-joined list, trimming items and dropping empties
func SplitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Receive stores an alert posted to webhook id and pushes it to dashboards.
// There is no idempotency: a repeated post is stored again.
func (wm *WebhookManager) Receive(ctx context.Context, id string, p AlertPayload) (*models.WebhookData, error) {
	wh, err := wm.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	stocks := SplitList(p.Stocks)
	for i := range stocks {
		stocks[i] = strings.ToUpper(stocks[i])
	}
	prices := make(pq.Float64Array, 0)
	for _, raw := range SplitList(p.TriggerPrices) {
		prices = append(prices, analysis.ParseNumeric(raw, 0))
	}

	now := wm.now()
	ev := &models.WebhookData{
		ID:            uuid.NewString(),
		WebhookID:     wh.ID,
		WebhookName:   wh.Name,
		StockSet:      wh.StockSet,
		Tags:          wh.Tags,
		Stocks:        stocks,
		TriggerPrices: prices,
		ScanName:      strings.TrimSpace(p.ScanName),
		ScanURL:       strings.TrimSpace(p.ScanURL),
		AlertName:     strings.TrimSpace(p.AlertName),
		Date:          now.In(wm.loc).Format("2006-01-02"),
		TriggeredAt:   strings.TrimSpace(p.TriggeredAt),
		ReceivedAt:    now.UTC(),
	}
	if err := wm.repo.SaveEvent(ctx, ev); err != nil {
		return nil, database.WrapDBError("SaveEvent", err)
	}

	metrics.WebhookEvents.Inc()
	log.Info().
		Str("webhook", wh.Name).
		Strs("stocks", stocks).
		Str("alert", ev.AlertName).
		Msg("🔔 Webhook alert received")

	if wm.publisher != nil {
		wm.publisher.Broadcast(realtime.EventWebhookAlert, ev)
	}
	return ev, nil
}

// Events lists received alerts, newest first
func (wm *WebhookManager) Events(ctx context.Context, f webhooks.EventFilter) ([]models.WebhookData, error) {
	if f.Limit <= 0 {
		f.Limit = DefaultEventsLimit
	}
	events, err := wm.repo.GetEvents(ctx, f)
	if err != nil {
		return nil, database.WrapDBError("GetEvents", err)
	}
	return events, nil
}

// DeleteEvent removes one received alert
func (wm *WebhookManager) DeleteEvent(ctx context.Context, id string) error {
	found, err := wm.repo.DeleteEvent(ctx, id)
	if err != nil {
		return database.WrapDBError("DeleteEvent", err)
	}
	if !found {
		return database.NewNotFoundErrorWithID("webhook event", id)
	}
	return nil
}
