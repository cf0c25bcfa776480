// Package market ingests pre-open and delivery/volume snapshots posted by the
// scrapers and serves the latest snapshot of a date together with the engine's
// analyses of it.
package market

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"time"

	"nse-pulse/analysis"
	"nse-pulse/database"
	models "nse-pulse/database/models_pkg"
	stockrepo "nse-pulse/database/stocks"
	"nse-pulse/helpers"
	"nse-pulse/realtime"
)

// DefaultDatesLimit caps ListDates when the caller passes no limit
const DefaultDatesLimit = 60

// SnapshotStore is the persistence the market services need
type SnapshotStore interface {
	SavePreopen(ctx context.Context, snap *models.PreopenSnapshot) error
	LatestPreopen(ctx context.Context, date string) (*models.PreopenSnapshot, error)
	PreopenDates(ctx context.Context, limit int) ([]string, error)
	SaveDelivery(ctx context.Context, snap *models.DeliveryVolumeSnapshot) error
	LatestDelivery(ctx context.Context, date string) (*models.DeliveryVolumeSnapshot, error)
	DeliveryDates(ctx context.Context, limit int) ([]string, error)
}

// MasterStore is the part of the stock master the market services use
type MasterStore interface {
	All(ctx context.Context) ([]models.StockMaster, error)
	UpdateLastChanges(ctx context.Context, date string, changes map[string]stockrepo.LastChange) error
}

// ReceiveRequest is the body scrapers post to the receive endpoints.
// Data is kept raw so a non-array payload can be reported as a validation error.
type ReceiveRequest struct {
	Date   string          `json:"date"`
	Source string          `json:"source"`
	Data   json.RawMessage `json:"data"`
}

// ReceiveResult acknowledges a stored snapshot
type ReceiveResult struct {
	ID          string `json:"id"`
	Date        string `json:"date"`
	TotalStocks int    `json:"totalStocks"`
	Skipped     int    `json:"skipped"`
}

type clock func() time.Time

// resolveDate defaults date to today in loc and validates a supplied one
func resolveDate(date string, loc *time.Location, now clock) (string, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		return now().In(loc).Format(helpers.DateLayout), nil
	}
	if !helpers.IsValidDate(date) {
		return "", database.NewValidationErrorWithValue("date", "must be formatted as YYYY-MM-DD", date)
	}
	return date, nil
}

// decodeRecords decodes a JSON array of loosely typed objects.
// Entries that are not objects are returned as nil so the caller can count them.
func decodeRecords(raw json.RawMessage) ([]map[string]interface{}, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, database.NewValidationError("data", "must be an array of records")
	}

	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, database.NewValidationError("data", "must be an array of records")
	}

	records := make([]map[string]interface{}, len(items))
	for i, item := range items {
		dec := json.NewDecoder(bytes.NewReader(item))
		dec.UseNumber()
		var rec map[string]interface{}
		if err := dec.Decode(&rec); err != nil {
			continue
		}
		records[i] = rec
	}
	return records, nil
}

// flatten lifts the fields of NSE's nested "metadata" object to the top level
// without overwriting fields already present there.
func flatten(rec map[string]interface{}) map[string]interface{} {
	meta, ok := rec["metadata"].(map[string]interface{})
	if !ok {
		return rec
	}
	for k, v := range meta {
		if _, exists := rec[k]; !exists {
			rec[k] = v
		}
	}
	return rec
}

func str(rec map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if v, ok := rec[k]; ok && v != nil {
			switch x := v.(type) {
			case string:
				if s := strings.TrimSpace(x); s != "" {
					return s
				}
			case json.Number:
				return x.String()
			}
		}
	}
	return ""
}

func num(rec map[string]interface{}, def float64, keys ...string) float64 {
	for _, k := range keys {
		if v, ok := rec[k]; ok && v != nil {
			return analysis.ParseNumeric(v, def)
		}
	}
	return def
}

type noopPublisher struct{}

func (noopPublisher) Broadcast(string, interface{}) {}

func publisherOrNoop(p realtime.Publisher) realtime.Publisher {
	if p == nil {
		return noopPublisher{}
	}
	return p
}
