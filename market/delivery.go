package market

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"

	"nse-pulse/analysis"
	"nse-pulse/database"
	models "nse-pulse/database/models_pkg"
	"nse-pulse/metrics"
	"nse-pulse/realtime"
)

// DeliveryService ingests and serves delivery/volume snapshots
type DeliveryService struct {
	store     SnapshotStore
	publisher realtime.Publisher
	loc       *time.Location
	now       clock
}

// NewDeliveryService creates a delivery service. publisher may be nil.
func NewDeliveryService(store SnapshotStore, publisher realtime.Publisher, loc *time.Location) *DeliveryService {
	if loc == nil {
		loc = time.UTC
	}
	return &DeliveryService{
		store:     store,
		publisher: publisherOrNoop(publisher),
		loc:       loc,
		now:       time.Now,
	}
}

// DeliveryResult is the latest delivery snapshot of a date
type DeliveryResult struct {
	ID         string                    `json:"id"`
	Date       string                    `json:"date"`
	Timestamp  time.Time                 `json:"timestamp"`
	ReceivedAt time.Time                 `json:"receivedAt"`
	Summary    models.DeliverySummary    `json:"summary"`
	Data       []models.DeliverySecurity `json:"data"`
}

// TopDeliveryResult is the delivery ranking of a date
type TopDeliveryResult struct {
	Date      string    `json:"date"`
	Timestamp time.Time `json:"timestamp"`
	analysis.TopDeliveryResult
}

// NormalizeDelivery converts one loosely typed scraper record and derives its
// delivery percentage. ok is false when the record carries no symbol.
func NormalizeDelivery(rec map[string]interface{}) (models.DeliverySecurity, bool) {
	if rec == nil {
		return models.DeliverySecurity{}, false
	}
	sec := models.DeliverySecurity{
		Symbol:            str(rec, "symbol"),
		Series:            str(rec, "series"),
		QuantityTraded:    num(rec, 0, "quantityTraded"),
		DeliveryQuantity:  num(rec, 0, "deliveryQuantity"),
		LastPrice:         num(rec, 0, "lastPrice"),
		PChange:           num(rec, 0, "pChange"),
		TotalTradedVolume: num(rec, 0, "totalTradedVolume"),
		TotalTradedValue:  num(rec, 0, "totalTradedValue"),
	}
	if sec.Symbol == "" {
		return sec, false
	}
	if sec.Series == "" {
		sec.Series = "EQ"
	}
	sec.DeliveryPercentage = analysis.DeliveryPercentage(sec.QuantityTraded, sec.DeliveryQuantity)
	return sec, true
}

// Receive normalizes and appends one delivery snapshot
func (s *DeliveryService) Receive(ctx context.Context, req ReceiveRequest) (*ReceiveResult, error) {
	date, err := resolveDate(req.Date, s.loc, s.now)
	if err != nil {
		return nil, err
	}
	records, err := decodeRecords(req.Data)
	if err != nil {
		return nil, err
	}

	securities := make([]models.DeliverySecurity, 0, len(records))
	skipped := 0
	for _, rec := range records {
		sec, ok := NormalizeDelivery(rec)
		if !ok {
			skipped++
			continue
		}
		securities = append(securities, sec)
	}

	summary := analysis.SummarizeDelivery(securities)
	snap := &models.DeliveryVolumeSnapshot{
		ID:         uuid.NewString(),
		Date:       date,
		Timestamp:  s.now().UTC(),
		Summary:    datatypes.NewJSONType(summary),
		Securities: securities,
	}
	if err := s.store.SaveDelivery(ctx, snap); err != nil {
		return nil, database.WrapDBError("SaveDelivery", err)
	}

	metrics.SnapshotIngests.WithLabelValues("delivery").Inc()
	if skipped > 0 {
		metrics.SnapshotSkippedRecords.WithLabelValues("delivery").Add(float64(skipped))
	}
	log.Info().
		Str("date", date).
		Int("stocks", summary.TotalStocks).
		Int("skipped", skipped).
		Str("market_delivery_ratio", summary.MarketDeliveryRatio.String()).
		Msg("📥 Delivery snapshot stored")

	s.publisher.Broadcast(realtime.EventSnapshotIngested, map[string]interface{}{
		"kind":        "delivery",
		"id":          snap.ID,
		"date":        date,
		"totalStocks": summary.TotalStocks,
	})
	return &ReceiveResult{ID: snap.ID, Date: date, TotalStocks: summary.TotalStocks, Skipped: skipped}, nil
}

// Latest returns the winning snapshot for date, or a NotFoundError with a hint
func (s *DeliveryService) Latest(ctx context.Context, date string) (*models.DeliveryVolumeSnapshot, error) {
	latest, err := s.store.LatestDelivery(ctx, date)
	if err != nil {
		return nil, database.WrapDBError("LatestDelivery", err)
	}
	if latest == nil {
		return nil, database.NewNotFoundErrorWithHint("delivery snapshot", date,
			fmt.Sprintf("No delivery data found for %s. Ingest data for this date or choose another date.", date))
	}
	return latest, nil
}

// Get returns the latest delivery snapshot of date (today when empty)
func (s *DeliveryService) Get(ctx context.Context, date string) (*DeliveryResult, error) {
	date, err := resolveDate(date, s.loc, s.now)
	if err != nil {
		return nil, err
	}
	snap, err := s.Latest(ctx, date)
	if err != nil {
		return nil, err
	}
	return &DeliveryResult{
		ID:         snap.ID,
		Date:       snap.Date,
		Timestamp:  snap.Timestamp,
		ReceivedAt: snap.ReceivedAt,
		Summary:    analysis.SummarizeDelivery(snap.Securities),
		Data:       snap.Securities,
	}, nil
}

// ListDates returns dates with delivery data, newest first
func (s *DeliveryService) ListDates(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = DefaultDatesLimit
	}
	dates, err := s.store.DeliveryDates(ctx, limit)
	if err != nil {
		return nil, database.WrapDBError("DeliveryDates", err)
	}
	return dates, nil
}

// TopDelivery ranks date's latest snapshot by delivery percentage
func (s *DeliveryService) TopDelivery(ctx context.Context, date string, minPercent float64, limit int) (*TopDeliveryResult, error) {
	if minPercent < 0 || minPercent > 100 {
		return nil, database.NewValidationErrorWithValue("minPercent", "must be between 0 and 100", minPercent)
	}
	date, err := resolveDate(date, s.loc, s.now)
	if err != nil {
		return nil, err
	}
	snap, err := s.Latest(ctx, date)
	if err != nil {
		return nil, err
	}
	return &TopDeliveryResult{
		Date:              date,
		Timestamp:         snap.Timestamp,
		TopDeliveryResult: analysis.TopDelivery(snap.Securities, minPercent, limit),
	}, nil
}
