package market

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"nse-pulse/analysis"
	"nse-pulse/database"
	models "nse-pulse/database/models_pkg"
	stockrepo "nse-pulse/database/stocks"
	"nse-pulse/metrics"
	"nse-pulse/realtime"
)

// PreopenService ingests and serves pre-open auction snapshots
type PreopenService struct {
	store     SnapshotStore
	master    MasterStore
	publisher realtime.Publisher
	loc       *time.Location
	now       clock
}

// NewPreopenService creates a pre-open service. master and publisher may be nil.
func NewPreopenService(store SnapshotStore, master MasterStore, publisher realtime.Publisher, loc *time.Location) *PreopenService {
	if loc == nil {
		loc = time.UTC
	}
	return &PreopenService{
		store:     store,
		master:    master,
		publisher: publisherOrNoop(publisher),
		loc:       loc,
		now:       time.Now,
	}
}

// PreopenResult is the latest snapshot of a date with breadth recomputed from its securities
type PreopenResult struct {
	ID         string    `json:"id"`
	Date       string    `json:"date"`
	Source     string    `json:"source"`
	Timestamp  time.Time `json:"timestamp"`
	ReceivedAt time.Time `json:"receivedAt"`
	analysis.PreopenStats
	Data []models.PreopenSecurity `json:"data"`
}

// GapsResult is the gap classification of a date
type GapsResult struct {
	Date      string    `json:"date"`
	Timestamp time.Time `json:"timestamp"`
	analysis.GapBuckets
}

// ImbalanceResult is the volume-imbalance ranking of a date
type ImbalanceResult struct {
	Date      string    `json:"date"`
	Timestamp time.Time `json:"timestamp"`
	analysis.ImbalanceResult
}

// IndustryResult is a taxonomy breakdown of a date
type IndustryResult struct {
	Date   string                  `json:"date"`
	Level  string                  `json:"level"`
	Parent string                  `json:"parent,omitempty"`
	Rows   []analysis.BreakdownRow `json:"rows"`
}

// NormalizePreopen converts one loosely typed scraper record.
// ok is false when the record carries no symbol.
func NormalizePreopen(rec map[string]interface{}) (models.PreopenSecurity, bool) {
	if rec == nil {
		return models.PreopenSecurity{}, false
	}
	rec = flatten(rec)

	sec := models.PreopenSecurity{
		Symbol:        str(rec, "symbol"),
		LastPrice:     num(rec, 0, "lastPrice"),
		FinalPrice:    num(rec, 0, "finalPrice", "iep"),
		PreviousClose: num(rec, 0, "previousClose"),
		Change:        num(rec, 0, "change"),
		PChange:       num(rec, 0, "pChange"),
		FinalQuantity: num(rec, 0, "finalQuantity"),
		TotalTurnover: num(rec, 0, "totalTurnover"),
	}
	if sec.Symbol == "" {
		return sec, false
	}
	if sec.FinalPrice == 0 {
		sec.FinalPrice = sec.LastPrice
	}
	if sec.LastPrice == 0 {
		sec.LastPrice = sec.FinalPrice
	}

	if sa, ok := rec["spreadAnalysis"].(map[string]interface{}); ok {
		sec.SpreadAnalysis = &models.SpreadAnalysis{
			BestBid:                num(sa, 0, "bestBid"),
			BestAsk:                num(sa, 0, "bestAsk"),
			SpreadPercent:          num(sa, 0, "spreadPercent"),
			BidVolume:              num(sa, 0, "bidVolume"),
			AskVolume:              num(sa, 0, "askVolume"),
			VolumeDominantSide:     str(sa, "volumeDominantSide"),
			VolumeImbalancePercent: num(sa, 0, "volumeImbalancePercent"),
		}
	}
	return sec, true
}

// Receive normalizes and appends one pre-open snapshot
func (s *PreopenService) Receive(ctx context.Context, req ReceiveRequest) (*ReceiveResult, error) {
	date, err := resolveDate(req.Date, s.loc, s.now)
	if err != nil {
		return nil, err
	}
	records, err := decodeRecords(req.Data)
	if err != nil {
		return nil, err
	}

	securities := make([]models.PreopenSecurity, 0, len(records))
	skipped := 0
	for _, rec := range records {
		sec, ok := NormalizePreopen(rec)
		if !ok {
			skipped++
			continue
		}
		securities = append(securities, sec)
	}

	stats := analysis.PreopenBreadth(securities)
	source := req.Source
	if source == "" {
		source = "nse"
	}
	snap := &models.PreopenSnapshot{
		ID:          uuid.NewString(),
		Date:        date,
		Source:      source,
		Timestamp:   s.now().UTC(),
		TotalStocks: stats.TotalStocks,
		Advances:    stats.Advances,
		Declines:    stats.Declines,
		Unchanged:   stats.Unchanged,
		Securities:  securities,
	}
	if err := s.store.SavePreopen(ctx, snap); err != nil {
		return nil, database.WrapDBError("SavePreopen", err)
	}

	metrics.SnapshotIngests.WithLabelValues("preopen").Inc()
	if skipped > 0 {
		metrics.SnapshotSkippedRecords.WithLabelValues("preopen").Add(float64(skipped))
	}
	log.Info().
		Str("date", date).
		Str("source", source).
		Int("stocks", stats.TotalStocks).
		Int("skipped", skipped).
		Msg("📥 Pre-open snapshot stored")

	s.recordLastChanges(ctx, date, securities)

	result := &ReceiveResult{ID: snap.ID, Date: date, TotalStocks: stats.TotalStocks, Skipped: skipped}
	s.publisher.Broadcast(realtime.EventSnapshotIngested, map[string]interface{}{
		"kind":        "preopen",
		"id":          snap.ID,
		"date":        date,
		"totalStocks": stats.TotalStocks,
	})
	return result, nil
}

// recordLastChanges feeds the stock master's last-known change, the second
// tier of the intraday fallback chain. Failures only cost freshness.
func (s *PreopenService) recordLastChanges(ctx context.Context, date string, securities []models.PreopenSecurity) {
	if s.master == nil || len(securities) == 0 {
		return
	}
	changes := make(map[string]stockrepo.LastChange, len(securities))
	for _, sec := range securities {
		changes[sec.Symbol] = stockrepo.LastChange{PChange: sec.PChange, Volume: sec.FinalQuantity}
	}
	if err := s.master.UpdateLastChanges(ctx, date, changes); err != nil {
		log.Warn().Err(err).Str("date", date).Msg("Failed to record last-known changes in stock master")
	}
}

// Latest returns the winning snapshot for date, or a NotFoundError with a hint
func (s *PreopenService) Latest(ctx context.Context, date string) (*models.PreopenSnapshot, error) {
	latest, err := s.store.LatestPreopen(ctx, date)
	if err != nil {
		return nil, database.WrapDBError("LatestPreopen", err)
	}
	if latest == nil {
		return nil, database.NewNotFoundErrorWithHint("preopen snapshot", date,
			fmt.Sprintf("No pre-open data found for %s. Ingest data for this date or choose another date.", date))
	}
	return latest, nil
}

// Get returns the latest snapshot of date (today when empty)
func (s *PreopenService) Get(ctx context.Context, date string) (*PreopenResult, error) {
	date, err := resolveDate(date, s.loc, s.now)
	if err != nil {
		return nil, err
	}
	snap, err := s.Latest(ctx, date)
	if err != nil {
		return nil, err
	}
	return &PreopenResult{
		ID:           snap.ID,
		Date:         snap.Date,
		Source:       snap.Source,
		Timestamp:    snap.Timestamp,
		ReceivedAt:   snap.ReceivedAt,
		PreopenStats: analysis.PreopenBreadth(snap.Securities),
		Data:         snap.Securities,
	}, nil
}

// ListDates returns dates with pre-open data, newest first
func (s *PreopenService) ListDates(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = DefaultDatesLimit
	}
	dates, err := s.store.PreopenDates(ctx, limit)
	if err != nil {
		return nil, database.WrapDBError("PreopenDates", err)
	}
	return dates, nil
}

// Gaps classifies the gaps of date's latest snapshot
func (s *PreopenService) Gaps(ctx context.Context, date string, limit int) (*GapsResult, error) {
	date, err := resolveDate(date, s.loc, s.now)
	if err != nil {
		return nil, err
	}
	snap, err := s.Latest(ctx, date)
	if err != nil {
		return nil, err
	}
	return &GapsResult{
		Date:       date,
		Timestamp:  snap.Timestamp,
		GapBuckets: analysis.ClassifyGaps(snap.Securities, limit),
	}, nil
}

// Imbalance ranks date's latest snapshot by order-book imbalance
func (s *PreopenService) Imbalance(ctx context.Context, date string) (*ImbalanceResult, error) {
	date, err := resolveDate(date, s.loc, s.now)
	if err != nil {
		return nil, err
	}
	snap, err := s.Latest(ctx, date)
	if err != nil {
		return nil, err
	}
	return &ImbalanceResult{
		Date:            date,
		Timestamp:       snap.Timestamp,
		ImbalanceResult: analysis.RankImbalance(snap.Securities),
	}, nil
}

// Industry breaks date's latest snapshot down by taxonomy level
func (s *PreopenService) Industry(ctx context.Context, date, level, parent string) (*IndustryResult, error) {
	if level == "" {
		level = analysis.LevelSector
	}
	if !analysis.ValidLevel(level) {
		return nil, database.NewValidationErrorWithValue("level", "must be one of sector, industry, basicIndustry", level)
	}
	date, err := resolveDate(date, s.loc, s.now)
	if err != nil {
		return nil, err
	}
	snap, err := s.Latest(ctx, date)
	if err != nil {
		return nil, err
	}

	var master []models.StockMaster
	if s.master != nil {
		master, err = s.master.All(ctx)
		if err != nil {
			return nil, database.WrapDBError("StockMaster.All", err)
		}
	}

	rows, err := analysis.Breakdown(snap.Securities, master, level, parent)
	if errors.Is(err, analysis.ErrUnknownLevel) {
		return nil, database.NewValidationErrorWithValue("level", err.Error(), level)
	}
	if err != nil {
		return nil, err
	}
	return &IndustryResult{Date: date, Level: level, Parent: parent, Rows: rows}, nil
}
