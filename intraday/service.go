// Package intraday runs and serves the sector/industry advance-decline analysis
package intraday

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"nse-pulse/analysis"
	"nse-pulse/cache"
	"nse-pulse/database"
	models "nse-pulse/database/models_pkg"
	"nse-pulse/helpers"
	"nse-pulse/realtime"
	"nse-pulse/reference"
)

// CacheTTL is how long a computed analysis is served from cache
const CacheTTL = 6 * time.Hour

// Repository persists analysis results
type Repository interface {
	Upsert(ctx context.Context, a *models.IntradayAnalysis) error
	GetByDate(ctx context.Context, date string) (*models.IntradayAnalysis, error)
	Dates(ctx context.Context, limit int) ([]string, error)
}

// PreopenSource returns the winning pre-open snapshot of a date
type PreopenSource interface {
	Latest(ctx context.Context, date string) (*models.PreopenSnapshot, error)
}

// MasterSource lists the stock master
type MasterSource interface {
	All(ctx context.Context) ([]models.StockMaster, error)
}

// Service computes, stores and loads intraday analyses
type Service struct {
	repo      Repository
	preopen   PreopenSource
	master    MasterSource
	reference *reference.Store
	cache     cache.Store
	publisher realtime.Publisher
	loc       *time.Location
	now       func() time.Time
}

// Deps groups the collaborators of Service
type Deps struct {
	Repo      Repository
	Preopen   PreopenSource
	Master    MasterSource
	Reference *reference.Store
	Cache     cache.Store
	Publisher realtime.Publisher
	Location  *time.Location
}

// NewService creates a new intraday analysis service
func NewService(d Deps) *Service {
	if d.Location == nil {
		d.Location = time.UTC
	}
	return &Service{
		repo:      d.Repo,
		preopen:   d.Preopen,
		master:    d.Master,
		reference: d.Reference,
		cache:     d.Cache,
		publisher: d.Publisher,
		loc:       d.Location,
		now:       time.Now,
	}
}

func cacheKey(date string) string {
	return "intraday:analysis:" + date
}

func (s *Service) resolveDate(date string) (string, error) {
	if date == "" {
		return s.now().In(s.loc).Format(helpers.DateLayout), nil
	}
	if !helpers.IsValidDate(date) {
		return "", database.NewValidationErrorWithValue("date", "must be formatted as YYYY-MM-DD", date)
	}
	return date, nil
}

// RunAnalysis computes the sector and industry rollups for date and stores them,
// replacing an earlier run for the same date. A missing pre-open snapshot is not
// an error: changes then come from the stock master's last-known values.
func (s *Service) RunAnalysis(ctx context.Context, date string) (*models.IntradayAnalysis, error) {
	date, err := s.resolveDate(date)
	if err != nil {
		return nil, err
	}
	ref := s.reference.Current()
	if len(ref.Sectors) == 0 && len(ref.Industries) == 0 {
		return nil, database.NewValidationError("reference", "sector and industry reference data is not loaded")
	}

	var (
		preopen []models.PreopenSecurity
		master  []models.StockMaster
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		snap, err := s.preopen.Latest(gctx, date)
		if database.IsNotFound(err) {
			return nil
		}
		if err != nil {
			return err
		}
		preopen = snap.Securities
		return nil
	})
	g.Go(func() error {
		rows, err := s.master.All(gctx)
		if err != nil {
			return database.WrapDBError("StockMaster.All", err)
		}
		master = rows
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	started := s.now()
	cs := analysis.NewChangeSource(preopen, master, date)
	sectors := analysis.Rollup(ref.Sectors, cs)
	industries := analysis.Rollup(ref.Industries, cs)

	result := &models.IntradayAnalysis{
		Date:           date,
		ComputedAt:     s.now().UTC(),
		HasPreopenData: cs.HasPreopen(),
		Market:         datatypes.NewJSONType(analysis.MarketBreadthOf(sectors)),
		Sectors:        sectors,
		Industries:     industries,
	}
	if err := s.repo.Upsert(ctx, result); err != nil {
		return nil, database.WrapDBError("IntradayUpsert", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey(date), result, CacheTTL); err != nil && !cache.IsMiss(err) {
			log.Warn().Err(err).Str("date", date).Msg("Failed to cache intraday analysis")
		}
	}

	log.Info().
		Str("date", date).
		Bool("preopen", result.HasPreopenData).
		Int("sectors", len(sectors)).
		Int("industries", len(industries)).
		Dur("elapsed", s.now().Sub(started)).
		Msg("📊 Intraday analysis computed")

	if s.publisher != nil {
		s.publisher.Broadcast(realtime.EventAnalysisCompleted, map[string]interface{}{
			"date":           date,
			"hasPreopenData": result.HasPreopenData,
			"market":         result.Market.Data(),
		})
	}
	return result, nil
}

// Load returns the stored analysis for date from cache, then the database
func (s *Service) Load(ctx context.Context, date string) (*models.IntradayAnalysis, error) {
	date, err := s.resolveDate(date)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		var cached models.IntradayAnalysis
		if err := s.cache.Get(ctx, cacheKey(date), &cached); err == nil {
			return &cached, nil
		}
	}

	a, err := s.repo.GetByDate(ctx, date)
	if err != nil {
		return nil, database.WrapDBError("IntradayGetByDate", err)
	}
	if a == nil {
		return nil, database.NewNotFoundErrorWithHint("intraday analysis", date,
			fmt.Sprintf("No intraday analysis found for %s. Run the analysis for this date first.", date))
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey(date), a, CacheTTL); err != nil {
			log.Debug().Err(err).Str("date", date).Msg("Failed to cache intraday analysis")
		}
	}
	return a, nil
}

// ListDates returns dates with a stored analysis, newest first
func (s *Service) ListDates(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 60
	}
	dates, err := s.repo.Dates(ctx, limit)
	if err != nil {
		return nil, database.WrapDBError("IntradayDates", err)
	}
	return dates, nil
}

// ReloadReference re-reads the sector and industry files
func (s *Service) ReloadReference() (reference.Summary, error) {
	return s.reference.Reload()
}
