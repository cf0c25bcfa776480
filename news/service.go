// Package news produces AI-written stock news and morning market analysis and
// keeps them for a limited number of days.
package news

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"nse-pulse/cache"
	"nse-pulse/database"
	models "nse-pulse/database/models_pkg"
	newsrepo "nse-pulse/database/news"
	"nse-pulse/helpers"
	"nse-pulse/llm"
)

const (
	// DefaultListLimit caps a listing when no limit is given
	DefaultListLimit = 100
	// DefaultRetentionDays is used by Cleanup when no retention is given
	DefaultRetentionDays = 7

	sourceAI = "ai"
)

// Repository persists news items
type Repository interface {
	Save(ctx context.Context, item *models.StockNews) error
	List(ctx context.Context, f newsrepo.Filter) ([]models.StockNews, error)
	Delete(ctx context.Context, id int64) (bool, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Analyzer is the AI provider surface used here
type Analyzer interface {
	AnalyzeJSON(ctx context.Context, prompt string, dest interface{}) error
}

// PreopenSource returns the winning pre-open snapshot of a date
type PreopenSource interface {
	Latest(ctx context.Context, date string) (*models.PreopenSnapshot, error)
}

// MasterSource lists the stock master
type MasterSource interface {
	All(ctx context.Context) ([]models.StockMaster, error)
}

// SearchRequest asks for recent news on one symbol
type SearchRequest struct {
	Symbol string `json:"symbol" validate:"required,max=32"`
	Query  string `json:"query" validate:"max=500"`
	Date   string `json:"date"`
}

// ListFilter narrows a news listing
type ListFilter struct {
	Type   string
	Symbol string
	Date   string
	Limit  int
}

// Service is the news and morning analysis service
type Service struct {
	repo     Repository
	ai       Analyzer
	llmCache *cache.LLMCache
	preopen  PreopenSource
	master   MasterSource
	loc      *time.Location
	now      func() time.Time
}

// NewService creates a news service. ai may be nil when the provider is disabled.
func NewService(repo Repository, ai Analyzer, llmCache *cache.LLMCache, preopen PreopenSource, master MasterSource, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		repo:     repo,
		ai:       ai,
		llmCache: llmCache,
		preopen:  preopen,
		master:   master,
		loc:      loc,
		now:      time.Now,
	}
}

func (s *Service) today() string {
	return s.now().In(s.loc).Format(helpers.DateLayout)
}

func (s *Service) resolveDate(date string) (string, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		return s.today(), nil
	}
	if !helpers.IsValidDate(date) {
		return "", database.NewValidationErrorWithValue("date", "must be YYYY-MM-DD", date)
	}
	return date, nil
}

// normalizeSentiment keeps the fixed vocabulary; anything else is NEUTRAL
func normalizeSentiment(s string) string {
	switch v := strings.ToUpper(strings.TrimSpace(s)); v {
	case "POSITIVE", "NEGATIVE", "NEUTRAL":
		return v
	}
	return "NEUTRAL"
}

func clampConfidence(c float64) float64 {
	switch {
	case c < 0:
		return 0
	case c > 1:
		return 1
	}
	return c
}

func toNews(kind models.NewsType, item llm.NewsItem, symbol, sector, date string) models.StockNews {
	if symbol == "" {
		symbol = strings.ToUpper(strings.TrimSpace(item.Symbol))
	}
	source := strings.TrimSpace(item.Source)
	if source == "" {
		source = sourceAI
	}
	return models.StockNews{
		Type:       kind,
		Symbol:     symbol,
		Sector:     sector,
		Date:       date,
		Headline:   strings.TrimSpace(item.Headline),
		Reason:     strings.TrimSpace(item.Reason),
		Details:    strings.TrimSpace(item.Details),
		Confidence: clampConfidence(item.Confidence),
		Sentiment:  normalizeSentiment(item.Sentiment),
		Source:     source,
	}
}

// SearchNews asks the provider for recent news on a symbol and stores every
// item returned. The same question is answered from cache for NewsSearchTTL.
func (s *Service) SearchNews(ctx context.Context, req SearchRequest) ([]models.StockNews, error) {
	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	req.Query = strings.TrimSpace(req.Query)
	if err := helpers.ValidateStruct(req); err != nil {
		return nil, err
	}
	date, err := s.resolveDate(req.Date)
	if err != nil {
		return nil, err
	}
	if s.ai == nil {
		return nil, llm.ErrDisabled
	}

	hash := cache.GenerateDataHash(map[string]string{"symbol": req.Symbol, "query": req.Query, "date": date})
	var cached []models.StockNews
	if s.llmCache.GetNews(ctx, req.Symbol, hash, &cached) {
		log.Debug().Str("symbol", req.Symbol).Msg("News search served from cache")
		return cached, nil
	}

	var items []llm.NewsItem
	if err := s.ai.AnalyzeJSON(ctx, llm.FormatNewsSearchPrompt(req.Symbol, req.Query, date), &items); err != nil {
		return nil, err
	}

	out := make([]models.StockNews, 0, len(items))
	for _, item := range items {
		if strings.TrimSpace(item.Headline) == "" {
			continue
		}
		n := toNews(models.NewsStock, item, req.Symbol, "", date)
		if err := s.repo.Save(ctx, &n); err != nil {
			return nil, database.WrapDBError("SaveNews", err)
		}
		out = append(out, n)
	}

	if err := s.llmCache.SetNews(ctx, req.Symbol, hash, out, cache.NewsSearchTTL); err != nil && !cache.IsMiss(err) {
		log.Warn().Err(err).Str("symbol", req.Symbol).Msg("Failed to cache news search")
	}
	log.Info().Str("symbol", req.Symbol).Int("items", len(out)).Msg("📰 News search stored")
	return out, nil
}

// List returns stored items matching f, newest first
func (s *Service) List(ctx context.Context, f ListFilter) ([]models.StockNews, error) {
	kind := models.NewsType(strings.ToUpper(strings.TrimSpace(f.Type)))
	switch kind {
	case "", models.NewsMarketAnalysis, models.NewsGapAnalysis, models.NewsSectorLeader, models.NewsStock:
	default:
		return nil, database.NewValidationErrorWithValue("type", "must be one of MARKET_ANALYSIS GAP_ANALYSIS SECTOR_LEADER STOCK_NEWS", f.Type)
	}
	if f.Date != "" && !helpers.IsValidDate(f.Date) {
		return nil, database.NewValidationErrorWithValue("date", "must be YYYY-MM-DD", f.Date)
	}
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}

	items, err := s.repo.List(ctx, newsrepo.Filter{
		Type:   kind,
		Symbol: strings.ToUpper(strings.TrimSpace(f.Symbol)),
		Date:   f.Date,
		Limit:  f.Limit,
	})
	if err != nil {
		return nil, database.WrapDBError("ListNews", err)
	}
	return items, nil
}

// BySymbol returns the newest items for one symbol
func (s *Service) BySymbol(ctx context.Context, symbol string, limit int) ([]models.StockNews, error) {
	if strings.TrimSpace(symbol) == "" {
		return nil, database.NewValidationError("symbol", "is required")
	}
	return s.List(ctx, ListFilter{Symbol: symbol, Limit: limit})
}

// Delete removes one item
func (s *Service) Delete(ctx context.Context, id int64) error {
	found, err := s.repo.Delete(ctx, id)
	if err != nil {
		return database.WrapDBError("DeleteNews", err)
	}
	if !found {
		return database.NewNotFoundErrorWithID("news item", id)
	}
	return nil
}

// Cleanup hard-deletes items older than daysToKeep days and returns how many went
func (s *Service) Cleanup(ctx context.Context, daysToKeep int) (int64, error) {
	if daysToKeep <= 0 {
		return 0, database.NewValidationErrorWithValue("daysToKeep", "must be at least 1", daysToKeep)
	}
	cutoff := s.now().Add(-time.Duration(daysToKeep) * 24 * time.Hour)
	deleted, err := s.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, database.WrapDBError("CleanupNews", err)
	}
	log.Info().Int("days_to_keep", daysToKeep).Int64("deleted", deleted).Msg("🧹 Old news removed")
	return deleted, nil
}
