// Package stocks manages the stock master: the symbol to company and taxonomy
// mapping the breakdowns and the intraday fallback chain rely on.
package stocks

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/rs/zerolog/log"

	"nse-pulse/database"
	models "nse-pulse/database/models_pkg"
	stockrepo "nse-pulse/database/stocks"
	"nse-pulse/helpers"
)

// Repository is the stock master persistence
type Repository interface {
	List(ctx context.Context, f stockrepo.Filter) ([]models.StockMaster, error)
	Get(ctx context.Context, symbol string) (*models.StockMaster, error)
	Upsert(ctx context.Context, row *models.StockMaster) error
	UpsertBatch(ctx context.Context, rows []models.StockMaster) (int, error)
	Update(ctx context.Context, symbol string, updates map[string]interface{}) (bool, error)
	Delete(ctx context.Context, symbol string) (bool, error)
	Sectors(ctx context.Context) ([]string, error)
}

// StockInput is the body for creating a stock
type StockInput struct {
	Symbol                      string  `json:"symbol" validate:"required,max=32"`
	CompanyName                 string  `json:"companyName" validate:"max=255"`
	Sector                      string  `json:"sector"`
	Industry                    string  `json:"industry"`
	BasicIndustry               string  `json:"basicIndustry"`
	MacroEconomicClassification string  `json:"macroEconomicClassification"`
	MarketCap                   float64 `json:"marketCap" validate:"min=0"`
	FreeFloatMarketCap          float64 `json:"freeFloatMarketCap" validate:"min=0"`
}

// StockUpdate is the body for updating a stock; nil fields are left alone
type StockUpdate struct {
	CompanyName                 *string  `json:"companyName"`
	Sector                      *string  `json:"sector"`
	Industry                    *string  `json:"industry"`
	BasicIndustry               *string  `json:"basicIndustry"`
	MacroEconomicClassification *string  `json:"macroEconomicClassification"`
	MarketCap                   *float64 `json:"marketCap"`
	FreeFloatMarketCap          *float64 `json:"freeFloatMarketCap"`
}

// ImportResult summarizes a file import
type ImportResult struct {
	Parsed   int `json:"parsed"`
	Skipped  int `json:"skipped"`
	Upserted int `json:"upserted"`
}

// Service manages the stock master
type Service struct {
	repo Repository
}

// NewService creates a new stock master service
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns stocks matching f
func (s *Service) List(ctx context.Context, f stockrepo.Filter) ([]models.StockMaster, error) {
	rows, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, database.WrapDBError("StockList", err)
	}
	return rows, nil
}

// Get returns one stock or a NotFoundError
func (s *Service) Get(ctx context.Context, symbol string) (*models.StockMaster, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	row, err := s.repo.Get(ctx, symbol)
	if err != nil {
		return nil, database.WrapDBError("StockGet", err)
	}
	if row == nil {
		return nil, database.NewNotFoundErrorWithID("stock", symbol)
	}
	return row, nil
}

// Upsert validates and stores one stock
func (s *Service) Upsert(ctx context.Context, in StockInput) (*models.StockMaster, error) {
	in.Symbol = strings.ToUpper(strings.TrimSpace(in.Symbol))
	if err := helpers.ValidateStruct(in); err != nil {
		return nil, err
	}
	row := &models.StockMaster{
		Symbol:                      in.Symbol,
		CompanyName:                 strings.TrimSpace(in.CompanyName),
		Sector:                      strings.TrimSpace(in.Sector),
		Industry:                    strings.TrimSpace(in.Industry),
		BasicIndustry:               strings.TrimSpace(in.BasicIndustry),
		MacroEconomicClassification: strings.TrimSpace(in.MacroEconomicClassification),
		MarketCap:                   in.MarketCap,
		FreeFloatMarketCap:          in.FreeFloatMarketCap,
	}
	if err := s.repo.Upsert(ctx, row); err != nil {
		return nil, database.WrapDBError("StockUpsert", err)
	}
	return row, nil
}

// Update applies the non-nil fields of u to symbol
func (s *Service) Update(ctx context.Context, symbol string, u StockUpdate) (*models.StockMaster, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	updates := map[string]interface{}{}
	setStr := func(col string, v *string) {
		if v != nil {
			updates[col] = strings.TrimSpace(*v)
		}
	}
	setStr("company_name", u.CompanyName)
	setStr("sector", u.Sector)
	setStr("industry", u.Industry)
	setStr("basic_industry", u.BasicIndustry)
	setStr("macro_economic_classification", u.MacroEconomicClassification)
	if u.MarketCap != nil {
		if *u.MarketCap < 0 {
			return nil, database.NewValidationErrorWithValue("marketCap", "must be at least 0", *u.MarketCap)
		}
		updates["market_cap"] = *u.MarketCap
	}
	if u.FreeFloatMarketCap != nil {
		if *u.FreeFloatMarketCap < 0 {
			return nil, database.NewValidationErrorWithValue("freeFloatMarketCap", "must be at least 0", *u.FreeFloatMarketCap)
		}
		updates["free_float_market_cap"] = *u.FreeFloatMarketCap
	}
	if len(updates) == 0 {
		return nil, database.NewValidationError("body", "no fields to update")
	}

	found, err := s.repo.Update(ctx, symbol, updates)
	if err != nil {
		return nil, database.WrapDBError("StockUpdate", err)
	}
	if !found {
		return nil, database.NewNotFoundErrorWithID("stock", symbol)
	}
	return s.Get(ctx, symbol)
}

// Delete removes a stock
func (s *Service) Delete(ctx context.Context, symbol string) error {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	found, err := s.repo.Delete(ctx, symbol)
	if err != nil {
		return database.WrapDBError("StockDelete", err)
	}
	if !found {
		return database.NewNotFoundErrorWithID("stock", symbol)
	}
	return nil
}

// Sectors returns the distinct sectors
func (s *Service) Sectors(ctx context.Context) ([]string, error) {
	sectors, err := s.repo.Sectors(ctx)
	if err != nil {
		return nil, database.WrapDBError("StockSectors", err)
	}
	return sectors, nil
}

// Import parses a CSV or XLSX upload and upserts its rows in chunks.
// On a chunk failure the result still reports what was committed before it.
func (s *Service) Import(ctx context.Context, filename string, r io.Reader) (*ImportResult, error) {
	rows, skipped, err := ParseFile(filename, r)
	if errors.Is(err, ErrUnsupportedFormat) {
		return nil, database.NewValidationErrorWithValue("file", err.Error(), filename)
	}
	if err != nil {
		return nil, database.NewValidationError("file", err.Error())
	}

	res := &ImportResult{Parsed: len(rows), Skipped: skipped}
	res.Upserted, err = s.repo.UpsertBatch(ctx, rows)
	if err != nil {
		log.Error().Err(err).Int("committed", res.Upserted).Str("file", filename).Msg("Stock master import failed")
		return res, database.WrapDBError("StockImport", err)
	}

	log.Info().
		Str("file", filename).
		Int("upserted", res.Upserted).
		Int("skipped", skipped).
		Msg("📄 Stock master imported")
	return res, nil
}
