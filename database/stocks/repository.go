package stocks

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	models "nse-pulse/database/models_pkg"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ChunkSize is the number of rows written per transaction in batch upserts
const ChunkSize = 500

// Filter narrows a stock master listing
type Filter struct {
	Sector   string
	Industry string
	Query    string
	Limit    int
	Offset   int
}

// Repository handles database operations for the stock master
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new stock master repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// List retrieves stock master rows with filters, ordered by symbol
func (r *Repository) List(ctx context.Context, f Filter) ([]models.StockMaster, error) {
	var rows []models.StockMaster
	query := r.db.WithContext(ctx).Order("symbol ASC")

	if f.Sector != "" {
		query = query.Where("sector = ?", f.Sector)
	}
	if f.Industry != "" {
		query = query.Where("industry = ?", f.Industry)
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		like := "%" + strings.ToUpper(q) + "%"
		query = query.Where("UPPER(symbol) LIKE ? OR UPPER(company_name) LIKE ?", like, like)
	}
	if f.Limit > 0 {
		query = query.Limit(f.Limit)
	}
	if f.Offset > 0 {
		query = query.Offset(f.Offset)
	}

	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	return rows, nil
}

// All returns the whole stock master
func (r *Repository) All(ctx context.Context) ([]models.StockMaster, error) {
	var rows []models.StockMaster
	if err := r.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("All: %w", err)
	}
	return rows, nil
}

// Get retrieves one stock by symbol. Returns (nil, nil) when absent.
func (r *Repository) Get(ctx context.Context, symbol string) (*models.StockMaster, error) {
	var row models.StockMaster
	err := r.db.WithContext(ctx).Where("symbol = ?", symbol).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("Get: %w", err)
	}
	return &row, nil
}

// Upsert inserts a stock or replaces its descriptive columns
func (r *Repository) Upsert(ctx context.Context, row *models.StockMaster) error {
	if err := r.upsert(r.db.WithContext(ctx), []models.StockMaster{*row}); err != nil {
		return fmt.Errorf("Upsert: %w", err)
	}
	return nil
}

// UpsertBatch upserts rows in chunks of ChunkSize, each chunk in its own
// transaction. It returns how many rows were committed before any failure.
func (r *Repository) UpsertBatch(ctx context.Context, rows []models.StockMaster) (int, error) {
	committed := 0
	for start := 0; start < len(rows); start += ChunkSize {
		end := start + ChunkSize
		if end > len(rows) {
			end = len(rows)
		}
		chunk := rows[start:end]
		err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return r.upsert(tx, chunk)
		})
		if err != nil {
			return committed, fmt.Errorf("UpsertBatch chunk %d: %w", start/ChunkSize, err)
		}
		committed += len(chunk)
	}
	return committed, nil
}

func (r *Repository) upsert(tx *gorm.DB, rows []models.StockMaster) error {
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "symbol"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"company_name", "sector", "industry", "basic_industry",
			"macro_economic_classification", "market_cap", "free_float_market_cap", "updated_at",
		}),
	}).Create(&rows).Error
}

// Update changes the descriptive columns of an existing stock
func (r *Repository) Update(ctx context.Context, symbol string, updates map[string]interface{}) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.StockMaster{}).Where("symbol = ?", symbol).Updates(updates)
	if res.Error != nil {
		return false, fmt.Errorf("Update: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// LastChange is the most recent observed change for a stock
type LastChange struct {
	PChange float64
	Volume  float64
}

// UpdateLastChanges records the last-known change and volume observed on date
// for existing stocks, one UPDATE per chunk of ChunkSize symbols. Symbols not in
// the master are ignored, and a stock whose last change comes from a later date
// keeps it, so backfilling an older snapshot never rolls values back.
func (r *Repository) UpdateLastChanges(ctx context.Context, date string, changes map[string]LastChange) error {
	if len(changes) == 0 {
		return nil
	}
	symbols := make([]string, 0, len(changes))
	for symbol := range changes {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	now := time.Now().UTC()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for start := 0; start < len(symbols); start += ChunkSize {
			end := start + ChunkSize
			if end > len(symbols) {
				end = len(symbols)
			}
			query, args := lastChangesStatement(symbols[start:end], changes, date, now)
			if err := tx.Exec(query, args...).Error; err != nil {
				return fmt.Errorf("UpdateLastChanges chunk %d: %w", start/ChunkSize, err)
			}
		}
		return nil
	})
}

// lastChangesStatement builds an UPDATE ... FROM (VALUES ...) for symbols
func lastChangesStatement(symbols []string, changes map[string]LastChange, date string, now time.Time) (string, []interface{}) {
	var sb strings.Builder
	args := make([]interface{}, 0, len(symbols)*3+3)

	sb.WriteString("UPDATE stock_master AS m SET last_p_change = v.p_change, last_volume = v.volume, last_change_date = ?, updated_at = ? FROM (VALUES ")
	args = append(args, date, now)
	for i, symbol := range symbols {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, CAST(? AS double precision), CAST(? AS double precision))")
		lc := changes[symbol]
		args = append(args, symbol, lc.PChange, lc.Volume)
	}
	sb.WriteString(") AS v(symbol, p_change, volume) WHERE m.symbol = v.symbol AND (m.last_change_date IS NULL OR m.last_change_date = '' OR m.last_change_date <= ?)")
	args = append(args, date)
	return sb.String(), args
}

// Delete removes a stock. Snapshots keep their symbol strings.
func (r *Repository) Delete(ctx context.Context, symbol string) (bool, error) {
	res := r.db.WithContext(ctx).Where("symbol = ?", symbol).Delete(&models.StockMaster{})
	if res.Error != nil {
		return false, fmt.Errorf("Delete: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Sectors returns the distinct non-empty sectors, sorted
func (r *Repository) Sectors(ctx context.Context) ([]string, error) {
	var sectors []string
	err := r.db.WithContext(ctx).
		Model(&models.StockMaster{}).
		Where("sector <> ''").
		Distinct("sector").
		Order("sector ASC").
		Pluck("sector", &sectors).Error
	if err != nil {
		return nil, fmt.Errorf("Sectors: %w", err)
	}
	return sectors, nil
}
