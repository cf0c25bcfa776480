// Package calendar stores and searches the financial calendar of corporate
// events uploaded from exchange announcements.
package calendar

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"nse-pulse/database"
	calrepo "nse-pulse/database/calendar"
	models "nse-pulse/database/models_pkg"
	"nse-pulse/helpers"
	"nse-pulse/metrics"
)

// DefaultUpcomingDays is the window of Upcoming when none is given
const DefaultUpcomingDays = 7

var dateRe = regexp.MustCompile(`^\d{2}-[A-Za-z]{3}-\d{4}$`)

// Repository is the calendar persistence
type Repository interface {
	ExistingKeys(ctx context.Context, symbols []string) (map[calrepo.Key]bool, error)
	InsertChunked(ctx context.Context, entries []models.FinancialCalendarEntry) (int, error)
	List(ctx context.Context, f calrepo.Filter) ([]models.FinancialCalendarEntry, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

// Entry is one uploaded row
type Entry struct {
	Symbol  string `json:"Symbol"`
	Company string `json:"Company"`
	Purpose string `json:"Purpose"`
	Date    string `json:"Date"`
}

// InvalidRow reports a skipped upload row; Row is 1-based
type InvalidRow struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// UploadResult summarizes an upload
type UploadResult struct {
	Inserted   int          `json:"inserted"`
	Duplicates int          `json:"duplicates"`
	Invalid    []InvalidRow `json:"invalid"`
}

// ListFilter narrows a listing. From and To accept YYYY-MM-DD or DD-MMM-YYYY.
type ListFilter struct {
	Symbol  string
	Purpose string
	From    string
	To      string
	Limit   int
}

// Service manages the financial calendar
type Service struct {
	repo Repository
	loc  *time.Location
	now  func() time.Time
}

// NewService creates a new calendar service
func NewService(repo Repository, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{repo: repo, loc: loc, now: time.Now}
}

// Upload validates rows, expands "/"-joined purposes into one entry each and
// inserts everything not already stored. Writes happen in independent chunks;
// when one fails, the result reports the entries committed before it.
func (s *Service) Upload(ctx context.Context, rows []Entry) (*UploadResult, error) {
	if len(rows) == 0 {
		return nil, database.NewValidationError("data", "must contain at least one entry")
	}

	res := &UploadResult{Invalid: []InvalidRow{}}
	candidates := make([]models.FinancialCalendarEntry, 0, len(rows))
	symbolSet := make(map[string]bool)

	for i, row := range rows {
		symbol := strings.ToUpper(strings.TrimSpace(row.Symbol))
		rawDate := strings.TrimSpace(row.Date)
		switch {
		case symbol == "":
			res.Invalid = append(res.Invalid, InvalidRow{Row: i + 1, Reason: "Symbol is required"})
			continue
		case rawDate == "":
			res.Invalid = append(res.Invalid, InvalidRow{Row: i + 1, Reason: "Date is required"})
			continue
		case !dateRe.MatchString(rawDate):
			res.Invalid = append(res.Invalid, InvalidRow{Row: i + 1, Reason: fmt.Sprintf("Date %q must be formatted as DD-MMM-YYYY", rawDate)})
			continue
		}
		eventDate, ok := helpers.ParseNSEDate(rawDate)
		if !ok {
			res.Invalid = append(res.Invalid, InvalidRow{Row: i + 1, Reason: fmt.Sprintf("Date %q is not a calendar date", rawDate)})
			continue
		}

		original := strings.TrimSpace(row.Purpose)
		for _, purpose := range SplitPurposes(original) {
			candidates = append(candidates, models.FinancialCalendarEntry{
				Symbol:          symbol,
				Company:         strings.TrimSpace(row.Company),
				Purpose:         purpose,
				OriginalPurpose: original,
				Date:            helpers.FormatNSEDate(eventDate),
				EventDate:       eventDate,
			})
		}
		symbolSet[symbol] = true
	}

	symbols := make([]string, 0, len(symbolSet))
	for sym := range symbolSet {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	existing, err := s.repo.ExistingKeys(ctx, symbols)
	if err != nil {
		return nil, database.WrapDBError("CalendarExistingKeys", err)
	}

	fresh := make([]models.FinancialCalendarEntry, 0, len(candidates))
	for _, c := range candidates {
		key := calrepo.Key{Symbol: c.Symbol, Date: c.Date, Purpose: c.Purpose}
		if existing[key] {
			res.Duplicates++
			continue
		}
		existing[key] = true
		fresh = append(fresh, c)
	}

	res.Inserted, err = s.repo.InsertChunked(ctx, fresh)
	metrics.CalendarRows.WithLabelValues("inserted").Add(float64(res.Inserted))
	metrics.CalendarRows.WithLabelValues("duplicate").Add(float64(res.Duplicates))
	metrics.CalendarRows.WithLabelValues("invalid").Add(float64(len(res.Invalid)))
	if err != nil {
		log.Error().Err(err).Int("committed", res.Inserted).Int("pending", len(fresh)).Msg("Financial calendar upload failed part way")
		return res, database.WrapDBError("CalendarInsert", err)
	}

	log.Info().
		Int("rows", len(rows)).
		Int("inserted", res.Inserted).
		Int("duplicates", res.Duplicates).
		Int("invalid", len(res.Invalid)).
		Msg("📅 Financial calendar uploaded")
	return res, nil
}

func parseFilterDate(field, v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := helpers.ParseDate(v); err == nil {
		return t, nil
	}
	if t, ok := helpers.ParseNSEDate(v); ok {
		return t, nil
	}
	return time.Time{}, database.NewValidationErrorWithValue(field, "must be YYYY-MM-DD or DD-MMM-YYYY", v)
}

// List returns entries matching f ordered by event date
func (s *Service) List(ctx context.Context, f ListFilter) ([]models.FinancialCalendarEntry, error) {
	from, err := parseFilterDate("from", f.From)
	if err != nil {
		return nil, err
	}
	to, err := parseFilterDate("to", f.To)
	if err != nil {
		return nil, err
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return nil, database.NewValidationError("to", "must not be before from")
	}

	purpose := strings.TrimSpace(f.Purpose)
	if purpose != "" {
		purpose = CanonicalPurpose(purpose)
	}
	rows, err := s.repo.List(ctx, calrepo.Filter{
		Symbol:  strings.ToUpper(strings.TrimSpace(f.Symbol)),
		Purpose: purpose,
		From:    from,
		To:      to,
		Limit:   f.Limit,
	})
	if err != nil {
		return nil, database.WrapDBError("CalendarList", err)
	}
	return rows, nil
}

// Upcoming returns entries from today through the next days days
func (s *Service) Upcoming(ctx context.Context, days int, purpose string) ([]models.FinancialCalendarEntry, error) {
	if days <= 0 {
		days = DefaultUpcomingDays
	}
	if days > 366 {
		return nil, database.NewValidationErrorWithValue("days", "must be at most 366", days)
	}
	today := helpers.StartOfDay(s.now(), s.loc)
	end := today.AddDate(0, 0, days)

	if p := strings.TrimSpace(purpose); p != "" {
		purpose = CanonicalPurpose(p)
	}
	rows, err := s.repo.List(ctx, calrepo.Filter{
		Purpose: purpose,
		From:    time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC),
		To:      time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		return nil, database.WrapDBError("CalendarUpcoming", err)
	}
	return rows, nil
}

// Delete removes one entry
func (s *Service) Delete(ctx context.Context, id int64) error {
	found, err := s.repo.Delete(ctx, id)
	if err != nil {
		return database.WrapDBError("CalendarDelete", err)
	}
	if !found {
		return database.NewNotFoundErrorWithID("calendar entry", id)
	}
	return nil
}
