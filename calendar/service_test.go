package calendar

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nse-pulse/database"
	calrepo "nse-pulse/database/calendar"
	models "nse-pulse/database/models_pkg"
)

type memRepo struct {
	rows       []models.FinancialCalendarEntry
	failAfter  int
	lastFilter calrepo.Filter
}

func (m *memRepo) ExistingKeys(_ context.Context, symbols []string) (map[calrepo.Key]bool, error) {
	want := map[string]bool{}
	for _, s := range symbols {
		want[s] = true
	}
	out := map[calrepo.Key]bool{}
	for _, r := range m.rows {
		if want[r.Symbol] {
			out[calrepo.Key{Symbol: r.Symbol, Date: r.Date, Purpose: r.Purpose}] = true
		}
	}
	return out, nil
}

func (m *memRepo) InsertChunked(_ context.Context, entries []models.FinancialCalendarEntry) (int, error) {
	for i, e := range entries {
		if m.failAfter > 0 && i == m.failAfter {
			return i, errors.New("connection reset")
		}
		e.ID = int64(len(m.rows) + 1)
		m.rows = append(m.rows, e)
	}
	return len(entries), nil
}

func (m *memRepo) List(_ context.Context, f calrepo.Filter) ([]models.FinancialCalendarEntry, error) {
	m.lastFilter = f
	return m.rows, nil
}

func (m *memRepo) Delete(_ context.Context, id int64) (bool, error) {
	for i, r := range m.rows {
		if r.ID == id {
			m.rows = append(m.rows[:i], m.rows[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func TestCanonicalPurpose(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"dividend", PurposeDividend},
		{"Interim Dividend", PurposeDividend},
		{"FINANCIAL RESULTS", PurposeFinancialResults},
		{"Quarterly Results", PurposeFinancialResults},
		{"Stock  Split", PurposeStockSplit},
		{"Face value split (sub-division)", PurposeStockSplit},
		{"Buy Back", PurposeBuyback},
		{"AGM", PurposeAGM},
		{"Annual General Meeting", PurposeAGM},
		{"egm", PurposeEGM},
		{"Fund Raising", PurposeFundRaising},
		{"Board Meeting", PurposeBoardMeeting},
		{"Something else", PurposeOthers},
		{"Management Commentary", PurposeOthers},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, CanonicalPurpose(tt.in))
		})
	}
}

func TestSplitPurposes(t *testing.T) {
	assert.Equal(t, []string{PurposeDividend, PurposeBonus}, SplitPurposes("Dividend/Bonus"))
	assert.Equal(t, []string{PurposeDividend}, SplitPurposes("Dividend / Interim Dividend"))
	assert.Equal(t, []string{PurposeOthers}, SplitPurposes(""))
}

func TestUploadExpandsPurposesAndSkipsDuplicates(t *testing.T) {
	repo := &memRepo{}
	svc := NewService(repo, time.UTC)
	rows := []Entry{{Symbol: "infy", Company: "Infosys", Purpose: "Dividend/Bonus", Date: "05-aug-2024"}}

	res, err := svc.Upload(context.Background(), rows)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Inserted)
	assert.Equal(t, 0, res.Duplicates)
	require.Len(t, repo.rows, 2)
	for _, r := range repo.rows {
		assert.Equal(t, "Dividend/Bonus", r.OriginalPurpose)
		assert.Equal(t, "INFY", r.Symbol)
		assert.Equal(t, "05-Aug-2024", r.Date)
	}
	assert.Equal(t, PurposeDividend, repo.rows[0].Purpose)
	assert.Equal(t, PurposeBonus, repo.rows[1].Purpose)

	res, err = svc.Upload(context.Background(), rows)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Inserted)
	assert.Equal(t, 2, res.Duplicates)
	assert.Len(t, repo.rows, 2)
}

func TestUploadDeduplicatesWithinBatch(t *testing.T) {
	repo := &memRepo{}
	svc := NewService(repo, time.UTC)

	res, err := svc.Upload(context.Background(), []Entry{
		{Symbol: "TCS", Purpose: "Dividend", Date: "10-Sep-2024"},
		{Symbol: "TCS", Purpose: "dividend", Date: "10-SEP-2024"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 1, res.Duplicates)
}

func TestUploadReportsInvalidRows(t *testing.T) {
	svc := NewService(&memRepo{}, time.UTC)

	res, err := svc.Upload(context.Background(), []Entry{
		{Symbol: "", Date: "05-Aug-2024"},
		{Symbol: "A"},
		{Symbol: "B", Date: "2024-08-05"},
		{Symbol: "C", Date: "31-Feb-2024"},
		{Symbol: "D", Date: "05-Aug-2024", Purpose: "Results"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)
	require.Len(t, res.Invalid, 4)
	assert.Equal(t, 1, res.Invalid[0].Row)
	assert.Contains(t, res.Invalid[0].Reason, "Symbol")
	assert.Contains(t, res.Invalid[1].Reason, "required")
	assert.Contains(t, res.Invalid[2].Reason, "DD-MMM-YYYY")
	assert.Equal(t, 4, res.Invalid[3].Row)

	_, err = svc.Upload(context.Background(), nil)
	assert.True(t, database.IsValidation(err))
}

func TestUploadReportsCommittedOnChunkFailure(t *testing.T) {
	repo := &memRepo{failAfter: 1}
	svc := NewService(repo, time.UTC)

	res, err := svc.Upload(context.Background(), []Entry{
		{Symbol: "A", Purpose: "Dividend/Bonus/AGM", Date: "05-Aug-2024"},
	})
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, 1, res.Inserted)
}

func TestListValidatesDates(t *testing.T) {
	repo := &memRepo{}
	svc := NewService(repo, time.UTC)

	_, err := svc.List(context.Background(), ListFilter{From: "yesterday"})
	assert.True(t, database.IsValidation(err))

	_, err = svc.List(context.Background(), ListFilter{From: "2024-08-10", To: "01-Aug-2024"})
	assert.True(t, database.IsValidation(err))

	_, err = svc.List(context.Background(), ListFilter{Symbol: "infy", Purpose: "interim dividend", From: "01-Aug-2024"})
	require.NoError(t, err)
	assert.Equal(t, "INFY", repo.lastFilter.Symbol)
	assert.Equal(t, PurposeDividend, repo.lastFilter.Purpose)
	assert.Equal(t, time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC), repo.lastFilter.From)
}

func TestUpcomingWindow(t *testing.T) {
	repo := &memRepo{}
	svc := NewService(repo, time.FixedZone("IST", 5*3600+1800))
	svc.now = func() time.Time { return time.Date(2024, 8, 4, 20, 0, 0, 0, time.UTC) }

	_, err := svc.Upcoming(context.Background(), 0, "")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 8, 5, 0, 0, 0, 0, time.UTC), repo.lastFilter.From)
	assert.Equal(t, time.Date(2024, 8, 12, 0, 0, 0, 0, time.UTC), repo.lastFilter.To)
}

func TestDelete(t *testing.T) {
	repo := &memRepo{rows: []models.FinancialCalendarEntry{{ID: 7}}}
	svc := NewService(repo, time.UTC)
	require.NoError(t, svc.Delete(context.Background(), 7))
	assert.True(t, database.IsNotFound(svc.Delete(context.Background(), 7)))
}
