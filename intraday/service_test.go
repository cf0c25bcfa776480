package intraday

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nse-pulse/analysis"
	"nse-pulse/cache"
	"nse-pulse/database"
	models "nse-pulse/database/models_pkg"
	"nse-pulse/reference"
)

type memRepo struct {
	rows  map[string]*models.IntradayAnalysis
	reads int
}

func (m *memRepo) Upsert(_ context.Context, a *models.IntradayAnalysis) error {
	if m.rows == nil {
		m.rows = map[string]*models.IntradayAnalysis{}
	}
	cp := *a
	m.rows[a.Date] = &cp
	return nil
}

func (m *memRepo) GetByDate(_ context.Context, date string) (*models.IntradayAnalysis, error) {
	m.reads++
	return m.rows[date], nil
}

func (m *memRepo) Dates(context.Context, int) ([]string, error) {
	var out []string
	for d := range m.rows {
		out = append(out, d)
	}
	return out, nil
}

type fakePreopen struct {
	snap *models.PreopenSnapshot
	err  error
}

func (f fakePreopen) Latest(_ context.Context, date string) (*models.PreopenSnapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.snap == nil {
		return nil, database.NewNotFoundErrorWithID("preopen snapshot", date)
	}
	return f.snap, nil
}

type fakeMaster []models.StockMaster

func (f fakeMaster) All(context.Context) ([]models.StockMaster, error) { return f, nil }

func refStore() *reference.Store {
	return reference.NewStaticStore(&reference.Data{
		Sectors: []analysis.Group{
			{Name: "IT", Stocks: []analysis.Constituent{{Symbol: "INFY"}, {Symbol: "TCS"}}},
			{Name: "Banks", Stocks: []analysis.Constituent{{Symbol: "HDFCBANK"}, {Symbol: "SBIN"}}},
		},
		Industries: []analysis.Group{
			{Name: "Software", Stocks: []analysis.Constituent{{Symbol: "INFY"}, {Symbol: "TCS"}}},
		},
	})
}

func ptr(f float64) *float64 { return &f }

func newTestService(repo *memRepo, pre PreopenSource, master MasterSource, store cache.Store) *Service {
	return NewService(Deps{
		Repo:      repo,
		Preopen:   pre,
		Master:    master,
		Reference: refStore(),
		Cache:     store,
		Location:  time.UTC,
	})
}

func TestRunAnalysisUsesFallbackChain(t *testing.T) {
	repo := &memRepo{}
	pre := fakePreopen{snap: &models.PreopenSnapshot{Securities: []models.PreopenSecurity{
		{Symbol: "INFY", PChange: 2, FinalQuantity: 100},
		{Symbol: "HDFCBANK", PChange: -1, FinalQuantity: 50},
	}}}
	master := fakeMaster{
		{Symbol: "TCS", LastPChange: ptr(1.5), LastVolume: 30},
		{Symbol: "SBIN"},
	}
	svc := newTestService(repo, pre, master, nil)

	res, err := svc.RunAnalysis(context.Background(), "2024-08-05")
	require.NoError(t, err)
	assert.True(t, res.HasPreopenData)
	require.Len(t, res.Sectors, 2)

	it := res.Sectors[0]
	assert.Equal(t, "IT", it.Name)
	assert.Equal(t, 2, it.Advances)
	assert.Equal(t, 2.0, it.ADR)
	assert.Equal(t, 130.0, it.TotalVolume)
	assert.Equal(t, 100.0, it.PreopenVolume)

	banks := res.Sectors[1]
	assert.Equal(t, 1, banks.Declines)
	assert.Equal(t, 1, banks.Unchanged)

	m := res.Market.Data()
	assert.Equal(t, 4, m.TotalStocks)
	assert.Equal(t, 2, m.Advances)
	assert.Equal(t, 1, m.Declines)
	assert.Equal(t, 2.0, m.ADR)

	assert.Contains(t, repo.rows, "2024-08-05")
}

func TestRunAnalysisWithoutPreopen(t *testing.T) {
	svc := newTestService(&memRepo{}, fakePreopen{}, fakeMaster{{Symbol: "INFY", LastPChange: ptr(-0.5)}}, nil)

	res, err := svc.RunAnalysis(context.Background(), "2024-08-05")
	require.NoError(t, err)
	assert.False(t, res.HasPreopenData)
	assert.Equal(t, 1, res.Market.Data().Declines)
}

func TestRunAnalysisForPastDateSkipsLaterChanges(t *testing.T) {
	master := fakeMaster{
		{Symbol: "INFY", LastPChange: ptr(4), LastVolume: 40, LastChangeDate: "2024-08-06"},
		{Symbol: "TCS", LastPChange: ptr(-1), LastVolume: 10, LastChangeDate: "2024-08-02"},
	}
	svc := newTestService(&memRepo{}, fakePreopen{}, master, nil)

	res, err := svc.RunAnalysis(context.Background(), "2024-08-05")
	require.NoError(t, err)

	m := res.Market.Data()
	assert.Equal(t, 0, m.Advances)
	assert.Equal(t, 1, m.Declines)
	assert.Equal(t, 10.0, m.TotalVolume)
}

func TestRunAnalysisPropagatesLoadErrors(t *testing.T) {
	svc := newTestService(&memRepo{}, fakePreopen{err: errors.New("db down")}, fakeMaster{}, nil)
	_, err := svc.RunAnalysis(context.Background(), "2024-08-05")
	assert.Error(t, err)
}

func TestRunAnalysisRequiresReference(t *testing.T) {
	svc := NewService(Deps{
		Repo:      &memRepo{},
		Preopen:   fakePreopen{},
		Master:    fakeMaster{},
		Reference: reference.NewStaticStore(&reference.Data{}),
	})
	_, err := svc.RunAnalysis(context.Background(), "2024-08-05")
	assert.True(t, database.IsValidation(err))
}

func TestLoadPrefersCache(t *testing.T) {
	repo := &memRepo{}
	store := cache.NewLocalStore(time.Minute, time.Minute)
	svc := newTestService(repo, fakePreopen{}, fakeMaster{}, store)

	_, err := svc.RunAnalysis(context.Background(), "2024-08-05")
	require.NoError(t, err)

	got, err := svc.Load(context.Background(), "2024-08-05")
	require.NoError(t, err)
	assert.Equal(t, "2024-08-05", got.Date)
	assert.Len(t, got.Sectors, 2)
	assert.Equal(t, 0, repo.reads)
}

func TestLoadFallsBackToDatabaseThenNotFound(t *testing.T) {
	repo := &memRepo{}
	require.NoError(t, repo.Upsert(context.Background(), &models.IntradayAnalysis{Date: "2024-08-02"}))
	svc := newTestService(repo, fakePreopen{}, fakeMaster{}, cache.NewLocalStore(time.Minute, time.Minute))

	got, err := svc.Load(context.Background(), "2024-08-02")
	require.NoError(t, err)
	assert.Equal(t, "2024-08-02", got.Date)
	assert.Equal(t, 1, repo.reads)

	_, err = svc.Load(context.Background(), "2024-08-01")
	assert.True(t, database.IsNotFound(err))
}

type failingStore struct{ sets int }

func (f *failingStore) Set(context.Context, string, interface{}, time.Duration) error {
	f.sets++
	return errors.New("cache down")
}
func (f *failingStore) Get(context.Context, string, interface{}) error { return cache.ErrMiss }
func (f *failingStore) Delete(context.Context, ...string) error { return nil }

func TestLoadSurvivesCacheWriteFailure(t *testing.T) {
	repo := &memRepo{}
	require.NoError(t, repo.Upsert(context.Background(), &models.IntradayAnalysis{Date: "2024-08-02"}))
	store := &failingStore{}
	svc := newTestService(repo, fakePreopen{}, fakeMaster{}, store)

	got, err := svc.Load(context.Background(), "2024-08-02")
	require.NoError(t, err)
	assert.Equal(t, "2024-08-02", got.Date)
	assert.Equal(t, 1, store.sets)
}
