package news

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"nse-pulse/cache"
	"nse-pulse/database"
	models "nse-pulse/database/models_pkg"
	newsrepo "nse-pulse/database/news"
	"nse-pulse/llm"
)

type memRepo struct {
	items  []models.StockNews
	cutoff time.Time
}

func (m *memRepo) Save(_ context.Context, item *models.StockNews) error {
	item.ID = int64(len(m.items) + 1)
	m.items = append(m.items, *item)
	return nil
}

func (m *memRepo) List(_ context.Context, f newsrepo.Filter) ([]models.StockNews, error) {
	var out []models.StockNews
	for _, it := range m.items {
		if (f.Type == "" || it.Type == f.Type) && (f.Symbol == "" || it.Symbol == f.Symbol) {
			out = append(out, it)
		}
	}
	return out, nil
}

func (m *memRepo) Delete(_ context.Context, id int64) (bool, error) {
	for i, it := range m.items {
		if it.ID == id {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *memRepo) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	m.cutoff = cutoff
	return 3, nil
}

type mockAnalyzer struct{ mock.Mock }

func (m *mockAnalyzer) AnalyzeJSON(ctx context.Context, prompt string, dest interface{}) error {
	args := m.Called(ctx, prompt, dest)
	return args.Error(0)
}

type fakePreopen struct{ snap *models.PreopenSnapshot }

func (f fakePreopen) Latest(_ context.Context, date string) (*models.PreopenSnapshot, error) {
	if f.snap == nil {
		return nil, database.NewNotFoundErrorWithHint("pre-open snapshot", date, "No pre-open data found for "+date+".")
	}
	return f.snap, nil
}

type fakeMaster []models.StockMaster

func (f fakeMaster) All(context.Context) ([]models.StockMaster, error) { return f, nil }

var fixedNow = time.Date(2024, 8, 5, 3, 30, 0, 0, time.UTC)

func newTestService(repo *memRepo, ai Analyzer, preopen PreopenSource, master MasterSource) *Service {
	svc := NewService(repo, ai, cache.NewLLMCache(cache.NewLocalStore(time.Minute, time.Minute)), preopen, master, time.FixedZone("IST", 5*3600+1800))
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func TestSearchNewsStoresAndCaches(t *testing.T) {
	repo := &memRepo{}
	ai := &mockAnalyzer{}
	ai.On("AnalyzeJSON", mock.Anything, mock.MatchedBy(func(p string) bool { return strings.Contains(p, "**INFY**") }), mock.Anything).
		Run(func(args mock.Arguments) {
			dest := args.Get(2).(*[]llm.NewsItem)
			*dest = []llm.NewsItem{
				{Headline: "Q1 beat", Sentiment: "positive", Confidence: 1.4},
				{Headline: " "},
				{Headline: "Guidance", Sentiment: "bullish", Confidence: 0.6, Source: "Exchange filing"},
			}
		}).
		Return(nil).Once()

	svc := newTestService(repo, ai, fakePreopen{}, fakeMaster{})
	got, err := svc.SearchNews(context.Background(), SearchRequest{Symbol: "infy", Query: "results"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, models.NewsStock, got[0].Type)
	assert.Equal(t, "INFY", got[0].Symbol)
	assert.Equal(t, "2024-08-05", got[0].Date)
	assert.Equal(t, "POSITIVE", got[0].Sentiment)
	assert.Equal(t, 1.0, got[0].Confidence)
	assert.Equal(t, "ai", got[0].Source)
	assert.Equal(t, "NEUTRAL", got[1].Sentiment)
	assert.Equal(t, "Exchange filing", got[1].Source)
	assert.Len(t, repo.items, 2)

	again, err := svc.SearchNews(context.Background(), SearchRequest{Symbol: "INFY", Query: "results"})
	require.NoError(t, err)
	assert.Len(t, again, 2)
	assert.Len(t, repo.items, 2, "cached answer is not stored twice")
	ai.AssertNumberOfCalls(t, "AnalyzeJSON", 1)
}

func TestSearchNewsValidation(t *testing.T) {
	svc := newTestService(&memRepo{}, &mockAnalyzer{}, fakePreopen{}, fakeMaster{})

	_, err := svc.SearchNews(context.Background(), SearchRequest{Symbol: "  "})
	assert.True(t, database.IsValidation(err))

	_, err = svc.SearchNews(context.Background(), SearchRequest{Symbol: "TCS", Date: "05-08-2024"})
	assert.True(t, database.IsValidation(err))
}

func morningFixture() (*models.PreopenSnapshot, fakeMaster) {
	snap := &models.PreopenSnapshot{
		ID:   "s1",
		Date: "2024-08-05",
		Securities: []models.PreopenSecurity{
			{Symbol: "A", PChange: 5, FinalPrice: 105, PreviousClose: 100},
			{Symbol: "B", PChange: 2, FinalPrice: 102, PreviousClose: 100},
			{Symbol: "C", PChange: -0.5, FinalPrice: 99.5, PreviousClose: 100},
			{Symbol: "D", PChange: -4, FinalPrice: 96, PreviousClose: 100},
		},
	}
	master := fakeMaster{
		{Symbol: "A", Sector: "IT"},
		{Symbol: "B", Sector: "IT"},
		{Symbol: "C", Sector: "Bank"},
		{Symbol: "D", Sector: "Bank"},
	}
	return snap, master
}

func drain(ch <-chan Event) []Event {
	var out []Event
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}

func TestMorningAnalysisStreamsItems(t *testing.T) {
	snap, master := morningFixture()
	repo := &memRepo{}
	ai := &mockAnalyzer{}
	ai.On("AnalyzeJSON", mock.Anything, mock.MatchedBy(func(p string) bool { return strings.Contains(p, "**D**") }), mock.Anything).
		Return(errors.New("provider hiccup"))
	ai.On("AnalyzeJSON", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			item := args.Get(2).(*llm.NewsItem)
			*item = llm.NewsItem{Headline: "headline", Sentiment: "positive", Confidence: 0.8}
		}).
		Return(nil)

	svc := newTestService(repo, ai, fakePreopen{snap: snap}, master)
	ch, err := svc.MorningAnalysis(context.Background(), MorningRequest{Date: "2024-08-05"})
	require.NoError(t, err)
	events := drain(ch)

	// gaps A, B, D + sectors IT, Bank + market overview
	ai.AssertNumberOfCalls(t, "AnalyzeJSON", 6)

	last := events[len(events)-1]
	assert.Equal(t, EventComplete, last.Type)
	assert.Equal(t, 100, last.Progress)
	assert.Equal(t, MorningSummary{Date: "2024-08-05", Stored: 5, Skipped: 1}, last.Data)

	prev := 0
	items := 0
	for _, ev := range events {
		assert.GreaterOrEqual(t, ev.Progress, prev)
		prev = ev.Progress
		if ev.Type == EventItem {
			items++
		}
	}
	assert.Equal(t, 5, items)

	byType := map[models.NewsType][]models.StockNews{}
	for _, it := range repo.items {
		byType[it.Type] = append(byType[it.Type], it)
	}
	require.Len(t, byType[models.NewsGapAnalysis], 2)
	assert.Equal(t, "A", byType[models.NewsGapAnalysis][0].Symbol)
	require.Len(t, byType[models.NewsSectorLeader], 2)
	assert.Equal(t, "IT", byType[models.NewsSectorLeader][0].Sector)
	assert.Len(t, byType[models.NewsMarketAnalysis], 1)
}

func TestMorningAnalysisWithoutSnapshot(t *testing.T) {
	ai := &mockAnalyzer{}
	svc := newTestService(&memRepo{}, ai, fakePreopen{}, fakeMaster{})

	ch, err := svc.MorningAnalysis(context.Background(), MorningRequest{})
	require.NoError(t, err)
	events := drain(ch)

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, EventError, last.Type)
	assert.Contains(t, last.Message, "No pre-open data found for 2024-08-05")
	ai.AssertNotCalled(t, "AnalyzeJSON", mock.Anything, mock.Anything, mock.Anything)
}

func TestMorningAnalysisStopsOnCancel(t *testing.T) {
	snap, master := morningFixture()
	repo := &memRepo{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ai := &mockAnalyzer{}
	ai.On("AnalyzeJSON", mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(context.Canceled)

	svc := newTestService(repo, ai, fakePreopen{snap: snap}, master)
	ch, err := svc.MorningAnalysis(ctx, MorningRequest{Date: "2024-08-05"})
	require.NoError(t, err)

	for _, ev := range drain(ch) {
		assert.NotEqual(t, EventComplete, ev.Type)
		assert.NotEqual(t, EventItem, ev.Type)
	}
	ai.AssertNumberOfCalls(t, "AnalyzeJSON", 1)
	assert.Empty(t, repo.items)
}

func TestMorningAnalysisRequiresProvider(t *testing.T) {
	svc := newTestService(&memRepo{}, nil, fakePreopen{}, fakeMaster{})
	_, err := svc.MorningAnalysis(context.Background(), MorningRequest{})
	assert.ErrorIs(t, err, llm.ErrDisabled)

	_, err = svc.MorningAnalysis(context.Background(), MorningRequest{Date: "yesterday"})
	assert.True(t, database.IsValidation(err))
}

func TestCleanup(t *testing.T) {
	repo := &memRepo{}
	svc := newTestService(repo, nil, fakePreopen{}, fakeMaster{})

	_, err := svc.Cleanup(context.Background(), 0)
	assert.True(t, database.IsValidation(err))

	n, err := svc.Cleanup(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, fixedNow.Add(-7*24*time.Hour), repo.cutoff)
}

func TestListAndDelete(t *testing.T) {
	repo := &memRepo{items: []models.StockNews{
		{ID: 1, Type: models.NewsStock, Symbol: "TCS"},
		{ID: 2, Type: models.NewsGapAnalysis, Symbol: "INFY"},
	}}
	svc := newTestService(repo, nil, fakePreopen{}, fakeMaster{})

	_, err := svc.List(context.Background(), ListFilter{Type: "rumour"})
	assert.True(t, database.IsValidation(err))

	got, err := svc.List(context.Background(), ListFilter{Type: "gap_analysis"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "INFY", got[0].Symbol)

	got, err = svc.BySymbol(context.Background(), "tcs", 0)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	require.NoError(t, svc.Delete(context.Background(), 1))
	assert.True(t, database.IsNotFound(svc.Delete(context.Background(), 1)))
}
