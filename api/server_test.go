package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"nse-pulse/calendar"
	"nse-pulse/database"
	models "nse-pulse/database/models_pkg"
	"nse-pulse/llm"
	"nse-pulse/market"
	"nse-pulse/news"
	"nse-pulse/notifications"
	"nse-pulse/stocks"
)

type mockPreopen struct {
	PreopenService
	mock.Mock
}

func (m *mockPreopen) Receive(ctx context.Context, req market.ReceiveRequest) (*market.ReceiveResult, error) {
	args := m.Called(req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*market.ReceiveResult), args.Error(1)
}

func (m *mockPreopen) Gaps(ctx context.Context, date string, limit int) (*market.GapsResult, error) {
	args := m.Called(date, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*market.GapsResult), args.Error(1)
}

func (m *mockPreopen) ListDates(ctx context.Context, limit int) ([]string, error) {
	args := m.Called(limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type fakeWebhooks struct {
	WebhookService
	got notifications.AlertPayload
}

func (f *fakeWebhooks) Receive(_ context.Context, id string, p notifications.AlertPayload) (*models.WebhookData, error) {
	if id != "wh-1" {
		return nil, database.NewNotFoundErrorWithID("webhook", id)
	}
	f.got = p
	return &models.WebhookData{ID: "ev-1", WebhookID: id, Stocks: notifications.SplitList(p.Stocks)}, nil
}

type fakeNews struct {
	NewsService
	events  []news.Event
	err     error
	started bool
}

func (f *fakeNews) MorningAnalysis(context.Context, news.MorningRequest) (<-chan news.Event, error) {
	f.started = true
	if f.err != nil {
		return nil, f.err
	}
	ch := make(chan news.Event, len(f.events))
	for _, ev := range f.events {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

type fakeCalendar struct {
	CalendarService
	deleted int64
}

func (f *fakeCalendar) Delete(_ context.Context, id int64) error {
	f.deleted = id
	return nil
}

type fakeStocks struct {
	StockService
	filename string
	body     string
}

func (f *fakeStocks) Import(_ context.Context, filename string, r io.Reader) (*stocks.ImportResult, error) {
	b, _ := io.ReadAll(r)
	f.filename, f.body = filename, string(b)
	return &stocks.ImportResult{Parsed: 1, Upserted: 1}, nil
}

type response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

func do(t *testing.T, h http.Handler, method, path string, body io.Reader, contentType string) (*httptest.ResponseRecorder, response) {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env response
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func newTestServer(svc Services, opts Options) http.Handler {
	return NewServer(svc, nil, opts).Routes()
}

func TestPreopenReceiveAndErrors(t *testing.T) {
	pre := &mockPreopen{}
	pre.On("Receive", mock.MatchedBy(func(req market.ReceiveRequest) bool { return req.Source == "nse" })).
		Return(&market.ReceiveResult{ID: "s1", Date: "2024-08-05", TotalStocks: 2}, nil)
	pre.On("Receive", mock.Anything).
		Return(nil, database.NewValidationError("data", "must be an array of records"))
	h := newTestServer(Services{Preopen: pre}, Options{})

	rec, env := do(t, h, http.MethodPost, "/api/preopen/receive", strings.NewReader(`{"source":"nse","data":[]}`), "application/json")
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, env.Success)
	assert.JSONEq(t, `{"id":"s1","date":"2024-08-05","totalStocks":2,"skipped":0}`, string(env.Data))

	rec, env = do(t, h, http.MethodPost, "/api/preopen/receive", strings.NewReader(`{"data":{}}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.Success)
	assert.Contains(t, env.Error, "must be an array")

	rec, env = do(t, h, http.MethodPost, "/api/preopen/receive", strings.NewReader(`{not json`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, env.Error, "invalid JSON")
}

func TestGapsQueryAndNotFoundHint(t *testing.T) {
	hint := "No pre-open data found for 2024-08-05. Ingest data for this date or choose another date."
	pre := &mockPreopen{}
	pre.On("Gaps", "2024-08-05", 7).Return(nil, database.NewNotFoundErrorWithHint("pre-open snapshot", "2024-08-05", hint))
	pre.On("Gaps", "2024-08-06", 10).Return(&market.GapsResult{Date: "2024-08-06"}, nil)
	h := newTestServer(Services{Preopen: pre}, Options{})

	rec, env := do(t, h, http.MethodGet, "/api/preopen/analysis/gaps/2024-08-05?limit=7", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, hint, env.Error)

	rec, _ = do(t, h, http.MethodGet, "/api/preopen/analysis/gaps/2024-08-06?limit=abc", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	pre.AssertExpectations(t)
}

func TestInternalErrorsHiddenInProduction(t *testing.T) {
	dbErr := database.WrapDBError("PreopenDates", errors.New("connection refused"))
	pre := &mockPreopen{}
	pre.On("ListDates", mock.Anything).Return(nil, dbErr)

	_, env := do(t, newTestServer(Services{Preopen: pre}, Options{Environment: "production"}), http.MethodGet, "/api/preopen/dates", nil, "")
	assert.Equal(t, "Internal server error", env.Error)

	rec, env := do(t, newTestServer(Services{Preopen: pre}, Options{Environment: "development"}), http.MethodGet, "/api/preopen/dates", nil, "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, env.Error, "connection refused")
}

func TestWebhookReceiveFormAndRateLimit(t *testing.T) {
	wh := &fakeWebhooks{}
	h := newTestServer(Services{Webhooks: wh}, Options{RateLimitRPS: 0.001, RateLimitBurst: 2})
	form := "stocks=AAA%2CBBB&trigger_prices=1.5%2C2.75&scan_name=Gap"

	rec, env := do(t, h, http.MethodPost, "/api/webhooks/receive/wh-1", strings.NewReader(form), "application/x-www-form-urlencoded")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	assert.Equal(t, "AAA,BBB", wh.got.Stocks)
	assert.Equal(t, "1.5,2.75", wh.got.TriggerPrices)

	rec, _ = do(t, h, http.MethodPost, "/api/webhooks/receive/unknown", strings.NewReader(form), "application/x-www-form-urlencoded")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, env = do(t, h, http.MethodPost, "/api/webhooks/receive/wh-1", strings.NewReader(form), "application/x-www-form-urlencoded")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.False(t, env.Success)
}

func TestMorningAnalysisStreamsNDJSON(t *testing.T) {
	nw := &fakeNews{events: []news.Event{
		{Type: news.EventProgress, Progress: 0, Message: "Loading"},
		{Type: news.EventComplete, Progress: 100, Message: "done"},
	}}
	h := newTestServer(Services{News: nw}, Options{})

	req := httptest.NewRequest(http.MethodPost, "/api/stock-news/morning-news-analysis", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-ndjson", rec.Header().Get("Content-Type"))

	var lines []news.Event
	sc := bufio.NewScanner(rec.Body)
	for sc.Scan() {
		var ev news.Event
		require.NoError(t, json.Unmarshal(sc.Bytes(), &ev))
		lines = append(lines, ev)
	}
	require.Len(t, lines, 2)
	assert.Equal(t, news.EventComplete, lines[1].Type)
	assert.Equal(t, 100, lines[1].Progress)
}

func TestMorningAnalysisDisabledProvider(t *testing.T) {
	h := newTestServer(Services{News: &fakeNews{err: llm.ErrDisabled}}, Options{})
	rec, env := do(t, h, http.MethodPost, "/api/stock-news/morning-news-analysis", strings.NewReader(`{}`), "application/json")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.False(t, env.Success)
}

// plainWriter hides the recorder's Flush method.
type plainWriter struct {
	header http.Header
	code   int
	body   bytes.Buffer
}

func (p *plainWriter) Header() http.Header { return p.header }
func (p *plainWriter) Write(b []byte) (int, error) { return p.body.Write(b) }
func (p *plainWriter) WriteHeader(code int) { p.code = code }

func TestMorningAnalysisWithoutFlusherDoesNotStart(t *testing.T) {
	nw := &fakeNews{events: []news.Event{{Type: news.EventComplete, Progress: 100}}}
	h := newTestServer(Services{News: nw}, Options{})

	w := &plainWriter{header: http.Header{}}
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/stock-news/morning-news-analysis", nil))

	assert.Equal(t, http.StatusInternalServerError, w.code)
	assert.False(t, nw.started)
	assert.NotEqual(t, "application/x-ndjson", w.header.Get("Content-Type"))
	assert.Contains(t, w.body.String(), "Streaming unsupported")
}

func TestCalendarDeleteParsesID(t *testing.T) {
	cal := &fakeCalendar{}
	h := newTestServer(Services{Calendar: cal}, Options{})

	rec, _ := do(t, h, http.MethodDelete, "/api/financial-calendar/abc", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, h, http.MethodDelete, "/api/financial-calendar/42", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(42), cal.deleted)

	rec, env := do(t, h, http.MethodGet, "/api/financial-calendar/purposes", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	var purposes []string
	require.NoError(t, json.Unmarshal(env.Data, &purposes))
	assert.Equal(t, calendar.Purposes, purposes)
}

func TestStockImportMultipart(t *testing.T) {
	st := &fakeStocks{}
	h := newTestServer(Services{Stocks: st}, Options{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "master.csv")
	require.NoError(t, err)
	_, _ = part.Write([]byte("Symbol,Sector\nINFY,IT\n"))
	require.NoError(t, mw.Close())

	rec, env := do(t, h, http.MethodPost, "/api/stocks/import", &buf, mw.FormDataContentType())
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	assert.Equal(t, "master.csv", st.filename)
	assert.Contains(t, st.body, "INFY,IT")

	rec, _ = do(t, h, http.MethodPost, "/api/stocks/import", strings.NewReader("x"), "text/plain")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthMetricsAndUnknownRoute(t *testing.T) {
	h := newTestServer(Services{}, Options{})

	rec, env := do(t, h, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"status":"ok"`)

	rec, env = do(t, h, http.MethodGet, "/api/nothing-here", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, env.Success)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	mrec := httptest.NewRecorder()
	h.ServeHTTP(mrec, req)
	assert.Equal(t, http.StatusOK, mrec.Code)
	assert.Contains(t, mrec.Body.String(), "nse_pulse_http_requests_total")
}

func TestCORSPreflight(t *testing.T) {
	h := newTestServer(Services{}, Options{AllowedOrigins: []string{"https://dash.example.com"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/preopen/dates", nil)
	req.Header.Set("Origin", "https://dash.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "https://dash.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}
