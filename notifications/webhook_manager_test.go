package notifications

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nse-pulse/cache"
	"nse-pulse/database"
	models "nse-pulse/database/models_pkg"
	"nse-pulse/database/webhooks"
)

type memRepo struct {
	hooks  map[string]models.Webhook
	events []models.WebhookData
	lookup int
}

func newMemRepo() *memRepo { return &memRepo{hooks: map[string]models.Webhook{}} }

func (m *memRepo) CreateWebhook(_ context.Context, wh *models.Webhook) error {
	m.hooks[wh.ID] = *wh
	return nil
}

func (m *memRepo) GetWebhooks(context.Context) ([]models.Webhook, error) {
	out := make([]models.Webhook, 0, len(m.hooks))
	for _, h := range m.hooks {
		out = append(out, h)
	}
	return out, nil
}

func (m *memRepo) GetWebhookByID(_ context.Context, id string) (*models.Webhook, error) {
	m.lookup++
	h, ok := m.hooks[id]
	if !ok {
		return nil, nil
	}
	return &h, nil
}

func (m *memRepo) UpdateWebhook(_ context.Context, wh *models.Webhook) error {
	m.hooks[wh.ID] = *wh
	return nil
}

func (m *memRepo) DeleteWebhook(_ context.Context, id string) (bool, error) {
	_, ok := m.hooks[id]
	delete(m.hooks, id)
	return ok, nil
}

func (m *memRepo) SaveEvent(_ context.Context, ev *models.WebhookData) error {
	m.events = append(m.events, *ev)
	return nil
}

func (m *memRepo) GetEvents(_ context.Context, f webhooks.EventFilter) ([]models.WebhookData, error) {
	var out []models.WebhookData
	for _, e := range m.events {
		if f.WebhookID == "" || e.WebhookID == f.WebhookID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memRepo) DeleteEvent(_ context.Context, id string) (bool, error) {
	for i, e := range m.events {
		if e.ID == id {
			m.events = append(m.events[:i], m.events[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

type recorder struct{ events []string }

func (r *recorder) Broadcast(event string, _ interface{}) { r.events = append(r.events, event) }

var ist = time.FixedZone("IST", 5*3600+1800)

func newManager(repo *memRepo, pub *recorder) *WebhookManager {
	wm := NewWebhookManager(repo, cache.NewLocalStore(time.Minute, time.Minute), pub, "https://pulse.example.com/", ist)
	wm.now = func() time.Time { return time.Date(2024, 8, 5, 20, 0, 0, 0, time.UTC) } // 01:30 IST on the 6th
	return wm
}

func TestCreateDefaultsAndURL(t *testing.T) {
	wm := newManager(newMemRepo(), &recorder{})

	wh, err := wm.Create(context.Background(), CreateRequest{Name: " Breakouts ", Tags: []string{"swing", " ", "swing", "nifty"}})
	require.NoError(t, err)
	assert.Equal(t, "Breakouts", wh.Name)
	assert.Equal(t, models.StockSetAnyWebhook, wh.StockSet)
	assert.Equal(t, []string{"swing", "nifty"}, []string(wh.Tags))
	assert.Equal(t, "https://pulse.example.com/api/webhooks/receive/"+wh.ID, wh.WebhookURL)
}

func TestCreateValidates(t *testing.T) {
	wm := newManager(newMemRepo(), &recorder{})

	_, err := wm.Create(context.Background(), CreateRequest{})
	assert.True(t, database.IsValidation(err))

	_, err = wm.Create(context.Background(), CreateRequest{Name: "x", StockSet: "SENSEX"})
	assert.True(t, database.IsValidation(err))
}

func TestReceiveSplitsListsAndStamps(t *testing.T) {
	repo := newMemRepo()
	pub := &recorder{}
	wm := newManager(repo, pub)
	wh, err := wm.Create(context.Background(), CreateRequest{Name: "Scanner", StockSet: "NIFTY_500", Tags: []string{"momentum"}})
	require.NoError(t, err)

	ev, err := wm.Receive(context.Background(), wh.ID, AlertPayload{
		Stocks:        "AAA, bbb,,",
		TriggerPrices: "1.5,2.75",
		ScanName:      "Gap up",
		TriggeredAt:   "9:20 am",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"AAA", "BBB"}, []string(ev.Stocks))
	assert.Equal(t, []float64{1.5, 2.75}, []float64(ev.TriggerPrices))
	assert.Equal(t, "Scanner", ev.WebhookName)
	assert.Equal(t, models.StockSetNifty500, ev.StockSet)
	assert.Equal(t, []string{"momentum"}, []string(ev.Tags))
	assert.Equal(t, "2024-08-06", ev.Date)
	assert.Equal(t, "9:20 am", ev.TriggeredAt)
	assert.Equal(t, []string{"webhook_alert"}, pub.events)
	assert.Len(t, repo.events, 1)
}

func TestReceiveUnknownWebhook(t *testing.T) {
	wm := newManager(newMemRepo(), &recorder{})
	_, err := wm.Receive(context.Background(), "missing", AlertPayload{Stocks: "AAA"})
	assert.True(t, database.IsNotFound(err))
}

func TestGetIsCachedAndUpdateInvalidates(t *testing.T) {
	repo := newMemRepo()
	wm := newManager(repo, &recorder{})
	wh, err := wm.Create(context.Background(), CreateRequest{Name: "Old"})
	require.NoError(t, err)

	_, err = wm.Get(context.Background(), wh.ID)
	require.NoError(t, err)
	_, err = wm.Get(context.Background(), wh.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.lookup)

	name := "New"
	_, err = wm.Update(context.Background(), wh.ID, UpdateRequest{Name: &name})
	require.NoError(t, err)

	got, err := wm.Get(context.Background(), wh.ID)
	require.NoError(t, err)
	assert.Equal(t, "New", got.Name)
}

func TestDeleteKeepsEvents(t *testing.T) {
	repo := newMemRepo()
	wm := newManager(repo, &recorder{})
	wh, err := wm.Create(context.Background(), CreateRequest{Name: "Temp"})
	require.NoError(t, err)
	_, err = wm.Receive(context.Background(), wh.ID, AlertPayload{Stocks: "AAA"})
	require.NoError(t, err)

	require.NoError(t, wm.Delete(context.Background(), wh.ID))
	assert.True(t, database.IsNotFound(wm.Delete(context.Background(), wh.ID)))

	events, err := wm.Events(context.Background(), webhooks.EventFilter{WebhookID: wh.ID})
	require.NoError(t, err)
	assert.Len(t, events, 1)

	_, err = wm.Receive(context.Background(), wh.ID, AlertPayload{Stocks: "AAA"})
	assert.True(t, database.IsNotFound(err))
}

func TestParsePayload(t *testing.T) {
	form, err := ParsePayload("application/x-www-form-urlencoded; charset=utf-8",
		[]byte("stocks=AAA%2CBBB&trigger_prices=1.5%2C2.75&scan_name=Gap"))
	require.NoError(t, err)
	assert.Equal(t, "AAA,BBB", form.Stocks)
	assert.Equal(t, "1.5,2.75", form.TriggerPrices)
	assert.Equal(t, "Gap", form.ScanName)

	js, err := ParsePayload("application/json", []byte(`{"stocks":["AAA","BBB"],"trigger_prices":"1.5,2.75","alert_name":"x"}`))
	require.NoError(t, err)
	assert.Equal(t, "AAA,BBB", js.Stocks)
	assert.Equal(t, "x", js.AlertName)

	_, err = ParsePayload("application/json", []byte(`[1,2]`))
	assert.True(t, database.IsValidation(err))
}

func TestParsePayloadWithoutContentType(t *testing.T) {
	form, err := ParsePayload("", []byte("stocks=AAA%2CBBB&scan_name=Gap"))
	require.NoError(t, err)
	assert.Equal(t, "AAA,BBB", form.Stocks)
	assert.Equal(t, "Gap", form.ScanName)

	form, err = ParsePayload("text/plain", []byte("stocks=TCS"))
	require.NoError(t, err)
	assert.Equal(t, "TCS", form.Stocks)

	js, err := ParsePayload("", []byte(` {"stocks":"INFY","scan_name":"Breakout"}`))
	require.NoError(t, err)
	assert.Equal(t, "INFY", js.Stocks)
	assert.Equal(t, "Breakout", js.ScanName)

	_, err = ParsePayload("", []byte(`[1,2]`))
	assert.True(t, database.IsValidation(err))

	_, err = ParsePayload("application/json", []byte("stocks=TCS"))
	assert.True(t, database.IsValidation(err))
}

// failingStore misses every read and rejects every write.
type failingStore struct{ sets int }

func (f *failingStore) Set(context.Context, string, interface{}, time.Duration) error {
	f.sets++
	return errors.New("cache down")
}
func (f *failingStore) Get(context.Context, string, interface{}) error { return cache.ErrMiss }
func (f *failingStore) Delete(context.Context, ...string) error { return nil }

func TestGetSurvivesCacheWriteFailure(t *testing.T) {
	repo := newMemRepo()
	store := &failingStore{}
	wm := NewWebhookManager(repo, store, &recorder{}, "https://pulse.example.com/", ist)
	require.NoError(t, repo.CreateWebhook(context.Background(), &models.Webhook{ID: "wh-1", Name: "Scanner"}))

	got, err := wm.Get(context.Background(), "wh-1")
	require.NoError(t, err)
	assert.Equal(t, "Scanner", got.Name)
	assert.Equal(t, 1, store.sets)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{}, SplitList(""))
	assert.Equal(t, []string{"a", "b"}, SplitList(" a ,, b ,"))
}
