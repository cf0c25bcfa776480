package api

import (
	"context"
	"io"

	"nse-pulse/calendar"
	models "nse-pulse/database/models_pkg"
	stockrepo "nse-pulse/database/stocks"
	"nse-pulse/database/webhooks"
	"nse-pulse/market"
	"nse-pulse/news"
	"nse-pulse/notifications"
	"nse-pulse/reference"
	"nse-pulse/stocks"
)

// PreopenService is the pre-open snapshot surface served by the API
type PreopenService interface {
	Receive(ctx context.Context, req market.ReceiveRequest) (*market.ReceiveResult, error)
	Get(ctx context.Context, date string) (*market.PreopenResult, error)
	ListDates(ctx context.Context, limit int) ([]string, error)
	Gaps(ctx context.Context, date string, limit int) (*market.GapsResult, error)
	Imbalance(ctx context.Context, date string) (*market.ImbalanceResult, error)
	Industry(ctx context.Context, date, level, parent string) (*market.IndustryResult, error)
}

// DeliveryService is the delivery snapshot surface served by the API
type DeliveryService interface {
	Receive(ctx context.Context, req market.ReceiveRequest) (*market.ReceiveResult, error)
	Get(ctx context.Context, date string) (*market.DeliveryResult, error)
	ListDates(ctx context.Context, limit int) ([]string, error)
	TopDelivery(ctx context.Context, date string, minPercent float64, limit int) (*market.TopDeliveryResult, error)
}

// IntradayService runs and loads sector/industry analyses
type IntradayService interface {
	RunAnalysis(ctx context.Context, date string) (*models.IntradayAnalysis, error)
	Load(ctx context.Context, date string) (*models.IntradayAnalysis, error)
	ListDates(ctx context.Context, limit int) ([]string, error)
	ReloadReference() (reference.Summary, error)
}

// WebhookService manages inbound webhooks and their events
type WebhookService interface {
	Create(ctx context.Context, req notifications.CreateRequest) (*models.Webhook, error)
	List(ctx context.Context) ([]models.Webhook, error)
	Get(ctx context.Context, id string) (*models.Webhook, error)
	Update(ctx context.Context, id string, req notifications.UpdateRequest) (*models.Webhook, error)
	Delete(ctx context.Context, id string) error
	Receive(ctx context.Context, id string, p notifications.AlertPayload) (*models.WebhookData, error)
	Events(ctx context.Context, f webhooks.EventFilter) ([]models.WebhookData, error)
	DeleteEvent(ctx context.Context, id string) error
}

// CalendarService manages the financial calendar
type CalendarService interface {
	Upload(ctx context.Context, rows []calendar.Entry) (*calendar.UploadResult, error)
	List(ctx context.Context, f calendar.ListFilter) ([]models.FinancialCalendarEntry, error)
	Upcoming(ctx context.Context, days int, purpose string) ([]models.FinancialCalendarEntry, error)
	Delete(ctx context.Context, id int64) error
}

// NewsService serves AI news and the morning analysis stream
type NewsService interface {
	SearchNews(ctx context.Context, req news.SearchRequest) ([]models.StockNews, error)
	MorningAnalysis(ctx context.Context, req news.MorningRequest) (<-chan news.Event, error)
	List(ctx context.Context, f news.ListFilter) ([]models.StockNews, error)
	BySymbol(ctx context.Context, symbol string, limit int) ([]models.StockNews, error)
	Delete(ctx context.Context, id int64) error
	Cleanup(ctx context.Context, daysToKeep int) (int64, error)
}

// StockService manages the stock master
type StockService interface {
	List(ctx context.Context, f stockrepo.Filter) ([]models.StockMaster, error)
	Get(ctx context.Context, symbol string) (*models.StockMaster, error)
	Upsert(ctx context.Context, in stocks.StockInput) (*models.StockMaster, error)
	Update(ctx context.Context, symbol string, u stocks.StockUpdate) (*models.StockMaster, error)
	Delete(ctx context.Context, symbol string) error
	Sectors(ctx context.Context) ([]string, error)
	Import(ctx context.Context, filename string, r io.Reader) (*stocks.ImportResult, error)
}
