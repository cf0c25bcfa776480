package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// StockSet restricts which universe a webhook is expected to report on.
type StockSet string

const (
	StockSetNifty500   StockSet = "NIFTY_500"
	StockSetAnyWebhook StockSet = "ANY_WEBHOOK"
)

// NewsType discriminates stored AI news items.
type NewsType string

const (
	NewsMarketAnalysis NewsType = "MARKET_ANALYSIS"
	NewsGapAnalysis    NewsType = "GAP_ANALYSIS"
	NewsSectorLeader   NewsType = "SECTOR_LEADER"
	NewsStock          NewsType = "STOCK_NEWS"
)

// StockMaster is the reference record for a listed security.
// Snapshots refer to it by symbol only, so deleting a master row never touches
// historical snapshots.
//
// Key Fields:
//   - Symbol: NSE trading symbol (primary key)
//   - Sector/Industry/BasicIndustry/MacroEconomicClassification: NSE taxonomy levels
//   - LastPChange/LastVolume: last-known change, used when no pre-open data exists
//   - LastChangeDate: trading date (YYYY-MM-DD) the last-known change came from
type StockMaster struct {
	Symbol                      string    `gorm:"primaryKey;size:32" json:"symbol"`
	CompanyName                 string    `gorm:"type:text" json:"companyName"`
	Sector                      string    `gorm:"size:128;index" json:"sector"`
	Industry                    string    `gorm:"size:128;index" json:"industry"`
	BasicIndustry               string    `gorm:"size:128" json:"basicIndustry"`
	MacroEconomicClassification string    `gorm:"size:128" json:"macroEconomicClassification"`
	MarketCap                   float64   `gorm:"type:double precision" json:"marketCap"`
	FreeFloatMarketCap          float64   `gorm:"type:double precision" json:"freeFloatMarketCap"`
	LastPChange                 *float64  `gorm:"type:double precision" json:"lastPChange,omitempty"`
	LastVolume                  float64   `gorm:"type:double precision" json:"lastVolume"`
	LastChangeDate              string    `gorm:"size:10" json:"lastChangeDate,omitempty"`
	CreatedAt                   time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt                   time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName specifies the table name for StockMaster
func (StockMaster) TableName() string {
	return "stock_master"
}

// SpreadAnalysis is the order-book summary computed upstream by the scraper.
type SpreadAnalysis struct {
	BestBid                float64 `json:"bestBid"`
	BestAsk                float64 `json:"bestAsk"`
	SpreadPercent          float64 `json:"spreadPercent"`
	BidVolume              float64 `json:"bidVolume"`
	AskVolume              float64 `json:"askVolume"`
	VolumeDominantSide     string  `json:"volumeDominantSide"`
	VolumeImbalancePercent float64 `json:"volumeImbalancePercent"`
}

// PreopenSecurity is one security inside a pre-open auction snapshot.
// PChange is the gap against the previous close, in percent.
type PreopenSecurity struct {
	Symbol         string          `json:"symbol"`
	LastPrice      float64         `json:"lastPrice"`
	FinalPrice     float64         `json:"finalPrice"`
	PreviousClose  float64         `json:"previousClose"`
	Change         float64         `json:"change"`
	PChange        float64         `json:"pChange"`
	FinalQuantity  float64         `json:"finalQuantity"`
	TotalTurnover  float64         `json:"totalTurnover"`
	SpreadAnalysis *SpreadAnalysis `json:"spreadAnalysis,omitempty"`
}

// PreopenSnapshot is one ingestion of pre-open auction data.
// Several rows may share a Date (re-ingestion is kept for audit); readers pick
// the latest one and recompute the breadth counts from Securities.
type PreopenSnapshot struct {
	ID          string                               `gorm:"primaryKey;size:36" json:"id"`
	Date        string                               `gorm:"size:10;index;not null" json:"date"`
	Source      string                               `gorm:"size:64" json:"source"`
	Timestamp   time.Time                            `gorm:"index;not null" json:"timestamp"`
	ReceivedAt  time.Time                            `gorm:"autoCreateTime" json:"receivedAt"`
	TotalStocks int                                  `json:"totalStocks"`
	Advances    int                                  `json:"advances"`
	Declines    int                                  `json:"declines"`
	Unchanged   int                                  `json:"unchanged"`
	Securities  datatypes.JSONSlice[PreopenSecurity] `gorm:"type:jsonb" json:"data"`
}

// TableName specifies the table name for PreopenSnapshot
func (PreopenSnapshot) TableName() string {
	return "preopen_snapshots"
}

// DeliverySecurity is one security inside a delivery/volume snapshot.
type DeliverySecurity struct {
	Symbol             string  `json:"symbol"`
	Series             string  `json:"series"`
	QuantityTraded     float64 `json:"quantityTraded"`
	DeliveryQuantity   float64 `json:"deliveryQuantity"`
	DeliveryPercentage Percent `json:"deliveryPercentage"`
	LastPrice          float64 `json:"lastPrice"`
	PChange            float64 `json:"pChange"`
	TotalTradedVolume  float64 `json:"totalTradedVolume"`
	TotalTradedValue   float64 `json:"totalTradedValue"`
}

// DeliverySummary holds the market-wide delivery statistics of a snapshot.
type DeliverySummary struct {
	TotalStocks           int     `json:"totalStocks"`
	TotalTradedVolume     float64 `json:"totalTradedVolume"`
	TotalDeliveryVolume   float64 `json:"totalDeliveryVolume"`
	AvgDeliveryPercentage Percent `json:"avgDeliveryPercentage"`
	HighDeliveryCount     int     `json:"highDeliveryCount"`
	MarketDeliveryRatio   Percent `json:"marketDeliveryRatio"`
}

// DeliveryVolumeSnapshot is one ingestion of delivery/volume data.
type DeliveryVolumeSnapshot struct {
	ID         string                                `gorm:"primaryKey;size:36" json:"id"`
	Date       string                                `gorm:"size:10;index;not null" json:"date"`
	Timestamp  time.Time                             `gorm:"index;not null" json:"timestamp"`
	ReceivedAt time.Time                             `gorm:"autoCreateTime" json:"receivedAt"`
	Summary    datatypes.JSONType[DeliverySummary]   `gorm:"type:jsonb" json:"summary"`
	Securities datatypes.JSONSlice[DeliverySecurity] `gorm:"type:jsonb" json:"data"`
}

// TableName specifies the table name for DeliveryVolumeSnapshot
func (DeliveryVolumeSnapshot) TableName() string {
	return "delivery_snapshots"
}

// StockChange is one constituent inside a sector or industry rollup.
// Source records which tier of the fallback chain supplied the change:
// "preopen", "master" or "none".
type StockChange struct {
	Symbol      string  `json:"symbol"`
	CompanyName string  `json:"companyName"`
	MarketCap   float64 `json:"marketCap"`
	Change      float64 `json:"change"`
	Volume      float64 `json:"volume"`
	Source      string  `json:"source"`
}

// GroupRollup aggregates breadth and volume for one sector or industry.
type GroupRollup struct {
	Name           string        `json:"name"`
	StockCount     int           `json:"stockCount"`
	TotalMarketCap float64       `json:"totalMarketCap"`
	Advances       int           `json:"advances"`
	Declines       int           `json:"declines"`
	Unchanged      int           `json:"unchanged"`
	TotalVolume    float64       `json:"totalVolume"`
	PreopenVolume  float64       `json:"preopenVolume"`
	ADR            float64       `json:"adr"`
	AvgChange      float64       `json:"avgChange"`
	Stocks         []StockChange `json:"stocks"`
}

// MarketBreadth is the market-level summary over every sector rollup.
type MarketBreadth struct {
	TotalStocks   int     `json:"totalStocks"`
	Advances      int     `json:"advances"`
	Declines      int     `json:"declines"`
	Unchanged     int     `json:"unchanged"`
	TotalVolume   float64 `json:"totalVolume"`
	PreopenVolume float64 `json:"preopenVolume"`
	ADR           float64 `json:"adr"`
}

// IntradayAnalysis is the persisted result of a sector/industry run for a date.
// A re-run overwrites the row.
type IntradayAnalysis struct {
	Date           string                            `gorm:"primaryKey;size:10" json:"date"`
	ComputedAt     time.Time                         `gorm:"not null" json:"computedAt"`
	HasPreopenData bool                              `json:"hasPreopenData"`
	Market         datatypes.JSONType[MarketBreadth] `gorm:"type:jsonb" json:"market"`
	Sectors        datatypes.JSONSlice[GroupRollup]  `gorm:"type:jsonb" json:"sectors"`
	Industries     datatypes.JSONSlice[GroupRollup]  `gorm:"type:jsonb" json:"industries"`
}

// TableName specifies the table name for IntradayAnalysis
func (IntradayAnalysis) TableName() string {
	return "intraday_analyses"
}

// Webhook is a named endpoint that third-party scanners post alerts to.
type Webhook struct {
	ID             string         `gorm:"primaryKey;size:36" json:"id"`
	Name           string         `gorm:"size:100;not null" json:"name"`
	StockSet       StockSet       `gorm:"size:20;not null;default:ANY_WEBHOOK" json:"stockSet"`
	Tags           pq.StringArray `gorm:"type:text[]" json:"tags"`
	Description    string         `gorm:"type:text" json:"description"`
	PossibleOutput string         `gorm:"type:text" json:"possibleOutput"`
	WebhookURL     string         `gorm:"type:text" json:"webhookUrl"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName specifies the table name for Webhook
func (Webhook) TableName() string {
	return "webhooks"
}

// WebhookData is one alert event received on a webhook.
// Name, tags and stock set are copied from the webhook at receipt time so the
// event survives later edits or deletion of the webhook.
type WebhookData struct {
	ID            string          `gorm:"primaryKey;size:36" json:"id"`
	WebhookID     string          `gorm:"size:36;index;not null" json:"webhookId"`
	WebhookName   string          `gorm:"size:100" json:"webhookName"`
	StockSet      StockSet        `gorm:"size:20" json:"stockSet"`
	Tags          pq.StringArray  `gorm:"type:text[]" json:"tags"`
	Stocks        pq.StringArray  `gorm:"type:text[]" json:"stocks"`
	TriggerPrices pq.Float64Array `gorm:"type:double precision[]" json:"triggerPrices"`
	ScanName      string          `gorm:"type:text" json:"scanName"`
	ScanURL       string          `gorm:"type:text" json:"scanUrl"`
	AlertName     string          `gorm:"type:text" json:"alertName"`
	Date          string          `gorm:"size:10;index" json:"date"`
	TriggeredAt   string          `gorm:"size:64" json:"triggeredAt"`
	ReceivedAt    time.Time       `gorm:"index;not null" json:"receivedAt"`
}

// TableName specifies the table name for WebhookData
func (WebhookData) TableName() string {
	return "webhook_data"
}

// FinancialCalendarEntry is one corporate event (results, dividend, ...).
// Date keeps the exchange format DD-MMM-YYYY; EventDate is the parsed value
// used for ordering and range filters.
type FinancialCalendarEntry struct {
	ID              int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Symbol          string    `gorm:"size:32;not null;uniqueIndex:idx_calendar_event" json:"Symbol"`
	Company         string    `gorm:"type:text" json:"Company"`
	Purpose         string    `gorm:"size:64;not null;uniqueIndex:idx_calendar_event" json:"Purpose"`
	OriginalPurpose string    `gorm:"type:text" json:"originalPurpose"`
	Date            string    `gorm:"size:11;not null;uniqueIndex:idx_calendar_event" json:"Date"`
	EventDate       time.Time `gorm:"type:date;index" json:"eventDate"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName specifies the table name for FinancialCalendarEntry
func (FinancialCalendarEntry) TableName() string {
	return "financial_calendar"
}

// StockNews is an AI-produced news or analysis item.
type StockNews struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Type       NewsType  `gorm:"size:32;index;not null" json:"type"`
	Symbol     string    `gorm:"size:32;index" json:"symbol,omitempty"`
	Sector     string    `gorm:"size:128" json:"sector,omitempty"`
	Date       string    `gorm:"size:10;index" json:"date"`
	Headline   string    `gorm:"type:text" json:"headline"`
	Reason     string    `gorm:"type:text" json:"reason,omitempty"`
	Details    string    `gorm:"type:text" json:"details,omitempty"`
	Confidence float64   `gorm:"type:double precision" json:"confidence"`
	Sentiment  string    `gorm:"size:16" json:"sentiment,omitempty"`
	Source     string    `gorm:"size:64" json:"source,omitempty"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"createdAt"`
}

// TableName specifies the table name for StockNews
func (StockNews) TableName() string {
	return "stock_news"
}
