// Package api exposes the dashboard backend over HTTP: snapshot ingestion and
// analysis, webhooks, the financial calendar, AI news, the stock master, live
// events and operational endpoints.
package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"nse-pulse/realtime"
)

// Options configures the HTTP surface
type Options struct {
	Environment    string
	AllowedOrigins []string
	RateLimitRPS   float64
	RateLimitBurst int
}

func (o Options) production() bool {
	return strings.EqualFold(o.Environment, "production")
}

func (o Options) anyOrigin() bool {
	for _, origin := range o.AllowedOrigins {
		if origin == "*" {
			return true
		}
	}
	return len(o.AllowedOrigins) == 0
}

func (o Options) originAllowed(origin string) bool {
	if o.anyOrigin() {
		return true
	}
	for _, allowed := range o.AllowedOrigins {
		if strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// Services groups the domain services served by the API
type Services struct {
	Preopen  PreopenService
	Delivery DeliveryService
	Intraday IntradayService
	Webhooks WebhookService
	Calendar CalendarService
	News     NewsService
	Stocks   StockService
}

// Server handles HTTP API requests
type Server struct {
	svc     Services
	broker  *realtime.Broker
	opts    Options
	limiter *ipRateLimiter
}

// NewServer creates a new API server instance. broker may be nil, in which
// case the live event endpoints are not mounted.
func NewServer(svc Services, broker *realtime.Broker, opts Options) *Server {
	if opts.RateLimitRPS <= 0 {
		opts.RateLimitRPS = 5
	}
	return &Server{
		svc:     svc,
		broker:  broker,
		opts:    opts,
		limiter: newIPRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst),
	}
}

// Routes builds the router with every endpoint and the middleware stack
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(s.corsHandler())
	r.Use(instrument)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		if s.broker != nil {
			r.Method(http.MethodGet, "/events", s.broker)
			var allow func(string) bool
			if !s.opts.anyOrigin() {
				allow = s.opts.originAllowed
			}
			r.Method(http.MethodGet, "/ws", realtime.NewWSHandler(s.broker, allow))
		}

		r.Group(func(r chi.Router) {
			r.Use(render.SetContentType(render.ContentTypeJSON))

			r.Mount("/preopen", s.preopenRoutes())
			r.Mount("/delivery-volume", s.deliveryRoutes())
			r.Mount("/intraday-analysis", s.intradayRoutes())
			r.Mount("/webhooks", s.webhookRoutes())
			r.Mount("/financial-calendar", s.calendarRoutes())
			r.Mount("/stock-news", s.newsRoutes())
			r.Mount("/stocks", s.stockRoutes())
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondFailure(w, r, http.StatusNotFound, "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondFailure(w, r, http.StatusMethodNotAllowed, "Method not allowed")
	})

	return r
}

func (s *Server) corsHandler() func(http.Handler) http.Handler {
	origins := s.opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}).Handler
}

// Handlers are distributed across multiple files:
// - handlers_market.go: pre-open and delivery snapshots and their analyses
// - handlers_intraday.go: sector/industry analysis runs
// - handlers_config.go: health check, webhook registry and receiver
// - handlers_calendar.go: financial calendar
// - handlers_news.go: AI news and the morning analysis stream
// - handlers_stocks.go: stock master
