package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"nse-pulse/analysis"
	"nse-pulse/market"
)

const (
	defaultMinDeliveryPercent = 30
	defaultTopDeliveryLimit   = 50
	maxListLimit              = 500
)

func (s *Server) preopenRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/receive", s.handleReceivePreopen)
	r.Get("/data", s.handleGetPreopen)
	r.Get("/data/{date}", s.handleGetPreopen)
	r.Get("/dates", s.handlePreopenDates)
	r.Get("/analysis/gaps/{date}", s.handleGaps)
	r.Get("/analysis/volume-imbalance/{date}", s.handleImbalance)
	r.Get("/analysis/industry", s.handleIndustry)
	r.Get("/analysis/industry/{date}", s.handleIndustry)
	return r
}

func (s *Server) deliveryRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/receive", s.handleReceiveDelivery)
	r.Get("/data", s.handleGetDelivery)
	r.Get("/data/{date}", s.handleGetDelivery)
	r.Get("/dates", s.handleDeliveryDates)
	r.Get("/analysis/top-delivery", s.handleTopDelivery)
	r.Get("/analysis/top-delivery/{date}", s.handleTopDelivery)
	return r
}

// dateParam takes the date from the path, falling back to ?date=
func dateParam(r *http.Request) string {
	if d := chi.URLParam(r, "date"); d != "" {
		return d
	}
	return r.URL.Query().Get("date")
}

func (s *Server) handleReceivePreopen(w http.ResponseWriter, r *http.Request) {
	var req market.ReceiveRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		s.respondError(w, r, err)
		return
	}
	res, err := s.svc.Preopen.Receive(r.Context(), req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusCreated, res, "Pre-open data stored")
}

func (s *Server) handleGetPreopen(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.Preopen.Get(r.Context(), dateParam(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, res, "")
}

func (s *Server) handlePreopenDates(w http.ResponseWriter, r *http.Request) {
	limit := getIntParam(r, "limit", market.DefaultDatesLimit, intPtr(1), intPtr(maxListLimit))
	dates, err := s.svc.Preopen.ListDates(r.Context(), limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, dates, "")
}

func (s *Server) handleGaps(w http.ResponseWriter, r *http.Request) {
	limit := getIntParam(r, "limit", analysis.DefaultGapLimit, intPtr(1), intPtr(maxListLimit))
	res, err := s.svc.Preopen.Gaps(r.Context(), dateParam(r), limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, res, "")
}

func (s *Server) handleImbalance(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.Preopen.Imbalance(r.Context(), dateParam(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, res, "")
}

func (s *Server) handleIndustry(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := s.svc.Preopen.Industry(r.Context(), dateParam(r), q.Get("level"), q.Get("parent"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, res, "")
}

func (s *Server) handleReceiveDelivery(w http.ResponseWriter, r *http.Request) {
	var req market.ReceiveRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		s.respondError(w, r, err)
		return
	}
	res, err := s.svc.Delivery.Receive(r.Context(), req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusCreated, res, "Delivery data stored")
}

func (s *Server) handleGetDelivery(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.Delivery.Get(r.Context(), dateParam(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, res, "")
}

func (s *Server) handleDeliveryDates(w http.ResponseWriter, r *http.Request) {
	limit := getIntParam(r, "limit", market.DefaultDatesLimit, intPtr(1), intPtr(maxListLimit))
	dates, err := s.svc.Delivery.ListDates(r.Context(), limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, dates, "")
}

func (s *Server) handleTopDelivery(w http.ResponseWriter, r *http.Request) {
	minPercent := getFloatParam(r, "minPercent", defaultMinDeliveryPercent)
	limit := getIntParam(r, "limit", defaultTopDeliveryLimit, intPtr(1), intPtr(maxListLimit))
	res, err := s.svc.Delivery.TopDelivery(r.Context(), dateParam(r), minPercent, limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, res, "")
}
