package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type dateRequest struct {
	Date string `json:"date"`
}

func (s *Server) intradayRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/run-analysis", s.handleRunAnalysis)
	r.Post("/load", s.handleLoadAnalysis)
	r.Get("/dates", s.handleAnalysisDates)
	r.Post("/reload-reference", s.handleReloadReference)
	return r
}

func (s *Server) handleRunAnalysis(w http.ResponseWriter, r *http.Request) {
	var req dateRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		s.respondError(w, r, err)
		return
	}
	res, err := s.svc.Intraday.RunAnalysis(r.Context(), req.Date)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, res, "Intraday analysis completed")
}

func (s *Server) handleLoadAnalysis(w http.ResponseWriter, r *http.Request) {
	var req dateRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		s.respondError(w, r, err)
		return
	}
	res, err := s.svc.Intraday.Load(r.Context(), req.Date)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, res, "")
}

func (s *Server) handleAnalysisDates(w http.ResponseWriter, r *http.Request) {
	limit := getIntParam(r, "limit", 60, intPtr(1), intPtr(maxListLimit))
	dates, err := s.svc.Intraday.ListDates(r.Context(), limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, dates, "")
}

func (s *Server) handleReloadReference(w http.ResponseWriter, r *http.Request) {
	summary, err := s.svc.Intraday.ReloadReference()
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, summary, "Reference data reloaded")
}
