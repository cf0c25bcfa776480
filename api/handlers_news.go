package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"nse-pulse/news"
)

type cleanupRequest struct {
	DaysToKeep int `json:"daysToKeep"`
}

func (s *Server) newsRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/search-news", s.handleSearchNews)
	r.Post("/morning-news-analysis", s.handleMorningAnalysisStream)
	r.Get("/list", s.handleListNews)
	r.Get("/symbol/{symbol}", s.handleNewsBySymbol)
	r.Post("/cleanup", s.handleCleanupNews)
	r.Delete("/{id}", s.handleDeleteNews)
	return r
}

func (s *Server) handleSearchNews(w http.ResponseWriter, r *http.Request) {
	var req news.SearchRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		s.respondError(w, r, err)
		return
	}
	items, err := s.svc.News.SearchNews(r.Context(), req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, items, "")
}

// handleMorningAnalysisStream streams the morning analysis as one JSON
// object per line until the producer finishes or the client goes away.
func (s *Server) handleMorningAnalysisStream(w http.ResponseWriter, r *http.Request) {
	var req news.MorningRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		s.respondError(w, r, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondFailure(w, r, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	events, err := s.svc.News.MorningAnalysis(r.Context(), req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	setupNDJSON(w)
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	for ev := range events {
		if err := enc.Encode(ev); err != nil {
			log.Debug().Err(err).Msg("Morning analysis client went away")
			continue
		}
		flusher.Flush()
	}
}

func (s *Server) handleListNews(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items, err := s.svc.News.List(r.Context(), news.ListFilter{
		Type:   q.Get("type"),
		Symbol: q.Get("symbol"),
		Date:   q.Get("date"),
		Limit:  getIntParam(r, "limit", news.DefaultListLimit, intPtr(1), intPtr(maxListLimit)),
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, items, "")
}

func (s *Server) handleNewsBySymbol(w http.ResponseWriter, r *http.Request) {
	limit := getIntParam(r, "limit", news.DefaultListLimit, intPtr(1), intPtr(maxListLimit))
	items, err := s.svc.News.BySymbol(r.Context(), chi.URLParam(r, "symbol"), limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, items, "")
}

func (s *Server) handleCleanupNews(w http.ResponseWriter, r *http.Request) {
	req := cleanupRequest{DaysToKeep: news.DefaultRetentionDays}
	if err := decodeJSON(w, r, &req, true); err != nil {
		s.respondError(w, r, err)
		return
	}
	deleted, err := s.svc.News.Cleanup(r.Context(), req.DaysToKeep)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]int64{"deleted": deleted}, "Old news removed")
}

func (s *Server) handleDeleteNews(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.svc.News.Delete(r.Context(), id); err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, nil, "News item deleted")
}
