package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/rs/zerolog/log"

	"nse-pulse/calendar"
)

type calendarUpload struct {
	Data []calendar.Entry `json:"data"`
}

func (s *Server) calendarRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/upload", s.handleUploadCalendar)
	r.Get("/list", s.handleListCalendar)
	r.Get("/upcoming", s.handleUpcomingCalendar)
	r.Get("/purposes", s.handleCalendarPurposes)
	r.Delete("/{id}", s.handleDeleteCalendarEntry)
	return r
}

func (s *Server) handleUploadCalendar(w http.ResponseWriter, r *http.Request) {
	var req calendarUpload
	if err := decodeJSON(w, r, &req, false); err != nil {
		s.respondError(w, r, err)
		return
	}
	res, err := s.svc.Calendar.Upload(r.Context(), req.Data)
	if err != nil {
		if res != nil && res.Inserted > 0 {
			// committed chunks stay; report them alongside the error
			log.Error().Err(err).Int("inserted", res.Inserted).Msg("Financial calendar upload partially applied")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, envelope{Success: false, Data: res, Error: s.internalMessage(err)})
			return
		}
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, res, "Financial calendar uploaded")
}

func (s *Server) handleListCalendar(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rows, err := s.svc.Calendar.List(r.Context(), calendar.ListFilter{
		Symbol:  q.Get("symbol"),
		Purpose: q.Get("purpose"),
		From:    q.Get("from"),
		To:      q.Get("to"),
		Limit:   getIntParam(r, "limit", 0, intPtr(1), intPtr(5000)),
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, rows, "")
}

func (s *Server) handleUpcomingCalendar(w http.ResponseWriter, r *http.Request) {
	days := getIntParam(r, "days", calendar.DefaultUpcomingDays, intPtr(1), nil)
	rows, err := s.svc.Calendar.Upcoming(r.Context(), days, r.URL.Query().Get("purpose"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, rows, "")
}

func (s *Server) handleCalendarPurposes(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, calendar.Purposes, "")
}

func (s *Server) handleDeleteCalendarEntry(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.svc.Calendar.Delete(r.Context(), id); err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, nil, "Calendar entry deleted")
}
