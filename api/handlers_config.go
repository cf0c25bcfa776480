package api

import (
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"nse-pulse/database"
	"nse-pulse/database/webhooks"
	"nse-pulse/helpers"
	"nse-pulse/notifications"
)

// handleHealth returns the health status of the API
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{
		"status": "ok",
		"time":   time.Now().UTC(),
	}
	if s.broker != nil {
		body["liveClients"] = s.broker.ClientCount()
	}
	respondJSON(w, r, http.StatusOK, body, "")
}

// Webhook Handlers

func (s *Server) webhookRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/create", s.handleCreateWebhook)
	r.Get("/list", s.handleGetWebhooks)
	r.With(s.limiter.Handler).Post("/receive/{webhookId}", s.handleReceiveWebhook)
	r.Get("/data", s.handleGetWebhookEvents)
	r.Delete("/data/{id}", s.handleDeleteWebhookEvent)
	r.Get("/{id}", s.handleGetWebhook)
	r.Put("/{id}", s.handleUpdateWebhook)
	r.Delete("/{id}", s.handleDeleteWebhook)
	return r
}

func (s *Server) handleCreateWebhook(w http.ResponseWriter, r *http.Request) {
	var req notifications.CreateRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		s.respondError(w, r, err)
		return
	}
	wh, err := s.svc.Webhooks.Create(r.Context(), req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusCreated, wh, "Webhook created")
}

func (s *Server) handleGetWebhooks(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Webhooks.List(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, list, "")
}

func (s *Server) handleGetWebhook(w http.ResponseWriter, r *http.Request) {
	wh, err := s.svc.Webhooks.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, wh, "")
}

func (s *Server) handleUpdateWebhook(w http.ResponseWriter, r *http.Request) {
	var req notifications.UpdateRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		s.respondError(w, r, err)
		return
	}
	wh, err := s.svc.Webhooks.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, wh, "Webhook updated")
}

func (s *Server) handleDeleteWebhook(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Webhooks.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, nil, "Webhook deleted")
}

// handleReceiveWebhook accepts a scanner alert as form data or JSON
func (s *Server) handleReceiveWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.respondError(w, r, database.NewValidationError("body", "could not read request body"))
		return
	}
	payload, err := notifications.ParsePayload(r.Header.Get("Content-Type"), body)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	ev, err := s.svc.Webhooks.Receive(r.Context(), chi.URLParam(r, "webhookId"), payload)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, ev, "Alert received")
}

func (s *Server) handleGetWebhookEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	date := q.Get("date")
	if date != "" {
		if !helpers.IsValidDate(date) {
			s.respondError(w, r, database.NewValidationErrorWithValue("date", "must be formatted as YYYY-MM-DD", date))
			return
		}
	}
	events, err := s.svc.Webhooks.Events(r.Context(), webhooks.EventFilter{
		WebhookID: q.Get("webhookId"),
		Date:      date,
		Limit:     getIntParam(r, "limit", notifications.DefaultEventsLimit, intPtr(1), intPtr(maxListLimit)),
		Offset:    getIntParam(r, "offset", 0, intPtr(0), nil),
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, events, "")
}

func (s *Server) handleDeleteWebhookEvent(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Webhooks.DeleteEvent(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, nil, "Webhook event deleted")
}
