package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/rs/zerolog/log"

	"nse-pulse/database"
	"nse-pulse/llm"
)

const (
	maxBodyBytes   = 8 << 20
	maxUploadBytes = 16 << 20
)

// envelope is the JSON shape of every response
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// respondJSON writes a success envelope
func respondJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}, message string) {
	render.Status(r, status)
	render.JSON(w, r, envelope{Success: true, Data: data, Message: message})
}

func respondFailure(w http.ResponseWriter, r *http.Request, status int, message string) {
	render.Status(r, status)
	render.JSON(w, r, envelope{Success: false, Error: message})
}

// respondError maps err onto a status code and writes a failure envelope.
// Internal details are only shown outside production.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ve  *database.ValidationError
		nf  *database.NotFoundError
		dbe *database.DBError
		ae  *llm.APIError
	)
	reqID := middleware.GetReqID(r.Context())

	switch {
	case errors.As(err, &ve):
		respondFailure(w, r, http.StatusBadRequest, err.Error())
	case errors.As(err, &nf):
		respondFailure(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, llm.ErrDisabled):
		respondFailure(w, r, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, context.Canceled):
		log.Debug().Str("request_id", reqID).Str("path", r.URL.Path).Msg("Request cancelled by client")
	case errors.As(err, &dbe), errors.As(err, &ae):
		log.Error().Err(err).Str("request_id", reqID).Str("path", r.URL.Path).Msg("API error")
		respondFailure(w, r, http.StatusInternalServerError, s.internalMessage(err))
	default:
		log.Error().Err(err).Str("request_id", reqID).Str("path", r.URL.Path).Msg("Unhandled API error")
		respondFailure(w, r, http.StatusInternalServerError, "Internal server error")
	}
}

// internalMessage hides internal error details in production
func (s *Server) internalMessage(err error) string {
	if s.opts.production() {
		return "Internal server error"
	}
	return err.Error()
}

// decodeJSON reads a JSON body into dest. An empty body leaves dest untouched
// when allowEmpty is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, dest interface{}, allowEmpty bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := render.DecodeJSON(r.Body, dest); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return nil
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return database.NewValidationError("body", "request body is too large")
		}
		return database.NewValidationError("body", "invalid JSON: "+err.Error())
	}
	return nil
}

// getIntParam retrieves an integer query parameter with default value and optional range validation
func getIntParam(r *http.Request, key string, defaultVal int, minVal, maxVal *int) int {
	valStr := r.URL.Query().Get(key)
	if valStr == "" {
		return defaultVal
	}

	val, err := strconv.Atoi(valStr)
	if err != nil {
		return defaultVal
	}

	if minVal != nil && val < *minVal {
		return defaultVal
	}
	if maxVal != nil && val > *maxVal {
		return defaultVal
	}

	return val
}

// getFloatParam retrieves a float query parameter with default value
func getFloatParam(r *http.Request, key string, defaultVal float64) float64 {
	valStr := r.URL.Query().Get(key)
	if valStr == "" {
		return defaultVal
	}

	val, err := strconv.ParseFloat(valStr, 64)
	if err != nil {
		return defaultVal
	}

	return val
}

func intPtr(v int) *int { return &v }

// parseID reads a numeric path parameter
func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, database.NewValidationErrorWithValue("id", "must be a positive integer", raw)
	}
	return id, nil
}

// setupNDJSON sets the headers for a newline-delimited JSON stream
func setupNDJSON(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}
