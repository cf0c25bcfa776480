package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"nse-pulse/database"
	stockrepo "nse-pulse/database/stocks"
	"nse-pulse/stocks"
)

func (s *Server) stockRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", s.handleListStocks)
	r.Post("/", s.handleCreateStock)
	r.Get("/sectors", s.handleStockSectors)
	r.Post("/import", s.handleImportStocks)
	r.Get("/{symbol}", s.handleGetStock)
	r.Put("/{symbol}", s.handleUpdateStock)
	r.Delete("/{symbol}", s.handleDeleteStock)
	return r
}

func (s *Server) handleListStocks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rows, err := s.svc.Stocks.List(r.Context(), stockrepo.Filter{
		Sector:   q.Get("sector"),
		Industry: q.Get("industry"),
		Query:    q.Get("q"),
		Limit:    getIntParam(r, "limit", 0, intPtr(1), intPtr(5000)),
		Offset:   getIntParam(r, "offset", 0, intPtr(0), nil),
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, rows, "")
}

func (s *Server) handleStockSectors(w http.ResponseWriter, r *http.Request) {
	sectors, err := s.svc.Stocks.Sectors(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, sectors, "")
}

func (s *Server) handleGetStock(w http.ResponseWriter, r *http.Request) {
	stock, err := s.svc.Stocks.Get(r.Context(), chi.URLParam(r, "symbol"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, stock, "")
}

func (s *Server) handleCreateStock(w http.ResponseWriter, r *http.Request) {
	var in stocks.StockInput
	if err := decodeJSON(w, r, &in, false); err != nil {
		s.respondError(w, r, err)
		return
	}
	stock, err := s.svc.Stocks.Upsert(r.Context(), in)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusCreated, stock, "Stock saved")
}

func (s *Server) handleUpdateStock(w http.ResponseWriter, r *http.Request) {
	var u stocks.StockUpdate
	if err := decodeJSON(w, r, &u, false); err != nil {
		s.respondError(w, r, err)
		return
	}
	stock, err := s.svc.Stocks.Update(r.Context(), chi.URLParam(r, "symbol"), u)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, stock, "Stock updated")
}

func (s *Server) handleDeleteStock(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Stocks.Delete(r.Context(), chi.URLParam(r, "symbol")); err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, nil, "Stock deleted")
}

// handleImportStocks loads the master from an uploaded CSV or XLSX file
func (s *Server) handleImportStocks(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, r, database.NewValidationError("file", "upload is too large"))
			return
		}
		s.respondError(w, r, database.NewValidationError("file", "expected a multipart form with a file field"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, database.NewValidationError("file", "is required"))
		return
	}
	defer file.Close()

	res, err := s.svc.Stocks.Import(r.Context(), header.Filename, file)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, res, "Stock master imported")
}
