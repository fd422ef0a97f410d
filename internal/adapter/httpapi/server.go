// Package httpapi exposes the service over HTTP: health, readiness, and
// metrics endpoints plus the ingestion and ranking API.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/citystat/city-quality-etl/internal/domain"
	"github.com/citystat/city-quality-etl/internal/ingest"
	"github.com/citystat/city-quality-etl/internal/rank"
	"github.com/citystat/city-quality-etl/internal/store"
)

// DatasetFetcher downloads a dataset by code. Implemented by the eurostat client.
type DatasetFetcher interface {
	Dataset(ctx context.Context, code string) (*domain.Cube, error)
}

// Deps bundles the collaborators the API routes dispatch to.
type Deps struct {
	Store    *store.Store
	Ingestor *ingest.Ingestor
	Scorer   *rank.Scorer
	Ranker   *rank.Ranker
	Datasets DatasetFetcher
}

// Server wires the routes onto a stdlib mux with sane timeouts.
type Server struct {
	httpServer *http.Server
	deps       Deps
	logger     *slog.Logger
}

// NewServer creates an HTTP server with health, metrics, and API routes.
func NewServer(addr string, deps Deps, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 120 * time.Second, // dataset downloads run inside the request
			IdleTimeout:  60 * time.Second,
		},
		deps:   deps,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /api/datasets/{code}", s.handleIngestDataset)
	mux.HandleFunc("POST /api/ingest", s.handleIngestCube)
	mux.HandleFunc("POST /api/score", s.handleScore)
	mux.HandleFunc("POST /api/rank", s.handleRank)
	mux.HandleFunc("POST /api/rank/country", s.handleRankCountry)
	mux.HandleFunc("GET /api/cities", s.handleCities)
	mux.HandleFunc("GET /api/cities/{code}/indicators", s.handleCityIndicators)
	mux.HandleFunc("GET /api/indicators", s.handleIndicators)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.deps.Store.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleIngestDataset downloads a Eurostat dataset by code and ingests it.
func (s *Server) handleIngestDataset(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")

	cube, err := s.deps.Datasets.Dataset(r.Context(), code)
	if err != nil {
		s.logger.Error("dataset download failed", "dataset", code, "error", err)
		writeError(w, http.StatusBadGateway, err)
		return
	}

	s.ingestAndRespond(w, r, cube)
}

// handleIngestCube ingests a JSON-stat cube posted directly in the request body.
func (s *Server) handleIngestCube(w http.ResponseWriter, r *http.Request) {
	var cube domain.Cube
	if err := json.NewDecoder(r.Body).Decode(&cube); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.ingestAndRespond(w, r, &cube)
}

func (s *Server) ingestAndRespond(w http.ResponseWriter, r *http.Request, cube *domain.Cube) {
	result, err := s.deps.Ingestor.IngestCube(r.Context(), cube)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrInvalidCubeShape) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type scoreRequest struct {
	CityCode string             `json:"city_code"`
	Weights  map[string]float64 `json:"weights"`
}

func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	score, err := s.deps.Scorer.Score(r.Context(), req.CityCode, req.Weights)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"city_code": req.CityCode,
		"score":     score,
	})
}

type rankRequest struct {
	Weights map[string]float64 `json:"weights"`
	Limit   int                `json:"limit"`
	Country string             `json:"country,omitempty"`
}

func (s *Server) handleRank(w http.ResponseWriter, r *http.Request) {
	var req rankRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Limit <= 0 {
		req.Limit = 10
	}

	rankings, err := s.deps.Ranker.Rank(r.Context(), req.Weights, req.Limit, req.Country)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, rankings)
}

// handleRankCountry ranks one country's cities, degrading to a population
// ranking when no weighted indicator has data there.
func (s *Server) handleRankCountry(w http.ResponseWriter, r *http.Request) {
	var req rankRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Country == "" {
		writeError(w, http.StatusBadRequest, errors.New("country is required"))
		return
	}
	if req.Limit <= 0 {
		req.Limit = 5
	}

	rankings, err := s.deps.Ranker.RankWithFallback(r.Context(), req.Weights, req.Country, req.Limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, rankings)
}

func (s *Server) handleCities(w http.ResponseWriter, r *http.Request) {
	cities, err := s.deps.Store.Cities(r.Context(), r.URL.Query().Get("country"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, cities)
}

func (s *Server) handleCityIndicators(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")

	city, found, err := s.deps.Store.GetCity(r.Context(), code)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, errors.New("city not found"))
		return
	}

	latestOnly := r.URL.Query().Get("latest") != "false"
	obs, err := s.deps.Store.Observations(r.Context(), code, latestOnly)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"city_code":  city.Code,
		"city_name":  city.Name,
		"country":    city.Country,
		"indicators": obs,
	})
}

func (s *Server) handleIndicators(w http.ResponseWriter, r *http.Request) {
	indicators, err := s.deps.Store.DistinctIndicators(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, indicators)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
