package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/couchcryptid/trail-shelter-stats/internal/domain"
	"github.com/couchcryptid/trail-shelter-stats/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SnapshotSource exposes the records of the last completed aggregation run.
type SnapshotSource interface {
	sharedobs.ReadinessChecker
	Snapshot() ([]domain.ShelterRecord, pipeline.Summary, bool)
}

// Server exposes health, readiness, metrics and shelter statistics over HTTP.
type Server struct {
	httpServer *http.Server
	source     SnapshotSource
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics,
// /shelters and /summary routes.
func NewServer(addr string, source SnapshotSource, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		source: source,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(source))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /shelters", s.handleShelters)
	mux.HandleFunc("GET /summary", s.handleSummary)

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

type sheltersResponse struct {
	Count       int                    `json:"count"`
	TotalVisits int                    `json:"total_visits"`
	Shelters    []domain.ShelterRecord `json:"shelters"`
}

// handleShelters lists shelter records. Query parameters: sort=report|visits|name,
// limit=N, source=reference|adhoc.
func (s *Server) handleShelters(w http.ResponseWriter, r *http.Request) {
	records, _, ok := s.source.Snapshot()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "no aggregation run has completed yet")
		return
	}

	q := r.URL.Query()
	order, err := domain.ParseSortOrder(q.Get("sort"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	switch q.Get("source") {
	case "":
	case "reference", "adhoc":
		wantRef := q.Get("source") == "reference"
		filtered := records[:0]
		for _, rec := range records {
			if rec.Reference == wantRef {
				filtered = append(filtered, rec)
			}
		}
		records = filtered
	default:
		writeError(w, http.StatusBadRequest, "source must be reference or adhoc")
		return
	}

	records = domain.SortRecords(records, order)

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		records = records[:min(n, len(records))]
	}

	resp := sheltersResponse{Count: len(records), Shelters: records}
	for _, rec := range records {
		resp.TotalVisits += rec.VisitCount
	}
	writeJSON(w, http.StatusOK, resp)
}

type summaryResponse struct {
	Processed  int            `json:"processed"`
	Entries    int            `json:"entries"`
	Locations  int            `json:"locations"`
	Matched    int            `json:"matched"`
	Unmatched  int            `json:"unmatched"`
	Skipped    []skippedHiker `json:"skipped"`
	Shelters   int            `json:"shelters"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
}

type skippedHiker struct {
	HikerID string `json:"hiker_id"`
	Reason  string `json:"reason"`
	Error   string `json:"error"`
}

func (s *Server) handleSummary(w http.ResponseWriter, _ *http.Request) {
	records, summary, ok := s.source.Snapshot()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "no aggregation run has completed yet")
		return
	}

	resp := summaryResponse{
		Processed:  summary.Processed,
		Entries:    summary.Entries,
		Locations:  summary.Locations,
		Matched:    summary.Matched,
		Unmatched:  summary.Unmatched,
		Skipped:    make([]skippedHiker, 0, len(summary.Skipped)),
		Shelters:   len(records),
		StartedAt:  summary.StartedAt,
		FinishedAt: summary.FinishedAt,
	}
	for _, sk := range summary.Skipped {
		resp.Skipped = append(resp.Skipped, skippedHiker{HikerID: sk.HikerID, Reason: sk.Reason, Error: sk.Err.Error()})
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
