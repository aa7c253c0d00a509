package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"venue_atlas/internal/adapters/observability"
	"venue_atlas/internal/app"
	"venue_atlas/internal/domain"
)

type Handlers struct {
	Q *app.QueryService
	C *app.ConsolidationService
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Get("/v1/venues/{id}", h.getVenue)
	s.mux.Get("/v1/venues/{id}/hours", h.listHours)
	s.mux.Get("/v1/venues/{id}/reviews", h.listReviews)
	s.mux.Get("/v1/stats/sources", h.sourceStats)
	s.mux.Post("/v1/import", h.importBatch)
	s.mux.Get("/v1/consolidate", h.consolidationOverview)
	s.mux.Post("/v1/consolidate", h.consolidate)
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

func writeCacheable(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag) // include ETag on 304
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write response body")
	}
}

func venueID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func (h *Handlers) getVenue(w http.ResponseWriter, r *http.Request) {
	id, ok := venueID(r)
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a positive number")
		return
	}
	v, err := h.Q.GetVenue(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeProblem(w, http.StatusNotFound, "Not Found", "venue not found")
			return
		}
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	writeCacheable(w, r, v)
}

func (h *Handlers) listHours(w http.ResponseWriter, r *http.Request) {
	id, ok := venueID(r)
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a positive number")
		return
	}
	hrs, err := h.Q.ListHours(r.Context(), id)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	if hrs == nil {
		hrs = []domain.WorkingHours{}
	}
	writeCacheable(w, r, hrs)
}

func (h *Handlers) listReviews(w http.ResponseWriter, r *http.Request) {
	id, ok := venueID(r)
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a positive number")
		return
	}

	limit := 20
	if ls := r.URL.Query().Get("limit"); ls != "" {
		l, err := strconv.Atoi(ls)
		if err != nil || l <= 0 || l > 200 {
			writeProblem(w, http.StatusBadRequest, "Invalid limit", "limit must be an integer between 1 and 200")
			return
		}
		limit = l
	}

	page := domain.PageQuery{Limit: limit, Sort: "-date"}
	out, err := h.Q.ListReviews(r.Context(), id, page)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	if out.Items == nil {
		out.Items = []domain.Review{}
	}
	writeCacheable(w, r, out)
}

func (h *Handlers) sourceStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Q.SourceStats(r.Context())
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	if stats == nil {
		stats = []domain.SourceStat{}
	}
	writeJSON(w, http.StatusOK, stats)
}

type importRequest struct {
	Source      string           `json:"source"`
	Incremental bool             `json:"incremental"`
	Records     []map[string]any `json:"records"`
}

const maxImportBody = 64 << 20 // raw scraper exports can be large

func (h *Handlers) importBatch(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	body := io.LimitReader(r.Body, maxImportBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", "body must be JSON with source and records")
		return
	}
	if req.Source == "" || len(req.Records) == 0 {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", "source and records are required")
		return
	}

	stats, err := h.C.ImportBatch(r.Context(), req.Source, req.Records, app.SaveOptions{Incremental: req.Incremental})
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Import Failed", err.Error())
		return
	}
	observability.ObserveIngest(req.Source, "created", stats.Created)
	observability.ObserveIngest(req.Source, "updated", stats.Updated)
	observability.ObserveIngest(req.Source, "merged", stats.Merged)
	observability.ObserveIngest(req.Source, "unchanged", stats.Unchanged)
	observability.ObserveIngest(req.Source, "skipped", stats.Skipped)
	observability.ObserveIngest(req.Source, "error", stats.Errors)
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handlers) consolidationOverview(w http.ResponseWriter, r *http.Request) {
	ov, err := h.C.Overview(r.Context())
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	writeJSON(w, http.StatusOK, ov)
}

func (h *Handlers) consolidate(w http.ResponseWriter, r *http.Request) {
	report, err := h.C.RunFullConsolidation(r.Context())
	if err != nil {
		observability.ConsolidationRuns.WithLabelValues("error").Inc()
		writeProblem(w, http.StatusInternalServerError, "Consolidation Failed", err.Error())
		return
	}
	observability.ConsolidationRuns.WithLabelValues("ok").Inc()
	observability.ConsolidationMerged.Add(float64(report.Merged))
	writeJSON(w, http.StatusOK, report)
}
