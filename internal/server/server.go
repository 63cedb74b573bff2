// Package server is the thin HTTP layer. Handlers delegate to the pipeline
// and repositories; transport concerns stay isolated here.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ktp-verify/constants"
	"ktp-verify/internal/entity"
	"ktp-verify/internal/pipeline"
	"ktp-verify/internal/repository"
)

// VerifyService is the pipeline capability the transport depends on.
type VerifyService interface {
	Verify(ctx context.Context, up pipeline.Upload) (*entity.VerificationResult, error)
}

// Exporter produces the XLSX export body.
type Exporter interface {
	ExportRecordsXLSX(ctx context.Context, limit, offset int) ([]byte, error)
}

// Pinger reports storage health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds the dependencies for all routes.
type Handler struct {
	logger   *slog.Logger
	verifier VerifyService
	records  repository.KTPRepository
	logs     repository.ProcessingLogRepository
	exporter Exporter
	db       Pinger

	maxUploadBytes int64
}

func NewHandler(
	logger *slog.Logger,
	verifier VerifyService,
	records repository.KTPRepository,
	logs repository.ProcessingLogRepository,
	exporter Exporter,
	db Pinger,
	maxUploadBytes int64,
) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if maxUploadBytes <= 0 {
		maxUploadBytes = constants.MaxUploadBytes
	}
	return &Handler{
		logger:         logger,
		verifier:       verifier,
		records:        records,
		logs:           logs,
		exporter:       exporter,
		db:             db,
		maxUploadBytes: maxUploadBytes,
	}
}

// NewRouter wires all public endpoints.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Recovery(h.logger))
	r.Use(Logger(h.logger))
	// Generous outer bound; the verify pipeline carries its own tighter
	// extraction deadline.
	r.Use(chimw.Timeout(2 * time.Minute))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/verify", h.handleVerify)
		r.Get("/ktp/{nik}", h.handleGetByNIK)
		r.Get("/ktp/{nik}/face", h.handleGetFace)
		r.Post("/search", h.handleSearch)
		r.Get("/stats", h.handleStats)
		r.Get("/export", h.handleExport)
	})
	r.Get("/healthz", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}

// handleVerify accepts one multipart image upload under the "file" field
// and runs the verification pipeline.
func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	// One extra byte so the pipeline's own ceiling check sees oversized
	// uploads instead of a truncated body.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+1)
	if err := r.ParseMultipartForm(h.maxUploadBytes + 1); err != nil {
		badRequest(w, "invalid multipart body")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		badRequest(w, "missing file field")
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		badRequest(w, "unreadable upload")
		return
	}

	result, err := h.verifier.Verify(r.Context(), pipeline.Upload{
		Filename: header.Filename,
		Data:     data,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleGetByNIK(w http.ResponseWriter, r *http.Request) {
	nik := chi.URLParam(r, "nik")
	if !isNIKShaped(nik) {
		badRequest(w, "NIK harus 16 digit angka")
		return
	}
	rec, err := h.records.GetByNIK(r.Context(), nik)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type faceResponse struct {
	NIK              string   `json:"nik"`
	FaceImageRef     string   `json:"face_image_ref"`
	FaceConfidence   *float32 `json:"face_confidence,omitempty"`
	FaceQualityNotes *string  `json:"face_quality_notes,omitempty"`
}

func (h *Handler) handleGetFace(w http.ResponseWriter, r *http.Request) {
	nik := chi.URLParam(r, "nik")
	if !isNIKShaped(nik) {
		badRequest(w, "NIK harus 16 digit angka")
		return
	}
	rec, err := h.records.GetByNIK(r.Context(), nik)
	if err != nil {
		writeError(w, err)
		return
	}
	if rec.FaceImageRef == nil || *rec.FaceImageRef == "" {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not_found", Detail: "no face image for this NIK"})
		return
	}
	writeJSON(w, http.StatusOK, faceResponse{
		NIK:              rec.NIK,
		FaceImageRef:     *rec.FaceImageRef,
		FaceConfidence:   rec.FaceConfidence,
		FaceQualityNotes: rec.FaceQualityNotes,
	})
}

type searchRequest struct {
	NIK    string `json:"nik"`
	Name   string `json:"nama"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

type searchResponse struct {
	Total  int64              `json:"total"`
	Data   []entity.StoredKTP `json:"data"`
	Limit  int                `json:"limit"`
	Offset int                `json:"offset"`
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if req.NIK == "" && req.Name == "" {
		badRequest(w, "minimal salah satu parameter nik atau nama harus diisi")
		return
	}
	if req.NIK != "" && !isNIKShaped(req.NIK) {
		badRequest(w, "NIK harus 16 digit angka")
		return
	}
	if req.Limit <= 0 {
		req.Limit = 10
	}

	records, total, err := h.records.Search(r.Context(), repository.SearchQuery{
		NIK:    req.NIK,
		Name:   req.Name,
		Limit:  req.Limit,
		Offset: req.Offset,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if records == nil {
		records = []entity.StoredKTP{}
	}
	writeJSON(w, http.StatusOK, searchResponse{
		Total:  total,
		Data:   records,
		Limit:  req.Limit,
		Offset: req.Offset,
	})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.logs.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 1000)
	offset := queryInt(r, "offset", 0)

	body, err := h.exporter.ExportRecordsXLSX(r.Context(), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	filename := fmt.Sprintf("ktp-records-%s.xlsx", time.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	_, _ = w.Write(body)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	if err := h.db.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "database": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decodeJSON(r *http.Request, v any) error {
	defer func() { _ = r.Body.Close() }()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func isNIKShaped(nik string) bool {
	if len(nik) != constants.NIKLength {
		return false
	}
	for _, c := range nik {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func queryInt(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}
