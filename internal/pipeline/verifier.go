// Package pipeline sequences one verification request: input pre-check,
// external extraction, business validation, persistence, response assembly.
// Every terminal outcome is an explicit stage result; no failure mode
// escapes as a panic or an untyped error.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"ktp-verify/constants"
	"ktp-verify/internal/entity"
	"ktp-verify/internal/metrics"
	"ktp-verify/internal/repository"
	"ktp-verify/internal/validator"
	"ktp-verify/internal/vision"
)

// FailureConfidence is the fixed score reported when extraction itself
// fails and no model confidence exists.
const FailureConfidence = 0.1

// InputError rejects an upload before any external call is made, saving
// quota. The transport layer maps it to a 400.
type InputError struct {
	Reason string
}

func (e *InputError) Error() string { return "input rejected: " + e.Reason }

// FaceSaver stores the cropped face photo and returns its reference.
type FaceSaver interface {
	Save(ctx context.Context, nik string, cardImage []byte, box entity.BoundingBox) (string, error)
}

// Upload is one image submitted for verification.
type Upload struct {
	Filename string
	Data     []byte
}

// Config holds pipeline thresholds.
type Config struct {
	MaxUploadBytes int64         // default 10 MiB
	RequestTimeout time.Duration // wraps the extraction call; default 60s
}

// Verifier runs the verification pipeline. Extraction, persistence and the
// face store are capability interfaces so tests run against fakes.
type Verifier struct {
	logger    *slog.Logger
	cfg       Config
	extractor vision.Extractor
	validator *validator.Validator
	records   repository.KTPRepository
	logs      repository.ProcessingLogRepository
	faces     FaceSaver // optional
	metrics   *metrics.Metrics
}

func NewVerifier(
	logger *slog.Logger,
	cfg Config,
	extractor vision.Extractor,
	v *validator.Validator,
	records repository.KTPRepository,
	logs repository.ProcessingLogRepository,
	faces FaceSaver,
	m *metrics.Metrics,
) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = constants.MaxUploadBytes
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	return &Verifier{
		logger:    logger,
		cfg:       cfg,
		extractor: extractor,
		validator: v,
		records:   records,
		logs:      logs,
		faces:     faces,
		metrics:   m,
	}
}

// Verify runs the full pipeline for one upload. The only returned error is
// *InputError for rejected uploads; every other path, including extraction
// and storage failures, terminates in a structured result.
func (p *Verifier) Verify(ctx context.Context, up Upload) (*entity.VerificationResult, error) {
	start := time.Now()

	ext, err := p.precheck(up)
	if err != nil {
		p.logger.Warn("pipeline.verify.input_rejected", "filename", up.Filename, "reason", err.Reason)
		p.metrics.ObserveVerification("input_rejected", time.Since(start))
		return nil, err
	}

	extractCtx, cancel := context.WithTimeout(ctx, p.cfg.RequestTimeout)
	defer cancel()

	extraction, extractErr := p.extractor.Extract(extractCtx, vision.Request{
		ImageData: up.Data,
		MimeType:  constants.MimeTypeForExt(ext),
		Filename:  up.Filename,
	})
	if extractErr != nil {
		result := p.extractionFailed(extractErr)
		p.writeLog(ctx, up, constants.StatusFailed, extractErr.Error(), result.ConfidenceScore, start)
		p.metrics.ObserveVerification("extraction_failed", time.Since(start))
		return result, nil
	}

	result := &entity.VerificationResult{
		IsValidKTP:       extraction.IsValidKTP,
		ConfidenceScore:  extraction.Confidence,
		ExtractedData:    extraction.Record,
		FaceDetection:    extraction.Face,
		ValidationErrors: append([]string{}, extraction.ValidationErrors...),
		ProcessingNotes:  extraction.Notes,
	}

	if !extraction.IsValidKTP || extraction.Record == nil {
		// The model already decided this is not a KTP; its reasons are the
		// diagnostic detail.
		result.IsValidKTP = false
		if len(result.ValidationErrors) == 0 {
			result.ValidationErrors = append(result.ValidationErrors, "Gambar bukan KTP yang valid")
		}
		p.writeLog(ctx, up, constants.StatusInvalidKTP, joinErrors(result.ValidationErrors), result.ConfidenceScore, start)
		p.metrics.ObserveVerification("invalid", time.Since(start))
		return result, nil
	}

	violations := p.validator.Validate(extraction.Record)
	result.ValidationErrors = append(result.ValidationErrors, validator.Messages(violations)...)
	result.ConfidenceScore = p.validator.AdjustConfidence(extraction.Confidence, len(violations))

	if validator.HardCount(violations) > 0 {
		result.IsValidKTP = false
		p.logger.Info("pipeline.verify.invalid",
			"filename", up.Filename,
			"violations", len(violations),
			"hard", validator.HardCount(violations),
		)
		p.writeLog(ctx, up, constants.StatusInvalidKTP, joinErrors(result.ValidationErrors), result.ConfidenceScore, start)
		p.metrics.ObserveVerification("invalid", time.Since(start))
		return result, nil
	}

	p.storeFace(ctx, up, result)
	p.persist(ctx, result)

	p.writeLog(ctx, up, constants.StatusSuccess, "", result.ConfidenceScore, start)
	p.metrics.ObserveVerification("valid", time.Since(start))
	p.logger.Info("pipeline.verify.ok",
		"filename", up.Filename,
		"nik", result.ExtractedData.NIK,
		"confidence", result.ConfidenceScore,
		"stored", result.RecordID != nil,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

// precheck enforces the format and size ceiling before any quota is spent.
func (p *Verifier) precheck(up Upload) (string, *InputError) {
	if len(up.Data) == 0 {
		return "", &InputError{Reason: "empty upload"}
	}
	if int64(len(up.Data)) > p.cfg.MaxUploadBytes {
		return "", &InputError{Reason: fmt.Sprintf("file exceeds %d bytes", p.cfg.MaxUploadBytes)}
	}
	ext := constants.NormalizeExt(filepath.Ext(up.Filename))
	if _, ok := constants.AllowedExtensions[ext]; !ok {
		return "", &InputError{Reason: fmt.Sprintf("unsupported image format %q", ext)}
	}
	return ext, nil
}

// extractionFailed maps a typed vision failure onto the not-valid response
// shape. Confidence is forced low; the note names the failure kind so the
// caller can tell quota exhaustion from a timeout.
func (p *Verifier) extractionFailed(err error) *entity.VerificationResult {
	kind, ok := vision.KindOf(err)
	if !ok {
		kind = vision.KindUnavailable
	}
	p.metrics.ObserveExtractionFailure(string(kind))
	p.logger.Error("pipeline.verify.extraction_failed", "kind", kind, "error", err)

	return &entity.VerificationResult{
		IsValidKTP:       false,
		ConfidenceScore:  FailureConfidence,
		ValidationErrors: []string{"Ekstraksi gagal: " + string(kind)},
		ProcessingNotes:  fmt.Sprintf("extraction failed (%s)", kind),
	}
}

// storeFace crops and uploads the face photo when one was located. Failures
// only annotate the result.
func (p *Verifier) storeFace(ctx context.Context, up Upload, result *entity.VerificationResult) {
	if p.faces == nil || result.FaceDetection == nil || !result.FaceDetection.Found {
		return
	}
	face := result.FaceDetection
	if face.BoundingBox == nil {
		face.Found = false
		result.AppendNote("face reported without bounding box")
		return
	}
	ref, err := p.faces.Save(ctx, result.ExtractedData.NIK, up.Data, *face.BoundingBox)
	if err != nil {
		p.logger.Warn("pipeline.verify.face_store_failed", "error", err)
		result.AppendNote("face image could not be stored")
		return
	}
	face.ImageRef = ref
}

// persist writes the validated record. A storage failure never regresses a
// verified card to invalid: the response keeps its fields and confidence,
// only the stored id is dropped and a note added.
func (p *Verifier) persist(ctx context.Context, result *entity.VerificationResult) {
	exists, err := p.records.ExistsByNIK(ctx, result.ExtractedData.NIK)
	if err != nil {
		p.logger.Error("pipeline.verify.storage_failed", "error", err)
		result.AppendNote("Data valid tapi gagal disimpan: " + err.Error())
		return
	}
	if exists {
		result.AppendNote(fmt.Sprintf("NIK %s sudah terdaftar", result.ExtractedData.NIK))
		result.ValidationErrors = append(result.ValidationErrors, "NIK sudah terdaftar dalam database")
		return
	}

	meta := repository.SaveMeta{ConfidenceScore: result.ConfidenceScore}
	if f := result.FaceDetection; f != nil && f.Found {
		meta.FaceImageRef = f.ImageRef
		meta.FaceConfidence = f.Confidence
		meta.FaceQualityNotes = f.QualityNotes
	}

	id, err := p.records.Save(ctx, result.ExtractedData, meta)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateNIK) {
			// Lost the race against a concurrent submission of the same card.
			result.AppendNote(fmt.Sprintf("NIK %s sudah terdaftar", result.ExtractedData.NIK))
			result.ValidationErrors = append(result.ValidationErrors, "NIK sudah terdaftar dalam database")
			return
		}
		p.logger.Error("pipeline.verify.storage_failed", "error", err)
		result.AppendNote("Data valid tapi gagal disimpan: " + err.Error())
		return
	}
	result.RecordID = &id
}

// writeLog appends the audit row. Best-effort: it uses a detached context
// so an expired request deadline cannot lose the log, and failures are only
// logged.
func (p *Verifier) writeLog(ctx context.Context, up Upload, status constants.ProcessingStatus, errMsg string, confidence float32, start time.Time) {
	if p.logs == nil {
		return
	}
	entry := &entity.ProcessingLog{
		OriginalFilename: up.Filename,
		FileSize:         int64(len(up.Data)),
		Status:           string(status),
		ConfidenceScore:  confidence,
		ProcessingTimeMS: time.Since(start).Milliseconds(),
	}
	if errMsg != "" {
		entry.ErrorMessage = &errMsg
	}

	logCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := p.logs.Insert(logCtx, entry); err != nil {
		p.logger.Warn("pipeline.verify.log_failed", "error", err)
	}
}

func joinErrors(errs []string) string {
	return strings.Join(errs, "; ")
}
