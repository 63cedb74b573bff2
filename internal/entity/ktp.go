package entity

import (
	"time"

	"github.com/google/uuid"
)

// KTPRecord represents the printed fields of one card for data transfer
// between layers. All values are kept as extracted; normalization and
// validation happen in the validator.
type KTPRecord struct {
	NIK           string `json:"nik"`
	Name          string `json:"nama"`
	BirthPlace    string `json:"tempat_lahir,omitempty"`
	BirthDate     string `json:"tanggal_lahir,omitempty"` // DD-MM-YYYY
	Gender        string `json:"jenis_kelamin,omitempty"`
	Address       string `json:"alamat,omitempty"`
	RTRW          string `json:"rt_rw,omitempty"` // 000/000
	Village       string `json:"kelurahan,omitempty"`
	District      string `json:"kecamatan,omitempty"`
	Regency       string `json:"kabupaten_kota,omitempty"`
	Province      string `json:"provinsi,omitempty"`
	Religion      string `json:"agama,omitempty"`
	MaritalStatus string `json:"status_perkawinan,omitempty"`
	Occupation    string `json:"pekerjaan,omitempty"`
	Nationality   string `json:"kewarganegaraan,omitempty"`
	ValidUntil    string `json:"berlaku_hingga,omitempty"`
}

// FaceDetection describes the face photograph located on the card.
type FaceDetection struct {
	Found        bool         `json:"found"`
	BoundingBox  *BoundingBox `json:"bounding_box,omitempty"`
	Confidence   float32      `json:"confidence"`
	QualityNotes string       `json:"quality_notes,omitempty"`
	ImageRef     string       `json:"face_image_ref,omitempty"`
}

// BoundingBox is a pixel rectangle relative to the analyzed image.
type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// VerificationResult is the terminal outcome of one verification request.
type VerificationResult struct {
	IsValidKTP       bool           `json:"is_valid_ktp"`
	ConfidenceScore  float32        `json:"confidence_score"`
	ExtractedData    *KTPRecord     `json:"extracted_data,omitempty"`
	FaceDetection    *FaceDetection `json:"face_detection,omitempty"`
	ValidationErrors []string       `json:"validation_errors"`
	ProcessingNotes  string         `json:"processing_notes,omitempty"`
	RecordID         *uuid.UUID     `json:"record_id,omitempty"`
}

// AppendNote joins processing notes with "; " the way the stored logs do.
func (r *VerificationResult) AppendNote(note string) {
	if note == "" {
		return
	}
	if r.ProcessingNotes == "" {
		r.ProcessingNotes = note
		return
	}
	r.ProcessingNotes += "; " + note
}

// StoredKTP is a persisted card row.
type StoredKTP struct {
	ID uuid.UUID `json:"id"`
	KTPRecord
	ConfidenceScore  float32   `json:"confidence_score"`
	FaceImageRef     *string   `json:"face_image_ref,omitempty"`
	FaceConfidence   *float32  `json:"face_confidence,omitempty"`
	FaceQualityNotes *string   `json:"face_quality_notes,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// ProcessingLog is one row of the per-request audit trail.
type ProcessingLog struct {
	ID               uuid.UUID `json:"id"`
	OriginalFilename string    `json:"original_filename"`
	FileSize         int64     `json:"file_size"`
	Status           string    `json:"processing_status"`
	ErrorMessage     *string   `json:"error_message,omitempty"`
	ConfidenceScore  float32   `json:"confidence_score"`
	ProcessingTimeMS int64     `json:"processing_time_ms"`
	CreatedAt        time.Time `json:"created_at"`
}

// ProcessingStats aggregates the processing_logs table.
type ProcessingStats struct {
	TotalProcessed  int64            `json:"total_processed"`
	SuccessRate     float64          `json:"success_rate"`
	StatusBreakdown map[string]int64 `json:"status_breakdown"`
	AvgConfidence   float64          `json:"avg_confidence"`
	AvgProcessingMS float64          `json:"avg_processing_time_ms"`
}
