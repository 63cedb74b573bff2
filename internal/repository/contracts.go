package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"ktp-verify/internal/entity"
)

// Typed storage failures the pipeline distinguishes. Anything else is a
// transient database problem.
var (
	ErrNotFound     = errors.New("record not found")
	ErrDuplicateNIK = errors.New("nik already registered")
)

// SaveMeta carries the non-printed columns stored with a verified record.
type SaveMeta struct {
	ConfidenceScore  float32
	FaceImageRef     string
	FaceConfidence   float32
	FaceQualityNotes string
}

// SearchQuery filters stored records by exact NIK or name substring.
type SearchQuery struct {
	NIK    string
	Name   string
	Limit  int
	Offset int
}

// KTPRepository persists verified card records. Save is only ever invoked
// for records that passed validation; uniqueness of the NIK is enforced by
// the table constraint, not by the application.
type KTPRepository interface {
	Save(ctx context.Context, rec *entity.KTPRecord, meta SaveMeta) (uuid.UUID, error)
	GetByNIK(ctx context.Context, nik string) (*entity.StoredKTP, error)
	ExistsByNIK(ctx context.Context, nik string) (bool, error)
	Search(ctx context.Context, q SearchQuery) ([]entity.StoredKTP, int64, error)
	List(ctx context.Context, limit, offset int) ([]entity.StoredKTP, error)
}

// ProcessingLogRepository records the per-request audit trail. Inserts are
// best-effort: a logging failure never fails the request it describes.
type ProcessingLogRepository interface {
	Insert(ctx context.Context, log *entity.ProcessingLog) error
	Stats(ctx context.Context) (*entity.ProcessingStats, error)
}
