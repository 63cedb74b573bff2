package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"ktp-verify/internal/entity"
)

// PgKTPRepository is the PostgreSQL-backed KTPRepository.
type PgKTPRepository struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewKTPRepository(pool *pgxpool.Pool, logger *slog.Logger) *PgKTPRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PgKTPRepository{pool: pool, log: logger}
}

const ktpColumns = `id, nik, nama, tempat_lahir, tanggal_lahir, jenis_kelamin,
	alamat, rt_rw, kelurahan, kecamatan, kabupaten_kota, provinsi, agama,
	status_perkawinan, pekerjaan, kewarganegaraan, berlaku_hingga,
	confidence_score, face_image_ref, face_confidence, face_quality_notes,
	created_at, updated_at`

func (r *PgKTPRepository) Save(ctx context.Context, rec *entity.KTPRecord, meta SaveMeta) (uuid.UUID, error) {
	const q = `
		INSERT INTO ktp_records (
			nik, nama, tempat_lahir, tanggal_lahir, jenis_kelamin,
			alamat, rt_rw, kelurahan, kecamatan, kabupaten_kota, provinsi,
			agama, status_perkawinan, pekerjaan, kewarganegaraan, berlaku_hingga,
			confidence_score, face_image_ref, face_confidence, face_quality_notes
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
			$12, $13, $14, $15, $16, $17, $18, $19, $20
		) RETURNING id`

	var id uuid.UUID
	err := r.pool.QueryRow(ctx, q,
		rec.NIK, rec.Name, rec.BirthPlace, rec.BirthDate, rec.Gender,
		rec.Address, rec.RTRW, rec.Village, rec.District, rec.Regency, rec.Province,
		rec.Religion, rec.MaritalStatus, rec.Occupation, rec.Nationality, rec.ValidUntil,
		meta.ConfidenceScore,
		nullIfEmpty(meta.FaceImageRef),
		nullIfZero(meta.FaceConfidence),
		nullIfEmpty(meta.FaceQualityNotes),
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return uuid.Nil, fmt.Errorf("save ktp %s: %w", rec.NIK, ErrDuplicateNIK)
		}
		return uuid.Nil, fmt.Errorf("save ktp: %w", err)
	}
	r.log.Info("repository.ktp.saved", "id", id, "nik", rec.NIK)
	return id, nil
}

func (r *PgKTPRepository) GetByNIK(ctx context.Context, nik string) (*entity.StoredKTP, error) {
	q := `SELECT ` + ktpColumns + ` FROM ktp_records WHERE nik = $1`
	row := r.pool.QueryRow(ctx, q, nik)
	rec, err := scanStoredKTP(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get ktp by nik: %w", err)
	}
	return rec, nil
}

func (r *PgKTPRepository) ExistsByNIK(ctx context.Context, nik string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM ktp_records WHERE nik = $1)`, nik,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check nik exists: %w", err)
	}
	return exists, nil
}

func (r *PgKTPRepository) Search(ctx context.Context, q SearchQuery) ([]entity.StoredKTP, int64, error) {
	if q.Limit <= 0 {
		q.Limit = 10
	}
	if q.Limit > 100 {
		q.Limit = 100
	}

	where := `WHERE ($1 = '' OR nik = $1) AND ($2 = '' OR nama ILIKE '%' || $2 || '%')`

	var total int64
	if err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM ktp_records `+where, q.NIK, q.Name,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count search results: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+ktpColumns+` FROM ktp_records `+where+
			` ORDER BY created_at DESC LIMIT $3 OFFSET $4`,
		q.NIK, q.Name, q.Limit, q.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("search ktp records: %w", err)
	}
	defer rows.Close()

	records, err := collectStoredKTP(rows)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

func (r *PgKTPRepository) List(ctx context.Context, limit, offset int) ([]entity.StoredKTP, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+ktpColumns+` FROM ktp_records ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list ktp records: %w", err)
	}
	defer rows.Close()
	return collectStoredKTP(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStoredKTP(row rowScanner) (*entity.StoredKTP, error) {
	var rec entity.StoredKTP
	err := row.Scan(
		&rec.ID, &rec.NIK, &rec.Name, &rec.BirthPlace, &rec.BirthDate, &rec.Gender,
		&rec.Address, &rec.RTRW, &rec.Village, &rec.District, &rec.Regency, &rec.Province,
		&rec.Religion, &rec.MaritalStatus, &rec.Occupation, &rec.Nationality, &rec.ValidUntil,
		&rec.ConfidenceScore, &rec.FaceImageRef, &rec.FaceConfidence, &rec.FaceQualityNotes,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func collectStoredKTP(rows pgx.Rows) ([]entity.StoredKTP, error) {
	var records []entity.StoredKTP
	for rows.Next() {
		rec, err := scanStoredKTP(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ktp row: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ktp rows: %w", err)
	}
	return records, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullIfZero(f float32) *float32 {
	if f == 0 {
		return nil
	}
	return &f
}
