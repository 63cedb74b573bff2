package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ktp-verify/internal/entity"
	"ktp-verify/internal/repository"
	"ktp-verify/internal/validator"
	"ktp-verify/internal/vision"
)

type fakeExtractor struct {
	result vision.ExtractionResult
	err    error
	calls  int
}

func (f *fakeExtractor) Extract(ctx context.Context, req vision.Request) (vision.ExtractionResult, error) {
	f.calls++
	return f.result, f.err
}

type fakeKTPRepo struct {
	existing  map[string]bool
	saveErr   error
	existsErr error
	saved     []*entity.KTPRecord
	savedMeta []repository.SaveMeta
	savedID   uuid.UUID
}

func (f *fakeKTPRepo) Save(ctx context.Context, rec *entity.KTPRecord, meta repository.SaveMeta) (uuid.UUID, error) {
	if f.saveErr != nil {
		return uuid.Nil, f.saveErr
	}
	f.saved = append(f.saved, rec)
	f.savedMeta = append(f.savedMeta, meta)
	if f.savedID == uuid.Nil {
		f.savedID = uuid.New()
	}
	return f.savedID, nil
}

func (f *fakeKTPRepo) GetByNIK(ctx context.Context, nik string) (*entity.StoredKTP, error) {
	return nil, repository.ErrNotFound
}

func (f *fakeKTPRepo) ExistsByNIK(ctx context.Context, nik string) (bool, error) {
	if f.existsErr != nil {
		return false, f.existsErr
	}
	return f.existing[nik], nil
}

func (f *fakeKTPRepo) Search(ctx context.Context, q repository.SearchQuery) ([]entity.StoredKTP, int64, error) {
	return nil, 0, nil
}

func (f *fakeKTPRepo) List(ctx context.Context, limit, offset int) ([]entity.StoredKTP, error) {
	return nil, nil
}

type fakeLogRepo struct {
	entries []*entity.ProcessingLog
	err     error
}

func (f *fakeLogRepo) Insert(ctx context.Context, log *entity.ProcessingLog) error {
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, log)
	return nil
}

func (f *fakeLogRepo) Stats(ctx context.Context) (*entity.ProcessingStats, error) {
	return &entity.ProcessingStats{}, nil
}

type fakeFaceSaver struct {
	ref   string
	err   error
	calls int
}

func (f *fakeFaceSaver) Save(ctx context.Context, nik string, cardImage []byte, box entity.BoundingBox) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.ref, nil
}

func goodRecord() *entity.KTPRecord {
	return &entity.KTPRecord{
		NIK:         "3174031505900001",
		Name:        "BUDI SANTOSO",
		BirthDate:   "15-05-1990",
		Gender:      "LAKI-LAKI",
		Religion:    "ISLAM",
		Nationality: "WNI",
	}
}

func goodExtraction() vision.ExtractionResult {
	return vision.ExtractionResult{
		IsValidKTP: true,
		Confidence: 0.9,
		Record:     goodRecord(),
	}
}

type testDeps struct {
	extractor *fakeExtractor
	records   *fakeKTPRepo
	logs      *fakeLogRepo
	faces     *fakeFaceSaver
}

func newTestVerifier(t *testing.T, deps *testDeps) *Verifier {
	t.Helper()
	clock := func() time.Time { return time.Date(2026, time.January, 15, 12, 0, 0, 0, time.UTC) }
	var faces FaceSaver
	if deps.faces != nil {
		faces = deps.faces
	}
	return NewVerifier(
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		Config{},
		deps.extractor,
		validator.New(validator.Config{StrictNIK: true}).WithClock(clock),
		deps.records,
		deps.logs,
		faces,
		nil,
	)
}

func jpegUpload() Upload {
	return Upload{Filename: "ktp.jpg", Data: []byte("fake-image")}
}

func TestVerifyHappyPath(t *testing.T) {
	deps := &testDeps{
		extractor: &fakeExtractor{result: goodExtraction()},
		records:   &fakeKTPRepo{},
		logs:      &fakeLogRepo{},
	}
	v := newTestVerifier(t, deps)

	result, err := v.Verify(context.Background(), jpegUpload())
	require.NoError(t, err)

	assert.True(t, result.IsValidKTP)
	assert.InDelta(t, 0.9, result.ConfidenceScore, 1e-6)
	assert.Empty(t, result.ValidationErrors)
	require.NotNil(t, result.RecordID)

	require.Len(t, deps.records.saved, 1)
	assert.Equal(t, "3174031505900001", deps.records.saved[0].NIK)
	require.Len(t, deps.logs.entries, 1)
	assert.Equal(t, "SUCCESS", deps.logs.entries[0].Status)
}

func TestVerifyRejectsBadInput(t *testing.T) {
	tests := []struct {
		name   string
		upload Upload
	}{
		{"empty upload", Upload{Filename: "ktp.jpg"}},
		{"unsupported format", Upload{Filename: "ktp.pdf", Data: []byte("x")}},
		{"no extension", Upload{Filename: "ktp", Data: []byte("x")}},
		{"oversized", Upload{Filename: "ktp.jpg", Data: make([]byte, 11<<20)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := &testDeps{
				extractor: &fakeExtractor{result: goodExtraction()},
				records:   &fakeKTPRepo{},
				logs:      &fakeLogRepo{},
			}
			v := newTestVerifier(t, deps)

			result, err := v.Verify(context.Background(), tt.upload)
			assert.Nil(t, result)

			var inputErr *InputError
			require.ErrorAs(t, err, &inputErr)
			assert.Zero(t, deps.extractor.calls, "rejected input must not spend quota")
			assert.Empty(t, deps.logs.entries)
		})
	}
}

func TestVerifyExtractionFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"quota", vision.NewError(vision.KindQuotaExceeded, "429", nil), "quota-exceeded"},
		{"timeout", vision.NewError(vision.KindTimeout, "deadline", nil), "timeout"},
		{"malformed", vision.NewError(vision.KindMalformed, "bad json", nil), "malformed-response"},
		{"unavailable", vision.NewError(vision.KindUnavailable, "503", nil), "service-unavailable"},
		{"untyped error treated as unavailable", errors.New("boom"), "service-unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := &testDeps{
				extractor: &fakeExtractor{err: tt.err},
				records:   &fakeKTPRepo{},
				logs:      &fakeLogRepo{},
			}
			v := newTestVerifier(t, deps)

			result, err := v.Verify(context.Background(), jpegUpload())
			require.NoError(t, err, "extraction failure is a structured result, not an error")

			assert.False(t, result.IsValidKTP)
			assert.InDelta(t, FailureConfidence, result.ConfidenceScore, 1e-6)
			require.NotEmpty(t, result.ValidationErrors)
			assert.Contains(t, result.ValidationErrors[0], tt.want)
			assert.Contains(t, result.ProcessingNotes, tt.want)

			assert.Equal(t, 1, deps.extractor.calls, "no retry on failure")
			assert.Empty(t, deps.records.saved, "failed extraction is never persisted")
			require.Len(t, deps.logs.entries, 1)
			assert.Equal(t, "FAILED", deps.logs.entries[0].Status)
		})
	}
}

func TestVerifyNotAKTP(t *testing.T) {
	deps := &testDeps{
		extractor: &fakeExtractor{result: vision.ExtractionResult{
			IsValidKTP: false,
			Confidence: 0.3,
		}},
		records: &fakeKTPRepo{},
		logs:    &fakeLogRepo{},
	}
	v := newTestVerifier(t, deps)

	result, err := v.Verify(context.Background(), jpegUpload())
	require.NoError(t, err)

	assert.False(t, result.IsValidKTP)
	assert.Contains(t, result.ValidationErrors, "Gambar bukan KTP yang valid")
	assert.Empty(t, deps.records.saved)
	require.Len(t, deps.logs.entries, 1)
	assert.Equal(t, "INVALID_KTP", deps.logs.entries[0].Status)
}

func TestVerifyHardViolationRejects(t *testing.T) {
	ext := goodExtraction()
	ext.Record.NIK = "123" // format failure

	deps := &testDeps{
		extractor: &fakeExtractor{result: ext},
		records:   &fakeKTPRepo{},
		logs:      &fakeLogRepo{},
	}
	v := newTestVerifier(t, deps)

	result, err := v.Verify(context.Background(), jpegUpload())
	require.NoError(t, err)

	assert.False(t, result.IsValidKTP)
	assert.Contains(t, result.ValidationErrors, "NIK harus 16 digit angka")
	assert.Less(t, result.ConfidenceScore, float32(0.9), "violations lower confidence")
	assert.Empty(t, deps.records.saved)
}

func TestVerifySoftViolationStillValid(t *testing.T) {
	ext := goodExtraction()
	ext.Record.Religion = "JEDI"

	deps := &testDeps{
		extractor: &fakeExtractor{result: ext},
		records:   &fakeKTPRepo{},
		logs:      &fakeLogRepo{},
	}
	v := newTestVerifier(t, deps)

	result, err := v.Verify(context.Background(), jpegUpload())
	require.NoError(t, err)

	assert.True(t, result.IsValidKTP, "enum drift must not reject the card")
	assert.Contains(t, result.ValidationErrors, "Agama tidak valid: JEDI")
	assert.InDelta(t, 0.8, result.ConfidenceScore, 1e-6)
	require.Len(t, deps.records.saved, 1)
	require.NotNil(t, result.RecordID)
}

func TestVerifyStorageFailureDegrades(t *testing.T) {
	deps := &testDeps{
		extractor: &fakeExtractor{result: goodExtraction()},
		records:   &fakeKTPRepo{saveErr: errors.New("connection refused")},
		logs:      &fakeLogRepo{},
	}
	v := newTestVerifier(t, deps)

	result, err := v.Verify(context.Background(), jpegUpload())
	require.NoError(t, err)

	assert.True(t, result.IsValidKTP, "storage failure never flips validity")
	assert.Nil(t, result.RecordID)
	assert.Contains(t, result.ProcessingNotes, "Data valid tapi gagal disimpan")
	require.NotNil(t, result.ExtractedData)
	assert.Equal(t, "3174031505900001", result.ExtractedData.NIK)
}

func TestVerifyDuplicateNIK(t *testing.T) {
	deps := &testDeps{
		extractor: &fakeExtractor{result: goodExtraction()},
		records:   &fakeKTPRepo{existing: map[string]bool{"3174031505900001": true}},
		logs:      &fakeLogRepo{},
	}
	v := newTestVerifier(t, deps)

	result, err := v.Verify(context.Background(), jpegUpload())
	require.NoError(t, err)

	assert.True(t, result.IsValidKTP)
	assert.Nil(t, result.RecordID)
	assert.Contains(t, result.ProcessingNotes, "NIK 3174031505900001 sudah terdaftar")
	assert.Contains(t, result.ValidationErrors, "NIK sudah terdaftar dalam database")
	assert.Empty(t, deps.records.saved)
}

func TestVerifyDuplicateNIKRace(t *testing.T) {
	deps := &testDeps{
		extractor: &fakeExtractor{result: goodExtraction()},
		records:   &fakeKTPRepo{saveErr: repository.ErrDuplicateNIK},
		logs:      &fakeLogRepo{},
	}
	v := newTestVerifier(t, deps)

	result, err := v.Verify(context.Background(), jpegUpload())
	require.NoError(t, err)

	assert.True(t, result.IsValidKTP)
	assert.Nil(t, result.RecordID)
	assert.Contains(t, result.ValidationErrors, "NIK sudah terdaftar dalam database")
}

func TestVerifyFaceStored(t *testing.T) {
	ext := goodExtraction()
	ext.Face = &entity.FaceDetection{
		Found:       true,
		BoundingBox: &entity.BoundingBox{X: 10, Y: 10, Width: 80, Height: 100},
		Confidence:  0.8,
	}

	faces := &fakeFaceSaver{ref: "faces/3174031505900001_1.jpg"}
	deps := &testDeps{
		extractor: &fakeExtractor{result: ext},
		records:   &fakeKTPRepo{},
		logs:      &fakeLogRepo{},
		faces:     faces,
	}
	v := newTestVerifier(t, deps)

	result, err := v.Verify(context.Background(), jpegUpload())
	require.NoError(t, err)

	assert.Equal(t, 1, faces.calls)
	require.NotNil(t, result.FaceDetection)
	assert.Equal(t, "faces/3174031505900001_1.jpg", result.FaceDetection.ImageRef)
	require.Len(t, deps.records.savedMeta, 1)
	assert.Equal(t, "faces/3174031505900001_1.jpg", deps.records.savedMeta[0].FaceImageRef)
}

func TestVerifyFaceStoreFailureIsNonFatal(t *testing.T) {
	ext := goodExtraction()
	ext.Face = &entity.FaceDetection{
		Found:       true,
		BoundingBox: &entity.BoundingBox{X: 10, Y: 10, Width: 80, Height: 100},
	}

	deps := &testDeps{
		extractor: &fakeExtractor{result: ext},
		records:   &fakeKTPRepo{},
		logs:      &fakeLogRepo{},
		faces:     &fakeFaceSaver{err: errors.New("bucket gone")},
	}
	v := newTestVerifier(t, deps)

	result, err := v.Verify(context.Background(), jpegUpload())
	require.NoError(t, err)

	assert.True(t, result.IsValidKTP)
	require.NotNil(t, result.RecordID, "record still persists without the face")
	assert.Contains(t, result.ProcessingNotes, "face image could not be stored")
}

func TestVerifyLogFailureIsSilent(t *testing.T) {
	deps := &testDeps{
		extractor: &fakeExtractor{result: goodExtraction()},
		records:   &fakeKTPRepo{},
		logs:      &fakeLogRepo{err: errors.New("log table missing")},
	}
	v := newTestVerifier(t, deps)

	result, err := v.Verify(context.Background(), jpegUpload())
	require.NoError(t, err)
	assert.True(t, result.IsValidKTP)
	require.NotNil(t, result.RecordID)
}
