package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"ktp-verify/internal/repository"
)

// Service is a tiny façade over the records repository that produces XLSX
// bytes for exports.
type Service struct {
	records repository.KTPRepository
	logger  *slog.Logger
}

func NewService(records repository.KTPRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{records: records, logger: logger}
}

// ExportRecordsXLSX returns a workbook of stored card records, newest first.
func (s *Service) ExportRecordsXLSX(ctx context.Context, limit, offset int) ([]byte, error) {
	start := time.Now()

	recs, err := s.records.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}

	f := excelize.NewFile()
	const sheet = "KTP Records"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	headers := []string{
		"NIK",
		"Nama",
		"Tempat Lahir",
		"Tanggal Lahir",
		"Jenis Kelamin",
		"Alamat",
		"Kelurahan",
		"Kecamatan",
		"Kabupaten/Kota",
		"Provinsi",
		"Agama",
		"Status Perkawinan",
		"Pekerjaan",
		"Kewarganegaraan",
		"Confidence",
		"Verified At",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, r := range recs {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		write(1, r.NIK)
		write(2, r.Name)
		write(3, r.BirthPlace)
		write(4, r.BirthDate)
		write(5, r.Gender)
		write(6, r.Address)
		write(7, r.Village)
		write(8, r.District)
		write(9, r.Regency)
		write(10, r.Province)
		write(11, r.Religion)
		write(12, r.MaritalStatus)
		write(13, r.Occupation)
		write(14, r.Nationality)
		write(15, fmt.Sprintf("%.2f", r.ConfidenceScore))
		write(16, r.CreatedAt.UTC().Format("2006-01-02 15:04:05"))
		row++
	}

	_ = f.SetColWidth(sheet, "A", "A", 20) // nik
	_ = f.SetColWidth(sheet, "B", "B", 28) // name
	_ = f.SetColWidth(sheet, "F", "F", 40) // address
	_ = f.SetColWidth(sheet, "P", "P", 20) // timestamp

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.records.ok",
		"rows", len(recs),
		"bytes", buf.Len(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}
