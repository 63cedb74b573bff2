package gemini

import (
	"encoding/json"
	"strings"

	"ktp-verify/internal/vision"
)

// buildAnalysisPrompt asks for the full card analysis plus face location in
// one pass. The schema is embedded so the model and our local validation
// agree on the exact shape.
func buildAnalysisPrompt() string {
	parts := []string{
		"Analyze this image as an Indonesian KTP (Kartu Tanda Penduduk) identity card.",
		"",
		"Validity criteria: Garuda Pancasila emblem top-left, the text REPUBLIK INDONESIA",
		"at the top, the standard government card layout, the mandatory printed fields",
		"(NIK of 16 digits, Nama, Tempat/Tgl Lahir, and so on), and the holder's face",
		"photograph on the left side.",
		"",
		"If the card is valid, extract every visible field exactly as printed:",
		"values are uppercase Indonesian, tanggal_lahir uses DD-MM-YYYY, rt_rw uses 000/000,",
		"jenis_kelamin is LAKI-LAKI or PEREMPUAN, berlaku_hingga is a date or SEUMUR HIDUP.",
		"Omit any field that is unreadable; never invent values.",
		"",
		"Locate the face photograph and report its pixel bounding box relative to this",
		"image, with a confidence score and a short quality note (sharpness, lighting, angle).",
		"",
		"If the image is not a valid KTP, set is_valid_ktp to false and explain each",
		"specific reason in validation_errors. Lower confidence_score for blurry or",
		"partially visible cards.",
		"",
		"Return ONLY JSON matching this schema, with no surrounding text:",
		mustJSON(vision.BuildAnalysisJSONSchema()),
	}
	return strings.Join(parts, "\n")
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
