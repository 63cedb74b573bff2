package vision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateJSONAgainstSchema(t *testing.T) {
	schema := BuildAnalysisJSONSchema()

	t.Run("minimal valid document", func(t *testing.T) {
		doc := []byte(`{"is_valid_ktp": false, "confidence_score": 0.2}`)
		assert.NoError(t, ValidateJSONAgainstSchema(schema, doc))
	})

	t.Run("full valid document", func(t *testing.T) {
		doc := []byte(`{
			"is_valid_ktp": true,
			"confidence_score": 0.93,
			"extracted_data": {
				"nik": "3174031505900001",
				"nama": "BUDI SANTOSO",
				"tanggal_lahir": "15-05-1990",
				"jenis_kelamin": "LAKI-LAKI"
			},
			"face_detection": {
				"found": true,
				"bounding_box": {"x": 10, "y": 20, "width": 100, "height": 120},
				"confidence": 0.88
			},
			"validation_errors": [],
			"processing_notes": "clear scan"
		}`)
		assert.NoError(t, ValidateJSONAgainstSchema(schema, doc))
	})

	t.Run("rejections", func(t *testing.T) {
		tests := []struct {
			name string
			doc  string
		}{
			{"missing required keys", `{"confidence_score": 0.5}`},
			{"confidence out of range", `{"is_valid_ktp": true, "confidence_score": 1.5}`},
			{"nik wrong shape", `{"is_valid_ktp": true, "confidence_score": 0.9, "extracted_data": {"nik": "123", "nama": "A"}}`},
			{"date wrong shape", `{"is_valid_ktp": true, "confidence_score": 0.9, "extracted_data": {"nik": "3174031505900001", "nama": "A", "tanggal_lahir": "1990-05-15"}}`},
			{"unknown top-level key", `{"is_valid_ktp": true, "confidence_score": 0.9, "surprise": 1}`},
			{"null optional field", `{"is_valid_ktp": true, "confidence_score": 0.9, "extracted_data": {"nik": "3174031505900001", "nama": "A", "agama": null}}`},
			{"bounding box missing sides", `{"is_valid_ktp": true, "confidence_score": 0.9, "face_detection": {"found": true, "bounding_box": {"x": 1, "y": 1}}}`},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				err := ValidateJSONAgainstSchema(schema, []byte(tt.doc))
				require.Error(t, err)
			})
		}
	})
}
