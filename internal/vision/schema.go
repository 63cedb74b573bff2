package vision

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// BuildAnalysisJSONSchema returns the JSON-Schema (draft 2020-12 subset) the
// model's answer must match. We embed it in the prompt and also validate the
// response against it locally before trusting a single field.
func BuildAnalysisJSONSchema() map[string]any {
	fieldProps := map[string]any{
		"nik":               map[string]any{"type": "string", "pattern": `^\d{16}$`},
		"nama":              map[string]any{"type": "string", "minLength": 1},
		"tempat_lahir":      map[string]any{"type": "string"},
		"tanggal_lahir":     map[string]any{"type": "string", "pattern": `^\d{2}-\d{2}-\d{4}$`},
		"jenis_kelamin":     map[string]any{"type": "string"},
		"alamat":            map[string]any{"type": "string"},
		"rt_rw":             map[string]any{"type": "string"},
		"kelurahan":         map[string]any{"type": "string"},
		"kecamatan":         map[string]any{"type": "string"},
		"kabupaten_kota":    map[string]any{"type": "string"},
		"provinsi":          map[string]any{"type": "string"},
		"agama":             map[string]any{"type": "string"},
		"status_perkawinan": map[string]any{"type": "string"},
		"pekerjaan":         map[string]any{"type": "string"},
		"kewarganegaraan":   map[string]any{"type": "string"},
		"berlaku_hingga":    map[string]any{"type": "string"},
	}

	boundingBox := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"x":      map[string]any{"type": "integer", "minimum": 0},
			"y":      map[string]any{"type": "integer", "minimum": 0},
			"width":  map[string]any{"type": "integer", "minimum": 1},
			"height": map[string]any{"type": "integer", "minimum": 1},
		},
		"required": []string{"x", "y", "width", "height"},
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"is_valid_ktp":     map[string]any{"type": "boolean"},
			"confidence_score": map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
			"extracted_data": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties":           fieldProps,
				"required":             []string{"nik", "nama"},
			},
			"face_detection": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties": map[string]any{
					"found":         map[string]any{"type": "boolean"},
					"bounding_box":  boundingBox,
					"confidence":    map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
					"quality_notes": map[string]any{"type": "string"},
				},
				"required": []string{"found"},
			},
			"validation_errors": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
			"processing_notes": map[string]any{"type": "string"},
		},
		"required": []string{"is_valid_ktp", "confidence_score"},
	}
}

// ValidateJSONAgainstSchema validates "data" against "schemaMap".
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
