package vision

import (
	"encoding/json"
	"fmt"
	"strings"
)

// StripCodeFences removes a markdown ```json wrapper if the model added one
// despite the strict-JSON instruction.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// optionalFieldKeys are the extracted_data members we may drop when the
// model returns null or a non-string where the schema wants a string.
// nik and nama stay untouched: losing them silently would hide a failure.
var optionalFieldKeys = []string{
	"tempat_lahir", "tanggal_lahir", "jenis_kelamin", "alamat", "rt_rw",
	"kelurahan", "kecamatan", "kabupaten_kota", "provinsi", "agama",
	"status_perkawinan", "pekerjaan", "kewarganegaraan", "berlaku_hingga",
}

// SanitizeOptionalFields removes or normalizes optional members that would
// fail the stricter schema, so an otherwise good document still validates.
// Only optionals are touched. Returns the cleaned JSON and what was dropped.
func SanitizeOptionalFields(doc []byte) ([]byte, []string, error) {
	var m map[string]any
	if err := json.Unmarshal(doc, &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	dropped := make([]string, 0, 4)

	if data, ok := m["extracted_data"].(map[string]any); ok {
		for _, k := range optionalFieldKeys {
			v, present := data[k]
			if !present {
				continue
			}
			switch t := v.(type) {
			case string:
				s := strings.TrimSpace(t)
				if s == "" {
					delete(data, k)
					dropped = append(dropped, k+"(empty)")
				} else {
					data[k] = s
				}
			case nil:
				delete(data, k)
				dropped = append(dropped, k+"(null)")
			case float64:
				data[k] = strings.TrimSpace(fmt.Sprintf("%v", t))
				dropped = append(dropped, k+"(number)")
			default:
				delete(data, k)
				dropped = append(dropped, k+"(type)")
			}
		}
		// remove unknown keys so additionalProperties=false still holds
		allowed := map[string]struct{}{"nik": {}, "nama": {}}
		for _, k := range optionalFieldKeys {
			allowed[k] = struct{}{}
		}
		for k := range data {
			if _, ok := allowed[k]; !ok {
				delete(data, k)
				dropped = append(dropped, k+"(unknown)")
			}
		}
	}

	if face, ok := m["face_detection"].(map[string]any); ok {
		if v, present := face["quality_notes"]; present {
			if v == nil {
				delete(face, "quality_notes")
				dropped = append(dropped, "quality_notes(null)")
			}
		}
		if v, present := face["bounding_box"]; present && v == nil {
			delete(face, "bounding_box")
			dropped = append(dropped, "bounding_box(null)")
		}
	}

	if v, present := m["processing_notes"]; present && v == nil {
		delete(m, "processing_notes")
		dropped = append(dropped, "processing_notes(null)")
	}
	if v, present := m["validation_errors"]; present && v == nil {
		delete(m, "validation_errors")
		dropped = append(dropped, "validation_errors(null)")
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, dropped, fmt.Errorf("sanitize: encode: %w", err)
	}
	return out, dropped, nil
}
