package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"ktp-verify/internal/entity"
	"ktp-verify/internal/vision"
)

// wire shapes for the generateContent endpoint.
type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type generationConfig struct {
	Temperature      float32 `json:"temperature"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// analysisDoc mirrors the JSON schema the model must answer with.
type analysisDoc struct {
	IsValidKTP      bool              `json:"is_valid_ktp"`
	ConfidenceScore float32           `json:"confidence_score"`
	ExtractedData   *entity.KTPRecord `json:"extracted_data,omitempty"`
	FaceDetection   *struct {
		Found        bool                `json:"found"`
		BoundingBox  *entity.BoundingBox `json:"bounding_box,omitempty"`
		Confidence   float32             `json:"confidence"`
		QualityNotes string              `json:"quality_notes,omitempty"`
	} `json:"face_detection,omitempty"`
	ValidationErrors []string `json:"validation_errors,omitempty"`
	ProcessingNotes  string   `json:"processing_notes,omitempty"`
}

// Extract implements vision.Extractor against the Gemini generateContent
// API. Failures come back as *vision.Error so the pipeline can map each
// kind without string matching. One call per request: no retries, quota
// costs money.
func (c *Client) Extract(ctx context.Context, req vision.Request) (vision.ExtractionResult, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.log.Info("vision.extract.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"image_bytes", len(req.ImageData),
		"mime_type", req.MimeType,
	)

	body := generateRequest{
		Contents: []content{{
			Parts: []part{
				{Text: buildAnalysisPrompt()},
				{InlineData: &inlineData{
					MimeType: req.MimeType,
					Data:     base64.StdEncoding.EncodeToString(req.ImageData),
				}},
			},
		}},
		GenerationConfig: &generationConfig{
			Temperature:      0,
			ResponseMimeType: "application/json",
		},
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent",
		strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.Model)
	raw, err := c.post(ctx, endpoint, body)
	if err != nil {
		c.log.Error("vision.extract.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return vision.ExtractionResult{}, err
	}

	var gr generateResponse
	if err := json.Unmarshal(raw, &gr); err != nil {
		return vision.ExtractionResult{}, vision.NewError(vision.KindMalformed, "decode generateContent response", err)
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return vision.ExtractionResult{}, vision.NewError(vision.KindMalformed, "no candidates in response", nil)
	}

	text := vision.StripCodeFences(gr.Candidates[0].Content.Parts[0].Text)
	doc := []byte(text)

	schema := vision.BuildAnalysisJSONSchema()
	if err := vision.ValidateJSONAgainstSchema(schema, doc); err != nil {
		// Lenient pass: drop malformed optionals and re-validate before
		// giving up on the whole answer.
		cleaned, dropped, sErr := vision.SanitizeOptionalFields(doc)
		if sErr != nil {
			return vision.ExtractionResult{}, vision.NewError(vision.KindMalformed, "model answer is not JSON", sErr)
		}
		if vErr := vision.ValidateJSONAgainstSchema(schema, cleaned); vErr != nil {
			c.log.Error("vision.extract.schema_validation_failed",
				"req_id", rid, "error", vErr,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return vision.ExtractionResult{}, vision.NewError(vision.KindMalformed, "model answer does not match schema", vErr)
		}
		c.log.Warn("vision.extract.lenient_sanitize_applied", "req_id", rid, "dropped", dropped)
		doc = cleaned
	}

	var parsed analysisDoc
	if err := json.Unmarshal(doc, &parsed); err != nil {
		return vision.ExtractionResult{}, vision.NewError(vision.KindMalformed, "unmarshal analysis", err)
	}

	result := vision.ExtractionResult{
		IsValidKTP:       parsed.IsValidKTP,
		Confidence:       parsed.ConfidenceScore,
		Record:           parsed.ExtractedData,
		ValidationErrors: parsed.ValidationErrors,
		Notes:            parsed.ProcessingNotes,
	}
	if parsed.FaceDetection != nil {
		result.Face = &entity.FaceDetection{
			Found:        parsed.FaceDetection.Found,
			BoundingBox:  parsed.FaceDetection.BoundingBox,
			Confidence:   parsed.FaceDetection.Confidence,
			QualityNotes: parsed.FaceDetection.QualityNotes,
		}
	}

	c.log.Info("vision.extract.ok",
		"req_id", rid,
		"is_valid_ktp", result.IsValidKTP,
		"confidence", result.Confidence,
		"face_found", result.Face != nil && result.Face.Found,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

func (c *Client) post(ctx context.Context, url string, body any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, vision.NewError(vision.KindMalformed, "marshal request", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, vision.NewError(vision.KindUnavailable, "build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.cfg.APIKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, vision.NewError(vision.KindTimeout, "generateContent call timed out", err)
		}
		return nil, vision.NewError(vision.KindUnavailable, "generateContent http error", err)
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			c.log.Warn("gemini response body close error", "error", err)
		}
	}(resp.Body)

	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, vision.NewError(vision.KindUnavailable, "read response body", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, vision.NewError(vision.KindQuotaExceeded,
			fmt.Sprintf("gemini status %d: %s", resp.StatusCode, buf.String()), nil)
	case resp.StatusCode >= 500:
		return nil, vision.NewError(vision.KindUnavailable,
			fmt.Sprintf("gemini status %d: %s", resp.StatusCode, buf.String()), nil)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, vision.NewError(vision.KindMalformed,
			fmt.Sprintf("gemini status %d: %s", resp.StatusCode, buf.String()), nil)
	}
	return buf.Bytes(), nil
}
