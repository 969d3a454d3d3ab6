package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/p-ddong/floratio-lib-client/internal/client"
	"github.com/p-ddong/floratio-lib-client/internal/models"
)

// PredictionService talks to the external plant identification API
type PredictionService struct {
	endpoint string
	client   *client.Client
	observe  func(time.Duration, bool)
}

// NewPredictionService creates a new prediction service client
func NewPredictionService(endpoint string, opts ...client.Option) *PredictionService {
	if endpoint == "" {
		endpoint = "http://p-ddong.id.vn/predict"
	}
	return &PredictionService{
		endpoint: endpoint,
		client:   client.New(endpoint, opts...),
	}
}

// OnPredict installs a callback receiving the duration and outcome of each call
func (p *PredictionService) OnPredict(fn func(time.Duration, bool)) {
	p.observe = fn
}

// rawPrediction tolerates the label field names the model server has used
type rawPrediction struct {
	Name           string  `json:"name"`
	Class          string  `json:"class"`
	ScientificName string  `json:"scientific_name"`
	Confidence     float64 `json:"confidence"`
}

func (r rawPrediction) label() string {
	switch {
	case r.Name != "":
		return r.Name
	case r.ScientificName != "":
		return r.ScientificName
	default:
		return r.Class
	}
}

type predictionResponse struct {
	Predictions []rawPrediction `json:"predictions"`
}

// Predict uploads one image as the "file" part and returns the candidate
// list with confidences in percent
func (p *PredictionService) Predict(ctx context.Context, filename, contentType string, data []byte) ([]models.Prediction, error) {
	if len(data) == 0 {
		return nil, errors.New("image is empty")
	}

	body, formType, err := singleFileForm("file", filename, contentType, data)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var resp predictionResponse
	err = p.client.SendMultipart(ctx, http.MethodPost, "", "", formType, body, &resp)
	if p.observe != nil {
		p.observe(time.Since(start), err == nil)
	}
	if err != nil {
		return nil, fmt.Errorf("prediction request failed: %w", err)
	}

	scale := confidenceScale(resp.Predictions)
	predictions := make([]models.Prediction, 0, len(resp.Predictions))
	for _, raw := range resp.Predictions {
		name := strings.TrimSpace(raw.label())
		if name == "" {
			continue
		}
		predictions = append(predictions, models.Prediction{Name: name, Confidence: raw.Confidence * scale})
	}

	log.Info().
		Str("filename", filename).
		Int("predictions", len(predictions)).
		Dur("duration", time.Since(start)).
		Msg("Image identified")

	return predictions, nil
}

// confidenceScale maps a response onto percentages. Model servers report
// either fractions or percentages; a response with any value above 1 is
// taken as percentages already.
func confidenceScale(raw []rawPrediction) float64 {
	for _, r := range raw {
		if r.Confidence > 1 {
			return 1
		}
	}
	return 100
}

// HealthCheck verifies the prediction service is configured
func (p *PredictionService) HealthCheck(ctx context.Context) error {
	if p.endpoint == "" {
		return fmt.Errorf("prediction endpoint not configured")
	}
	return nil
}

func singleFileForm(field, filename, contentType string, data []byte) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, field, escapeQuotes(filename)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)

	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", fmt.Errorf("failed to write form part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close form: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

// decodeJSON is shared by services that receive loosely shaped payloads
func decodeJSON(raw json.RawMessage, out interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}
