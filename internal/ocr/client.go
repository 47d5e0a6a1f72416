package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const defaultEngineName = "server-ocr"

// ClientConfig configures the HTTP OCR client
type ClientConfig struct {
	Endpoint   string
	APIKey     string
	EngineName string
	Timeout    time.Duration
}

// HTTPClient calls a remote OCR service that takes a base64 image and answers with JSON
type HTTPClient struct {
	endpoint   string
	apiKey     string
	engineName string
	httpClient *http.Client
	logger     *zap.Logger
}

type extractRequest struct {
	Image    string `json:"image"`
	MimeType string `json:"mime_type"`
}

type extractResponse struct {
	Reading    *float64 `json:"reading"`
	Confidence float64  `json:"confidence"`
	RawText    string   `json:"raw_text"`
	Engine     string   `json:"engine"`
	Error      string   `json:"error"`
}

// NewHTTPClient creates a new OCR client
func NewHTTPClient(cfg ClientConfig, logger *zap.Logger) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	engine := cfg.EngineName
	if engine == "" {
		engine = defaultEngineName
	}
	return &HTTPClient{
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		engineName: engine,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// ExtractReading sends the image to the OCR service
func (c *HTTPClient) ExtractReading(ctx context.Context, image []byte) (Extraction, error) {
	if c.endpoint == "" {
		return Extraction{}, fmt.Errorf("ocr endpoint is not configured")
	}

	requestJSON, err := json.Marshal(extractRequest{
		Image:    base64.StdEncoding.EncodeToString(image),
		MimeType: http.DetectContentType(image),
	})
	if err != nil {
		return Extraction{}, fmt.Errorf("failed to marshal ocr request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(requestJSON))
	if err != nil {
		return Extraction{}, fmt.Errorf("failed to build ocr request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Extraction{}, fmt.Errorf("ocr request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Extraction{}, fmt.Errorf("ocr service error: %s - %s", resp.Status, string(body))
	}

	var out extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Extraction{}, fmt.Errorf("failed to decode ocr response: %w", err)
	}
	if out.Error != "" {
		return Extraction{}, fmt.Errorf("ocr service reported: %s", out.Error)
	}
	if out.Reading == nil {
		return Extraction{}, fmt.Errorf("ocr service returned no reading")
	}

	engine := out.Engine
	if engine == "" {
		engine = c.engineName
	}

	c.logger.Debug("ocr reading extracted",
		zap.Float64("reading", *out.Reading),
		zap.Float64("confidence", out.Confidence),
		zap.String("engine", engine),
	)

	return Extraction{
		Reading:    *out.Reading,
		Confidence: out.Confidence,
		RawText:    out.RawText,
		Engine:     engine,
	}, nil
}
