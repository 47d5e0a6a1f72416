package ocr

import (
	"context"
	"errors"
	"fmt"
)

// EngineClient tags readings taken verbatim from the submitting client
const EngineClient = "client"

// DefaultClientConfidenceThreshold is the confidence at which a client reading is trusted without server OCR
const DefaultClientConfidenceThreshold = 0.90

var (
	ErrEmptyImage       = errors.New("image payload is empty")
	ErrExtractionFailed = errors.New("ocr extraction failed")
)

// Extraction is what an OCR engine read off the meter photo
type Extraction struct {
	Reading    float64
	Confidence float64
	RawText    string
	Engine     string
}

// Extractor reads a meter value from an image
type Extractor interface {
	ExtractReading(ctx context.Context, image []byte) (Extraction, error)
}

// Selection is the reading the pipeline goes on with
type Selection struct {
	Reading    float64
	Confidence float64
	Engine     string
	RawText    string
}

// Selector decides between the client's own reading and server-side OCR
type Selector struct {
	extractor           Extractor
	confidenceThreshold float64
}

// NewSelector creates a selector; a non-positive threshold falls back to DefaultClientConfidenceThreshold
func NewSelector(extractor Extractor, confidenceThreshold float64) *Selector {
	if confidenceThreshold <= 0 {
		confidenceThreshold = DefaultClientConfidenceThreshold
	}
	return &Selector{
		extractor:           extractor,
		confidenceThreshold: confidenceThreshold,
	}
}

// Select returns the client reading when its confidence clears the threshold and
// otherwise runs server OCR. Any OCR error is final for the request.
func (s *Selector) Select(ctx context.Context, image []byte, clientReading, clientConfidence *float64) (Selection, error) {
	if len(image) == 0 {
		return Selection{}, ErrEmptyImage
	}

	if clientReading != nil && clientConfidence != nil && *clientConfidence >= s.confidenceThreshold {
		return Selection{
			Reading:    *clientReading,
			Confidence: *clientConfidence,
			Engine:     EngineClient,
		}, nil
	}

	if s.extractor == nil {
		return Selection{}, fmt.Errorf("%w: no server ocr configured", ErrExtractionFailed)
	}

	extraction, err := s.extractor.ExtractReading(ctx, image)
	if err != nil {
		return Selection{}, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	return Selection{
		Reading:    extraction.Reading,
		Confidence: extraction.Confidence,
		Engine:     extraction.Engine,
		RawText:    extraction.RawText,
	}, nil
}
