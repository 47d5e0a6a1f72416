package validator_test

import (
	"testing"
	"time"

	"github.com/septivank/meter-verification-engine/internal/validator"
	"github.com/stretchr/testify/assert"
)

var testNow = time.Date(2025, 12, 29, 10, 32, 0, 0, time.UTC)

func coord(v float64) *float64 { return &v }

func TestValidateCapture_EmptyMetadata(t *testing.T) {
	v := validator.NewValidator(0)

	result := v.ValidateCapture(validator.CaptureMetadata{}, testNow)

	assert.InDelta(t, 0.20, result.Score, 1e-9)
	assert.ElementsMatch(t, []string{
		validator.FlagMissingTimestamp,
		validator.FlagMissingGPS,
		validator.FlagMissingDeviceInfo,
	}, result.Flags)
}

func TestValidateCapture_CleanMetadata(t *testing.T) {
	v := validator.NewValidator(0)

	result := v.ValidateCapture(validator.CaptureMetadata{
		Timestamp:   "2025-12-29T10:30:00Z",
		DeviceID:    "device-1",
		Location:    &validator.GeoPoint{Latitude: coord(-6.2), Longitude: coord(106.8)},
		ContentType: "image/jpeg",
	}, testNow)

	assert.Zero(t, result.Score)
	assert.Empty(t, result.Flags)
}

func TestValidateCapture_Timestamp(t *testing.T) {
	v := validator.NewValidator(0)
	base := validator.CaptureMetadata{
		DeviceModel: "Pixel 8",
		Location:    &validator.GeoPoint{Latitude: coord(-6.2), Longitude: coord(106.8)},
	}

	tests := []struct {
		name      string
		timestamp string
		flag      string
		score     float64
	}{
		{"invalid", "yesterday-ish", validator.FlagInvalidTimestamp, 0.1},
		{"old", "2025-12-01T10:00:00Z", validator.FlagOldImage, 0.15},
		{"future", "2025-12-30T10:00:00Z", validator.FlagFutureTimestamp, 0.2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta := base
			meta.Timestamp = tt.timestamp
			result := v.ValidateCapture(meta, testNow)
			assert.InDelta(t, tt.score, result.Score, 1e-9)
			assert.Equal(t, []string{tt.flag}, result.Flags)
		})
	}
}

func TestValidateCapture_Location(t *testing.T) {
	v := validator.NewValidator(0)

	tests := []struct {
		name  string
		loc   *validator.GeoPoint
		flag  string
		score float64
	}{
		{"malformed", &validator.GeoPoint{Latitude: coord(10)}, validator.FlagInvalidGPS, 0.05},
		{"out of range", &validator.GeoPoint{Latitude: coord(91), Longitude: coord(10)}, validator.FlagInvalidGPSRange, 0.1},
		{"null island", &validator.GeoPoint{Latitude: coord(0.05), Longitude: coord(-0.02)}, validator.FlagSuspiciousGPS, 0.15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := v.ValidateCapture(validator.CaptureMetadata{
				Timestamp: "2025-12-29T10:00:00Z",
				DeviceID:  "device-1",
				Location:  tt.loc,
			}, testNow)
			assert.InDelta(t, tt.score, result.Score, 1e-9)
			assert.Equal(t, []string{tt.flag}, result.Flags)
		})
	}
}

func TestValidateCapture_Additive(t *testing.T) {
	v := validator.NewValidator(time.Hour)

	result := v.ValidateCapture(validator.CaptureMetadata{
		Timestamp: "2025-12-29T08:00:00Z",
		Location:  &validator.GeoPoint{Latitude: coord(0), Longitude: coord(0)},
	}, testNow)

	// old image + suspicious gps + missing device info
	assert.InDelta(t, 0.35, result.Score, 1e-9)
	assert.Equal(t, []string{
		validator.FlagOldImage,
		validator.FlagSuspiciousGPS,
		validator.FlagMissingDeviceInfo,
	}, result.Flags)
}
