package validator

import (
	"math"
	"time"

	"github.com/septivank/meter-verification-engine/tools/timeparser"
)

// Capture metadata flags
const (
	FlagMissingTimestamp  = "MISSING_TIMESTAMP"
	FlagInvalidTimestamp  = "INVALID_TIMESTAMP"
	FlagOldImage          = "OLD_IMAGE"
	FlagFutureTimestamp   = "FUTURE_TIMESTAMP"
	FlagMissingGPS        = "MISSING_GPS"
	FlagInvalidGPS        = "INVALID_GPS"
	FlagInvalidGPSRange   = "INVALID_GPS_RANGE"
	FlagSuspiciousGPS     = "SUSPICIOUS_GPS"
	FlagMissingDeviceInfo = "MISSING_DEVICE_INFO"
)

const (
	DefaultMaxImageAge = 7 * 24 * time.Hour

	nullIslandRadius = 0.1
)

// GeoPoint is a capture location. A nil coordinate means the client sent a malformed point.
type GeoPoint struct {
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// CaptureMetadata describes how and where a meter photo was taken.
// It is built from the upload request, never from EXIF, so device and GPS
// fields stay empty unless an upstream caller fills them in.
type CaptureMetadata struct {
	Timestamp   string    `json:"timestamp,omitempty"`
	DeviceID    string    `json:"device_id,omitempty"`
	DeviceModel string    `json:"device_model,omitempty"`
	Location    *GeoPoint `json:"location,omitempty"`
	FileName    string    `json:"file_name,omitempty"`
	FileSize    int64     `json:"file_size,omitempty"`
	ContentType string    `json:"content_type,omitempty"`
}

// ValidationResult holds the additive metadata score and the flags that produced it
type ValidationResult struct {
	Score float64
	Flags []string
}

func (r *ValidationResult) add(flag string, weight float64) {
	r.Score += weight
	r.Flags = append(r.Flags, flag)
}

// Validator checks capture metadata plausibility
type Validator struct {
	maxImageAge time.Duration
}

// NewValidator creates a new validator; a non-positive maxImageAge falls back to seven days
func NewValidator(maxImageAge time.Duration) *Validator {
	if maxImageAge <= 0 {
		maxImageAge = DefaultMaxImageAge
	}
	return &Validator{maxImageAge: maxImageAge}
}

// ValidateCapture scores capture metadata. Every matched rule adds to the score.
func (v *Validator) ValidateCapture(meta CaptureMetadata, now time.Time) ValidationResult {
	result := ValidationResult{Flags: []string{}}

	v.checkTimestamp(&result, meta.Timestamp, now)
	checkLocation(&result, meta.Location)

	if meta.DeviceID == "" && meta.DeviceModel == "" {
		result.add(FlagMissingDeviceInfo, 0.05)
	}

	return result
}

func (v *Validator) checkTimestamp(result *ValidationResult, raw string, now time.Time) {
	if raw == "" {
		result.add(FlagMissingTimestamp, 0.1)
		return
	}

	captured, err := timeparser.ParseCaptureTimestamp(raw)
	if err != nil {
		result.add(FlagInvalidTimestamp, 0.1)
		return
	}

	age := timeparser.Age(captured, now)
	switch {
	case age > v.maxImageAge:
		result.add(FlagOldImage, 0.15)
	case age < 0:
		result.add(FlagFutureTimestamp, 0.2)
	}
}

func checkLocation(result *ValidationResult, loc *GeoPoint) {
	if loc == nil {
		result.add(FlagMissingGPS, 0.05)
		return
	}
	if loc.Latitude == nil || loc.Longitude == nil {
		result.add(FlagInvalidGPS, 0.05)
		return
	}

	lat, lon := *loc.Latitude, *loc.Longitude
	switch {
	case lat < -90 || lat > 90 || lon < -180 || lon > 180:
		result.add(FlagInvalidGPSRange, 0.1)
	case math.Abs(lat) < nullIslandRadius && math.Abs(lon) < nullIslandRadius:
		result.add(FlagSuspiciousGPS, 0.15)
	}
}
