package timeparser

import (
	"fmt"
	"strings"
	"time"
)

var captureFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05", // ISO 8601 without zone
	"2006-01-02 15:04:05", // SQL-style
	"2006:01:02 15:04:05", // EXIF DateTimeOriginal
	"02/01/2006 15:04:05", // DD/MM/YYYY HH:mm:ss
	"02 15:04:05/01/2006", // DD HH:mm:ss/MM/YYYY
}

// ParseCaptureTimestamp parses an image capture timestamp. Zoneless layouts are read as UTC.
func ParseCaptureTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}

	var lastErr error
	for _, format := range captureFormats {
		t, err := time.Parse(format, value)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}

	return time.Time{}, fmt.Errorf("failed to parse timestamp '%s': %w", value, lastErr)
}

// Age returns how long before now the capture happened. Negative means the capture is in the future.
func Age(captured, now time.Time) time.Duration {
	return now.Sub(captured)
}
