package timeparser_test

import (
	"testing"
	"time"

	"github.com/septivank/meter-verification-engine/tools/timeparser"
)

func TestParseCaptureTimestamp_Formats(t *testing.T) {
	expected := time.Date(2025, 12, 29, 10, 30, 45, 0, time.UTC)

	cases := map[string]string{
		"rfc3339":      "2025-12-29T10:30:45Z",
		"rfc3339 zone": "2025-12-29T17:30:45+07:00",
		"iso no zone":  "2025-12-29T10:30:45",
		"sql":          "2025-12-29 10:30:45",
		"exif":         "2025:12:29 10:30:45",
		"meter":        "29/12/2025 10:30:45",
		"meter alt":    "29 10:30:45/12/2025",
	}

	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			result, err := timeparser.ParseCaptureTimestamp(input)
			if err != nil {
				t.Fatalf("Failed to parse timestamp: %v", err)
			}
			if !result.Equal(expected) {
				t.Errorf("Expected %v, got %v", expected, result)
			}
		})
	}
}

func TestParseCaptureTimestamp_Invalid(t *testing.T) {
	if _, err := timeparser.ParseCaptureTimestamp("invalid-date-string"); err == nil {
		t.Error("Expected error for invalid timestamp")
	}
}

func TestParseCaptureTimestamp_Empty(t *testing.T) {
	if _, err := timeparser.ParseCaptureTimestamp("   "); err == nil {
		t.Error("Expected error for empty timestamp")
	}
}

func TestAge(t *testing.T) {
	now := time.Date(2025, 12, 29, 10, 0, 0, 0, time.UTC)

	if age := timeparser.Age(now.Add(-time.Hour), now); age != time.Hour {
		t.Errorf("Expected 1h, got %v", age)
	}
	if age := timeparser.Age(now.Add(time.Hour), now); age >= 0 {
		t.Errorf("Expected negative age for future capture, got %v", age)
	}
}
