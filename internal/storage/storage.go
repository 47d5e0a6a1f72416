package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// PlaceholderScheme prefixes synthetic references used when an upload fails
const PlaceholderScheme = "placeholder://"

// Upload points at a stored meter photo
type Upload struct {
	RemoteRef  string
	GatewayURL string
}

// Uploader stores meter photos
type Uploader interface {
	UploadImage(ctx context.Context, data []byte, name string) (Upload, error)
}

// Placeholder returns a synthetic reference so a verification can complete without a stored image
func Placeholder() Upload {
	return Upload{RemoteRef: PlaceholderScheme + uuid.NewString()}
}

// IsPlaceholder reports whether ref was produced by Placeholder
func IsPlaceholder(ref string) bool {
	return strings.HasPrefix(ref, PlaceholderScheme)
}

// ObjectName builds a collision-free object name for a meter photo
func ObjectName(meterID, original string) string {
	ext := ".jpg"
	if i := strings.LastIndex(original, "."); i >= 0 && i < len(original)-1 {
		ext = strings.ToLower(original[i:])
	}
	return fmt.Sprintf("%s/%s%s", meterID, uuid.NewString(), ext)
}
