package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// NewLogger creates a new structured logger at the given level
func NewLogger(serviceName, level string) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.InitialFields = map[string]interface{}{
		"service": serviceName,
	}

	if level != "" {
		lvl, err := zap.ParseAtomicLevel(level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		config.Level = lvl
	}

	logger, err := config.Build()
	if err != nil {
		return nil, err
	}

	return logger, nil
}

// WithRequestID returns a logger with request_id field
func WithRequestID(logger *zap.Logger, requestID string) *zap.Logger {
	return logger.With(zap.String("request_id", requestID))
}

// WithMeter returns a logger scoped to a meter and its owner
func WithMeter(logger *zap.Logger, meterID, ownerID string) *zap.Logger {
	return logger.With(zap.String("meter_id", meterID), zap.String("owner_id", ownerID))
}
