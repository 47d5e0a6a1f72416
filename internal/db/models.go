package db

import (
	"time"

	"github.com/google/uuid"
)

// Meter is a registered utility meter and its owner
type Meter struct {
	ID           uuid.UUID
	OwnerID      uuid.UUID
	SerialNumber string
	RegionCode   string
	// ReadingSeq advances on every persisted verification and guards the previous-reading read
	ReadingSeq int64
	CreatedAt  time.Time
}

// VerificationRecord is the persisted outcome of one verification run. Rows are never updated.
type VerificationRecord struct {
	ID                uuid.UUID
	MeterID           uuid.UUID
	OwnerID           uuid.UUID
	Reading           float64
	PreviousReading   *float64
	Consumption       *float64
	ImageRef          string
	ImageURL          *string
	OCREngine         string
	Confidence        float64
	FraudScore        float64
	FraudFlags        []string
	Recommendation    string
	FraudChecks       []byte
	Status            string
	ConsensusTopic    *string
	ConsensusStream   *string
	ConsensusSequence *int64
	CreatedAt         time.Time
}
