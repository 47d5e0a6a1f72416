package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/septivank/meter-verification-engine/internal/db"
)

var (
	// ErrNotFound means the meter does not exist or belongs to someone else
	ErrNotFound = errors.New("meter not found")
	// ErrStaleReadingSequence means another verification was persisted for the meter after history was read
	ErrStaleReadingSequence = errors.New("meter reading sequence changed")
)

// acceptedStatuses are the verification statuses that count as reading history
var acceptedStatuses = []string{"VERIFIED", "WARNING"}

// Pool is the part of *pgxpool.Pool the repository uses
type Pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository handles database operations
type Repository struct {
	pool Pool
}

// NewRepository creates a new repository
func NewRepository(pool Pool) *Repository {
	return &Repository{pool: pool}
}

// MeterForOwner loads a meter only if ownerID owns it
func (r *Repository) MeterForOwner(ctx context.Context, meterID, ownerID uuid.UUID) (*db.Meter, error) {
	query := `
		SELECT id, owner_id, serial_number, region_code, reading_seq, created_at
		FROM meters
		WHERE id = $1 AND owner_id = $2
	`

	var meter db.Meter
	err := r.pool.QueryRow(ctx, query, meterID, ownerID).Scan(
		&meter.ID,
		&meter.OwnerID,
		&meter.SerialNumber,
		&meter.RegionCode,
		&meter.ReadingSeq,
		&meter.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query meter: %w", err)
	}

	return &meter, nil
}

// MostRecentReading returns the latest accepted reading, or nil when the meter has none
func (r *Repository) MostRecentReading(ctx context.Context, meterID, ownerID uuid.UUID) (*float64, error) {
	query := `
		SELECT reading
		FROM verification_records
		WHERE meter_id = $1 AND owner_id = $2 AND status = ANY($3)
		ORDER BY created_at DESC
		LIMIT 1
	`

	var reading float64
	err := r.pool.QueryRow(ctx, query, meterID, ownerID, acceptedStatuses).Scan(&reading)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query most recent reading: %w", err)
	}

	return &reading, nil
}

// RecentReadings returns up to limit accepted readings ordered oldest to newest
func (r *Repository) RecentReadings(ctx context.Context, meterID, ownerID uuid.UUID, limit int) ([]float64, error) {
	query := `
		SELECT reading
		FROM verification_records
		WHERE meter_id = $1 AND owner_id = $2 AND status = ANY($3)
		ORDER BY created_at DESC
		LIMIT $4
	`

	rows, err := r.pool.Query(ctx, query, meterID, ownerID, acceptedStatuses, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent readings: %w", err)
	}
	defer rows.Close()

	var values []float64
	for rows.Next() {
		var value float64
		if err := rows.Scan(&value); err != nil {
			return nil, fmt.Errorf("failed to scan value: %w", err)
		}
		values = append(values, value)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	reverse(values)
	return values, nil
}

// SaveVerification inserts the record and advances the meter's reading sequence in one transaction.
// The insert is rolled back when the sequence no longer matches expectedSeq.
func (r *Repository) SaveVerification(ctx context.Context, record *db.VerificationRecord, expectedSeq int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := advanceReadingSeqTx(ctx, tx, record.MeterID, expectedSeq); err != nil {
		return err
	}

	if err := insertVerificationTx(ctx, tx, record); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func advanceReadingSeqTx(ctx context.Context, tx pgx.Tx, meterID uuid.UUID, expectedSeq int64) error {
	query := `
		UPDATE meters
		SET reading_seq = reading_seq + 1
		WHERE id = $1 AND reading_seq = $2
	`

	tag, err := tx.Exec(ctx, query, meterID, expectedSeq)
	if err != nil {
		return fmt.Errorf("failed to advance reading sequence: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleReadingSequence
	}

	return nil
}

func insertVerificationTx(ctx context.Context, tx pgx.Tx, record *db.VerificationRecord) error {
	query := `
		INSERT INTO verification_records (
			id, meter_id, owner_id, reading, previous_reading, consumption,
			image_ref, image_url, ocr_engine, confidence,
			fraud_score, fraud_flags, recommendation, fraud_checks, status,
			consensus_topic, consensus_stream, consensus_sequence, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`

	_, err := tx.Exec(ctx, query,
		record.ID,
		record.MeterID,
		record.OwnerID,
		record.Reading,
		record.PreviousReading,
		record.Consumption,
		record.ImageRef,
		record.ImageURL,
		record.OCREngine,
		record.Confidence,
		record.FraudScore,
		record.FraudFlags,
		record.Recommendation,
		record.FraudChecks,
		record.Status,
		record.ConsensusTopic,
		record.ConsensusStream,
		record.ConsensusSequence,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert verification record: %w", err)
	}

	return nil
}

func reverse(values []float64) {
	for i, j := 0, len(values)-1; i < j; i, j = i+1, j-1 {
		values[i], values[j] = values[j], values[i]
	}
}
