package repository

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/septivank/meter-verification-engine/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPool struct{ mock.Mock }

func (m *mockPool) Begin(ctx context.Context) (pgx.Tx, error) {
	args := m.Called(ctx)
	tx, _ := args.Get(0).(pgx.Tx)
	return tx, args.Error(1)
}

func (m *mockPool) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	called := m.Called(ctx, sql)
	rows, _ := called.Get(0).(pgx.Rows)
	return rows, called.Error(1)
}

func (m *mockPool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return m.Called(ctx, sql).Get(0).(pgx.Row)
}

// mockTx overrides the calls SaveVerification makes; the embedded interface covers the rest
type mockTx struct {
	pgx.Tx
	mock.Mock
}

func (m *mockTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	called := m.Called(ctx, sql, args)
	return called.Get(0).(pgconn.CommandTag), called.Error(1)
}

func (m *mockTx) Commit(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockTx) Rollback(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type errRow struct{ err error }

func (r errRow) Scan(...any) error { return r.err }

func statement(prefix string) interface{} {
	return mock.MatchedBy(func(sql string) bool {
		return strings.HasPrefix(strings.TrimSpace(sql), prefix)
	})
}

func testRecord() *db.VerificationRecord {
	return &db.VerificationRecord{
		ID:         uuid.New(),
		MeterID:    uuid.New(),
		OwnerID:    uuid.New(),
		Reading:    1500,
		FraudFlags: []string{},
		Status:     "VERIFIED",
		CreatedAt:  time.Date(2024, 3, 10, 8, 30, 0, 0, time.UTC),
	}
}

func newTx(pool *mockPool) *mockTx {
	tx := &mockTx{}
	pool.On("Begin", mock.Anything).Return(tx, nil)
	tx.On("Rollback", mock.Anything).Return(pgx.ErrTxClosed)
	return tx
}

func TestSaveVerification_StaleSequence(t *testing.T) {
	pool := &mockPool{}
	tx := newTx(pool)
	tx.On("Exec", mock.Anything, statement("UPDATE meters"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 0"), nil)

	err := NewRepository(pool).SaveVerification(context.Background(), testRecord(), 7)

	assert.ErrorIs(t, err, ErrStaleReadingSequence)
	tx.AssertNotCalled(t, "Exec", mock.Anything, statement("INSERT INTO verification_records"), mock.Anything)
	tx.AssertNotCalled(t, "Commit", mock.Anything)
	tx.AssertCalled(t, "Rollback", mock.Anything)
}

func TestSaveVerification_Commits(t *testing.T) {
	record := testRecord()
	pool := &mockPool{}
	tx := newTx(pool)
	tx.On("Exec", mock.Anything, statement("UPDATE meters"), []any{record.MeterID, int64(7)}).
		Return(pgconn.NewCommandTag("UPDATE 1"), nil)
	tx.On("Exec", mock.Anything, statement("INSERT INTO verification_records"), mock.MatchedBy(func(args []any) bool {
		return len(args) == 19 && args[0] == record.ID && args[3] == 1500.0
	})).Return(pgconn.NewCommandTag("INSERT 0 1"), nil)
	tx.On("Commit", mock.Anything).Return(nil)

	err := NewRepository(pool).SaveVerification(context.Background(), record, 7)

	require.NoError(t, err)
	tx.AssertExpectations(t)
}

func TestSaveVerification_InsertFailureRollsBack(t *testing.T) {
	pool := &mockPool{}
	tx := newTx(pool)
	tx.On("Exec", mock.Anything, statement("UPDATE meters"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 1"), nil)
	tx.On("Exec", mock.Anything, statement("INSERT INTO verification_records"), mock.Anything).
		Return(pgconn.CommandTag{}, errors.New("duplicate key"))

	err := NewRepository(pool).SaveVerification(context.Background(), testRecord(), 7)

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrStaleReadingSequence)
	tx.AssertNotCalled(t, "Commit", mock.Anything)
	tx.AssertCalled(t, "Rollback", mock.Anything)
}

func TestSaveVerification_BeginFailure(t *testing.T) {
	pool := &mockPool{}
	pool.On("Begin", mock.Anything).Return(nil, errors.New("pool closed"))

	err := NewRepository(pool).SaveVerification(context.Background(), testRecord(), 7)

	assert.ErrorContains(t, err, "failed to begin transaction")
}

func TestMeterForOwner_NotOwned(t *testing.T) {
	pool := &mockPool{}
	pool.On("QueryRow", mock.Anything, statement("SELECT id, owner_id")).Return(errRow{err: pgx.ErrNoRows})

	meter, err := NewRepository(pool).MeterForOwner(context.Background(), uuid.New(), uuid.New())

	assert.Nil(t, meter)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMostRecentReading_NoHistory(t *testing.T) {
	pool := &mockPool{}
	pool.On("QueryRow", mock.Anything, statement("SELECT reading")).Return(errRow{err: pgx.ErrNoRows})

	reading, err := NewRepository(pool).MostRecentReading(context.Background(), uuid.New(), uuid.New())

	require.NoError(t, err)
	assert.Nil(t, reading)
}

func TestReverse(t *testing.T) {
	values := []float64{300, 200, 100}
	reverse(values)
	assert.Equal(t, []float64{100, 200, 300}, values)

	empty := []float64{}
	reverse(empty)
	assert.Empty(t, empty)
}
