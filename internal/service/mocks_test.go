package service_test

import (
	"context"

	"github.com/google/uuid"
	"github.com/septivank/meter-verification-engine/internal/consensus"
	"github.com/septivank/meter-verification-engine/internal/db"
	"github.com/septivank/meter-verification-engine/internal/fraud"
	"github.com/septivank/meter-verification-engine/internal/mq"
	"github.com/septivank/meter-verification-engine/internal/ocr"
	"github.com/septivank/meter-verification-engine/internal/service"
	"github.com/septivank/meter-verification-engine/internal/storage"
	"github.com/stretchr/testify/mock"
)

type mockMeters struct{ mock.Mock }

func (m *mockMeters) MeterForOwner(ctx context.Context, meterID, ownerID uuid.UUID) (*db.Meter, error) {
	args := m.Called(ctx, meterID, ownerID)
	meter, _ := args.Get(0).(*db.Meter)
	return meter, args.Error(1)
}

type mockHistory struct{ mock.Mock }

func (m *mockHistory) MostRecentReading(ctx context.Context, meterID, ownerID uuid.UUID) (*float64, error) {
	args := m.Called(ctx, meterID, ownerID)
	previous, _ := args.Get(0).(*float64)
	return previous, args.Error(1)
}

func (m *mockHistory) RecentReadings(ctx context.Context, meterID, ownerID uuid.UUID, limit int) ([]float64, error) {
	args := m.Called(ctx, meterID, ownerID, limit)
	history, _ := args.Get(0).([]float64)
	return history, args.Error(1)
}

type mockRecords struct{ mock.Mock }

func (m *mockRecords) SaveVerification(ctx context.Context, record *db.VerificationRecord, expectedSeq int64) error {
	return m.Called(ctx, record, expectedSeq).Error(0)
}

type mockSelector struct{ mock.Mock }

func (m *mockSelector) Select(ctx context.Context, image []byte, clientReading, clientConfidence *float64) (ocr.Selection, error) {
	args := m.Called(ctx, image, clientReading, clientConfidence)
	return args.Get(0).(ocr.Selection), args.Error(1)
}

type mockScorer struct{ mock.Mock }

func (m *mockScorer) Score(in fraud.Input) fraud.Assessment {
	return m.Called(in).Get(0).(fraud.Assessment)
}

type mockUploader struct{ mock.Mock }

func (m *mockUploader) UploadImage(ctx context.Context, data []byte, name string) (storage.Upload, error) {
	args := m.Called(ctx, data, name)
	return args.Get(0).(storage.Upload), args.Error(1)
}

type mockSubmitter struct{ mock.Mock }

func (m *mockSubmitter) SubmitMessage(ctx context.Context, topicID string, message []byte) (consensus.Receipt, error) {
	args := m.Called(ctx, topicID, message)
	return args.Get(0).(consensus.Receipt), args.Error(1)
}

type mockLocker struct{ mock.Mock }

func (m *mockLocker) Acquire(ctx context.Context, meterID string) (func(context.Context) error, error) {
	args := m.Called(ctx, meterID)
	release, _ := args.Get(0).(func(context.Context) error)
	return release, args.Error(1)
}

type mockVerifier struct{ mock.Mock }

func (m *mockVerifier) Verify(ctx context.Context, req service.Request) service.Outcome {
	return m.Called(ctx, req).Get(0).(service.Outcome)
}

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) PublishVerificationEvent(ctx context.Context, event mq.VerificationEvent, routingKey string) error {
	return m.Called(ctx, event, routingKey).Error(0)
}
