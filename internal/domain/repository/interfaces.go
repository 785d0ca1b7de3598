package repository

import (
	"context"

	"ExecCore/internal/domain/models"
)

// Ledger is the bounded store of execution records.
type Ledger interface {
	Append(rec models.ExecutionRecord)
	Recent(limit int) []models.ExecutionRecord
	Get(id string) (models.ExecutionRecord, bool)
	Len() int
}

// SizingStore holds the last sizing snapshot.
type SizingStore interface {
	Store(s models.SizingSnapshot)
	Last() (models.SizingSnapshot, bool)
}

// RecordPublisher ships terminal execution records downstream.
type RecordPublisher interface {
	Publish(ctx context.Context, rec models.ExecutionRecord) error
	Close() error
}

type Metrics interface {
	RecordPlan(signal models.Signal, style models.ExecutionStyle)
	RecordPlannerFallback(reason string)
	RecordExecution(status models.RecordStatus, reason string)
	RecordGuardDenial(reason string)
	RecordForecast(source string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
