// Package storage defines the persistence contracts behind the batch
// service: an append-only action log and the committed reducer state.
package storage

import (
	"context"

	apperrors "github.com/louisbranch/batchmessaging/internal/platform/errors"
	"github.com/louisbranch/batchmessaging/internal/services/batch/domain/action"
	"github.com/louisbranch/batchmessaging/internal/services/batch/domain/reducer"
)

const (
	// DefaultListLimit is the page size for ListBatches when none is given.
	DefaultListLimit = 200
	// MaxListLimit caps a single ListBatches page.
	MaxListLimit = 1000
)

// ErrNotFound indicates a requested persistence record is missing.
var ErrNotFound = apperrors.New(apperrors.CodeNotFound, "record not found")

// ActionLog is the append-only log of message number batches.
type ActionLog interface {
	// AppendBatch commits values as one batch extending the current tail.
	AppendBatch(ctx context.Context, callID string, values []uint64) (action.Batch, error)
	// FetchSince returns up to maxBatches batches after cursor. It fails with
	// action.ErrUnknownState when cursor names no prefix of the log.
	FetchSince(ctx context.Context, cursor action.State, maxBatches int) (action.Page, error)
	// ListBatches pages the log by sequence for inspection.
	ListBatches(ctx context.Context, afterSeq uint64, limit int) ([]action.Batch, error)
}

// Store is a complete host for the batch service.
type Store interface {
	ActionLog
	reducer.StateStore
	Close() error
}

// NormalizeLimit applies DefaultListLimit to non-positive limits and caps
// the rest at MaxListLimit.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return min(limit, MaxListLimit)
}
