package store

import (
	"context"

	"github.com/nhle/syncbridge/internal/model"
)

// RunFilter controls filtering and pagination for run history queries.
type RunFilter struct {
	TenantID *string
	Status   *string
	Limit    int
	Offset   int
}

// Store defines the persistence interface for sync run records.
type Store interface {
	// CreateRun inserts a run record in running state. If the record has
	// no ID, a new UUID is generated and written back.
	CreateRun(ctx context.Context, rec *model.RunRecord) error

	// FinishRun finalizes a run with its terminal status and result.
	FinishRun(ctx context.Context, rec model.RunRecord) error

	GetRun(ctx context.Context, id string) (*model.RunRecord, error)
	GetRuns(ctx context.Context, filter RunFilter) ([]model.RunRecord, error)

	Close() error
}
