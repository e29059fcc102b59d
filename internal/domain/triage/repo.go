package triage

import (
	"context"

	"github.com/google/uuid"
)

// Store persists cases for the Queue. Implementations must return
// ErrNotFound from Get for unknown ids and must not hand out pointers that
// alias stored state.
type Store interface {
	Save(ctx context.Context, c *Case) error
	Get(ctx context.Context, id uuid.UUID) (*Case, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListActive(ctx context.Context) ([]*Case, error)
	ListByPatient(ctx context.Context, patientRef string, limit, offset int) ([]*Case, int, error)
	// Status History
	AddStatusChange(ctx context.Context, h *StatusChange) error
	StatusHistory(ctx context.Context, caseID uuid.UUID) ([]*StatusChange, error)
	// InTx runs fn so that every write it makes through ctx commits or
	// rolls back together.
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}
