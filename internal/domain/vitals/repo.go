package vitals

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a patient has no recorded vitals.
var ErrNotFound = errors.New("no vitals recorded")

// Repository persists vital-sign records. ListByPatient and Latest order by
// RecordedAt, newest first.
type Repository interface {
	Create(ctx context.Context, r *Record) error
	ListByPatient(ctx context.Context, patientRef string, limit, offset int) ([]*Record, int, error)
	Latest(ctx context.Context, patientRef string) (*Record, error)
}
