package triage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Queue is the ordered view over every non-completed case. A single lock
// guards store access and recomputation, so each mutation publishes a fully
// recomputed case or nothing.
type Queue struct {
	mu    sync.RWMutex
	store Store
	now   func() time.Time
}

// NewQueue returns a queue backed by store.
func NewQueue(store Store) *Queue {
	return &Queue{store: store, now: time.Now}
}

// Before reports whether a is served ahead of b: lower triage level first,
// then higher risk score, then earlier arrival. The id comparison only
// breaks exact timestamp ties.
func Before(a, b *Case) bool {
	if a.TriageLevel != b.TriageLevel {
		return a.TriageLevel < b.TriageLevel
	}
	if a.RiskScore != b.RiskScore {
		return a.RiskScore > b.RiskScore
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return strings.Compare(a.ID.String(), b.ID.String()) < 0
}

// SortCases orders cases in place by queue position.
func SortCases(cases []*Case) {
	sort.Slice(cases, func(i, j int) bool { return Before(cases[i], cases[j]) })
}

// Upsert inserts c, or replaces the inputs of the case with the same id, and
// recomputes the assessment. A new case always starts pending at the current
// time. A replaced case keeps its status, arrival time and notes; status only
// changes through Transition.
func (q *Queue) Upsert(ctx context.Context, c *Case) (*Case, error) {
	if c == nil || !c.Scoreable() {
		return nil, ErrInvalidCase
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	next := c.Clone()
	if next.ID == uuid.Nil {
		next.ID = uuid.New()
	}

	existing, err := q.store.Get(ctx, next.ID)
	switch {
	case errors.Is(err, ErrNotFound):
		now := q.now()
		next.Status = StatusPending
		next.CreatedAt = now
		next.UpdatedAt = now
		next.reassess()
		if err := q.store.Save(ctx, next); err != nil {
			return nil, fmt.Errorf("save case %s: %w", next.ID, err)
		}
		return next.Clone(), nil
	case err != nil:
		return nil, fmt.Errorf("load case %s: %w", next.ID, err)
	}
	return q.replaceLocked(ctx, existing, next)
}

// Replace swaps the inputs of an existing case and recomputes it. Unlike
// Upsert it never creates a case: an unknown id is ErrNotFound. An empty
// PatientRef keeps the stored one; a different one is a ValidationError. It
// also returns the case as it was before the change.
func (q *Queue) Replace(ctx context.Context, c *Case) (updated, previous *Case, err error) {
	if c == nil || !c.Scoreable() {
		return nil, nil, ErrInvalidCase
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	existing, err := q.store.Get(ctx, c.ID)
	if err != nil {
		return nil, nil, err
	}
	next := c.Clone()
	switch next.PatientRef {
	case "":
		next.PatientRef = existing.PatientRef
	case existing.PatientRef:
	default:
		return nil, nil, &ValidationError{Field: "patient_ref", Reason: "cannot change on an existing case"}
	}
	updated, err = q.replaceLocked(ctx, existing, next)
	if err != nil {
		return nil, nil, err
	}
	return updated, existing, nil
}

// replaceLocked carries the queue state of existing over to next, rescores
// and saves it. Callers hold q.mu.
func (q *Queue) replaceLocked(ctx context.Context, existing, next *Case) (*Case, error) {
	if !existing.Status.Active() {
		return nil, &InvalidTransitionError{From: existing.Status, To: existing.Status}
	}
	next.Status = existing.Status
	next.CreatedAt = existing.CreatedAt
	next.Notes = existing.Notes
	next.UpdatedAt = q.now()
	next.reassess()

	if err := q.store.Save(ctx, next); err != nil {
		return nil, fmt.Errorf("save case %s: %w", next.ID, err)
	}
	return next.Clone(), nil
}

// Remove deletes a case. Removing an unknown id is not an error.
func (q *Queue) Remove(ctx context.Context, id uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.store.Delete(ctx, id)
}

// ListOrdered returns a freshly sorted snapshot of the active cases.
func (q *Queue) ListOrdered(ctx context.Context) ([]*Case, error) {
	q.mu.RLock()
	cases, err := q.store.ListActive(ctx)
	q.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	SortCases(cases)
	return cases, nil
}

// ListByPriority is ListOrdered restricted to one priority class.
func (q *Queue) ListByPriority(ctx context.Context, p Priority) ([]*Case, error) {
	all, err := q.ListOrdered(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*Case, 0, len(all))
	for _, c := range all {
		if c.Priority == p {
			out = append(out, c)
		}
	}
	return out, nil
}

// Transition moves a case to a new status and records the change.
func (q *Queue) Transition(ctx context.Context, id uuid.UUID, to Status, changedBy string) (*Case, error) {
	if !to.Valid() {
		return nil, &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", to)}
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	c, err := q.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := CheckTransition(c.Status, to); err != nil {
		return nil, err
	}

	now := q.now()
	change := &StatusChange{
		ID:        uuid.New(),
		CaseID:    id,
		From:      c.Status,
		To:        to,
		ChangedBy: changedBy,
		ChangedAt: now,
	}
	c.Status = to
	c.UpdatedAt = now

	err = q.store.InTx(ctx, func(ctx context.Context) error {
		if err := q.store.Save(ctx, c); err != nil {
			return err
		}
		return q.store.AddStatusChange(ctx, change)
	})
	if err != nil {
		return nil, fmt.Errorf("transition case %s: %w", id, err)
	}
	return c, nil
}

// Get returns one case regardless of status.
func (q *Queue) Get(ctx context.Context, id uuid.UUID) (*Case, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.store.Get(ctx, id)
}

// AddNote appends a staff note. Scoring is untouched.
func (q *Queue) AddNote(ctx context.Context, id uuid.UUID, author, text string) (*Case, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	c, err := q.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	now := q.now()
	c.Notes = append(c.Notes, Note{ID: uuid.New(), Author: author, Text: text, CreatedAt: now})
	c.UpdatedAt = now
	if err := q.store.Save(ctx, c); err != nil {
		return nil, fmt.Errorf("save note on case %s: %w", id, err)
	}
	return c, nil
}

// History returns the status changes of a case, oldest first.
func (q *Queue) History(ctx context.Context, id uuid.UUID) ([]*StatusChange, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if _, err := q.store.Get(ctx, id); err != nil {
		return nil, err
	}
	return q.store.StatusHistory(ctx, id)
}

// ListByPatient returns every case of a patient, newest first.
func (q *Queue) ListByPatient(ctx context.Context, patientRef string, limit, offset int) ([]*Case, int, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.store.ListByPatient(ctx, patientRef, limit, offset)
}
