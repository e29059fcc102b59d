package triage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medops/triage/internal/platform/db"
)

type storePG struct {
	pool *pgxpool.Pool
}

// NewStorePG returns a Store backed by the triage_case and
// triage_status_history tables.
func NewStorePG(pool *pgxpool.Pool) Store {
	return &storePG{pool: pool}
}

func (r *storePG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const caseCols = `id, patient_ref, symptoms, vitals, history, alerts, notes,
	risk_score, priority, triage_level, estimated_wait_minutes, status,
	created_at, updated_at`

type caseDocs struct {
	symptoms, vitals, history, alerts, notes []byte
}

func marshalDocs(c *Case) (caseDocs, error) {
	var d caseDocs
	var err error
	if d.symptoms, err = marshalList(c.Symptoms); err != nil {
		return d, fmt.Errorf("encode symptoms: %w", err)
	}
	if d.vitals, err = json.Marshal(c.Vitals); err != nil {
		return d, fmt.Errorf("encode vitals: %w", err)
	}
	if d.history, err = marshalList(c.History); err != nil {
		return d, fmt.Errorf("encode history: %w", err)
	}
	if d.alerts, err = marshalList(c.Alerts); err != nil {
		return d, fmt.Errorf("encode alerts: %w", err)
	}
	if d.notes, err = marshalList(c.Notes); err != nil {
		return d, fmt.Errorf("encode notes: %w", err)
	}
	return d, nil
}

// marshalList encodes nil slices as [] so the NOT NULL columns stay arrays.
func marshalList[T any](v []T) ([]byte, error) {
	if v == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(v)
}

func (r *storePG) Save(ctx context.Context, c *Case) error {
	d, err := marshalDocs(c)
	if err != nil {
		return err
	}
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO triage_case (`+caseCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		ON CONFLICT (id) DO UPDATE SET
			patient_ref=EXCLUDED.patient_ref, symptoms=EXCLUDED.symptoms,
			vitals=EXCLUDED.vitals, history=EXCLUDED.history,
			alerts=EXCLUDED.alerts, notes=EXCLUDED.notes,
			risk_score=EXCLUDED.risk_score, priority=EXCLUDED.priority,
			triage_level=EXCLUDED.triage_level,
			estimated_wait_minutes=EXCLUDED.estimated_wait_minutes,
			status=EXCLUDED.status, updated_at=EXCLUDED.updated_at`,
		c.ID, c.PatientRef, d.symptoms, d.vitals, d.history, d.alerts, d.notes,
		c.RiskScore, c.Priority, c.TriageLevel, c.EstimatedWaitMinutes, c.Status,
		c.CreatedAt, c.UpdatedAt,
	)
	return err
}

func (r *storePG) Get(ctx context.Context, id uuid.UUID) (*Case, error) {
	c, err := scanCase(r.conn(ctx).QueryRow(ctx, `SELECT `+caseCols+` FROM triage_case WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

func (r *storePG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM triage_case WHERE id = $1`, id)
	return err
}

func (r *storePG) ListActive(ctx context.Context) ([]*Case, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+caseCols+` FROM triage_case
		WHERE status <> 'completed'
		ORDER BY triage_level, risk_score DESC, created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	cases, _, err := collectCases(rows, 0)
	return cases, err
}

func (r *storePG) ListByPatient(ctx context.Context, patientRef string, limit, offset int) ([]*Case, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM triage_case WHERE patient_ref = $1`, patientRef).Scan(&total); err != nil {
		return nil, 0, err
	}
	// LIMIT NULL means no limit.
	var lim *int
	if limit > 0 {
		lim = &limit
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+caseCols+` FROM triage_case WHERE patient_ref = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		patientRef, lim, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collectCases(rows, total)
}

// Status History
func (r *storePG) AddStatusChange(ctx context.Context, h *StatusChange) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO triage_status_history (id, case_id, from_status, to_status, changed_by, changed_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		h.ID, h.CaseID, h.From, h.To, h.ChangedBy, h.ChangedAt,
	)
	return err
}

func (r *storePG) StatusHistory(ctx context.Context, caseID uuid.UUID) ([]*StatusChange, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, case_id, from_status, to_status, COALESCE(changed_by, ''), changed_at
		FROM triage_status_history WHERE case_id = $1 ORDER BY changed_at`, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*StatusChange
	for rows.Next() {
		var h StatusChange
		if err := rows.Scan(&h.ID, &h.CaseID, &h.From, &h.To, &h.ChangedBy, &h.ChangedAt); err != nil {
			return nil, err
		}
		out = append(out, &h)
	}
	return out, rows.Err()
}

func (r *storePG) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.WithTx(ctx, r.pool, fn)
}

func scanCase(row pgx.Row) (*Case, error) {
	var c Case
	var d caseDocs
	err := row.Scan(&c.ID, &c.PatientRef, &d.symptoms, &d.vitals, &d.history, &d.alerts, &d.notes,
		&c.RiskScore, &c.Priority, &c.TriageLevel, &c.EstimatedWaitMinutes, &c.Status,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := unmarshalDocs(&c, d); err != nil {
		return nil, err
	}
	return &c, nil
}

func unmarshalDocs(c *Case, d caseDocs) error {
	if err := json.Unmarshal(d.symptoms, &c.Symptoms); err != nil {
		return fmt.Errorf("decode symptoms of case %s: %w", c.ID, err)
	}
	if err := json.Unmarshal(d.vitals, &c.Vitals); err != nil {
		return fmt.Errorf("decode vitals of case %s: %w", c.ID, err)
	}
	if err := json.Unmarshal(d.history, &c.History); err != nil {
		return fmt.Errorf("decode history of case %s: %w", c.ID, err)
	}
	if err := json.Unmarshal(d.alerts, &c.Alerts); err != nil {
		return fmt.Errorf("decode alerts of case %s: %w", c.ID, err)
	}
	if err := json.Unmarshal(d.notes, &c.Notes); err != nil {
		return fmt.Errorf("decode notes of case %s: %w", c.ID, err)
	}
	return nil
}

func collectCases(rows pgx.Rows, total int) ([]*Case, int, error) {
	var out []*Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}
