package vitals

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medops/triage/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const recordCols = `id, patient_ref, reading, alerts, source, recorded_at`

func (r *repoPG) Create(ctx context.Context, rec *Record) error {
	reading, err := json.Marshal(rec.Reading)
	if err != nil {
		return fmt.Errorf("encode reading: %w", err)
	}
	alerts := []byte("[]")
	if rec.Alerts != nil {
		if alerts, err = json.Marshal(rec.Alerts); err != nil {
			return fmt.Errorf("encode alerts: %w", err)
		}
	}
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO vitals_record (`+recordCols+`)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ID, rec.PatientRef, reading, alerts, rec.Source, rec.RecordedAt)
	return err
}

func (r *repoPG) ListByPatient(ctx context.Context, patientRef string, limit, offset int) ([]*Record, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM vitals_record WHERE patient_ref = $1`, patientRef).Scan(&total); err != nil {
		return nil, 0, err
	}
	var lim *int
	if limit > 0 {
		lim = &limit
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+recordCols+` FROM vitals_record
		WHERE patient_ref = $1 ORDER BY recorded_at DESC LIMIT $2 OFFSET $3`,
		patientRef, lim, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []*Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, rec)
	}
	return out, total, rows.Err()
}

func (r *repoPG) Latest(ctx context.Context, patientRef string) (*Record, error) {
	rec, err := scanRecord(r.conn(ctx).QueryRow(ctx, `
		SELECT `+recordCols+` FROM vitals_record
		WHERE patient_ref = $1 ORDER BY recorded_at DESC LIMIT 1`, patientRef))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

func scanRecord(row pgx.Row) (*Record, error) {
	var rec Record
	var reading, alerts []byte
	if err := row.Scan(&rec.ID, &rec.PatientRef, &reading, &alerts, &rec.Source, &rec.RecordedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(reading, &rec.Reading); err != nil {
		return nil, fmt.Errorf("decode reading %s: %w", rec.ID, err)
	}
	if err := json.Unmarshal(alerts, &rec.Alerts); err != nil {
		return nil, fmt.Errorf("decode alerts of reading %s: %w", rec.ID, err)
	}
	return &rec, nil
}
