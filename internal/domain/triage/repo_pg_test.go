package triage

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medops/triage/internal/platform/db"
)

// newTestPool migrates a throwaway schema. Set TEST_DATABASE_URL to run.
func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	schema := "triage_test_" + strings.ReplaceAll(uuid.NewString()[:8], "-", "")

	pool, err := db.NewPool(ctx, url, schema, 4, 1)
	require.NoError(t, err)
	_, err = db.NewMigrator(pool, db.Migrations()).Up(ctx, schema)
	require.NoError(t, err)

	t.Cleanup(func() {
		pool.Exec(context.Background(), fmt.Sprintf("DROP SCHEMA %s CASCADE", schema))
		pool.Close()
	})
	return pool
}

func TestStorePG_RoundTrip(t *testing.T) {
	store := NewStorePG(newTestPool(t))
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	c := &Case{
		ID:         uuid.New(),
		PatientRef: "P-pg",
		Symptoms:   []SymptomReport{{Name: "chest pain", Severity: SeveritySevere, Duration: DurationUnderHour}},
		Vitals:     VitalReading{Systolic: f(190), Diastolic: f(125), TemperatureValue: f(38.2), TemperatureUnit: Celsius},
		History:    []HistoryFlag{{Condition: "hypertension", Severity: SeverityModerate}},
		Notes:      []Note{{ID: uuid.New(), Author: "nurse-1", Text: "arrived by ambulance", CreatedAt: now}},
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	c.reassess()
	require.NoError(t, store.Save(ctx, c))

	got, err := store.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.PatientRef, got.PatientRef)
	assert.Equal(t, c.Symptoms, got.Symptoms)
	assert.Equal(t, c.Vitals, got.Vitals)
	assert.Equal(t, c.History, got.History)
	assert.Equal(t, c.Alerts, got.Alerts)
	assert.Equal(t, c.RiskScore, got.RiskScore)
	assert.Equal(t, c.Priority, got.Priority)
	assert.Equal(t, c.TriageLevel, got.TriageLevel)
	assert.Equal(t, c.EstimatedWaitMinutes, got.EstimatedWaitMinutes)
	require.Len(t, got.Notes, 1)
	assert.Equal(t, "arrived by ambulance", got.Notes[0].Text)
	assert.True(t, c.CreatedAt.Equal(got.CreatedAt))

	_, err = store.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStorePG_QueueLifecycle(t *testing.T) {
	q := NewQueue(NewStorePG(newTestPool(t)))
	ctx := context.Background()

	a, err := q.Upsert(ctx, symptomCase("P-1", "seizure", SeveritySevere))
	require.NoError(t, err)
	b, err := q.Upsert(ctx, symptomCase("P-1", "rash", SeverityMild))
	require.NoError(t, err)

	_, err = q.Transition(ctx, a.ID, StatusInAssessment, "dr-pg")
	require.NoError(t, err)
	_, err = q.Transition(ctx, b.ID, StatusCompleted, "dr-pg")
	require.NoError(t, err)

	active, err := q.ListOrdered(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, a.ID, active[0].ID)

	history, err := q.History(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, StatusInAssessment, history[0].To)

	all, total, err := q.ListByPatient(ctx, "P-1", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, all, 2)

	require.NoError(t, q.Remove(ctx, a.ID))
	require.NoError(t, q.Remove(ctx, a.ID))
	_, err = q.History(ctx, a.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
