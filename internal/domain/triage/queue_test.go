package triage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedClock hands out strictly increasing timestamps.
type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fixedClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestQueue() (*Queue, Store) {
	store := NewMemoryStore()
	q := NewQueue(store)
	clock := &fixedClock{t: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)}
	q.now = clock.now
	return q, store
}

func symptomCase(patient, name string, sev Severity) *Case {
	return &Case{
		PatientRef: patient,
		Symptoms:   []SymptomReport{{Name: name, Severity: sev, Duration: DurationOneToSix}},
	}
}

func assertOrdered(t *testing.T, cases []*Case) {
	t.Helper()
	for i := 1; i < len(cases); i++ {
		assert.False(t, Before(cases[i], cases[i-1]), "case %d sorts ahead of case %d", i, i-1)
	}
}

func TestQueue_UpsertRejectsEmptyCase(t *testing.T) {
	q, _ := newTestQueue()

	_, err := q.Upsert(context.Background(), &Case{PatientRef: "P-1"})
	assert.ErrorIs(t, err, ErrInvalidCase)

	_, err = q.Upsert(context.Background(), nil)
	assert.ErrorIs(t, err, ErrInvalidCase)

	cases, err := q.ListOrdered(context.Background())
	require.NoError(t, err)
	assert.Empty(t, cases)
}

func TestQueue_UpsertAssessesNewCase(t *testing.T) {
	q, _ := newTestQueue()

	c, err := q.Upsert(context.Background(), &Case{
		PatientRef: "P-1",
		Symptoms:   []SymptomReport{{Name: "chest pain", Severity: SeveritySevere, Duration: DurationUnderHour}},
		Vitals:     VitalReading{OxygenSaturation: f(88)},
	})
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, c.ID)
	assert.Equal(t, StatusPending, c.Status)
	assert.Equal(t, 68, c.RiskScore)
	assert.Equal(t, PriorityHigh, c.Priority)
	assert.Equal(t, 2, c.TriageLevel)
	assert.Equal(t, 15, c.EstimatedWaitMinutes)
	assert.Equal(t, map[AlertKind]AlertSeverity{AlertLowOxygen: AlertHigh}, kinds(c.Alerts))
	assert.False(t, c.CreatedAt.IsZero())
}

func TestQueue_UpsertIgnoresCallerDerivedFields(t *testing.T) {
	q, _ := newTestQueue()

	c, err := q.Upsert(context.Background(), &Case{
		PatientRef:  "P-1",
		Symptoms:    []SymptomReport{{Name: "rash", Severity: SeverityMild, Duration: DurationOverDay}},
		RiskScore:   99,
		Priority:    PriorityCritical,
		TriageLevel: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, c.RiskScore)
	assert.Equal(t, PriorityLow, c.Priority)
	assert.Equal(t, 5, c.TriageLevel)
}

func TestQueue_UpsertReplacesById(t *testing.T) {
	q, _ := newTestQueue()
	ctx := context.Background()

	first, err := q.Upsert(ctx, symptomCase("P-1", "cough", SeverityMild))
	require.NoError(t, err)
	_, err = q.Transition(ctx, first.ID, StatusInAssessment, "nurse-1")
	require.NoError(t, err)

	updated := symptomCase("P-1", "chest pain", SeveritySevere)
	updated.ID = first.ID
	updated.Status = StatusPending
	second, err := q.Upsert(ctx, updated)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.Equal(t, StatusInAssessment, second.Status, "status only changes through Transition")
	assert.Greater(t, second.RiskScore, first.RiskScore)

	all, err := q.ListOrdered(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestQueue_UpsertCompletedCaseFails(t *testing.T) {
	q, _ := newTestQueue()
	ctx := context.Background()

	c, err := q.Upsert(ctx, symptomCase("P-1", "cough", SeverityMild))
	require.NoError(t, err)
	_, err = q.Transition(ctx, c.ID, StatusCompleted, "")
	require.NoError(t, err)

	again := symptomCase("P-1", "seizure", SeveritySevere)
	again.ID = c.ID
	_, err = q.Upsert(ctx, again)
	assert.True(t, IsInvalidTransition(err))

	stored, err := q.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.RiskScore, stored.RiskScore, "failed upsert leaves the case untouched")
}

func TestQueue_UpsertNewCaseStartsPendingNow(t *testing.T) {
	q, _ := newTestQueue()
	c := symptomCase("P-1", "cough", SeverityMild)
	c.Status = StatusCompleted
	c.CreatedAt = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	got, err := q.Upsert(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)
	assert.True(t, got.CreatedAt.After(time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)), "arrival comes from the queue clock")
	assert.Equal(t, got.CreatedAt, got.UpdatedAt)

	active, err := q.ListOrdered(context.Background())
	require.NoError(t, err)
	assert.Len(t, active, 1, "a supplied terminal status cannot hide a new case")
}

func TestQueue_Replace(t *testing.T) {
	q, _ := newTestQueue()
	ctx := context.Background()

	orig, err := q.Upsert(ctx, symptomCase("P-1", "cough", SeverityMild))
	require.NoError(t, err)

	next := symptomCase("", "chest pain", SeveritySevere)
	next.ID = orig.ID
	updated, previous, err := q.Replace(ctx, next)
	require.NoError(t, err)
	assert.Equal(t, "P-1", updated.PatientRef)
	assert.Equal(t, orig.CreatedAt, updated.CreatedAt)
	assert.Greater(t, updated.RiskScore, previous.RiskScore)
	assert.Equal(t, orig.RiskScore, previous.RiskScore)

	other := symptomCase("P-2", "cough", SeverityMild)
	other.ID = orig.ID
	_, _, err = q.Replace(ctx, other)
	assert.True(t, IsValidation(err))

	missing := symptomCase("P-1", "cough", SeverityMild)
	missing.ID = uuid.New()
	_, _, err = q.Replace(ctx, missing)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = q.Get(ctx, missing.ID)
	assert.ErrorIs(t, err, ErrNotFound, "replace never inserts")

	_, _, err = q.Replace(ctx, &Case{ID: orig.ID})
	assert.ErrorIs(t, err, ErrInvalidCase)
}

func TestQueue_ReturnedCasesAreCopies(t *testing.T) {
	q, _ := newTestQueue()
	ctx := context.Background()

	in := symptomCase("P-1", "cough", SeverityMild)
	c, err := q.Upsert(ctx, in)
	require.NoError(t, err)

	in.Symptoms[0].Name = "seizure"
	c.RiskScore = 100
	c.Symptoms[0].Severity = SeveritySevere

	stored, err := q.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "cough", stored.Symptoms[0].Name)
	assert.Equal(t, SeverityMild, stored.Symptoms[0].Severity)
	assert.NotEqual(t, 100, stored.RiskScore)
}

func TestQueue_ListOrdered(t *testing.T) {
	q, _ := newTestQueue()
	ctx := context.Background()

	inputs := []*Case{
		symptomCase("P-rash", "rash", SeverityMild),
		symptomCase("P-seizure", "seizure", SeveritySevere),
		symptomCase("P-headache", "headache", SeverityModerate),
		{PatientRef: "P-crisis", Vitals: VitalReading{Systolic: f(190), Diastolic: f(125), OxygenSaturation: f(82), HeartRate: f(130)}},
		symptomCase("P-abdo", "abdominal pain", SeveritySevere),
	}
	for _, c := range inputs {
		_, err := q.Upsert(ctx, c)
		require.NoError(t, err)
	}

	cases, err := q.ListOrdered(ctx)
	require.NoError(t, err)
	require.Len(t, cases, len(inputs))
	assertOrdered(t, cases)
	assert.Equal(t, "P-crisis", cases[0].PatientRef)
	assert.Equal(t, "P-rash", cases[len(cases)-1].PatientRef)
}

func TestQueue_EqualScoresServeFirstArrivalFirst(t *testing.T) {
	q, _ := newTestQueue()
	ctx := context.Background()

	early, err := q.Upsert(ctx, symptomCase("P-early", "cough", SeverityModerate))
	require.NoError(t, err)
	late, err := q.Upsert(ctx, symptomCase("P-late", "cough", SeverityModerate))
	require.NoError(t, err)
	require.Equal(t, early.TriageLevel, late.TriageLevel)
	require.Equal(t, early.RiskScore, late.RiskScore)
	require.True(t, early.CreatedAt.Before(late.CreatedAt))

	cases, err := q.ListOrdered(ctx)
	require.NoError(t, err)
	require.Len(t, cases, 2)
	assert.Equal(t, early.ID, cases[0].ID)
	assert.Equal(t, late.ID, cases[1].ID)
}

func TestQueue_ListByPriority(t *testing.T) {
	q, _ := newTestQueue()
	ctx := context.Background()

	for _, c := range []*Case{
		symptomCase("P-1", "rash", SeverityMild),
		symptomCase("P-2", "seizure", SeveritySevere),
		symptomCase("P-3", "cough", SeverityMild),
	} {
		_, err := q.Upsert(ctx, c)
		require.NoError(t, err)
	}

	low, err := q.ListByPriority(ctx, PriorityLow)
	require.NoError(t, err)
	require.Len(t, low, 2)
	assertOrdered(t, low)
	for _, c := range low {
		assert.Equal(t, PriorityLow, c.Priority)
	}

	critical, err := q.ListByPriority(ctx, PriorityCritical)
	require.NoError(t, err)
	assert.Empty(t, critical)
}

func TestQueue_RemoveIsIdempotent(t *testing.T) {
	q, _ := newTestQueue()
	ctx := context.Background()

	c, err := q.Upsert(ctx, symptomCase("P-1", "cough", SeverityMild))
	require.NoError(t, err)

	require.NoError(t, q.Remove(ctx, c.ID))
	require.NoError(t, q.Remove(ctx, c.ID))
	require.NoError(t, q.Remove(ctx, uuid.New()))

	_, err = q.Get(ctx, c.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestQueue_TransitionLifecycle(t *testing.T) {
	q, _ := newTestQueue()
	ctx := context.Background()

	c, err := q.Upsert(ctx, symptomCase("P-1", "fever", SeverityModerate))
	require.NoError(t, err)

	for _, to := range []Status{StatusInAssessment, StatusWaitingDoctor, StatusCompleted} {
		c, err = q.Transition(ctx, c.ID, to, "dr-who")
		require.NoError(t, err)
		assert.Equal(t, to, c.Status)
	}

	active, err := q.ListOrdered(ctx)
	require.NoError(t, err)
	assert.Empty(t, active, "completed cases leave the queue")

	kept, err := q.Get(ctx, c.ID)
	require.NoError(t, err, "completed cases are retained")
	assert.Equal(t, StatusCompleted, kept.Status)

	history, err := q.History(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, StatusPending, history[0].From)
	assert.Equal(t, StatusCompleted, history[2].To)
	assert.Equal(t, "dr-who", history[1].ChangedBy)

	_, err = q.Transition(ctx, c.ID, StatusPending, "")
	assert.True(t, IsInvalidTransition(err))
}

func TestQueue_TransitionErrors(t *testing.T) {
	q, _ := newTestQueue()
	ctx := context.Background()

	_, err := q.Transition(ctx, uuid.New(), StatusCompleted, "")
	assert.ErrorIs(t, err, ErrNotFound)

	c, err := q.Upsert(ctx, symptomCase("P-1", "cough", SeverityMild))
	require.NoError(t, err)

	_, err = q.Transition(ctx, c.ID, "discharged", "")
	assert.True(t, IsValidation(err))

	_, err = q.Transition(ctx, c.ID, StatusWaitingDoctor, "")
	assert.True(t, IsInvalidTransition(err))

	stored, err := q.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, stored.Status)
	history, err := q.History(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, history)
}

// failingStore breaks the status history write so transitions must roll back.
type failingStore struct {
	Store
	pending map[uuid.UUID]*Case
}

func (s *failingStore) AddStatusChange(context.Context, *StatusChange) error {
	return errors.New("history table unavailable")
}

func (s *failingStore) Save(ctx context.Context, c *Case) error {
	if s.pending != nil {
		s.pending[c.ID] = c.Clone()
		return nil
	}
	return s.Store.Save(ctx, c)
}

func (s *failingStore) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.pending = make(map[uuid.UUID]*Case)
	defer func() { s.pending = nil }()
	if err := fn(ctx); err != nil {
		return err
	}
	for _, c := range s.pending {
		if err := s.Store.Save(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func TestQueue_TransitionIsAllOrNothing(t *testing.T) {
	store := &failingStore{Store: NewMemoryStore()}
	q := NewQueue(store)
	ctx := context.Background()

	c, err := q.Upsert(ctx, symptomCase("P-1", "cough", SeverityMild))
	require.NoError(t, err)

	_, err = q.Transition(ctx, c.ID, StatusInAssessment, "")
	require.Error(t, err)

	stored, err := q.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, stored.Status)
}

func TestQueue_AddNote(t *testing.T) {
	q, _ := newTestQueue()
	ctx := context.Background()

	c, err := q.Upsert(ctx, symptomCase("P-1", "nausea", SeverityModerate))
	require.NoError(t, err)

	noted, err := q.AddNote(ctx, c.ID, "nurse-7", "Patient vomited twice in waiting room")
	require.NoError(t, err)
	require.Len(t, noted.Notes, 1)
	assert.Equal(t, "nurse-7", noted.Notes[0].Author)
	assert.Equal(t, c.RiskScore, noted.RiskScore)

	_, err = q.AddNote(ctx, uuid.New(), "nurse-7", "lost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestQueue_ListByPatient(t *testing.T) {
	q, _ := newTestQueue()
	ctx := context.Background()

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		c, err := q.Upsert(ctx, symptomCase("P-1", "cough", SeverityMild))
		require.NoError(t, err)
		ids = append(ids, c.ID)
	}
	_, err := q.Upsert(ctx, symptomCase("P-2", "cough", SeverityMild))
	require.NoError(t, err)
	_, err = q.Transition(ctx, ids[0], StatusCompleted, "")
	require.NoError(t, err)

	page, total, err := q.ListByPatient(ctx, "P-1", 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 2)
	assert.Equal(t, ids[2], page[0].ID, "newest first")

	rest, _, err := q.ListByPatient(ctx, "P-1", 2, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, ids[0], rest[0].ID, "completed cases stay in patient history")
}

func TestQueue_ConcurrentWritersAndReaders(t *testing.T) {
	q, _ := newTestQueue()
	ctx := context.Background()

	const writers = 8
	const perWriter = 25
	var wg sync.WaitGroup
	errs := make(chan error, writers*perWriter)

	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				sev := []Severity{SeverityMild, SeverityModerate, SeveritySevere}[i%3]
				c, err := q.Upsert(ctx, symptomCase(fmt.Sprintf("P-%d-%d", w, i), "chest pain", sev))
				if err != nil {
					errs <- err
					continue
				}
				if i%5 == 0 {
					if _, err := q.Transition(ctx, c.ID, StatusInAssessment, ""); err != nil {
						errs <- err
					}
				}
				if i%7 == 0 {
					if err := q.Remove(ctx, c.ID); err != nil {
						errs <- err
					}
				}
			}
		}(w)
	}

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				cases, err := q.ListOrdered(ctx)
				if err != nil {
					errs <- err
					return
				}
				for _, c := range cases {
					p, level := Classify(c.RiskScore)
					if p != c.Priority || level != c.TriageLevel || EstimateWait(level) != c.EstimatedWaitMinutes {
						errs <- fmt.Errorf("torn case %s", c.ID)
					}
				}
				for j := 1; j < len(cases); j++ {
					if Before(cases[j], cases[j-1]) {
						errs <- fmt.Errorf("snapshot out of order at %d", j)
					}
				}
			}
		}()
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	cases, err := q.ListOrdered(ctx)
	require.NoError(t, err)
	removed := 0
	for i := 0; i < perWriter; i++ {
		if i%7 == 0 {
			removed++
		}
	}
	assert.Len(t, cases, writers*(perWriter-removed))
	assertOrdered(t, cases)
}

func TestBefore_TieBreaksOnID(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a := &Case{ID: uuid.MustParse("00000000-0000-0000-0000-000000000001"), TriageLevel: 3, RiskScore: 30, CreatedAt: at}
	b := &Case{ID: uuid.MustParse("00000000-0000-0000-0000-000000000002"), TriageLevel: 3, RiskScore: 30, CreatedAt: at}

	assert.True(t, Before(a, b))
	assert.False(t, Before(b, a))
}
