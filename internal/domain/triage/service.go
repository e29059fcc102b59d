package triage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medops/triage/internal/platform/events"
)

const resourceType = "TriageCase"

// SubmitRequest carries one intake: who the patient is and what was
// observed.
type SubmitRequest struct {
	PatientRef string          `json:"patient_ref" yaml:"patient_ref"`
	Symptoms   []SymptomReport `json:"symptoms" yaml:"symptoms"`
	Vitals     VitalReading    `json:"vitals" yaml:"vitals"`
	History    []HistoryFlag   `json:"history" yaml:"history"`
}

func (r SubmitRequest) validate() error {
	if strings.TrimSpace(r.PatientRef) == "" {
		return &ValidationError{Field: "patient_ref", Reason: "is required"}
	}
	return ValidateInputs(r.Symptoms, r.Vitals, r.History)
}

// QueueStats summarises the active queue for dashboards.
type QueueStats struct {
	Active                  int              `json:"active"`
	ByPriority              map[Priority]int `json:"by_priority"`
	ByStatus                map[Status]int   `json:"by_status"`
	LongestWaitMinutes      int              `json:"longest_wait_minutes"`
	MaxEstimatedWaitMinutes int              `json:"max_estimated_wait_minutes"`
}

type Service struct {
	queue     *Queue
	publisher events.Publisher
	logger    zerolog.Logger
	now       func() time.Time
}

// NewService wires the queue to an event sink. A nil publisher discards
// events.
func NewService(queue *Queue, publisher events.Publisher, logger zerolog.Logger) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Service{
		queue:     queue,
		publisher: publisher,
		logger:    logger.With().Str("component", "triage").Logger(),
		now:       time.Now,
	}
}

// SubmitTriage scores a new intake and places it in the queue.
func (s *Service) SubmitTriage(ctx context.Context, req SubmitRequest) (*Case, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	c, err := s.queue.Upsert(ctx, &Case{
		PatientRef: strings.TrimSpace(req.PatientRef),
		Symptoms:   req.Symptoms,
		Vitals:     req.Vitals,
		History:    req.History,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("case_id", c.ID.String()).
		Str("patient_ref", c.PatientRef).
		Int("risk_score", c.RiskScore).
		Int("triage_level", c.TriageLevel).
		Int("alerts", len(c.Alerts)).
		Msg("triage case submitted")
	s.publish(ctx, events.CaseSubmitted, c, Urgent(c.Alerts))
	return c, nil
}

// Reassess replaces the inputs of an active case and rescores it. The case
// keeps its arrival time, status and notes.
func (s *Service) Reassess(ctx context.Context, id uuid.UUID, req SubmitRequest) (*Case, error) {
	if err := ValidateInputs(req.Symptoms, req.Vitals, req.History); err != nil {
		return nil, err
	}

	c, existing, err := s.queue.Replace(ctx, &Case{
		ID:         id,
		PatientRef: strings.TrimSpace(req.PatientRef),
		Symptoms:   req.Symptoms,
		Vitals:     req.Vitals,
		History:    req.History,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("case_id", c.ID.String()).
		Int("previous_score", existing.RiskScore).
		Int("risk_score", c.RiskScore).
		Int("triage_level", c.TriageLevel).
		Msg("triage case reassessed")
	s.publish(ctx, events.CaseReassessed, c, Urgent(c.Alerts) && !Urgent(existing.Alerts))
	return c, nil
}

// UpdateStatus moves a case through the status state machine.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, to Status, changedBy string) (*Case, error) {
	c, err := s.queue.Transition(ctx, id, to, changedBy)
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("case_id", c.ID.String()).
		Str("status", string(c.Status)).
		Str("changed_by", changedBy).
		Msg("triage case status changed")
	s.publish(ctx, events.CaseStatusChanged, c, false)
	return c, nil
}

// GetQueue returns every active case in service order.
func (s *Service) GetQueue(ctx context.Context) ([]*Case, error) {
	return s.queue.ListOrdered(ctx)
}

// GetQueueByPriority returns the active cases of one priority class.
func (s *Service) GetQueueByPriority(ctx context.Context, p Priority) ([]*Case, error) {
	if !p.Valid() {
		return nil, &ValidationError{Field: "priority", Reason: fmt.Sprintf("unknown priority %q", p)}
	}
	return s.queue.ListByPriority(ctx, p)
}

func (s *Service) GetCase(ctx context.Context, id uuid.UUID) (*Case, error) {
	return s.queue.Get(ctx, id)
}

func (s *Service) AddNote(ctx context.Context, id uuid.UUID, author, text string) (*Case, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &ValidationError{Field: "text", Reason: "is required"}
	}
	c, err := s.queue.AddNote(ctx, id, author, text)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.CaseNoteAdded, c, false)
	return c, nil
}

// RemoveCase deletes a case entered in error. Unknown ids are ignored.
func (s *Service) RemoveCase(ctx context.Context, id uuid.UUID) error {
	if err := s.queue.Remove(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("case_id", id.String()).Msg("triage case removed")
	e, err := events.New(events.CaseRemoved, events.TopicQueue, resourceType, id.String(), nil)
	if err == nil {
		s.send(ctx, e)
	}
	return nil
}

func (s *Service) StatusHistory(ctx context.Context, id uuid.UUID) ([]*StatusChange, error) {
	return s.queue.History(ctx, id)
}

// ListByPatient returns a patient's cases in every status, newest first.
func (s *Service) ListByPatient(ctx context.Context, patientRef string, limit, offset int) ([]*Case, int, error) {
	if strings.TrimSpace(patientRef) == "" {
		return nil, 0, &ValidationError{Field: "patient_ref", Reason: "is required"}
	}
	return s.queue.ListByPatient(ctx, patientRef, limit, offset)
}

// Stats counts the active queue by priority and status.
func (s *Service) Stats(ctx context.Context) (*QueueStats, error) {
	cases, err := s.queue.ListOrdered(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	st := &QueueStats{
		Active:     len(cases),
		ByPriority: map[Priority]int{PriorityCritical: 0, PriorityHigh: 0, PriorityMedium: 0, PriorityLow: 0},
		ByStatus:   map[Status]int{StatusPending: 0, StatusInAssessment: 0, StatusWaitingDoctor: 0},
	}
	for _, c := range cases {
		st.ByPriority[c.Priority]++
		st.ByStatus[c.Status]++
		if w := int(now.Sub(c.CreatedAt).Minutes()); w > st.LongestWaitMinutes {
			st.LongestWaitMinutes = w
		}
		if c.EstimatedWaitMinutes > st.MaxEstimatedWaitMinutes {
			st.MaxEstimatedWaitMinutes = c.EstimatedWaitMinutes
		}
	}
	return st, nil
}

// Preview scores inputs without touching the queue.
func Preview(req SubmitRequest) (Assessment, error) {
	if err := ValidateInputs(req.Symptoms, req.Vitals, req.History); err != nil {
		return Assessment{}, err
	}
	candidate := Case{Symptoms: req.Symptoms, Vitals: req.Vitals, History: req.History}
	if !candidate.Scoreable() {
		return Assessment{}, ErrInvalidCase
	}
	return Assess(req.Symptoms, req.Vitals, req.History), nil
}

func (s *Service) publish(ctx context.Context, typ events.Type, c *Case, alert bool) {
	e, err := events.New(typ, events.TopicQueue, resourceType, c.ID.String(), c)
	if err != nil {
		s.logger.Error().Err(err).Str("case_id", c.ID.String()).Msg("build event")
		return
	}
	e.PatientRef = c.PatientRef
	e.Alert = alert
	s.send(ctx, e)
}

// send never fails the calling operation; the case is already stored.
func (s *Service) send(ctx context.Context, e events.Event) {
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.Warn().Err(err).Str("event_type", string(e.Type)).Str("resource_id", e.ResourceID).Msg("publish event")
	}
}
