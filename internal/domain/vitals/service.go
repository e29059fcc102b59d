package vitals

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medops/triage/internal/domain/triage"
	"github.com/medops/triage/internal/platform/events"
)

const resourceType = "VitalsRecord"

// RecordRequest is the body of POST /vitals and of ward monitor messages.
type RecordRequest struct {
	PatientRef string              `json:"patient_ref"`
	Reading    triage.VitalReading `json:"reading"`
}

type Service struct {
	repo      Repository
	publisher events.Publisher
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(repo Repository, publisher events.Publisher, logger zerolog.Logger) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Service{
		repo:      repo,
		publisher: publisher,
		logger:    logger.With().Str("component", "vitals").Logger(),
		now:       time.Now,
	}
}

// RecordVitals validates a reading, runs anomaly detection on it and stores
// it together with the alerts raised. Every reading is published on the
// vitals topic; readings with alerts are published a second time as an
// alert event.
func (s *Service) RecordVitals(ctx context.Context, patientRef string, reading triage.VitalReading, source string) (*Record, error) {
	patientRef = strings.TrimSpace(patientRef)
	if patientRef == "" {
		return nil, &triage.ValidationError{Field: "patient_ref", Reason: "is required"}
	}
	if reading.IsEmpty() {
		return nil, &triage.ValidationError{Field: "reading", Reason: "at least one measurement is required"}
	}
	if err := triage.ValidateVitals(reading); err != nil {
		return nil, err
	}
	if source == "" {
		source = SourceAPI
	}

	rec := &Record{
		ID:         uuid.New(),
		PatientRef: patientRef,
		Reading:    reading.Clone(),
		Alerts:     triage.DetectAnomalies(reading),
		Source:     source,
		RecordedAt: s.now().UTC(),
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("store vitals for %s: %w", patientRef, err)
	}

	s.logger.Info().
		Str("record_id", rec.ID.String()).
		Str("patient_ref", rec.PatientRef).
		Str("source", rec.Source).
		Int("alerts", len(rec.Alerts)).
		Msg("vitals recorded")

	s.publish(ctx, events.VitalsRecorded, rec, false)
	if len(rec.Alerts) > 0 {
		s.publish(ctx, events.VitalsAlert, rec, triage.Urgent(rec.Alerts))
	}
	return rec, nil
}

// ListByPatient returns a patient's readings, newest first.
func (s *Service) ListByPatient(ctx context.Context, patientRef string, limit, offset int) ([]*Record, int, error) {
	if strings.TrimSpace(patientRef) == "" {
		return nil, 0, &triage.ValidationError{Field: "patient_ref", Reason: "is required"}
	}
	return s.repo.ListByPatient(ctx, patientRef, limit, offset)
}

func (s *Service) Latest(ctx context.Context, patientRef string) (*Record, error) {
	if strings.TrimSpace(patientRef) == "" {
		return nil, &triage.ValidationError{Field: "patient_ref", Reason: "is required"}
	}
	return s.repo.Latest(ctx, patientRef)
}

func (s *Service) publish(ctx context.Context, typ events.Type, rec *Record, alert bool) {
	e, err := events.New(typ, events.TopicVitals, resourceType, rec.ID.String(), rec)
	if err != nil {
		s.logger.Error().Err(err).Str("record_id", rec.ID.String()).Msg("build event")
		return
	}
	e.PatientRef = rec.PatientRef
	e.Alert = alert
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.Warn().Err(err).Str("event_type", string(typ)).Str("record_id", rec.ID.String()).Msg("publish event")
	}
}
