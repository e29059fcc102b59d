// Package vitals records standalone vital-sign readings, from staff or ward
// monitors, and raises alerts on them with the triage anomaly rules.
package vitals

import (
	"time"

	"github.com/google/uuid"

	"github.com/medops/triage/internal/domain/triage"
)

// Sources of a reading.
const (
	SourceAPI  = "api"
	SourceMQTT = "mqtt"
)

// Record maps to the vitals_record table.
type Record struct {
	ID         uuid.UUID           `db:"id" json:"id"`
	PatientRef string              `db:"patient_ref" json:"patient_ref"`
	Reading    triage.VitalReading `db:"reading" json:"reading"`
	Alerts     []triage.Alert      `db:"alerts" json:"alerts"`
	Source     string              `db:"source" json:"source"`
	RecordedAt time.Time           `db:"recorded_at" json:"recorded_at"`
}

func (r *Record) clone() *Record {
	cp := *r
	cp.Reading = r.Reading.Clone()
	cp.Alerts = append([]triage.Alert(nil), r.Alerts...)
	return &cp
}
