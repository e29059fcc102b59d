package triage

import (
	"time"

	"github.com/google/uuid"
)

type Severity string

const (
	SeverityMild     Severity = "mild"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
)

// Duration is the reported time since symptom onset.
type Duration string

const (
	DurationUnderHour Duration = "<1h"
	DurationOneToSix  Duration = "1-6h"
	DurationSixToDay  Duration = "6-24h"
	DurationOverDay   Duration = ">24h"
)

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Valid reports whether p is one of the four priority classes.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

type Status string

const (
	StatusPending       Status = "pending"
	StatusInAssessment  Status = "in-assessment"
	StatusWaitingDoctor Status = "waiting-doctor"
	StatusCompleted     Status = "completed"
)

// AlertSeverity grades an Alert. It shares its labels with Priority but the
// two are derived independently.
type AlertSeverity string

const (
	AlertLow      AlertSeverity = "low"
	AlertMedium   AlertSeverity = "medium"
	AlertHigh     AlertSeverity = "high"
	AlertCritical AlertSeverity = "critical"
)

type AlertKind string

const (
	AlertHighBP      AlertKind = "high_bp"
	AlertLowBP       AlertKind = "low_bp"
	AlertHighHR      AlertKind = "high_hr"
	AlertLowHR       AlertKind = "low_hr"
	AlertFever       AlertKind = "fever"
	AlertHypothermia AlertKind = "hypothermia"
	AlertLowOxygen   AlertKind = "low_oxygen"
	AlertHighRR      AlertKind = "high_rr"
	AlertLowRR       AlertKind = "low_rr"
	AlertSeverePain  AlertKind = "severe_pain"
)

type TemperatureUnit string

const (
	Fahrenheit TemperatureUnit = "F"
	Celsius    TemperatureUnit = "C"
)

type WeightUnit string

const (
	Pounds    WeightUnit = "lb"
	Kilograms WeightUnit = "kg"
)

type HeightUnit string

const (
	Inches      HeightUnit = "in"
	Centimeters HeightUnit = "cm"
)

// SymptomReport is one reported complaint.
type SymptomReport struct {
	Name     string   `json:"name" yaml:"name" validate:"notblank"`
	Severity Severity `json:"severity" yaml:"severity" validate:"oneof=mild moderate severe"`
	Duration Duration `json:"duration" yaml:"duration" validate:"oneof=<1h 1-6h 6-24h >24h"`
}

// VitalReading is a single snapshot of vital signs. Nil fields were not
// measured and are skipped by every rule.
type VitalReading struct {
	Systolic         *float64        `json:"systolic,omitempty" yaml:"systolic,omitempty"`
	Diastolic        *float64        `json:"diastolic,omitempty" yaml:"diastolic,omitempty"`
	HeartRate        *float64        `json:"heart_rate,omitempty" yaml:"heart_rate,omitempty"`
	TemperatureValue *float64        `json:"temperature_value,omitempty" yaml:"temperature_value,omitempty"`
	TemperatureUnit  TemperatureUnit `json:"temperature_unit,omitempty" yaml:"temperature_unit,omitempty" validate:"omitempty,oneof=F C"`
	RespiratoryRate  *float64        `json:"respiratory_rate,omitempty" yaml:"respiratory_rate,omitempty"`
	OxygenSaturation *float64        `json:"oxygen_saturation,omitempty" yaml:"oxygen_saturation,omitempty"`
	WeightValue      *float64        `json:"weight_value,omitempty" yaml:"weight_value,omitempty"`
	WeightUnit       WeightUnit      `json:"weight_unit,omitempty" yaml:"weight_unit,omitempty" validate:"omitempty,oneof=lb kg"`
	HeightValue      *float64        `json:"height_value,omitempty" yaml:"height_value,omitempty"`
	HeightUnit       HeightUnit      `json:"height_unit,omitempty" yaml:"height_unit,omitempty" validate:"omitempty,oneof=in cm"`
	PainLevel        *float64        `json:"pain_level,omitempty" yaml:"pain_level,omitempty"`
}

// IsEmpty reports whether no vital sign was measured.
func (v VitalReading) IsEmpty() bool {
	return v.Systolic == nil && v.Diastolic == nil && v.HeartRate == nil &&
		v.TemperatureValue == nil && v.RespiratoryRate == nil && v.OxygenSaturation == nil &&
		v.WeightValue == nil && v.HeightValue == nil && v.PainLevel == nil
}

// Clone returns a copy that shares no pointers with v.
func (v VitalReading) Clone() VitalReading {
	out := v
	out.Systolic = copyFloat(v.Systolic)
	out.Diastolic = copyFloat(v.Diastolic)
	out.HeartRate = copyFloat(v.HeartRate)
	out.TemperatureValue = copyFloat(v.TemperatureValue)
	out.RespiratoryRate = copyFloat(v.RespiratoryRate)
	out.OxygenSaturation = copyFloat(v.OxygenSaturation)
	out.WeightValue = copyFloat(v.WeightValue)
	out.HeightValue = copyFloat(v.HeightValue)
	out.PainLevel = copyFloat(v.PainLevel)
	return out
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

// HistoryFlag is one relevant pre-existing condition.
type HistoryFlag struct {
	Condition string   `json:"condition" yaml:"condition" validate:"notblank"`
	Severity  Severity `json:"severity" yaml:"severity" validate:"oneof=mild moderate severe"`
}

// Alert is a warning raised by a threshold rule on a single reading.
type Alert struct {
	Kind     AlertKind     `json:"kind" yaml:"kind"`
	Message  string        `json:"message" yaml:"message"`
	Severity AlertSeverity `json:"severity" yaml:"severity"`
}

// Note is a free-text staff annotation on a case.
type Note struct {
	ID        uuid.UUID `json:"id"`
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// StatusChange maps to the triage_status_history table.
type StatusChange struct {
	ID        uuid.UUID `db:"id" json:"id"`
	CaseID    uuid.UUID `db:"case_id" json:"case_id"`
	From      Status    `db:"from_status" json:"from_status"`
	To        Status    `db:"to_status" json:"to_status"`
	ChangedBy string    `db:"changed_by" json:"changed_by,omitempty"`
	ChangedAt time.Time `db:"changed_at" json:"changed_at"`
}

// Case maps to the triage_case table.
type Case struct {
	ID                   uuid.UUID       `db:"id" json:"id"`
	PatientRef           string          `db:"patient_ref" json:"patient_ref"`
	Symptoms             []SymptomReport `db:"symptoms" json:"symptoms"`
	Vitals               VitalReading    `db:"vitals" json:"vitals"`
	History              []HistoryFlag   `db:"history" json:"history"`
	Alerts               []Alert         `db:"alerts" json:"alerts"`
	Notes                []Note          `db:"notes" json:"notes,omitempty"`
	RiskScore            int             `db:"risk_score" json:"risk_score"`
	Priority             Priority        `db:"priority" json:"priority"`
	TriageLevel          int             `db:"triage_level" json:"triage_level"`
	EstimatedWaitMinutes int             `db:"estimated_wait_minutes" json:"estimated_wait_minutes"`
	Status               Status          `db:"status" json:"status"`
	CreatedAt            time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time       `db:"updated_at" json:"updated_at"`
}

// Scoreable reports whether the case carries anything the engine can score.
func (c *Case) Scoreable() bool {
	return len(c.Symptoms) > 0 || !c.Vitals.IsEmpty() || len(c.History) > 0
}

// Clone returns a deep copy of c.
func (c *Case) Clone() *Case {
	if c == nil {
		return nil
	}
	out := *c
	out.Symptoms = append([]SymptomReport(nil), c.Symptoms...)
	out.History = append([]HistoryFlag(nil), c.History...)
	out.Alerts = append([]Alert(nil), c.Alerts...)
	out.Notes = append([]Note(nil), c.Notes...)
	out.Vitals = c.Vitals.Clone()
	return &out
}
