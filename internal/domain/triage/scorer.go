package triage

import (
	"math"
	"strings"
)

// MaxRiskScore is the upper bound of every risk score.
const MaxRiskScore = 100

// severityScores holds the base points of a symptom at each severity.
type severityScores struct {
	Mild, Moderate, Severe float64
}

func (s severityScores) at(sev Severity) float64 {
	switch sev {
	case SeveritySevere:
		return s.Severe
	case SeverityModerate:
		return s.Moderate
	default:
		return s.Mild
	}
}

var defaultSymptomScores = severityScores{3, 8, 15}

// symptomScores is keyed by normalised symptom name.
var symptomScores = map[string]severityScores{
	"chest pain":           {15, 25, 40},
	"shortness of breath":  {12, 22, 35},
	"difficulty breathing": {12, 22, 35},
	"severe bleeding":      {15, 25, 40},
	"bleeding":             {8, 15, 30},
	"seizure":              {15, 25, 40},
	"confusion":            {10, 18, 30},
	"unconsciousness":      {20, 30, 45},
	"abdominal pain":       {5, 12, 25},
	"headache":             {3, 8, 18},
	"dizziness":            {4, 10, 18},
	"fever":                {5, 10, 20},
	"vomiting":             {4, 8, 15},
	"nausea":               {3, 6, 12},
	"back pain":            {3, 7, 14},
	"cough":                {2, 5, 10},
	"rash":                 {2, 4, 8},
}

// Shorter onset is more urgent.
var durationFactors = map[Duration]float64{
	DurationUnderHour: 1.2,
	DurationOneToSix:  1.0,
	DurationSixToDay:  0.8,
	DurationOverDay:   0.6,
}

var historyPoints = map[Severity]float64{
	SeverityMild:     2,
	SeverityModerate: 5,
	SeveritySevere:   10,
}

// NormalizeSymptomName folds case, surrounding space and separators so that
// "Chest_Pain" and "chest pain" share a table entry.
func NormalizeSymptomName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.NewReplacer("_", " ", "-", " ").Replace(name)
	return strings.Join(strings.Fields(name), " ")
}

// SymptomScore is the duration-weighted contribution of one symptom.
func SymptomScore(s SymptomReport) float64 {
	scores, ok := symptomScores[NormalizeSymptomName(s.Name)]
	if !ok {
		scores = defaultSymptomScores
	}
	factor, ok := durationFactors[s.Duration]
	if !ok {
		factor = 1.0
	}
	return scores.at(s.Severity) * factor
}

// VitalPoints awards risk points for abnormal vitals. The bands are kept apart
// from the alert thresholds in anomaly.go; they overlap but do not match
// exactly (low blood pressure here looks at systolic only).
func VitalPoints(r VitalReading) float64 {
	return normalizedVitalPoints(Normalize(r))
}

func normalizedVitalPoints(n Normalized) float64 {
	var pts float64

	switch {
	case atLeast(n.Systolic, 180) || atLeast(n.Diastolic, 120):
		pts += 20
	case atLeast(n.Systolic, 140) || atLeast(n.Diastolic, 90):
		pts += 12
	case below(n.Systolic, 90):
		pts += 15
	}

	if hr := n.HeartRate; hr != nil {
		switch {
		case *hr > 120 || *hr < 50:
			pts += 15
		case *hr > 100 || *hr < 60:
			pts += 8
		}
	}

	if t := n.TemperatureF; t != nil {
		switch {
		case *t >= 103:
			pts += 15
		case *t >= 100.4:
			pts += 10
		case *t < 95:
			pts += 15
		}
	}

	if o2 := n.OxygenSaturation; o2 != nil {
		switch {
		case *o2 < 90:
			pts += 20
		case *o2 < 95:
			pts += 10
		}
	}

	if p := n.PainLevel; p != nil {
		switch {
		case *p >= 8:
			pts += 15
		case *p >= 6:
			pts += 10
		case *p >= 4:
			pts += 5
		}
	}

	if rr := n.RespiratoryRate; rr != nil {
		switch {
		case *rr > 30 || *rr < 8:
			pts += 10
		case *rr > 24 || *rr < 12:
			pts += 5
		}
	}

	return pts
}

// HistoryPoints sums the burden of the medical history flags.
func HistoryPoints(history []HistoryFlag) float64 {
	var pts float64
	for _, h := range history {
		pts += historyPoints[h.Severity]
	}
	return pts
}

// Score combines symptoms, vitals and history into a risk score in
// [0, MaxRiskScore].
func Score(symptoms []SymptomReport, vitals VitalReading, history []HistoryFlag) int {
	return scoreNormalized(symptoms, Normalize(vitals), history)
}

func scoreNormalized(symptoms []SymptomReport, n Normalized, history []HistoryFlag) int {
	var total float64
	for _, s := range symptoms {
		total += SymptomScore(s)
	}
	total += normalizedVitalPoints(n)
	total += HistoryPoints(history)
	return int(math.Round(math.Min(total, MaxRiskScore)))
}
