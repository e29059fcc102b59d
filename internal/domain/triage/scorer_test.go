package triage

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeSymptomName(t *testing.T) {
	assert.Equal(t, "chest pain", NormalizeSymptomName("  Chest_Pain "))
	assert.Equal(t, "shortness of breath", NormalizeSymptomName("shortness-of  breath"))
	assert.Equal(t, "", NormalizeSymptomName("   "))
}

func TestSymptomScore(t *testing.T) {
	tests := []struct {
		name string
		in   SymptomReport
		want float64
	}{
		{"chest pain severe under an hour", SymptomReport{"chest pain", SeveritySevere, DurationUnderHour}, 48},
		{"chest pain moderate 1-6h", SymptomReport{"Chest Pain", SeverityModerate, DurationOneToSix}, 25},
		{"headache mild 6-24h", SymptomReport{"headache", SeverityMild, DurationSixToDay}, 2.4},
		{"cough severe over a day", SymptomReport{"cough", SeveritySevere, DurationOverDay}, 6},
		{"unknown symptom uses default", SymptomReport{"itchy elbow", SeverityModerate, DurationOneToSix}, 8},
		{"unknown duration weighs 1.0", SymptomReport{"seizure", SeveritySevere, ""}, 40},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, SymptomScore(tt.in), 1e-9)
		})
	}
}

func TestVitalPoints(t *testing.T) {
	tests := []struct {
		name    string
		reading VitalReading
		want    float64
	}{
		{"empty", VitalReading{}, 0},
		{"hypertensive crisis", VitalReading{Systolic: f(190), Diastolic: f(125)}, 20},
		{"hypertension", VitalReading{Systolic: f(142), Diastolic: f(80)}, 12},
		{"low systolic", VitalReading{Systolic: f(85), Diastolic: f(70)}, 15},
		// The alert table flags diastolic < 60, the point table does not.
		{"low diastolic scores nothing", VitalReading{Systolic: f(110), Diastolic: f(55)}, 0},
		{"severe tachycardia", VitalReading{HeartRate: f(130)}, 15},
		{"mild bradycardia", VitalReading{HeartRate: f(58)}, 8},
		{"high fever", VitalReading{TemperatureValue: f(40), TemperatureUnit: Celsius}, 15},
		{"fever", VitalReading{TemperatureValue: f(100.5)}, 10},
		{"hypothermia", VitalReading{TemperatureValue: f(94)}, 15},
		{"oxygen 82 uses the below-90 band", VitalReading{OxygenSaturation: f(82)}, 20},
		{"oxygen 93", VitalReading{OxygenSaturation: f(93)}, 10},
		{"pain 8", VitalReading{PainLevel: f(8)}, 15},
		{"pain 6", VitalReading{PainLevel: f(6)}, 10},
		{"pain 4", VitalReading{PainLevel: f(4)}, 5},
		{"pain 3", VitalReading{PainLevel: f(3)}, 0},
		{"respiratory 32", VitalReading{RespiratoryRate: f(32)}, 10},
		{"respiratory 10", VitalReading{RespiratoryRate: f(10)}, 5},
		{"additive across channels", VitalReading{Systolic: f(185), HeartRate: f(125), OxygenSaturation: f(88), PainLevel: f(9)}, 70},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, VitalPoints(tt.reading))
		})
	}
}

func TestHistoryPoints(t *testing.T) {
	assert.Equal(t, 0.0, HistoryPoints(nil))
	assert.Equal(t, 17.0, HistoryPoints([]HistoryFlag{
		{"asthma", SeverityMild},
		{"diabetes", SeverityModerate},
		{"heart failure", SeveritySevere},
	}))
}

func TestScore_SevereChestPain(t *testing.T) {
	score := Score([]SymptomReport{{"chest pain", SeveritySevere, DurationUnderHour}}, VitalReading{}, nil)

	assert.Equal(t, 48, score)
	// 48 sits in the 25-49 band.
	priority, level := Classify(score)
	assert.Equal(t, PriorityMedium, priority)
	assert.Equal(t, 3, level)
}

func TestScore_SevereChestPainWithCardiacHistory(t *testing.T) {
	score := Score(
		[]SymptomReport{{"chest pain", SeveritySevere, DurationUnderHour}},
		VitalReading{},
		[]HistoryFlag{{"coronary artery disease", SeveritySevere}},
	)

	assert.Equal(t, 58, score)
	priority, level := Classify(score)
	assert.Equal(t, PriorityHigh, priority)
	assert.Equal(t, 2, level)
}

func TestScore_HypertensiveCrisisOnly(t *testing.T) {
	score := Score(nil, VitalReading{Systolic: f(190), Diastolic: f(125)}, nil)

	assert.Equal(t, 20, score)
	priority, level := Classify(score)
	assert.Equal(t, PriorityLow, priority)
	assert.Equal(t, 4, level)
}

func TestScore_ClampedAt100(t *testing.T) {
	symptoms := []SymptomReport{
		{"unconsciousness", SeveritySevere, DurationUnderHour},
		{"seizure", SeveritySevere, DurationUnderHour},
		{"chest pain", SeveritySevere, DurationUnderHour},
	}
	score := Score(symptoms, VitalReading{OxygenSaturation: f(80)}, []HistoryFlag{{"copd", SeveritySevere}})
	assert.Equal(t, MaxRiskScore, score)
}

func TestScore_Rounds(t *testing.T) {
	// 2.4 + 2.4 = 4.8 rounds to 5.
	symptoms := []SymptomReport{
		{"headache", SeverityMild, DurationSixToDay},
		{"headache", SeverityMild, DurationSixToDay},
	}
	assert.Equal(t, 5, Score(symptoms, VitalReading{}, nil))
}

func randomInputs(r *rand.Rand) ([]SymptomReport, VitalReading, []HistoryFlag) {
	names := []string{"chest pain", "cough", "rash", "seizure", "mystery", "Back_Pain"}
	sevs := []Severity{SeverityMild, SeverityModerate, SeveritySevere}
	durs := []Duration{DurationUnderHour, DurationOneToSix, DurationSixToDay, DurationOverDay}

	var symptoms []SymptomReport
	for i := r.Intn(6); i > 0; i-- {
		symptoms = append(symptoms, SymptomReport{names[r.Intn(len(names))], sevs[r.Intn(3)], durs[r.Intn(4)]})
	}
	var v VitalReading
	if r.Intn(2) == 0 {
		v.Systolic, v.Diastolic = f(float64(60+r.Intn(200))), f(float64(30+r.Intn(100)))
	}
	if r.Intn(2) == 0 {
		v.HeartRate = f(float64(30 + r.Intn(170)))
	}
	if r.Intn(2) == 0 {
		v.OxygenSaturation = f(float64(70 + r.Intn(31)))
	}
	if r.Intn(2) == 0 {
		v.PainLevel = f(float64(r.Intn(11)))
	}
	var history []HistoryFlag
	for i := r.Intn(4); i > 0; i-- {
		history = append(history, HistoryFlag{"condition", sevs[r.Intn(3)]})
	}
	return symptoms, v, history
}

func TestScore_BoundedAndDeterministic(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		symptoms, v, history := randomInputs(r)
		score := Score(symptoms, v, history)
		assert.GreaterOrEqual(t, score, 0)
		assert.LessOrEqual(t, score, MaxRiskScore)
		assert.Equal(t, score, Score(symptoms, v, history))
	}
}

func TestAssess_Consistent(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	for i := 0; i < 200; i++ {
		symptoms, v, history := randomInputs(r)
		a := Assess(symptoms, v, history)

		assert.Equal(t, Score(symptoms, v, history), a.RiskScore)
		p, level := Classify(a.RiskScore)
		assert.Equal(t, p, a.Priority)
		assert.Equal(t, level, a.TriageLevel)
		assert.Equal(t, EstimateWait(level), a.EstimatedWaitMinutes)
		assert.Equal(t, DetectAnomalies(v), a.Alerts)
	}
}
