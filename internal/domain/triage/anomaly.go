package triage

import "fmt"

// alertRule inspects one vital-sign channel and appends whatever alerts it
// raises. Rules never look at each other's output.
type alertRule func(n Normalized, out []Alert) []Alert

var alertRules = []alertRule{
	bloodPressureAlerts,
	heartRateAlerts,
	temperatureAlerts,
	oxygenAlerts,
	respiratoryAlerts,
	painAlerts,
}

// DetectAnomalies evaluates every channel of r against the alert thresholds.
// The result is deterministic and contains at most one alert per kind.
func DetectAnomalies(r VitalReading) []Alert {
	return DetectNormalized(Normalize(r))
}

// DetectNormalized is DetectAnomalies for an already normalised reading.
func DetectNormalized(n Normalized) []Alert {
	alerts := make([]Alert, 0, 2)
	for _, rule := range alertRules {
		alerts = rule(n, alerts)
	}
	return alerts
}

func bloodPressureAlerts(n Normalized, out []Alert) []Alert {
	sys, dia := n.Systolic, n.Diastolic
	if sys == nil && dia == nil {
		return out
	}
	reading := formatBP(sys, dia)

	switch {
	case atLeast(sys, 180) || atLeast(dia, 120):
		out = append(out, Alert{Kind: AlertHighBP, Severity: AlertCritical,
			Message: fmt.Sprintf("Hypertensive crisis: blood pressure %s mmHg", reading)})
	case atLeast(sys, 140) || atLeast(dia, 90):
		out = append(out, Alert{Kind: AlertHighBP, Severity: AlertHigh,
			Message: fmt.Sprintf("High blood pressure: %s mmHg", reading)})
	}
	if below(sys, 90) || below(dia, 60) {
		out = append(out, Alert{Kind: AlertLowBP, Severity: AlertMedium,
			Message: fmt.Sprintf("Low blood pressure: %s mmHg", reading)})
	}
	return out
}

func heartRateAlerts(n Normalized, out []Alert) []Alert {
	hr := n.HeartRate
	if hr == nil {
		return out
	}
	switch {
	case *hr > 120:
		return append(out, Alert{Kind: AlertHighHR, Severity: AlertHigh,
			Message: fmt.Sprintf("Severe tachycardia: heart rate %.0f bpm", *hr)})
	case *hr < 50:
		return append(out, Alert{Kind: AlertLowHR, Severity: AlertHigh,
			Message: fmt.Sprintf("Severe bradycardia: heart rate %.0f bpm", *hr)})
	case *hr > 100:
		return append(out, Alert{Kind: AlertHighHR, Severity: AlertMedium,
			Message: fmt.Sprintf("Tachycardia: heart rate %.0f bpm", *hr)})
	case *hr < 60:
		return append(out, Alert{Kind: AlertLowHR, Severity: AlertMedium,
			Message: fmt.Sprintf("Bradycardia: heart rate %.0f bpm", *hr)})
	}
	return out
}

func temperatureAlerts(n Normalized, out []Alert) []Alert {
	t := n.TemperatureF
	if t == nil {
		return out
	}
	switch {
	case *t >= 103:
		return append(out, Alert{Kind: AlertFever, Severity: AlertHigh,
			Message: fmt.Sprintf("High fever: %.1f°F", *t)})
	case *t >= 100.4:
		return append(out, Alert{Kind: AlertFever, Severity: AlertMedium,
			Message: fmt.Sprintf("Fever: %.1f°F", *t)})
	case *t < 95:
		return append(out, Alert{Kind: AlertHypothermia, Severity: AlertHigh,
			Message: fmt.Sprintf("Hypothermia: %.1f°F", *t)})
	}
	return out
}

func oxygenAlerts(n Normalized, out []Alert) []Alert {
	o2 := n.OxygenSaturation
	if o2 == nil {
		return out
	}
	switch {
	case *o2 < 85:
		return append(out, Alert{Kind: AlertLowOxygen, Severity: AlertCritical,
			Message: fmt.Sprintf("Critically low oxygen saturation: %.0f%%", *o2)})
	case *o2 < 90:
		return append(out, Alert{Kind: AlertLowOxygen, Severity: AlertHigh,
			Message: fmt.Sprintf("Low oxygen saturation: %.0f%%", *o2)})
	case *o2 < 95:
		return append(out, Alert{Kind: AlertLowOxygen, Severity: AlertMedium,
			Message: fmt.Sprintf("Reduced oxygen saturation: %.0f%%", *o2)})
	}
	return out
}

func respiratoryAlerts(n Normalized, out []Alert) []Alert {
	rr := n.RespiratoryRate
	if rr == nil {
		return out
	}
	switch {
	case *rr > 30:
		return append(out, Alert{Kind: AlertHighRR, Severity: AlertHigh,
			Message: fmt.Sprintf("Severe tachypnea: respiratory rate %.0f/min", *rr)})
	case *rr < 8:
		return append(out, Alert{Kind: AlertLowRR, Severity: AlertHigh,
			Message: fmt.Sprintf("Severe bradypnea: respiratory rate %.0f/min", *rr)})
	case *rr > 24:
		return append(out, Alert{Kind: AlertHighRR, Severity: AlertMedium,
			Message: fmt.Sprintf("Tachypnea: respiratory rate %.0f/min", *rr)})
	case *rr < 12:
		return append(out, Alert{Kind: AlertLowRR, Severity: AlertMedium,
			Message: fmt.Sprintf("Bradypnea: respiratory rate %.0f/min", *rr)})
	}
	return out
}

func painAlerts(n Normalized, out []Alert) []Alert {
	p := n.PainLevel
	if p == nil {
		return out
	}
	switch {
	case *p >= 8:
		return append(out, Alert{Kind: AlertSeverePain, Severity: AlertHigh,
			Message: fmt.Sprintf("Severe pain reported: %.0f/10", *p)})
	case *p >= 6:
		return append(out, Alert{Kind: AlertSeverePain, Severity: AlertMedium,
			Message: fmt.Sprintf("Significant pain reported: %.0f/10", *p)})
	}
	return out
}

func atLeast(v *float64, limit float64) bool { return v != nil && *v >= limit }
func below(v *float64, limit float64) bool   { return v != nil && *v < limit }

func formatBP(sys, dia *float64) string {
	s, d := "?", "?"
	if sys != nil {
		s = fmt.Sprintf("%.0f", *sys)
	}
	if dia != nil {
		d = fmt.Sprintf("%.0f", *dia)
	}
	return s + "/" + d
}
