package triage

// Assessment is everything the engine derives from one set of inputs.
type Assessment struct {
	RiskScore            int      `json:"risk_score" yaml:"risk_score"`
	Priority             Priority `json:"priority" yaml:"priority"`
	TriageLevel          int      `json:"triage_level" yaml:"triage_level"`
	EstimatedWaitMinutes int      `json:"estimated_wait_minutes" yaml:"estimated_wait_minutes"`
	Alerts               []Alert  `json:"alerts" yaml:"alerts"`
}

// Assess normalises the vitals once, then runs the anomaly detector and the
// risk scorer over the same normalised reading and classifies the result.
func Assess(symptoms []SymptomReport, vitals VitalReading, history []HistoryFlag) Assessment {
	n := Normalize(vitals)
	score := scoreNormalized(symptoms, n, history)
	priority, level := Classify(score)
	return Assessment{
		RiskScore:            score,
		Priority:             priority,
		TriageLevel:          level,
		EstimatedWaitMinutes: EstimateWait(level),
		Alerts:               DetectNormalized(n),
	}
}

// reassess recomputes every derived field of c from its current inputs.
// It is the only code path that writes those fields.
func (c *Case) reassess() {
	a := Assess(c.Symptoms, c.Vitals, c.History)
	c.RiskScore = a.RiskScore
	c.Priority = a.Priority
	c.TriageLevel = a.TriageLevel
	c.EstimatedWaitMinutes = a.EstimatedWaitMinutes
	c.Alerts = a.Alerts
}

// Urgent reports whether any alert is high or critical.
func Urgent(alerts []Alert) bool {
	for _, a := range alerts {
		if a.Severity == AlertHigh || a.Severity == AlertCritical {
			return true
		}
	}
	return false
}
