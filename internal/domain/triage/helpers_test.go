package triage

func f(v float64) *float64 { return &v }

func kinds(alerts []Alert) map[AlertKind]AlertSeverity {
	out := make(map[AlertKind]AlertSeverity, len(alerts))
	for _, a := range alerts {
		out[a.Kind] = a.Severity
	}
	return out
}
