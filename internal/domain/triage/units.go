package triage

import "math"

// Normalized holds a reading in canonical units: temperature in Fahrenheit,
// weight in kilograms, height in centimetres. A nil field means the rule
// depending on it is not evaluated.
type Normalized struct {
	Systolic         *float64
	Diastolic        *float64
	HeartRate        *float64
	TemperatureF     *float64
	RespiratoryRate  *float64
	OxygenSaturation *float64
	WeightKg         *float64
	HeightCm         *float64
	PainLevel        *float64
}

// FahrenheitFrom converts v in unit u to Fahrenheit. An empty unit is read as
// Fahrenheit.
func FahrenheitFrom(v float64, u TemperatureUnit) float64 {
	if u == Celsius {
		return v*9/5 + 32
	}
	return v
}

// KilogramsFrom converts v in unit u to kilograms. An empty unit is read as
// kilograms.
func KilogramsFrom(v float64, u WeightUnit) float64 {
	if u == Pounds {
		return v * 0.453592
	}
	return v
}

// CentimetersFrom converts v in unit u to centimetres. An empty unit is read
// as centimetres.
func CentimetersFrom(v float64, u HeightUnit) float64 {
	if u == Inches {
		return v * 2.54
	}
	return v
}

// Normalize converts every present field of r into canonical units. NaN
// values are dropped.
func Normalize(r VitalReading) Normalized {
	n := Normalized{
		Systolic:         present(r.Systolic),
		Diastolic:        present(r.Diastolic),
		HeartRate:        present(r.HeartRate),
		RespiratoryRate:  present(r.RespiratoryRate),
		OxygenSaturation: present(r.OxygenSaturation),
		PainLevel:        present(r.PainLevel),
	}
	if t := present(r.TemperatureValue); t != nil {
		f := FahrenheitFrom(*t, r.TemperatureUnit)
		n.TemperatureF = &f
	}
	if w := present(r.WeightValue); w != nil {
		kg := KilogramsFrom(*w, r.WeightUnit)
		n.WeightKg = &kg
	}
	if h := present(r.HeightValue); h != nil {
		cm := CentimetersFrom(*h, r.HeightUnit)
		n.HeightCm = &cm
	}
	return n
}

func present(f *float64) *float64 {
	if f == nil || math.IsNaN(*f) {
		return nil
	}
	v := *f
	return &v
}
