package triage

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

// inputValidator checks the struct tags on the intake types. Field names in
// its errors are the json names.
var inputValidator = newInputValidator()

func newInputValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	return v
}

// checkStruct runs the tag rules on v and reports the first failure under
// prefix.
func checkStruct(prefix string, v interface{}) error {
	err := inputValidator.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("validate %s: %w", strings.TrimSuffix(prefix, "."), err)
	}
	fe := verrs[0]
	field := prefix + fe.Field()
	if fe.Tag() == "oneof" {
		return &ValidationError{Field: field, Reason: fmt.Sprintf("unknown value %q, want one of: %s", fe.Value(), fe.Param())}
	}
	return &ValidationError{Field: field, Reason: "is required"}
}

type bounds struct{ min, max float64 }

// Clinical plausibility bounds, applied after unit normalisation.
var vitalBounds = struct {
	systolic, diastolic, heartRate, temperatureF, respiratory, oxygen, weightKg, heightCm, pain bounds
}{
	systolic:     bounds{50, 300},
	diastolic:    bounds{20, 200},
	heartRate:    bounds{20, 300},
	temperatureF: bounds{80, 115},
	respiratory:  bounds{4, 80},
	oxygen:       bounds{40, 100},
	weightKg:     bounds{0.3, 650},
	heightCm:     bounds{20, 280},
	pain:         bounds{0, 10},
}

// ValidateVitals checks units and clinical bounds of every present field.
func ValidateVitals(r VitalReading) error {
	if err := checkStruct("vitals.", r); err != nil {
		return err
	}

	checks := []struct {
		field string
		value *float64
		b     bounds
	}{
		{"vitals.systolic", r.Systolic, vitalBounds.systolic},
		{"vitals.diastolic", r.Diastolic, vitalBounds.diastolic},
		{"vitals.heart_rate", r.HeartRate, vitalBounds.heartRate},
		{"vitals.respiratory_rate", r.RespiratoryRate, vitalBounds.respiratory},
		{"vitals.oxygen_saturation", r.OxygenSaturation, vitalBounds.oxygen},
		{"vitals.pain_level", r.PainLevel, vitalBounds.pain},
	}
	for _, c := range checks {
		if err := checkBounds(c.field, c.value, c.b); err != nil {
			return err
		}
	}

	if r.TemperatureValue != nil {
		if math.IsNaN(*r.TemperatureValue) {
			return &ValidationError{Field: "vitals.temperature_value", Reason: "not a number"}
		}
		f := FahrenheitFrom(*r.TemperatureValue, r.TemperatureUnit)
		if err := checkBounds("vitals.temperature_value", &f, vitalBounds.temperatureF); err != nil {
			return err
		}
	}
	if r.WeightValue != nil {
		if math.IsNaN(*r.WeightValue) {
			return &ValidationError{Field: "vitals.weight_value", Reason: "not a number"}
		}
		kg := KilogramsFrom(*r.WeightValue, r.WeightUnit)
		if err := checkBounds("vitals.weight_value", &kg, vitalBounds.weightKg); err != nil {
			return err
		}
	}
	if r.HeightValue != nil {
		if math.IsNaN(*r.HeightValue) {
			return &ValidationError{Field: "vitals.height_value", Reason: "not a number"}
		}
		cm := CentimetersFrom(*r.HeightValue, r.HeightUnit)
		if err := checkBounds("vitals.height_value", &cm, vitalBounds.heightCm); err != nil {
			return err
		}
	}
	if r.Systolic != nil && r.Diastolic != nil && *r.Diastolic >= *r.Systolic {
		return &ValidationError{Field: "vitals.diastolic", Reason: "must be lower than systolic"}
	}
	return nil
}

func checkBounds(field string, v *float64, b bounds) error {
	if v == nil {
		return nil
	}
	if math.IsNaN(*v) || *v < b.min || *v > b.max {
		return &ValidationError{Field: field, Reason: fmt.Sprintf("%v outside [%v, %v]", *v, b.min, b.max)}
	}
	return nil
}

// ValidateSymptoms checks every report has a name and known enum values.
func ValidateSymptoms(symptoms []SymptomReport) error {
	for i, s := range symptoms {
		if err := checkStruct(fmt.Sprintf("symptoms[%d].", i), s); err != nil {
			return err
		}
	}
	return nil
}

// ValidateHistory checks every flag has a condition and a known severity.
func ValidateHistory(history []HistoryFlag) error {
	for i, h := range history {
		if err := checkStruct(fmt.Sprintf("history[%d].", i), h); err != nil {
			return err
		}
	}
	return nil
}

// ValidateInputs runs every input check used before scoring.
func ValidateInputs(symptoms []SymptomReport, vitals VitalReading, history []HistoryFlag) error {
	if err := ValidateSymptoms(symptoms); err != nil {
		return err
	}
	if err := ValidateVitals(vitals); err != nil {
		return err
	}
	return ValidateHistory(history)
}
