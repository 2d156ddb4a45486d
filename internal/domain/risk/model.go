package risk

import (
	"time"
)

// Level is the three-step risk scale.
type Level string

const (
	LevelLow    Level = "Low"
	LevelMedium Level = "Medium"
	LevelHigh   Level = "High"
)

// Vitals are the measured inputs to the rule engine. Pointers distinguish
// an absent measurement from a zero reading.
type Vitals struct {
	SpO2            *float64 `json:"spo2,omitempty"`
	TemperatureC    *float64 `json:"temperature_c,omitempty"`
	HeartRate       *float64 `json:"heart_rate,omitempty"`
	RespiratoryRate *float64 `json:"respiratory_rate,omitempty"`
	SystolicBP      *float64 `json:"systolic_bp,omitempty"`
}

// Symptom is one reported symptom with a clinician-assigned severity.
type Symptom struct {
	Name     string `json:"name"`
	Severity string `json:"severity"` // low, medium, high
}

// Input is one evaluation request.
type Input struct {
	PatientID string    `json:"patient_id"`
	Vitals    Vitals    `json:"vitals"`
	Symptoms  []Symptom `json:"symptoms,omitempty"`
}

// Result is the deterministic outcome of one evaluation.
type Result struct {
	Level   Level    `json:"risk_level"`
	Score   int      `json:"risk_score"`
	Drivers []string `json:"drivers"`
	Missing []string `json:"missing_vitals"`
}

// Snapshot is a persisted evaluation, append-only like assessments.
type Snapshot struct {
	ID        string    `json:"id"`
	PatientID string    `json:"patient_id"`
	Vitals    Vitals    `json:"vitals"`
	Symptoms  []Symptom `json:"symptoms"`
	Result    Result    `json:"result"`
	CreatedAt time.Time `json:"created_at"`
}
