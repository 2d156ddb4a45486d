package risk

import (
	"strings"
	"testing"
)

func f(v float64) *float64 { return &v }

func TestEvaluate_AllVitalsNormal(t *testing.T) {
	res := Evaluate(Input{Vitals: Vitals{
		SpO2:            f(97),
		TemperatureC:    f(36.8),
		HeartRate:       f(72),
		RespiratoryRate: f(14),
	}})
	if res.Level != LevelLow || res.Score != 0 {
		t.Errorf("expected Low/0, got %s/%d", res.Level, res.Score)
	}
	if len(res.Drivers) != 0 || len(res.Missing) != 0 {
		t.Errorf("expected no drivers or missing vitals, got %+v", res)
	}
}

func TestEvaluate_LowSpO2ForcesHigh(t *testing.T) {
	res := Evaluate(Input{Vitals: Vitals{SpO2: f(88)}})
	if res.Level != LevelHigh {
		t.Errorf("expected High floor for SpO2 88, got %s", res.Level)
	}
	if res.Score != 35 {
		t.Errorf("expected score 35, got %d", res.Score)
	}

	// Exactly at the threshold does not fire.
	res = Evaluate(Input{Vitals: Vitals{SpO2: f(90)}})
	if res.Score != 0 {
		t.Errorf("SpO2 90 must not fire, got score %d", res.Score)
	}
}

func TestEvaluate_HighFeverForcesHigh(t *testing.T) {
	res := Evaluate(Input{Vitals: Vitals{TemperatureC: f(39.0)}})
	if res.Level != LevelHigh || res.Score != 35 {
		t.Errorf("expected High/35 at 39.0, got %s/%d", res.Level, res.Score)
	}
}

func TestEvaluate_FeverWithTachycardia(t *testing.T) {
	// Fever rule and standalone tachycardia both fire: 15+15.
	res := Evaluate(Input{Vitals: Vitals{TemperatureC: f(38.2), HeartRate: f(115)}})
	if res.Level != LevelMedium || res.Score != 30 {
		t.Errorf("expected Medium/30, got %s/%d", res.Level, res.Score)
	}

	// HR exactly 110 misses the fever rule (strict) but still counts as
	// elevated heart rate on its own.
	res = Evaluate(Input{Vitals: Vitals{TemperatureC: f(38.2), HeartRate: f(110)}})
	if res.Level != LevelMedium || res.Score != 15 {
		t.Errorf("expected Medium/15 at HR 110, got %s/%d", res.Level, res.Score)
	}

	// Moderate fever without a heart rate cannot fire.
	res = Evaluate(Input{Vitals: Vitals{TemperatureC: f(38.5)}})
	if res.Score != 0 {
		t.Errorf("fever rule needs a heart rate, got score %d", res.Score)
	}
}

func TestEvaluate_Tachycardia(t *testing.T) {
	res := Evaluate(Input{Vitals: Vitals{HeartRate: f(130)}})
	if res.Level != LevelHigh || res.Score != 35 {
		t.Errorf("expected High/35 at HR 130, got %s/%d", res.Level, res.Score)
	}
	res = Evaluate(Input{Vitals: Vitals{HeartRate: f(120)}})
	if res.Level != LevelMedium || res.Score != 15 {
		t.Errorf("expected Medium/15 at HR 120, got %s/%d", res.Level, res.Score)
	}
	res = Evaluate(Input{Vitals: Vitals{HeartRate: f(109)}})
	if res.Score != 0 {
		t.Errorf("HR 109 must not fire, got score %d", res.Score)
	}
}

func TestEvaluate_LowSystolicBPForcesHigh(t *testing.T) {
	res := Evaluate(Input{Vitals: Vitals{SystolicBP: f(85)}})
	if res.Level != LevelHigh || res.Score != 35 {
		t.Errorf("expected High/35 for SBP 85, got %s/%d", res.Level, res.Score)
	}

	// Exactly at the threshold does not fire, and an absent reading is not
	// reported as a missing core vital.
	res = Evaluate(Input{Vitals: Vitals{SystolicBP: f(90)}})
	if res.Score != 0 {
		t.Errorf("SBP 90 must not fire, got score %d", res.Score)
	}
	for _, m := range res.Missing {
		if m == "systolic_bp" {
			t.Errorf("systolic BP is optional, got missing %v", res.Missing)
		}
	}
}

func TestEvaluate_TachypneaForcesHigh(t *testing.T) {
	res := Evaluate(Input{Vitals: Vitals{RespiratoryRate: f(30)}})
	if res.Level != LevelHigh || res.Score != 35 {
		t.Errorf("expected High/35 at RR 30, got %s/%d", res.Level, res.Score)
	}
	res = Evaluate(Input{Vitals: Vitals{RespiratoryRate: f(29)}})
	if res.Score != 0 {
		t.Errorf("RR 29 must not fire, got score %d", res.Score)
	}
}

func TestEvaluate_SymptomScores(t *testing.T) {
	res := Evaluate(Input{Symptoms: []Symptom{
		{Name: "hemoptysis", Severity: "high"},
		{Name: "pleuritic pain", Severity: "Medium"},
		{Name: "fatigue", Severity: "low"},
		{Name: "unknown", Severity: "critical"},
	}})
	if res.Score != 55 {
		t.Errorf("expected 35+15+5=55, got %d", res.Score)
	}
	if res.Level != LevelMedium {
		t.Errorf("expected Medium by band at 55, got %s", res.Level)
	}
	// Low-severity symptoms do not produce drivers.
	for _, d := range res.Drivers {
		if strings.Contains(d, "fatigue") {
			t.Errorf("low severity must not produce a driver: %v", res.Drivers)
		}
	}
}

func TestEvaluate_ScoreBands(t *testing.T) {
	// One medium symptom: score 15 < 30 stays Low.
	res := Evaluate(Input{Symptoms: []Symptom{{Name: "a", Severity: "medium"}}})
	if res.Level != LevelLow {
		t.Errorf("score 15 should band Low, got %s", res.Level)
	}
	// Two medium symptoms: 30 is the exact Medium boundary.
	res = Evaluate(Input{Symptoms: []Symptom{{Name: "a", Severity: "medium"}, {Name: "b", Severity: "medium"}}})
	if res.Score != 30 || res.Level != LevelMedium {
		t.Errorf("expected Medium at exactly 30, got %s/%d", res.Level, res.Score)
	}
	// Two high symptoms: 70 crosses the High band.
	res = Evaluate(Input{Symptoms: []Symptom{{Name: "a", Severity: "high"}, {Name: "b", Severity: "high"}}})
	if res.Score != 70 || res.Level != LevelHigh {
		t.Errorf("expected High at 70, got %s/%d", res.Level, res.Score)
	}
}

func TestEvaluate_FloorBeatsBand(t *testing.T) {
	// Low SpO2 alone scores 35, which bands Medium, but the rule floor is High.
	res := Evaluate(Input{Vitals: Vitals{SpO2: f(85)}})
	if res.Level != LevelHigh {
		t.Errorf("rule floor must win over the band, got %s", res.Level)
	}
}

func TestEvaluate_MissingVitalsTracked(t *testing.T) {
	res := Evaluate(Input{})
	want := []string{"spo2", "temperature_c", "heart_rate", "respiratory_rate"}
	if len(res.Missing) != len(want) {
		t.Fatalf("expected %v, got %v", want, res.Missing)
	}
	for i, m := range want {
		if res.Missing[i] != m {
			t.Errorf("missing[%d]: expected %s, got %s", i, m, res.Missing[i])
		}
	}
}

func TestEvaluate_Deterministic(t *testing.T) {
	in := Input{
		Vitals:   Vitals{SpO2: f(89), TemperatureC: f(39.5), RespiratoryRate: f(32)},
		Symptoms: []Symptom{{Name: "confusion", Severity: "high"}},
	}
	first := Evaluate(in)
	for i := 0; i < 5; i++ {
		got := Evaluate(in)
		if got.Score != first.Score || got.Level != first.Level {
			t.Fatalf("non-deterministic result: %+v vs %+v", got, first)
		}
	}
	// 35+35+35+35 = 140, capped at 100; every High rule fired.
	if first.Score != 100 || first.Level != LevelHigh {
		t.Errorf("unexpected combined result: %+v", first)
	}
}

func TestEvaluate_ScoreCapped(t *testing.T) {
	res := Evaluate(Input{
		Vitals: Vitals{
			SpO2:            f(80),
			TemperatureC:    f(40.0),
			HeartRate:       f(140),
			RespiratoryRate: f(34),
			SystolicBP:      f(78),
		},
		Symptoms: []Symptom{{Name: "confusion", Severity: "high"}},
	})
	if res.Score != 100 {
		t.Errorf("expected score capped at 100, got %d", res.Score)
	}
	if res.Level != LevelHigh {
		t.Errorf("expected High, got %s", res.Level)
	}
}
