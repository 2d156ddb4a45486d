package risk

import (
	"fmt"
	"strings"
)

// Threshold rules. Each fired rule contributes to the score by severity and
// can force a minimum level regardless of the total.
const (
	spo2HighBelow   = 90.0
	tempHighAtLeast = 39.0
	tempMedAtLeast  = 38.0
	hrFeverAbove    = 110.0
	hrHighAtLeast   = 130.0
	hrMedAtLeast    = 110.0
	rrHighAtLeast   = 30.0
	sbpHighBelow    = 90.0
)

// Severity weights shared by vital rules and reported symptoms.
const (
	scoreHigh   = 35
	scoreMedium = 15
	scoreLow    = 5

	maxScore = 100
)

// Score bands used when no single rule forces a level.
const (
	bandHigh   = 60
	bandMedium = 30
)

// Evaluate applies the vital-sign and symptom rules. The function is pure;
// the same input always yields the same result.
func Evaluate(in Input) Result {
	res := Result{Level: LevelLow, Drivers: []string{}, Missing: []string{}}
	floor := LevelLow

	v := in.Vitals
	if v.SpO2 == nil {
		res.Missing = append(res.Missing, "spo2")
	} else if *v.SpO2 < spo2HighBelow {
		res.Score += scoreHigh
		floor = maxLevel(floor, LevelHigh)
		res.Drivers = append(res.Drivers, fmt.Sprintf("SpO2 %.0f%% below %.0f%%", *v.SpO2, spo2HighBelow))
	}

	if v.TemperatureC == nil {
		res.Missing = append(res.Missing, "temperature_c")
	} else {
		if *v.TemperatureC >= tempHighAtLeast {
			res.Score += scoreHigh
			floor = maxLevel(floor, LevelHigh)
			res.Drivers = append(res.Drivers, fmt.Sprintf("temperature %.1f°C at or above %.1f°C", *v.TemperatureC, tempHighAtLeast))
		} else if *v.TemperatureC >= tempMedAtLeast && v.HeartRate != nil && *v.HeartRate > hrFeverAbove {
			res.Score += scoreMedium
			floor = maxLevel(floor, LevelMedium)
			res.Drivers = append(res.Drivers, fmt.Sprintf("fever %.1f°C with tachycardia %.0f bpm", *v.TemperatureC, *v.HeartRate))
		}
	}

	// Standalone tachycardia fires in addition to the fever rule above.
	if v.HeartRate == nil {
		res.Missing = append(res.Missing, "heart_rate")
	} else if *v.HeartRate >= hrHighAtLeast {
		res.Score += scoreHigh
		floor = maxLevel(floor, LevelHigh)
		res.Drivers = append(res.Drivers, fmt.Sprintf("heart rate %.0f bpm at or above %.0f", *v.HeartRate, hrHighAtLeast))
	} else if *v.HeartRate >= hrMedAtLeast {
		res.Score += scoreMedium
		floor = maxLevel(floor, LevelMedium)
		res.Drivers = append(res.Drivers, fmt.Sprintf("heart rate %.0f bpm elevated", *v.HeartRate))
	}

	if v.RespiratoryRate == nil {
		res.Missing = append(res.Missing, "respiratory_rate")
	} else if *v.RespiratoryRate >= rrHighAtLeast {
		res.Score += scoreHigh
		floor = maxLevel(floor, LevelHigh)
		res.Drivers = append(res.Drivers, fmt.Sprintf("respiratory rate %.0f at or above %.0f", *v.RespiratoryRate, rrHighAtLeast))
	}

	if v.SystolicBP != nil && *v.SystolicBP < sbpHighBelow {
		res.Score += scoreHigh
		floor = maxLevel(floor, LevelHigh)
		res.Drivers = append(res.Drivers, fmt.Sprintf("systolic BP %.0f below %.0f", *v.SystolicBP, sbpHighBelow))
	}

	for _, s := range in.Symptoms {
		switch strings.ToLower(strings.TrimSpace(s.Severity)) {
		case "high":
			res.Score += scoreHigh
			res.Drivers = append(res.Drivers, "severe symptom: "+s.Name)
		case "medium":
			res.Score += scoreMedium
			res.Drivers = append(res.Drivers, "moderate symptom: "+s.Name)
		case "low":
			res.Score += scoreLow
		}
	}

	if res.Score > maxScore {
		res.Score = maxScore
	}

	res.Level = maxLevel(floor, bandLevel(res.Score))
	return res
}

func bandLevel(score int) Level {
	switch {
	case score >= bandHigh:
		return LevelHigh
	case score >= bandMedium:
		return LevelMedium
	default:
		return LevelLow
	}
}

var levelRank = map[Level]int{LevelLow: 0, LevelMedium: 1, LevelHigh: 2}

func maxLevel(a, b Level) Level {
	if levelRank[b] > levelRank[a] {
		return b
	}
	return a
}
