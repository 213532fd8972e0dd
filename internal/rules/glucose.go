package rules

import "github.com/duffymelancholic/diabetes-management-app/internal/entity"

const (
	StatusNormal  = "normal"
	StatusHigh    = "high"
	StatusLow     = "low"
	StatusUnknown = "unknown"
)

// Evaluation annotates a reading with a traffic-light status and advice.
type Evaluation struct {
	Status      string   `json:"status"`
	Color       string   `json:"color"`
	Suggestions []string `json:"suggestions"`
}

// EvaluateGlucose classifies a value in mg/dL. Pre-meal readings are normal in
// [80, 130]; every other context is normal below 180 and has no low band.
func EvaluateGlucose(value float64, context string) Evaluation {
	ev := Evaluation{Status: StatusUnknown, Color: "gray", Suggestions: []string{}}

	if context == entity.ContextPreMeal {
		switch {
		case value >= 80 && value <= 130:
			ev = Evaluation{StatusNormal, "green", clone(tables.Tips.Normal)}
		case value > 130:
			ev = Evaluation{StatusHigh, "red", clone(tables.Tips.High)}
		case value < 80:
			ev = Evaluation{StatusLow, "yellow", clone(tables.Tips.Low)}
		}
		return ev
	}

	switch {
	case value < 180:
		ev = Evaluation{StatusNormal, "green", clone(tables.Tips.Normal)}
	case value >= 180:
		ev = Evaluation{StatusHigh, "red", clone(tables.Tips.High)}
	}
	return ev
}
