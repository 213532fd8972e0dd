package rules

import (
	"errors"
	"math"
)

var ErrInvalidMeasurement = errors.New("height and weight must be positive")

type BMI struct {
	Value    float64 `json:"bmi"`
	Category string  `json:"category"`
}

// ComputeBMI expects height in centimetres and weight in kilograms. The value is
// rounded to one decimal and the category is taken from the rounded value, so
// 180 cm / 81 kg reports 25.0 Overweight.
func ComputeBMI(heightCm, weightKg float64) (BMI, error) {
	if heightCm <= 0 || weightKg <= 0 || math.IsNaN(heightCm) || math.IsNaN(weightKg) {
		return BMI{}, ErrInvalidMeasurement
	}

	h := heightCm / 100.0
	bmi := math.Round(weightKg/(h*h)*10) / 10

	return BMI{Value: bmi, Category: bmiCategory(bmi)}, nil
}

func bmiCategory(bmi float64) string {
	switch {
	case bmi < 18.5:
		return "Underweight"
	case bmi < 25.0:
		return "Normal"
	case bmi < 30.0:
		return "Overweight"
	default:
		return "Obese"
	}
}
