package service

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Field distinguishes a JSON key that was omitted from one sent as null,
// which PATCH semantics depend on.
type Field[T any] struct {
	Present bool
	Null    bool
	Value   T
}

func (f *Field[T]) UnmarshalJSON(b []byte) error {
	f.Present = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		f.Null = true
		return nil
	}
	return json.Unmarshal(b, &f.Value)
}

// Set reports whether the field carries a non-null value.
func (f Field[T]) Set() bool {
	return f.Present && !f.Null
}

// Number keeps the raw JSON so that both 120 and "120" are accepted and a bad
// value becomes a field error instead of a decode failure.
type Number struct {
	raw string
}

func (n *Number) UnmarshalJSON(b []byte) error {
	n.raw = string(bytes.TrimSpace(b))
	return nil
}

// Float parses the value. It fails for anything that is not a finite number.
func (n Number) Float() (float64, bool) {
	s := n.raw
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal([]byte(s), &str); err != nil {
			return 0, false
		}
		s = strings.TrimSpace(str)
	}
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Int parses the value as a whole number.
func (n Number) Int() (int64, bool) {
	f, ok := n.Float()
	if !ok || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return 0, false
	}
	return int64(f), true
}

type SignupInput struct {
	Name         string  `json:"name"`
	Email        string  `json:"email"`
	Password     string  `json:"password"`
	DiabetesType *string `json:"diabetes_type"`
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ProfileInput struct {
	Name         Field[string] `json:"name"`
	DiabetesType Field[string] `json:"diabetes_type"`
	HeightCm     Field[Number] `json:"height_cm"`
	WeightKg     Field[Number] `json:"weight_kg"`
}

// ReadingInput serves both create and patch; create requires value, date and time.
type ReadingInput struct {
	Value   Field[Number] `json:"value"`
	Date    Field[string] `json:"date"`
	Time    Field[string] `json:"time"`
	Notes   Field[string] `json:"notes"`
	Context Field[string] `json:"context"`
}

type LinkInput struct {
	MealID      Field[Number] `json:"meal_id"`
	CarbsAmount Field[Number] `json:"carbs_amount"`
}

type MedicationInput struct {
	Name   Field[string] `json:"name"`
	Dose   Field[string] `json:"dose"`
	Time   Field[string] `json:"time"`
	Status Field[string] `json:"status"`
}

type MealInput struct {
	Name        string  `json:"name"`
	MealType    *string `json:"meal_type"`
	Description *string `json:"description"`
}
