// internal/models/profile.go
package models

import (
	"fmt"
	"math"

	apperrors "diabetes-risk/internal/common/errors"
)

type Gender string

const (
	GenderFemale Gender = "female"
	GenderMale   Gender = "male"
)

func (g Gender) Valid() bool {
	return g == GenderFemale || g == GenderMale
}

type Education string

const (
	EducationHigh   Education = "high"
	EducationMedium Education = "medium"
	EducationLow    Education = "low"
)

func (e Education) Valid() bool {
	switch e {
	case EducationHigh, EducationMedium, EducationLow:
		return true
	}
	return false
}

// Profile bounds.
const (
	MinAge          = 18
	MaxAge          = 100
	MinPovertyIndex = 0.0
	MaxPovertyIndex = 5.0
)

// UserProfile is one submission of the eleven self-reported indicators.
// A new submission is a new value; profiles are never edited in place.
type UserProfile struct {
	Age                    int       `json:"age"`
	Gender                 Gender    `json:"gender"`
	Education              Education `json:"education"`
	PovertyIndex           float64   `json:"poverty_index"`
	HasHealthInsurance     bool      `json:"has_health_insurance"`
	RegularActivity        bool      `json:"regular_activity"`
	SleepSufficient        bool      `json:"sleep_sufficient"`
	HeavyAlcohol           bool      `json:"heavy_alcohol"`
	Smoker                 bool      `json:"smoker"`
	HypertensionHistory    bool      `json:"hypertension_history"`
	HighCholesterolHistory bool      `json:"high_cholesterol_history"`
}

// DefaultProfile returns the values the form is prefilled with.
func DefaultProfile() UserProfile {
	return UserProfile{
		Age:                    45,
		Gender:                 GenderMale,
		Education:              EducationHigh,
		PovertyIndex:           2.5,
		HasHealthInsurance:     true,
		RegularActivity:        false,
		SleepSufficient:        true,
		HeavyAlcohol:           false,
		Smoker:                 false,
		HypertensionHistory:    false,
		HighCholesterolHistory: false,
	}
}

// Validate reports every out-of-domain field at once.
func (p UserProfile) Validate() error {
	var fields []apperrors.FieldError

	if p.Age < MinAge || p.Age > MaxAge {
		fields = append(fields, apperrors.FieldError{
			Field:   "age",
			Message: fmt.Sprintf("must be between %d and %d", MinAge, MaxAge),
		})
	}
	if !p.Gender.Valid() {
		fields = append(fields, apperrors.FieldError{
			Field:   "gender",
			Message: "must be one of female, male",
		})
	}
	if !p.Education.Valid() {
		fields = append(fields, apperrors.FieldError{
			Field:   "education",
			Message: "must be one of high, medium, low",
		})
	}
	if math.IsNaN(p.PovertyIndex) || math.IsInf(p.PovertyIndex, 0) ||
		p.PovertyIndex < MinPovertyIndex || p.PovertyIndex > MaxPovertyIndex {
		fields = append(fields, apperrors.FieldError{
			Field:   "poverty_index",
			Message: fmt.Sprintf("must be between %.1f and %.1f", MinPovertyIndex, MaxPovertyIndex),
		})
	}

	if len(fields) > 0 {
		return apperrors.NewValidationFailedError(fields)
	}
	return nil
}
