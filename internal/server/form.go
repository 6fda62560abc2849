package server

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	apperrors "diabetes-risk/internal/common/errors"
	"diabetes-risk/internal/models"
)

type option struct {
	Value string
	Label string
}

// binaryField is a yes/no indicator rendered as a two-way radio group. The
// first option maps to true.
type binaryField struct {
	Name    string
	Label   string
	Section string
	True    option
	False   option
	get     func(*models.UserProfile) *bool
}

var (
	genderOptions = []option{
		{string(models.GenderFemale), "Female"},
		{string(models.GenderMale), "Male"},
	}

	educationOptions = []option{
		{string(models.EducationHigh), "Higher education"},
		{string(models.EducationMedium), "Secondary education"},
		{string(models.EducationLow), "Low education"},
	}

	binaryFields = []binaryField{
		{
			Name: "has_health_insurance", Label: "Health insurance", Section: "socioeconomic",
			True: option{"yes", "Yes"}, False: option{"no", "No"},
			get: func(p *models.UserProfile) *bool { return &p.HasHealthInsurance },
		},
		{
			Name: "regular_activity", Label: "Physical activity", Section: "lifestyle",
			True: option{"regular", "Regular activity"}, False: option{"irregular", "Irregular activity"},
			get: func(p *models.UserProfile) *bool { return &p.RegularActivity },
		},
		{
			Name: "sleep_sufficient", Label: "Sleep", Section: "lifestyle",
			True: option{"sufficient", "Sufficient sleep"}, False: option{"insufficient", "Insufficient sleep"},
			get: func(p *models.UserProfile) *bool { return &p.SleepSufficient },
		},
		{
			Name: "heavy_alcohol", Label: "Drinking", Section: "lifestyle",
			True: option{"heavy", "Heavy drinker"}, False: option{"non-heavy", "Not a heavy drinker"},
			get: func(p *models.UserProfile) *bool { return &p.HeavyAlcohol },
		},
		{
			Name: "smoker", Label: "Smoking", Section: "lifestyle",
			True: option{"yes", "Smoker"}, False: option{"no", "Non-smoker"},
			get: func(p *models.UserProfile) *bool { return &p.Smoker },
		},
		{
			Name: "hypertension_history", Label: "History of hypertension", Section: "health",
			True: option{"yes", "Yes"}, False: option{"no", "No"},
			get: func(p *models.UserProfile) *bool { return &p.HypertensionHistory },
		},
		{
			Name: "high_cholesterol_history", Label: "History of high cholesterol", Section: "health",
			True: option{"yes", "Yes"}, False: option{"no", "No"},
			get: func(p *models.UserProfile) *bool { return &p.HighCholesterolHistory },
		},
	}
)

// parseProfileForm decodes the assessment form. Unparseable and missing
// fields are reported together; range checks are left to Validate.
func parseProfileForm(values url.Values) (models.UserProfile, error) {
	var (
		p      models.UserProfile
		fields []apperrors.FieldError
	)

	if age, err := strconv.Atoi(strings.TrimSpace(values.Get("age"))); err != nil {
		fields = append(fields, apperrors.FieldError{Field: "age", Message: "must be a whole number"})
	} else {
		p.Age = age
	}

	p.Gender = models.Gender(values.Get("gender"))
	p.Education = models.Education(values.Get("education"))

	if pi, err := strconv.ParseFloat(strings.TrimSpace(values.Get("poverty_index")), 64); err != nil {
		fields = append(fields, apperrors.FieldError{Field: "poverty_index", Message: "must be a number"})
	} else {
		p.PovertyIndex = pi
	}

	for _, f := range binaryFields {
		switch values.Get(f.Name) {
		case f.True.Value:
			*f.get(&p) = true
		case f.False.Value:
			*f.get(&p) = false
		default:
			fields = append(fields, apperrors.FieldError{
				Field:   f.Name,
				Message: fmt.Sprintf("must be one of %s, %s", f.True.Value, f.False.Value),
			})
		}
	}

	if len(fields) > 0 {
		return p, apperrors.NewValidationFailedError(fields)
	}
	return p, p.Validate()
}

type radioOption struct {
	Value   string
	Label   string
	Checked bool
}

type radioGroup struct {
	Name    string
	Label   string
	Options []radioOption
}

// formView is the form prefilled from a profile.
type formView struct {
	Age          int
	MinAge       int
	MaxAge       int
	PovertyIndex float64
	Gender       radioGroup
	Education    []radioOption
	Sections     map[string][]radioGroup
	Errors       map[string]string
}

func newFormView(p models.UserProfile, err error) formView {
	v := formView{
		Age:          p.Age,
		MinAge:       models.MinAge,
		MaxAge:       models.MaxAge,
		PovertyIndex: p.PovertyIndex,
		Gender:       radioGroup{Name: "gender", Label: "Gender", Options: markChecked(genderOptions, string(p.Gender))},
		Education:    markChecked(educationOptions, string(p.Education)),
		Sections:     make(map[string][]radioGroup),
		Errors:       make(map[string]string),
	}

	for _, f := range binaryFields {
		selected := f.False.Value
		if *f.get(&p) {
			selected = f.True.Value
		}
		v.Sections[f.Section] = append(v.Sections[f.Section], radioGroup{
			Name:    f.Name,
			Label:   f.Label,
			Options: markChecked([]option{f.True, f.False}, selected),
		})
	}

	if std := apperrors.AsStandard(err); std != nil {
		for _, fe := range std.Fields {
			v.Errors[fe.Field] = fe.Message
		}
	}
	return v
}

func markChecked(opts []option, selected string) []radioOption {
	out := make([]radioOption, len(opts))
	for i, o := range opts {
		out[i] = radioOption{Value: o.Value, Label: o.Label, Checked: o.Value == selected}
	}
	return out
}
