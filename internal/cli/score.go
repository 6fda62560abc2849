package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"diabetes-risk/internal/common/validation"
	"diabetes-risk/internal/modelprovider"
	"diabetes-risk/internal/models"
	"diabetes-risk/internal/risk"

	urfave "github.com/urfave/cli/v2"
)

var (
	defaults = models.DefaultProfile()

	inputFlag = &urfave.StringFlag{
		Name:  "input",
		Usage: "JSON profile file; field flags are ignored when set",
	}
	localeFlag = &urfave.StringFlag{
		Name:  "locale",
		Usage: "Recommendation language [en, zh] (optional, default: configured locale)",
	}
	ageFlag = &urfave.IntFlag{
		Name:  "age",
		Usage: fmt.Sprintf("Age in years (%d-%d)", models.MinAge, models.MaxAge),
		Value: defaults.Age,
	}
	genderFlag = &urfave.StringFlag{
		Name:  "gender",
		Usage: "Gender [female, male]",
		Value: string(defaults.Gender),
	}
	educationFlag = &urfave.StringFlag{
		Name:  "education",
		Usage: "Education level [high, medium, low]",
		Value: string(defaults.Education),
	}
	povertyFlag = &urfave.Float64Flag{
		Name:  "poverty-index",
		Usage: "Household income to poverty ratio (0-5)",
		Value: defaults.PovertyIndex,
	}
	insuranceFlag = &urfave.BoolFlag{
		Name:  "insurance",
		Usage: "Has health insurance",
		Value: defaults.HasHealthInsurance,
	}
	activityFlag = &urfave.BoolFlag{
		Name:  "regular-activity",
		Usage: "Exercises regularly",
		Value: defaults.RegularActivity,
	}
	sleepFlag = &urfave.BoolFlag{
		Name:  "sufficient-sleep",
		Usage: "Sleeps enough",
		Value: defaults.SleepSufficient,
	}
	alcoholFlag = &urfave.BoolFlag{
		Name:  "heavy-alcohol",
		Usage: "Heavy drinker",
		Value: defaults.HeavyAlcohol,
	}
	smokerFlag = &urfave.BoolFlag{
		Name:  "smoker",
		Usage: "Smokes",
		Value: defaults.Smoker,
	}
	hypertensionFlag = &urfave.BoolFlag{
		Name:  "hypertension",
		Usage: "History of hypertension",
		Value: defaults.HypertensionHistory,
	}
	cholesterolFlag = &urfave.BoolFlag{
		Name:  "high-cholesterol",
		Usage: "History of high cholesterol",
		Value: defaults.HighCholesterolHistory,
	}

	scoreCmd = &urfave.Command{
		Name:    "score",
		Aliases: []string{"s"},
		Usage:   "Score one profile and print the assessment",
		Flags: []urfave.Flag{
			inputFlag,
			localeFlag,
			ageFlag,
			genderFlag,
			educationFlag,
			povertyFlag,
			insuranceFlag,
			activityFlag,
			sleepFlag,
			alcoholFlag,
			smokerFlag,
			hypertensionFlag,
			cholesterolFlag,
		},
		Action: cmdScore,
	}

	defaultsCmd = &urfave.Command{
		Name:  "defaults",
		Usage: "Print the default profile the form is prefilled with",
		Action: func(c *urfave.Context) error {
			return encode(c, models.DefaultProfile())
		},
	}
)

func cmdScore(c *urfave.Context) error {
	cfg := getConfig(c)

	profile, err := profileFromContext(c)
	if err != nil {
		return err
	}

	recs, err := risk.LoadRecommendations(cfg.Config.Scoring.RecommendationsFile)
	if err != nil {
		return fmt.Errorf("loading recommendations: %w", err)
	}
	jitter, err := risk.NewJitter(cfg.Config.Scoring.Jitter, cfg.Config.Scoring.JitterRange)
	if err != nil {
		return err
	}
	locale := cfg.Config.Scoring.Locale
	if l := c.String(localeFlag.Name); l != "" {
		if !recs.HasLocale(l) {
			return fmt.Errorf("unsupported locale %q", l)
		}
		locale = l
	}

	provider := modelprovider.NewProvider(modelprovider.OptionsFromConfig(cfg.Config.Model), cfg.Logger)
	scorer := risk.NewScorer(recs, cfg.Logger, risk.WithJitter(jitter), risk.WithLocale(locale))

	assessment, err := scorer.Score(c.Context, profile, provider.Acquire(c.Context))
	if err != nil {
		return err
	}
	return encode(c, assessment)
}

// profileFromContext reads the profile from --input or the field flags.
func profileFromContext(c *urfave.Context) (models.UserProfile, error) {
	if path := c.String(inputFlag.Name); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return models.UserProfile{}, fmt.Errorf("reading profile: %w", err)
		}
		if err := validation.ProfileSchema.ValidateJSON(data).Err(); err != nil {
			return models.UserProfile{}, err
		}
		var p models.UserProfile
		if err := json.Unmarshal(data, &p); err != nil {
			return models.UserProfile{}, fmt.Errorf("decoding profile: %w", err)
		}
		return p, nil
	}

	p := models.UserProfile{
		Age:                    c.Int(ageFlag.Name),
		Gender:                 models.Gender(c.String(genderFlag.Name)),
		Education:              models.Education(c.String(educationFlag.Name)),
		PovertyIndex:           c.Float64(povertyFlag.Name),
		HasHealthInsurance:     c.Bool(insuranceFlag.Name),
		RegularActivity:        c.Bool(activityFlag.Name),
		SleepSufficient:        c.Bool(sleepFlag.Name),
		HeavyAlcohol:           c.Bool(alcoholFlag.Name),
		Smoker:                 c.Bool(smokerFlag.Name),
		HypertensionHistory:    c.Bool(hypertensionFlag.Name),
		HighCholesterolHistory: c.Bool(cholesterolFlag.Name),
	}
	return p, p.Validate()
}
