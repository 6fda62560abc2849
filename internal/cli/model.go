package cli

import (
	"fmt"
	"os"

	"diabetes-risk/internal/modelprovider"

	urfave "github.com/urfave/cli/v2"
)

var (
	outFlag = &urfave.StringFlag{
		Name:     "out",
		Usage:    "Path the artifact is written to",
		Required: true,
	}

	modelCmd = &urfave.Command{
		Name:   "model",
		Usage:  "Show how the model is acquired",
		Action: cmdModelStatus,
		Subcommands: []*urfave.Command{
			{
				Name:   "export-placeholder",
				Usage:  "Write the configured placeholder forest as a model artifact",
				Flags:  []urfave.Flag{outFlag},
				Action: cmdExportPlaceholder,
			},
		},
	}
)

type attempt struct {
	Path    string `json:"path"`
	Outcome string `json:"outcome"`
	Error   string `json:"error,omitempty"`
}

type modelStatus struct {
	Status      modelprovider.Status       `json:"status"`
	Source      string                     `json:"source"`
	Placeholder bool                       `json:"placeholder"`
	Info        modelprovider.ArtifactInfo `json:"info"`
	Candidates  []string                   `json:"candidates"`
	Attempts    []attempt                  `json:"attempts"`
}

func cmdModelStatus(c *urfave.Context) error {
	cfg := getConfig(c)

	provider := modelprovider.NewProvider(modelprovider.OptionsFromConfig(cfg.Config.Model), cfg.Logger)
	m := provider.Acquire(c.Context)

	out := modelStatus{
		Status:     provider.Status(),
		Candidates: provider.Candidates(),
		Attempts:   []attempt{},
	}
	if m != nil {
		out.Source = m.Source
		out.Placeholder = m.Placeholder
		out.Info = m.Info
	}
	for _, a := range provider.Attempts() {
		v := attempt{Path: a.Path, Outcome: a.Outcome.String()}
		if a.Err != nil {
			v.Error = a.Err.Error()
		}
		out.Attempts = append(out.Attempts, v)
	}
	return encode(c, out)
}

func cmdExportPlaceholder(c *urfave.Context) error {
	m := getConfig(c).Config.Model

	forest, err := modelprovider.NewPlaceholder(m.PlaceholderSeed, m.PlaceholderTrees, m.PlaceholderSamples)
	if err != nil {
		return fmt.Errorf("building placeholder: %w", err)
	}
	data, err := modelprovider.EncodeForest(forest, "placeholder-export", nil)
	if err != nil {
		return err
	}

	path := c.String(outFlag.Name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing artifact: %w", err)
	}
	fmt.Fprintf(c.App.ErrWriter, "wrote %s (%d trees)\n", path, len(forest.Trees))
	return nil
}
