// Package cli implements riskctl, a command line front end to the scorer.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"diabetes-risk/internal/common/config"
	"diabetes-risk/internal/common/logger"

	urfave "github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

const (
	appConfigKey = "app-config"

	formatJSON = "json"
	formatYAML = "yaml"
)

var (
	version = "v0.0.1-default"
	commit  = ""

	configFlag = &urfave.StringFlag{
		Name:  "config",
		Usage: "Path to a YAML config file (optional, default: built-in settings)",
	}

	debugFlag = &urfave.BoolFlag{
		Name:  "debug",
		Usage: "Prints verbose logs to stderr (optional, default: false)",
	}

	formatFlag = &urfave.StringFlag{
		Name:  "format",
		Usage: "Output format [json, yaml]",
		Value: formatJSON,
	}

	modelDirFlag = &urfave.StringSliceFlag{
		Name:  "model-dir",
		Usage: "Directory searched for model artifacts before the configured ones (repeatable)",
	}
)

// Execute creates and runs the CLI application.
func Execute() {
	app := NewApp(os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type appConfig struct {
	Config *config.Config
	Logger logger.Logger
	Format string
}

func getConfig(c *urfave.Context) *appConfig {
	return c.App.Metadata[appConfigKey].(*appConfig)
}

// NewApp builds the riskctl application writing results to out and logs to
// errOut.
func NewApp(out, errOut io.Writer) *urfave.App {
	return &urfave.App{
		Name:            "riskctl",
		Version:         fmt.Sprintf("%s (%s)", version, commit),
		Compiled:        time.Now(),
		HideHelpCommand: true,
		Usage:           "Score diabetes risk profiles and inspect the model from the command line",
		Writer:          out,
		ErrWriter:       errOut,
		Flags: []urfave.Flag{
			configFlag,
			debugFlag,
			formatFlag,
			modelDirFlag,
		},
		Commands: []*urfave.Command{
			scoreCmd,
			modelCmd,
			defaultsCmd,
		},
		Before: func(c *urfave.Context) error {
			cfg := config.Default()
			if path := c.String(configFlag.Name); path != "" {
				loaded, err := config.LoadFromFile(path)
				if err != nil {
					return fmt.Errorf("loading config: %w", err)
				}
				cfg = loaded
			}
			if dirs := c.StringSlice(modelDirFlag.Name); len(dirs) > 0 {
				cfg.Model.SearchDirs = append(dirs, cfg.Model.SearchDirs...)
			}

			format := c.String(formatFlag.Name)
			switch format {
			case formatJSON:
			case formatYAML, "yml":
				format = formatYAML
			default:
				return fmt.Errorf("unsupported output format %q", format)
			}

			level := "warn"
			if c.Bool(debugFlag.Name) {
				level = "debug"
			}

			c.App.Metadata[appConfigKey] = &appConfig{
				Config: cfg,
				Logger: logger.NewZapAdapter(logger.New(level, "console", "stderr")),
				Format: format,
			}
			return nil
		},
	}
}

// encode writes v in the selected format. YAML output goes through the JSON
// form so field names and value encodings match the HTTP API.
func encode(c *urfave.Context, v any) error {
	if getConfig(c).Format != formatYAML {
		e := json.NewEncoder(c.App.Writer)
		e.SetIndent("", "  ")
		return e.Encode(v)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return err
	}
	blockStyle(&doc)

	e := yaml.NewEncoder(c.App.Writer)
	e.SetIndent(2)
	defer e.Close()
	return e.Encode(&doc)
}

// blockStyle drops the flow and quoting styles JSON input parses with; the
// encoder still quotes strings that would otherwise change type.
func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, child := range n.Content {
		blockStyle(child)
	}
}
