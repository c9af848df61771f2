package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v3"

	"github.com/tinovyatkin/propls/internal/config"
	"github.com/tinovyatkin/propls/internal/metadata"
	"github.com/tinovyatkin/propls/internal/properties"
	"github.com/tinovyatkin/propls/internal/reporter"
	"github.com/tinovyatkin/propls/internal/settings"
	"github.com/tinovyatkin/propls/internal/validation"
)

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Validate application.properties files against project metadata",
		ArgsUsage: "[FILE...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "metadata",
				Aliases: []string{"m"},
				Usage:   "Project metadata JSON file (default: metadata.file from the configuration)",
			},
			&cli.StringFlag{
				Name:  "settings",
				Usage: "JSON file with client settings (the quarkus.tools section is used)",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: text, json, sarif",
				Value:   "text",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := config.Load(cmd.String("config"))
			if err != nil {
				return err
			}
			metadataFile := cmd.String("metadata")
			if metadataFile == "" {
				metadataFile = cfg.Metadata.File
			}
			if metadataFile == "" {
				return cli.Exit("a metadata file is required (--metadata or metadata.file)", 2)
			}

			files := cmd.Args().Slice()
			if len(files) == 0 {
				files = []string{"src/main/resources/application.properties"}
			}

			md, err := metadata.FileProvider{Path: metadataFile}.Fetch(ctx, metadata.Request{Key: metadata.Key(metadataFile)})
			if err != nil {
				return fmt.Errorf("failed to load metadata: %w", err)
			}
			vs, err := loadValidationSettings(cmd.String("settings"))
			if err != nil {
				return err
			}

			results := make([]reporter.FileResult, 0, len(files))
			sources := make(map[string][]byte, len(files))
			hasErrors := false
			for _, file := range files {
				src, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", file, err)
				}
				sources[file] = src
				violations := validation.Validate(validation.Input{
					Model:    properties.Parse(string(src)),
					Metadata: md,
					Settings: vs,
				}, nil)
				if validation.HasErrors(violations) {
					hasErrors = true
				}
				results = append(results, reporter.FileResult{File: file, Violations: violations})
			}

			out := cmd.Root().Writer
			switch cmd.String("format") {
			case "json":
				if err := reporter.PrintJSON(out, results); err != nil {
					return fmt.Errorf("failed to encode JSON: %w", err)
				}
			case "sarif":
				if err := reporter.PrintSARIF(out, results); err != nil {
					return fmt.Errorf("failed to encode SARIF: %w", err)
				}
			case "text":
				color := config.ColorEnabled(cfg.Output.Color, isatty.IsTerminal(os.Stdout.Fd()))
				if err := reporter.PrintText(out, results, sources, reporter.Options{Color: color}); err != nil {
					return err
				}
			default:
				return cli.Exit(fmt.Sprintf("unknown format %q", cmd.String("format")), 2)
			}

			if hasErrors {
				return cli.Exit("", 1)
			}
			return nil
		},
	}
}

func loadValidationSettings(path string) (settings.Validation, error) {
	if path == "" {
		return settings.DefaultValidation(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return settings.Validation{}, fmt.Errorf("failed to read settings: %w", err)
	}
	c, err := settings.Decode(raw)
	if err != nil {
		return settings.Validation{}, fmt.Errorf("%s: %w", path, err)
	}
	return c.Validation, nil
}
