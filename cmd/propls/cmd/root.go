package cmd

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/tinovyatkin/propls/internal/version"
)

// NewApp creates the CLI application
func NewApp() *cli.Command {
	return &cli.Command{
		Name:    "propls",
		Usage:   "A language server for Quarkus application.properties files",
		Version: version.Version(),
		Description: `propls provides completion, hover, validation, formatting and navigation
for Quarkus application.properties files over the Language Server Protocol.

Examples:
  propls lsp --stdio
  propls validate --metadata quarkus-metadata.json src/main/resources/application.properties
  propls version --json`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a TOML configuration file (default: .propls.toml if present)",
			},
		},
		Commands: []*cli.Command{
			lspCommand(),
			validateCommand(),
			versionCommand(),
		},
	}
}

// Execute runs the CLI application
func Execute() error {
	return NewApp().Run(context.Background(), os.Args)
}
