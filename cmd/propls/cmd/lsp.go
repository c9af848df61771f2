package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/tinovyatkin/propls/internal/config"
	"github.com/tinovyatkin/propls/internal/lspserver"
	"github.com/tinovyatkin/propls/internal/version"
)

func lspCommand() *cli.Command {
	return &cli.Command{
		Name:  "lsp",
		Usage: "Run the language server",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "stdio",
				Usage: "Communicate over stdin/stdout (the only supported transport)",
				Value: true,
			},
			&cli.StringFlag{
				Name:  "metadata",
				Usage: "Metadata JSON file used when the client does not provide project metadata",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := config.Load(cmd.String("config"))
			if err != nil {
				return err
			}
			if f := cmd.String("metadata"); f != "" {
				cfg.Metadata.File = f
			}

			// stdout carries the protocol.
			logger := cfg.Logger(os.Stderr)
			logger.WithField("version", version.Version()).
				WithField("config", cfg.ConfigFile).
				Info("starting language server")

			srv, err := lspserver.New(lspserver.Options{
				MetadataFile:      cfg.Metadata.File,
				Retries:           cfg.Metadata.Retries,
				RetryInterval:     cfg.Metadata.RetryInitialInterval,
				DocCacheBytes:     cfg.Docs.CacheBytes,
				ValidationWorkers: cfg.Validation.Workers,
				Logger:            logger,
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.RunStdio(ctx)
		},
	}
}
