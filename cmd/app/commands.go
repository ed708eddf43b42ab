package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/starford/synapse/internal"
	"github.com/starford/synapse/internal/enforcer"
)

// errViolations makes the process exit non-zero without an error log.
var errViolations = errors.New("rule violations found")

const (
	formatTable = "table"
	formatJSON  = "json"
)

// openEngine loads config and builds an engine that logs to stderr.
func openEngine(cmd *cli.Command) (*internal.Engine, *internal.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.App.LogLevel}))
	eng, err := internal.NewEngine(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return eng, cfg, nil
}

func checkCommand() *cli.Command {
	return &cli.Command{
		Name:      "check",
		Usage:     "Check files against their rules (all project files when none are given)",
		ArgsUsage: "[files...]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "fix", Usage: "Apply auto-fixes at or above autofix.min_confidence first"},
			&cli.BoolFlag{Name: "dry-run", Usage: "Report only: write nothing and exit 0"},
			&cli.StringFlag{Name: "format", Value: formatTable, Usage: "Output format: table or json"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			eng, cfg, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer eng.Close()

			files := cmd.Args().Slice()
			if len(files) == 0 {
				if files, err = eng.Store.List(".", filepath.Base(cfg.SQLite.Path)); err != nil {
					return err
				}
			}
			dryRun := cmd.Bool("dry-run")

			var fixes []enforcer.FixResult
			if cmd.Bool("fix") {
				if fixes, err = eng.Service.FixFiles(ctx, files, cfg.AutoFix.MinConfidence, dryRun); err != nil {
					return err
				}
			}
			res, err := eng.Service.CheckFiles(ctx, files, dryRun)
			if err != nil {
				return err
			}
			if err := renderCheck(os.Stdout, cmd.String("format"), res, fixes); err != nil {
				return err
			}
			if !res.Success {
				return errViolations
			}
			return nil
		},
	}
}

func contextCommand() *cli.Command {
	return &cli.Command{
		Name:      "context",
		Usage:     "Render the rules that apply to a path",
		ArgsUsage: "<path>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "format", Value: enforcer.FormatMarkdown, Usage: "markdown, json or plain"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path := cmd.Args().First()
			if path == "" {
				return errors.New("context: path argument is required")
			}
			eng, _, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer eng.Close()

			res, err := eng.Service.Context(path, cmd.String("format"))
			if err != nil {
				return err
			}
			_, err = os.Stdout.WriteString(res.Context + "\n")
			return err
		},
	}
}

func rulesCommand() *cli.Command {
	return &cli.Command{
		Name:      "rules",
		Usage:     "List applicable rules, inheritance chain and overridden ids for a path",
		ArgsUsage: "<path>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "format", Value: formatTable, Usage: "Output format: table or json"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path := cmd.Args().First()
			if path == "" {
				return errors.New("rules: path argument is required")
			}
			eng, _, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer eng.Close()

			res, err := eng.Service.RulesForPath(path)
			if err != nil {
				return err
			}
			return renderRules(os.Stdout, cmd.String("format"), res)
		},
	}
}

func statsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Summarize the rule graph",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "format", Value: formatTable, Usage: "Output format: table or json"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			eng, _, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer eng.Close()
			return renderStats(os.Stdout, cmd.String("format"), eng.Service.GraphStats())
		},
	}
}
