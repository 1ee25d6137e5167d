// Package main provides the command-line screenshot extractor.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	cli "github.com/urfave/cli/v3"

	"github.com/maauso/screenshot-extractor/internal/bootstrap"
	"github.com/maauso/screenshot-extractor/internal/config"
	"github.com/maauso/screenshot-extractor/internal/job"
	"github.com/maauso/screenshot-extractor/internal/sampling"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	build := func(ctx context.Context) (job.Runner, error) {
		deps, err := bootstrap.NewDependencies(ctx, cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("initialize dependencies: %w", err)
		}
		return deps.Extractor, nil
	}

	return newApp(cfg, build, os.Stdout, logger).Run(ctx, os.Args)
}

// runnerFactory defers dependency wiring until a subcommand actually runs.
type runnerFactory func(ctx context.Context) (job.Runner, error)

func newApp(cfg *config.Config, build runnerFactory, out io.Writer, logger *slog.Logger) *cli.Command {
	// Flags keep parsed state, so every subcommand gets its own instances.
	commonFlags := func() []cli.Flag {
		return []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Directory where screenshots are written",
				Value:   cfg.OutputDir,
			},
			&cli.BoolFlag{
				Name:  "push",
				Usage: "Upload every screenshot to the configured S3 bucket",
			},
			&cli.StringFlag{
				Name:  "s3-prefix",
				Usage: "Object key prefix for uploaded screenshots",
				Value: "screenshots",
			},
		}
	}

	execute := func(ctx context.Context, cmd *cli.Command, req job.Request) error {
		if req.Source = cmd.Args().First(); req.Source == "" {
			return cli.Exit("a video path or URL is required", 2)
		}
		req.OutputDir = cmd.String("output")
		req.Publish = cmd.Bool("push")
		req.KeyPrefix = cmd.String("s3-prefix")
		if req.Publish && !cfg.S3Enabled() {
			return cli.Exit("--push requires S3_BUCKET and S3_REGION", 2)
		}

		runner, err := build(ctx)
		if err != nil {
			return err
		}

		result, err := runner.Run(ctx, req, job.NewLogObserver(logger))
		if err != nil {
			return err
		}

		printSummary(out, req, result)
		if !result.Success() {
			return cli.Exit("no screenshots captured", 1)
		}
		return nil
	}

	return &cli.Command{
		Name:  "screenshot-extractor",
		Usage: "Capture PNG screenshots from a video",
		Commands: []*cli.Command{
			{
				Name:      "scenes",
				Usage:     "Capture on scene changes and at a fixed interval",
				ArgsUsage: "SOURCE",
				Flags: append(commonFlags(),
					&cli.IntFlag{
						Name:    "interval",
						Aliases: []string{"i"},
						Usage:   "Seconds between interval captures",
						Value:   cfg.IntervalSeconds,
					},
					&cli.Float64Flag{
						Name:    "threshold",
						Aliases: []string{"t"},
						Usage:   "Mean pixel difference (0-255) that counts as a scene change",
						Value:   cfg.SceneThreshold,
					},
				),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return execute(ctx, cmd, job.Request{
						Mode:            job.ModeScenes,
						IntervalSeconds: cmd.Int("interval"),
						SceneThreshold:  cmd.Float64("threshold"),
					})
				},
			},
			{
				Name:      "at",
				Usage:     "Capture one screenshot per MM:SS position",
				ArgsUsage: "SOURCE",
				Flags: append(commonFlags(),
					&cli.StringSliceFlag{
						Name:     "at",
						Aliases:  []string{"a"},
						Usage:    "Position as MM:SS; repeat for several",
						Required: true,
					},
				),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					timestamps, err := parseTimestamps(cmd.StringSlice("at"))
					if err != nil {
						return cli.Exit(err.Error(), 2)
					}
					return execute(ctx, cmd, job.Request{
						Mode:       job.ModeTimestamps,
						Timestamps: timestamps,
					})
				},
			},
		},
	}
}

func parseTimestamps(raw []string) ([]sampling.Timestamp, error) {
	timestamps := make([]sampling.Timestamp, 0, len(raw))
	for _, s := range raw {
		ts, err := sampling.ParseTimestamp(s)
		if err != nil {
			return nil, err
		}
		timestamps = append(timestamps, ts)
	}
	return timestamps, nil
}

func printSummary(w io.Writer, req job.Request, result job.Result) {
	switch req.Mode {
	case job.ModeTimestamps:
		fmt.Fprintf(w, "captured %d/%d screenshots in %s\n", result.Captured, result.Requested, req.OutputDir)
	default:
		fmt.Fprintf(w, "captured %d screenshots from %d frames in %s (%d on disk)\n",
			result.Captured, result.Requested, req.OutputDir, result.OnDisk)
	}
	for _, rec := range result.Records {
		if rec.URL != "" {
			fmt.Fprintf(w, "  %s -> %s\n", rec.Path, rec.URL)
			continue
		}
		fmt.Fprintf(w, "  %s\n", rec.Path)
	}
}
