package main

import (
	"context"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/framesift/framesift-sampling-service/internal/domain/entity"
	"github.com/framesift/framesift-sampling-service/internal/infra/sampling"
	"github.com/framesift/framesift-sampling-service/pkg/logger"
)

func main() {
	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:      "framesift",
		Usage:     "Sample frames from a local video into a directory",
		ArgsUsage: "VIDEO",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Directory where sampled frames will be written",
				Value:   "frames",
			},
			&cli.FloatFlag{
				Name:  "scale",
				Usage: "Scaling factor applied to accepted frames",
				Value: 1.0,
			},
			&cli.FloatFlag{
				Name:  "start",
				Usage: "Start time in seconds",
				Value: 0,
			},
			&cli.FloatFlag{
				Name:  "end",
				Usage: "End time in seconds (0 = end of video)",
				Value: 0,
			},
			&cli.FloatFlag{
				Name:    "frame-step",
				Aliases: []string{"s"},
				Usage:   "Seconds between sampled frames",
				Value:   1.0,
			},
			&cli.FloatFlag{
				Name:  "similarity-threshold",
				Usage: "Minimum mean squared intensity difference from the last accepted frame",
				Value: 0,
			},
			&cli.BoolFlag{
				Name:  "ignore-similarity",
				Usage: "Accept every sampled frame regardless of similarity",
			},
			&cli.StringFlag{
				Name:  "format",
				Usage: "Output image format (jpg or png)",
				Value: "jpg",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Resize/write worker count (0 = one per CPU)",
				Value: 0,
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level",
				Value: "info",
			},
		},
		Action: run,
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	videoPath := cmd.Args().First()
	if videoPath == "" {
		return cli.Exit("missing VIDEO argument", 2)
	}

	params := entity.SamplingParams{
		Scale:               cmd.Float("scale"),
		Start:               cmd.Float("start"),
		End:                 cmd.Float("end"),
		FrameStep:           cmd.Float("frame-step"),
		SimilarityThreshold: cmd.Float("similarity-threshold"),
		IgnoreSimilarity:    cmd.Bool("ignore-similarity"),
		Format:              cmd.String("format"),
	}
	if err := params.Validate(); err != nil {
		return cli.Exit(err.Error(), 2)
	}

	log, err := logger.New(cmd.String("log-level"))
	if err != nil {
		return err
	}
	defer log.Sync()

	engine := sampling.NewSampler(int(cmd.Int("workers")), log)
	result, err := engine.Sample(ctx, videoPath, cmd.String("output"), params)
	if err != nil {
		return err
	}

	fmt.Printf("attempted %d, accepted %d, rejected %d, failed %d (%d files written)\n",
		result.Attempted, result.Accepted, result.Rejected, result.Failed, len(result.FramePaths))
	return nil
}
