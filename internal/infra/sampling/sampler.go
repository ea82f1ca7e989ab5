package sampling

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/framesift/framesift-sampling-service/internal/decode"
	"github.com/framesift/framesift-sampling-service/internal/domain/entity"
	"github.com/framesift/framesift-sampling-service/internal/domain/port"
	"github.com/framesift/framesift-sampling-service/internal/sampler"
)

// Sampler adapts the sampling engine to the VideoSampler port: it opens a
// decode source for the file, builds the time grid from the validated
// params, and runs the dispatcher into outputDir.
type Sampler struct {
	workers int
	logger  *zap.Logger
}

func NewSampler(workers int, logger *zap.Logger) *Sampler {
	return &Sampler{workers: workers, logger: logger}
}

// closableSource is what both decode backends implement beyond the port.
type closableSource interface {
	sampler.FrameSource
	Close() error
}

func (s *Sampler) Sample(ctx context.Context, videoPath, outputDir string, params entity.SamplingParams) (*port.SampleResult, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	src, err := s.openSource(ctx, videoPath)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	defer src.Close()

	duration := src.Duration()
	grid, err := sampler.NewGrid(params.Start, params.End, params.FrameStep, duration)
	if err != nil {
		return nil, err
	}
	if params.Start > duration {
		return nil, &sampler.InvalidRangeError{
			Reason: fmt.Sprintf("start time %.3fs is beyond video duration %.3fs", params.Start, duration),
		}
	}

	sink, err := sampler.NewDirSink(outputDir, params.Format)
	if err != nil {
		return nil, err
	}

	gate := sampler.NewGate(params.SimilarityThreshold, params.IgnoreSimilarity)
	dispatcher := sampler.NewDispatcher(src, gate, sink, sampler.DispatcherConfig{
		Scale:   params.Scale,
		Workers: s.workers,
	}, s.logger)

	summary, err := dispatcher.Run(ctx, grid)
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(summary.Records))
	for _, rec := range summary.Records {
		paths = append(paths, rec.Path)
	}

	return &port.SampleResult{
		FramePaths:    paths,
		Attempted:     summary.Attempted,
		Accepted:      summary.Accepted,
		Rejected:      summary.Rejected,
		Failed:        summary.Failed,
		VideoDuration: duration,
	}, nil
}

func (s *Sampler) openSource(ctx context.Context, videoPath string) (closableSource, error) {
	switch strings.ToLower(filepath.Ext(videoPath)) {
	case ".mpg", ".mpeg":
		return decode.NewMPEGSource(videoPath)
	default:
		return decode.NewFFmpegSource(ctx, videoPath, s.logger)
	}
}
