package port

import (
	"context"

	"github.com/framesift/framesift-sampling-service/internal/domain/entity"
)

type SampleResult struct {
	FramePaths    []string
	Attempted     int
	Accepted      int
	Rejected      int
	Failed        int
	VideoDuration float64
}

// VideoSampler runs the frame-sampling engine over a local video file and
// writes the accepted frames into outputDir.
type VideoSampler interface {
	Sample(ctx context.Context, videoPath string, outputDir string, params entity.SamplingParams) (*SampleResult, error)
}
