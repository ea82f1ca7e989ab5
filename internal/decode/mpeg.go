package decode

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"os"

	"github.com/gen2brain/mpeg"

	"github.com/framesift/framesift-sampling-service/internal/sampler"
)

// MPEGSource decodes MPEG-1 program streams in pure Go, with no ffmpeg
// binary on the host. Like FFmpegSource it is forward-only.
type MPEGSource struct {
	file *os.File
	mpg  *mpeg.MPEG
	last *sampler.Frame
}

func NewMPEGSource(videoPath string) (*MPEGSource, error) {
	f, err := os.Open(videoPath)
	if err != nil {
		return nil, fmt.Errorf("open video: %w", err)
	}
	mpg, err := mpeg.New(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open mpeg stream: %w", err)
	}
	return &MPEGSource{file: f, mpg: mpg}, nil
}

func (s *MPEGSource) Duration() float64 {
	return s.mpg.Duration().Seconds()
}

func (s *MPEGSource) Fetch(ctx context.Context, timestamp float64) (*sampler.Frame, error) {
	if s.last != nil && s.last.Timestamp+1e-6 >= timestamp {
		return s.last, nil
	}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		frame := s.mpg.DecodeVideo()
		if frame == nil {
			if s.mpg.HasEnded() {
				return nil, sampler.ErrSourceExhausted
			}
			continue
		}
		if frame.Time+1e-6 < timestamp {
			continue
		}
		// The decoder reuses its frame buffer, so take a copy.
		src := frame.YCbCr()
		img := image.NewRGBA(image.Rect(0, 0, src.Bounds().Dx(), src.Bounds().Dy()))
		draw.Draw(img, img.Bounds(), src, src.Bounds().Min, draw.Src)
		out := &sampler.Frame{Image: img, Timestamp: frame.Time}
		s.last = out
		return out, nil
	}
}

func (s *MPEGSource) Close() error {
	return s.file.Close()
}
