package decode

import (
	"context"
	"fmt"
	"image"
	"io"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/framesift/framesift-sampling-service/internal/sampler"
)

// FFmpegSource decodes a video by piping raw RGBA frames out of an ffmpeg
// process. It is forward-only: fetching a timestamp discards every frame
// before it, and the stream can not be rewound.
type FFmpegSource struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser

	width    int
	height   int
	fps      float64
	duration float64

	next int // index of the next frame on the pipe
	buf  []byte
	last *sampler.Frame

	logger *zap.Logger
}

// NewFFmpegSource probes the video with ffprobe and starts the decode
// pipe. Callers must Close the source to reap the process.
func NewFFmpegSource(ctx context.Context, videoPath string, logger *zap.Logger) (*FFmpegSource, error) {
	duration, err := probeDuration(ctx, videoPath)
	if err != nil {
		return nil, err
	}
	width, height, fps, err := probeStream(ctx, videoPath)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", videoPath,
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-",
	)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	logger.Info("video opened",
		zap.String("path", videoPath),
		zap.Float64("duration_secs", duration),
		zap.Float64("fps", fps),
		zap.Int("width", width),
		zap.Int("height", height),
	)

	return &FFmpegSource{
		cmd:      cmd,
		stdout:   stdout,
		width:    width,
		height:   height,
		fps:      fps,
		duration: duration,
		buf:      make([]byte, width*height*4),
		logger:   logger,
	}, nil
}

func (s *FFmpegSource) Duration() float64 { return s.duration }

// Fetch returns the first frame at or after the requested timestamp,
// decoding forward and discarding frames as needed. When the step is finer
// than the frame interval, consecutive timestamps resolve to the same frame
// and the cached copy is returned again.
func (s *FFmpegSource) Fetch(ctx context.Context, timestamp float64) (*sampler.Frame, error) {
	target := int(math.Ceil(timestamp*s.fps - 1e-6))
	if target < 0 {
		target = 0
	}
	if s.last != nil && target < s.next {
		return s.last, nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, err := io.ReadFull(s.stdout, s.buf); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil, sampler.ErrSourceExhausted
			}
			return nil, fmt.Errorf("read frame %d: %w", s.next, err)
		}
		idx := s.next
		s.next++
		if idx < target {
			continue
		}

		img := image.NewRGBA(image.Rect(0, 0, s.width, s.height))
		copy(img.Pix, s.buf)
		frame := &sampler.Frame{Image: img, Timestamp: float64(idx) / s.fps}
		s.last = frame
		return frame, nil
	}
}

// Close tears the decode process down. Safe to call after end-of-stream.
func (s *FFmpegSource) Close() error {
	s.stdout.Close()
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	_ = s.cmd.Wait()
	return nil
}

func probeDuration(ctx context.Context, videoPath string) (float64, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		videoPath,
	)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration: %w", err)
	}
	duration, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration: %w", err)
	}
	return duration, nil
}

func probeStream(ctx context.Context, videoPath string) (width, height int, fps float64, err error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,r_frame_rate",
		"-of", "default=noprint_wrappers=1:nokey=1",
		videoPath,
	)
	output, err := cmd.Output()
	if err != nil {
		return 0, 0, 0, fmt.Errorf("ffprobe stream: %w", err)
	}
	lines := strings.Fields(strings.TrimSpace(string(output)))
	if len(lines) < 3 {
		return 0, 0, 0, fmt.Errorf("unexpected ffprobe stream output: %q", string(output))
	}
	width, err = strconv.Atoi(lines[0])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("parse width: %w", err)
	}
	height, err = strconv.Atoi(lines[1])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("parse height: %w", err)
	}
	fps, err = parseFrameRate(lines[2])
	if err != nil {
		return 0, 0, 0, err
	}
	return width, height, fps, nil
}

// parseFrameRate parses ffprobe's rational rate form, e.g. "30000/1001".
func parseFrameRate(s string) (float64, error) {
	num, den, found := strings.Cut(s, "/")
	if !found {
		rate, err := strconv.ParseFloat(s, 64)
		if err != nil || rate <= 0 {
			return 0, fmt.Errorf("invalid frame rate %q", s)
		}
		return rate, nil
	}
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid frame rate %q", s)
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0, fmt.Errorf("invalid frame rate %q", s)
	}
	rate := n / d
	if rate <= 0 {
		return 0, fmt.Errorf("invalid frame rate %q", s)
	}
	return rate, nil
}
