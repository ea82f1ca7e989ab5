package sampler

import (
	"context"
	"errors"
)

// ErrSourceExhausted signals end-of-stream: the requested timestamp lies
// past the last decodable frame. It is a normal stop condition, not a
// failure.
var ErrSourceExhausted = errors.New("frame source exhausted")

// FrameSource abstracts video decoding. Implementations are forward-only:
// callers must issue Fetch with non-decreasing timestamps on a given source.
// Fetch resolves to the first frame whose presentation time is at or after
// the requested timestamp.
type FrameSource interface {
	Duration() float64
	Fetch(ctx context.Context, timestamp float64) (*Frame, error)
}
