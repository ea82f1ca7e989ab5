package sampler

import (
	"fmt"
	"math"
)

// InvalidRangeError reports a sampling range that can never produce frames.
type InvalidRangeError struct {
	Reason string
}

func (e *InvalidRangeError) Error() string {
	return "invalid sampling range: " + e.Reason
}

// Grid is the arithmetic sequence of target timestamps for one run.
// It holds no iteration state, so it can be walked any number of times.
type Grid struct {
	Start float64
	End   float64
	Step  float64
}

// NewGrid validates the requested range against the source duration and
// returns the grid of timestamps start, start+step, ... strictly below
// min(end, duration). A zero or negative end means "to the end of the video".
// A start at or past the (clamped) end yields an empty grid, not an error.
func NewGrid(start, end, step, duration float64) (Grid, error) {
	if start < 0 {
		return Grid{}, &InvalidRangeError{Reason: fmt.Sprintf("start time %.3fs is negative", start)}
	}
	if step <= 0 {
		return Grid{}, &InvalidRangeError{Reason: fmt.Sprintf("frame step %.3fs must be positive", step)}
	}
	if end <= 0 {
		end = duration
	} else {
		if end <= start {
			return Grid{}, &InvalidRangeError{Reason: fmt.Sprintf("end time %.3fs must be greater than start time %.3fs", end, start)}
		}
		if end > duration {
			end = duration
		}
	}
	return Grid{Start: start, End: end, Step: step}, nil
}

// Count returns the number of timestamps in the grid.
func (g Grid) Count() int {
	if g.Start >= g.End {
		return 0
	}
	n := int(math.Ceil((g.End-g.Start)/g.Step - 1e-9))
	if n < 0 {
		return 0
	}
	return n
}

// At returns the i-th timestamp. Valid for 0 <= i < Count().
func (g Grid) At(i int) float64 {
	return g.Start + float64(i)*g.Step
}
