package entity

import "fmt"

// InvalidConfigError reports a sampling parameter that fails validation.
// It is always fatal before any frame is processed.
type InvalidConfigError struct {
	Field  string
	Reason string
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// SamplingParams are the per-job knobs of the sampling engine. Zero values
// for Scale and FrameStep mean "use the service defaults"; a zero End means
// "to the end of the video".
type SamplingParams struct {
	Scale               float64 `json:"scale"`
	Start               float64 `json:"start"`
	End                 float64 `json:"end,omitempty"`
	FrameStep           float64 `json:"frame_step"`
	SimilarityThreshold float64 `json:"similarity_threshold"`
	IgnoreSimilarity    bool    `json:"ignore_similarity"`
	Format              string  `json:"format,omitempty"`
}

// ApplyDefaults fills zero-valued Scale, FrameStep, SimilarityThreshold
// and Format from the service configuration.
func (p SamplingParams) ApplyDefaults(scale, step, threshold float64, format string) SamplingParams {
	if p.Scale == 0 {
		p.Scale = scale
	}
	if p.FrameStep == 0 {
		p.FrameStep = step
	}
	if p.SimilarityThreshold == 0 {
		p.SimilarityThreshold = threshold
	}
	if p.Format == "" {
		p.Format = format
	}
	return p
}

// Validate checks the parameters once, before the run starts.
func (p SamplingParams) Validate() error {
	if p.Scale <= 0 {
		return &InvalidConfigError{Field: "scale", Reason: fmt.Sprintf("must be positive, got %g", p.Scale)}
	}
	if p.Start < 0 {
		return &InvalidConfigError{Field: "start", Reason: fmt.Sprintf("must not be negative, got %g", p.Start)}
	}
	if p.End != 0 && p.End <= p.Start {
		return &InvalidConfigError{Field: "end", Reason: fmt.Sprintf("must be greater than start %g, got %g", p.Start, p.End)}
	}
	if p.FrameStep <= 0 {
		return &InvalidConfigError{Field: "frame_step", Reason: fmt.Sprintf("must be positive, got %g", p.FrameStep)}
	}
	if p.SimilarityThreshold < 0 {
		return &InvalidConfigError{Field: "similarity_threshold", Reason: fmt.Sprintf("must not be negative, got %g", p.SimilarityThreshold)}
	}
	return nil
}
