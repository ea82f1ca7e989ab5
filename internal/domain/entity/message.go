package entity

import "github.com/google/uuid"

// VideoSamplingMessage is the inbound message from the video.sampling queue.
type VideoSamplingMessage struct {
	JobID     uuid.UUID      `json:"job_id"`
	UserID    string         `json:"user_id"`
	VideoKey  string         `json:"video_key"`
	FileSize  int64          `json:"file_size"`
	UserEmail string         `json:"user_email"`
	Params    SamplingParams `json:"params"`
}

// SamplingStatusMessage is the outbound message published to the
// video.status queue on every job state change.
type SamplingStatusMessage struct {
	JobID          uuid.UUID `json:"job_id"`
	UserID         string    `json:"user_id"`
	Status         JobStatus `json:"status"`
	VideoKey       string    `json:"video_key"`
	ZipKey         string    `json:"zip_key,omitempty"`
	AttemptedCount int       `json:"attempted_count,omitempty"`
	AcceptedCount  int       `json:"accepted_count,omitempty"`
	RejectedCount  int       `json:"rejected_count,omitempty"`
	FailedCount    int       `json:"failed_count,omitempty"`
	Duration       float64   `json:"duration_seconds,omitempty"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	Attempt        int       `json:"attempt"`
	MaxAttempts    int       `json:"max_attempts"`
}
