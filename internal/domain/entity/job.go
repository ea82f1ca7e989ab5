package entity

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
)

type SamplingJob struct {
	ID             uuid.UUID
	UserID         string
	VideoKey       string
	ZipKey         string
	Status         JobStatus
	Params         SamplingParams
	AttemptedCount int
	AcceptedCount  int
	RejectedCount  int
	FailedCount    int
	FileSize       int64
	VideoDuration  float64
	Attempt        int
	MaxAttempts    int
	ErrorMessage   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	CompletedAt    *time.Time
}

func NewSamplingJob(userID, videoKey string, fileSize int64, params SamplingParams, maxAttempts int) *SamplingJob {
	now := time.Now().UTC()
	return &SamplingJob{
		ID:          uuid.New(),
		UserID:      userID,
		VideoKey:    videoKey,
		FileSize:    fileSize,
		Params:      params,
		Status:      JobStatusPending,
		Attempt:     0,
		MaxAttempts: maxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (j *SamplingJob) MarkProcessing() {
	j.Status = JobStatusProcessing
	j.Attempt++
	j.UpdatedAt = time.Now().UTC()
}

func (j *SamplingJob) MarkCompleted(zipKey string, attempted, accepted, rejected, failed int, duration float64) {
	now := time.Now().UTC()
	j.Status = JobStatusCompleted
	j.ZipKey = zipKey
	j.AttemptedCount = attempted
	j.AcceptedCount = accepted
	j.RejectedCount = rejected
	j.FailedCount = failed
	j.VideoDuration = duration
	j.UpdatedAt = now
	j.CompletedAt = &now
}

func (j *SamplingJob) MarkFailed(errMsg string) {
	j.Status = JobStatusFailed
	j.ErrorMessage = errMsg
	j.UpdatedAt = time.Now().UTC()
}

func (j *SamplingJob) CanRetry() bool {
	return j.Attempt < j.MaxAttempts
}
