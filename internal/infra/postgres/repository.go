package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/framesift/framesift-sampling-service/internal/domain/entity"
)

type JobRepository struct {
	pool *pgxpool.Pool
}

func NewJobRepository(pool *pgxpool.Pool) *JobRepository {
	return &JobRepository{pool: pool}
}

func (r *JobRepository) Create(ctx context.Context, job *entity.SamplingJob) error {
	query := `
		INSERT INTO sampling_jobs (
			id, user_id, video_key, zip_key, status,
			scale, start_sec, end_sec, frame_step,
			similarity_threshold, ignore_similarity, frame_format,
			attempted_count, accepted_count, rejected_count, failed_count,
			file_size, video_duration, attempt, max_attempts,
			error_message, created_at, updated_at, completed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24)`

	_, err := r.pool.Exec(ctx, query,
		job.ID, job.UserID, job.VideoKey, job.ZipKey, string(job.Status),
		job.Params.Scale, job.Params.Start, job.Params.End, job.Params.FrameStep,
		job.Params.SimilarityThreshold, job.Params.IgnoreSimilarity, job.Params.Format,
		job.AttemptedCount, job.AcceptedCount, job.RejectedCount, job.FailedCount,
		job.FileSize, job.VideoDuration, job.Attempt, job.MaxAttempts,
		job.ErrorMessage, job.CreatedAt, job.UpdatedAt, job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (r *JobRepository) Update(ctx context.Context, job *entity.SamplingJob) error {
	query := `
		UPDATE sampling_jobs SET
			status=$2, zip_key=$3,
			attempted_count=$4, accepted_count=$5, rejected_count=$6, failed_count=$7,
			video_duration=$8, attempt=$9, error_message=$10,
			updated_at=$11, completed_at=$12
		WHERE id=$1`

	_, err := r.pool.Exec(ctx, query,
		job.ID, string(job.Status), job.ZipKey,
		job.AttemptedCount, job.AcceptedCount, job.RejectedCount, job.FailedCount,
		job.VideoDuration, job.Attempt, job.ErrorMessage,
		job.UpdatedAt, job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

func (r *JobRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.SamplingJob, error) {
	query := `
		SELECT id, user_id, video_key, zip_key, status,
			scale, start_sec, end_sec, frame_step,
			similarity_threshold, ignore_similarity, frame_format,
			attempted_count, accepted_count, rejected_count, failed_count,
			file_size, video_duration, attempt, max_attempts,
			error_message, created_at, updated_at, completed_at
		FROM sampling_jobs WHERE id=$1`

	job := &entity.SamplingJob{}
	var status string
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&job.ID, &job.UserID, &job.VideoKey, &job.ZipKey, &status,
		&job.Params.Scale, &job.Params.Start, &job.Params.End, &job.Params.FrameStep,
		&job.Params.SimilarityThreshold, &job.Params.IgnoreSimilarity, &job.Params.Format,
		&job.AttemptedCount, &job.AcceptedCount, &job.RejectedCount, &job.FailedCount,
		&job.FileSize, &job.VideoDuration, &job.Attempt, &job.MaxAttempts,
		&job.ErrorMessage, &job.CreatedAt, &job.UpdatedAt, &job.CompletedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("find job by id: %w", err)
	}
	job.Status = entity.JobStatus(status)
	return job, nil
}
