package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/framesift/framesift-sampling-service/internal/domain/entity"
	"github.com/framesift/framesift-sampling-service/internal/domain/port"
	"github.com/framesift/framesift-sampling-service/internal/infra/metrics"
)

// SampleVideoUseCase consumes sampling requests from the queue and runs the
// full pipeline: download the video, sample frames, zip the accepted ones,
// upload the archive, and report job status along the way.
type SampleVideoUseCase struct {
	repo      port.JobRepository
	storage   port.VideoStorage
	sampler   port.VideoSampler
	zipper    port.Zipper
	publisher port.StatusPublisher
	dlq       port.DLQPublisher
	notifier  port.FailureNotifier
	logger    *zap.Logger
	cfg       SampleVideoConfig
}

type SampleVideoConfig struct {
	TempDir    string
	MaxRetries int

	// Defaults applied to zero-valued message params.
	DefaultScale        float64
	DefaultFrameStep    float64
	DefaultSimThreshold float64
	FrameFormat         string
}

func NewSampleVideoUseCase(
	repo port.JobRepository,
	storage port.VideoStorage,
	sampler port.VideoSampler,
	zipper port.Zipper,
	publisher port.StatusPublisher,
	dlq port.DLQPublisher,
	notifier port.FailureNotifier,
	logger *zap.Logger,
	cfg SampleVideoConfig,
) *SampleVideoUseCase {
	return &SampleVideoUseCase{
		repo:      repo,
		storage:   storage,
		sampler:   sampler,
		zipper:    zipper,
		publisher: publisher,
		dlq:       dlq,
		notifier:  notifier,
		logger:    logger,
		cfg:       cfg,
	}
}

func (uc *SampleVideoUseCase) Execute(ctx context.Context, rawMsg []byte) error {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "SampleVideoUseCase.Execute")
	defer span.End()

	totalTimer := time.Now()

	var msg entity.VideoSamplingMessage
	if err := json.Unmarshal(rawMsg, &msg); err != nil {
		uc.logger.Error("failed to unmarshal message", zap.Error(err), zap.ByteString("body", rawMsg))
		_ = uc.dlq.PublishToDLQ(ctx, rawMsg, "unmarshal_error: "+err.Error())
		return nil
	}

	span.SetAttributes(
		attribute.String("job.id", msg.JobID.String()),
		attribute.String("job.video_key", msg.VideoKey),
	)

	log := uc.logger.With(zap.String("job_id", msg.JobID.String()), zap.String("video_key", msg.VideoKey))

	params := msg.Params.ApplyDefaults(uc.cfg.DefaultScale, uc.cfg.DefaultFrameStep, uc.cfg.DefaultSimThreshold, uc.cfg.FrameFormat)
	if err := params.Validate(); err != nil {
		// Bad params never improve on retry.
		log.Warn("invalid sampling params, sending to DLQ", zap.Error(err))
		_ = uc.dlq.PublishToDLQ(ctx, rawMsg, "invalid_params: "+err.Error())
		metrics.JobsProcessedTotal.WithLabelValues("invalid").Inc()
		return nil
	}
	msg.Params = params

	job, err := uc.repo.FindByID(ctx, msg.JobID)
	if err != nil {
		job = entity.NewSamplingJob(msg.UserID, msg.VideoKey, msg.FileSize, params, uc.cfg.MaxRetries)
		job.ID = msg.JobID
		if err := uc.repo.Create(ctx, job); err != nil {
			log.Error("failed to create job record", zap.Error(err))
			return fmt.Errorf("create job: %w", err)
		}
	}

	if !job.CanRetry() {
		log.Warn("job exhausted retries, sending to DLQ")
		_ = uc.handlePermanentFailure(ctx, job, msg, rawMsg, "max retries exceeded")
		return nil
	}

	job.MarkProcessing()
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to PROCESSING", zap.Error(err))
		return fmt.Errorf("update job: %w", err)
	}

	metrics.ActiveWorkers.Inc()
	defer metrics.ActiveWorkers.Dec()

	if err := uc.runPipeline(ctx, job, msg, rawMsg, log); err != nil {
		return err
	}

	metrics.JobsProcessedTotal.WithLabelValues("completed").Inc()
	metrics.JobStageDuration.WithLabelValues("total").Observe(time.Since(totalTimer).Seconds())

	return nil
}

func (uc *SampleVideoUseCase) runPipeline(
	ctx context.Context,
	job *entity.SamplingJob,
	msg entity.VideoSamplingMessage,
	rawMsg []byte,
	log *zap.Logger,
) error {
	tracer := otel.Tracer("usecase")

	workDir := filepath.Join(uc.cfg.TempDir, job.ID.String())
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return fmt.Errorf("create workdir: %w", err)
	}
	defer os.RemoveAll(workDir)

	// Download video from MinIO
	dlStart := time.Now()
	ctxDl, spanDl := tracer.Start(ctx, "download_video")
	videoPath := filepath.Join(workDir, "input"+filepath.Ext(msg.VideoKey))
	if err := uc.storage.DownloadVideo(ctxDl, msg.VideoKey, videoPath); err != nil {
		spanDl.End()
		log.Error("failed to download video", zap.Error(err))
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "download_video: "+err.Error(), log)
	}
	spanDl.End()
	metrics.JobStageDuration.WithLabelValues("download").Observe(time.Since(dlStart).Seconds())

	// Sample frames
	smStart := time.Now()
	ctxSm, spanSm := tracer.Start(ctx, "sample_frames")
	framesDir := filepath.Join(workDir, "frames")
	result, err := uc.sampler.Sample(ctxSm, videoPath, framesDir, msg.Params)
	if err != nil {
		spanSm.End()
		log.Error("frame sampling failed", zap.Error(err))
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "sample_frames: "+err.Error(), log)
	}
	spanSm.End()
	metrics.JobStageDuration.WithLabelValues("sample").Observe(time.Since(smStart).Seconds())
	metrics.FramesSampledTotal.WithLabelValues("accepted").Add(float64(result.Accepted))
	metrics.FramesSampledTotal.WithLabelValues("rejected").Add(float64(result.Rejected))
	metrics.FramesSampledTotal.WithLabelValues("failed").Add(float64(result.Failed))

	if len(result.FramePaths) == 0 {
		log.Error("no frames written", zap.Int("attempted", result.Attempted))
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "sample_frames: no frames written", log)
	}

	// Zip accepted frames
	zipStart := time.Now()
	ctxZip, spanZip := tracer.Start(ctx, "create_zip")
	zipPath := filepath.Join(workDir, "frames.zip")
	if err := uc.zipper.CreateZip(ctxZip, result.FramePaths, zipPath); err != nil {
		spanZip.End()
		log.Error("zip creation failed", zap.Error(err))
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "create_zip: "+err.Error(), log)
	}
	spanZip.End()
	metrics.JobStageDuration.WithLabelValues("zip").Observe(time.Since(zipStart).Seconds())

	// Upload archive to MinIO
	upStart := time.Now()
	ctxUp, spanUp := tracer.Start(ctx, "upload_archive")
	zipKey := fmt.Sprintf("%s/frames_%s.zip", msg.UserID, job.ID.String())
	zipFile, err := os.Open(zipPath)
	if err != nil {
		spanUp.End()
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "open_zip: "+err.Error(), log)
	}
	zipStat, _ := zipFile.Stat()
	if err := uc.storage.UploadArchive(ctxUp, zipKey, zipFile, zipStat.Size()); err != nil {
		zipFile.Close()
		spanUp.End()
		log.Error("archive upload failed", zap.Error(err))
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "upload_archive: "+err.Error(), log)
	}
	zipFile.Close()
	spanUp.End()
	metrics.JobStageDuration.WithLabelValues("upload").Observe(time.Since(upStart).Seconds())

	job.MarkCompleted(zipKey, result.Attempted, result.Accepted, result.Rejected, result.Failed, result.VideoDuration)
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to COMPLETED", zap.Error(err))
		return fmt.Errorf("update job completed: %w", err)
	}

	uc.publishStatus(ctx, job, log)

	log.Info("job completed successfully",
		zap.Int("attempted", result.Attempted),
		zap.Int("accepted", result.Accepted),
		zap.Int("rejected", result.Rejected),
		zap.Int("failed", result.Failed),
		zap.Float64("duration_secs", result.VideoDuration),
		zap.String("zip_key", zipKey),
	)

	return nil
}

func (uc *SampleVideoUseCase) handleRetryableFailure(
	ctx context.Context,
	job *entity.SamplingJob,
	msg entity.VideoSamplingMessage,
	rawMsg []byte,
	errMsg string,
	log *zap.Logger,
) error {
	job.MarkFailed(errMsg)
	_ = uc.repo.Update(ctx, job)

	if !job.CanRetry() {
		return uc.handlePermanentFailure(ctx, job, msg, rawMsg, errMsg)
	}

	metrics.RetryTotal.WithLabelValues(strconv.Itoa(job.Attempt)).Inc()
	uc.publishStatus(ctx, job, log)

	return fmt.Errorf("retryable failure (attempt %d/%d): %s", job.Attempt, job.MaxAttempts, errMsg)
}

func (uc *SampleVideoUseCase) handlePermanentFailure(
	ctx context.Context,
	job *entity.SamplingJob,
	msg entity.VideoSamplingMessage,
	rawMsg []byte,
	errMsg string,
) error {
	job.MarkFailed(errMsg)
	_ = uc.repo.Update(ctx, job)

	_ = uc.dlq.PublishToDLQ(ctx, rawMsg, errMsg)

	uc.publishStatus(ctx, job, uc.logger)

	metrics.JobsProcessedTotal.WithLabelValues("dlq").Inc()

	_ = uc.notifier.NotifyFailure(ctx, msg.UserEmail, job.ID.String(), msg.VideoKey, errMsg)

	return nil
}

func (uc *SampleVideoUseCase) publishStatus(ctx context.Context, job *entity.SamplingJob, log *zap.Logger) {
	statusMsg := entity.SamplingStatusMessage{
		JobID:          job.ID,
		UserID:         job.UserID,
		Status:         job.Status,
		VideoKey:       job.VideoKey,
		ZipKey:         job.ZipKey,
		AttemptedCount: job.AttemptedCount,
		AcceptedCount:  job.AcceptedCount,
		RejectedCount:  job.RejectedCount,
		FailedCount:    job.FailedCount,
		Duration:       job.VideoDuration,
		ErrorMessage:   job.ErrorMessage,
		Attempt:        job.Attempt,
		MaxAttempts:    job.MaxAttempts,
	}
	data, _ := json.Marshal(statusMsg)
	if err := uc.publisher.PublishStatus(ctx, data); err != nil {
		log.Error("failed to publish status", zap.Error(err))
	}
}
