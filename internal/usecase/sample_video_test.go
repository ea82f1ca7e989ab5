package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/framesift/framesift-sampling-service/internal/domain/entity"
	"github.com/framesift/framesift-sampling-service/internal/domain/port"
	"github.com/framesift/framesift-sampling-service/internal/infra/archive"
)

type fakeRepo struct {
	jobs map[uuid.UUID]*entity.SamplingJob
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{jobs: map[uuid.UUID]*entity.SamplingJob{}}
}

func (r *fakeRepo) Create(_ context.Context, job *entity.SamplingJob) error {
	r.jobs[job.ID] = job
	return nil
}

func (r *fakeRepo) Update(_ context.Context, job *entity.SamplingJob) error {
	r.jobs[job.ID] = job
	return nil
}

func (r *fakeRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.SamplingJob, error) {
	job, ok := r.jobs[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return job, nil
}

type fakeStorage struct {
	downloadErr  error
	uploadedKey  string
	uploadedSize int64
}

func (s *fakeStorage) DownloadVideo(_ context.Context, _ string, destPath string) error {
	if s.downloadErr != nil {
		return s.downloadErr
	}
	return os.WriteFile(destPath, []byte("video-bytes"), 0644)
}

func (s *fakeStorage) UploadArchive(_ context.Context, objectKey string, _ io.Reader, size int64) error {
	s.uploadedKey = objectKey
	s.uploadedSize = size
	return nil
}

type fakeSampler struct {
	frames int
	err    error
}

func (f *fakeSampler) Sample(_ context.Context, _ string, outputDir string, _ entity.SamplingParams) (*port.SampleResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, err
	}
	paths := make([]string, 0, f.frames)
	for i := 0; i < f.frames; i++ {
		p := filepath.Join(outputDir, fmt.Sprintf("frame_%06d.jpg", i))
		if err := os.WriteFile(p, []byte{0xFF, 0xD8, byte(i)}, 0644); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return &port.SampleResult{
		FramePaths:    paths,
		Attempted:     f.frames + 2,
		Accepted:      f.frames,
		Rejected:      2,
		VideoDuration: 12.0,
	}, nil
}

type fakeStatusPub struct {
	messages []entity.SamplingStatusMessage
}

func (p *fakeStatusPub) PublishStatus(_ context.Context, msg []byte) error {
	var m entity.SamplingStatusMessage
	if err := json.Unmarshal(msg, &m); err != nil {
		return err
	}
	p.messages = append(p.messages, m)
	return nil
}

type fakeDLQ struct {
	reasons []string
}

func (d *fakeDLQ) PublishToDLQ(_ context.Context, _ []byte, reason string) error {
	d.reasons = append(d.reasons, reason)
	return nil
}

type fakeNotifier struct {
	emails []string
}

func (n *fakeNotifier) NotifyFailure(_ context.Context, userEmail, _, _, _ string) error {
	n.emails = append(n.emails, userEmail)
	return nil
}

type ucFixture struct {
	uc       *SampleVideoUseCase
	repo     *fakeRepo
	storage  *fakeStorage
	sampler  *fakeSampler
	statuses *fakeStatusPub
	dlq      *fakeDLQ
	notifier *fakeNotifier
}

func newFixture(t *testing.T, maxRetries int) *ucFixture {
	t.Helper()
	f := &ucFixture{
		repo:     newFakeRepo(),
		storage:  &fakeStorage{},
		sampler:  &fakeSampler{frames: 3},
		statuses: &fakeStatusPub{},
		dlq:      &fakeDLQ{},
		notifier: &fakeNotifier{},
	}
	f.uc = NewSampleVideoUseCase(
		f.repo, f.storage, f.sampler, archive.NewZipper(),
		f.statuses, f.dlq, f.notifier,
		zap.NewNop(),
		SampleVideoConfig{
			TempDir:          t.TempDir(),
			MaxRetries:       maxRetries,
			DefaultScale:     1.0,
			DefaultFrameStep: 1.0,
			FrameFormat:      "jpg",
		},
	)
	return f
}

func samplingMessage(jobID uuid.UUID) []byte {
	msg := entity.VideoSamplingMessage{
		JobID:     jobID,
		UserID:    "user1",
		VideoKey:  "user1/input.mp4",
		FileSize:  1024,
		UserEmail: "user1@example.com",
		Params:    entity.SamplingParams{Scale: 0.5, FrameStep: 2, SimilarityThreshold: 5},
	}
	data, _ := json.Marshal(msg)
	return data
}

func TestExecuteHappyPath(t *testing.T) {
	f := newFixture(t, 3)
	jobID := uuid.New()

	err := f.uc.Execute(context.Background(), samplingMessage(jobID))
	require.NoError(t, err)

	job := f.repo.jobs[jobID]
	require.NotNil(t, job)
	assert.Equal(t, entity.JobStatusCompleted, job.Status)
	assert.Equal(t, 3, job.AcceptedCount)
	assert.Equal(t, 2, job.RejectedCount)
	assert.Equal(t, 12.0, job.VideoDuration)
	assert.Contains(t, job.ZipKey, "user1/frames_")

	assert.Equal(t, job.ZipKey, f.storage.uploadedKey)
	assert.Greater(t, f.storage.uploadedSize, int64(0))

	require.NotEmpty(t, f.statuses.messages)
	last := f.statuses.messages[len(f.statuses.messages)-1]
	assert.Equal(t, entity.JobStatusCompleted, last.Status)
	assert.Empty(t, f.dlq.reasons)
}

func TestExecutePoisonMessageGoesToDLQ(t *testing.T) {
	f := newFixture(t, 3)

	err := f.uc.Execute(context.Background(), []byte("{not json"))
	require.NoError(t, err) // poison is acked, not retried

	require.Len(t, f.dlq.reasons, 1)
	assert.Contains(t, f.dlq.reasons[0], "unmarshal_error")
}

func TestExecuteInvalidParamsGoToDLQ(t *testing.T) {
	f := newFixture(t, 3)
	msg := entity.VideoSamplingMessage{
		JobID:    uuid.New(),
		UserID:   "user1",
		VideoKey: "user1/input.mp4",
		Params:   entity.SamplingParams{Scale: -2, FrameStep: 1},
	}
	data, _ := json.Marshal(msg)

	err := f.uc.Execute(context.Background(), data)
	require.NoError(t, err)

	require.Len(t, f.dlq.reasons, 1)
	assert.Contains(t, f.dlq.reasons[0], "invalid_params")
	assert.Contains(t, f.dlq.reasons[0], "scale")
}

func TestExecuteRetryableFailure(t *testing.T) {
	f := newFixture(t, 3)
	f.storage.downloadErr = errors.New("minio unreachable")
	jobID := uuid.New()

	err := f.uc.Execute(context.Background(), samplingMessage(jobID))
	require.Error(t, err) // nacked for retry

	job := f.repo.jobs[jobID]
	require.NotNil(t, job)
	assert.Equal(t, entity.JobStatusFailed, job.Status)
	assert.Equal(t, 1, job.Attempt)
	assert.Empty(t, f.dlq.reasons)
	assert.Empty(t, f.notifier.emails)
}

func TestExecutePermanentFailureNotifiesUser(t *testing.T) {
	f := newFixture(t, 1)
	f.sampler.err = errors.New("corrupt stream")
	jobID := uuid.New()

	err := f.uc.Execute(context.Background(), samplingMessage(jobID))
	require.NoError(t, err) // permanently failed messages are acked

	job := f.repo.jobs[jobID]
	require.NotNil(t, job)
	assert.Equal(t, entity.JobStatusFailed, job.Status)
	require.Len(t, f.dlq.reasons, 1)
	assert.Contains(t, f.dlq.reasons[0], "sample_frames")
	assert.Equal(t, []string{"user1@example.com"}, f.notifier.emails)
}

func TestExecuteExhaustedRetriesGoToDLQ(t *testing.T) {
	f := newFixture(t, 1)
	jobID := uuid.New()

	// Pre-existing job that already burned its attempt.
	job := entity.NewSamplingJob("user1", "user1/input.mp4", 1024, entity.SamplingParams{Scale: 1, FrameStep: 1}, 1)
	job.ID = jobID
	job.MarkProcessing()
	f.repo.jobs[jobID] = job

	err := f.uc.Execute(context.Background(), samplingMessage(jobID))
	require.NoError(t, err)

	require.Len(t, f.dlq.reasons, 1)
	assert.Contains(t, f.dlq.reasons[0], "max retries exceeded")
}
