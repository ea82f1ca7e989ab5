package integration

import (
	"archive/zip"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcminio "github.com/testcontainers/testcontainers-go/modules/minio"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcrabbitmq "github.com/testcontainers/testcontainers-go/modules/rabbitmq"

	"github.com/framesift/framesift-sampling-service/internal/domain/entity"
	"github.com/framesift/framesift-sampling-service/internal/infra/archive"
	"github.com/framesift/framesift-sampling-service/internal/infra/email"
	miniostorage "github.com/framesift/framesift-sampling-service/internal/infra/minio"
	"github.com/framesift/framesift-sampling-service/internal/infra/postgres"
	"github.com/framesift/framesift-sampling-service/internal/infra/rabbitmq"
	"github.com/framesift/framesift-sampling-service/internal/infra/sampling"
	"github.com/framesift/framesift-sampling-service/internal/usecase"
	"github.com/framesift/framesift-sampling-service/pkg/logger"
)

type testEnv struct {
	pgConnStr     string
	rmqURL        string
	minioEndpoint string
	rmqConn       *amqp.Connection
	storage       *miniostorage.Storage
	pool          *pgxpool.Pool
}

func startEnv(t *testing.T, ctx context.Context) *testEnv {
	t.Helper()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:15-alpine",
		tcpostgres.WithDatabase("jobs"),
		tcpostgres.WithUsername("job_user"),
		tcpostgres.WithPassword("job_pass"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { pgContainer.Terminate(ctx) })

	pgConnStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	rmqContainer, err := tcrabbitmq.Run(ctx,
		"rabbitmq:3.12-management-alpine",
	)
	require.NoError(t, err)
	t.Cleanup(func() { rmqContainer.Terminate(ctx) })

	rmqURL, err := rmqContainer.AmqpURL(ctx)
	require.NoError(t, err)

	minioContainer, err := tcminio.Run(ctx,
		"minio/minio:latest",
		tcminio.WithUsername("minioadmin"),
		tcminio.WithPassword("minioadmin"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { minioContainer.Terminate(ctx) })

	minioEndpoint, err := minioContainer.ConnectionString(ctx)
	require.NoError(t, err)

	require.NoError(t, postgres.RunMigrations(pgConnStr, "../../migrations"))

	storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:      minioEndpoint,
		AccessKey:     "minioadmin",
		SecretKey:     "minioadmin",
		UseSSL:        false,
		UploadBucket:  "uploads",
		ResultsBucket: "results",
	})
	require.NoError(t, err)
	require.NoError(t, storage.EnsureBuckets(ctx))

	rmqConn, err := amqp.Dial(rmqURL)
	require.NoError(t, err)
	t.Cleanup(func() { rmqConn.Close() })

	pool, err := pgxpool.New(ctx, pgConnStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return &testEnv{
		pgConnStr:     pgConnStr,
		rmqURL:        rmqURL,
		minioEndpoint: minioEndpoint,
		rmqConn:       rmqConn,
		storage:       storage,
		pool:          pool,
	}
}

func startService(t *testing.T, ctx context.Context, env *testEnv) {
	t.Helper()

	log, _ := logger.New("debug")

	pub, err := rabbitmq.NewPublisher(env.rmqConn, "framesift.video")
	require.NoError(t, err)

	statusPub := rabbitmq.NewStatusPublisher(pub, "video.status")
	dlqPub := rabbitmq.NewDLQPublisher(pub, "video.sampling.dlq")

	repo := postgres.NewJobRepository(env.pool)
	engine := sampling.NewSampler(2, log)
	zipper := archive.NewZipper()
	notifier := email.NewSMTPNotifier("localhost", 1025, "noreply@test.local", "admin@test.local", log)

	uc := usecase.NewSampleVideoUseCase(
		repo, env.storage, engine, zipper,
		statusPub, dlqPub, notifier,
		log,
		usecase.SampleVideoConfig{
			TempDir:          t.TempDir(),
			MaxRetries:       3,
			DefaultScale:     1.0,
			DefaultFrameStep: 1.0,
			FrameFormat:      "png",
		},
	)

	consumer, err := rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
		URL:         env.rmqURL,
		Queue:       "video.sampling",
		Exchange:    "framesift.video",
		DLQ:         "video.sampling.dlq",
		StatusQueue: "video.status",
		Prefetch:    1,
		WorkerCount: 1,
		BaseDelayMs: 100,
	}, uc.Execute, log)
	require.NoError(t, err)
	t.Cleanup(func() { consumer.Close() })

	consumerCtx, consumerCancel := context.WithCancel(ctx)
	t.Cleanup(consumerCancel)

	go func() {
		consumer.Start(consumerCtx)
	}()

	// Give the consumer time to start
	time.Sleep(500 * time.Millisecond)
}

func TestSampleVideoEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not available on PATH")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	testVideoPath := filepath.Join("..", "testdata", "test.mp4")
	if _, err := os.Stat(testVideoPath); os.IsNotExist(err) {
		t.Skip("test video not found at tests/testdata/test.mp4 - generate it with: ffmpeg -f lavfi -i testsrc=duration=6:size=320x240:rate=5 -c:v libx264 -pix_fmt yuv420p tests/testdata/test.mp4")
	}

	env := startEnv(t, ctx)
	startService(t, ctx, env)

	minioClient, err := miniogo.New(env.minioEndpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
		Secure: false,
	})
	require.NoError(t, err)

	videoKey := "testuser/test.mp4"
	_, err = minioClient.FPutObject(ctx, "uploads", videoKey, testVideoPath, miniogo.PutObjectOptions{
		ContentType: "video/mp4",
	})
	require.NoError(t, err)

	jobID := uuid.New()
	videoInfo, _ := os.Stat(testVideoPath)
	samplingMsg := entity.VideoSamplingMessage{
		JobID:     jobID,
		UserID:    "testuser",
		VideoKey:  videoKey,
		FileSize:  videoInfo.Size(),
		UserEmail: "test@test.local",
		Params: entity.SamplingParams{
			Scale:            0.5,
			FrameStep:        1.0,
			IgnoreSimilarity: true,
			Format:           "png",
		},
	}
	msgBody, err := json.Marshal(samplingMsg)
	require.NoError(t, err)

	pubCh, err := env.rmqConn.Channel()
	require.NoError(t, err)
	err = pubCh.PublishWithContext(ctx,
		"framesift.video",
		"video.sampling",
		false, false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        msgBody,
		},
	)
	require.NoError(t, err)
	pubCh.Close()

	statusCh, err := env.rmqConn.Channel()
	require.NoError(t, err)
	defer statusCh.Close()

	statusMsgs, err := statusCh.Consume("video.status", "", true, false, false, false, nil)
	require.NoError(t, err)

	var statusMsg entity.SamplingStatusMessage
	select {
	case delivery := <-statusMsgs:
		require.NoError(t, json.Unmarshal(delivery.Body, &statusMsg))
	case <-time.After(2 * time.Minute):
		t.Fatal("timeout waiting for status message")
	}

	assert.Equal(t, jobID, statusMsg.JobID)
	assert.Equal(t, entity.JobStatusCompleted, statusMsg.Status)
	assert.Greater(t, statusMsg.AcceptedCount, 0)
	assert.NotEmpty(t, statusMsg.ZipKey)

	// Verify the archive exists in MinIO and holds the sampled frames
	zipObj, err := minioClient.GetObject(ctx, "results", statusMsg.ZipKey, miniogo.GetObjectOptions{})
	require.NoError(t, err)

	tmpZip := filepath.Join(t.TempDir(), "result.zip")
	tmpFile, err := os.Create(tmpZip)
	require.NoError(t, err)
	_, err = tmpFile.ReadFrom(zipObj)
	require.NoError(t, err)
	tmpFile.Close()

	zipReader, err := zip.OpenReader(tmpZip)
	require.NoError(t, err)
	defer zipReader.Close()

	var names []string
	for _, f := range zipReader.File {
		if strings.HasSuffix(f.Name, ".png") {
			names = append(names, f.Name)
		}
	}
	assert.Greater(t, len(names), 0, "archive should contain PNG frames")

	// Zero-padded names keep chronological order
	for i := 1; i < len(names); i++ {
		assert.Less(t, names[i-1], names[i])
	}

	var dbStatus string
	var dbAccepted int
	err = env.pool.QueryRow(ctx,
		"SELECT status, accepted_count FROM sampling_jobs WHERE id=$1", jobID,
	).Scan(&dbStatus, &dbAccepted)
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", dbStatus)
	assert.Equal(t, len(names), dbAccepted)

	t.Logf("Test passed: %d frames sampled, archive at %s", len(names), statusMsg.ZipKey)
}

func TestSampleVideoMalformedMessage(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	env := startEnv(t, ctx)
	startService(t, ctx, env)

	pubCh, err := env.rmqConn.Channel()
	require.NoError(t, err)
	err = pubCh.PublishWithContext(ctx,
		"framesift.video",
		"video.sampling",
		false, false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        []byte(`{invalid json`),
		},
	)
	require.NoError(t, err)
	pubCh.Close()

	// Wait and verify the message landed in the DLQ
	time.Sleep(2 * time.Second)

	dlqCh, err := env.rmqConn.Channel()
	require.NoError(t, err)
	defer dlqCh.Close()

	dlqMsg, ok, err := dlqCh.Get("video.sampling.dlq", true)
	require.NoError(t, err)
	assert.True(t, ok, "malformed message should be in DLQ")
	assert.Equal(t, `{invalid json`, string(dlqMsg.Body))

	t.Log("Test passed: malformed message sent to DLQ")
}

func TestNewConsumerTopologyConflict(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	rmqContainer, err := tcrabbitmq.Run(ctx, "rabbitmq:3.12-management-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { rmqContainer.Terminate(ctx) })

	rmqURL, err := rmqContainer.AmqpURL(ctx)
	require.NoError(t, err)

	// An existing exchange of a different type makes the topology declare fail.
	conn, err := amqp.Dial(rmqURL)
	require.NoError(t, err)
	defer conn.Close()
	ch, err := conn.Channel()
	require.NoError(t, err)
	require.NoError(t, ch.ExchangeDeclare("clash.video", "direct", true, false, false, false, nil))

	log, _ := logger.New("debug")
	_, err = rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
		URL:         rmqURL,
		Queue:       "clash.sampling",
		Exchange:    "clash.video",
		DLQ:         "clash.sampling.dlq",
		StatusQueue: "clash.status",
		Prefetch:    1,
		WorkerCount: 1,
		BaseDelayMs: 100,
	}, func(context.Context, []byte) error { return nil }, log)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "declare exchange")
}
