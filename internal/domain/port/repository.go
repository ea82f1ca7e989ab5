package port

import (
	"context"

	"github.com/framesift/framesift-sampling-service/internal/domain/entity"
	"github.com/google/uuid"
)

type JobRepository interface {
	Create(ctx context.Context, job *entity.SamplingJob) error
	Update(ctx context.Context, job *entity.SamplingJob) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.SamplingJob, error)
}
