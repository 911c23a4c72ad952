package workflow

import (
	"context"

	"github.com/google/uuid"

	"cardflow/internal/queue"
	"cardflow/internal/services"
)

func withJobContext(ctx context.Context, workerID string, job *queue.Job) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = services.WithJobID(ctx, job.ID)
	ctx = services.WithAssetID(ctx, job.AssetID)
	ctx = services.WithStage(ctx, stageName(job.Type))
	if workerID != "" {
		ctx = services.WithWorker(ctx, workerID)
	}
	return services.WithRequestID(ctx, uuid.NewString())
}

func stageName(jobType queue.JobType) string {
	switch jobType {
	case queue.JobOCR:
		return "ocr"
	case queue.JobClassify:
		return "classify"
	case queue.JobValuation:
		return "valuation"
	default:
		return string(jobType)
	}
}
