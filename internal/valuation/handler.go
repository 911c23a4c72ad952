package valuation

import (
	"context"
	"log/slog"
	"time"

	"cardflow/internal/cache"
	"cardflow/internal/config"
	"cardflow/internal/logging"
	"cardflow/internal/notifications"
	"cardflow/internal/queue"
	"cardflow/internal/stage"
	"cardflow/internal/valuation/marketplace"
)

const stageName = "valuation"

// Handler runs the VALUATION stage and owns the batch aggregate.
type Handler struct {
	cfg       *config.Config
	store     stage.Store
	estimator *Estimator
	notifier  notifications.Service
	logger    *slog.Logger
}

// Option customizes the handler's collaborators.
type Option func(*Handler)

// WithEstimator overrides the estimator built from configuration.
func WithEstimator(estimator *Estimator) Option {
	return func(h *Handler) { h.estimator = estimator }
}

// WithNotifier publishes batch-ready events.
func WithNotifier(notifier notifications.Service) Option {
	return func(h *Handler) {
		if notifier != nil {
			h.notifier = notifier
		}
	}
}

// NewHandler wires the VALUATION stage. lookups caches marketplace results
// and may be nil.
func NewHandler(cfg *config.Config, store stage.Store, lookups cache.Store, logger *slog.Logger, opts ...Option) *Handler {
	logger = logging.NewComponentLogger(logger, stageName)
	client := marketplace.NewClient(marketplace.Config{
		BaseURL:        cfg.Valuation.BaseURL,
		Token:          cfg.Valuation.Token,
		MarketplaceID:  cfg.Valuation.MarketplaceID,
		TimeoutSeconds: cfg.Valuation.TimeoutSeconds,
	})
	estimatorOpts := []EstimatorOption{WithLimits(cfg.Valuation.ResultLimit, cfg.Valuation.QueryMaxChars)}
	if lookups != nil {
		estimatorOpts = append(estimatorOpts, WithCache(lookups, cache.TTL(cfg.Cache)))
	}
	h := &Handler{
		cfg:       cfg,
		store:     store,
		estimator: NewEstimator(client, logger, estimatorOpts...),
		notifier:  notifications.NewService(nil),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Execute values the job's asset, marks it READY, and recounts its batch.
func (h *Handler) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, h.logger)

	asset, err := h.store.GetAsset(ctx, job.AssetID)
	if err != nil {
		return err
	}
	result := h.estimator.Estimate(ctx, h.estimator.Query(asset.OCRText, asset.FileName()))

	var (
		batch   *queue.Batch
		flipped bool
	)
	err = h.store.WithinTx(ctx, h.cfg.TxTimeout(), func(ctx context.Context, tx *queue.Tx) error {
		locked, err := tx.LockBatch(ctx, asset.BatchID)
		if err != nil {
			return err
		}
		current, err := tx.GetAsset(ctx, asset.ID)
		if err != nil {
			return err
		}
		completed := time.Now().UTC()
		current.ValuationAmount = result.Amount
		current.ValuationCurrency = result.Currency
		current.ValuationSource = result.Source
		current.ValuationLink = result.Link
		current.ClearError()
		current.Status = queue.AssetReady
		current.CompletedAt = &completed
		if err := tx.UpdateAsset(ctx, current); err != nil {
			return err
		}

		processed, err := tx.CountReady(ctx, locked.ID)
		if err != nil {
			return err
		}
		wasReady := locked.Status == queue.BatchReady
		locked.ProcessedCount = processed
		locked.Status = queue.BatchProcessing
		if locked.TotalCount > 0 && processed >= locked.TotalCount {
			locked.Status = queue.BatchReady
		}
		if err := tx.UpdateBatch(ctx, locked); err != nil {
			return err
		}
		batch = locked
		flipped = !wasReady && locked.Status == queue.BatchReady
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info("valuation completed",
		logging.String(logging.FieldEventType, "valuation_complete"),
		logging.Int64(logging.FieldBatchID, batch.ID),
		logging.String("source", result.Source),
		logging.Float64("amount", result.Amount),
		logging.String("currency", result.Currency),
		logging.Int("comparables", result.Comparables),
		logging.Bool("cached", result.Cached),
		logging.Int("batch_processed", batch.ProcessedCount),
		logging.Int("batch_total", batch.TotalCount),
	)

	if flipped {
		logger.Info("batch ready",
			logging.String(logging.FieldEventType, "batch_ready"),
			logging.Int64(logging.FieldBatchID, batch.ID),
			logging.String("batch_name", batch.Name),
		)
		if err := h.notifier.Publish(ctx, notifications.EventBatchReady, notifications.Payload{
			"name":  batch.Name,
			"count": batch.ProcessedCount,
		}); err != nil {
			logging.WarnWithContext(logger, "batch ready notification failed", "notification_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "operator not notified"),
			)
		}
	}
	return nil
}

// HealthCheck reports stub mode when no marketplace token is configured.
func (h *Handler) HealthCheck(ctx context.Context) stage.Health {
	if h.store == nil {
		return stage.Unhealthy(stageName, "handler not wired")
	}
	if !h.estimator.Configured() {
		return stage.Degraded(stageName, "marketplace not configured; stub valuations")
	}
	return stage.Healthy(stageName)
}

var _ stage.Handler = (*Handler)(nil)
