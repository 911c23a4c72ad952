package classification

import (
	"context"
	"log/slog"
	"time"

	"cardflow/internal/attributes"
	"cardflow/internal/classification/collectibles"
	"cardflow/internal/config"
	"cardflow/internal/identity"
	"cardflow/internal/imageprep"
	"cardflow/internal/logging"
	"cardflow/internal/queue"
	"cardflow/internal/stage"
)

const stageName = "classify"

// ImageLoader reads the card image.
type ImageLoader interface {
	Load(ctx context.Context, ref string) ([]byte, error)
}

// Matcher resolves name candidates to a roster player.
type Matcher interface {
	Match(ctx context.Context, input identity.Input) (identity.Result, error)
}

// Handler runs the CLASSIFY stage. When classification is disabled it only
// performs the hand-off to valuation.
type Handler struct {
	cfg        *config.Config
	store      stage.Store
	images     ImageLoader
	aggregator *Aggregator
	matcher    Matcher
	logger     *slog.Logger
}

// Option customizes the handler's collaborators.
type Option func(*Handler)

// WithAggregator overrides the aggregator built from configuration.
func WithAggregator(aggregator *Aggregator) Option {
	return func(h *Handler) { h.aggregator = aggregator }
}

// WithMatcher overrides the identity matcher.
func WithMatcher(matcher Matcher) Option {
	return func(h *Handler) { h.matcher = matcher }
}

// NewHandler wires the CLASSIFY stage. roster backs the default identity
// matcher.
func NewHandler(cfg *config.Config, store stage.Store, images ImageLoader, roster identity.Roster, logger *slog.Logger, opts ...Option) *Handler {
	logger = logging.NewComponentLogger(logger, stageName)
	client := collectibles.NewClient(collectibles.Config{
		BaseURL:         cfg.Classification.BaseURL,
		APIKey:          cfg.Classification.APIKey,
		TimeoutSeconds:  cfg.Classification.TimeoutSeconds,
		BreakerFailures: cfg.Classification.BreakerFailures,
		BreakerCooldown: time.Duration(cfg.Classification.BreakerCooldownSeconds) * time.Second,
	})
	h := &Handler{
		cfg:        cfg,
		store:      store,
		images:     images,
		aggregator: NewAggregator(client, imageprep.New(logger), cfg.Classification.MaxImageBytes, logger),
		logger:     logger,
	}
	if roster != nil {
		h.matcher = identity.NewMatcher(roster, logger)
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Execute classifies the job's asset and hands it to valuation.
func (h *Handler) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, h.logger)
	if !h.cfg.Classification.Enabled {
		logger.Debug("classification disabled; passing through",
			logging.String(logging.FieldEventType, "classification_skipped"),
		)
		return h.handOff(ctx, job, nil)
	}

	asset, err := h.store.GetAsset(ctx, job.AssetID)
	if err != nil {
		return err
	}
	image, err := h.images.Load(ctx, asset.ImageRef)
	if err != nil {
		return err
	}
	snap := h.aggregator.Classify(ctx, image, asset.OCRText)

	var match *identity.Result
	if h.matcher != nil {
		attrs, err := attributes.Parse(asset.AttributesJSON)
		if err != nil {
			logger.Debug("stored attributes unreadable; matching without them",
				logging.Error(err),
				logging.String(logging.FieldEventType, "attributes_decode_failed"),
			)
		}
		result, err := h.matcher.Match(ctx, matchInput(attrs, snap))
		if err != nil {
			return err
		}
		match = &result
	}

	err = h.handOff(ctx, job, func(asset *queue.Asset) {
		asset.ClassificationJSON = snap.JSON()
		if match != nil {
			asset.PlayerID = match.PlayerID
			asset.MatchConfidence = match.Confidence
			asset.MatchJSON = match.JSON()
		}
	})
	if err != nil {
		return err
	}

	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "classify_complete"),
		logging.String("source", snap.Source),
		logging.String("selection", snap.Selection),
	}
	if match != nil {
		attrs = append(attrs,
			logging.Bool("identity_accepted", match.Accepted),
			logging.Float64("identity_confidence", match.Confidence),
		)
	}
	logger.Info("classification completed", logging.Args(attrs...)...)
	return nil
}

// handOff applies mutate and moves the asset to VALUATION_PENDING with its
// VALUATION job in one transaction.
func (h *Handler) handOff(ctx context.Context, job *queue.Job, mutate func(*queue.Asset)) error {
	return stage.Commit(ctx, h.store, h.cfg.TxTimeout(), job.AssetID, func(ctx context.Context, tx *queue.Tx, asset *queue.Asset) error {
		if mutate != nil {
			mutate(asset)
		}
		asset.ClearError()
		asset.Status = queue.AssetValuationPending
		_, err := tx.Enqueue(ctx, asset.ID, queue.JobValuation, stage.From(job))
		return err
	})
}

// matchInput gathers name candidates from the OCR attributes and the
// classification result.
func matchInput(attrs attributes.Attributes, snap Snapshot) identity.Input {
	input := identity.Input{TeamHint: attrs.Team, SportHint: attrs.Sport}
	if attrs.PlayerName != "" {
		input.Names = append(input.Names, attrs.PlayerName)
	}
	if snap.Best != nil {
		input.Names = append(input.Names, snap.Best.Name)
		input.Names = append(input.Names, identity.ShortLabels(snap.Best.Labels)...)
		if input.TeamHint == "" {
			input.TeamHint = snap.Best.Team
		}
	}
	return input
}

// HealthCheck reports stub mode when classification is enabled without a
// provider key.
func (h *Handler) HealthCheck(ctx context.Context) stage.Health {
	switch {
	case h.store == nil || h.images == nil:
		return stage.Unhealthy(stageName, "handler not wired")
	case !h.cfg.Classification.Enabled:
		return stage.Degraded(stageName, "classification disabled; pass-through")
	case !h.aggregator.Configured():
		return stage.Degraded(stageName, "collectibles provider not configured; stub mode")
	default:
		return stage.Healthy(stageName)
	}
}

var _ stage.Handler = (*Handler)(nil)
