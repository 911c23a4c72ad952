package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cardflow/internal/attributes"
	"cardflow/internal/bgremove"
	"cardflow/internal/comps"
	"cardflow/internal/config"
	"cardflow/internal/imageprep"
	"cardflow/internal/logging"
	"cardflow/internal/ocr/vision"
	"cardflow/internal/queue"
	"cardflow/internal/stage"
	"cardflow/internal/textutil"
)

const stageName = "ocr"

// ImageStore loads card images and persists derived images.
type ImageStore interface {
	Load(ctx context.Context, ref string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// Extractor recognizes text in a card image.
type Extractor interface {
	Extract(ctx context.Context, image []byte, imageID string) (vision.Result, error)
	Configured() bool
}

// BackgroundRemover isolates the card from its background.
type BackgroundRemover interface {
	Remove(ctx context.Context, image []byte) ([]byte, error)
}

// Preparer shrinks an image payload to a byte ceiling.
type Preparer interface {
	Fit(data []byte, maxBytes int) ([]byte, error)
}

// Handler runs the OCR stage: text extraction, attribute heuristics,
// comparison links, and a best-effort thumbnail.
type Handler struct {
	cfg        *config.Config
	store      stage.Store
	images     ImageStore
	extractor  Extractor
	background BackgroundRemover
	preparer   Preparer
	logger     *slog.Logger
}

// Option customizes the handler's collaborators.
type Option func(*Handler)

// WithExtractor overrides the vision client.
func WithExtractor(extractor Extractor) Option {
	return func(h *Handler) { h.extractor = extractor }
}

// WithBackgroundRemover overrides the background removal client.
func WithBackgroundRemover(remover BackgroundRemover) Option {
	return func(h *Handler) { h.background = remover }
}

// WithPreparer overrides the image preparation ladder.
func WithPreparer(preparer Preparer) Option {
	return func(h *Handler) { h.preparer = preparer }
}

// NewHandler wires the OCR stage from configuration.
func NewHandler(cfg *config.Config, store stage.Store, images ImageStore, logger *slog.Logger, opts ...Option) *Handler {
	logger = logging.NewComponentLogger(logger, stageName)
	h := &Handler{
		cfg:    cfg,
		store:  store,
		images: images,
		logger: logger,
		extractor: vision.NewClient(vision.Config{
			URL:            cfg.Vision.URL,
			Token:          cfg.Vision.Token,
			TimeoutSeconds: cfg.Vision.TimeoutSeconds,
		}),
		background: bgremove.NewClient(bgremove.Config{
			URL:            cfg.BGRemove.URL,
			APIKey:         cfg.BGRemove.APIKey,
			TimeoutSeconds: cfg.BGRemove.TimeoutSeconds,
		}),
		preparer: imageprep.New(logger),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Execute performs one OCR attempt for the job's asset.
func (h *Handler) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, h.logger)

	asset, err := h.store.GetAsset(ctx, job.AssetID)
	if err != nil {
		return err
	}
	original, err := h.images.Load(ctx, asset.ImageRef)
	if err != nil {
		return err
	}
	prepared, err := h.preparer.Fit(original, h.cfg.Vision.MaxImageBytes)
	if err != nil {
		return err
	}
	result, err := h.extractor.Extract(ctx, prepared, fmt.Sprintf("asset-%d", asset.ID))
	if err != nil {
		return err
	}
	if result.Stub {
		logger.Debug("vision provider not configured; using stub text",
			logging.String(logging.FieldEventType, "vision_stub"),
		)
	}

	attrs := attributes.Extract(result.Text)
	links := comps.Build(comps.Query(attrs, result.Text))
	thumbnail := h.renderThumbnail(ctx, logger, asset, original)
	classify := h.cfg.Classification.Enabled

	err = stage.Commit(ctx, h.store, h.cfg.TxTimeout(), asset.ID, func(ctx context.Context, tx *queue.Tx, current *queue.Asset) error {
		current.OCRText = result.Text
		current.OCRRaw = result.Raw
		current.OCRConfidence = result.Confidence
		current.AttributesJSON = attrs.JSON()
		if thumbnail != "" {
			current.ThumbnailRef = thumbnail
		}
		if strings.TrimSpace(current.EbaySoldURL) == "" {
			current.EbaySoldURL = links.EbaySold
		}
		if strings.TrimSpace(current.MarketplaceURL) == "" {
			current.MarketplaceURL = links.Marketplace
		}
		current.ClearError()
		current.Status = queue.AssetOCRComplete

		next := queue.JobValuation
		if classify {
			next = queue.JobClassify
		} else {
			current.Status = queue.AssetValuationPending
		}
		_, err := tx.Enqueue(ctx, current.ID, next, stage.From(job))
		return err
	})
	if err != nil {
		return err
	}

	logger.Info("ocr completed",
		logging.String(logging.FieldEventType, "ocr_complete"),
		logging.Int("text_chars", len(result.Text)),
		logging.Float64("confidence", result.Confidence),
		logging.Int("payload_bytes", len(prepared)),
		logging.String("player_name", attrs.PlayerName),
		logging.Bool("thumbnail", thumbnail != ""),
		logging.Bool("classification_enabled", classify),
	)
	return nil
}

// renderThumbnail removes the background, shrinks the image, and stores it.
// Any failure is logged and yields an empty reference.
func (h *Handler) renderThumbnail(ctx context.Context, logger *slog.Logger, asset *queue.Asset, original []byte) string {
	start := time.Now()
	image, err := h.background.Remove(ctx, original)
	if err != nil {
		logging.WarnWithContext(logger, "background removal failed; using original image", "thumbnail_bgremove_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "thumbnail keeps the photo background"),
		)
		image = original
	}
	thumb, err := imageprep.Thumbnail(image, h.cfg.Images.ThumbnailMaxDim)
	if err != nil && len(image) != len(original) {
		thumb, err = imageprep.Thumbnail(original, h.cfg.Images.ThumbnailMaxDim)
	}
	if err != nil {
		logging.WarnWithContext(logger, "thumbnail render failed", "thumbnail_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "asset has no thumbnail"),
		)
		return ""
	}
	key := textutil.ObjectKey("", fmt.Sprintf("batch-%d", asset.BatchID), fmt.Sprintf("asset-%d.jpg", asset.ID))
	ref, err := h.images.Save(ctx, key, thumb, "image/jpeg")
	if err != nil {
		logging.WarnWithContext(logger, "thumbnail upload failed", "thumbnail_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "asset has no thumbnail"),
		)
		return ""
	}
	logger.Debug("thumbnail stored",
		logging.String("thumbnail_ref", ref),
		logging.Duration("duration", time.Since(start)),
	)
	return ref
}

// HealthCheck reports whether the vision provider is configured.
func (h *Handler) HealthCheck(ctx context.Context) stage.Health {
	if h.store == nil || h.images == nil {
		return stage.Unhealthy(stageName, "handler not wired")
	}
	if h.extractor == nil || !h.extractor.Configured() {
		return stage.Degraded(stageName, "vision provider not configured; stub mode")
	}
	return stage.Healthy(stageName)
}

var _ stage.Handler = (*Handler)(nil)

