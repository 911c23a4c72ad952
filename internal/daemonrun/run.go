package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"

	"cardflow/internal/cache"
	"cardflow/internal/classification"
	"cardflow/internal/config"
	"cardflow/internal/daemon"
	"cardflow/internal/imagestore"
	"cardflow/internal/logging"
	"cardflow/internal/notifications"
	"cardflow/internal/ocr"
	"cardflow/internal/queue"
	"cardflow/internal/valuation"
	"cardflow/internal/workflow"
)

// Runtime bundles the collaborators shared by the daemon and one-shot runs.
type Runtime struct {
	Store   *queue.Store
	Manager *workflow.Manager
	Logger  *slog.Logger
	cache   cache.Store
}

// Close releases the cache connection and the store.
func (r *Runtime) Close() error {
	if r.cache != nil {
		_ = r.cache.Close()
	}
	return r.Store.Close()
}

// Build opens the store and wires every stage handler into a workflow manager.
func Build(cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	notifier := notifications.NewService(cfg)
	lookups := cache.New(cfg.Cache)
	images := imagestore.New(cfg)

	mgr := workflow.NewManager(cfg, store, logger, workflow.WithNotifier(notifier))
	mgr.ConfigureStages(workflow.StageSet{
		OCR:       ocr.NewHandler(cfg, store, images, logger),
		Classify:  classification.NewHandler(cfg, store, images, store, logger),
		Valuation: valuation.NewHandler(cfg, store, lookups, logger, valuation.WithNotifier(notifier)),
	})
	logProviderSnapshot(logger, cfg)

	return &Runtime{
		Store:   store,
		Manager: mgr,
		Logger:  logger,
		cache:   lookups,
	}, nil
}

// Run starts the cardflow daemon and blocks until SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config) error {
	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	rt, err := Build(cfg, logger)
	if err != nil {
		logger.Error("build runtime", logging.Error(err))
		return err
	}

	d, err := daemon.New(cfg, rt.Store, logger, rt.Manager)
	if err != nil {
		_ = rt.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	if err := d.Start(signalCtx); err != nil {
		_ = rt.Close()
		return err
	}

	<-signalCtx.Done()
	logger.Info("cardflow daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	d.Stop()
	return rt.Close()
}

func logProviderSnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil {
		return
	}
	logger.Info("provider snapshot",
		logging.String(logging.FieldEventType, "provider_snapshot"),
		logging.String("storage_mode", cfg.Storage.Mode),
		logging.Bool("vision_configured", strings.TrimSpace(cfg.Vision.URL) != ""),
		logging.Bool("classification_enabled", cfg.Classification.Enabled),
		logging.Bool("classification_key_present", strings.TrimSpace(cfg.Classification.APIKey) != ""),
		logging.Bool("marketplace_token_present", strings.TrimSpace(cfg.Valuation.Token) != ""),
		logging.Bool("bgremove_configured", strings.TrimSpace(cfg.BGRemove.URL) != ""),
		logging.Bool("thumbnail_bucket_configured", strings.TrimSpace(cfg.Images.ThumbnailBucket) != ""),
		logging.Bool("cache_configured", strings.TrimSpace(cfg.Cache.RedisAddr) != ""),
		logging.Bool("ntfy_configured", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
		logging.Int("workers", cfg.Workflow.WorkerCount),
	)
}
