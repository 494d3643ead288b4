package app

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/varoOP/tilawa/internal/cache"
	"github.com/varoOP/tilawa/internal/caption"
	"github.com/varoOP/tilawa/internal/config"
	"github.com/varoOP/tilawa/internal/database"
	"github.com/varoOP/tilawa/internal/delivery"
	"github.com/varoOP/tilawa/internal/domain"
	"github.com/varoOP/tilawa/internal/logger"
	"github.com/varoOP/tilawa/internal/notification"
	"github.com/varoOP/tilawa/internal/quran"
	"github.com/varoOP/tilawa/internal/reciter"
	"github.com/varoOP/tilawa/internal/repository"
	"github.com/varoOP/tilawa/internal/staging"
	"github.com/varoOP/tilawa/internal/storage"
)

// App represents the main application with all dependencies initialized
type App struct {
	log    zerolog.Logger
	config *domain.Config
	paths  *domain.Paths

	db      *database.DB
	session *storage.Session

	CacheRepo           domain.CacheRepo
	Reciters            reciter.Service
	Delivery            domain.DeliveryService
	NotificationService domain.NotificationService
}

// NewApp creates a new application instance with all dependencies initialized.
// The storage session is created but does not connect until the first upload.
func NewApp(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load config")
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	log := logger.NewLoggerWithLevel(level)

	paths := domain.NewPaths(cfg.DatabaseDir, cfg.StagingDir, cfg.Telegram.SessionFile)

	db, err := database.NewDB(paths.DatabaseDir, log)
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize database")
	}

	a := &App{
		log:    log,
		config: cfg,
		paths:  paths,
		db:     db,
	}

	if err := a.init(ctx, level); err != nil {
		db.Close()
		return nil, err
	}

	return a, nil
}

func (a *App) init(ctx context.Context, level zerolog.Level) error {
	fileRepo := repository.NewFileRepository(a.log)

	reciters, err := reciter.NewService(a.log, database.NewReciterRepo(a.log, a.db), fileRepo)
	if err != nil {
		return err
	}
	if err := reciters.Seed(ctx, a.config.RecitersFile); err != nil {
		return errors.Wrap(err, "failed to seed reciters")
	}

	var overrides map[string]domain.CaptionTemplates
	if a.config.CaptionsFile != "" {
		if overrides, err = fileRepo.GetCaptionTemplates(ctx, a.config.CaptionsFile); err != nil {
			return errors.Wrap(err, "failed to load captions")
		}
	}
	captions, err := caption.NewBuilder(a.config.DefaultLanguage, overrides)
	if err != nil {
		return errors.Wrap(err, "failed to build captions")
	}

	a.session = storage.NewSession(a.log, logger.NewZap(level), a.config.Telegram, a.paths.SessionPath)
	a.CacheRepo = database.NewCacheRepo(a.log, a.db)
	a.Reciters = reciters
	a.NotificationService = notification.NewService(a.log, a.config.DiscordWebhookURL)
	a.Delivery = delivery.NewService(
		a.log,
		a.config,
		a.CacheRepo,
		quran.NewService(a.log, a.config),
		staging.NewStager(a.log, a.paths.StagingDir, a.config.TransferTimeout),
		storage.NewUploader(a.log, a.session, a.config.UploadRate, a.config.UploadBurst),
		captions,
		a.NotificationService,
	)

	return nil
}

func (a *App) Config() *domain.Config {
	return a.config
}

// Session is the storage session, for commands that manage it directly.
func (a *App) Session() *storage.Session {
	return a.session
}

// Close tears down the storage session before the database so no upload
// can finish into a closed store.
func (a *App) Close() error {
	if a.session != nil {
		if err := a.session.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close storage session")
		}
	}

	if err := a.db.Close(); err != nil {
		return errors.Wrap(err, "failed to close database")
	}

	return nil
}

// Invalidate removes one cache entry and reports whether it existed.
func (a *App) Invalidate(ctx context.Context, key domain.CacheKey) (bool, error) {
	deleted, err := a.CacheRepo.Delete(ctx, key)
	if err != nil {
		return false, err
	}

	if deleted {
		a.log.Info().Str("key", key.String()).Msg("cache entry removed")
	} else {
		a.log.Debug().Str("key", key.String()).Msg("no cache entry to remove")
	}
	return deleted, nil
}

// Stats collects cache statistics and optionally sends them to the operator channel.
func (a *App) Stats(ctx context.Context, notify bool) (*domain.Statistics, error) {
	stats, err := a.CacheRepo.Stats(ctx)
	if err != nil {
		return nil, err
	}

	a.log.Info().
		Int("total", stats.TotalEntries).
		Int("surahs", stats.SurahEntries).
		Int("ayahs", stats.AyahEntries).
		Int("active_reciters", stats.ActiveReciters).
		Msg("cache statistics")

	if notify {
		if err := a.NotificationService.SendStats(ctx, *stats); err != nil {
			a.log.Warn().Err(err).Msg("Failed to send statistics notification")
		}
	}

	return stats, nil
}

// MigrateLegacy imports the database of the earlier bot. Reciters already
// known keep their current settings.
func (a *App) MigrateLegacy(ctx context.Context, legacyPath string) (*cache.MigrationResult, error) {
	return cache.MigrateCache(ctx, legacyPath, database.NewReciterRepo(a.log, a.db), a.CacheRepo, a.log)
}
