package root

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fastygo/questboard/internal/config"
	"github.com/fastygo/questboard/internal/engine"
	"github.com/fastygo/questboard/internal/infrastructure/content"
	"github.com/fastygo/questboard/internal/infrastructure/snapshot"
	"github.com/fastygo/questboard/pkg/logger"
	"github.com/fastygo/questboard/repository/habitica"
	"github.com/fastygo/questboard/usecase"
	"github.com/fastygo/questboard/usecase/orchestrator"
)

// app bundles the components every command needs.
type app struct {
	cfg        *config.Config
	logger     *zap.Logger
	remote     *habitica.Client
	cache      *content.Cache
	store      *snapshot.Store
	orch       *orchestrator.Orchestrator
	dispatcher *usecase.Dispatcher
}

// openApp wires the client, caches and orchestrator and restores the last archived
// snapshot. quiet keeps log lines off stdout.
func openApp(quiet bool) (*app, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	zapLogger, err := logger.New(logger.Config{
		Level:      cfg.Logger.Level,
		Encoding:   cfg.Logger.Encoding,
		File:       cfg.Logger.File,
		MaxSizeMB:  cfg.Logger.MaxSizeMB,
		MaxBackups: cfg.Logger.MaxBackups,
		MaxAgeDays: cfg.Logger.MaxAgeDays,
		Quiet:      quiet,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}

	remote := habitica.New(habitica.Config{
		BaseURL:       cfg.Remote.BaseURL,
		UserID:        cfg.Remote.UserID,
		APIKey:        cfg.Remote.APIKey,
		ClientID:      cfg.Remote.ClientID,
		Timeout:       cfg.Remote.Timeout,
		RatePerMinute: cfg.Remote.RatePerMinute,
		Burst:         cfg.Remote.Burst,
	}, zapLogger.Named("habitica"))

	cache := content.New(remote, content.Options{
		Dir:    cfg.Cache.Dir,
		MaxAge: cfg.Cache.ContentMaxAge,
	}, zapLogger.Named("content"))

	store, err := snapshot.Open(cfg.Snapshot.Path, cfg.Snapshot.Retain)
	if err != nil {
		_ = zapLogger.Sync()
		return nil, nil, fmt.Errorf("open snapshot archive: %w", err)
	}

	eng := engine.New(engine.Config{
		BaseMaxHealth: cfg.Engine.BaseMaxHealth,
		BaseMaxMana:   cfg.Engine.BaseMaxMana,
	}, zapLogger.Named("engine"))

	orch := orchestrator.New(remote, cache, eng, zapLogger.Named("orchestrator"),
		orchestrator.WithArchive(store))
	if _, err := orch.Restore(); err != nil {
		zapLogger.Warn("snapshot restore failed", zap.Error(err))
	}

	dispatcher := usecase.NewDispatcher()
	orch.Register(dispatcher)

	a := &app{
		cfg:        cfg,
		logger:     zapLogger,
		remote:     remote,
		cache:      cache,
		store:      store,
		orch:       orch,
		dispatcher: dispatcher,
	}
	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Context.ShutdownTimeout)
		defer cancel()
		if err := orch.Close(ctx); err != nil {
			zapLogger.Warn("pending refreshes abandoned", zap.Error(err))
		}
		_ = store.Close()
		_ = zapLogger.Sync()
	}
	return a, cleanup, nil
}

// ensureSnapshot refreshes when nothing has been committed or archived yet.
func (a *app) ensureSnapshot(ctx context.Context, force bool) error {
	if !force {
		if _, err := a.orch.Snapshot(); err == nil {
			return nil
		}
	}
	return a.orch.Refresh(ctx)
}
