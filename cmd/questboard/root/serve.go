package root

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/fastygo/questboard/api/handler"
	"github.com/fastygo/questboard/internal/infrastructure/monitor"
	"github.com/fastygo/questboard/internal/middleware"
	"github.com/fastygo/questboard/internal/router"
	"github.com/fastygo/questboard/internal/services"
	"github.com/fastygo/questboard/internal/services/lifecycle"
	"github.com/fastygo/questboard/pkg/httpcontext"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the snapshot over a local HTTP API and keep it refreshed",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := openApp(false)
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), a, cleanup)
		},
	}
}

func runServer(parent context.Context, a *app, cleanup func()) error {
	cfg, zapLogger := a.cfg, a.logger

	appCtx, cancel := context.WithCancel(parent)
	defer cancel()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	manager.Listen(cancel)
	manager.Register("app", func(context.Context) error {
		cleanup()
		return nil
	})

	mon := monitor.New(a.remote, a.store, a.cache, monitor.Options{
		Interval: cfg.Refresh.MonitorInterval,
	}, zapLogger.Named("monitor"))
	mon.Start()
	manager.Register("monitor", func(ctx context.Context) error {
		mon.Stop()
		return nil
	})

	if cfg.Refresh.Enabled {
		refresher, err := services.NewAutoRefresher(a.orch, mon, zapLogger.Named("refresher"), services.RefresherConfig{
			Interval: cfg.Refresh.Interval,
			Timeout:  cfg.Context.RequestTimeout,
		})
		if err != nil {
			_ = manager.Shutdown(context.Background())
			return err
		}
		refresher.Start()
		manager.Register("auto_refresh", func(ctx context.Context) error {
			refresher.Stop(ctx)
			return nil
		})
	}

	// Serve reads straight away when no snapshot was archived; the first cycle runs in the background.
	if _, err := a.orch.Snapshot(); err != nil {
		go func() {
			ctx, cancelRefresh := context.WithTimeout(appCtx, cfg.Context.RequestTimeout)
			defer cancelRefresh()
			if err := a.orch.Refresh(ctx); err != nil {
				zapLogger.Warn("initial refresh failed", zap.Error(err))
			}
		}()
	}

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)
	handlers := router.Handlers{
		Board:  apiHandler.NewBoardHandler(a.orch, ctxAdapter, zapLogger),
		Action: apiHandler.NewActionHandler(a.dispatcher, ctxAdapter, zapLogger),
		Health: apiHandler.NewHealthHandler(mon, a.orch, ctxAdapter, zapLogger),
	}
	handler := router.New(handlers, middleware.Recover(zapLogger), middleware.AccessLog(zapLogger))

	server := &fasthttp.Server{
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Concurrency:  cfg.HTTP.MaxConn,
		Name:         cfg.AppName,
	}

	serveErr := make(chan error, 1)
	go func() {
		zapLogger.Info("server started", zap.String("address", cfg.Address()))
		if err := server.ListenAndServe(cfg.Address()); err != nil {
			serveErr <- err
			cancel()
		}
	}()

	manager.Register("http_server", func(ctx context.Context) error {
		return server.ShutdownWithContext(ctx)
	})

	<-appCtx.Done()

	var runErr error
	select {
	case runErr = <-serveErr:
		zapLogger.Error("server crashed", zap.Error(runErr))
	default:
	}
	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
	return runErr
}
