package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"costnest/internal/backend"
	"costnest/internal/backup"
	"costnest/internal/budget"
	"costnest/internal/cli"
	"costnest/internal/config"
	apphttp "costnest/internal/http"
	"costnest/internal/ledger"
	"costnest/internal/log"
	"costnest/internal/messages"
	"costnest/internal/pin"
	"costnest/internal/pricealert"
	"costnest/internal/settings"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(config.Load().LogLevel)
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	store, err := cli.OpenStore(ctx, logger, cfg)
	if err != nil {
		cli.Fatal(logger, "Failed to open data backend", err)
	}

	component := func(name string) *slog.Logger { return logger.WithComponent(name).Logger }

	st := settings.NewService(store.Store, settings.WithLogger(component(log.ComponentSettings)))
	if err := st.Bootstrap(ctx); err != nil {
		cli.Fatal(logger, "Failed to seed defaults", err)
	}
	current, err := st.Settings(ctx)
	if err != nil {
		cli.Fatal(logger, "Failed to read settings", err)
	}

	l := ledger.New(store.Store, st, ledger.WithLogger(component(log.ComponentLedger)))
	eng := budget.NewEngine(store.Store, l, st, budget.WithLogger(component(log.ComponentBudget)))
	bk := backup.NewService(store.Store, l, st, backup.WithLogger(component(log.ComponentBackup)))
	alerts := pricealert.NewService(store.Store, pricealert.WithLogger(component(log.ComponentPriceAlert)))
	mgr := pin.NewManager(store.Store, cfg.PINSalt, pin.WithLogger(component(log.ComponentPIN)))

	// A timeout saved from the settings screen wins over the environment.
	lockTimeout := cfg.LockTimeout
	if d := current.LockTimeout(); d > 0 {
		lockTimeout = d
	}

	srv := apphttp.NewServer(apphttp.Services{
		Store:       store.Store,
		Ledger:      l,
		Budget:      eng,
		Backup:      bk,
		Settings:    st,
		PriceAlerts: alerts,
		PIN:         mgr,
		Setup:       pin.NewSetup(mgr),
		Session:     pin.NewSession(mgr, lockTimeout),
		Dispatcher: messages.NewDispatcher(messages.Services{
			Ledger: l, Budget: eng, PriceAlerts: alerts, Backup: bk,
		}),
	}, apphttp.Options{
		Addr:                 ":" + cfg.Port,
		AllowOrigins:         cfg.CORSAllowOrigins,
		PINAttemptsPerMinute: cfg.PINAttemptsPerMinute,
		Logger:               logger.WithComponent(log.ComponentHTTP),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting costnest server",
			log.FieldOperation, log.OpStartup, "port", cfg.Port, log.FieldBackend, cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		logger.Info("Stopping server", log.FieldOperation, log.OpShutdown)
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err.Error(), "port", cfg.Port)
	}
	cli.RunCleanup(logger, 10*time.Second, func() error { return backend.Close(store) })
}
