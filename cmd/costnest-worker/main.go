package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"costnest/internal/amqp"
	"costnest/internal/backend"
	"costnest/internal/backup"
	"costnest/internal/budget"
	"costnest/internal/cli"
	"costnest/internal/config"
	"costnest/internal/ledger"
	"costnest/internal/log"
	"costnest/internal/messages"
	"costnest/internal/pricealert"
	"costnest/internal/settings"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(config.Load().LogLevel).WithComponent(log.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" {
		cli.Fatal(logger, "Worker needs a broker", errors.New("AMQP_URL is not set"))
	}

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

	l := ledger.New(store.Store, st, ledger.WithLogger(component(log.ComponentLedger)))
	eng := budget.NewEngine(store.Store, l, st, budget.WithLogger(component(log.ComponentBudget)))
	dispatcher := messages.NewDispatcher(messages.Services{
		Ledger:      l,
		Budget:      eng,
		PriceAlerts: pricealert.NewService(store.Store, pricealert.WithLogger(component(log.ComponentPriceAlert))),
		Backup:      backup.NewService(store.Store, l, st, backup.WithLogger(component(log.ComponentBackup))),
	})

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize AMQP client", err)
	}

	amqpLogger := logger.WithComponent(log.ComponentAMQP)
	g, gctx := errgroup.WithContext(log.IntoContext(ctx, amqpLogger))
	g.Go(func() error {
		amqpLogger.Info("Consuming requests",
			log.FieldOperation, log.OpStartup, "queue", cfg.AMQPQueue, "exchange", cfg.AMQPExchange)
		return client.Run(gctx, dispatcher)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", log.FieldError, err.Error())
	}
	cli.RunCleanup(logger, 10*time.Second, func() error {
		return errors.Join(client.Close(), backend.Close(store))
	})
}
