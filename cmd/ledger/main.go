package main

import (
	"context"
	"errors"
	"os"
	"time"

	"ledger/internal/amqp"
	"ledger/internal/backend"
	"ledger/internal/cache"
	"ledger/internal/cli"
	"ledger/internal/config"
	apphttp "ledger/internal/http"
	"ledger/internal/localstore"
	"ledger/internal/log"
	"ledger/internal/repository"
	"ledger/internal/storage"
	"ledger/internal/worker"
)

func main() {
	cfg, logger := cli.Bootstrap(log.ComponentApp)

	if err := run(cfg, logger); err != nil {
		logger.Error("Ledger stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Ledger stopped gracefully")
}

func run(cfg *config.Config, logger *log.Logger) (err error) {
	ctx, stop := cli.SignalContext()
	defer stop()

	var closers []func() error
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			err = errors.Join(err, closers[i]())
		}
	}()

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	res, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend)).CreateBackend(ctx, bcfg)
	if err != nil {
		return err
	}
	if res.Cleanup != nil {
		closers = append(closers, res.Cleanup)
	}

	kv, err := storage.NewKVStore(cfg.LocalDBPath)
	if err != nil {
		return err
	}
	closers = append(closers, kv.Close)
	store := localstore.New(kv, cfg.LocalStorageKey,
		localstore.WithLogger(logger.WithComponent(log.ComponentLocalStore)))

	repoOpts := []repository.Option{repository.WithLogger(logger.WithComponent(log.ComponentRepository))}
	if cfg.AMQPURL != "" {
		amqpLogger := logger.WithComponent(log.ComponentAMQP)
		publisher, err := amqp.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, amqpLogger)
		if err != nil {
			return err
		}
		closers = append(closers, publisher.Close)
		repoOpts = append(repoOpts, repository.WithListener(repository.PublishTo(publisher, 5*time.Second, amqpLogger)))
		logger.Info("Publishing transaction events", "exchange", cfg.AMQPExchange)
	}
	registry := repository.NewRegistry(res.Backend, store, repoOpts...)
	registry.SetIdleTimeout(cfg.SessionIdleTimeout)

	srv := apphttp.NewServer(":"+cfg.Port, registry, res.Backend,
		apphttp.WithLogger(logger.WithComponent(log.ComponentHTTP)),
		apphttp.WithPageSize(cfg.PageSize))

	caches := cache.NewManager(logger)
	for _, c := range res.Caches {
		caches.Register(c)
	}
	caches.Register(srv.ChartCache())
	caches.Register(registry)
	caches.StartCleanup(time.Minute)
	defer caches.Stop()

	processor := worker.NewReconcileProcessor(store, worker.RegistryReconciler(registry),
		worker.Config{Interval: cfg.ReconcileInterval}, logger.WithComponent(log.ComponentWorker))
	if err := processor.Start(ctx); err != nil {
		return err
	}

	logger.Info("Starting ledger server", "port", cfg.Port, "backend", cfg.Backend)
	return cli.Serve(ctx, logger, srv, 30*time.Second, func(ctx context.Context) error {
		return processor.Stop(ctx)
	})
}
