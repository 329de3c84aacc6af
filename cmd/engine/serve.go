package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"smarthub/internal/db"
	"smarthub/internal/engine"
	"smarthub/internal/metrics"
	"smarthub/internal/mqtt"
	"smarthub/internal/notifier"
	"smarthub/internal/redis"
	"smarthub/internal/rules"
	"smarthub/internal/scheduler"
	"smarthub/internal/taskqueue"
	"smarthub/internal/things"
	"smarthub/internal/web"
)

const hubNotifier = "hub"

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the hub: device bridge, rule engine and HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(ctx context.Context, opts *rootOptions) error {
	cfg, logger, err := setup(opts)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := db.Open(ctx, cfg.Database.URL, logger)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	redisClient, err := redis.NewRedisClient(ctx, cfg.Redis.Addr)
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	defer redisClient.Close()

	mqttClient, err := mqtt.NewMQTTClient(cfg.MQTT.Broker, cfg.MQTT.ClientID, things.Subscriptions, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to MQTT: %w", err)
	}
	defer mqttClient.Disconnect(250)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if err := metrics.Register(reg); err != nil {
		return err
	}

	bus := things.NewBus()
	defer bus.Close()
	bridge := things.NewBridge(mqttClient, things.NewRedisStateCache(redisClient), bus, logger)

	sched := scheduler.NewScheduler(time.Local, logger)
	sched.Start()
	defer sched.Stop()

	outlets := notifier.NewRegistry()
	outlets.Register(hubNotifier,
		notifier.NewLogOutlet("log", logger),
		notifier.NewMQTTOutlet("mqtt", mqttClient),
	)
	outlets.SetDefault(cfg.Notifications.DefaultNotifier, cfg.Notifications.DefaultOutlet)

	notifiers := outlets
	if cfg.Notifications.Queue {
		queue := taskqueue.NewQueue(cfg.Redis.Addr, outlets, logger)
		if err := queue.Start(); err != nil {
			return err
		}
		defer queue.Stop()
		notifiers = taskqueue.Wrap(outlets, queue.Client())
	}

	eng := engine.NewEngine(store, &rules.Env{
		Things:    bridge,
		Bus:       bus,
		Notifiers: notifiers,
		Scheduler: sched,
		Logger:    logger,
	}, logger)
	defer eng.Stop()

	webServer := web.NewWebServer(eng, cfg.JWT.Secret, reg, logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return bridge.Run(ctx) })
	g.Go(func() error { return webServer.Run(ctx, fmt.Sprintf(":%d", cfg.App.Port)) })
	g.Go(func() error {
		if _, err := eng.GetRules(ctx); err != nil {
			logger.Error("Initial rule load failed", zap.Error(err))
		}
		return nil
	})
	g.Go(func() error {
		startMDNSServer(ctx, cfg.App.LocalName, logger)
		return nil
	})

	logger.Info("Hub started", zap.Int("port", cfg.App.Port))
	err = g.Wait()
	logger.Info("Shutting down")
	return err
}
