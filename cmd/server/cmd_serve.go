package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/example/orderdesk/internal/events"
	"github.com/example/orderdesk/internal/redisx"
	"github.com/example/orderdesk/internal/routes"
	"github.com/example/orderdesk/internal/services"
)

// orderdesk serve: start the HTTP server and the order sweeper.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server and the auto-finalize sweeper",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		rt, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer rt.close()
		return serve(ctx, rt)
	},
}

func serve(ctx context.Context, rt *runtime) error {
	cfg, log := rt.cfg, rt.log
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	orderEvents := services.MultiEvents{
		services.NewTelegramService(cfg.TelegramBotToken, cfg.TelegramAdminChat, log),
	}

	var producer *events.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer = events.NewProducer(cfg.KafkaBrokers, cfg.KafkaOrderTopic, 1024, log)
		producer.Start(ctx)
		orderEvents = append(orderEvents, producer)
		log.Info("kafka publisher enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaOrderTopic)
	}

	var locker services.Locker
	if cfg.RedisAddr != "" {
		rdb, err := redisx.New(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return err
		}
		defer rdb.Close()
		locker = redisx.NewLocker(rdb, uuid.NewString())
		log.Info("sweeper lock enabled", "redis", cfg.RedisAddr)
	}

	authService := services.NewAuthService(rt.store.Users, rt.mailer(), rt.authConfig(), log)
	orderService := services.NewOrderService(rt.store, orderEvents, log)
	svc := routes.Services{
		Auth:     authService,
		Users:    services.NewUserService(rt.store, rt.authConfig(), log),
		Products: services.NewProductService(rt.store.Products, log),
		Orders:   orderService,
	}

	app := routes.NewApp(svc, routes.DefaultOptions(cfg.CORSOrigins), log)

	sweeper := services.NewSweeper(orderService, locker, cfg.SweepInterval, log)
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		sweeper.Run(ctx)
	}()

	listenErr := make(chan error, 1)
	go func() {
		log.Info("starting server", "port", cfg.AppPort)
		listenErr <- app.Listen(":" + cfg.AppPort)
	}()

	var err error
	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err = <-listenErr:
	}
	cancel()

	if shutdownErr := app.ShutdownWithTimeout(10 * time.Second); shutdownErr != nil {
		log.Warn("server shutdown", "error", shutdownErr)
	}

	<-sweepDone
	if producer != nil {
		producer.WaitClosed()
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
