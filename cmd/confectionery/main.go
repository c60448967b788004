package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"confectionery/pkg/domain/service"
	"confectionery/pkg/infrastructure/events"
	"confectionery/pkg/infrastructure/fixtures"
	"confectionery/pkg/infrastructure/storage"
	"confectionery/transport"
)

func main() {
	log.SetFormatter(&log.JSONFormatter{})

	app := &cli.App{
		Name:  "confectionery",
		Usage: "confectionery back-office order API",
		Before: func(c *cli.Context) error {
			cfg, err := parseEnv()
			if err != nil {
				return err
			}
			setupLogging(cfg)
			c.App.Metadata = map[string]interface{}{"config": cfg}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the REST and gRPC health servers",
				Action: serve,
			},
			{
				Name:  "migrate",
				Usage: "apply or revert the database schema",
				Subcommands: []*cli.Command{
					{
						Name:  "up",
						Usage: "apply all migrations",
						Action: func(c *cli.Context) error {
							return storage.Migrate(configFrom(c).storage(), storage.Up)
						},
					},
					{
						Name:  "down",
						Usage: "revert all migrations",
						Action: func(c *cli.Context) error {
							return storage.Migrate(configFrom(c).storage(), storage.Down)
						},
					},
				},
			},
			{
				Name:  "seed",
				Usage: "import clients, categories and products from a JSON catalog",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "file",
						Value: "fixtures/catalog.json",
						Usage: "path to the catalog JSON file",
					},
				},
				Action: seed,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Fatal("command failed")
	}
}

func configFrom(c *cli.Context) *config {
	return c.App.Metadata["config"].(*config)
}

func serve(c *cli.Context) error {
	cfg := configFrom(c)

	if cfg.MigrateOnStart {
		if err := storage.Migrate(cfg.storage(), storage.Up); err != nil {
			return err
		}
	}

	store, err := storage.Open(c.Context, cfg.storage())
	if err != nil {
		return err
	}
	defer store.Close()

	dispatcher := events.MultiDispatcher{events.NewLogDispatcher(log.StandardLogger())}
	if brokers := events.ParseBrokers(cfg.KafkaBrokers); len(brokers) > 0 {
		kafkaDispatcher := events.NewKafkaDispatcher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kafkaDispatcher.Close()
		dispatcher = append(dispatcher, kafkaDispatcher)
		log.WithFields(log.Fields{"brokers": brokers, "topic": cfg.KafkaTopic}).Info("publishing order events to kafka")
	}

	priceSource, _ := service.ParsePriceSource(cfg.OrderPriceSource)
	orders := service.NewOrderService(store, store, dispatcher, priceSource)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:    cfg.RESTAddress,
		Handler: transport.Router(orders, store, transport.NewMetrics(), cfg.RequestTimeout),
	}
	healthServer := transport.NewHealthServer(store, cfg.HealthProbeInterval)
	grpcServer := grpc.NewServer()
	healthServer.Register(grpcServer)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithFields(log.Fields{"url": cfg.RESTAddress}).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return errors.Wrap(err, "rest server")
		}
		return nil
	})
	g.Go(func() error {
		lis, err := net.Listen("tcp", cfg.GRPCAddress)
		if err != nil {
			return errors.Wrap(err, "grpc listen")
		}
		log.WithFields(log.Fields{"url": cfg.GRPCAddress}).Info("Starting grpc health server")
		return errors.Wrap(grpcServer.Serve(lis), "grpc server")
	})
	g.Go(func() error {
		return healthServer.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		grpcServer.GracefulStop()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func seed(c *cli.Context) error {
	cfg := configFrom(c)

	catalog, err := fixtures.LoadCatalog(c.String("file"))
	if err != nil {
		return err
	}

	store, err := storage.Open(c.Context, cfg.storage())
	if err != nil {
		return err
	}
	defer store.Close()

	result, err := service.NewCatalogService(store).Seed(c.Context, catalog)
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"categories": len(result.CategoryIDs),
		"clients":    len(result.ClientIDs),
		"products":   len(result.ProductIDs),
	}).Info("catalog imported")
	return nil
}
