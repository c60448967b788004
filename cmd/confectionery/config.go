package main

import (
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"confectionery/pkg/domain/service"
	"confectionery/pkg/infrastructure/storage"
)

type config struct {
	RESTAddress string `envconfig:"REST_ADDRESS" default:":8000"`
	GRPCAddress string `envconfig:"GRPC_ADDRESS" default:":8081"`

	DatabaseDriver       string `envconfig:"DATABASE_DRIVER" default:"sqlite"`
	DatabaseURL          string `envconfig:"DATABASE_URL" default:"file:confectionery.db"`
	DatabaseMaxOpenConns int    `envconfig:"DATABASE_MAX_OPEN_CONNS" default:"10"`
	MigrateOnStart       bool   `envconfig:"MIGRATE_ON_START" default:"true"`

	RequestTimeout      time.Duration `envconfig:"REQUEST_TIMEOUT" default:"10s"`
	ShutdownTimeout     time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`
	HealthProbeInterval time.Duration `envconfig:"HEALTH_PROBE_INTERVAL" default:"5s"`

	OrderPriceSource string `envconfig:"ORDER_PRICE_SOURCE" default:"request"`

	KafkaBrokers string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic   string `envconfig:"KAFKA_TOPIC" default:"confectionery.orders"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
}

func parseEnv() (*config, error) {
	c := new(config)
	if err := envconfig.Process("", c); err != nil {
		return nil, errors.Wrap(err, "failed to parse env")
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *config) validate() error {
	switch c.DatabaseDriver {
	case storage.DriverSQLite, storage.DriverMySQL, storage.DriverPgx:
	default:
		return errors.Errorf("DATABASE_DRIVER must be one of sqlite, mysql, pgx, got %q", c.DatabaseDriver)
	}
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if _, err := service.ParsePriceSource(c.OrderPriceSource); err != nil {
		return errors.Wrap(err, "ORDER_PRICE_SOURCE")
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "LOG_LEVEL")
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return errors.Errorf("LOG_FORMAT must be json or text, got %q", c.LogFormat)
	}
	for name, d := range map[string]time.Duration{
		"REQUEST_TIMEOUT":       c.RequestTimeout,
		"SHUTDOWN_TIMEOUT":      c.ShutdownTimeout,
		"HEALTH_PROBE_INTERVAL": c.HealthProbeInterval,
	} {
		if d <= 0 {
			return errors.Errorf("%s must be positive", name)
		}
	}
	return nil
}

func (c *config) storage() storage.Config {
	return storage.Config{
		Driver:       c.DatabaseDriver,
		DSN:          c.DatabaseURL,
		MaxOpenConns: c.DatabaseMaxOpenConns,
	}
}

func setupLogging(c *config) {
	if c.LogFormat == "text" {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&log.JSONFormatter{})
	}
	level, _ := log.ParseLevel(c.LogLevel)
	log.SetLevel(level)
}
