package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"smartassist/internal/notifier"
	"smartassist/pkg/config"
	"smartassist/pkg/kafka"
	kafka_config "smartassist/pkg/kafka/config"
	kafka_middleware "smartassist/pkg/kafka/middleware"
	"smartassist/pkg/rabbitmq"
	"smartassist/pkg/sealer"
)

const (
	ServiceName   = "notifier"
	RabbitMQQueue = "smartassist.notifier"
)

// consumer is satisfied by both the Kafka and the RabbitMQ consumers.
type consumer interface {
	Start(ctx context.Context) error
	Close() error
}

func main() {
	cfg := config.Load(ServiceName)
	cfg.Log.Info("Starting SmartAssist notifier")

	var sl *sealer.Sealer
	if cfg.ActionLinkKey != "" {
		var err error
		if sl, err = sealer.New(cfg.ActionLinkKey); err != nil {
			cfg.Log.Fatal("Invalid action link key", "error", err)
		}
	}

	mailer := notifier.NewSMTPMailer(notifier.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		User:     cfg.SMTPUser,
		Password: cfg.SMTPPassword,
	})
	n := notifier.New(mailer, sl, cfg.BaseURL, cfg.AdminEmail, cfg.Log)

	c := initConsumer(cfg, n)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := c.Start(ctx)
	if closeErr := c.Close(); closeErr != nil {
		cfg.Log.Error("Failed to close consumer", "error", closeErr)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		cfg.Log.Fatal("Consumer stopped unexpectedly", "error", err)
	}
	cfg.Log.Info("Notifier stopped gracefully")
}

func initConsumer(cfg *config.Config, n *notifier.Notifier) consumer {
	switch cfg.EventsDriver {
	case config.EventsKafka:
		kafkaCfg, err := kafka_config.Load()
		if err != nil {
			cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
		}
		kafkaCfg.LogConfiguration(cfg.Log)

		c, err := kafka.NewConsumer(kafkaCfg, cfg.KafkaLedgerTopic, cfg.KafkaNotifierGroup, cfg.KafkaLedgerDLQTopic, n.HandleKafkaMessage, cfg.Log)
		if err != nil {
			cfg.Log.Fatal("Failed to create Kafka consumer", "error", err)
		}
		if kafkaCfg.EnableMiddleware {
			c.Use(kafka_middleware.LoggingConsumerMiddleware(cfg.Log))
		}
		return c

	case config.EventsRabbitMQ:
		c, err := rabbitmq.NewConsumer(cfg.RabbitMQURL, RabbitMQQueue, []string{"booking.*"}, n.HandleDelivery, cfg.Log)
		if err != nil {
			cfg.Log.Fatal("Failed to create RabbitMQ consumer", "error", err)
		}
		return c

	default:
		cfg.Log.Fatal("Notifier needs EVENTS_DRIVER set to kafka or rabbitmq", "events_driver", cfg.EventsDriver)
		return nil
	}
}
