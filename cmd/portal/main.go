package main

import (
	"context"

	announcementhandler "smartassist/internal/announcements/handler"
	announcementrepo "smartassist/internal/announcements/repository"
	announcementservice "smartassist/internal/announcements/service"
	announcementvalidator "smartassist/internal/announcements/validator"
	"smartassist/internal/assistant"
	bookinghandler "smartassist/internal/bookings/handler"
	bookingrepo "smartassist/internal/bookings/repository"
	bookingservice "smartassist/internal/bookings/service"
	bookingvalidator "smartassist/internal/bookings/validator"
	"smartassist/internal/events"
	"smartassist/internal/notifier"
	"smartassist/pkg/app"
	"smartassist/pkg/client"
	"smartassist/pkg/config"
	"smartassist/pkg/kafka"
	kafka_config "smartassist/pkg/kafka/config"
	kafka_middleware "smartassist/pkg/kafka/middleware"
	"smartassist/pkg/locker"
	"smartassist/pkg/rabbitmq"
	"smartassist/pkg/sealer"
)

const ServiceName = "portal"

func main() {
	cfg := config.Load(ServiceName)

	if cfg.UsesMongo() {
		cfg.SetMongo()
	}
	if cfg.UsesRedis() {
		cfg.SetRedis()
	}

	cfg.Log.Info("Starting SmartAssist portal service")
	serverApp := app.NewApplication(cfg)

	sl := initSealer(cfg)
	bus := initEvents(cfg, serverApp, sl)
	lk := initLocker(cfg)

	bookingService, announcementService := initServices(cfg, lk, bus, sl)
	gateway := assistant.NewGateway(client.NewHttpClient(cfg.AssistantURL, cfg.AssistantTimeout), cfg.Log)

	serverApp.SetApp(
		bookinghandler.NewBookingHandler(bookingService, cfg.Log),
		announcementhandler.NewAnnouncementHandler(announcementService, cfg.Log),
		assistant.NewHandler(gateway, int64(cfg.MaxUploadSize), cfg.Log),
	)
	serverApp.Run()
}

func initSealer(cfg *config.Config) *sealer.Sealer {
	if cfg.ActionLinkKey == "" {
		cfg.Log.Warn("ACTION_LINK_KEY not set, one-click approval links are disabled")
		return nil
	}
	sl, err := sealer.New(cfg.ActionLinkKey)
	if err != nil {
		cfg.Log.Fatal("Invalid action link key", "error", err)
	}
	return sl
}

func initLocker(cfg *config.Config) locker.Locker {
	switch cfg.LockDriver {
	case config.LockMongo:
		db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
		return locker.NewMongoLocker(db, cfg.LockTTL, cfg.LockWaitTimeout)
	case config.LockRedis:
		return locker.NewRedisLocker(cfg.Client.Redis, cfg.LockTTL, cfg.LockWaitTimeout)
	default:
		return locker.NewMemoryLocker(cfg.LockWaitTimeout)
	}
}

// initEvents builds the change feed. Broker connections are closed after the
// bus has drained.
func initEvents(cfg *config.Config, serverApp *app.Application, sl *sealer.Sealer) *events.Bus {
	var observers []events.Observer
	var closers []func() error

	switch cfg.EventsDriver {
	case config.EventsKafka:
		kafkaCfg, err := kafka_config.Load()
		if err != nil {
			cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
		}
		kafkaCfg.LogConfiguration(cfg.Log)

		producer, err := kafka.NewProducer(kafkaCfg, cfg.KafkaLedgerTopic, cfg.KafkaLedgerDLQTopic, cfg.Log)
		if err != nil {
			cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
		}
		if kafkaCfg.EnableMiddleware {
			producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
		}
		observers = append(observers, events.NewKafkaObserver(producer))
		closers = append(closers, producer.Close)

	case config.EventsRabbitMQ:
		publisher, err := rabbitmq.NewPublisher(cfg.RabbitMQURL, cfg.Log)
		if err != nil {
			cfg.Log.Fatal("Failed to connect to RabbitMQ", "error", err)
		}
		observers = append(observers, events.NewRabbitMQObserver(publisher))
		closers = append(closers, publisher.Close)
	}

	if cfg.NotifyInline {
		observers = append(observers, notifier.New(newMailer(cfg), sl, cfg.BaseURL, cfg.AdminEmail, cfg.Log))
		cfg.Log.Info("Inline mail notifications enabled")
	}

	bus := events.NewBus(cfg.Log, cfg.EventsQueueSize, observers...)
	serverApp.OnShutdown("events", func(ctx context.Context) error {
		err := bus.Close(ctx)
		for _, c := range closers {
			if cerr := c(); cerr != nil && err == nil {
				err = cerr
			}
		}
		return err
	})

	cfg.Log.Info("Change feed configured", "driver", cfg.EventsDriver, "observers", len(observers))
	return bus
}

func newMailer(cfg *config.Config) notifier.Mailer {
	return notifier.NewSMTPMailer(notifier.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		User:     cfg.SMTPUser,
		Password: cfg.SMTPPassword,
	})
}

func initServices(cfg *config.Config, lk locker.Locker, bus events.Publisher, sl *sealer.Sealer) (bookingservice.BookingService, announcementservice.AnnouncementService) {
	var bookings bookingrepo.BookingRepository
	var announcements announcementrepo.AnnouncementRepository
	if cfg.StorageDriver == config.StorageMongo {
		bookings = bookingrepo.NewMongoBookingRepository(cfg)
		announcements = announcementrepo.NewMongoAnnouncementRepository(cfg)
	} else {
		bookings = bookingrepo.NewMemoryBookingRepository()
		announcements = announcementrepo.NewMemoryAnnouncementRepository()
	}

	bookingService := bookingservice.NewBookingService(
		bookings,
		lk,
		bookingvalidator.NewBookingValidator(cfg.Log),
		cfg,
		bookingservice.WithPublisher(bus),
		bookingservice.WithSealer(sl),
	)

	announcementService := announcementservice.NewAnnouncementService(
		announcements,
		lk,
		announcementvalidator.NewAnnouncementValidator(cfg.Log),
		cfg,
		announcementservice.WithPublisher(bus),
	)

	cfg.Log.Info("Ledger services initialized", "storage", cfg.StorageDriver, "locker", cfg.LockDriver)
	return bookingService, announcementService
}
