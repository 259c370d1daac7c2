package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"leadcolor/internal/broker"
	"leadcolor/internal/config"
	"leadcolor/internal/logger"
)

type Base struct {
	Config   *config.Config
	Logger   logger.Logger
	Producer broker.Producer
	// Consumer shares the configured group with the other instances.
	Consumer broker.Consumer
	// Broadcast is private to this instance, for rule events and RPC replies.
	Broadcast broker.Consumer
}

func NewBase(cfg *config.Config, log logger.Logger) *Base {
	return &Base{
		Config: cfg,
		Logger: log,
	}
}

func (b *Base) InitBroker(serviceName, instanceID string) error {
	producer, err := broker.NewProducer(b.Config.Broker, b.Logger)
	if err != nil {
		return fmt.Errorf("failed to create producer: %w", err)
	}

	consumer, err := broker.NewConsumer(b.Config.Broker, "", b.Logger)
	if err != nil {
		producer.Close()
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	broadcast, err := broker.NewConsumer(b.Config.Broker, instanceID, b.Logger)
	if err != nil {
		producer.Close()
		consumer.Close()
		return fmt.Errorf("failed to create broadcast consumer: %w", err)
	}

	if serviceName != "" {
		if named, ok := producer.(interface{ SetServiceName(string) }); ok {
			named.SetServiceName(serviceName)
		}
		consumer.SetServiceName(serviceName)
		broadcast.SetServiceName(serviceName)
	}

	b.Producer = producer
	b.Consumer = consumer
	b.Broadcast = broadcast
	return nil
}

func (b *Base) ShutdownBroker() []error {
	var errs []error

	if b.Producer != nil {
		if err := b.Producer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("producer close error: %w", err))
		}
	}

	if b.Consumer != nil {
		if err := b.Consumer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("consumer close error: %w", err))
		}
	}

	if b.Broadcast != nil {
		if err := b.Broadcast.Close(); err != nil {
			errs = append(errs, fmt.Errorf("broadcast consumer close error: %w", err))
		}
	}

	return errs
}

func (b *Base) Shutdown(ctx context.Context, additionalShutdown func(ctx context.Context) []error) error {
	b.Logger.Info("Shutting down application...")

	var errs []error

	errs = append(errs, b.ShutdownBroker()...)

	if additionalShutdown != nil {
		errs = append(errs, additionalShutdown(ctx)...)
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}

	b.Logger.Info("Application exited successfully")
	return nil
}
