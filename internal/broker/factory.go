package broker

import (
	"fmt"

	"leadcolor/internal/config"
	"leadcolor/internal/logger"
)

func NewProducer(cfg config.BrokerConfig, log logger.Logger) (Producer, error) {
	switch cfg.Type {
	case "kafka":
		return NewKafkaProducer(cfg.Kafka, log), nil
	default:
		return nil, fmt.Errorf("unknown broker type: %s", cfg.Type)
	}
}

// NewConsumer builds a consumer in the configured group. A non-empty
// groupSuffix gives the consumer its own group so every instance sees every
// message, as rule events and RPC replies require.
func NewConsumer(cfg config.BrokerConfig, groupSuffix string, log logger.Logger) (Consumer, error) {
	switch cfg.Type {
	case "kafka":
		kafkaCfg := cfg.Kafka
		if groupSuffix != "" {
			kafkaCfg.GroupID = kafkaCfg.GroupID + "-" + groupSuffix
		}
		return NewKafkaConsumer(kafkaCfg, log), nil
	default:
		return nil, fmt.Errorf("unknown broker type: %s", cfg.Type)
	}
}
