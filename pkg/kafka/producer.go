package kafka

import (
	"fmt"

	"github.com/IBM/sarama"
)

type ProducerConfig struct {
	Brokers      []string
	RetryMax     int
	RequiredAcks int
	ClientID     string
}

func newProducerConfig(cfg ProducerConfig) *sarama.Config {
	saramaCfg := sarama.NewConfig()
	if cfg.ClientID != "" {
		saramaCfg.ClientID = cfg.ClientID
	}
	saramaCfg.Producer.RequiredAcks = sarama.RequiredAcks(cfg.RequiredAcks)
	saramaCfg.Producer.Retry.Max = cfg.RetryMax
	saramaCfg.Producer.Return.Successes = true
	return saramaCfg
}

func NewProducer(cfg ProducerConfig) (sarama.SyncProducer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka producer: no brokers")
	}

	prod, err := sarama.NewSyncProducer(cfg.Brokers, newProducerConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	return prod, nil
}
