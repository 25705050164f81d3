package kafka

import (
	"fmt"

	"github.com/IBM/sarama"
)

type ConsumerConfig struct {
	Brokers  []string
	GroupID  string
	ClientID string
	// OldestOffset starts a new group at the beginning of the topic instead
	// of only consuming notifications pushed after startup.
	OldestOffset bool
}

func newConsumerConfig(cfg ConsumerConfig) *sarama.Config {
	saramaCfg := sarama.NewConfig()
	saramaCfg.Version = sarama.V2_8_0_0
	if cfg.ClientID != "" {
		saramaCfg.ClientID = cfg.ClientID
	}
	saramaCfg.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaCfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	if cfg.OldestOffset {
		saramaCfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	}
	saramaCfg.Consumer.Return.Errors = true
	return saramaCfg
}

func NewConsumer(cfg ConsumerConfig) (sarama.ConsumerGroup, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka consumer: no brokers")
	}
	if cfg.GroupID == "" {
		return nil, fmt.Errorf("kafka consumer: group id is required")
	}

	consGroup, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, newConsumerConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer group: %w", err)
	}

	return consGroup, nil
}
