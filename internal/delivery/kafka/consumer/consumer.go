package consumer

import (
	"context"
	"sync"

	"github.com/IBM/sarama"
	"github.com/vogiaan1904/voyage-sync/internal/delivery/kafka"
	"github.com/vogiaan1904/voyage-sync/internal/notification"
	"github.com/vogiaan1904/voyage-sync/pkg/logger"
)

type Consumer struct {
	consGr sarama.ConsumerGroup
	router notification.Router
	topic  string
	l      logger.Logger
	wg     sync.WaitGroup
}

// NewConsumer feeds pushed notifications from topic into router. An empty
// topic means kafka.TopicNotificationPushed.
func NewConsumer(
	consGr sarama.ConsumerGroup,
	router notification.Router,
	topic string,
	l logger.Logger,
) *Consumer {
	if topic == "" {
		topic = kafka.TopicNotificationPushed
	}
	return &Consumer{
		consGr: consGr,
		router: router,
		topic:  topic,
		l:      l,
	}
}

func (c *Consumer) processMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	switch msg.Topic {
	case c.topic:
		return c.HandleNotificationPushed(ctx, msg)
	default:
		c.l.Warnf(ctx, "delivery.kafka.consumer.consumer.processMessage: unknown topic %s", msg.Topic)
		return nil
	}
}

func (c *Consumer) Start(ctx context.Context) error {
	topics := []string{c.topic}
	c.wg.Go(func() {
		for {
			if err := c.consGr.Consume(ctx, topics, c); err != nil {
				c.l.Errorf(ctx, "delivery.kafka.consumer.consumer.Start: %v", err)
			}

			if ctx.Err() != nil {
				c.l.Infof(ctx, "delivery.kafka.consumer.consumer.Start: %v", ctx.Err())
				return
			}
		}
	})

	c.wg.Go(func() {
		for err := range c.consGr.Errors() {
			c.l.Errorf(ctx, "delivery.kafka.consumer.consumer.Start: %v", err)
		}
	})

	c.l.Infof(ctx, "Consumer is consuming topics: %v", topics)
	return nil
}

func (c *Consumer) Close() error {
	if err := c.consGr.Close(); err != nil {
		return err
	}

	c.wg.Wait()
	return nil
}

func (c *Consumer) Setup(sarama.ConsumerGroupSession) error {
	c.l.Debug(context.Background(), "Consumer group session started")
	return nil
}

func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error {
	c.l.Debug(context.Background(), "Consumer group session ended")
	return nil
}

func (c *Consumer) ConsumeClaim(ss sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message := <-claim.Messages():
			if message == nil {
				return nil
			}

			if err := c.processMessage(ss.Context(), message); err != nil {
				c.l.Errorf(ss.Context(), "delivery.kafka.consumer.consumer.ConsumeClaim: topic %s offset %d: %v",
					message.Topic, message.Offset, err)
			}

			// Malformed notifications are never retried.
			ss.MarkMessage(message, "")

		case <-ss.Context().Done():
			return nil
		}
	}
}
