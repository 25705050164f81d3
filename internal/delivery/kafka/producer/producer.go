package producer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	kafka "github.com/vogiaan1904/voyage-sync/internal/delivery/kafka"
	"github.com/vogiaan1904/voyage-sync/internal/models"
	"github.com/vogiaan1904/voyage-sync/internal/notification"
	"github.com/vogiaan1904/voyage-sync/pkg/logger"
)

type Producer interface {
	notification.InvalidationPublisher
	Close() error
}

type implProducer struct {
	l      logger.Logger
	prod   sarama.SyncProducer
	topic  string
	origin string
	now    func() time.Time
}

// NewProducer publishes every applied invalidation set to topic. An empty
// topic means kafka.TopicCacheInvalidated. origin identifies this process.
func NewProducer(prod sarama.SyncProducer, topic, origin string, l logger.Logger) Producer {
	if topic == "" {
		topic = kafka.TopicCacheInvalidated
	}
	return &implProducer{
		l:      l,
		prod:   prod,
		topic:  topic,
		origin: origin,
		now:    time.Now,
	}
}

func (p *implProducer) PublishInvalidation(ctx context.Context, event models.NotificationEvent, set models.InvalidationSet) error {
	now := p.now()
	val, err := json.Marshal(kafka.CacheInvalidatedEvent{
		EventID:   uuid.NewString(),
		Origin:    p.origin,
		Kind:      event.Kind.String(),
		SubjectID: event.SubjectID,
		Keys:      set.Strings(),
		Timestamp: now,
	})
	if err != nil {
		p.l.Errorf(ctx, "delivery.kafka.producer.producer.PublishInvalidation: %v", err)
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Value: sarama.ByteEncoder(val),
		Headers: []sarama.RecordHeader{
			{Key: []byte(kafka.HeaderTimestamp), Value: []byte(now.Format(time.RFC3339))},
			{Key: []byte(kafka.HeaderOrigin), Value: []byte(p.origin)},
		},
	}
	// Partition by subject so one conversation's invalidations stay ordered.
	if event.SubjectID != "" {
		msg.Key = sarama.StringEncoder(event.SubjectID)
	}

	_, _, err = p.prod.SendMessage(msg)
	return err
}

func (p *implProducer) Close() error {
	return p.prod.Close()
}
