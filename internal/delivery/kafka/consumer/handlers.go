package consumer

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/IBM/sarama"
	"github.com/vogiaan1904/voyage-sync/internal/delivery/kafka"
	"github.com/vogiaan1904/voyage-sync/internal/models"
	"github.com/vogiaan1904/voyage-sync/internal/notification"
)

var errEmptyNotification = errors.New("notification has neither frame nor kind")

func (c *Consumer) HandleNotificationPushed(ctx context.Context, message *sarama.ConsumerMessage) error {
	var e kafka.NotificationPushedEvent
	if err := json.Unmarshal(message.Value, &e); err != nil {
		c.l.Warnf(ctx, "delivery.kafka.consumer.handlers.HandleNotificationPushed: %v", err)
		return err
	}

	var res notification.Result
	switch {
	case len(e.Frame) > 0:
		r, err := c.router.HandleFrame(ctx, e.Frame)
		if err != nil {
			return err
		}
		res = r
	case e.Kind != "":
		res = c.router.Handle(ctx, models.NotificationEvent{
			Kind:      models.ParseNotificationKind(e.Kind),
			SubjectID: e.SubjectID,
			Info:      e.Info,
			Raw:       message.Value,
		})
	default:
		return errEmptyNotification
	}

	c.l.Debugf(ctx, "delivery.kafka.consumer.handlers.HandleNotificationPushed: %s applied=%t keys=%d",
		res.Event.Kind, res.Applied, res.Set.Len())
	return nil
}
