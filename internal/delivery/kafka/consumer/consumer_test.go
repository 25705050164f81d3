package consumer

import (
	"context"
	"sync"
	"testing"

	"github.com/IBM/sarama"
	"github.com/vogiaan1904/voyage-sync/internal/delivery/kafka"
	"github.com/vogiaan1904/voyage-sync/internal/models"
	"github.com/vogiaan1904/voyage-sync/internal/notification"
	"github.com/vogiaan1904/voyage-sync/pkg/logger"
)

type fakeRouter struct {
	mu     sync.Mutex
	events []models.NotificationEvent
	frames [][]byte
}

func (r *fakeRouter) Handle(_ context.Context, event models.NotificationEvent) notification.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return notification.Result{Event: event, Set: notification.Route(event), Applied: true}
}

func (r *fakeRouter) HandleFrame(ctx context.Context, data []byte) (notification.Result, error) {
	event, err := notification.DecodeSocketPayload(data)
	if err != nil {
		return notification.Result{}, err
	}
	r.mu.Lock()
	r.frames = append(r.frames, data)
	r.mu.Unlock()
	return r.Handle(ctx, event), nil
}

func (r *fakeRouter) HandleConversationFrame(context.Context, string, []byte) notification.Result {
	return notification.Result{}
}

type fakeSession struct {
	sarama.ConsumerGroupSession
	ctx    context.Context
	marked []int64
}

func (s *fakeSession) Context() context.Context { return s.ctx }

func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.marked = append(s.marked, msg.Offset)
}

type fakeClaim struct {
	sarama.ConsumerGroupClaim
	msgs chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.msgs }

func TestHandleNotificationPushed(t *testing.T) {
	tests := []struct {
		name       string
		value      string
		wantErr    bool
		wantKind   models.NotificationKind
		wantFrames int
	}{
		{
			name:       "frame",
			value:      `{"frame":{"type":{"addedToLFG":{}},"info":"","contentID":"7"}}`,
			wantKind:   models.KindAddedToLFG,
			wantFrames: 1,
		},
		{
			name:     "decoded kind",
			value:    `{"kind":"announcement","subject_id":"3"}`,
			wantKind: models.KindAnnouncement,
		},
		{
			name:     "unknown kind",
			value:    `{"kind":"somethingNew"}`,
			wantKind: models.KindUnknown,
		},
		{name: "not json", value: `{`, wantErr: true},
		{name: "empty envelope", value: `{"info":"x"}`, wantErr: true},
		{name: "frame without type", value: `{"frame":{"info":"x"}}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &fakeRouter{}
			c := NewConsumer(nil, r, "", logger.NewNopLogger())

			err := c.processMessage(context.Background(), &sarama.ConsumerMessage{
				Topic: kafka.TopicNotificationPushed,
				Value: []byte(tt.value),
			})
			if tt.wantErr {
				if err == nil {
					t.Fatal("processMessage: want error")
				}
				if len(r.events) != 0 {
					t.Fatalf("router called with %v", r.events)
				}
				return
			}
			if err != nil {
				t.Fatalf("processMessage: %v", err)
			}
			if len(r.events) != 1 || r.events[0].Kind != tt.wantKind {
				t.Fatalf("events: got %+v, want kind %v", r.events, tt.wantKind)
			}
			if len(r.frames) != tt.wantFrames {
				t.Fatalf("frames: got %d, want %d", len(r.frames), tt.wantFrames)
			}
		})
	}
}

func TestProcessMessageIgnoresOtherTopics(t *testing.T) {
	r := &fakeRouter{}
	c := NewConsumer(nil, r, "custom.topic", logger.NewNopLogger())

	err := c.processMessage(context.Background(), &sarama.ConsumerMessage{
		Topic: kafka.TopicNotificationPushed,
		Value: []byte(`{"kind":"announcement"}`),
	})
	if err != nil {
		t.Fatalf("processMessage: %v", err)
	}
	if len(r.events) != 0 {
		t.Fatalf("router called for a foreign topic: %v", r.events)
	}
}

func TestConsumeClaimMarksEveryMessage(t *testing.T) {
	r := &fakeRouter{}
	c := NewConsumer(nil, r, "", logger.NewNopLogger())

	msgs := make(chan *sarama.ConsumerMessage, 3)
	msgs <- &sarama.ConsumerMessage{Topic: kafka.TopicNotificationPushed, Offset: 10, Value: []byte(`{"kind":"announcement"}`)}
	msgs <- &sarama.ConsumerMessage{Topic: kafka.TopicNotificationPushed, Offset: 11, Value: []byte(`garbage`)}
	msgs <- &sarama.ConsumerMessage{Topic: kafka.TopicNotificationPushed, Offset: 12, Value: []byte(`{"kind":"fezUnreadMsg","subject_id":"9"}`)}
	close(msgs)

	ss := &fakeSession{ctx: context.Background()}
	if err := c.ConsumeClaim(ss, &fakeClaim{msgs: msgs}); err != nil {
		t.Fatalf("ConsumeClaim: %v", err)
	}

	if len(ss.marked) != 3 || ss.marked[2] != 12 {
		t.Fatalf("marked offsets: got %v, want [10 11 12]", ss.marked)
	}
	if len(r.events) != 2 {
		t.Fatalf("routed events: got %d, want 2", len(r.events))
	}
}
