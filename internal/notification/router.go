package notification

import (
	"context"
	"errors"
	"fmt"

	"github.com/vogiaan1904/voyage-sync/internal/models"
	"github.com/vogiaan1904/voyage-sync/internal/querycache"
	"github.com/vogiaan1904/voyage-sync/pkg/logger"
)

// InvalidationPublisher receives every applied set, e.g. for an audit topic.
type InvalidationPublisher interface {
	PublishInvalidation(ctx context.Context, event models.NotificationEvent, set models.InvalidationSet) error
}

// Result describes one handled event.
type Result struct {
	Event   models.NotificationEvent
	Set     models.InvalidationSet
	Applied bool
	Failed  []models.CacheKey
}

type Router interface {
	// Handle routes a decoded event and applies it to the cache.
	Handle(ctx context.Context, event models.NotificationEvent) Result
	// HandleFrame decodes a notification socket frame and handles it.
	HandleFrame(ctx context.Context, data []byte) (Result, error)
	// HandleConversationFrame applies a conversation socket frame.
	HandleConversationFrame(ctx context.Context, fezID string, data []byte) Result
}

type router struct {
	cache     querycache.Invalidator
	publisher InvalidationPublisher
	l         logger.Logger
}

// NewRouter borrows cache for invalidation. publisher may be nil.
func NewRouter(cache querycache.Invalidator, publisher InvalidationPublisher, l logger.Logger) Router {
	return &router{
		cache:     cache,
		publisher: publisher,
		l:         l,
	}
}

func (r *router) Handle(ctx context.Context, event models.NotificationEvent) Result {
	set := Route(event)
	if event.Kind == models.KindUnknown {
		r.l.Debugf(ctx, "notification.router.Handle: unknown kind for content %q", event.SubjectID)
	}
	return r.apply(ctx, event, set)
}

func (r *router) HandleFrame(ctx context.Context, data []byte) (Result, error) {
	event, err := DecodeSocketPayload(data)
	if err != nil {
		r.l.Warnf(ctx, "notification.router.HandleFrame: %v", err)
		return Result{}, err
	}
	return r.Handle(ctx, event), nil
}

func (r *router) HandleConversationFrame(ctx context.Context, fezID string, data []byte) Result {
	set := RouteConversationMessage(fezID, data)
	return r.apply(ctx, models.NotificationEvent{SubjectID: fezID, Raw: data}, set)
}

func (r *router) apply(ctx context.Context, event models.NotificationEvent, set models.InvalidationSet) Result {
	res := Result{Event: event, Set: set}

	if !r.cache.IsLoggedIn(ctx) {
		r.l.Debug(ctx, "notification.router.apply: not logged in, skipping invalidation")
		return res
	}

	var errs []error
	for _, key := range set.Keys() {
		if err := r.cache.Invalidate(ctx, key); err != nil {
			res.Failed = append(res.Failed, key)
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}
	if len(errs) > 0 {
		r.l.Errorf(ctx, "notification.router.apply: %v", errors.Join(errs...))
	}
	res.Applied = true

	if r.publisher != nil {
		if err := r.publisher.PublishInvalidation(ctx, event, set); err != nil {
			r.l.Warnf(ctx, "notification.router.apply: publish: %v", err)
		}
	}

	return res
}
