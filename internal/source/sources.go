package source

import (
	"github.com/vogiaan1904/voyage-sync/internal/models"
	"github.com/vogiaan1904/voyage-sync/pkg/logger"
)

const (
	NameEvents         = "events"
	NameJoinedLFGs     = "joined_lfgs"
	NameOpenLFGs       = "open_lfgs"
	NamePersonalEvents = "personal_events"
)

// The fez and personal-event endpoints count cruise days from zero while
// the events endpoint counts from one.
const zeroBasedDayOffset = -1

func NewEventsAdapter(fetcher PageFetcher, gate Gate, limit int, l logger.Logger) Adapter {
	return NewAdapter(Config{
		Name:  NameEvents,
		Kind:  models.EntryKindEvent,
		Limit: limit,
	}, fetcher, gate, l)
}

func NewJoinedLFGAdapter(fetcher PageFetcher, gate Gate, limit int, l logger.Logger) Adapter {
	return NewAdapter(Config{
		Name:      NameJoinedLFGs,
		Kind:      models.EntryKindJoinedActivity,
		DayOffset: zeroBasedDayOffset,
		Limit:     limit,
	}, fetcher, gate, l)
}

func NewOpenLFGAdapter(fetcher PageFetcher, gate Gate, limit int, l logger.Logger) Adapter {
	return NewAdapter(Config{
		Name:      NameOpenLFGs,
		Kind:      models.EntryKindOpenActivity,
		DayOffset: zeroBasedDayOffset,
		Limit:     limit,
	}, fetcher, gate, l)
}

func NewPersonalEventsAdapter(fetcher PageFetcher, gate Gate, limit int, l logger.Logger) Adapter {
	return NewAdapter(Config{
		Name:      NamePersonalEvents,
		Kind:      models.EntryKindPersonalEvent,
		DayOffset: zeroBasedDayOffset,
		Limit:     limit,
	}, fetcher, gate, l)
}
