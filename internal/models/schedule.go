package models

import "time"

// EntryKind discriminates ScheduleEntry variants. Declaration order is the
// tie-break priority used when two entries start at the same instant.
type EntryKind int

const (
	EntryKindEvent EntryKind = iota
	EntryKindJoinedActivity
	EntryKindOpenActivity
	EntryKindPersonalEvent
)

func (k EntryKind) String() string {
	switch k {
	case EntryKindEvent:
		return "event"
	case EntryKindJoinedActivity:
		return "joined_activity"
	case EntryKindOpenActivity:
		return "open_activity"
	case EntryKindPersonalEvent:
		return "personal_event"
	default:
		return "unknown"
	}
}

func (k EntryKind) IsActivity() bool {
	return k == EntryKindJoinedActivity || k == EntryKindOpenActivity
}

type EventType string

const (
	EventTypeGeneral  EventType = "general"
	EventTypeOfficial EventType = "official"
	EventTypeShadow   EventType = "shadow"
	EventTypeGaming   EventType = "gaming"
	EventTypeKaraoke  EventType = "karaoke"
	EventTypeMovie    EventType = "movie"
	EventTypeMusic    EventType = "music"
	EventTypeYoga     EventType = "yoga"
)

var eventTypes = map[EventType]struct{}{
	EventTypeGeneral:  {},
	EventTypeOfficial: {},
	EventTypeShadow:   {},
	EventTypeGaming:   {},
	EventTypeKaraoke:  {},
	EventTypeMovie:    {},
	EventTypeMusic:    {},
	EventTypeYoga:     {},
}

func (t EventType) Valid() bool {
	_, ok := eventTypes[t]
	return ok
}

type FezType string

const (
	FezTypeAnnouncement  FezType = "announcement"
	FezTypeClosed        FezType = "closed"
	FezTypeOpen          FezType = "open"
	FezTypeActivity      FezType = "activity"
	FezTypeDining        FezType = "dining"
	FezTypeGaming        FezType = "gaming"
	FezTypeMeetup        FezType = "meetup"
	FezTypeMusic         FezType = "music"
	FezTypeOther         FezType = "other"
	FezTypeShore         FezType = "shore"
	FezTypePrivateEvent  FezType = "privateEvent"
	FezTypePersonalEvent FezType = "personalEvent"
)

// IsSeamail reports whether the fez is a seamail conversation rather than an LFG.
func (t FezType) IsSeamail() bool {
	return t == FezTypeClosed || t == FezTypeOpen
}

// ScheduleEntry is one row of the schedule. Values are never mutated after
// a source adapter produces them.
type ScheduleEntry struct {
	ID         string     `json:"id"`
	Kind       EntryKind  `json:"kind"`
	Title      string     `json:"title"`
	Location   string     `json:"location,omitempty"`
	StartTime  *time.Time `json:"start_time,omitempty"`
	EndTime    *time.Time `json:"end_time,omitempty"`
	TimeZoneID string     `json:"time_zone_id,omitempty"`
	EventType  EventType  `json:"event_type,omitempty"`
	FezType    FezType    `json:"fez_type,omitempty"`
	Favorite   bool       `json:"favorite,omitempty"`
	Joined     bool       `json:"joined,omitempty"`
	Cancelled  bool       `json:"cancelled,omitempty"`
}

// EffectiveEnd is the end instant, or the start when the end is absent.
func (e ScheduleEntry) EffectiveEnd() *time.Time {
	if e.EndTime != nil {
		return e.EndTime
	}
	return e.StartTime
}

// ScheduleFilterSettings is an immutable snapshot of the schedule filters.
type ScheduleFilterSettings struct {
	FavoriteOnly bool      `json:"favorite_only"`
	PersonalOnly bool      `json:"personal_only"`
	LFGOnly      bool      `json:"lfg_only"`
	EventType    EventType `json:"event_type,omitempty"`
	HidePast     bool      `json:"hide_past"`
}

func (f ScheduleFilterSettings) IsEmpty() bool {
	return f == ScheduleFilterSettings{}
}

// AggregatedSchedule is ordered by start, then kind priority, then ID.
type AggregatedSchedule []ScheduleEntry
