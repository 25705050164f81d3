package api

import (
	"bytes"
	"strings"
	"time"

	"github.com/vogiaan1904/voyage-sync/internal/models"
)

// wireTime decodes an RFC 3339 timestamp. A null or unparseable value
// decodes to no time so one bad entry never fails its whole response.
type wireTime struct {
	t *time.Time
}

func (w *wireTime) UnmarshalJSON(b []byte) error {
	w.t = nil
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var t time.Time
	if err := t.UnmarshalJSON(b); err != nil {
		return nil
	}
	w.t = &t
	return nil
}

type eventData struct {
	EventID     string   `json:"eventID"`
	Title       string   `json:"title"`
	Location    string   `json:"location"`
	StartTime   wireTime `json:"startTime"`
	EndTime     wireTime `json:"endTime"`
	TimeZoneID  string   `json:"timeZoneID"`
	EventType   string   `json:"eventType"`
	IsFavorite  bool     `json:"isFavorite"`
	Description string   `json:"description,omitempty"`
}

type fezData struct {
	FezID      string   `json:"fezID"`
	FezType    string   `json:"fezType"`
	Title      string   `json:"title"`
	Location   string   `json:"location"`
	StartTime  wireTime `json:"startTime"`
	EndTime    wireTime `json:"endTime"`
	TimeZoneID string   `json:"timeZoneID"`
	Cancelled  bool     `json:"cancelled"`
}

type fezListData struct {
	Paginator models.Paginator `json:"paginator"`
	Fezzes    []fezData        `json:"fezzes"`
}

type personalEventData struct {
	PersonalEventID string   `json:"personalEventID"`
	Title           string   `json:"title"`
	Location        string   `json:"location"`
	StartTime       wireTime `json:"startTime"`
	EndTime         wireTime `json:"endTime"`
	TimeZoneID      string   `json:"timeZoneID"`
}

// eventType maps the server's display names ("Gaming", "Shadow Event") onto
// the event taxonomy. Unrecognized names fall back to general.
func eventType(name string) models.EventType {
	fields := strings.Fields(strings.ToLower(name))
	if len(fields) == 0 {
		return models.EventTypeGeneral
	}
	t := models.EventType(fields[0])
	if !t.Valid() {
		return models.EventTypeGeneral
	}
	return t
}

func (e eventData) toEntry() models.ScheduleEntry {
	return models.ScheduleEntry{
		ID:         e.EventID,
		Kind:       models.EntryKindEvent,
		Title:      e.Title,
		Location:   e.Location,
		StartTime:  e.StartTime.t,
		EndTime:    e.EndTime.t,
		TimeZoneID: e.TimeZoneID,
		EventType:  eventType(e.EventType),
		Favorite:   e.IsFavorite,
	}
}

func (f fezData) toEntry(kind models.EntryKind) models.ScheduleEntry {
	return models.ScheduleEntry{
		ID:         f.FezID,
		Kind:       kind,
		Title:      f.Title,
		Location:   f.Location,
		StartTime:  f.StartTime.t,
		EndTime:    f.EndTime.t,
		TimeZoneID: f.TimeZoneID,
		FezType:    models.FezType(f.FezType),
		Joined:     kind == models.EntryKindJoinedActivity,
		Cancelled:  f.Cancelled,
	}
}

func (p personalEventData) toEntry() models.ScheduleEntry {
	return models.ScheduleEntry{
		ID:         p.PersonalEventID,
		Kind:       models.EntryKindPersonalEvent,
		Title:      p.Title,
		Location:   p.Location,
		StartTime:  p.StartTime.t,
		EndTime:    p.EndTime.t,
		TimeZoneID: p.TimeZoneID,
		FezType:    models.FezTypePersonalEvent,
	}
}
