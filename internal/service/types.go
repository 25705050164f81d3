package service

import (
	"time"

	"github.com/vogiaan1904/voyage-sync/internal/models"
	"github.com/vogiaan1904/voyage-sync/internal/source"
)

const EmptyScheduleMessage = "no schedule data available"

type PageDirection string

const (
	PageNext     PageDirection = "next"
	PagePrevious PageDirection = "previous"
)

func (d PageDirection) Valid() bool {
	return d == PageNext || d == PagePrevious
}

type ScheduleInput struct {
	// Day is the 1-based cruise day. Zero keeps the current selection.
	Day     int
	Filters models.ScheduleFilterSettings
}

type ScheduleOutput struct {
	CruiseDay int                       `json:"cruise_day"`
	Entries   models.AggregatedSchedule `json:"entries"`
	NowIndex  int                       `json:"now_index"`
	Empty     bool                      `json:"empty"`
	Message   string                    `json:"message,omitempty"`
	Warnings  []string                  `json:"warnings,omitempty"`
	Sources   []source.State            `json:"sources"`
	BuiltAt   time.Time                 `json:"built_at"`
}

type NowSnapshot struct {
	CruiseDay  int       `json:"cruise_day"`
	NowIndex   int       `json:"now_index"`
	DayTime    float64   `json:"day_time"`
	Entries    int       `json:"entries"`
	ComputedAt time.Time `json:"computed_at"`
}

type SyncStatus struct {
	IsRunning      bool                      `json:"is_running"`
	StartedAt      time.Time                 `json:"started_at,omitempty"`
	FramesHandled  int64                     `json:"frames_handled"`
	FramesRejected int64                     `json:"frames_rejected"`
	PeerUpdates    int64                     `json:"peer_updates"`
	Connections    []models.ConnectionStatus `json:"connections"`
}
