package service

import (
	"context"
	"io"

	"github.com/vogiaan1904/voyage-sync/internal/cruisetime"
	"github.com/vogiaan1904/voyage-sync/internal/models"
	"github.com/vogiaan1904/voyage-sync/internal/source"
)

type ScheduleService interface {
	Voyage() cruisetime.Voyage
	Days() ([]models.CruiseDay, error)
	// Today is the cruise day containing now, clamped to the voyage.
	Today() int
	CruiseDay() int
	SetCruiseDay(ctx context.Context, day int) error
	Refresh(ctx context.Context) error
	Page(ctx context.Context, name string, dir PageDirection) (source.State, error)
	Sources() []source.State
	Schedule(ctx context.Context, in ScheduleInput) (*ScheduleOutput, error)
	ExportICS(ctx context.Context, w io.Writer, in ScheduleInput) (int, error)
	Close()
}

type SyncService interface {
	Start(ctx context.Context) error
	Stop() error
	OpenConversation(ctx context.Context, fezID string) error
	CloseConversation(fezID string) error
	Status() SyncStatus
}

type NowTracker interface {
	Start(ctx context.Context) error
	Stop() error
	Tick(ctx context.Context)
	Current() NowSnapshot
}
