package service

import "errors"

var (
	ErrAllSourcesFailed = errors.New("every enabled schedule source failed")
	ErrInvalidCruiseDay = errors.New("cruise day is outside the voyage")
	ErrUnknownSource    = errors.New("unknown schedule source")
	ErrInvalidDirection = errors.New("page direction must be next or previous")
	ErrInvalidEventType = errors.New("unknown event type")
	ErrScheduleDisabled = errors.New("schedule is disabled")
	ErrConversationOff  = errors.New("conversation sockets are disabled")
	ErrAlreadyRunning   = errors.New("already running")
	ErrNotRunning       = errors.New("not running")
)
