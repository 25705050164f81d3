package socket

import "errors"

var (
	ErrManagerClosed   = errors.New("connection manager is shut down")
	ErrNotOpen         = errors.New("socket is not open")
	ErrInvalidURL      = errors.New("invalid socket url")
	ErrUnknownConnKey  = errors.New("unknown connection key")
	ErrRetriesExceeded = errors.New("reconnect retries exceeded")
)
