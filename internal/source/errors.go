package source

import "errors"

var (
	ErrStaleResult   = errors.New("fetch result superseded by newer request params")
	ErrNoCruiseDay   = errors.New("cruise day not selected")
	ErrInvalidCruise = errors.New("invalid cruise day")
)
