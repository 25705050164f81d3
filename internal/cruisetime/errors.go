package cruisetime

import "errors"

var (
	ErrOutOfVoyageRange    = errors.New("instant is outside the voyage")
	ErrInvalidVoyageLength = errors.New("voyage length must be positive")
)
