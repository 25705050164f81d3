package notification

import "errors"

var (
	ErrMalformedPayload = errors.New("malformed notification payload")
	ErrMissingKind      = errors.New("notification payload has no type")
)
