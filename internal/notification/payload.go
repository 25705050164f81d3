package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/vogiaan1904/voyage-sync/internal/models"
)

// socketPayload is the notification socket frame. Type is an object with a
// single key naming the kind, e.g. {"type":{"fezUnreadMsg":{}}}.
type socketPayload struct {
	Type          json.RawMessage `json:"type"`
	Info          string          `json:"info"`
	ContentID     string          `json:"contentID"`
	Caller        json.RawMessage `json:"caller,omitempty"`
	CallerAddress json.RawMessage `json:"callerAddress,omitempty"`
}

// DecodeSocketPayload parses a notification frame. The kind is the first key
// of "type" in document order; unknown names decode to KindUnknown.
func DecodeSocketPayload(data []byte) (models.NotificationEvent, error) {
	var p socketPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return models.NotificationEvent{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	name, err := firstKey(p.Type)
	if err != nil {
		return models.NotificationEvent{}, err
	}

	return models.NotificationEvent{
		Kind:      models.ParseNotificationKind(name),
		SubjectID: p.ContentID,
		Info:      p.Info,
		Raw:       slices.Clone(data),
	}, nil
}

func firstKey(raw json.RawMessage) (string, error) {
	if len(bytes.TrimSpace(raw)) == 0 || string(bytes.TrimSpace(raw)) == "null" {
		return "", ErrMissingKind
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return "", fmt.Errorf("%w: type: %v", ErrMalformedPayload, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return "", fmt.Errorf("%w: type is not an object", ErrMalformedPayload)
	}

	tok, err = dec.Token()
	if err != nil {
		return "", fmt.Errorf("%w: type: %v", ErrMalformedPayload, err)
	}
	name, ok := tok.(string)
	if !ok {
		return "", ErrMissingKind
	}
	return name, nil
}

type fezMemberFrame struct {
	User   json.RawMessage `json:"user"`
	Joined *bool           `json:"joined"`
}

// RouteConversationMessage maps a conversation socket frame to invalidations.
// Posts and anything unrecognized refresh the conversation itself; a member
// change also refreshes membership and the joined list.
func RouteConversationMessage(fezID string, data []byte) models.InvalidationSet {
	set := models.NewInvalidationSet(models.ConversationDetailKey(fezID))

	var member fezMemberFrame
	if err := json.Unmarshal(data, &member); err == nil && len(member.User) > 0 && member.Joined != nil {
		set.Add(models.ConversationMembershipKey(fezID), models.ConversationListKey)
	}
	return set
}
