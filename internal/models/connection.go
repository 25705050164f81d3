package models

import "strings"

type ConnState string

const (
	ConnStateClosed     ConnState = "closed"
	ConnStateConnecting ConnState = "connecting"
	ConnStateOpen       ConnState = "open"
)

// ConnKey identifies a socket. There is one notification socket and at most
// one conversation socket per fez.
type ConnKey string

const (
	NotificationConnKey ConnKey = "notification"

	conversationConnPrefix = "fez:"
)

func ConversationConnKey(fezID string) ConnKey {
	return ConnKey(conversationConnPrefix + fezID)
}

// ConversationID returns the fez ID of a conversation key.
func (k ConnKey) ConversationID() (string, bool) {
	if !strings.HasPrefix(string(k), conversationConnPrefix) {
		return "", false
	}
	return strings.TrimPrefix(string(k), conversationConnPrefix), true
}

type ConnectionStatus struct {
	Key      ConnKey   `json:"key"`
	State    ConnState `json:"state"`
	HandleID string    `json:"handle_id,omitempty"`
}
