package models

// NotificationKind is the closed set of push notification kinds the client
// understands. KindUnknown covers anything the server adds later.
type NotificationKind int

const (
	KindUnknown NotificationKind = iota
	KindAnnouncement

	KindFezUnreadMsg
	KindSeamailUnreadMsg
	KindPrivateEventUnreadMsg

	KindAddedToSeamail
	KindAddedToLFG
	KindAddedToPrivateEvent

	KindRemovedFromLFG
	KindRemovedFromPrivateEvent

	KindLFGCanceled
	KindPrivateEventCanceled

	KindFollowedEventStarting
	KindJoinedLFGStarting
	KindPersonalEventStarting

	KindAlertwordTwarrt
	KindAlertwordPost
	KindTwarrtMention
	KindForumMention
	KindModeratorForumMention
	KindTwitarrTeamForumMention

	KindIncomingPhoneCall
	KindPhoneCallAnswered
	KindPhoneCallEnded
)

var notificationKindNames = map[NotificationKind]string{
	KindAnnouncement:            "announcement",
	KindFezUnreadMsg:            "fezUnreadMsg",
	KindSeamailUnreadMsg:        "seamailUnreadMsg",
	KindPrivateEventUnreadMsg:   "privateEventUnreadMsg",
	KindAddedToSeamail:          "addedToSeamail",
	KindAddedToLFG:              "addedToLFG",
	KindAddedToPrivateEvent:     "addedToPrivateEvent",
	KindRemovedFromLFG:          "removedFromLFG",
	KindRemovedFromPrivateEvent: "removedFromPrivateEvent",
	KindLFGCanceled:             "lfgCanceled",
	KindPrivateEventCanceled:    "privateEventCanceled",
	KindFollowedEventStarting:   "followedEventStarting",
	KindJoinedLFGStarting:       "joinedLFGStarting",
	KindPersonalEventStarting:   "personalEventStarting",
	KindAlertwordTwarrt:         "alertwordTwarrt",
	KindAlertwordPost:           "alertwordPost",
	KindTwarrtMention:           "twarrtMention",
	KindForumMention:            "forumMention",
	KindModeratorForumMention:   "moderatorForumMention",
	KindTwitarrTeamForumMention: "twitarrTeamForumMention",
	KindIncomingPhoneCall:       "incomingPhoneCall",
	KindPhoneCallAnswered:       "phoneCallAnswered",
	KindPhoneCallEnded:          "phoneCallEnded",
}

var notificationKindsByName = func() map[string]NotificationKind {
	m := make(map[string]NotificationKind, len(notificationKindNames))
	for k, name := range notificationKindNames {
		m[name] = k
	}
	return m
}()

// ParseNotificationKind never fails; unrecognized names map to KindUnknown.
func ParseNotificationKind(name string) NotificationKind {
	return notificationKindsByName[name]
}

func (k NotificationKind) String() string {
	if name, ok := notificationKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// NotificationEvent is consumed once by the router and not retained.
type NotificationEvent struct {
	Kind      NotificationKind `json:"-"`
	SubjectID string           `json:"subject_id"`
	Info      string           `json:"info,omitempty"`
	Raw       []byte           `json:"-"`
}
