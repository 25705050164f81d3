package notification

import "github.com/vogiaan1904/voyage-sync/internal/models"

// Route maps a push event to the cache keys it makes stale. The summary key
// is always present so badge counts refresh on every push.
func Route(event models.NotificationEvent) models.InvalidationSet {
	set := models.NewInvalidationSet(models.NotificationSummaryKey)

	switch event.Kind {
	case models.KindFezUnreadMsg,
		models.KindSeamailUnreadMsg,
		models.KindPrivateEventUnreadMsg,
		models.KindAddedToSeamail,
		models.KindAddedToLFG,
		models.KindAddedToPrivateEvent,
		models.KindRemovedFromLFG,
		models.KindRemovedFromPrivateEvent,
		models.KindLFGCanceled,
		models.KindPrivateEventCanceled:
		set.Add(models.ConversationListKey)
		if event.SubjectID != "" {
			set.Add(
				models.ConversationDetailKey(event.SubjectID),
				models.ConversationMembershipKey(event.SubjectID),
			)
		}
	case models.KindAnnouncement:
		set.Add(models.AnnouncementsKey)
	default:
		// Summary only.
	}

	return set
}
