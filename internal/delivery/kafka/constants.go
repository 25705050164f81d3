package kafka

// Default topics. Both can be overridden through config.
const (
	TopicNotificationPushed = "notification.pushed"
	TopicCacheInvalidated   = "cache.invalidated"
)

const (
	HeaderTimestamp = "timestamp"
	HeaderOrigin    = "origin"
)
