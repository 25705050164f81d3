package socket

import (
	"fmt"
	"net/url"

	"github.com/vogiaan1904/voyage-sync/internal/models"
)

// NewURLBuilder resolves the notification socket and per-fez conversation
// sockets under baseURL. conversationPath carries one %s for the fez ID.
func NewURLBuilder(baseURL, notificationPath, conversationPath string) URLBuilder {
	return URLBuilderFunc(func(key models.ConnKey) (string, error) {
		if key == models.NotificationConnKey {
			return baseURL + notificationPath, nil
		}
		if fezID, ok := key.ConversationID(); ok && fezID != "" {
			return baseURL + fmt.Sprintf(conversationPath, url.PathEscape(fezID)), nil
		}
		return "", fmt.Errorf("%w: %q", ErrUnknownConnKey, key)
	})
}
