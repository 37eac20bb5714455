// Package changes delivers "the media of this owner changed" notifications
// from the database (LISTEN/NOTIFY) or from redis pub/sub.
package changes

import (
	"context"
	"strings"
)

// Handler receives the id of the owner whose items changed. An empty id
// means notifications may have been lost and every owner must be refreshed.
type Handler func(ownerID string)

// Source runs until ctx is cancelled, calling h for every notification.
type Source interface {
	Run(ctx context.Context, h Handler) error
}

// ownerFromPayload extracts the owner id carried by a notification payload.
func ownerFromPayload(payload string) (string, bool) {
	owner := strings.TrimSpace(payload)
	if owner == "" || strings.ContainsAny(owner, " \t\r\n") {
		return "", false
	}
	return owner, true
}
