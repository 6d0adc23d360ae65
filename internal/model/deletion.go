package model

import "time"

// PendingDeletion is a persisted request to remove delivered copies from a
// requester's chat once FireAt has passed.
type PendingDeletion struct {
	ID         string
	ChatID     int64
	MessageIDs []int
	FireAt     time.Time
	CreatedAt  time.Time
}
