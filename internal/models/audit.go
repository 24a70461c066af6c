package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditEntry represents one post mutation recorded in audit_log.
type AuditEntry struct {
	ID        int       `json:"id"`
	UserID    uuid.UUID `json:"userId"`
	Action    string    `json:"action"` // create, update, delete
	PostID    uuid.UUID `json:"postId"`
	CreatedAt time.Time `json:"createdAt"`
}
