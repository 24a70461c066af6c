package repo

import (
	"context"
	"database/sql"

	"github.com/crucial707/postfeed/internal/models"
	"github.com/google/uuid"
)

// AuditRepo persists post mutation entries.
type AuditRepo struct {
	db *sql.DB
}

// NewAuditRepo returns a new AuditRepo.
func NewAuditRepo(db *sql.DB) *AuditRepo {
	return &AuditRepo{db: db}
}

// Log records an audit entry. action is create|update|delete.
func (r *AuditRepo) Log(ctx context.Context, userID uuid.UUID, action string, postID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_log (user_id, action, post_id) VALUES ($1, $2, $3)`,
		userID, action, postID,
	)
	return err
}

// ListByUser returns a user's audit entries, newest first.
func (r *AuditRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.AuditEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, action, post_id, created_at FROM audit_log WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []models.AuditEntry{}
	for rows.Next() {
		var e models.AuditEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Action, &e.PostID, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
