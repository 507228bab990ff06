package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/user-management-api/internal/models"
)

// AuditLogRepository appends audit rows. There is no update or delete path.
type AuditLogRepository struct {
	db sqlx.ExtContext
}

// NewAuditLogRepository constructs the repository.
func NewAuditLogRepository(db sqlx.ExtContext) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

// Append inserts one audit row.
func (r *AuditLogRepository) Append(ctx context.Context, entry *models.AuditLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO audit_logs (id, user_id, actor_id, action, resource, resource_id, payload, ip_address, user_agent, created_at) VALUES (:id, :user_id, :actor_id, :action, :resource, :resource_id, :payload, :ip_address, :user_agent, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.db, query, entry); err != nil {
		return fmt.Errorf("append audit log: %w", err)
	}
	return nil
}

// ListByUser returns audit rows of a user, newest first.
func (r *AuditLogRepository) ListByUser(ctx context.Context, userID string, limit int) ([]models.AuditLog, error) {
	query := fmt.Sprintf(`SELECT id, user_id, actor_id, action, resource, resource_id, payload, ip_address, user_agent, created_at FROM audit_logs WHERE user_id = $1 ORDER BY created_at DESC LIMIT %d`, NormalizeLimit(limit))
	var logs []models.AuditLog
	if err := sqlx.SelectContext(ctx, r.db, &logs, query, userID); err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	return logs, nil
}
