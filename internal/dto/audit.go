package dto

import (
	"encoding/json"
	"time"

	"github.com/noah-isme/user-management-api/internal/models"
)

// AuditLogResponse is the public audit view.
type AuditLogResponse struct {
	ID         string          `json:"id"`
	UserID     *string         `json:"user_id,omitempty"`
	ActorID    *string         `json:"actor_id,omitempty"`
	Action     string          `json:"action"`
	Resource   string          `json:"resource"`
	ResourceID *string         `json:"resource_id,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	IPAddress  *string         `json:"ip_address,omitempty"`
	UserAgent  *string         `json:"user_agent,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// NewAuditLogResponses maps audit rows.
func NewAuditLogResponses(logs []models.AuditLog) []AuditLogResponse {
	out := make([]AuditLogResponse, 0, len(logs))
	for _, l := range logs {
		out = append(out, AuditLogResponse{
			ID:         l.ID,
			UserID:     l.UserID,
			ActorID:    l.ActorID,
			Action:     l.Action,
			Resource:   l.Resource,
			ResourceID: l.ResourceID,
			Payload:    rawJSON(l.Payload),
			IPAddress:  l.IPAddress,
			UserAgent:  l.UserAgent,
			CreatedAt:  l.CreatedAt,
		})
	}
	return out
}
