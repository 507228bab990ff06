package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/noah-isme/user-management-api/internal/models"
	"github.com/noah-isme/user-management-api/internal/repository"
)

// AuditService appends audit rows. Rows are never changed after insert.
type AuditService struct {
	uow    unitOfWork
	logger *zap.Logger
}

// NewAuditService constructs the service.
func NewAuditService(uow unitOfWork, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{uow: uow, logger: logger}
}

// AuditEntry describes one auditable action.
type AuditEntry struct {
	Action     string
	Resource   string
	UserID     string
	ActorID    string
	ResourceID string
	Payload    interface{}
	Meta       models.RequestMeta
}

// RecordAvailabilityChange appends one availability audit row outside any transaction.
func (s *AuditService) RecordAvailabilityChange(ctx context.Context, userID string, availability models.Availability, ip, userAgent string) error {
	entry := availabilityEntry(userID, userID, "", availability, models.RequestMeta{IP: ip, UserAgent: userAgent})
	if err := s.uow.Read().AuditLogs.Append(ctx, buildAuditLog(entry)); err != nil {
		return internalError(err, "failed to record availability change")
	}
	return nil
}

// RecordAvailabilityChangeTx appends the availability audit row through the caller's transaction.
func (s *AuditService) RecordAvailabilityChangeTx(ctx context.Context, repos *repository.Repositories, userID, actorID string, previous, availability models.Availability, meta models.RequestMeta) error {
	return repos.AuditLogs.Append(ctx, buildAuditLog(availabilityEntry(userID, actorID, previous, availability, meta)))
}

// RecordTx appends entry through the caller's transaction.
func (s *AuditService) RecordTx(ctx context.Context, repos *repository.Repositories, entry AuditEntry) error {
	return repos.AuditLogs.Append(ctx, buildAuditLog(entry))
}

// Record appends entry outside a transaction. Failures are logged, not returned.
func (s *AuditService) Record(ctx context.Context, entry AuditEntry) {
	if err := s.uow.Read().AuditLogs.Append(ctx, buildAuditLog(entry)); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", entry.Action), zap.String("user_id", entry.UserID), zap.Error(err))
	}
}

// List returns the audit trail of a user, newest first.
func (s *AuditService) List(ctx context.Context, userID string, limit int) ([]models.AuditLog, error) {
	logs, err := s.uow.Read().AuditLogs.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, internalError(err, "failed to list audit logs")
	}
	return logs, nil
}

func availabilityEntry(userID, actorID string, previous, availability models.Availability, meta models.RequestMeta) AuditEntry {
	payload := map[string]interface{}{"availability": availability}
	if previous != "" {
		payload["previous"] = previous
	}
	return AuditEntry{
		Action:     models.AuditActionAvailabilityChange,
		Resource:   "users",
		UserID:     userID,
		ActorID:    actorID,
		ResourceID: userID,
		Payload:    payload,
		Meta:       meta,
	}
}

func buildAuditLog(entry AuditEntry) *models.AuditLog {
	log := &models.AuditLog{
		UserID:     optionalString(entry.UserID),
		ActorID:    optionalString(entry.ActorID),
		Action:     entry.Action,
		Resource:   entry.Resource,
		ResourceID: optionalString(entry.ResourceID),
		IPAddress:  optionalString(entry.Meta.IP),
		UserAgent:  optionalString(entry.Meta.UserAgent),
	}
	if entry.Payload != nil {
		if raw, err := json.Marshal(entry.Payload); err == nil {
			log.Payload = raw
		}
	}
	return log
}
