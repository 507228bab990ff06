package models

import (
	"encoding/json"
	"time"
)

// Notification topics published after a successful commit.
const (
	TopicEloUpdated           = "user.elo.updated"
	TopicAvailabilityUpdated  = "user.availability.updated"
	TopicPerformanceMilestone = "user.performance.milestone"
	TopicJobClaimed           = "user.job.claimed"
)

// Event is a notification about a committed state change.
type Event struct {
	ID         string          `json:"id"`
	Topic      string          `json:"topic"`
	UserID     string          `json:"user_id"`
	RequestID  string          `json:"request_id,omitempty"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt time.Time       `json:"occurred_at"`
}
