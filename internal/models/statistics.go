package models

import "time"

// UserStatistics holds aggregate performance counters. One row per user.
type UserStatistics struct {
	UserID               string    `db:"user_id" json:"user_id"`
	JobsClaimed          int       `db:"jobs_claimed" json:"jobs_claimed"`
	JobsCompleted        int       `db:"jobs_completed" json:"jobs_completed"`
	ComparisonsCount     int       `db:"comparisons_count" json:"comparisons_count"`
	AverageScore         float64   `db:"average_score" json:"average_score"`
	AverageAccuracy      float64   `db:"average_accuracy" json:"average_accuracy"`
	AccuracySamples      int       `db:"accuracy_samples" json:"accuracy_samples"`
	TotalDurationSeconds int64     `db:"total_duration_seconds" json:"total_duration_seconds"`
	UpdatedAt            time.Time `db:"updated_at" json:"updated_at"`
}

// PerformanceMilestones lists the completed-job counts that emit a milestone event.
var PerformanceMilestones = []int{10, 25, 50, 100, 250, 500, 1000}

// CrossedMilestone returns the milestone reached when completions move from before to after.
func CrossedMilestone(before, after int) (int, bool) {
	for _, m := range PerformanceMilestones {
		if before < m && after >= m {
			return m, true
		}
	}
	return 0, false
}
