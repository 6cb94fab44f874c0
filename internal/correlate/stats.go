package correlate

import (
	"slices"

	"github.com/wesm/projectsview/internal/parser"
)

// ProjectStats aggregates a project's conversations. A zero
// FirstActivity or LastActivity means no valid timestamp was
// found.
type ProjectStats struct {
	Project           parser.Project
	ConversationCount int
	FirstActivity     parser.Timestamp
	LastActivity      parser.Timestamp
}

// Stats computes the conversation count and activity range of p.
// FirstActivity is the earliest create_time and LastActivity the
// latest update_time; unusable timestamps are ignored.
func (e *Engine) Stats(p parser.Project) ProjectStats {
	convs := e.groups.Bucket(p.ProjectID)
	s := ProjectStats{Project: p, ConversationCount: len(convs)}
	for _, c := range convs {
		if ct := c.CreateTime; ct.Valid() {
			if !s.FirstActivity.Valid() || ct.Before(s.FirstActivity) {
				s.FirstActivity = ct
			}
		}
		if ut := c.UpdateTime; ut.Valid() {
			if !s.LastActivity.Valid() || s.LastActivity.Before(ut) {
				s.LastActivity = ut
			}
		}
	}
	return s
}

// RankedStats returns stats for every project, most
// conversations first. Equal counts keep list order.
func (e *Engine) RankedStats() []ProjectStats {
	projects := e.index.Projects()
	stats := make([]ProjectStats, 0, len(projects))
	for _, p := range projects {
		stats = append(stats, e.Stats(p))
	}
	slices.SortStableFunc(stats, func(a, b ProjectStats) int {
		return b.ConversationCount - a.ConversationCount
	})
	return stats
}
