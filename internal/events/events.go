// Package events defines the change events published for results and the roster.
package events

import "time"

// Event types carried in the event_type header.
const (
	TypeResultRecorded  = "result.recorded"
	TypeResultUpdated   = "result.updated"
	TypeResultDeleted   = "result.deleted"
	TypeActivityRenamed = "activity.renamed"
	TypeRosterChanged   = "roster.changed"
	TypeActivitiesSet   = "activities.configured"
)

// Topic is the Kafka topic all change events are published to.
const Topic = "result_events"

// KnownTypes lists the event types that invalidate the leaderboard.
var KnownTypes = []string{
	TypeResultRecorded,
	TypeResultUpdated,
	TypeResultDeleted,
	TypeActivityRenamed,
	TypeRosterChanged,
	TypeActivitiesSet,
}

// IsKnown reports whether eventType is one of KnownTypes.
func IsKnown(eventType string) bool {
	for _, t := range KnownTypes {
		if t == eventType {
			return true
		}
	}
	return false
}

// ResultChanged is emitted when a result is recorded, edited or deleted.
type ResultChanged struct {
	ResultID   string    `json:"result_id"`
	UserName   string    `json:"user_name"`
	Activity   string    `json:"activity"`
	Value      float64   `json:"value"`
	OccurredAt time.Time `json:"occurred_at"`
	Version    string    `json:"version"`
}

// ActivityRenamed is emitted after an activity rename cascade.
type ActivityRenamed struct {
	From       string    `json:"from"`
	To         string    `json:"to"`
	Results    int64     `json:"results"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ActivitiesConfigured is emitted when the activity configuration is replaced.
type ActivitiesConfigured struct {
	List       []string  `json:"list"`
	OccurredAt time.Time `json:"occurred_at"`
}

// RosterChanged is emitted when a user is added or removed.
type RosterChanged struct {
	UserID     string    `json:"user_id"`
	FullName   string    `json:"full_name"`
	Change     string    `json:"change"`
	OccurredAt time.Time `json:"occurred_at"`
}
