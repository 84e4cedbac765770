package models

import "time"

// OutcomeEvent is published to the event stream after a message finishes
// processing. Consumers get the terminal status and the names of filters
// that matched; delivery is best effort.
type OutcomeEvent struct {
	EventType      string        `json:"event_type"`
	MessageID      string        `json:"message_id"`
	Status         MessageStatus `json:"status"`
	MatchedFilters []string      `json:"matched_filters,omitempty"`
	Source         string        `json:"source,omitempty"`
	Timestamp      time.Time     `json:"timestamp"`
}

const (
	EventTypeMessageProcessed = "message.processed"
	EventTypeMessageFiltered  = "message.filtered"
	EventTypeMessageArchived  = "message.archived"
)

// EventForStatus maps a terminal message status to its event type.
func EventForStatus(s MessageStatus) string {
	switch s {
	case StatusFiltered:
		return EventTypeMessageFiltered
	case StatusArchived:
		return EventTypeMessageArchived
	default:
		return EventTypeMessageProcessed
	}
}
