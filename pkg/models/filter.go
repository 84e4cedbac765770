package models

import "time"

// KeywordMatchMode controls how multiple keywords combine during matching.
type KeywordMatchMode string

const (
	MatchAny KeywordMatchMode = "ANY"
	MatchAll KeywordMatchMode = "ALL"
)

// Normalize maps legacy mode spellings (OR/AND) onto the current vocabulary
// and defaults empty values to ANY.
func (m KeywordMatchMode) Normalize() KeywordMatchMode {
	switch m {
	case MatchAll, "AND":
		return MatchAll
	case MatchAny, "OR", "":
		return MatchAny
	}
	return MatchAny
}

// Author is one entry of a filter's sender allow-list. A message matches the
// entry when its sender phone number or display name equals the listed value.
type Author struct {
	PhoneNumber string `json:"phone_number,omitempty" bson:"phone_number,omitempty"`
	Name        string `json:"name,omitempty" bson:"name,omitempty"`
}

// TimeRange restricts matching to a wall-clock window and optional weekdays.
// Start and End are zero-padded "HH:mm" strings compared lexically, bounds
// inclusive. Days uses 0=Sunday through 6=Saturday; empty means every day.
type TimeRange struct {
	Start string `json:"start,omitempty" bson:"start,omitempty"`
	End   string `json:"end,omitempty" bson:"end,omitempty"`
	Days  []int  `json:"days,omitempty" bson:"days,omitempty"`
}

type AutoReply struct {
	Enabled bool   `json:"enabled" bson:"enabled"`
	Message string `json:"message,omitempty" bson:"message,omitempty"`
}

// Actions describes the side effects executed when a filter matches.
type Actions struct {
	MarkAsImportant bool      `json:"mark_as_important" bson:"mark_as_important"`
	SetPriority     string    `json:"set_priority,omitempty" bson:"set_priority,omitempty"`
	AddTags         []string  `json:"add_tags,omitempty" bson:"add_tags,omitempty"`
	AutoReply       AutoReply `json:"auto_reply" bson:"auto_reply"`
	ForwardTo       []string  `json:"forward_to,omitempty" bson:"forward_to,omitempty"`
	Archive         bool      `json:"archive" bson:"archive"`
}

// UniqueText suppresses repeated forwarding of identical text within a time
// window. Suppression fails open when the cache is unreachable.
type UniqueText struct {
	Enabled           bool   `json:"enabled" bson:"enabled"`
	Tag               string `json:"tag,omitempty" bson:"tag,omitempty"`
	TimeWindowSeconds int    `json:"time_window_seconds,omitempty" bson:"time_window_seconds,omitempty"`
}

type FilterStats struct {
	Matches   int64      `json:"matches" bson:"matches"`
	LastMatch *time.Time `json:"last_match,omitempty" bson:"last_match,omitempty"`
}

// Filter is a persisted rule: match criteria plus the actions to run on a
// match. Name is unique across all filters, enabled or not. Filters are soft
// deleted by disabling so accumulated stats survive.
type Filter struct {
	ID               string           `json:"id" bson:"_id,omitempty"`
	Name             string           `json:"name" bson:"name"`
	Description      string           `json:"description,omitempty" bson:"description,omitempty"`
	Authors          []Author         `json:"authors,omitempty" bson:"authors,omitempty"`
	Keywords         []string         `json:"keywords,omitempty" bson:"keywords,omitempty"`
	KeywordMatchMode KeywordMatchMode `json:"keyword_match_mode,omitempty" bson:"keyword_match_mode,omitempty"`
	MessageTypes     []ContentType    `json:"message_types,omitempty" bson:"message_types,omitempty"`
	TimeRange        *TimeRange       `json:"time_range,omitempty" bson:"time_range,omitempty"`
	UniqueText       UniqueText       `json:"unique_text" bson:"unique_text"`
	Actions          Actions          `json:"actions" bson:"actions"`
	Enabled          bool             `json:"enabled" bson:"enabled"`
	Stats            FilterStats      `json:"stats" bson:"stats"`
	CreatedAt        time.Time        `json:"created_at" bson:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at" bson:"updated_at"`
}

// IsCatchAll reports whether every match category is empty, in which case the
// filter matches all messages unconditionally.
func (f *Filter) IsCatchAll() bool {
	return len(f.Authors) == 0 &&
		len(f.Keywords) == 0 &&
		len(f.MessageTypes) == 0 &&
		f.TimeRange == nil
}

// HasForwarding reports whether the filter configures any explicit forward
// destinations.
func (f *Filter) HasForwarding() bool {
	return len(f.Actions.ForwardTo) > 0
}
