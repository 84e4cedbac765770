package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sentinella/internal/logger"
	"sentinella/internal/store"
	"sentinella/pkg/metrics"
	"sentinella/pkg/models"
)

// Matcher evaluates messages against filters. Evaluation is pure AND
// semantics across criteria categories: a configured category must match, an
// empty one is skipped, and a filter with no categories at all matches every
// message.
type Matcher struct {
	filters  store.FilterRepository
	location *time.Location
	logger   logger.Logger
}

func NewMatcher(filters store.FilterRepository, log logger.Logger) *Matcher {
	return &Matcher{
		filters:  filters,
		location: time.Local,
		logger:   log,
	}
}

// WithLocation overrides the wall-clock location used for time-range checks.
func (m *Matcher) WithLocation(loc *time.Location) *Matcher {
	m.location = loc
	return m
}

// Matches evaluates one filter and, on a hit, bumps the filter's stored match
// stats. The stats write is best effort; a store error never turns a match
// into a miss.
func (m *Matcher) Matches(ctx context.Context, msg *models.Message, filter *models.Filter) bool {
	if !Evaluate(msg, filter, m.location) {
		return false
	}

	metrics.FilterMatchesTotal.WithLabelValues(filter.Name).Inc()
	if err := m.filters.RecordMatch(ctx, filter.ID, time.Now().UTC()); err != nil {
		m.logger.WarnwCtx(ctx, "failed to record filter match stats",
			"filter", filter.Name, "error", err)
	}
	return true
}

// Evaluate is the pure criteria check, exposed for reuse by tests and the
// dispatcher without touching stats.
func Evaluate(msg *models.Message, filter *models.Filter, loc *time.Location) bool {
	if len(filter.Authors) > 0 && !matchesAuthors(msg, filter.Authors) {
		return false
	}
	if len(filter.Keywords) > 0 && !matchesKeywords(msg, filter.Keywords, filter.KeywordMatchMode) {
		return false
	}
	if len(filter.MessageTypes) > 0 && !matchesMessageTypes(msg, filter.MessageTypes) {
		return false
	}
	if filter.TimeRange != nil && !matchesTimeRange(msg, filter.TimeRange, loc) {
		return false
	}
	return true
}

// matchesAuthors is an OR over entries: any entry whose phone number or name
// equals the sender's counts.
func matchesAuthors(msg *models.Message, authors []models.Author) bool {
	for _, a := range authors {
		if a.PhoneNumber != "" && a.PhoneNumber == msg.From.PhoneNumber {
			return true
		}
		if a.Name != "" && a.Name == msg.From.Name {
			return true
		}
	}
	return false
}

// matchesKeywords does case-insensitive substring search over the message
// text. ANY mode needs one hit, ALL mode needs every keyword present. A
// message with no text never matches a keyword filter.
func matchesKeywords(msg *models.Message, keywords []string, mode models.KeywordMatchMode) bool {
	if !msg.HasText() {
		return false
	}
	text := strings.ToLower(msg.Content.Text)

	if mode.Normalize() == models.MatchAll {
		for _, kw := range keywords {
			if !strings.Contains(text, strings.ToLower(kw)) {
				return false
			}
		}
		return true
	}

	for _, kw := range keywords {
		if strings.Contains(text, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func matchesMessageTypes(msg *models.Message, types []models.ContentType) bool {
	for _, t := range types {
		if t == msg.Content.Type {
			return true
		}
	}
	return false
}

// matchesTimeRange compares the message's wall-clock time lexically against
// the zero-padded "HH:mm" bounds, both inclusive, and checks the weekday
// against the configured days (0=Sunday). An empty day list allows every day.
func matchesTimeRange(msg *models.Message, tr *models.TimeRange, loc *time.Location) bool {
	if loc == nil {
		loc = time.Local
	}
	local := msg.Timestamp.In(loc)

	if len(tr.Days) > 0 {
		day := int(local.Weekday())
		found := false
		for _, d := range tr.Days {
			if d == day {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if tr.Start == "" || tr.End == "" {
		return true
	}
	clock := fmt.Sprintf("%02d:%02d", local.Hour(), local.Minute())
	return clock >= tr.Start && clock <= tr.End
}
