package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinella/pkg/models"
)

func TestEvaluate_CatchAllMatchesEverything(t *testing.T) {
	filter := &models.Filter{ID: "f1", Name: "catch-all", Enabled: true}

	msg := textMessage("m1", "391234567890", "Mario", "qualsiasi testo")
	assert.True(t, Evaluate(msg, filter, time.UTC))

	noText := textMessage("m2", "391234567890", "Mario", "")
	noText.Content.Type = models.ContentImage
	assert.True(t, Evaluate(noText, filter, time.UTC))
}

func TestEvaluate_Keywords(t *testing.T) {
	tests := []struct {
		name     string
		keywords []string
		mode     models.KeywordMatchMode
		text     string
		want     bool
	}{
		{"any single hit", []string{"urgente", "asap"}, models.MatchAny, "questo è URGENTE", true},
		{"any no hit", []string{"urgente", "asap"}, models.MatchAny, "tutto tranquillo", false},
		{"any case insensitive", []string{"Riunione"}, models.MatchAny, "la riunione è domani", true},
		{"all every keyword present", []string{"progetto", "scadenza"}, models.MatchAll, "scadenza del progetto", true},
		{"all one missing", []string{"progetto", "scadenza"}, models.MatchAll, "il progetto procede", false},
		{"legacy OR decodes as any", []string{"urgente", "asap"}, "OR", "fallo asap", true},
		{"legacy AND decodes as all", []string{"urgente", "asap"}, "AND", "solo urgente", false},
		{"empty mode defaults to any", []string{"urgente"}, "", "messaggio urgente", true},
		{"substring inside word", []string{"urgent"}, models.MatchAny, "urgentissimo", true},
		{"no text never matches", []string{"urgente"}, models.MatchAny, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filter := &models.Filter{
				Keywords:         tt.keywords,
				KeywordMatchMode: tt.mode,
			}
			msg := textMessage("m1", "39111", "", tt.text)
			assert.Equal(t, tt.want, Evaluate(msg, filter, time.UTC))
		})
	}
}

func TestEvaluate_Authors(t *testing.T) {
	filter := &models.Filter{
		Authors: []models.Author{
			{PhoneNumber: "391234567890"},
			{Name: "Mario Rossi"},
		},
	}

	byPhone := textMessage("m1", "391234567890", "Qualcuno", "ciao")
	assert.True(t, Evaluate(byPhone, filter, time.UTC))

	byName := textMessage("m2", "399999999999", "Mario Rossi", "ciao")
	assert.True(t, Evaluate(byName, filter, time.UTC))

	neither := textMessage("m3", "399999999999", "Luigi", "ciao")
	assert.False(t, Evaluate(neither, filter, time.UTC))
}

func TestEvaluate_AuthorsAndKeywordsCombineWithAnd(t *testing.T) {
	filter := &models.Filter{
		Authors:  []models.Author{{PhoneNumber: "39111"}},
		Keywords: []string{"urgente"},
	}

	both := textMessage("m1", "39111", "", "molto urgente")
	assert.True(t, Evaluate(both, filter, time.UTC))

	onlyAuthor := textMessage("m2", "39111", "", "tutto ok")
	assert.False(t, Evaluate(onlyAuthor, filter, time.UTC))

	onlyKeyword := textMessage("m3", "39222", "", "molto urgente")
	assert.False(t, Evaluate(onlyKeyword, filter, time.UTC))
}

func TestEvaluate_MessageTypes(t *testing.T) {
	filter := &models.Filter{
		MessageTypes: []models.ContentType{models.ContentImage, models.ContentVideo},
	}

	img := textMessage("m1", "39111", "", "")
	img.Content.Type = models.ContentImage
	assert.True(t, Evaluate(img, filter, time.UTC))

	txt := textMessage("m2", "39111", "", "ciao")
	assert.False(t, Evaluate(txt, filter, time.UTC))
}

func TestEvaluate_TimeRange(t *testing.T) {
	// 2024-03-11 is a Monday.
	monday := time.Date(2024, 3, 11, 10, 30, 0, 0, time.UTC)
	sunday := time.Date(2024, 3, 10, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		tr   models.TimeRange
		at   time.Time
		want bool
	}{
		{"inside window", models.TimeRange{Start: "09:00", End: "18:00"}, monday, true},
		{"start bound inclusive", models.TimeRange{Start: "10:30", End: "18:00"}, monday, true},
		{"end bound inclusive", models.TimeRange{Start: "09:00", End: "10:30"}, monday, true},
		{"before window", models.TimeRange{Start: "11:00", End: "18:00"}, monday, false},
		{"after window", models.TimeRange{Start: "08:00", End: "10:00"}, monday, false},
		{"weekday allowed", models.TimeRange{Start: "09:00", End: "18:00", Days: []int{1, 2, 3, 4, 5}}, monday, true},
		{"weekday excluded", models.TimeRange{Start: "09:00", End: "18:00", Days: []int{1, 2, 3, 4, 5}}, sunday, false},
		{"sunday is day zero", models.TimeRange{Days: []int{0}}, sunday, true},
		{"days only no clock bounds", models.TimeRange{Days: []int{1}}, monday, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := tt.tr
			filter := &models.Filter{TimeRange: &tr}
			msg := textMessage("m1", "39111", "", "ciao")
			msg.Timestamp = tt.at
			assert.Equal(t, tt.want, Evaluate(msg, filter, time.UTC))
		})
	}
}

func TestMatcher_RecordsStatsOnMatch(t *testing.T) {
	repo := &fakeFilterRepo{}
	matcher := NewMatcher(repo, testLogger()).WithLocation(time.UTC)

	filter := &models.Filter{ID: "f1", Name: "urgenti", Keywords: []string{"urgente"}}
	msg := textMessage("m1", "39111", "", "messaggio urgente")

	require.True(t, matcher.Matches(context.Background(), msg, filter))
	assert.Equal(t, []string{"f1"}, repo.matchCalls)
}

func TestMatcher_NoStatsOnMiss(t *testing.T) {
	repo := &fakeFilterRepo{}
	matcher := NewMatcher(repo, testLogger()).WithLocation(time.UTC)

	filter := &models.Filter{ID: "f1", Name: "urgenti", Keywords: []string{"urgente"}}
	msg := textMessage("m1", "39111", "", "tutto ok")

	require.False(t, matcher.Matches(context.Background(), msg, filter))
	assert.Empty(t, repo.matchCalls)
}

func TestMatcher_StatsErrorDoesNotDropMatch(t *testing.T) {
	repo := &fakeFilterRepo{recordErr: assert.AnError}
	matcher := NewMatcher(repo, testLogger()).WithLocation(time.UTC)

	filter := &models.Filter{ID: "f1", Name: "urgenti", Keywords: []string{"urgente"}}
	msg := textMessage("m1", "39111", "", "messaggio urgente")

	assert.True(t, matcher.Matches(context.Background(), msg, filter))
}
