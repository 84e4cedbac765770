package engine

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"sentinella/pkg/models"
)

func TestFormatForward_PlainForm(t *testing.T) {
	msg := textMessage("m1", "391234567890", "Mario Rossi", "ci vediamo alle 5")

	got := FormatForward(msg, "")
	assert.Equal(t, "Inoltrato da Mario Rossi (391234567890)\n\nci vediamo alle 5", got)
}

func TestFormatForward_PlainFormWithoutName(t *testing.T) {
	msg := textMessage("m1", "391234567890", "", "ci vediamo alle 5")

	got := FormatForward(msg, "")
	assert.Equal(t, "Inoltrato da 391234567890\n\nci vediamo alle 5", got)
}

func TestFormatForward_RichForm(t *testing.T) {
	msg := textMessage("m1", "391234567890", "Mario Rossi", "serve aiuto urgente")
	msg.Timestamp = time.Date(2024, 3, 11, 10, 30, 45, 0, time.UTC)

	got := FormatForward(msg, "Messaggi Urgenti")

	assert.True(t, strings.HasPrefix(got, "🚨 FILTRO ATTIVATO: **Messaggi Urgenti**\n"))
	assert.Contains(t, got, strings.Repeat("═", 35))
	assert.Contains(t, got, "👤 **Da:** Mario Rossi (391234567890)")
	assert.Contains(t, got, "⏰ **Quando:** 11/03/2024, 10:30:45")
	assert.Contains(t, got, strings.Repeat("─", 30))
	assert.True(t, strings.HasSuffix(got, "💬 **Messaggio:**\nserve aiuto urgente"))
	assert.NotContains(t, got, "Gruppo")
}

func TestFormatForward_RichFormWithGroup(t *testing.T) {
	msg := textMessage("m1", "391234567890", "Mario Rossi", "novità sul progetto")
	msg.Metadata.Group = &models.GroupInfo{ID: "123@g.us", Name: "Team Lavoro"}

	got := FormatForward(msg, "Messaggi di Lavoro")
	assert.Contains(t, got, "👥 **Gruppo:** Team Lavoro")
}

func TestFormatForward_MissingTextPlaceholder(t *testing.T) {
	msg := textMessage("m1", "391234567890", "Mario", "")
	msg.Content.Type = models.ContentImage

	rich := FormatForward(msg, "Filtro Immagini")
	assert.Contains(t, rich, "[messaggio senza testo]")

	plain := FormatForward(msg, "")
	assert.Contains(t, plain, "[messaggio senza testo]")
}

func TestFormatForward_Deterministic(t *testing.T) {
	msg := textMessage("m1", "391234567890", "Mario Rossi", "stesso contenuto")

	first := FormatForward(msg, "Filtro")
	second := FormatForward(msg, "Filtro")
	assert.Equal(t, first, second)
}
