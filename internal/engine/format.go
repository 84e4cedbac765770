package engine

import (
	"fmt"
	"strings"

	"sentinella/pkg/models"
)

const forwardTimestampLayout = "02/01/2006, 15:04:05"

const missingTextPlaceholder = "[messaggio senza testo]"

// FormatForward renders the text body sent to forward destinations. With a
// filter label it produces the rich alert block; without one it produces the
// plain relay form. The output depends only on the message and the label, so
// the same inputs always render the same text.
func FormatForward(msg *models.Message, filterLabel string) string {
	text := msg.Content.Text
	if text == "" {
		text = missingTextPlaceholder
	}

	if filterLabel == "" {
		if msg.From.Name != "" {
			return fmt.Sprintf("Inoltrato da %s (%s)\n\n%s", msg.From.Name, msg.From.PhoneNumber, text)
		}
		return fmt.Sprintf("Inoltrato da %s\n\n%s", msg.From.PhoneNumber, text)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🚨 FILTRO ATTIVATO: **%s**\n", filterLabel)
	b.WriteString(strings.Repeat("═", 35))
	b.WriteString("\n")

	if msg.From.Name != "" {
		fmt.Fprintf(&b, "👤 **Da:** %s (%s)\n", msg.From.Name, msg.From.PhoneNumber)
	} else {
		fmt.Fprintf(&b, "👤 **Da:** %s\n", msg.From.PhoneNumber)
	}
	if g := msg.Metadata.Group; g != nil {
		fmt.Fprintf(&b, "👥 **Gruppo:** %s\n", g.Name)
	}
	fmt.Fprintf(&b, "⏰ **Quando:** %s\n", msg.Timestamp.Format(forwardTimestampLayout))
	b.WriteString(strings.Repeat("─", 30))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "💬 **Messaggio:**\n%s", text)

	return b.String()
}
