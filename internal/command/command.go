package command

import (
	"context"
	"fmt"
	"strings"

	"sentinella/internal/channel"
	"sentinella/internal/logger"
	"sentinella/internal/store"
	"sentinella/pkg/metrics"
	"sentinella/pkg/models"
)

// CacheRefresher forces the rule cache to reload after a successful update so
// the change takes effect on the very next message.
type CacheRefresher interface {
	Refresh(ctx context.Context) error
}

// Result is the textual outcome of a command, relayed back to the admin.
type Result struct {
	Success bool
	Message string
}

// Interpreter handles in-chat admin commands: help, listing filters, and
// updating a filter field. Only senders on the allow-list may issue commands;
// everything else gets a refusal and no state change.
type Interpreter struct {
	filters  store.FilterRepository
	cache    CacheRefresher
	channels []channel.Channel
	allowed  map[string]struct{}
	logger   logger.Logger
}

func NewInterpreter(filters store.FilterRepository, cache CacheRefresher, channels []channel.Channel, allowedNumbers []string, log logger.Logger) *Interpreter {
	allowed := make(map[string]struct{}, len(allowedNumbers))
	for _, n := range allowedNumbers {
		if d := channel.NormalizePhoneNumber(n); d != "" {
			allowed[d] = struct{}{}
		}
	}
	return &Interpreter{
		filters:  filters,
		cache:    cache,
		channels: channels,
		allowed:  allowed,
		logger:   log,
	}
}

// Recognizes reports whether the text looks like an admin command. Transports
// use it to route messages to the command path instead of filter evaluation.
func (i *Interpreter) Recognizes(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	switch {
	case t == "help", t == "aiuto", t == "comandi":
		return true
	case t == "lista filtri", t == "list filters":
		return true
	case strings.HasPrefix(t, "aggiorna filtro "), strings.HasPrefix(t, "update filter "):
		return true
	}
	return false
}

// Handle interprets the message as a command and executes it. The result is
// also sent back to the sender over the message's originating channel; reply
// delivery failures are logged but do not change the result.
func (i *Interpreter) Handle(ctx context.Context, msg *models.Message) Result {
	res := i.execute(ctx, msg)

	outcome := "failure"
	if res.Success {
		outcome = "success"
	}
	metrics.AdminCommandsTotal.WithLabelValues(outcome).Inc()

	i.reply(ctx, msg, res.Message)
	return res
}

func (i *Interpreter) execute(ctx context.Context, msg *models.Message) Result {
	if !i.isAuthorized(msg.From.PhoneNumber) {
		i.logger.WarnwCtx(ctx, "rejected command from unauthorized sender",
			"sender", msg.From.PhoneNumber)
		return Result{Success: false, Message: "⛔ Non sei autorizzato a usare i comandi."}
	}

	text := strings.TrimSpace(msg.Content.Text)
	lower := strings.ToLower(text)

	switch {
	case lower == "help" || lower == "aiuto" || lower == "comandi":
		return Result{Success: true, Message: helpText()}
	case lower == "lista filtri" || lower == "list filters":
		return i.listFilters(ctx)
	case strings.HasPrefix(lower, "aggiorna filtro ") || strings.HasPrefix(lower, "update filter "):
		return i.updateFilter(ctx, text)
	}
	return Result{Success: false, Message: "❓ Comando non riconosciuto. Scrivi 'help' per l'elenco dei comandi."}
}

// isAuthorized compares digit-normalized numbers so formatting variants of
// the same number ("+39 055...", "39055...") authenticate identically.
func (i *Interpreter) isAuthorized(phone string) bool {
	_, ok := i.allowed[channel.NormalizePhoneNumber(phone)]
	return ok
}

func (i *Interpreter) listFilters(ctx context.Context) Result {
	filters, err := i.filters.List(ctx)
	if err != nil {
		i.logger.ErrorwCtx(ctx, "failed to list filters for command", "error", err)
		return Result{Success: false, Message: "⚠️ Impossibile leggere i filtri, riprova."}
	}
	if len(filters) == 0 {
		return Result{Success: true, Message: "Nessun filtro configurato."}
	}

	var b strings.Builder
	b.WriteString("📋 **Filtri configurati:**\n")
	for _, f := range filters {
		state := "🔴 disattivo"
		if f.Enabled {
			state = "🟢 attivo"
		}
		fmt.Fprintf(&b, "• %s — %s (match: %d)\n", f.Name, state, f.Stats.Matches)
	}
	return Result{Success: true, Message: strings.TrimRight(b.String(), "\n")}
}

// updateFilter parses "<verb> filtro <name...> <field> <value...>". Filter
// names may contain spaces, so the name is everything between the keyword
// "filtro" and the last token that names an updatable field; the remainder
// after that token is the raw value.
func (i *Interpreter) updateFilter(ctx context.Context, text string) Result {
	name, field, value, ok := splitUpdateCommand(text)
	if !ok {
		return Result{
			Success: false,
			Message: "⚠️ Uso: aggiorna filtro <nome> <campo> <valore>\nCampi: " + strings.Join(UpdatableFields(), ", "),
		}
	}

	upd, err := ParseFieldUpdate(field, value)
	if err != nil {
		return Result{
			Success: false,
			Message: fmt.Sprintf("⚠️ Valore non valido per '%s': %s", field, value),
		}
	}

	filter, err := i.filters.FindByName(ctx, name)
	if err != nil {
		i.logger.ErrorwCtx(ctx, "failed to look up filter for command",
			"filter", name, "error", err)
		return Result{Success: false, Message: "⚠️ Impossibile leggere i filtri, riprova."}
	}
	if filter == nil {
		return Result{Success: false, Message: fmt.Sprintf("⚠️ Filtro '%s' non trovato.", name)}
	}

	upd.Apply(filter)
	if err := i.filters.Save(ctx, filter); err != nil {
		i.logger.ErrorwCtx(ctx, "failed to save filter update",
			"filter", name, "error", err)
		return Result{Success: false, Message: "⚠️ Salvataggio fallito, riprova."}
	}

	if err := i.cache.Refresh(ctx); err != nil {
		i.logger.WarnwCtx(ctx, "cache refresh after filter update failed", "error", err)
	}

	i.logger.InfowCtx(ctx, "filter updated via command",
		"filter", name, "field", upd.Field())
	return Result{
		Success: true,
		Message: fmt.Sprintf("✅ Filtro '%s' aggiornato: %s = %s", name, upd.Field(), upd.Describe()),
	}
}

// splitUpdateCommand extracts name, field, and raw value. The field is the
// last updatable-field token with something after it, which keeps multi-word
// names intact even when a name token happens to equal a field name.
func splitUpdateCommand(text string) (name, field, value string, ok bool) {
	tokens := strings.Fields(text)
	// skip "<verb> filtro|filter"
	if len(tokens) < 4 {
		return "", "", "", false
	}
	rest := tokens[2:]

	fieldIdx := -1
	for idx := len(rest) - 2; idx >= 0; idx-- {
		if isUpdatableField(rest[idx]) {
			fieldIdx = idx
			break
		}
	}
	if fieldIdx < 1 {
		return "", "", "", false
	}

	name = strings.Join(rest[:fieldIdx], " ")
	field = rest[fieldIdx]
	value = strings.Join(rest[fieldIdx+1:], " ")
	return name, field, value, true
}

func helpText() string {
	return strings.Join([]string{
		"🤖 **Comandi disponibili:**",
		"• help — questo messaggio",
		"• lista filtri — elenco dei filtri e stato",
		"• aggiorna filtro <nome> <campo> <valore> — modifica un filtro",
		"Campi: " + strings.Join(UpdatableFields(), ", "),
		`Esempio: aggiorna filtro Messaggi Urgenti keywords ["urgente","asap"]`,
	}, "\n")
}

func (i *Interpreter) reply(ctx context.Context, msg *models.Message, text string) {
	var fallback channel.Channel
	for _, ch := range i.channels {
		if !ch.IsAvailable() {
			continue
		}
		if ch.Name() == msg.Metadata.Source {
			fallback = ch
			break
		}
		if fallback == nil {
			fallback = ch
		}
	}
	if fallback == nil {
		i.logger.WarnwCtx(ctx, "no channel available for command reply",
			"sender", msg.From.PhoneNumber)
		return
	}
	if err := fallback.Send(ctx, msg.From.PhoneNumber, text); err != nil {
		i.logger.WarnwCtx(ctx, "failed to deliver command reply",
			"channel", fallback.Name(), "error", err)
	}
}
