package engine

import (
	"context"

	"sentinella/internal/channel"
	"sentinella/internal/logger"
	"sentinella/internal/store"
	pkgerrors "sentinella/pkg/errors"
	"sentinella/pkg/metrics"
	"sentinella/pkg/models"
)

// ActionOutcome records one attempted side effect during dispatch.
type ActionOutcome struct {
	Action      string `json:"action"`
	Channel     string `json:"channel,omitempty"`
	Destination string `json:"destination,omitempty"`
	Error       string `json:"error,omitempty"`
}

// FilterOutcome groups the outcomes of one matched filter's action sequence.
type FilterOutcome struct {
	FilterID   string          `json:"filter_id"`
	FilterName string          `json:"filter_name"`
	Suppressed bool            `json:"suppressed,omitempty"`
	Actions    []ActionOutcome `json:"actions,omitempty"`
}

// Report is the full dispatch result for a message. Failures are recorded
// per action; no failure aborts the remaining work.
type Report struct {
	Outcomes []FilterOutcome `json:"outcomes"`
}

// Failed reports whether any action in the report carried an error.
func (r *Report) Failed() bool {
	for _, fo := range r.Outcomes {
		for _, ao := range fo.Actions {
			if ao.Error != "" {
				return true
			}
		}
	}
	return false
}

const (
	actionPersist   = "persist"
	actionAutoReply = "auto_reply"
	actionBroadcast = "broadcast"
	actionForward   = "forward"
	actionArchive   = "archive"
)

// Dispatcher runs the action sequences of matched filters against a message.
// Filters execute in match order; within a filter the order is metadata
// mutation, persist, auto-reply, then forwarding. Every channel and every
// destination is attempted independently so one dead leg never starves the
// others.
type Dispatcher struct {
	messages   store.MessageRepository
	channels   []channel.Channel
	suppressor Suppressor
	logger     logger.Logger
}

func NewDispatcher(messages store.MessageRepository, channels []channel.Channel, suppressor Suppressor, log logger.Logger) *Dispatcher {
	if suppressor == nil {
		suppressor = NewNopSuppressor()
	}
	return &Dispatcher{
		messages:   messages,
		channels:   channels,
		suppressor: suppressor,
		logger:     log,
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, msg *models.Message, matched []models.Filter) *Report {
	report := &Report{}
	for i := range matched {
		filter := &matched[i]
		report.Outcomes = append(report.Outcomes, d.dispatchFilter(ctx, msg, filter))
	}
	return report
}

func (d *Dispatcher) dispatchFilter(ctx context.Context, msg *models.Message, filter *models.Filter) FilterOutcome {
	outcome := FilterOutcome{
		FilterID:   filter.ID,
		FilterName: filter.Name,
	}

	d.applyMetadata(msg, filter)
	outcome.Actions = append(outcome.Actions, d.persist(ctx, msg))

	if filter.Actions.AutoReply.Enabled && filter.Actions.AutoReply.Message != "" {
		outcome.Actions = append(outcome.Actions, d.autoReply(ctx, msg, filter))
	}

	if d.suppressor.ShouldSuppress(ctx, filter, msg) {
		outcome.Suppressed = true
		metrics.SuppressedForwardsTotal.WithLabelValues(filter.Name).Inc()
		d.logger.InfowCtx(ctx, "forwarding suppressed by unique-text window",
			"filter", filter.Name)
		return outcome
	}

	text := FormatForward(msg, filter.Name)
	for _, ch := range d.channels {
		if !ch.IsAvailable() {
			continue
		}
		if bd := ch.BroadcastDestination(); bd != "" {
			outcome.Actions = append(outcome.Actions,
				d.deliver(ctx, ch, actionBroadcast, bd, text))
		}
		for _, dest := range filter.Actions.ForwardTo {
			outcome.Actions = append(outcome.Actions,
				d.deliver(ctx, ch, actionForward, dest, text))
		}
	}

	return outcome
}

// applyMetadata mutates the in-memory message per the filter's metadata
// actions. AddTag keeps the tag set free of duplicates, so re-running a
// filter over the same message converges instead of growing.
func (d *Dispatcher) applyMetadata(msg *models.Message, filter *models.Filter) {
	if filter.Actions.MarkAsImportant {
		msg.Metadata.IsImportant = true
	}
	if filter.Actions.SetPriority != "" {
		msg.Metadata.Priority = filter.Actions.SetPriority
	}
	for _, tag := range filter.Actions.AddTags {
		msg.AddTag(tag)
	}
	if filter.UniqueText.Enabled && filter.UniqueText.Tag != "" {
		msg.AddTag(filter.UniqueText.Tag)
	}
	if filter.Actions.Archive && msg.CanTransition(models.StatusArchived) {
		msg.Status = models.StatusArchived
	}
}

// persist writes the mutated message back. A revision conflict means a
// concurrent writer already advanced the document; the local view is simply
// stale, so the conflict is swallowed after logging.
func (d *Dispatcher) persist(ctx context.Context, msg *models.Message) ActionOutcome {
	out := ActionOutcome{Action: actionPersist}
	err := d.messages.Save(ctx, msg)
	switch {
	case err == nil:
		metrics.DispatchActionsTotal.WithLabelValues(actionPersist, "success").Inc()
	case pkgerrors.IsConflict(err):
		metrics.DispatchActionsTotal.WithLabelValues(actionPersist, "conflict").Inc()
		d.logger.WarnwCtx(ctx, "concurrent update won the revision race, keeping stored state",
			"message_id", msg.MessageID)
	default:
		metrics.DispatchActionsTotal.WithLabelValues(actionPersist, "failure").Inc()
		out.Error = err.Error()
		d.logger.ErrorwCtx(ctx, "failed to persist dispatched message",
			"message_id", msg.MessageID, "error", err)
	}
	return out
}

// autoReply answers the sender on the message's originating channel. Reply
// failures are logged and recorded but never block the rest of the sequence.
func (d *Dispatcher) autoReply(ctx context.Context, msg *models.Message, filter *models.Filter) ActionOutcome {
	out := ActionOutcome{
		Action:      actionAutoReply,
		Destination: msg.From.PhoneNumber,
	}

	ch := d.channelFor(msg.Metadata.Source)
	if ch == nil {
		out.Error = "no channel available for reply"
		metrics.DispatchActionsTotal.WithLabelValues(actionAutoReply, "failure").Inc()
		return out
	}
	out.Channel = ch.Name()

	if err := ch.Send(ctx, msg.From.PhoneNumber, filter.Actions.AutoReply.Message); err != nil {
		out.Error = err.Error()
		metrics.DispatchActionsTotal.WithLabelValues(actionAutoReply, "failure").Inc()
		d.logger.WarnwCtx(ctx, "auto-reply delivery failed",
			"filter", filter.Name, "channel", ch.Name(), "error", err)
		return out
	}
	metrics.DispatchActionsTotal.WithLabelValues(actionAutoReply, "success").Inc()
	return out
}

func (d *Dispatcher) deliver(ctx context.Context, ch channel.Channel, action, destination, text string) ActionOutcome {
	out := ActionOutcome{
		Action:      action,
		Channel:     ch.Name(),
		Destination: destination,
	}
	if err := ch.Send(ctx, destination, text); err != nil {
		out.Error = err.Error()
		metrics.ForwardsTotal.WithLabelValues(ch.Name(), "failure").Inc()
		metrics.DispatchActionsTotal.WithLabelValues(action, "failure").Inc()
		d.logger.ErrorwCtx(ctx, "forward delivery failed",
			"channel", ch.Name(), "destination", destination, "error", err)
		return out
	}
	metrics.ForwardsTotal.WithLabelValues(ch.Name(), "success").Inc()
	metrics.DispatchActionsTotal.WithLabelValues(action, "success").Inc()
	return out
}

// channelFor picks the channel matching the message source, falling back to
// the first available channel when the source channel cannot deliver.
func (d *Dispatcher) channelFor(source string) channel.Channel {
	var fallback channel.Channel
	for _, ch := range d.channels {
		if !ch.IsAvailable() {
			continue
		}
		if ch.Name() == source {
			return ch
		}
		if fallback == nil {
			fallback = ch
		}
	}
	return fallback
}
