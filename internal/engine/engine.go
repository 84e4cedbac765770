package engine

import (
	"context"
	"time"

	"sentinella/internal/command"
	"sentinella/internal/logger"
	"sentinella/internal/store"
	pkgerrors "sentinella/pkg/errors"
	"sentinella/pkg/logging"
	"sentinella/pkg/metrics"
	"sentinella/pkg/models"
)

// EventPublisher pushes outcome events to the event stream. Publishing is
// best effort; the engine never fails a message over a broker error.
type EventPublisher interface {
	PublishOutcome(ctx context.Context, event models.OutcomeEvent) error
}

// ProcessResult summarizes what happened to one inbound message.
type ProcessResult struct {
	Message        *models.Message `json:"message"`
	MatchedFilters []string        `json:"matched_filters,omitempty"`
	Report         *Report         `json:"report,omitempty"`
}

// Engine is the single entry point transports call for inbound traffic. It
// validates and persists the message, evaluates it against the current rule
// snapshot, runs matched filters' actions, advances the status machine, and
// emits an outcome event.
type Engine struct {
	cache       *RuleCache
	matcher     *Matcher
	dispatcher  *Dispatcher
	messages    store.MessageRepository
	interpreter *command.Interpreter
	publisher   EventPublisher
	logger      logger.Logger
}

func New(cache *RuleCache, matcher *Matcher, dispatcher *Dispatcher, messages store.MessageRepository, interpreter *command.Interpreter, publisher EventPublisher, log logger.Logger) *Engine {
	return &Engine{
		cache:       cache,
		matcher:     matcher,
		dispatcher:  dispatcher,
		messages:    messages,
		interpreter: interpreter,
		publisher:   publisher,
		logger:      log,
	}
}

// Process runs the full intake pipeline for one message. A duplicate
// message_id is rejected before any evaluation; redelivered webhooks
// therefore never double-dispatch.
func (e *Engine) Process(ctx context.Context, msg *models.Message) (*ProcessResult, error) {
	start := time.Now()
	ctx = logging.WithMessageID(ctx, msg.MessageID)

	if err := models.ValidateMessage(msg); err != nil {
		metrics.MessagesProcessedTotal.WithLabelValues("invalid").Inc()
		return nil, pkgerrors.ErrValidation.WithCause(err)
	}

	if err := e.messages.Create(ctx, msg); err != nil {
		if pkgerrors.IsDuplicate(err) {
			e.logger.InfowCtx(ctx, "duplicate message ignored")
			metrics.MessagesProcessedTotal.WithLabelValues("duplicate").Inc()
			return nil, err
		}
		metrics.MessagesProcessedTotal.WithLabelValues("error").Inc()
		return nil, pkgerrors.ErrInternal.WithDetail("message", "failed to persist inbound message").WithCause(err)
	}

	// Read-through refresh: evaluation sees the newest enabled rules. When
	// the store is briefly unreachable the previous snapshot serves instead,
	// so intake keeps flowing in degraded mode.
	if err := e.cache.Refresh(ctx); err != nil {
		e.logger.WarnwCtx(ctx, "rule refresh failed, evaluating with stale snapshot", "error", err)
	}

	matched := e.evaluate(ctx, msg)

	result := &ProcessResult{Message: msg}
	if len(matched) == 0 {
		msg.Status = models.StatusProcessed
		if err := e.messages.Save(ctx, msg); err != nil && !pkgerrors.IsConflict(err) {
			e.logger.ErrorwCtx(ctx, "failed to mark message processed", "error", err)
		}
	} else {
		msg.Status = models.StatusFiltered
		for i := range matched {
			result.MatchedFilters = append(result.MatchedFilters, matched[i].Name)
		}
		result.Report = e.dispatcher.Dispatch(ctx, msg, matched)
	}

	metrics.MessagesProcessedTotal.WithLabelValues(string(msg.Status)).Inc()
	metrics.ObserveProcessingDuration(time.Since(start), string(msg.Status))
	e.publishOutcome(ctx, msg, result.MatchedFilters)

	e.logger.InfowCtx(ctx, "message processed",
		"status", msg.Status,
		"matched", len(matched),
		"duration_ms", time.Since(start).Milliseconds())
	return result, nil
}

func (e *Engine) evaluate(ctx context.Context, msg *models.Message) []models.Filter {
	var matched []models.Filter
	for _, filter := range e.cache.Current() {
		f := filter
		if e.matcher.Matches(ctx, msg, &f) {
			matched = append(matched, f)
		}
	}
	return matched
}

// HandleAdminCommand runs the in-chat command path. The interpreter replies
// to the sender itself; the returned result lets HTTP transports echo it too.
func (e *Engine) HandleAdminCommand(ctx context.Context, msg *models.Message) command.Result {
	ctx = logging.WithMessageID(ctx, msg.MessageID)
	return e.interpreter.Handle(ctx, msg)
}

// IsCommand reports whether the text should take the command path.
func (e *Engine) IsCommand(text string) bool {
	return e.interpreter != nil && e.interpreter.Recognizes(text)
}

func (e *Engine) publishOutcome(ctx context.Context, msg *models.Message, matchedNames []string) {
	if e.publisher == nil {
		return
	}
	event := models.OutcomeEvent{
		EventType:      models.EventForStatus(msg.Status),
		MessageID:      msg.MessageID,
		Status:         msg.Status,
		MatchedFilters: matchedNames,
		Source:         msg.Metadata.Source,
		Timestamp:      time.Now().UTC(),
	}
	if err := e.publisher.PublishOutcome(ctx, event); err != nil {
		metrics.OutcomeEventsTotal.WithLabelValues("failure").Inc()
		e.logger.WarnwCtx(ctx, "failed to publish outcome event", "error", err)
		return
	}
	metrics.OutcomeEventsTotal.WithLabelValues("success").Inc()
}
